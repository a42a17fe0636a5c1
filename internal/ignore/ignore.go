// Package ignore implements IgnoreMarker: marking top-level patterns whose
// only requester is the root as ignored, so the Fetcher/Linker/ScriptRunner
// never materialize them.
package ignore

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/lockstep-dev/lockstep/contracts"
)

// Marker evaluates the single-requester ignore rule. GlobPatterns extends
// it: a root manifest may ignore a whole "@scope/*"-shaped group instead of
// listing exact patterns, matched against every resolved manifest's name
// before the requester-count rule is applied to each match.
type Marker struct {
	Resolver     contracts.Resolver
	GlobPatterns []string
}

// Mark applies the single-requester ignore rule to every pattern in
// ignorePatterns, plus any pattern whose resolved name matches a
// GlobPatterns entry.
func (m Marker) Mark(ignorePatterns []string) error {
	candidates := append([]string{}, ignorePatterns...)
	if len(m.GlobPatterns) > 0 {
		candidates = append(candidates, m.globMatches()...)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, pattern := range candidates {
		if _, ok := seen[pattern]; ok {
			continue
		}
		seen[pattern] = struct{}{}

		manifest, ok := m.Resolver.ResolvedPattern(pattern)
		if !ok {
			continue
		}
		if len(manifest.Requests) != 1 {
			continue
		}

		marked := *manifest
		marked.Ignore = true
		if err := m.Resolver.UpdateManifest(manifest.Ref, &marked); err != nil {
			return fmt.Errorf("%w: marking %q ignored: %v", contracts.ErrCollaboratorFailure, pattern, err)
		}
	}
	return nil
}

// globMatches returns every pattern in the resolver's current pattern set
// whose resolved package name matches a GlobPatterns entry.
func (m Marker) globMatches() []string {
	globs := make([]glob.Glob, 0, len(m.GlobPatterns))
	for _, p := range m.GlobPatterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			continue
		}
		globs = append(globs, g)
	}
	if len(globs) == 0 {
		return nil
	}

	var matched []string
	for pattern, manifest := range m.Resolver.Patterns() {
		for _, g := range globs {
			if g.Match(manifest.Name) {
				matched = append(matched, pattern)
				break
			}
		}
	}
	return matched
}

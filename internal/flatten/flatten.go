// Package flatten implements the Flattener: collapsing every transitive
// package to a single version per name when flat mode is active.
package flatten

import (
	"fmt"
	"sort"
	"strings"

	"deps.dev/util/semver"
	"github.com/mohae/deepcopy"

	"github.com/lockstep-dev/lockstep/contracts"
)

// Disambiguator is the one user-input point in the core: choosing a
// version among several candidates for a package name.
type Disambiguator interface {
	Choose(name string, options []contracts.SelectOption) (string, error)
}

// NonInteractive is a Disambiguator that fails fast instead of prompting,
// for frozen-lockfile or scripted invocations where no one is there to
// answer.
type NonInteractive struct{}

// Choose always fails: there is no one to ask.
func (NonInteractive) Choose(name string, _ []contracts.SelectOption) (string, error) {
	return "", fmt.Errorf("%w: multiple versions of %q require disambiguation but no interactive reporter is available", contracts.ErrCollaboratorFailure, name)
}

// ReporterDisambiguator adapts a contracts.Reporter into a Disambiguator.
type ReporterDisambiguator struct {
	Reporter contracts.Reporter
}

// Choose implements Disambiguator via Reporter.Select.
func (d ReporterDisambiguator) Choose(name string, options []contracts.SelectOption) (string, error) {
	return d.Reporter.Select(
		fmt.Sprintf("multiple versions of %q are required, please choose one", name),
		"version?",
		options,
	)
}

// Flattener collapses resolved packages to one version per name.
type Flattener struct {
	Resolver      contracts.Resolver
	Disambiguator Disambiguator
	System        semver.System
}

// Result reports whether any resolutions were newly pinned, so the caller
// can decide whether root manifests need persisting.
type Result struct {
	Added map[string]string
}

// Flatten collapses every transitive package to one version per name,
// prompting Disambiguator when a name has more than one candidate version
// and no resolutions entry already picks one. resolutions is mutated in
// place with any newly pinned versions; patterns is the level-order
// starting set (usually the top-level patterns).
func (f Flattener) Flatten(patterns []string, resolutions map[string]string) (Result, error) {
	added := make(map[string]string)
	names := f.Resolver.AllDependencyNamesByLevelOrder(patterns)

	for _, name := range names {
		candidates := nonIgnored(f.Resolver.AllInfoForPackageName(name))
		if len(candidates) == 0 {
			continue
		}
		if len(candidates) == 1 {
			// Single candidate: any pattern in patternsByPackage suffices,
			// they all resolve to the same entity already.
			continue
		}

		if pinned, ok := resolutions[name]; ok && hasVersion(candidates, pinned) {
			if _, err := f.Resolver.CollapseAllVersionsOfPackage(name, pinned); err != nil {
				return Result{}, err
			}
			continue
		}

		chosen, err := f.disambiguate(name, candidates)
		if err != nil {
			return Result{}, err
		}
		resolutions[name] = chosen
		added[name] = chosen

		if _, err := f.Resolver.CollapseAllVersionsOfPackage(name, chosen); err != nil {
			return Result{}, err
		}
	}

	return Result{Added: added}, nil
}

func (f Flattener) disambiguate(name string, candidates []*contracts.ResolvedManifest) (string, error) {
	// Snapshot candidates before presenting them: a failed/aborted
	// disambiguation must never leave the resolver looking collapsed.
	snapshot := deepcopy.Copy(candidates).([]*contracts.ResolvedManifest)
	sort.Slice(snapshot, func(i, j int) bool {
		return f.System.Compare(snapshot[i].Version, snapshot[j].Version) < 0
	})

	opts := make([]contracts.SelectOption, 0, len(snapshot))
	for _, m := range snapshot {
		opts = append(opts, contracts.SelectOption{
			Label: fmt.Sprintf("used by %s, version %s", strings.Join(m.Requests, ", "), m.Version),
			Value: m.Version,
		})
	}

	disambiguator := f.Disambiguator
	if disambiguator == nil {
		disambiguator = NonInteractive{}
	}
	return disambiguator.Choose(name, opts)
}

func nonIgnored(manifests []*contracts.ResolvedManifest) []*contracts.ResolvedManifest {
	out := make([]*contracts.ResolvedManifest, 0, len(manifests))
	for _, m := range manifests {
		if !m.Ignore {
			out = append(out, m)
		}
	}
	return out
}

func hasVersion(candidates []*contracts.ResolvedManifest, version string) bool {
	for _, c := range candidates {
		if c.Version == version {
			return true
		}
	}
	return false
}

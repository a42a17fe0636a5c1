// Package compat provides a reference contracts.Compatibility: engine and
// platform checks over resolved manifests.
package compat

import (
	"context"
	"fmt"

	"deps.dev/util/semver"

	"github.com/lockstep-dev/lockstep/contracts"
)

// Requirements is the per-package compatibility data a real manifest
// reader would extract from a package's own manifest (its "os"/"cpu"/
// "engines" fields). Out of scope for this reference: where it comes from.
type Requirements struct {
	OS          []string
	CPU         []string
	EngineRange string
}

// Lookup retrieves a package's compatibility requirements, if any.
type Lookup interface {
	Requirements(m *contracts.ResolvedManifest) (Requirements, bool)
}

// Checker is a reference contracts.Compatibility. System defaults to
// semver.NPM when constructed via New.
type Checker struct {
	Lookup        Lookup
	OS            string
	CPU           string
	EngineVersion string
	System        semver.System
}

// New returns a Checker using the npm semver system for engine ranges.
func New(lookup Lookup, os, cpu, engineVersion string) Checker {
	return Checker{Lookup: lookup, OS: os, CPU: cpu, EngineVersion: engineVersion, System: semver.NPM}
}

// Init implements contracts.Compatibility.
func (c Checker) Init(ctx context.Context, manifests []*contracts.ResolvedManifest, ignorePlatform, ignoreEngines bool) error {
	if c.Lookup == nil {
		return nil
	}
	sys := c.System

	for _, m := range manifests {
		if m.Ignore {
			continue
		}
		reqs, ok := c.Lookup.Requirements(m)
		if !ok {
			continue
		}

		if !ignorePlatform {
			if !matchesList(reqs.OS, c.OS) {
				return fmt.Errorf("%w: %s@%s is incompatible with os %q", contracts.ErrCollaboratorFailure, m.Name, m.Version, c.OS)
			}
			if !matchesList(reqs.CPU, c.CPU) {
				return fmt.Errorf("%w: %s@%s is incompatible with cpu %q", contracts.ErrCollaboratorFailure, m.Name, m.Version, c.CPU)
			}
		}

		if !ignoreEngines && reqs.EngineRange != "" {
			constraint, err := sys.ParseConstraint(reqs.EngineRange)
			if err != nil {
				return fmt.Errorf("%w: %s@%s has an invalid engine range %q: %v", contracts.ErrCollaboratorFailure, m.Name, m.Version, reqs.EngineRange, err)
			}
			v, err := sys.Parse(c.EngineVersion)
			if err != nil {
				return fmt.Errorf("%w: running engine version %q is invalid: %v", contracts.ErrCollaboratorFailure, c.EngineVersion, err)
			}
			if !constraint.MatchVersion(v) {
				return fmt.Errorf("%w: %s@%s requires engine %q, running %q", contracts.ErrCollaboratorFailure, m.Name, m.Version, reqs.EngineRange, c.EngineVersion)
			}
		}
	}
	return nil
}

// matchesList reports whether value is allowed by list: an empty list
// means "no restriction," entries may be negated with a leading "!".
func matchesList(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	allowed := false
	hasPositive := false
	for _, entry := range list {
		if len(entry) > 0 && entry[0] == '!' {
			if entry[1:] == value {
				return false
			}
			continue
		}
		hasPositive = true
		if entry == value {
			allowed = true
		}
	}
	if !hasPositive {
		return true
	}
	return allowed
}

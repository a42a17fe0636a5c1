// Package bailout implements Bailout: deciding whether the current on-disk
// state already satisfies the request, short-circuiting the pipeline.
package bailout

import (
	"context"
	"fmt"

	"github.com/lockstep-dev/lockstep/contracts"
	"github.com/lockstep-dev/lockstep/options"
)

// Decision is Bailout's verdict.
type Decision struct {
	// Skip is true when the rest of the pipeline should be skipped.
	Skip bool
	// NothingToInstall is true when Skip is true because usedPatterns was
	// empty, which also requires creating empty manifest folders and
	// persisting before returning.
	NothingToInstall bool
	// UpToDate is true when Skip is true because integrity already
	// matched.
	UpToDate bool
}

// Checker evaluates the bailout policy: whether the pipeline can be
// skipped because the install is already satisfied.
type Checker struct {
	Flags     options.EffectiveFlags
	Integrity contracts.IntegrityChecker
	Lockfile  contracts.Lockfile
	Reporter  contracts.Reporter
}

// Decide evaluates the bailout conditions in order.
func (c Checker) Decide(ctx context.Context, usedPatterns []string) (Decision, error) {
	if c.Flags.SkipIntegrity || c.Flags.Force {
		return Decision{}, nil
	}

	if c.Lockfile == nil || c.Lockfile.Cache() == nil {
		return Decision{}, nil
	}

	result, err := c.Integrity.Check(ctx, usedPatterns, c.Lockfile.Cache(), c.Flags)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: integrity check: %v", contracts.ErrCollaboratorFailure, err)
	}

	if c.Flags.FrozenLockfile && len(result.MissingPatterns) > 0 {
		return Decision{}, fmt.Errorf("%w: missing patterns %v", contracts.ErrFrozenLockfileViolation, result.MissingPatterns)
	}

	if result.IntegrityMatches && c.Lockfile.Exists() {
		if c.Reporter != nil {
			c.Reporter.Success("up to date")
		}
		return Decision{Skip: true, UpToDate: true}, nil
	}

	if len(usedPatterns) == 0 && !result.IntegrityFileMissing {
		if c.Reporter != nil {
			c.Reporter.Info("nothing to install")
		}
		return Decision{Skip: true, NothingToInstall: true}, nil
	}

	return Decision{}, nil
}

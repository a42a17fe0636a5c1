package bailout_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lockstep-dev/lockstep/contracts"
	"github.com/lockstep-dev/lockstep/internal/bailout"
	"github.com/lockstep-dev/lockstep/internal/testing/fakes"
	"github.com/lockstep-dev/lockstep/options"
)

func TestDecideForceSkipsBailout(t *testing.T) {
	c := bailout.Checker{
		Flags:    options.EffectiveFlags{Force: true},
		Lockfile: &fakes.Lockfile{Entries: map[string]contracts.LockedReference{"a": {}}},
	}
	d, err := c.Decide(context.Background(), []string{"a"})
	if err != nil || d.Skip {
		t.Fatalf("Decide() = %+v, %v; want no skip when force is set", d, err)
	}
}

func TestDecideNoLockfileCacheNoBailout(t *testing.T) {
	c := bailout.Checker{Lockfile: &fakes.Lockfile{}}
	d, err := c.Decide(context.Background(), []string{"a"})
	if err != nil || d.Skip {
		t.Fatalf("Decide() = %+v, %v; want no skip when lockfile cache is empty", d, err)
	}
}

func TestDecideUpToDate(t *testing.T) {
	integrity := &fakes.IntegrityChecker{Result: contracts.IntegrityCheckResult{IntegrityMatches: true}}
	lf := &fakes.Lockfile{Entries: map[string]contracts.LockedReference{"a": {}}, FileOnDisk: true}
	c := bailout.Checker{Integrity: integrity, Lockfile: lf, Reporter: &fakes.Reporter{}}

	d, err := c.Decide(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !d.Skip || !d.UpToDate {
		t.Fatalf("Decide() = %+v, want up-to-date bailout", d)
	}
}

func TestDecideFrozenLockfileViolation(t *testing.T) {
	integrity := &fakes.IntegrityChecker{Result: contracts.IntegrityCheckResult{MissingPatterns: []string{"a"}}}
	lf := &fakes.Lockfile{Entries: map[string]contracts.LockedReference{"other": {}}}
	c := bailout.Checker{Flags: options.EffectiveFlags{FrozenLockfile: true}, Integrity: integrity, Lockfile: lf}

	_, err := c.Decide(context.Background(), []string{"a"})
	if !errors.Is(err, contracts.ErrFrozenLockfileViolation) {
		t.Fatalf("Decide() error = %v, want ErrFrozenLockfileViolation", err)
	}
}

func TestDecideNothingToInstall(t *testing.T) {
	integrity := &fakes.IntegrityChecker{Result: contracts.IntegrityCheckResult{}}
	lf := &fakes.Lockfile{Entries: map[string]contracts.LockedReference{"a": {}}}
	c := bailout.Checker{Integrity: integrity, Lockfile: lf, Reporter: &fakes.Reporter{}}

	d, err := c.Decide(context.Background(), nil)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !d.Skip || !d.NothingToInstall {
		t.Fatalf("Decide() = %+v, want nothing-to-install bailout", d)
	}
}

package persist_test

import (
	"context"
	"sort"
	"testing"

	"github.com/lockstep-dev/lockstep/contracts"
	"github.com/lockstep-dev/lockstep/internal/persist"
	"github.com/lockstep-dev/lockstep/internal/resolution"
	"github.com/lockstep-dev/lockstep/internal/testing/fakes"
	"github.com/lockstep-dev/lockstep/options"
)

func newResolver(t *testing.T) *resolution.Resolver {
	t.Helper()
	r := resolution.New(resolution.Universe{"a": {{Version: "1.0.0"}}})
	if err := r.Init(nil, []contracts.DependencyRequest{{Pattern: "a@^1.0.0", Registry: "npm"}}, false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return r
}

func TestSaveLockfileAndIntegritySkipsWriteWhenUnchanged(t *testing.T) {
	r := newResolver(t)
	lf := &fakes.Lockfile{Entries: map[string]contracts.LockedReference{
		"a@^1.0.0": {Resolved: "a-1.0.0.tgz", Version: "1.0.0"},
	}}
	integrity := &fakes.IntegrityChecker{}
	p := persist.Persister{
		Lockfile:  lf,
		Integrity: integrity,
		Resolver:  r,
		Flags:     options.EffectiveFlags{Lockfile: true},
	}

	res, err := p.SaveLockfileAndIntegrity(context.Background(), []string{"a@^1.0.0"})
	if err != nil {
		t.Fatalf("SaveLockfileAndIntegrity() error = %v", err)
	}
	if res.LockfileWritten {
		t.Fatal("LockfileWritten = true, want skip-write when candidate matches existing lockfile")
	}
	if integrity.SaveCalls != 1 {
		t.Fatalf("integrity SaveCalls = %d, want 1 (integrity is always saved)", integrity.SaveCalls)
	}
}

func TestSaveLockfileAndIntegrityWritesWhenChanged(t *testing.T) {
	r := newResolver(t)
	lf := &fakes.Lockfile{}
	integrity := &fakes.IntegrityChecker{}
	p := persist.Persister{
		Lockfile:  lf,
		Integrity: integrity,
		Resolver:  r,
		Flags:     options.EffectiveFlags{Lockfile: true},
	}

	res, err := p.SaveLockfileAndIntegrity(context.Background(), []string{"a@^1.0.0"})
	if err != nil {
		t.Fatalf("SaveLockfileAndIntegrity() error = %v", err)
	}
	if !res.LockfileWritten {
		t.Fatal("LockfileWritten = false, want a write when no prior lockfile entry exists")
	}
	if lf.WriteCalls != 1 {
		t.Fatalf("WriteCalls = %d, want 1", lf.WriteCalls)
	}
}

func TestSaveLockfileAndIntegrityDisabled(t *testing.T) {
	r := newResolver(t)
	lf := &fakes.Lockfile{}
	integrity := &fakes.IntegrityChecker{}
	p := persist.Persister{
		Lockfile:  lf,
		Integrity: integrity,
		Resolver:  r,
		Flags:     options.EffectiveFlags{Lockfile: false},
	}

	res, err := p.SaveLockfileAndIntegrity(context.Background(), []string{"a@^1.0.0"})
	if err != nil {
		t.Fatalf("SaveLockfileAndIntegrity() error = %v", err)
	}
	if res.LockfileWritten || lf.WriteCalls != 0 || integrity.SaveCalls != 0 {
		t.Fatalf("expected no writes when Flags.Lockfile is false, got %+v write=%d save=%d", res, lf.WriteCalls, integrity.SaveCalls)
	}
}

func TestPruneOfflineMirrorSoundness(t *testing.T) {
	lockImage := map[string]contracts.LockedReference{
		"x": {Resolved: "https://example.com/x-1.tgz#deadbeef"},
		"y": {Resolved: "https://example.com/y-2.tgz"},
	}
	mirrorFiles := []string{"x-1.tgz", "y-2.tgz", "z-old.tgz"}

	toDelete := persist.PruneOfflineMirror(mirrorFiles, lockImage)
	sort.Strings(toDelete)
	if len(toDelete) != 1 || toDelete[0] != "z-old.tgz" {
		t.Fatalf("PruneOfflineMirror() = %v, want exactly [z-old.tgz]", toDelete)
	}
}

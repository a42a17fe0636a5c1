package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/lockstep-dev/lockstep/contracts"
	"github.com/lockstep-dev/lockstep/internal/pipeline"
	"github.com/lockstep-dev/lockstep/internal/resolution"
	"github.com/lockstep-dev/lockstep/internal/testing/fakes"
	"github.com/lockstep-dev/lockstep/options"
)

func TestRunFreshInstall(t *testing.T) {
	r := resolution.New(resolution.Universe{"a": {{Version: "1.0.0"}}})
	fetcher := &fakes.Fetcher{}
	compat := &fakes.Compatibility{}
	linker := &fakes.Linker{}
	scripts := &fakes.ScriptRunner{}
	integrity := &fakes.IntegrityChecker{}
	lf := &fakes.Lockfile{}
	reporter := &fakes.Reporter{}

	p := pipeline.Pipeline{
		Resolver:      r,
		Fetcher:       fetcher,
		Compatibility: compat,
		Linker:        linker,
		Scripts:       scripts,
		Integrity:     integrity,
		Lockfile:      lf,
		Reporter:      reporter,
		Flags:         options.EffectiveFlags{Lockfile: true},
	}

	res, err := p.Run(context.Background(), pipeline.Input{
		Requests:     []contracts.DependencyRequest{{Pattern: "a@^1.0.0", Registry: "npm"}},
		Patterns:     []string{"a@^1.0.0"},
		UsedPatterns: []string{"a@^1.0.0"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.BailedOut {
		t.Fatal("Run() bailed out on a fresh install")
	}
	if !res.LockfileWritten {
		t.Fatal("Run() did not write the lockfile on a fresh install")
	}
	if fetcher.InitCalls != 1 || compat.InitCalls != 1 || linker.InitCalls != 1 || scripts.InitCalls != 1 {
		t.Fatalf("expected every collaborator to run once: fetcher=%d compat=%d linker=%d scripts=%d",
			fetcher.InitCalls, compat.InitCalls, linker.InitCalls, scripts.InitCalls)
	}
	if integrity.RemoveCalls != 1 {
		t.Fatalf("RemoveCalls = %d, want 1 (removed before linking)", integrity.RemoveCalls)
	}
	if integrity.SaveCalls != 1 {
		t.Fatalf("SaveCalls = %d, want 1 (written after success)", integrity.SaveCalls)
	}
}

func TestRunUpToDateBailsOutBeforeFetch(t *testing.T) {
	r := resolution.New(resolution.Universe{"a": {{Version: "1.0.0"}}})
	fetcher := &fakes.Fetcher{}
	linker := &fakes.Linker{}
	integrity := &fakes.IntegrityChecker{Result: contracts.IntegrityCheckResult{IntegrityMatches: true}}
	lf := &fakes.Lockfile{Entries: map[string]contracts.LockedReference{"a@^1.0.0": {}}, FileOnDisk: true}

	p := pipeline.Pipeline{
		Resolver:  r,
		Fetcher:   fetcher,
		Linker:    linker,
		Integrity: integrity,
		Lockfile:  lf,
		Reporter:  &fakes.Reporter{},
		Flags:     options.EffectiveFlags{Lockfile: true},
	}

	res, err := p.Run(context.Background(), pipeline.Input{
		Requests:     []contracts.DependencyRequest{{Pattern: "a@^1.0.0", Registry: "npm"}},
		Patterns:     []string{"a@^1.0.0"},
		UsedPatterns: []string{"a@^1.0.0"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.BailedOut {
		t.Fatal("Run() did not bail out on an up-to-date install")
	}
	if fetcher.InitCalls != 0 || linker.InitCalls != 0 {
		t.Fatalf("fetch/link ran despite bailout: fetcher=%d linker=%d", fetcher.InitCalls, linker.InitCalls)
	}
	if integrity.RemoveCalls != 0 {
		t.Fatal("integrity file removed despite bailout")
	}
}

func TestRunFrozenLockfileViolationAbortsBeforeFetch(t *testing.T) {
	r := resolution.New(resolution.Universe{"a": {{Version: "1.0.0"}}})
	fetcher := &fakes.Fetcher{}
	integrity := &fakes.IntegrityChecker{Result: contracts.IntegrityCheckResult{MissingPatterns: []string{"a@^1.0.0"}}}
	lf := &fakes.Lockfile{Entries: map[string]contracts.LockedReference{"other": {}}}

	p := pipeline.Pipeline{
		Resolver:  r,
		Fetcher:   fetcher,
		Integrity: integrity,
		Lockfile:  lf,
		Flags:     options.EffectiveFlags{FrozenLockfile: true},
	}

	_, err := p.Run(context.Background(), pipeline.Input{
		Requests:     []contracts.DependencyRequest{{Pattern: "a@^1.0.0", Registry: "npm"}},
		Patterns:     []string{"a@^1.0.0"},
		UsedPatterns: []string{"a@^1.0.0"},
	})
	if !errors.Is(err, contracts.ErrFrozenLockfileViolation) {
		t.Fatalf("Run() error = %v, want ErrFrozenLockfileViolation", err)
	}
	if fetcher.InitCalls != 0 {
		t.Fatal("fetcher ran despite a frozen lockfile violation")
	}
}

func TestRunIgnoreScriptsSkipsScriptRunner(t *testing.T) {
	r := resolution.New(resolution.Universe{"a": {{Version: "1.0.0"}}})
	scripts := &fakes.ScriptRunner{}
	reporter := &fakes.Reporter{}

	p := pipeline.Pipeline{
		Resolver:      r,
		Fetcher:       &fakes.Fetcher{},
		Compatibility: &fakes.Compatibility{},
		Linker:        &fakes.Linker{},
		Scripts:       scripts,
		Integrity:     &fakes.IntegrityChecker{},
		Lockfile:      &fakes.Lockfile{},
		Reporter:      reporter,
		Flags:         options.EffectiveFlags{Lockfile: true, IgnoreScripts: true},
	}

	_, err := p.Run(context.Background(), pipeline.Input{
		Requests:     []contracts.DependencyRequest{{Pattern: "a@^1.0.0", Registry: "npm"}},
		Patterns:     []string{"a@^1.0.0"},
		UsedPatterns: []string{"a@^1.0.0"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if scripts.InitCalls != 0 {
		t.Fatal("scripts ran despite IgnoreScripts")
	}
	if len(reporter.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want one warning about skipped scripts", reporter.Warnings)
	}
}

type stubWorkspace struct {
	contracts.Workspace
	modulesFolder string
}

func (w *stubWorkspace) ModulesFolder() string { return w.modulesFolder }

func (w *stubWorkspace) GetOfflineMirrorPath() string { return "" }

func TestRunNothingToInstallPersistsBeforeBailout(t *testing.T) {
	r := resolution.New(resolution.Universe{})
	fetcher := &fakes.Fetcher{}
	linker := &fakes.Linker{}
	integrity := &fakes.IntegrityChecker{}
	lf := &fakes.Lockfile{Entries: map[string]contracts.LockedReference{}}
	ws := &stubWorkspace{modulesFolder: filepath.Join(t.TempDir(), "node_modules")}

	p := pipeline.Pipeline{
		Resolver:  r,
		Fetcher:   fetcher,
		Linker:    linker,
		Integrity: integrity,
		Lockfile:  lf,
		Workspace: ws,
		Reporter:  &fakes.Reporter{},
		Flags:     options.EffectiveFlags{Lockfile: true},
	}

	res, err := p.Run(context.Background(), pipeline.Input{
		UsedPatterns: nil,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.BailedOut {
		t.Fatal("Run() did not bail out when there was nothing to install")
	}
	if fetcher.InitCalls != 0 || linker.InitCalls != 0 {
		t.Fatalf("fetch/link ran despite nothing-to-install bailout: fetcher=%d linker=%d", fetcher.InitCalls, linker.InitCalls)
	}
	if integrity.SaveCalls != 1 {
		t.Fatalf("SaveCalls = %d, want 1: nothing-to-install must still persist the integrity witness", integrity.SaveCalls)
	}
	if _, err := os.Stat(ws.modulesFolder); err != nil {
		t.Fatalf("ModulesFolder() was not created: %v", err)
	}
}

func TestRunSkipsCleanWithoutMarkerFile(t *testing.T) {
	r := resolution.New(resolution.Universe{"a": {{Version: "1.0.0"}}})
	cleaner := &fakes.Cleaner{}

	p := pipeline.Pipeline{
		Fsys:          fstest.MapFS{},
		Resolver:      r,
		Fetcher:       &fakes.Fetcher{},
		Compatibility: &fakes.Compatibility{},
		Linker:        &fakes.Linker{},
		Scripts:       &fakes.ScriptRunner{},
		Integrity:     &fakes.IntegrityChecker{},
		Lockfile:      &fakes.Lockfile{},
		Cleaner:       cleaner,
	}

	_, err := p.Run(context.Background(), pipeline.Input{
		Requests:     []contracts.DependencyRequest{{Pattern: "a@^1.0.0", Registry: "npm"}},
		Patterns:     []string{"a@^1.0.0"},
		UsedPatterns: []string{"a@^1.0.0"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if cleaner.CleanCalls != 0 {
		t.Fatal("Cleaner ran despite no clean-marker file in the working directory")
	}
}

func TestRunCleansWhenMarkerFilePresent(t *testing.T) {
	r := resolution.New(resolution.Universe{"a": {{Version: "1.0.0"}}})
	cleaner := &fakes.Cleaner{}

	p := pipeline.Pipeline{
		Fsys:          fstest.MapFS{pipeline.CleanFilename: &fstest.MapFile{}},
		Resolver:      r,
		Fetcher:       &fakes.Fetcher{},
		Compatibility: &fakes.Compatibility{},
		Linker:        &fakes.Linker{},
		Scripts:       &fakes.ScriptRunner{},
		Integrity:     &fakes.IntegrityChecker{},
		Lockfile:      &fakes.Lockfile{},
		Cleaner:       cleaner,
	}

	_, err := p.Run(context.Background(), pipeline.Input{
		Requests:     []contracts.DependencyRequest{{Pattern: "a@^1.0.0", Registry: "npm"}},
		Patterns:     []string{"a@^1.0.0"},
		UsedPatterns: []string{"a@^1.0.0"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if cleaner.CleanCalls != 1 {
		t.Fatalf("Cleaner.Clean calls = %d, want 1 with the clean-marker file present", cleaner.CleanCalls)
	}
}

func TestRunWarnsOnLegacyShrinkwrap(t *testing.T) {
	r := resolution.New(resolution.Universe{"a": {{Version: "1.0.0"}}})
	reporter := &fakes.Reporter{}

	p := pipeline.Pipeline{
		Fsys:          fstest.MapFS{pipeline.LegacyShrinkwrapFilename: &fstest.MapFile{}},
		Resolver:      r,
		Fetcher:       &fakes.Fetcher{},
		Compatibility: &fakes.Compatibility{},
		Linker:        &fakes.Linker{},
		Scripts:       &fakes.ScriptRunner{},
		Integrity:     &fakes.IntegrityChecker{},
		Lockfile:      &fakes.Lockfile{},
		Reporter:      reporter,
	}

	_, err := p.Run(context.Background(), pipeline.Input{
		Requests:     []contracts.DependencyRequest{{Pattern: "a@^1.0.0", Registry: "npm"}},
		Patterns:     []string{"a@^1.0.0"},
		UsedPatterns: []string{"a@^1.0.0"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(reporter.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want one warning about the legacy shrinkwrap file", reporter.Warnings)
	}
}

func TestRunNoShrinkwrapWarningWithoutFsys(t *testing.T) {
	r := resolution.New(resolution.Universe{"a": {{Version: "1.0.0"}}})
	reporter := &fakes.Reporter{}

	p := pipeline.Pipeline{
		Resolver:      r,
		Fetcher:       &fakes.Fetcher{},
		Compatibility: &fakes.Compatibility{},
		Linker:        &fakes.Linker{},
		Scripts:       &fakes.ScriptRunner{},
		Integrity:     &fakes.IntegrityChecker{},
		Lockfile:      &fakes.Lockfile{},
		Reporter:      reporter,
	}

	_, err := p.Run(context.Background(), pipeline.Input{
		Requests:     []contracts.DependencyRequest{{Pattern: "a@^1.0.0", Registry: "npm"}},
		Patterns:     []string{"a@^1.0.0"},
		UsedPatterns: []string{"a@^1.0.0"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(reporter.Warnings) != 0 {
		t.Fatalf("Warnings = %v, want none without a configured Fsys", reporter.Warnings)
	}
}

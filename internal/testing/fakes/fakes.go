// Package fakes provides small collaborator test doubles shared across the
// orchestrator's package tests, in the style of scalibr's testing/fake*
// packages.
package fakes

import (
	"context"

	"github.com/lockstep-dev/lockstep/contracts"
)

// Lockfile is a fake contracts.Lockfile backed by an in-memory map.
type Lockfile struct {
	Entries      map[string]contracts.LockedReference
	FileOnDisk   bool
	WriteCalls   int
	LastWritten  map[string]contracts.LockedReference
}

func (f *Lockfile) GetLocked(pattern string, ignoreVersion bool) (contracts.LockedReference, bool) {
	if f.Entries == nil {
		return contracts.LockedReference{}, false
	}
	v, ok := f.Entries[pattern]
	return v, ok
}

func (f *Lockfile) GetLockfile(resolverPatterns map[string]*contracts.ResolvedManifest) map[string]contracts.LockedReference {
	out := make(map[string]contracts.LockedReference, len(resolverPatterns))
	for p, m := range resolverPatterns {
		out[p] = contracts.LockedReference{Resolved: m.Name + "-" + m.Version + ".tgz", Version: m.Version}
	}
	return out
}

func (f *Lockfile) Cache() map[string]contracts.LockedReference { return f.Entries }
func (f *Lockfile) Exists() bool                                { return f.FileOnDisk }

func (f *Lockfile) Write(image map[string]contracts.LockedReference) error {
	f.WriteCalls++
	f.LastWritten = image
	f.FileOnDisk = true
	return nil
}

// IntegrityChecker is a fake contracts.IntegrityChecker.
type IntegrityChecker struct {
	Result        contracts.IntegrityCheckResult
	CheckErr      error
	Present       bool
	RemoveCalls   int
	SaveCalls     int
	LastSaved     map[string]contracts.LockedReference
}

func (f *IntegrityChecker) Check(ctx context.Context, patterns []string, lockfileCache map[string]contracts.LockedReference, flags any) (contracts.IntegrityCheckResult, error) {
	return f.Result, f.CheckErr
}

func (f *IntegrityChecker) Save(ctx context.Context, patterns []string, lockImage map[string]contracts.LockedReference, flags any, usedRegistries []string) error {
	f.SaveCalls++
	f.LastSaved = lockImage
	f.Present = true
	return nil
}

func (f *IntegrityChecker) RemoveIntegrityFile(ctx context.Context) error {
	f.RemoveCalls++
	f.Present = false
	return nil
}

func (f *IntegrityChecker) FileExists() bool { return f.Present }

// Reporter is a fake contracts.Reporter that records calls instead of
// printing them.
type Reporter struct {
	Successes []string
	Warnings  []string
	Infos     []string
	Selected  string
}

func (r *Reporter) Step(current, total int, message string) {}
func (r *Reporter) Success(message string)                  { r.Successes = append(r.Successes, message) }
func (r *Reporter) Warn(message string)                      { r.Warnings = append(r.Warnings, message) }
func (r *Reporter) Info(message string)                      { r.Infos = append(r.Infos, message) }
func (r *Reporter) Command(message string)                   {}
func (r *Reporter) Lang(key string, args ...any) string       { return key }
func (r *Reporter) Select(message, answerPrompt string, options []contracts.SelectOption) (string, error) {
	if r.Selected != "" {
		return r.Selected, nil
	}
	if len(options) == 0 {
		return "", nil
	}
	return options[0].Value, nil
}

// Fetcher is a fake contracts.Fetcher recording whether it ran.
type Fetcher struct {
	InitCalls int
	Err       error
}

func (f *Fetcher) Init(ctx context.Context, manifests []*contracts.ResolvedManifest) error {
	f.InitCalls++
	return f.Err
}

// Compatibility is a fake contracts.Compatibility.
type Compatibility struct {
	InitCalls int
	Err       error
}

func (c *Compatibility) Init(ctx context.Context, manifests []*contracts.ResolvedManifest, ignorePlatform, ignoreEngines bool) error {
	c.InitCalls++
	return c.Err
}

// Linker is a fake contracts.Linker.
type Linker struct {
	InitCalls        int
	LastTopLevel     []string
	Err              error
}

func (l *Linker) Init(ctx context.Context, topLevelPatterns []string, linkDuplicates bool) error {
	l.InitCalls++
	l.LastTopLevel = topLevelPatterns
	return l.Err
}

// ScriptRunner is a fake contracts.ScriptRunner.
type ScriptRunner struct {
	InitCalls int
	Err       error
}

func (s *ScriptRunner) Init(ctx context.Context, topLevelPatterns []string) error {
	s.InitCalls++
	return s.Err
}

// Cleaner is a fake pipeline.Cleaner recording whether it ran.
type Cleaner struct {
	CleanCalls int
	Err        error
}

func (c *Cleaner) Clean(ctx context.Context) error {
	c.CleanCalls++
	return c.Err
}

// Package contracts defines the interfaces the install orchestrator
// sequences but does not itself implement: resolver, fetcher, linker,
// script runner, compatibility checker, integrity checker, lockfile codec,
// reporter and workspace. Reference implementations live under internal/.
package contracts

import (
	"context"
	"errors"

	"deps.dev/util/resolve"
)

// Hint classifies a DependencyRequest by where it was declared in the root
// manifest.
type Hint int

// Recognized hints, matching the package manager's dependency categories.
const (
	HintNone Hint = iota
	HintDev
	HintOptional
)

// DependencyRequest is (pattern, registry, hint, optional), exactly as
// declared against the root manifest.
type DependencyRequest struct {
	Pattern  string
	Registry string
	Hint     Hint
	Optional bool
}

// Ref is a stable index into the resolver's manifest vector. Manifest
// values carry a Ref rather than a pointer, so the resolver can own its
// vector of reference records without cyclic ownership.
type Ref int

// ResolvedManifest is the resolver's back-reference record for one resolved
// package, plus the coordinates needed to address it.
type ResolvedManifest struct {
	Ref      Ref
	Name     string
	Version  string
	Registry string
	Ignore   bool
	// Requests lists the patterns/requesters that resolved to this
	// manifest. IgnoreMarker inspects its length; exactly one means "only
	// the root requests this."
	Requests []string
}

// Resolver owns dependency
// resolution for the duration of one install.
type Resolver interface {
	// Init resolves requests, honoring flat mode.
	Init(ctx context.Context, requests []DependencyRequest, flat bool) error

	// AllDependencyNamesByLevelOrder returns every distinct package name
	// reachable from patterns, in breadth-first order over the graph
	// projected to names. The Flattener traverses in this order.
	AllDependencyNamesByLevelOrder(patterns []string) []string

	// AllInfoForPackageName returns every resolved manifest for name.
	AllInfoForPackageName(name string) []*ResolvedManifest

	// PatternsByPackage returns every pattern that resolved to name.
	PatternsByPackage(name string) []string

	// CollapseAllVersionsOfPackage forces every pattern for name onto
	// version, returning a representative pattern.
	CollapseAllVersionsOfPackage(name, version string) (string, error)

	// ResolvedPattern returns the manifest a pattern resolved to, if any.
	ResolvedPattern(pattern string) (*ResolvedManifest, bool)

	// StrictResolvedPattern is ResolvedPattern but returns an error instead
	// of ok=false; used where a missing resolution is a programming error.
	StrictResolvedPattern(pattern string) (*ResolvedManifest, error)

	// Manifests returns every resolved manifest known to the resolver.
	Manifests() []*ResolvedManifest

	// UpdateManifest replaces the manifest addressed by ref.
	UpdateManifest(ref Ref, m *ResolvedManifest) error

	// Patterns returns the full pattern -> manifest mapping.
	Patterns() map[string]*ResolvedManifest

	// UsedRegistries returns the distinct registries touched by resolution.
	UsedRegistries() []string

	// IsExoticPattern reports whether pattern addresses a non-registry
	// resolver (git/URL/file), opaque to the orchestrator beyond this bit.
	IsExoticPattern(pattern string) bool
}

// Fetcher materializes every resolved package into the local package cache.
type Fetcher interface {
	Init(ctx context.Context, manifests []*ResolvedManifest) error
}

// Compatibility enforces engine/platform checks over resolved manifests.
type Compatibility interface {
	Init(ctx context.Context, manifests []*ResolvedManifest, ignorePlatform, ignoreEngines bool) error
}

// Linker materializes the on-disk dependency tree for the given top-level
// patterns.
type Linker interface {
	Init(ctx context.Context, topLevelPatterns []string, linkDuplicates bool) error
}

// ScriptRunner runs each package's lifecycle scripts.
type ScriptRunner interface {
	Init(ctx context.Context, topLevelPatterns []string) error
}

// IntegrityCheckResult is the outcome of IntegrityChecker.Check.
type IntegrityCheckResult struct {
	IntegrityMatches    bool
	IntegrityFileMissing bool
	MissingPatterns      []string
}

// IntegrityChecker owns the on-disk integrity witness that backs Bailout.
type IntegrityChecker interface {
	Check(ctx context.Context, patterns []string, lockfileCache map[string]LockedReference, flags any) (IntegrityCheckResult, error)
	Save(ctx context.Context, patterns []string, lockImage map[string]LockedReference, flags any, usedRegistries []string) error
	RemoveIntegrityFile(ctx context.Context) error
	// FileExists reports whether an integrity file is currently present on
	// disk, independent of whether its contents match.
	FileExists() bool
}

// LockedReference is one entry of a resolved lockfile: the subset of a
// locked package's coordinates the orchestrator itself inspects.
type LockedReference struct {
	Resolved string
	Version  string
}

// Lockfile is the persisted, canonical pattern -> LockedReference mapping.
type Lockfile interface {
	// GetLocked returns the locked entry for pattern. If ignoreVersion is
	// true, pattern is treated as a bare name.
	GetLocked(pattern string, ignoreVersion bool) (LockedReference, bool)
	// GetLockfile renders an image of the lockfile restricted to the given
	// resolver patterns, for Persister to compare/serialize.
	GetLockfile(resolverPatterns map[string]*ResolvedManifest) map[string]LockedReference
	// Cache is the as-loaded lockfile content, nil if none was loaded.
	Cache() map[string]LockedReference
	// Exists reports whether a lockfile file is present on disk.
	Exists() bool
	// Write serializes image to disk, preserving the existing file's
	// newline style if one is present.
	Write(image map[string]LockedReference) error
}

// SelectOption is one offered choice in a Reporter.Select prompt.
type SelectOption struct {
	Label string
	Value string
}

// Reporter is the orchestrator's sole interactive/reporting surface.
type Reporter interface {
	Step(current, total int, message string)
	Success(message string)
	Warn(message string)
	Info(message string)
	Command(message string)
	Lang(key string, args ...any) string
	// Select prompts the user to choose among options, returning the
	// chosen Value.
	Select(message, answerPrompt string, options []SelectOption) (string, error)
}

// Registry names a recognized root-manifest source: its manifest filename,
// the on-disk folder it installs into, and the deps.dev ecosystem its
// packages belong to (used to pick the resolver's version-range grammar).
type Registry struct {
	Name          string
	ManifestFile  string
	InstallFolder string
	Ecosystem     resolve.System
}

// Workspace is the Config collaborator: cwd, registries, and
// the manifest/lockfile/lifecycle I/O the orchestrator delegates rather
// than performs itself.
type Workspace interface {
	Cwd() string
	Production() bool
	Registries() []Registry
	GetOption(name string) (string, bool)
	GetOfflineMirrorPath() string
	PruneOfflineMirror(lockImage map[string]LockedReference) error
	ModulesFolder() string
	GenerateHardModulePath(m *ResolvedManifest) string
	ExecuteLifecycleScript(ctx context.Context, phase string) error
	SaveRootManifests(resolutions map[string]map[string]string) error
}

// Errors surfaced by the orchestrator.
var (
	ErrFrozenLockfileViolation  = errors.New("frozen lockfile violation")
	ErrPositionalArgsNotAllowed = errors.New("positional arguments not allowed for install")
	ErrManifestParse            = errors.New("manifest parse error")
	ErrCollaboratorFailure       = errors.New("collaborator failure")
	ErrLifecycleScriptFailure    = errors.New("lifecycle script failure")
)

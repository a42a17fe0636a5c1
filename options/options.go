// Package options holds the configuration and flag types consumed by the
// install orchestrator.
package options

// RawFlags is the untyped flag bag as parsed off the command line, before
// FlagNormalizer folds it together with persisted Config. Every field
// mirrors a recognized CLI flag or save-shape switch.
type RawFlags struct {
	Har             bool
	IgnorePlatform  bool
	IgnoreEngines   bool
	IgnoreScripts   bool
	IgnoreOptional  bool
	Force           bool
	Flat            bool
	LinkDuplicates  bool
	CheckFiles      bool
	Lockfile        bool
	PureLockfile    bool
	FrozenLockfile  bool
	SkipIntegrity   bool

	Peer     bool
	Dev      bool
	Optional bool
	Exact    bool
	Tilde    bool
}

// DefaultRawFlags returns the flag defaults used when nothing is passed on
// the command line: lockfile writing is on, everything else off.
func DefaultRawFlags() RawFlags {
	return RawFlags{Lockfile: true}
}

// Config is the persisted, repository-local configuration FlagNormalizer
// folds into EffectiveFlags, and the source of Config.getOption lookups
// elsewhere in the pipeline. Any of the five forcing options, if truthy,
// forces its corresponding effective flag on regardless of RawFlags.
type Config struct {
	IgnoreScripts  bool `toml:"ignore-scripts"`
	IgnorePlatform bool `toml:"ignore-platform"`
	IgnoreEngines  bool `toml:"ignore-engines"`
	IgnoreOptional bool `toml:"ignore-optional"`
	Force          bool `toml:"force"`

	Production             bool   `toml:"production"`
	OfflineMirrorPath      string `toml:"offline-mirror"`
	OfflineMirrorPruning   bool   `toml:"offline-mirror-pruning"`
	DisableSelfUpdateCheck bool   `toml:"disable-self-update-check"`

	// Cwd is the working directory the orchestrator runs in. It is not part
	// of the persisted file; callers set it after loading Config from disk.
	Cwd string `toml:"-"`
}

// EffectiveFlags is the single immutable record every other component reads
// flags through. It is produced once per invocation by FlagNormalizer.
type EffectiveFlags struct {
	Har             bool
	IgnorePlatform  bool
	IgnoreEngines   bool
	IgnoreScripts   bool
	IgnoreOptional  bool
	Force           bool
	Flat            bool
	LinkDuplicates  bool
	CheckFiles      bool

	Lockfile       bool
	PureLockfile   bool
	FrozenLockfile bool
	SkipIntegrity  bool

	// Save-shape, carried for CLI-surface parity with the save-* flag
	// family; install only echoes them into the "use add" suggestion it
	// gives when handed positional arguments.
	Peer     bool
	Dev      bool
	Optional bool
	Exact    bool
	Tilde    bool
}

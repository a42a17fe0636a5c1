// Package flags implements FlagNormalizer: folding raw invocation flags with
// persisted configuration into a canonical EffectiveFlags record.
package flags

import "github.com/lockstep-dev/lockstep/options"

// Normalize folds raw into an EffectiveFlags record, then applies cfg's
// forcing options. Forcing is monotone: a truthy forcing option in cfg
// always wins, a falsy one never overrides a truthy raw flag.
//
// Normalize has no I/O and cannot fail.
func Normalize(raw options.RawFlags, cfg options.Config) options.EffectiveFlags {
	f := options.EffectiveFlags{
		Har:            raw.Har,
		IgnorePlatform: raw.IgnorePlatform,
		IgnoreEngines:  raw.IgnoreEngines,
		IgnoreScripts:  raw.IgnoreScripts,
		IgnoreOptional: raw.IgnoreOptional,
		Force:          raw.Force,
		Flat:           raw.Flat,
		LinkDuplicates: raw.LinkDuplicates,
		CheckFiles:     raw.CheckFiles,
		Lockfile:       raw.Lockfile,
		PureLockfile:   raw.PureLockfile,
		FrozenLockfile: raw.FrozenLockfile,
		SkipIntegrity:  raw.SkipIntegrity,
		Peer:           raw.Peer,
		Dev:            raw.Dev,
		Optional:       raw.Optional,
		Exact:          raw.Exact,
		Tilde:          raw.Tilde,
	}

	if cfg.IgnoreScripts {
		f.IgnoreScripts = true
	}
	if cfg.IgnorePlatform {
		f.IgnorePlatform = true
	}
	if cfg.IgnoreEngines {
		f.IgnoreEngines = true
	}
	if cfg.IgnoreOptional {
		f.IgnoreOptional = true
	}
	if cfg.Force {
		f.Force = true
	}

	return f
}

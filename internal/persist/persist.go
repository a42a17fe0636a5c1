// Package persist implements Persister: saving the lockfile (only when
// changed) and the integrity witness, and pruning the offline mirror.
package persist

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/lockstep-dev/lockstep/contracts"
	"github.com/lockstep-dev/lockstep/options"
)

// Persister saves the lockfile and integrity witness at the end of an
// install, skipping the lockfile write when nothing actually changed.
type Persister struct {
	Lockfile  contracts.Lockfile
	Integrity contracts.IntegrityChecker
	Resolver  contracts.Resolver
	Workspace contracts.Workspace
	Flags     options.EffectiveFlags
}

// Result reports what SaveLockfileAndIntegrity actually did.
type Result struct {
	LockfileWritten bool
}

// SaveLockfileAndIntegrity prunes the offline mirror, saves the integrity
// witness, and writes the lockfile unless it would be unchanged.
func (p Persister) SaveLockfileAndIntegrity(ctx context.Context, patterns []string) (Result, error) {
	if !p.Flags.Lockfile || p.Flags.PureLockfile {
		return Result{}, nil
	}

	candidate := p.Lockfile.GetLockfile(p.Resolver.Patterns())

	if p.Workspace != nil && p.Workspace.GetOfflineMirrorPath() != "" {
		if err := p.Workspace.PruneOfflineMirror(candidate); err != nil {
			return Result{}, fmt.Errorf("%w: pruning offline mirror: %v", contracts.ErrCollaboratorFailure, err)
		}
	}

	if err := p.Integrity.Save(ctx, patterns, candidate, p.Flags, p.Resolver.UsedRegistries()); err != nil {
		return Result{}, fmt.Errorf("%w: saving integrity witness: %v", contracts.ErrCollaboratorFailure, err)
	}

	if p.canSkipWrite(patterns, candidate) {
		return Result{}, nil
	}

	if err := p.Lockfile.Write(candidate); err != nil {
		return Result{}, fmt.Errorf("%w: writing lockfile: %v", contracts.ErrCollaboratorFailure, err)
	}
	return Result{LockfileWritten: true}, nil
}

// canSkipWrite reports whether every pattern's resolved reference already
// matches what's on disk, so writing the file again would be a no-op.
func (p Persister) canSkipWrite(patterns []string, candidate map[string]contracts.LockedReference) bool {
	if len(patterns) == 0 || p.Flags.Force {
		return false
	}
	existing := p.Lockfile.Cache()
	if existing == nil {
		return false
	}
	for _, pattern := range patterns {
		have, ok := existing[pattern]
		if !ok {
			return false
		}
		want, ok := candidate[pattern]
		if !ok || have.Resolved != want.Resolved {
			return false
		}
	}
	return true
}

// PruneOfflineMirror applies the mirror-prune rule directly over a lockfile
// image, for callers (such as this package's tests) that need it without a
// full SaveLockfileAndIntegrity pass.
func PruneOfflineMirror(mirrorFiles []string, lockImage map[string]contracts.LockedReference) []string {
	required := make(map[string]struct{}, len(lockImage))
	for _, entry := range lockImage {
		required[basenameStrippingHash(entry.Resolved)] = struct{}{}
	}

	var toDelete []string
	for _, f := range mirrorFiles {
		if _, ok := required[basenameStrippingHash(f)]; !ok {
			toDelete = append(toDelete, f)
		}
	}
	return toDelete
}

func basenameStrippingHash(resolved string) string {
	if idx := strings.IndexByte(resolved, '#'); idx >= 0 {
		resolved = resolved[:idx]
	}
	return path.Base(resolved)
}

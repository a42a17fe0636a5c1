// Package link provides a reference contracts.Linker. Linker decides which
// manifests get materialized and under what directory key, and hands each
// write to a Writer; FsWriter is the filesystem one (hardlink, falling back
// to copy). No hoisting is done.
package link

import (
	"context"
	"fmt"

	"github.com/lockstep-dev/lockstep/contracts"
)

// Writer materializes one resolved package under dir (a path segment
// relative to the modules folder, e.g. "left-pad" or "left-pad@1.0.0").
type Writer interface {
	Link(ctx context.Context, dir string, m *contracts.ResolvedManifest) error
}

// Linker is a reference contracts.Linker.
type Linker struct {
	Resolver contracts.Resolver
	Writer   Writer
}

// Init implements contracts.Linker. Every top-level pattern is linked at
// its bare package name; when linkDuplicates is set, every other
// non-ignored resolved manifest not already linked is additionally
// materialized at "<name>@<version>" so duplicate versions remain
// reachable by nested requesters.
func (l Linker) Init(ctx context.Context, topLevelPatterns []string, linkDuplicates bool) error {
	if l.Writer == nil {
		return nil
	}

	linked := make(map[contracts.Ref]struct{})
	for _, pattern := range topLevelPatterns {
		m, err := l.Resolver.StrictResolvedPattern(pattern)
		if err != nil {
			return fmt.Errorf("%w: %v", contracts.ErrCollaboratorFailure, err)
		}
		if m.Ignore {
			continue
		}
		if err := l.Writer.Link(ctx, m.Name, m); err != nil {
			return fmt.Errorf("%w: linking %s@%s: %v", contracts.ErrCollaboratorFailure, m.Name, m.Version, err)
		}
		linked[m.Ref] = struct{}{}
	}

	if !linkDuplicates {
		return nil
	}
	for _, m := range l.Resolver.Manifests() {
		if m.Ignore {
			continue
		}
		if _, ok := linked[m.Ref]; ok {
			continue
		}
		dir := m.Name + "@" + m.Version
		if err := l.Writer.Link(ctx, dir, m); err != nil {
			return fmt.Errorf("%w: linking duplicate %s@%s: %v", contracts.ErrCollaboratorFailure, m.Name, m.Version, err)
		}
		linked[m.Ref] = struct{}{}
	}
	return nil
}

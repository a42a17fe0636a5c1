// Package fetch provides a reference contracts.Fetcher: a bounded-
// concurrency materializer over a pluggable package source, plus
// TarballSource, a Source that extracts local .tgz archives. Network
// transport and the offline mirror are not handled here. Fetcher owns the
// concurrency shape the orchestrator expects its fetcher to have: the
// orchestrator itself stays single-threaded, but the collaborator it awaits
// may not.
package fetch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lockstep-dev/lockstep/contracts"
)

// Source materializes one resolved package into the local cache (see
// TarballSource for the archive-extracting one in this package); Fetcher
// only sequences calls to it.
type Source interface {
	Fetch(ctx context.Context, m *contracts.ResolvedManifest) error
}

// Fetcher is a reference contracts.Fetcher.
type Fetcher struct {
	Source Source
	// Concurrency bounds how many Source.Fetch calls run at once. Zero
	// means unbounded (errgroup.Group's default).
	Concurrency int
}

// Init implements contracts.Fetcher, fetching every non-ignored manifest
// concurrently and returning the first error encountered.
func (f Fetcher) Init(ctx context.Context, manifests []*contracts.ResolvedManifest) error {
	if f.Source == nil {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	if f.Concurrency > 0 {
		g.SetLimit(f.Concurrency)
	}

	for _, m := range manifests {
		if m.Ignore {
			continue
		}
		m := m
		g.Go(func() error {
			if err := f.Source.Fetch(ctx, m); err != nil {
				return fmt.Errorf("fetching %s@%s: %w", m.Name, m.Version, err)
			}
			return nil
		})
	}
	return g.Wait()
}

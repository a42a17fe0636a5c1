// Package hydrate implements Hydrate: a read-only variant of the install
// pipeline for tools that only want the resolved dependency graph, never
// touching the working directory.
package hydrate

import (
	"context"
	"fmt"

	"github.com/lockstep-dev/lockstep/contracts"
	lockstepfs "github.com/lockstep-dev/lockstep/fs"
	"github.com/lockstep-dev/lockstep/internal/flatten"
	"github.com/lockstep-dev/lockstep/internal/ignore"
	"github.com/lockstep-dev/lockstep/internal/request"
)

// Hydrator resolves a root manifest the same way the install pipeline does,
// but stops before any collaborator that would mutate the working
// directory: no link, no scripts, no lockfile write, and no fetch unless
// Fetcher is set.
//
// Fetcher and Compatibility are optional: some callers want compatibility
// warnings or a warmed package cache alongside the resolved graph, most
// don't.
type Hydrator struct {
	Collector     request.Collector
	Disambiguator flatten.Disambiguator
	IgnoreGlobs   []string

	Fetcher       contracts.Fetcher
	Compatibility contracts.Compatibility

	Flat           bool
	IgnoreUnused   bool
	IgnorePlatform bool
	IgnoreEngines  bool
}

// Result is what Hydrate produces: the resolved dependency graph,
// addressable the same way a completed install's would be.
type Result struct {
	Resolver         contracts.Resolver
	TopLevelPatterns []string
	Manifest         request.Result
}

// Hydrate collects requests from fsys, resolves them, optionally flattens,
// and marks ignored patterns — all without writing anything.
func (h Hydrator) Hydrate(ctx context.Context, fsys lockstepfs.FS, excludePatterns []string) (Result, error) {
	collected, err := h.Collector.Collect(fsys, excludePatterns, h.IgnoreUnused)
	if err != nil {
		return Result{}, err
	}
	// A root manifest declaring "flat": true forces flat mode on, the same
	// as the --flat CLI flag.
	flat := h.Flat || collected.Manifest.Flat

	resolver := h.Collector.Resolver
	if err := resolver.Init(ctx, collected.Requests, flat); err != nil {
		return Result{}, fmt.Errorf("%w: resolver init: %v", contracts.ErrCollaboratorFailure, err)
	}

	topLevelPatterns := collected.Patterns
	if flat {
		f := flatten.Flattener{Resolver: resolver, Disambiguator: h.Disambiguator}
		if _, err := f.Flatten(topLevelPatterns, collected.Resolutions); err != nil {
			return Result{}, err
		}
	}

	marker := ignore.Marker{Resolver: resolver, GlobPatterns: h.IgnoreGlobs}
	if err := marker.Mark(collected.IgnorePatterns); err != nil {
		return Result{}, err
	}

	if h.Fetcher != nil {
		if err := h.Fetcher.Init(ctx, resolver.Manifests()); err != nil {
			return Result{}, fmt.Errorf("%w: fetcher init: %v", contracts.ErrCollaboratorFailure, err)
		}
	}
	if h.Compatibility != nil {
		if err := h.Compatibility.Init(ctx, resolver.Manifests(), h.IgnorePlatform, h.IgnoreEngines); err != nil {
			return Result{}, fmt.Errorf("%w: compatibility init: %v", contracts.ErrCollaboratorFailure, err)
		}
	}

	return Result{
		Resolver:         resolver,
		TopLevelPatterns: topLevelPatterns,
		Manifest:         collected,
	}, nil
}

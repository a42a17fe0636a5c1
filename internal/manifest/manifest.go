// Package manifest defines the per-registry root manifest shape the
// RequestCollector parses, and the Reader interface each registry
// implements to produce one.
package manifest

import "github.com/lockstep-dev/lockstep/fs"

// RootManifest is a parsed root manifest, normalized to a common shape
// regardless of which registry produced it.
type RootManifest struct {
	Dependencies         map[string]string
	DevDependencies      map[string]string
	OptionalDependencies map[string]string
	// Resolutions pins a package name to an exact version, aggregated
	// across all parsed root manifests.
	Resolutions map[string]string
	// Flat, if true, forces EffectiveFlags.Flat on.
	Flat bool
}

// Reader parses a registry's root manifest file.
type Reader interface {
	// Read parses the manifest at path within fsys into a RootManifest.
	Read(fsys fs.FS, path string) (RootManifest, error)
}

// Merge folds other's dependency maps and resolutions into r, used when a
// workspace has more than one manifest contributing to the same install
// (e.g. a workspace root plus a package within it). The orchestrator itself
// only ever reads one manifest per invocation (first-registry-wins), but
// Merge is shared by Reader implementations that synthesize a RootManifest
// from multiple files on disk (npm workspaces, pnpm workspace.yaml).
func Merge(r RootManifest, other RootManifest) RootManifest {
	out := RootManifest{
		Dependencies:         mergeMaps(r.Dependencies, other.Dependencies),
		DevDependencies:      mergeMaps(r.DevDependencies, other.DevDependencies),
		OptionalDependencies: mergeMaps(r.OptionalDependencies, other.OptionalDependencies),
		Resolutions:          mergeMaps(r.Resolutions, other.Resolutions),
		Flat:                 r.Flat || other.Flat,
	}
	return out
}

func mergeMaps(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

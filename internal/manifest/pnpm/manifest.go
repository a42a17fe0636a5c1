// Package pnpm reads the second recognized registry's root manifest: a
// YAML file, as an alternative to npm's package.json. Its presence
// alongside a package.json in the same directory is a real scenario:
// only the first registry in enumeration order is consulted.
package pnpm

import (
	"fmt"

	"gopkg.in/yaml.v3"

	lockstepfs "github.com/lockstep-dev/lockstep/fs"
	"github.com/lockstep-dev/lockstep/internal/manifest"
)

// Filename is the manifest filename this registry recognizes.
const Filename = "lockstep-manifest.yaml"

type yamlManifest struct {
	Dependencies         map[string]string `yaml:"dependencies"`
	DevDependencies      map[string]string `yaml:"devDependencies"`
	OptionalDependencies map[string]string `yaml:"optionalDependencies"`
	Resolutions          map[string]string `yaml:"resolutions"`
	Flat                 bool              `yaml:"flat"`
}

// Reader reads lockstep-manifest.yaml root manifests.
type Reader struct{}

// Read implements manifest.Reader.
func (Reader) Read(fsys lockstepfs.FS, path string) (manifest.RootManifest, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return manifest.RootManifest{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var m yamlManifest
	if err := yaml.NewDecoder(f).Decode(&m); err != nil {
		return manifest.RootManifest{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	return manifest.RootManifest{
		Dependencies:         m.Dependencies,
		DevDependencies:      m.DevDependencies,
		OptionalDependencies: m.OptionalDependencies,
		Resolutions:          m.Resolutions,
		Flat:                 m.Flat,
	}, nil
}

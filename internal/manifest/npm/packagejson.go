// Package npm reads package.json-style root manifests.
package npm

import (
	"fmt"

	"github.com/tidwall/gjson"

	lockstepfs "github.com/lockstep-dev/lockstep/fs"
	"github.com/lockstep-dev/lockstep/internal/manifest"
)

// Filename is the manifest filename this registry recognizes.
const Filename = "package.json"

// Reader reads package.json root manifests.
type Reader struct{}

// Read implements manifest.Reader. It uses gjson rather than a full struct
// decode so unrelated manifest fields (scripts, engines, etc., consulted by
// other collaborators) are never silently dropped by a round-trip through
// an incomplete Go struct.
func (Reader) Read(fsys lockstepfs.FS, path string) (manifest.RootManifest, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return manifest.RootManifest{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return manifest.RootManifest{}, fmt.Errorf("stat %s: %w", path, err)
	}
	buf := make([]byte, info.Size())
	if _, err := f.Read(buf); err != nil {
		return manifest.RootManifest{}, fmt.Errorf("reading %s: %w", path, err)
	}

	if !gjson.ValidBytes(buf) {
		return manifest.RootManifest{}, fmt.Errorf("%s: invalid json", path)
	}
	root := gjson.ParseBytes(buf)

	return manifest.RootManifest{
		Dependencies:         stringMap(root.Get("dependencies")),
		DevDependencies:      stringMap(root.Get("devDependencies")),
		OptionalDependencies: stringMap(root.Get("optionalDependencies")),
		Resolutions:          stringMap(root.Get("resolutions")),
		Flat:                 root.Get("flat").Bool(),
	}, nil
}

func stringMap(v gjson.Result) map[string]string {
	if !v.IsObject() {
		return nil
	}
	out := make(map[string]string)
	v.ForEach(func(key, val gjson.Result) bool {
		out[key.String()] = val.String()
		return true
	})
	return out
}

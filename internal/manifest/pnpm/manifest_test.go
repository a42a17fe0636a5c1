package pnpm_test

import (
	"testing"
	"testing/fstest"

	"github.com/lockstep-dev/lockstep/internal/manifest/pnpm"
)

func TestReadParsesDependencyFields(t *testing.T) {
	fsys := fstest.MapFS{
		pnpm.Filename: &fstest.MapFile{Data: []byte(`
dependencies:
  left-pad: ^1.0.0
devDependencies:
  tap: ^14.0.0
optionalDependencies:
  fsevents: ^2.0.0
resolutions:
  left-pad: 1.3.0
flat: true
`)},
	}

	m, err := pnpm.Reader{}.Read(fsys, pnpm.Filename)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if m.Dependencies["left-pad"] != "^1.0.0" {
		t.Errorf("Dependencies[left-pad] = %q, want ^1.0.0", m.Dependencies["left-pad"])
	}
	if m.DevDependencies["tap"] != "^14.0.0" {
		t.Errorf("DevDependencies[tap] = %q, want ^14.0.0", m.DevDependencies["tap"])
	}
	if !m.Flat {
		t.Error("Flat = false, want true")
	}
}

func TestReadRejectsMalformedYAML(t *testing.T) {
	fsys := fstest.MapFS{
		pnpm.Filename: &fstest.MapFile{Data: []byte("dependencies: [un, closed")},
	}

	if _, err := pnpm.Reader{}.Read(fsys, pnpm.Filename); err == nil {
		t.Fatal("Read() error = nil, want an error for malformed yaml")
	}
}

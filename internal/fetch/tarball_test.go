package fetch_test

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/lockstep-dev/lockstep/contracts"
	"github.com/lockstep-dev/lockstep/internal/fetch"
)

func writeTarball(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	tw := tar.NewWriter(zw)
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}); err != nil {
			t.Fatalf("WriteHeader() error = %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close() error = %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip Close() error = %v", err)
	}
}

func TestTarballSourceExtractsFiles(t *testing.T) {
	cacheDir := t.TempDir()
	destRoot := t.TempDir()
	writeTarball(t, filepath.Join(cacheDir, "a-1.0.0.tgz"), map[string]string{
		"package/package.json": `{"name":"a"}`,
	})

	src := fetch.TarballSource{
		CacheDir: cacheDir,
		DestDir:  func(m *contracts.ResolvedManifest) string { return filepath.Join(destRoot, m.Name) },
	}

	m := &contracts.ResolvedManifest{Name: "a", Version: "1.0.0"}
	if err := src.Fetch(context.Background(), m); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(destRoot, "a", "package", "package.json"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Contains(got, []byte(`"name":"a"`)) {
		t.Fatalf("extracted content = %q, want it to contain the package name", got)
	}
}

func TestTarballSourceMissingArchiveErrors(t *testing.T) {
	src := fetch.TarballSource{
		CacheDir: t.TempDir(),
		DestDir:  func(m *contracts.ResolvedManifest) string { return t.TempDir() },
	}
	m := &contracts.ResolvedManifest{Name: "missing", Version: "1.0.0"}
	if err := src.Fetch(context.Background(), m); err == nil {
		t.Fatal("Fetch() = nil error, want a failure for a missing cached tarball")
	}
}

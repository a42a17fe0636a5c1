package fetch

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/lockstep-dev/lockstep/contracts"
)

// TarballSource is a reference Source: packages live as
// "<cacheDir>/<name>-<version>.tgz" and are extracted into a per-package
// directory under destDir, keyed by the workspace's own module path
// convention.
type TarballSource struct {
	CacheDir string
	DestDir  func(m *contracts.ResolvedManifest) string
}

// Fetch implements Source by extracting the cached tarball for m.
func (t TarballSource) Fetch(ctx context.Context, m *contracts.ResolvedManifest) error {
	archivePath := filepath.Join(t.CacheDir, fmt.Sprintf("%s-%s.tgz", m.Name, m.Version))
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening cached tarball: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer zr.Close()

	destDir := t.DestDir(m)
	tr := tar.NewReader(zr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}

		cleanName := filepath.Clean(header.Name)
		if cleanName == "." {
			continue
		}
		targetPath := filepath.Join(destDir, cleanName)
		if !strings.HasPrefix(targetPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("creating directory %s: %w", targetPath, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return fmt.Errorf("creating parent directory for %s: %w", targetPath, err)
			}
			out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("creating %s: %w", targetPath, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("writing %s: %w", targetPath, err)
			}
			out.Close()
		}
	}
}

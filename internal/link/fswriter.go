package link

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lockstep-dev/lockstep/contracts"
)

// FsWriter is the default Writer: it materializes a package's fetched
// source directory under ModulesFolder/dir, preferring a hardlink and
// falling back to a copy when the cache and the modules folder live on
// different filesystems (hardlink cannot cross a device boundary).
type FsWriter struct {
	// SourceDir returns the directory fetch already populated for m.
	SourceDir func(m *contracts.ResolvedManifest) string
	// ModulesFolder is the root the package tree is materialized under,
	// e.g. "<cwd>/node_modules".
	ModulesFolder string
}

// Link implements Writer.
func (w FsWriter) Link(ctx context.Context, dir string, m *contracts.ResolvedManifest) error {
	src := w.SourceDir(m)
	dst := filepath.Join(w.ModulesFolder, dir)

	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("clearing %s: %w", dst, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}

	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if err := os.Link(path, target); err == nil {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return nil
}

// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fs provides the virtual filesystem interface the orchestrator and
// its collaborators use to access a working directory, plus small helpers
// shared by the manifest and lockfile readers.
package fs

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FS is a filesystem interface that allows the opening of files, reading of
// directories, and performing stat on files.
//
// FS implementations MUST implement io.ReaderAt for opened files to enable
// random access.
type FS interface {
	fs.FS
	fs.ReadDirFS
	fs.StatFS
}

// DirFS returns an FS implementation that accesses the real filesystem at the given root.
func DirFS(root string) FS {
	return os.DirFS(root).(FS)
}

// RootAndRelative returns a FS rooted at the filesystem root (or Windows
// volume root) containing path, and path expressed relative to that root.
//
// A manifest may reference a file outside its own directory (e.g. a Maven
// parent POM one level up), so the working directory itself can't be used
// as the FS root: a DirFS rooted there cannot escape it. Rooting at the
// volume instead lets every caller open whatever relative path it is given.
func RootAndRelative(path string) (FS, string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}

	root := filepath.VolumeName(absPath) + string(filepath.Separator)
	relPath, err := filepath.Rel(root, absPath)
	if err != nil {
		return nil, "", err
	}
	relPath = filepath.ToSlash(relPath)

	return DirFS(root), relPath, nil
}

// NewReaderAt converts an io.Reader into an io.ReaderAt.
func NewReaderAt(ioReader io.Reader) (io.ReaderAt, error) {
	r, ok := ioReader.(io.ReaderAt)
	if ok {
		return r, nil
	}

	// Fallback: In case ioReader does not implement ReadAt, we use a reader on byte buffer instead, which
	// supports ReadAt.
	buff := bytes.NewBuffer([]byte{})
	_, err := io.Copy(buff, ioReader)
	if err != nil {
		return nil, fmt.Errorf("io.Copy(): %w", err)
	}

	return bytes.NewReader(buff.Bytes()), nil
}

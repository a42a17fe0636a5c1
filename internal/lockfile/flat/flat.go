// Package flat is a reference Lockfile codec: a flat JSON object mapping
// pattern -> {resolved, version}, read and patched with gjson/sjson so
// that writing it back preserves the file's existing newline style
// instead of a full pretty-print re-encode.
package flat

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/lockstep-dev/lockstep/contracts"
)

// Filename is the lockfile's on-disk name.
const Filename = "lockstep-lock.json"

// Codec is a reference contracts.Lockfile.
type Codec struct {
	writePath string
	raw       []byte
	cache     map[string]contracts.LockedReference
	existed   bool
	crlf      bool
}

// Load reads name out of fsys, if present, and remembers dir/name as the
// real OS path Write will target (fsys need not be rooted at dir, e.g. an
// in-memory fstest.MapFS in tests). A missing file is not an error: Cache()
// returns nil and Exists() returns false, matching an install with no
// prior lockfile.
func Load(fsys fs.FS, dir, name string) (*Codec, error) {
	c := &Codec{writePath: filepath.Join(dir, name)}

	f, err := fsys.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	buf := make([]byte, info.Size())
	if _, err := f.Read(buf); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	c.raw = buf
	c.existed = true
	c.crlf = strings.Contains(string(buf), "\r\n")
	c.cache = make(map[string]contracts.LockedReference)
	if gjson.ValidBytes(buf) {
		gjson.ParseBytes(buf).ForEach(func(pattern, entry gjson.Result) bool {
			c.cache[pattern.String()] = contracts.LockedReference{
				Resolved: entry.Get("resolved").String(),
				Version:  entry.Get("version").String(),
			}
			return true
		})
	}
	return c, nil
}

// GetLocked implements contracts.Lockfile. When ignoreVersion is set,
// pattern is a bare name and any cache entry whose own bare name matches
// is returned.
func (c *Codec) GetLocked(pattern string, ignoreVersion bool) (contracts.LockedReference, bool) {
	if c.cache == nil {
		return contracts.LockedReference{}, false
	}
	if !ignoreVersion {
		v, ok := c.cache[pattern]
		return v, ok
	}
	for key, v := range c.cache {
		if bareName(key) == pattern {
			return v, true
		}
	}
	return contracts.LockedReference{}, false
}

// GetLockfile implements contracts.Lockfile: a reference rendering of the
// current resolver pattern set as locked references.
func (c *Codec) GetLockfile(resolverPatterns map[string]*contracts.ResolvedManifest) map[string]contracts.LockedReference {
	out := make(map[string]contracts.LockedReference, len(resolverPatterns))
	for pattern, m := range resolverPatterns {
		out[pattern] = contracts.LockedReference{
			Resolved: m.Name + "-" + m.Version + ".tgz",
			Version:  m.Version,
		}
	}
	return out
}

// Cache implements contracts.Lockfile.
func (c *Codec) Cache() map[string]contracts.LockedReference { return c.cache }

// Exists implements contracts.Lockfile.
func (c *Codec) Exists() bool { return c.existed }

// Write implements contracts.Lockfile. It builds the document from an empty
// object with sjson, one entry per pattern of image, and re-flows the
// result to the file's pre-existing newline style; other top-level fields
// of the existing file are not kept.
func (c *Codec) Write(image map[string]contracts.LockedReference) error {
	doc := "{}"
	var err error
	for _, pattern := range sortedPatterns(image) {
		entry := image[pattern]
		doc, err = sjson.Set(doc, gjsonPath(pattern)+".resolved", entry.Resolved)
		if err != nil {
			return fmt.Errorf("encoding lockfile entry %q: %w", pattern, err)
		}
		doc, err = sjson.Set(doc, gjsonPath(pattern)+".version", entry.Version)
		if err != nil {
			return fmt.Errorf("encoding lockfile entry %q: %w", pattern, err)
		}
	}

	out := doc + "\n"
	if c.crlf {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	if err := os.WriteFile(c.writePath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", c.writePath, err)
	}

	c.cache = image
	c.existed = true
	return nil
}

// gjsonPath escapes a pattern for use as an sjson path segment: patterns
// may contain "." and "@", neither of which sjson treats as path
// metacharacters except ".".
func gjsonPath(pattern string) string {
	return strings.ReplaceAll(pattern, ".", "\\.")
}

func sortedPatterns(image map[string]contracts.LockedReference) []string {
	keys := make([]string, 0, len(image))
	for k := range image {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// bareName strips a trailing "@range", respecting a leading scope
// component, matching internal/request's normalization.
func bareName(pattern string) string {
	search := pattern
	offset := 0
	if strings.HasPrefix(pattern, "@") {
		offset = 1
		search = pattern[1:]
	}
	if idx := strings.Index(search, "@"); idx >= 0 {
		return pattern[:idx+offset]
	}
	return pattern
}

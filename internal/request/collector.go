// Package request implements RequestCollector: walking a root manifest and
// emitting dependency requests tagged by origin.
package request

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	lockstepfs "github.com/lockstep-dev/lockstep/fs"
	"github.com/lockstep-dev/lockstep/contracts"
	"github.com/lockstep-dev/lockstep/internal/manifest"
)

// RegistryReader pairs a recognized registry's identity with the parser
// for its manifest format.
type RegistryReader struct {
	Registry contracts.Registry
	Reader   manifest.Reader
}

// Collector walks registries in enumeration order to build the requests
// for one install.
type Collector struct {
	// Registries is consulted in order; the first whose manifest file
	// exists in fsys wins.
	Registries []RegistryReader
	Lockfile   contracts.Lockfile
	Resolver   contracts.Resolver
	Production bool
	IgnoreOptional bool
}

// Result is RequestCollector's output.
type Result struct {
	Requests             []contracts.DependencyRequest
	Patterns             []string
	UsedPatterns         []string
	IgnorePatterns       []string
	Manifest             manifest.RootManifest
	RootPatternsToOrigin map[string]string
	Resolutions          map[string]string
}

const (
	originDependencies = "dependencies"
	originDev          = "devDependencies"
	originOptional     = "optionalDependencies"
)

// Collect walks Registries in order and builds the request set for an
// install, partitioning used from ignored patterns.
func (c Collector) Collect(fsys lockstepfs.FS, excludePatterns []string, ignoreUnused bool) (Result, error) {
	excludeGlobs := make([]glob.Glob, 0, len(excludePatterns))
	for _, p := range excludePatterns {
		if c.Resolver != nil && c.Resolver.IsExoticPattern(p) {
			continue
		}
		// Patterns without glob metacharacters compile to an exact-match
		// glob, so a bare excluded name still behaves as before.
		g, err := glob.Compile(bareName(p), '/')
		if err != nil {
			continue
		}
		excludeGlobs = append(excludeGlobs, g)
	}
	excluded := func(name string) bool {
		for _, g := range excludeGlobs {
			if g.Match(name) {
				return true
			}
		}
		return false
	}

	var chosen *RegistryReader
	var manifestPath string
	for i := range c.Registries {
		rr := &c.Registries[i]
		path := rr.Registry.ManifestFile
		if _, err := fsys.Stat(path); err != nil {
			continue
		}
		chosen = rr
		manifestPath = path
		break
	}
	if chosen == nil {
		return Result{}, fmt.Errorf("%w: no recognized root manifest found", contracts.ErrManifestParse)
	}

	rm, err := chosen.Reader.Read(fsys, manifestPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", contracts.ErrManifestParse, err)
	}

	res := Result{
		Manifest:             rm,
		RootPatternsToOrigin: make(map[string]string),
		Resolutions:          make(map[string]string, len(rm.Resolutions)),
	}
	for k, v := range rm.Resolutions {
		res.Resolutions[k] = v
	}

	categories := []struct {
		origin string
		deps   map[string]string
		used   func() bool
	}{
		{originDependencies, rm.Dependencies, func() bool { return true }},
		{originDev, rm.DevDependencies, func() bool { return !c.Production }},
		{originOptional, rm.OptionalDependencies, func() bool { return !c.IgnoreOptional }},
	}

	for _, cat := range categories {
		for _, name := range sortedKeys(cat.deps) {
			if excluded(name) {
				continue
			}
			rangeSpec := cat.deps[name]
			used := cat.used()

			if ignoreUnused && !used {
				continue
			}

			pattern := name
			if !c.hasLocked(name) {
				pattern = name + "@" + rangeSpec
			}

			res.Patterns = append(res.Patterns, pattern)
			if used {
				res.UsedPatterns = append(res.UsedPatterns, pattern)
			} else {
				res.IgnorePatterns = append(res.IgnorePatterns, pattern)
			}
			res.RootPatternsToOrigin[pattern] = cat.origin

			hint := contracts.HintNone
			optional := false
			switch cat.origin {
			case originDev:
				hint = contracts.HintDev
			case originOptional:
				hint = contracts.HintOptional
				optional = true
			}
			res.Requests = append(res.Requests, contracts.DependencyRequest{
				Pattern:  pattern,
				Registry: chosen.Registry.Name,
				Hint:     hint,
				Optional: optional,
			})
		}
	}

	return res, nil
}

func (c Collector) hasLocked(name string) bool {
	if c.Lockfile == nil {
		return false
	}
	_, ok := c.Lockfile.GetLocked(name, true)
	return ok
}

// bareName strips a trailing "@range" from pattern, respecting a leading
// scope component (e.g. "@scope/name@^1.0.0" -> "@scope/name").
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

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package resolution provides a reference Resolver implementation backed by
// an in-memory package universe. Real registry I/O and full version-range
// grammars are out of scope; this resolver exists so the orchestrator and
// its tests have a real collaborator to sequence.
package resolution

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"deps.dev/util/resolve"
	"deps.dev/util/semver"

	"github.com/lockstep-dev/lockstep/contracts"
)

// Package is one version of a package known to the universe, along with
// its own dependency ranges.
type Package struct {
	Version      string
	Dependencies map[string]string
}

// Universe is the in-memory stand-in for registry metadata: every known
// version of every package, keyed by name.
type Universe map[string][]Package

// Resolver is a reference implementation of contracts.Resolver.
type Resolver struct {
	Universe Universe
	System   semver.System

	manifests         []*contracts.ResolvedManifest
	byKey             map[string]contracts.Ref // "name@version" -> ref
	patterns          map[string]contracts.Ref
	patternsByPackage map[string][]string
	edges             map[contracts.Ref][]contracts.Ref
	usedRegistries    map[string]struct{}
}

// New returns a Resolver over universe using the npm semver system, the
// only ecosystem this reference implementation resolves ranges for.
func New(universe Universe) *Resolver {
	return &Resolver{Universe: universe, System: semver.NPM}
}

// NewForEcosystem is New, but picks the version-range grammar from a
// registry's deps.dev ecosystem tag. Only NPM is supported by this
// reference resolver; any other ecosystem still falls back to NPM's
// grammar rather than failing, since exact-pin requests (no ranges) work
// under any grammar.
func NewForEcosystem(universe Universe, eco resolve.System) *Resolver {
	var sys semver.System
	switch eco {
	case resolve.NPM:
		sys = semver.NPM
	default:
		sys = semver.NPM
	}
	return &Resolver{Universe: universe, System: sys}
}

// Init implements contracts.Resolver.
func (r *Resolver) Init(_ context.Context, requests []contracts.DependencyRequest, _ bool) error {
	r.manifests = nil
	r.byKey = make(map[string]contracts.Ref)
	r.patterns = make(map[string]contracts.Ref)
	r.patternsByPackage = make(map[string][]string)
	r.edges = make(map[contracts.Ref][]contracts.Ref)
	r.usedRegistries = make(map[string]struct{})

	for _, req := range requests {
		r.usedRegistries[req.Registry] = struct{}{}
		if r.IsExoticPattern(req.Pattern) {
			continue
		}
		name, rangeSpec := splitPattern(req.Pattern)
		ref, err := r.resolveInto(name, rangeSpec, req.Registry, "root")
		if err != nil {
			return fmt.Errorf("%w: %v", contracts.ErrCollaboratorFailure, err)
		}
		r.patterns[req.Pattern] = ref
		r.patternsByPackage[name] = append(r.patternsByPackage[name], req.Pattern)
	}
	return nil
}

// resolveInto resolves (name, rangeSpec), recursively walking its
// dependencies, and records requester as one of its requesters. It returns
// the Ref of the (name, resolved version) entry, reusing an existing entry
// for that exact version if one is already present (so multiple requesters
// of the same version share a single manifest, which is what lets the
// ignore marker's "exactly one requester" rule work).
func (r *Resolver) resolveInto(name, rangeSpec, registry, requester string) (contracts.Ref, error) {
	version, err := r.resolveVersion(name, rangeSpec)
	if err != nil {
		return 0, err
	}
	key := name + "@" + version
	if ref, ok := r.byKey[key]; ok {
		r.addRequester(ref, requester)
		return ref, nil
	}

	ref := contracts.Ref(len(r.manifests))
	m := &contracts.ResolvedManifest{
		Ref:      ref,
		Name:     name,
		Version:  version,
		Registry: registry,
		Requests: []string{requester},
	}
	r.manifests = append(r.manifests, m)
	r.byKey[key] = ref

	var pkg *Package
	for i := range r.Universe[name] {
		if r.Universe[name][i].Version == version {
			pkg = &r.Universe[name][i]
			break
		}
	}
	if pkg == nil {
		return ref, nil
	}
	for _, depName := range sortedDepNames(pkg.Dependencies) {
		depRange := pkg.Dependencies[depName]
		childRef, err := r.resolveInto(depName, depRange, registry, key)
		if err != nil {
			return 0, fmt.Errorf("resolving %s's dependency %s: %w", key, depName, err)
		}
		r.edges[ref] = append(r.edges[ref], childRef)
		editPattern := depName + "@" + depRange
		r.patterns[editPattern] = childRef
		r.patternsByPackage[depName] = appendUnique(r.patternsByPackage[depName], editPattern)
	}
	return ref, nil
}

func (r *Resolver) addRequester(ref contracts.Ref, requester string) {
	m := r.manifests[ref]
	for _, existing := range m.Requests {
		if existing == requester {
			return
		}
	}
	m.Requests = append(m.Requests, requester)
}

func (r *Resolver) resolveVersion(name, rangeSpec string) (string, error) {
	versions := r.Universe[name]
	if len(versions) == 0 {
		return "", fmt.Errorf("no versions known for %q", name)
	}
	if rangeSpec == "" || rangeSpec == "*" || rangeSpec == "latest" {
		return highestVersion(r.System, versions), nil
	}

	constraint, err := r.System.ParseConstraint(rangeSpec)
	if err != nil {
		for _, p := range versions {
			if p.Version == rangeSpec {
				return p.Version, nil
			}
		}
		return "", fmt.Errorf("version %q not found for %q", rangeSpec, name)
	}

	var best string
	for _, p := range versions {
		v, err := r.System.Parse(p.Version)
		if err != nil {
			continue
		}
		if constraint.MatchVersion(v) && (best == "" || r.System.Compare(p.Version, best) > 0) {
			best = p.Version
		}
	}
	if best == "" {
		return "", fmt.Errorf("no version of %q satisfies %q", name, rangeSpec)
	}
	return best, nil
}

func highestVersion(sys semver.System, versions []Package) string {
	best := versions[0].Version
	for _, p := range versions[1:] {
		if sys.Compare(p.Version, best) > 0 {
			best = p.Version
		}
	}
	return best
}

// AllDependencyNamesByLevelOrder implements contracts.Resolver: breadth
// first traversal over the graph projected to names, starting from the
// manifests patterns resolve to.
func (r *Resolver) AllDependencyNamesByLevelOrder(patterns []string) []string {
	seen := make(map[string]struct{})
	seenRef := make(map[contracts.Ref]struct{})
	var order []string
	var queue []contracts.Ref

	for _, p := range patterns {
		ref, ok := r.patterns[p]
		if !ok {
			continue
		}
		queue = append(queue, ref)
	}

	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		if _, ok := seenRef[ref]; ok {
			continue
		}
		seenRef[ref] = struct{}{}

		name := r.manifests[ref].Name
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			order = append(order, name)
		}
		queue = append(queue, r.edges[ref]...)
	}
	return order
}

// AllInfoForPackageName implements contracts.Resolver.
func (r *Resolver) AllInfoForPackageName(name string) []*contracts.ResolvedManifest {
	var out []*contracts.ResolvedManifest
	for _, m := range r.manifests {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// PatternsByPackage implements contracts.Resolver.
func (r *Resolver) PatternsByPackage(name string) []string {
	return r.patternsByPackage[name]
}

// CollapseAllVersionsOfPackage implements contracts.Resolver.
func (r *Resolver) CollapseAllVersionsOfPackage(name, version string) (string, error) {
	ref, ok := r.byKey[name+"@"+version]
	if !ok {
		return "", fmt.Errorf("%w: %s@%s is not a resolved candidate", contracts.ErrCollaboratorFailure, name, version)
	}
	ps := r.patternsByPackage[name]
	for _, p := range ps {
		r.patterns[p] = ref
	}
	if len(ps) == 0 {
		return "", fmt.Errorf("%w: no patterns recorded for %s", contracts.ErrCollaboratorFailure, name)
	}
	return ps[0], nil
}

// ResolvedPattern implements contracts.Resolver.
func (r *Resolver) ResolvedPattern(pattern string) (*contracts.ResolvedManifest, bool) {
	ref, ok := r.patterns[pattern]
	if !ok {
		return nil, false
	}
	return r.manifests[ref], true
}

// StrictResolvedPattern implements contracts.Resolver.
func (r *Resolver) StrictResolvedPattern(pattern string) (*contracts.ResolvedManifest, error) {
	m, ok := r.ResolvedPattern(pattern)
	if !ok {
		return nil, fmt.Errorf("%w: pattern %q did not resolve", contracts.ErrCollaboratorFailure, pattern)
	}
	return m, nil
}

// Manifests implements contracts.Resolver.
func (r *Resolver) Manifests() []*contracts.ResolvedManifest { return r.manifests }

// UpdateManifest implements contracts.Resolver.
func (r *Resolver) UpdateManifest(ref contracts.Ref, m *contracts.ResolvedManifest) error {
	if int(ref) < 0 || int(ref) >= len(r.manifests) {
		return fmt.Errorf("%w: ref %d out of range", contracts.ErrCollaboratorFailure, ref)
	}
	r.manifests[ref] = m
	return nil
}

// Patterns implements contracts.Resolver.
func (r *Resolver) Patterns() map[string]*contracts.ResolvedManifest {
	out := make(map[string]*contracts.ResolvedManifest, len(r.patterns))
	for p, ref := range r.patterns {
		out[p] = r.manifests[ref]
	}
	return out
}

// UsedRegistries implements contracts.Resolver.
func (r *Resolver) UsedRegistries() []string {
	out := make([]string, 0, len(r.usedRegistries))
	for name := range r.usedRegistries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsExoticPattern implements contracts.Resolver. Git/URL/file patterns are
// not registry lookups; the orchestrator never inspects why.
func (r *Resolver) IsExoticPattern(pattern string) bool {
	for _, prefix := range []string{"git+", "git:", "http:", "https:", "file:"} {
		if strings.Contains(pattern, prefix) {
			return true
		}
	}
	return false
}

// splitPattern splits "name" or "name@range" into (name, range), respecting
// a leading scope component.
func splitPattern(pattern string) (string, string) {
	search := pattern
	offset := 0
	if strings.HasPrefix(pattern, "@") {
		offset = 1
		search = pattern[1:]
	}
	idx := strings.Index(search, "@")
	if idx < 0 {
		return pattern, ""
	}
	return pattern[:idx+offset], pattern[idx+offset+1:]
}

func sortedDepNames(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendUnique(s []string, v string) []string {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}

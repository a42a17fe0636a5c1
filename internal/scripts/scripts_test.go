package scripts_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lockstep-dev/lockstep/contracts"
	"github.com/lockstep-dev/lockstep/internal/resolution"
	"github.com/lockstep-dev/lockstep/internal/scripts"
)

type staticLocation struct {
	dir     string
	byPhase map[string]string
}

func (l staticLocation) Dir(m *contracts.ResolvedManifest) (string, bool) { return l.dir, l.dir != "" }
func (l staticLocation) Script(m *contracts.ResolvedManifest, phase string) (string, bool) {
	c, ok := l.byPhase[phase]
	return c, ok
}

func newResolver(t *testing.T) *resolution.Resolver {
	t.Helper()
	r := resolution.New(resolution.Universe{"a": {{Version: "1.0.0"}}})
	if err := r.Init(nil, []contracts.DependencyRequest{{Pattern: "a@1.0.0"}}, false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return r
}

func TestInitRunsDeclaredPhasesInOrder(t *testing.T) {
	r := newResolver(t)
	dir := t.TempDir()
	loc := staticLocation{dir: dir, byPhase: map[string]string{
		"preinstall":  "echo one >> order.txt",
		"postinstall": "echo two >> order.txt",
	}}
	run := scripts.Runner{Resolver: r, Location: loc}

	if err := run.Init(context.Background(), []string{"a@1.0.0"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "order.txt"))
	if err != nil {
		t.Fatalf("reading order.txt: %v", err)
	}
	if string(got) != "one\ntwo\n" {
		t.Fatalf("order.txt = %q, want %q", got, "one\ntwo\n")
	}
}

func TestInitPropagatesScriptFailure(t *testing.T) {
	r := newResolver(t)
	loc := staticLocation{dir: t.TempDir(), byPhase: map[string]string{
		"preinstall": "exit 1",
	}}
	run := scripts.Runner{Resolver: r, Location: loc}

	if err := run.Init(context.Background(), []string{"a@1.0.0"}); err == nil {
		t.Fatal("Init() = nil error, want propagated script failure")
	}
}

func TestInitSkipsWithoutLocation(t *testing.T) {
	r := newResolver(t)
	run := scripts.Runner{Resolver: r}
	if err := run.Init(context.Background(), []string{"a@1.0.0"}); err != nil {
		t.Fatalf("Init() error = %v, want nil with no Location", err)
	}
}

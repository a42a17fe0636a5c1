// Package scripts provides a reference contracts.ScriptRunner, running
// each package's install/build scripts with os/exec, in the style of the
// teacher's govulncheck runner.
package scripts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/lockstep-dev/lockstep/contracts"
)

// Names of the per-package lifecycle scripts run, in order, when present.
var packagePhases = []string{"preinstall", "install", "postinstall"}

// Location resolves where a resolved manifest's scripts, if any, should
// run from, and which ones it declares.
type Location interface {
	// Dir returns the package's install directory, or ok=false if the
	// package has no directory to run scripts from (e.g. still pending
	// link).
	Dir(m *contracts.ResolvedManifest) (dir string, ok bool)
	// Script returns the shell command for phase, if the package declares
	// one.
	Script(m *contracts.ResolvedManifest, phase string) (command string, ok bool)
}

// Runner is a reference contracts.ScriptRunner.
type Runner struct {
	Resolver contracts.Resolver
	Location Location
}

// Init implements contracts.ScriptRunner: every top-level pattern's
// resolved package has its declared phases run, in order, from its
// install directory. A failing script aborts the remaining phases for
// that package and the whole Init call.
func (r Runner) Init(ctx context.Context, topLevelPatterns []string) error {
	if r.Location == nil {
		return nil
	}

	for _, pattern := range topLevelPatterns {
		m, err := r.Resolver.StrictResolvedPattern(pattern)
		if err != nil {
			return fmt.Errorf("%w: %v", contracts.ErrCollaboratorFailure, err)
		}
		if m.Ignore {
			continue
		}
		dir, ok := r.Location.Dir(m)
		if !ok {
			continue
		}
		for _, phase := range packagePhases {
			command, ok := r.Location.Script(m, phase)
			if !ok || command == "" {
				continue
			}
			if err := run(ctx, dir, command); err != nil {
				return fmt.Errorf("%w: %s@%s %s script: %v", contracts.ErrCollaboratorFailure, m.Name, m.Version, phase, err)
			}
		}
	}
	return nil
}

func run(ctx context.Context, dir, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", command, err, stderr.String())
	}
	return nil
}

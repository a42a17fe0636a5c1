// Package lifecycle implements LifecycleWrapper: the pre/post envelope
// around the install pipeline.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/lockstep-dev/lockstep/contracts"
)

const (
	phasePreinstall  = "preinstall"
	phaseInstall     = "install"
	phasePostinstall = "postinstall"
	phasePrepublish  = "prepublish"
	phasePrepare     = "prepare"
)

// Wrapper runs body inside the root manifest's pre/post install lifecycle
// scripts.
type Wrapper struct {
	Workspace  contracts.Workspace
	Production bool
}

// Run fires preinstall, then body, then install/postinstall (and, outside
// production mode, prepublish/prepare). A script failure aborts the
// remaining scripts in that phase and propagates.
func (w Wrapper) Run(ctx context.Context, body func(ctx context.Context) error) error {
	if err := w.execute(ctx, phasePreinstall); err != nil {
		return err
	}

	if err := body(ctx); err != nil {
		return err
	}

	phases := []string{phaseInstall, phasePostinstall}
	if !w.Production {
		phases = append(phases, phasePrepublish, phasePrepare)
	}
	for _, phase := range phases {
		if err := w.execute(ctx, phase); err != nil {
			return err
		}
	}
	return nil
}

func (w Wrapper) execute(ctx context.Context, phase string) error {
	if w.Workspace == nil {
		return nil
	}
	if err := w.Workspace.ExecuteLifecycleScript(ctx, phase); err != nil {
		return fmt.Errorf("%w: %s: %v", contracts.ErrLifecycleScriptFailure, phase, err)
	}
	return nil
}

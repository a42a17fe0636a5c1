// Package pipeline implements the Pipeline: the ordered step sequence
// (resolve -> fetch+compat -> link -> scripts -> [har] -> [clean]) with
// progress reporting and bailout honoring.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lockstep-dev/lockstep/contracts"
	lockstepfs "github.com/lockstep-dev/lockstep/fs"
	"github.com/lockstep-dev/lockstep/internal/bailout"
	"github.com/lockstep-dev/lockstep/internal/flatten"
	"github.com/lockstep-dev/lockstep/internal/ignore"
	"github.com/lockstep-dev/lockstep/internal/persist"
	"github.com/lockstep-dev/lockstep/options"
	"github.com/lockstep-dev/lockstep/result"
)

// CleanFilename is the marker file whose presence in the working directory
// gates the clean step: a configured Cleaner only runs when this file
// exists.
const CleanFilename = ".lockstep-clean"

// LegacyShrinkwrapFilename is a legacy lockfile format from an older
// package manager generation. Its presence only triggers a warning;
// nothing reads or writes it.
const LegacyShrinkwrapFilename = "npm-shrinkwrap.json"

// Step names one of the canonical pipeline steps, as a tagged sequence
// rather than untyped integers.
type Step int

// Canonical step order.
const (
	StepResolve Step = iota
	StepFetchAndCompat
	StepLink
	StepScripts
	StepHar
	StepClean
)

func (s Step) String() string {
	switch s {
	case StepResolve:
		return "resolve"
	case StepFetchAndCompat:
		return "fetch+compat"
	case StepLink:
		return "link"
	case StepScripts:
		return "scripts"
	case StepHar:
		return "har"
	case StepClean:
		return "clean"
	default:
		return "unknown"
	}
}

// HarWriter persists a request-log archive at the end of a har-flagged
// install. The fetcher's transport is out of scope here; this is the
// orchestrator's narrow view of it.
type HarWriter interface {
	SaveHar(ctx context.Context, filename string) error
}

// Cleaner runs the clean routine when a clean-marker file is present.
type Cleaner interface {
	Clean(ctx context.Context) error
}

// Pipeline wires every collaborator contract plus the three in-repo
// reference components (Bailout, Flattener, IgnoreMarker) into one driver.
type Pipeline struct {
	// Fsys is the working directory the clean marker and legacy shrinkwrap
	// file, if any, are read from. Nil disables both checks: the clean
	// step never runs and the shrinkwrap warning is never emitted.
	Fsys lockstepfs.FS

	Resolver      contracts.Resolver
	Fetcher       contracts.Fetcher
	Compatibility contracts.Compatibility
	Linker        contracts.Linker
	Scripts       contracts.ScriptRunner
	Integrity     contracts.IntegrityChecker
	Lockfile      contracts.Lockfile
	Workspace     contracts.Workspace
	Reporter      contracts.Reporter

	Disambiguator flatten.Disambiguator
	IgnoreGlobs   []string

	Har     HarWriter
	Cleaner Cleaner

	Flags options.EffectiveFlags
}

// Input is one invocation's request-collection output, as produced by
// internal/request.Collector.
type Input struct {
	Requests       []contracts.DependencyRequest
	Patterns       []string
	UsedPatterns   []string
	IgnorePatterns []string
	Resolutions    map[string]string
}

const totalSteps = 6

// Run drives the six-step pipeline and, on success, Persister's
// SaveLockfileAndIntegrity.
func (p Pipeline) Run(ctx context.Context, in Input) (result.Result, error) {
	p.warnLegacyShrinkwrap()

	res, bailed, err := p.resolveStep(ctx, in)
	if err != nil || bailed {
		return res, err
	}

	if err := p.fetchAndCompatStep(ctx, in); err != nil {
		return result.Result{}, err
	}
	if err := p.linkStep(ctx, res.TopLevelPatterns); err != nil {
		return result.Result{}, err
	}
	if err := p.scriptsStep(ctx, res.TopLevelPatterns); err != nil {
		return result.Result{}, err
	}
	if p.Flags.Har {
		if err := p.harStep(ctx); err != nil {
			return result.Result{}, err
		}
	}
	if err := p.cleanStep(ctx); err != nil {
		return result.Result{}, err
	}

	persister := persist.Persister{
		Lockfile:  p.Lockfile,
		Integrity: p.Integrity,
		Resolver:  p.Resolver,
		Workspace: p.Workspace,
		Flags:     p.Flags,
	}
	persistResult, err := persister.SaveLockfileAndIntegrity(ctx, res.TopLevelPatterns)
	if err != nil {
		return result.Result{}, err
	}
	res.LockfileWritten = persistResult.LockfileWritten
	return res, nil
}

// resolveStep resolves dependencies, optionally flattens, and checks
// bailout. It returns bailed=true when the pipeline should stop here, in
// which case res is already the final result to return.
func (p Pipeline) resolveStep(ctx context.Context, in Input) (result.Result, bool, error) {
	p.reportStep(0, "resolving packages")

	if err := p.Resolver.Init(ctx, in.Requests, p.Flags.Flat); err != nil {
		return result.Result{}, false, fmt.Errorf("%w: resolver init: %v", contracts.ErrCollaboratorFailure, err)
	}

	topLevelPatterns := in.Patterns
	if p.Flags.Flat {
		f := flatten.Flattener{Resolver: p.Resolver, Disambiguator: p.Disambiguator}
		if _, err := f.Flatten(topLevelPatterns, in.Resolutions); err != nil {
			return result.Result{}, false, err
		}
		if p.Workspace != nil {
			if err := p.Workspace.SaveRootManifests(map[string]map[string]string{"resolutions": in.Resolutions}); err != nil {
				return result.Result{}, false, fmt.Errorf("%w: persisting resolutions: %v", contracts.ErrCollaboratorFailure, err)
			}
		}
	}

	checker := bailout.Checker{Flags: p.Flags, Integrity: p.Integrity, Lockfile: p.Lockfile, Reporter: p.Reporter}
	decision, err := checker.Decide(ctx, in.UsedPatterns)
	if err != nil {
		return result.Result{}, false, err
	}
	if decision.NothingToInstall {
		if p.Workspace != nil {
			if err := os.MkdirAll(p.Workspace.ModulesFolder(), 0o755); err != nil {
				return result.Result{}, false, fmt.Errorf("%w: creating empty modules folder: %v", contracts.ErrCollaboratorFailure, err)
			}
		}
		persister := persist.Persister{
			Lockfile:  p.Lockfile,
			Integrity: p.Integrity,
			Resolver:  p.Resolver,
			Workspace: p.Workspace,
			Flags:     p.Flags,
		}
		if _, err := persister.SaveLockfileAndIntegrity(ctx, topLevelPatterns); err != nil {
			return result.Result{}, false, err
		}
		return result.Result{TopLevelPatterns: topLevelPatterns, BailedOut: true}, true, nil
	}
	if decision.Skip {
		return result.Result{TopLevelPatterns: topLevelPatterns, BailedOut: true}, true, nil
	}

	return result.Result{TopLevelPatterns: topLevelPatterns}, false, nil
}

// fetchAndCompatStep marks ignored patterns, then initializes the fetcher
// and compatibility checker over the resolved manifest set.
func (p Pipeline) fetchAndCompatStep(ctx context.Context, in Input) error {
	p.reportStep(1, "fetching packages")

	marker := ignore.Marker{Resolver: p.Resolver, GlobPatterns: p.IgnoreGlobs}
	if err := marker.Mark(in.IgnorePatterns); err != nil {
		return err
	}

	if err := p.Fetcher.Init(ctx, p.Resolver.Manifests()); err != nil {
		return fmt.Errorf("%w: fetcher init: %v", contracts.ErrCollaboratorFailure, err)
	}
	if err := p.Compatibility.Init(ctx, p.Resolver.Manifests(), p.Flags.IgnorePlatform, p.Flags.IgnoreEngines); err != nil {
		return fmt.Errorf("%w: compatibility init: %v", contracts.ErrCollaboratorFailure, err)
	}
	return nil
}

// linkStep removes the integrity witness before the installation tree is
// mutated, so a crash mid-link can never leave a stale witness claiming a
// match against a half-written tree.
func (p Pipeline) linkStep(ctx context.Context, topLevelPatterns []string) error {
	p.reportStep(2, "linking dependencies")

	if err := p.Integrity.RemoveIntegrityFile(ctx); err != nil {
		return fmt.Errorf("%w: removing integrity file: %v", contracts.ErrCollaboratorFailure, err)
	}
	if err := p.Linker.Init(ctx, topLevelPatterns, p.Flags.LinkDuplicates); err != nil {
		return fmt.Errorf("%w: linker init: %v", contracts.ErrCollaboratorFailure, err)
	}
	return nil
}

// scriptsStep runs lifecycle scripts for every linked top-level package,
// unless scripts are disabled by flag.
func (p Pipeline) scriptsStep(ctx context.Context, topLevelPatterns []string) error {
	p.reportStep(3, "running lifecycle scripts")

	if p.Flags.IgnoreScripts {
		if p.Reporter != nil {
			p.Reporter.Warn("ignored scripts due to flag")
		}
		return nil
	}
	if err := p.Scripts.Init(ctx, topLevelPatterns); err != nil {
		return fmt.Errorf("%w: scripts init: %v", contracts.ErrCollaboratorFailure, err)
	}
	return nil
}

// harStep writes the request archive, when a HarWriter is configured.
func (p Pipeline) harStep(ctx context.Context) error {
	p.reportStep(4, "writing request archive")
	if p.Har == nil {
		return nil
	}
	filename := harFilename()
	if err := p.Har.SaveHar(ctx, filename); err != nil {
		return fmt.Errorf("%w: saving har: %v", contracts.ErrCollaboratorFailure, err)
	}
	return nil
}

// cleanStep runs the clean routine, when a Cleaner is configured and
// CleanFilename exists in the working directory.
func (p Pipeline) cleanStep(ctx context.Context) error {
	p.reportStep(5, "cleaning")
	if p.Cleaner == nil || !p.fileExists(CleanFilename) {
		return nil
	}
	if err := p.Cleaner.Clean(ctx); err != nil {
		return fmt.Errorf("%w: clean: %v", contracts.ErrCollaboratorFailure, err)
	}
	return nil
}

// warnLegacyShrinkwrap emits a one-time warning when a legacy shrinkwrap
// file is present in the working directory. It never changes behavior.
func (p Pipeline) warnLegacyShrinkwrap() {
	if p.Reporter == nil || !p.fileExists(LegacyShrinkwrapFilename) {
		return
	}
	p.Reporter.Warn(fmt.Sprintf("%s is a legacy lockfile and is ignored", LegacyShrinkwrapFilename))
}

func (p Pipeline) fileExists(name string) bool {
	if p.Fsys == nil {
		return false
	}
	_, err := p.Fsys.Stat(name)
	return err == nil
}

// harFilename builds "lockstep-install_<ISO-date-with-colons-replaced-by-hyphens>.har".
func harFilename() string {
	iso := time.Now().UTC().Format(time.RFC3339)
	return "lockstep-install_" + strings.ReplaceAll(iso, ":", "-") + ".har"
}

func (p Pipeline) reportStep(index int, message string) {
	if p.Reporter != nil {
		p.Reporter.Step(index+1, totalSteps, message)
	}
}

// Package lockstep is the install orchestrator's entry point: it wires
// together dependency resolution, fetching, compatibility checks, linking,
// lifecycle scripts and lockfile persistence into a single Install call.
package lockstep

import (
	"context"
	"fmt"
	"strings"

	"github.com/lockstep-dev/lockstep/contracts"
	lockstepfs "github.com/lockstep-dev/lockstep/fs"
	"github.com/lockstep-dev/lockstep/internal/flags"
	"github.com/lockstep-dev/lockstep/internal/flatten"
	"github.com/lockstep-dev/lockstep/internal/lifecycle"
	"github.com/lockstep-dev/lockstep/internal/pipeline"
	"github.com/lockstep-dev/lockstep/internal/request"
	"github.com/lockstep-dev/lockstep/internal/updatenag"
	"github.com/lockstep-dev/lockstep/options"
	"github.com/lockstep-dev/lockstep/result"
)

// InstallOptions bundles one invocation's working directory, collaborators
// and flags. Fsys is what Collector/Pipeline read and write through; the
// Workspace collaborator, when set, addresses the same directory by path
// (Workspace.Cwd) and is what the lifecycle script runner is handed.
type InstallOptions struct {
	Fsys lockstepfs.FS

	Registries []request.RegistryReader

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

	Har     pipeline.HarWriter
	Cleaner pipeline.Cleaner

	RawFlags options.RawFlags
	Config   options.Config

	// ExcludePatterns are names or glob patterns to drop from the request
	// set before resolution, e.g. from a workspace-level ignore list.
	ExcludePatterns []string
	// IgnoreUnused drops unused-category requests (dev in production mode,
	// optional when IgnoreOptional is set) from the request set entirely,
	// rather than collecting and then marking them ignored.
	IgnoreUnused bool

	// PositionalArgs is the set of bare CLI arguments after flag parsing.
	// Install rejects any, since package names belong to the add command.
	PositionalArgs []string

	Nagger *updatenag.Nagger
}

// Install runs one resolve -> fetch/compat -> link -> scripts -> [har] ->
// [clean] install against opts.Fsys, persists the lockfile and integrity
// witness on success, and returns the settled top-level patterns plus a
// best-effort self-update hint.
func Install(ctx context.Context, opts InstallOptions) (result.Result, error) {
	effective := flags.Normalize(opts.RawFlags, opts.Config)

	if len(opts.PositionalArgs) > 0 {
		return result.Result{}, positionalArgsError(opts.PositionalArgs, effective)
	}

	collector := request.Collector{
		Registries:     opts.Registries,
		Lockfile:       opts.Lockfile,
		Resolver:       opts.Resolver,
		Production:     opts.Config.Production,
		IgnoreOptional: effective.IgnoreOptional,
	}
	collected, err := collector.Collect(opts.Fsys, opts.ExcludePatterns, opts.IgnoreUnused)
	if err != nil {
		return result.Result{}, err
	}
	// A root manifest declaring "flat": true forces flat mode on, the same
	// as the --flat CLI flag.
	if collected.Manifest.Flat {
		effective.Flat = true
	}

	p := pipeline.Pipeline{
		Fsys:          opts.Fsys,
		Resolver:      opts.Resolver,
		Fetcher:       opts.Fetcher,
		Compatibility: opts.Compatibility,
		Linker:        opts.Linker,
		Scripts:       opts.Scripts,
		Integrity:     opts.Integrity,
		Lockfile:      opts.Lockfile,
		Workspace:     opts.Workspace,
		Reporter:      opts.Reporter,
		Disambiguator: opts.Disambiguator,
		IgnoreGlobs:   opts.IgnoreGlobs,
		Har:           opts.Har,
		Cleaner:       opts.Cleaner,
		Flags:         effective,
	}
	in := pipeline.Input{
		Requests:       collected.Requests,
		Patterns:       collected.Patterns,
		UsedPatterns:   collected.UsedPatterns,
		IgnorePatterns: collected.IgnorePatterns,
		Resolutions:    collected.Resolutions,
	}

	wrapper := lifecycle.Wrapper{Workspace: opts.Workspace, Production: opts.Config.Production}
	var res result.Result
	runErr := wrapper.Run(ctx, func(ctx context.Context) error {
		var err error
		res, err = p.Run(ctx, in)
		return err
	})
	if runErr != nil {
		return result.Result{}, runErr
	}

	if opts.Nagger != nil {
		res.UpgradeHint = opts.Nagger.Check(ctx)
	}
	return res, nil
}

// positionalArgsError synthesizes the "did you mean add" message the CLI
// layer surfaces when Install is called with bare package names, rewriting
// the suggested command from whichever save-* flags were also passed.
func positionalArgsError(args []string, flags options.EffectiveFlags) error {
	joined := strings.Join(args, " ")
	suggestion := "add " + joined
	for _, f := range saveShapeFlags(flags) {
		suggestion += " " + f
	}
	return fmt.Errorf("%w: %s (did you mean \"%s\"?)",
		contracts.ErrPositionalArgsNotAllowed, joined, suggestion)
}

// saveShapeFlags returns the save-* flag family's set members, in the
// family's canonical order, as the CLI switches that set them.
func saveShapeFlags(flags options.EffectiveFlags) []string {
	var out []string
	if flags.Dev {
		out = append(out, "--dev")
	}
	if flags.Peer {
		out = append(out, "--peer")
	}
	if flags.Optional {
		out = append(out, "--optional")
	}
	if flags.Exact {
		out = append(out, "--exact")
	}
	if flags.Tilde {
		out = append(out, "--tilde")
	}
	return out
}

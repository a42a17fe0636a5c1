// The lockstep command is a reference CLI around the install orchestrator:
// it parses flags, loads persisted configuration, wires the in-repo
// reference collaborators, and runs one install against the current
// directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"deps.dev/util/resolve"

	lockstep "github.com/lockstep-dev/lockstep"
	"github.com/lockstep-dev/lockstep/contracts"
	lockstepfs "github.com/lockstep-dev/lockstep/fs"
	"github.com/lockstep-dev/lockstep/internal/compat"
	"github.com/lockstep-dev/lockstep/internal/config"
	"github.com/lockstep-dev/lockstep/internal/fetch"
	"github.com/lockstep-dev/lockstep/internal/flatten"
	"github.com/lockstep-dev/lockstep/internal/har"
	"github.com/lockstep-dev/lockstep/internal/integrity"
	"github.com/lockstep-dev/lockstep/internal/link"
	"github.com/lockstep-dev/lockstep/internal/lockfile/flat"
	"github.com/lockstep-dev/lockstep/internal/manifest/npm"
	"github.com/lockstep-dev/lockstep/internal/manifest/pnpm"
	"github.com/lockstep-dev/lockstep/internal/request"
	"github.com/lockstep-dev/lockstep/internal/resolution"
	"github.com/lockstep-dev/lockstep/internal/scripts"
	"github.com/lockstep-dev/lockstep/internal/updatenag"
	"github.com/lockstep-dev/lockstep/log"
	"github.com/lockstep-dev/lockstep/options"
)

// runningVersion is the version UpdateNag compares against the self-update
// channel. Set at release time via -ldflags; "0.0.0-dev" always skips the
// check (pre-release versions are never nagged).
var runningVersion = "0.0.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	flags, packagesPath := parseFlags()

	cwd, err := os.Getwd()
	if err != nil {
		log.Errorf("getwd: %v", err)
		return 1
	}
	fsys := lockstepfs.DirFS(cwd)

	cfg, err := config.Load(fsys)
	if err != nil {
		log.Errorf("loading %s: %v", config.Filename, err)
		return 1
	}
	cfg.Cwd = cwd

	universe, err := loadUniverse(packagesPath)
	if err != nil {
		log.Errorf("loading package universe: %v", err)
		return 1
	}

	resolver := resolution.NewForEcosystem(universe, resolve.NPM)
	reporter := newConsoleReporter()
	lockfileCodec, err := flat.Load(fsys, cwd, flat.Filename)
	if err != nil {
		log.Errorf("loading lockfile: %v", err)
		return 1
	}
	integrityChecker, err := integrity.Open(filepath.Join(cwd, ".lockstep-integrity.db"))
	if err != nil {
		log.Errorf("opening integrity witness: %v", err)
		return 1
	}
	defer integrityChecker.Close()

	requestManager := &har.RequestManager{Dir: cwd}

	opts := lockstep.InstallOptions{
		Fsys: fsys,
		Registries: []request.RegistryReader{
			{Registry: contracts.Registry{Name: "npm", ManifestFile: npm.Filename, InstallFolder: "node_modules", Ecosystem: resolve.NPM}, Reader: npm.Reader{}},
			{Registry: contracts.Registry{Name: "pnpm", ManifestFile: pnpm.Filename, InstallFolder: "node_modules", Ecosystem: resolve.NPM}, Reader: pnpm.Reader{}},
		},
		Resolver: resolver,
		Fetcher: fetch.Fetcher{Source: fetch.TarballSource{
			CacheDir: filepath.Join(cwd, ".lockstep-cache"),
			DestDir:  extractedPackageDir(cwd),
		}},
		Compatibility: compat.New(nil, "linux", "x64", ""),
		Linker: link.Linker{Resolver: resolver, Writer: link.FsWriter{
			SourceDir:     extractedPackageDir(cwd),
			ModulesFolder: filepath.Join(cwd, "node_modules"),
		}},
		Scripts:        scripts.Runner{Resolver: resolver},
		Integrity:      integrityChecker,
		Lockfile:       lockfileCodec,
		Reporter:       reporter,
		Disambiguator:  flatten.ReporterDisambiguator{Reporter: reporter},
		Har:            requestManager,
		RawFlags:       flags,
		Config:         cfg,
		PositionalArgs: flag.Args(),
		Nagger: &updatenag.Nagger{
			RunningVersion:         runningVersion,
			InstallMethod:          updatenag.MethodTar,
			DisableSelfUpdateCheck: cfg.DisableSelfUpdateCheck,
		},
	}

	res, err := lockstep.Install(context.Background(), opts)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	if res.BailedOut {
		reporter.Success("already up to date")
	} else {
		reporter.Success(fmt.Sprintf("installed %d top-level packages", len(res.TopLevelPatterns)))
	}
	if res.UpgradeHint != nil {
		reporter.Info(fmt.Sprintf("a newer version is available: %s -> %s (%s)",
			res.UpgradeHint.CurrentVersion, res.UpgradeHint.LatestVersion, res.UpgradeHint.Command))
	}
	return 0
}

// parseFlags parses the install command's flags, folding the deprecated
// -g/-S/-D/-P/-O/-E/-T shorthand into the save-shape flags they alias.
func parseFlags() (options.RawFlags, string) {
	raw := options.DefaultRawFlags()

	flag.BoolVar(&raw.Har, "har", raw.Har, "save a HAR file of every collaborator request")
	flag.BoolVar(&raw.IgnorePlatform, "ignore-platform", raw.IgnorePlatform, "skip platform (os/cpu) compatibility checks")
	flag.BoolVar(&raw.IgnoreEngines, "ignore-engines", raw.IgnoreEngines, "skip engine version compatibility checks")
	flag.BoolVar(&raw.IgnoreScripts, "ignore-scripts", raw.IgnoreScripts, "don't run lifecycle scripts")
	flag.BoolVar(&raw.IgnoreOptional, "ignore-optional", raw.IgnoreOptional, "don't install optionalDependencies")
	flag.BoolVar(&raw.Force, "force", raw.Force, "refetch every package even if the cache is warm")
	flag.BoolVar(&raw.Flat, "flat", raw.Flat, "collapse every package to a single version")
	flag.BoolVar(&raw.LinkDuplicates, "link-duplicates", raw.LinkDuplicates, "also link non-top-level duplicate versions")
	flag.BoolVar(&raw.CheckFiles, "check-files", raw.CheckFiles, "verify linked files against the lockfile")
	noLockfile := flag.Bool("no-lockfile", false, "don't read or write a lockfile")
	flag.BoolVar(&raw.PureLockfile, "pure-lockfile", raw.PureLockfile, "don't generate a lockfile, only use the existing one")
	flag.BoolVar(&raw.FrozenLockfile, "frozen-lockfile", raw.FrozenLockfile, "fail if the lockfile needs changes")
	flag.BoolVar(&raw.SkipIntegrity, "skip-integrity-check", raw.SkipIntegrity, "always run the full pipeline, ignoring the integrity witness")

	flag.BoolVar(&raw.Peer, "peer", raw.Peer, "save-shape hint: peer dependency (used only by the add-mode suggestion message)")
	flag.BoolVar(&raw.Dev, "dev", raw.Dev, "save-shape hint: dev dependency")
	flag.BoolVar(&raw.Optional, "optional", raw.Optional, "save-shape hint: optional dependency")
	flag.BoolVar(&raw.Exact, "exact", raw.Exact, "save-shape hint: exact version")
	flag.BoolVar(&raw.Tilde, "tilde", raw.Tilde, "save-shape hint: tilde range")

	global := flag.Bool("g", false, "deprecated, use the global install command instead")
	flag.BoolVar(global, "global", *global, "deprecated alias of -g")
	save := flag.Bool("S", false, "deprecated, saving is now implicit")
	flag.BoolVar(save, "save", *save, "deprecated alias of -S")
	saveDev := flag.Bool("D", false, "deprecated, use --dev with add instead")
	flag.BoolVar(saveDev, "save-dev", *saveDev, "deprecated alias of -D")
	savePeer := flag.Bool("P", false, "deprecated, use --peer with add instead")
	flag.BoolVar(savePeer, "save-peer", *savePeer, "deprecated alias of -P")
	saveOptional := flag.Bool("O", false, "deprecated, use --optional with add instead")
	flag.BoolVar(saveOptional, "save-optional", *saveOptional, "deprecated alias of -O")
	saveExact := flag.Bool("E", false, "deprecated, use --exact with add instead")
	flag.BoolVar(saveExact, "save-exact", *saveExact, "deprecated alias of -E")
	saveTilde := flag.Bool("T", false, "deprecated, use --tilde with add instead")
	flag.BoolVar(saveTilde, "save-tilde", *saveTilde, "deprecated alias of -T")

	packagesPath := flag.String("packages", "", "path to a JSON file describing the in-memory package universe the reference resolver draws from")

	flag.Parse()

	if *global || *save || *saveDev || *savePeer || *saveOptional || *saveExact || *saveTilde {
		log.Warnf("-g/-S/-D/-P/-O/-E/-T are deprecated and have no effect on install; use the equivalent add flags")
		raw.Dev = raw.Dev || *saveDev
		raw.Peer = raw.Peer || *savePeer
		raw.Optional = raw.Optional || *saveOptional
		raw.Exact = raw.Exact || *saveExact
		raw.Tilde = raw.Tilde || *saveTilde
	}
	if *noLockfile {
		raw.Lockfile = false
	}

	return raw, *packagesPath
}

// extractedPackageDir returns where TarballSource extracts a resolved
// package, keyed by name and version so distinct versions of the same
// package never collide in the cache. FsWriter reads from the same
// location when materializing node_modules.
func extractedPackageDir(cwd string) func(m *contracts.ResolvedManifest) string {
	return func(m *contracts.ResolvedManifest) string {
		return filepath.Join(cwd, ".lockstep-cache", "extracted", m.Name+"-"+m.Version)
	}
}

// loadUniverse decodes the JSON-encoded resolution.Universe at path, or
// returns an empty universe if path is unset.
func loadUniverse(path string) (resolution.Universe, error) {
	if path == "" {
		return resolution.Universe{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var universe resolution.Universe
	if err := json.Unmarshal(raw, &universe); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return universe, nil
}

// Package result defines the outcome of a single orchestrator invocation.
package result

// Result is what Install returns: the flattened top-level patterns the
// pipeline settled on, whether it bailed out early, and a best-effort
// upgrade hint from UpdateNag.
type Result struct {
	// TopLevelPatterns is the set of top-level patterns known once the
	// pipeline finished or bailed out.
	TopLevelPatterns []string
	// BailedOut is true if the pipeline exited after step 1 without
	// fetching, linking, or running scripts.
	BailedOut bool
	// LockfileWritten is true if Persister rewrote the lockfile.
	LockfileWritten bool
	// UpgradeHint is set when UpdateNag detected a newer release.
	UpgradeHint *UpgradeHint
}

// UpgradeHint is the opportunistic self-update nudge shown once at the end
// of a successful install, if any.
type UpgradeHint struct {
	CurrentVersion string
	LatestVersion  string
	// Command is the shell command the user should run to upgrade, chosen
	// by install method. Empty if only a URL applies.
	Command string
	// URL is an installer URL, used instead of Command for methods (e.g.
	// msi) that have no single shell command.
	URL string
}

// Package updatenag implements UpdateNag: an opportunistic, best-effort
// self-update check that never affects install outcome.
package updatenag

import (
	"context"
	"os"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"golang.org/x/term"

	"github.com/lockstep-dev/lockstep/result"
)

const debounce = 24 * time.Hour

// InstallMethod names how the running binary was installed, used to choose
// an upgrade command.
type InstallMethod string

// Recognized install methods.
const (
	MethodTar        InstallMethod = "tar"
	MethodHomebrew    InstallMethod = "homebrew"
	MethodDeb        InstallMethod = "deb"
	MethodRPM        InstallMethod = "rpm"
	MethodNPM        InstallMethod = "npm"
	MethodChocolatey InstallMethod = "chocolatey"
	MethodAPK        InstallMethod = "apk"
	MethodMSI        InstallMethod = "msi"
)

// Nagger performs a best-effort check for a newer released version.
type Nagger struct {
	// RunningVersion is the currently running version string (e.g. "1.4.0"
	// or "1.4.0-beta.1" for a pre-release, which always skips the check).
	RunningVersion string
	// InstallMethod picks the upgrade command synthesized into the hint.
	InstallMethod InstallMethod
	// DisableSelfUpdateCheck mirrors the persisted config option of the
	// same name.
	DisableSelfUpdateCheck bool
	// LastCheck is the last time this check ran; zero means never.
	LastCheck time.Time
	// FetchLatestVersion retrieves the latest published version string from
	// the self-update channel. Any error, or an invalid semver string, is
	// treated as "no update available."
	FetchLatestVersion func(ctx context.Context) (string, error)
	// IsCI reports whether a CI environment is detected. Defaults to
	// checking the CI environment variable if nil.
	IsCI func() bool
	// IsTTY reports whether stdout is a terminal. Defaults to probing
	// os.Stdout via golang.org/x/term.
	IsTTY func() bool
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// Check runs the best-effort self-update check and returns an upgrade hint
// if (and only if) a strictly newer version was found. Every failure mode
// is swallowed: a nil return means "nothing to report," not "failed."
func (n Nagger) Check(ctx context.Context) *result.UpgradeHint {
	if n.shouldSkip() {
		return nil
	}
	if n.FetchLatestVersion == nil {
		return nil
	}

	latest, err := n.FetchLatestVersion(ctx)
	if err != nil {
		return nil
	}
	latest = strings.TrimSpace(latest)
	vLatest, vRunning := normalizeForCompare(latest), normalizeForCompare(n.RunningVersion)
	if !semver.IsValid(vLatest) || !semver.IsValid(vRunning) {
		return nil
	}
	if semver.Compare(vLatest, vRunning) <= 0 {
		return nil
	}

	return &result.UpgradeHint{
		CurrentVersion: n.RunningVersion,
		LatestVersion:  latest,
		Command:        upgradeCommand(n.InstallMethod, latest),
		URL:            upgradeURL(n.InstallMethod, latest),
	}
}

func (n Nagger) shouldSkip() bool {
	if n.DisableSelfUpdateCheck {
		return true
	}
	if strings.Contains(n.RunningVersion, "-") {
		return true
	}
	if n.isCI() {
		return true
	}
	if !n.ttyCheck() {
		return true
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	if !n.LastCheck.IsZero() && now().Sub(n.LastCheck) < debounce {
		return true
	}
	return false
}

func (n Nagger) isCI() bool {
	if n.IsCI != nil {
		return n.IsCI()
	}
	return os.Getenv("CI") != ""
}

func (n Nagger) ttyCheck() bool {
	if n.IsTTY != nil {
		return n.IsTTY()
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// normalizeForCompare ensures a leading "v", which golang.org/x/mod/semver
// requires but a bare-dotted release version typically lacks.
func normalizeForCompare(v string) string {
	if v == "" {
		return v
	}
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}

func upgradeCommand(method InstallMethod, version string) string {
	switch method {
	case MethodTar:
		return "curl -fsSL https://lockstep.dev/install.sh | sh"
	case MethodHomebrew:
		return "brew upgrade lockstep"
	case MethodDeb:
		return "apt-get install --only-upgrade lockstep"
	case MethodRPM:
		return "yum update lockstep"
	case MethodNPM:
		return "npm install -g lockstep@" + version
	case MethodChocolatey:
		return "choco upgrade lockstep"
	case MethodAPK:
		return "apk upgrade lockstep"
	default:
		return ""
	}
}

func upgradeURL(method InstallMethod, version string) string {
	if method != MethodMSI {
		return ""
	}
	return "https://lockstep.dev/dl/" + version + "/lockstep.msi"
}

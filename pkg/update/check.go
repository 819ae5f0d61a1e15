// Package update checks GitHub for newer jobprep releases and works out how
// the running binary was installed.
package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"
)

const (
	releasesURL = "https://api.github.com/repos/kernel/jobprep/releases/latest"
	modulePath  = "github.com/kernel/jobprep"
)

type InstallMethod string

const (
	InstallMethodBrew    InstallMethod = "brew"
	InstallMethodGo      InstallMethod = "go"
	InstallMethodUnknown InstallMethod = "unknown"
)

// FetchLatest returns the latest release tag and its page URL.
func FetchLatest(ctx context.Context) (tag, url string, err error) {
	return fetchLatestFrom(ctx, http.DefaultClient, latestReleaseURL())
}

func latestReleaseURL() string {
	if u := strings.TrimSpace(os.Getenv("JOBPREP_RELEASES_URL")); u != "" {
		return u
	}
	return releasesURL
}

func fetchLatestFrom(ctx context.Context, hc *http.Client, endpoint string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := hc.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("github returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if !gjson.ValidBytes(body) {
		return "", "", errors.New("invalid release response")
	}

	res := gjson.GetManyBytes(body, "tag_name", "html_url")
	tag := res[0].String()
	if tag == "" {
		return "", "", errors.New("release has no tag")
	}
	return tag, res[1].String(), nil
}

// IsNewerVersion reports whether latest is a higher semver than current.
func IsNewerVersion(current, latest string) (bool, error) {
	cur, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return false, fmt.Errorf("invalid current version %q: %w", current, err)
	}
	lat, err := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if err != nil {
		return false, fmt.Errorf("invalid latest version %q: %w", latest, err)
	}
	return lat.GreaterThan(cur), nil
}

type installRule struct {
	method InstallMethod
	check  func(path string) bool
}

// installMethodRules are evaluated in order; the first match wins.
func installMethodRules() []installRule {
	return []installRule{
		{InstallMethodBrew, pathMatchesHomebrew},
		{InstallMethodGo, pathMatchesGoInstall},
	}
}

// DetectInstallMethod inspects the resolved path of the running binary.
func DetectInstallMethod() (InstallMethod, string) {
	exe, err := os.Executable()
	if err != nil {
		return InstallMethodUnknown, ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return detectFromPath(exe), exe
}

func detectFromPath(path string) InstallMethod {
	p := filepath.ToSlash(path)
	for _, r := range installMethodRules() {
		if r.check(p) {
			return r.method
		}
	}
	return InstallMethodUnknown
}

func pathMatchesHomebrew(path string) bool {
	return strings.Contains(path, "/Cellar/") ||
		strings.HasPrefix(path, "/opt/homebrew/") ||
		strings.Contains(path, "/.linuxbrew/")
}

func pathMatchesGoInstall(path string) bool {
	if gobin := os.Getenv("GOBIN"); gobin != "" && strings.HasPrefix(path, filepath.ToSlash(gobin)+"/") {
		return true
	}
	return strings.Contains(path, "/go/bin/")
}

// UpgradeCommand is the shell command that upgrades an installation made
// with method. Unknown methods get the Homebrew command.
func UpgradeCommand(method InstallMethod) []string {
	switch method {
	case InstallMethodGo:
		return []string{"go", "install", modulePath + "@latest"}
	default:
		return []string{"brew", "upgrade", "kernel/tap/jobprep"}
	}
}

// UpgradeCommandLine is UpgradeCommand joined for display.
func UpgradeCommandLine(method InstallMethod) string {
	return strings.Join(UpgradeCommand(method), " ")
}

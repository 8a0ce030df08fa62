// Package hints provides actionable operator hints for startup and
// diagnostic failures.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/vulcan/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// inCI reports whether a common CI marker is set.
func inCI() bool {
	return os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""
}

// ForBrowserConnect returns hints for browser launch errors given the
// effective sandbox and binary settings.
func ForBrowserConnect(noSandbox bool, bin string) string {
	var hints []string

	if (inCI() || IsInContainer()) && !noSandbox {
		hints = append(hints, "set VULCAN_NO_SANDBOX=true for Docker/CI")
	}

	if bin == "" {
		hints = append(hints, "set VULCAN_BROWSER_BIN to use an installed Chrome")
	} else if !fileutil.FileExists(bin) {
		hints = append(hints, "browser binary "+bin+" does not exist")
	}

	return formatHints(hints)
}

// ForTimeout returns a hint about raising the render deadline.
func ForTimeout() string {
	return format("for large documents, raise VULCAN_TIMEOUT or --timeout")
}

// ForConfigNotFound returns a hint for a missing config file.
func ForConfigNotFound(path string) string {
	return format("check --config / VULCAN_CONFIG, or omit it to run on defaults (looked for " + path + ")")
}

// ForStorageDir returns hints for storage root errors.
func ForStorageDir(dir string) string {
	return format("check that " + dir + " (STORAGE_DIR) can be created and is writable")
}

// ForStagingDir returns hints for staging directory errors.
func ForStagingDir(dir string) string {
	if dir == "" {
		return format("set VULCAN_STAGING_DIR to a writable directory")
	}
	return format("check that " + dir + " (VULCAN_STAGING_DIR) exists and is writable")
}

// ForListen returns hints for listener errors.
func ForListen(addr string) string {
	return format(addr + " may be in use; change PORT or VULCAN_HOST")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}

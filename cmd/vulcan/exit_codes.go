package main

import (
	"errors"
	"os"

	"github.com/alnah/vulcan"
	"github.com/alnah/vulcan/internal/config"
)

// Exit codes for the vulcan binary.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Clean shutdown
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // Storage or staging directory unusable, listener failure
	ExitBrowser = 4 // Browser/Chrome errors
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser errors (exit 4)
	if errors.Is(err, vulcan.ErrBrowserConnect) ||
		errors.Is(err, vulcan.ErrSessionCreate) ||
		errors.Is(err, vulcan.ErrPageCreate) ||
		errors.Is(err, vulcan.ErrPageLoad) ||
		errors.Is(err, vulcan.ErrPDFGeneration) {
		return ExitBrowser
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrInvalidConfig) ||
		errors.Is(err, ErrUsage) ||
		errors.Is(err, vulcan.ErrInvalidPaperFormat) ||
		errors.Is(err, vulcan.ErrInvalidMargin) ||
		errors.Is(err, vulcan.ErrInvalidScale) {
		return ExitUsage
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, vulcan.ErrStorageRoot) ||
		errors.Is(err, vulcan.ErrStaging) ||
		errors.Is(err, ErrListen) {
		return ExitIO
	}

	return ExitGeneral
}

package vulcan

import "errors"

// Sentinel errors for library operations.
var (
	ErrEmptyHTML = errors.New("HTML content cannot be empty")

	// Rendering errors. ErrRender wraps every staging, browser, and page failure
	// so callers can report a single opaque failure.
	ErrRender         = errors.New("rendering failed")
	ErrStaging        = errors.New("failed to stage HTML input")
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrSessionCreate  = errors.New("failed to create browser session")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrPDFGeneration  = errors.New("PDF generation failed")
	ErrPoolClosed     = errors.New("session pool is closed")

	// Storage errors.
	ErrPersist         = errors.New("failed to persist PDF")
	ErrStorageRoot     = errors.New("storage root unavailable")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrAccessDenied    = errors.New("access denied")
	ErrFileNotFound    = errors.New("file not found")

	// Layout validation errors.
	ErrInvalidPaperFormat = errors.New("invalid paper format")
	ErrInvalidMargin      = errors.New("invalid margin")
	ErrInvalidScale       = errors.New("invalid scale")
)

package vulcan

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Paper format constants.
const (
	PaperFormatA4     = "a4"
	PaperFormatLetter = "letter"
	PaperFormatLegal  = "legal"
)

// Layout bounds.
const (
	MinMarginInches = 0.0
	MaxMarginInches = 3.0
	MinScale        = 0.1
	MaxScale        = 2.0
)

// mmPerInch converts millimetres to the inches Chrome expects.
const mmPerInch = 25.4

// paperDimensions maps paper formats to portrait width/height in inches.
var paperDimensions = map[string]struct{ width, height float64 }{
	PaperFormatA4:     {8.27, 11.69},
	PaperFormatLetter: {8.5, 11},
	PaperFormatLegal:  {8.5, 14},
}

// Layout holds the fixed page parameters applied to every render.
// It is process-wide configuration, never taken from a request.
type Layout struct {
	Format          string  // "a4", "letter", "legal"
	MarginTop       float64 // inches
	MarginBottom    float64 // inches
	MarginLeft      float64 // inches
	MarginRight     float64 // inches
	Scale           float64
	PrintBackground bool
}

// DefaultLayout returns A4 with 5mm top/bottom margins, no side margins,
// scale 1.0 and background printing enabled.
func DefaultLayout() Layout {
	return Layout{
		Format:          PaperFormatA4,
		MarginTop:       5 / mmPerInch,
		MarginBottom:    5 / mmPerInch,
		MarginLeft:      0,
		MarginRight:     0,
		Scale:           1.0,
		PrintBackground: true,
	}
}

// Validate checks that the layout can be handed to the browser.
// Does not mutate - uses case-insensitive comparison.
func (l Layout) Validate() error {
	if _, ok := paperDimensions[strings.ToLower(l.Format)]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPaperFormat, l.Format)
	}
	margins := []struct {
		name  string
		value float64
	}{
		{"top", l.MarginTop},
		{"bottom", l.MarginBottom},
		{"left", l.MarginLeft},
		{"right", l.MarginRight},
	}
	for _, m := range margins {
		if m.value < MinMarginInches || m.value > MaxMarginInches {
			return fmt.Errorf("%w: %s %.2f (must be between %.2f and %.2f)",
				ErrInvalidMargin, m.name, m.value, MinMarginInches, MaxMarginInches)
		}
	}
	if l.Scale < MinScale || l.Scale > MaxScale {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidScale, l.Scale, MinScale, MaxScale)
	}
	return nil
}

// paperSize returns width and height in inches for the layout's format.
// Unknown formats fall back to A4.
func (l Layout) paperSize() (width, height float64) {
	dims, ok := paperDimensions[strings.ToLower(l.Format)]
	if !ok {
		dims = paperDimensions[PaperFormatA4]
	}
	return dims.width, dims.height
}

// RenderJob is one request to turn HTML into PDF bytes.
// It is created per request and never shared.
type RenderJob struct {
	HTML        string       // decoded HTML (required)
	RequestID   string       // correlation token for logs and spans
	Destination *Destination // optional persistence target
}

// Destination tells the engine where to persist the rendered document.
type Destination struct {
	Storage  Storage
	Filename string // canonical filename, generated by the caller
}

// Storage persists rendered documents under a canonical filename.
type Storage interface {
	Persist(ctx context.Context, data []byte, filename string) error
}

// StoredPDF describes a persisted document.
type StoredPDF struct {
	Filename string
	Path     string
	Size     int64
	StoredAt time.Time
}

// EvictionHook is notified after each successful persist.
// Retention policy is left entirely to the implementation.
type EvictionHook interface {
	Stored(ctx context.Context, pdf StoredPDF)
}

// RenderObserver receives rendering measurements. Implementations must be
// safe for concurrent use.
type RenderObserver interface {
	ObserveRender(outcome string, seconds float64)
	ObserveQueueWait(seconds float64)
	SessionsInUse(delta int)
}

// Render outcomes reported to RenderObserver.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeRenderError  = "render_error"
	OutcomePersistError = "persist_error"
	OutcomeCanceled     = "canceled"
)

type noopObserver struct{}

func (noopObserver) ObserveRender(string, float64) {}
func (noopObserver) ObserveQueueWait(float64)      {}
func (noopObserver) SessionsInUse(int)             {}

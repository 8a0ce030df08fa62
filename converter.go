package vulcan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alnah/vulcan/internal/fileutil"
)

// instrumentationName identifies this package's spans.
const instrumentationName = "github.com/alnah/vulcan"

// defaultTimeout bounds a single render when no timeout is specified.
const defaultTimeout = 30 * time.Second

// Engine turns HTML into PDF bytes: it stages the input, borrows a browser
// session from its pool, prints the page, tears everything down, and
// optionally persists the result.
// Create with NewEngine, call Render per job, and Close when done.
type Engine struct {
	cfg      engineConfig
	pool     *SessionPool
	logger   *slog.Logger
	observer RenderObserver
	tracer   trace.Tracer
	newID    func() string
}

// engineConfig holds internal configuration for Engine.
type engineConfig struct {
	timeout         time.Duration
	stagingDir      string
	layout          Layout
	workers         int
	browser         BrowserOptions
	rendererFactory func() pdfRenderer
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-render deadline.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("vulcan: WithTimeout duration must be positive")
	}
	return func(e *Engine) {
		e.cfg.timeout = d
	}
}

// WithStagingDir sets the directory where HTML input is staged for the browser.
// Defaults to os.TempDir(); an empty dir keeps the default.
func WithStagingDir(dir string) Option {
	return func(e *Engine) {
		if dir != "" {
			e.cfg.stagingDir = dir
		}
	}
}

// WithLayout sets the page layout applied to every render.
func WithLayout(l Layout) Option {
	return func(e *Engine) {
		e.cfg.layout = l
	}
}

// WithWorkers sets the number of concurrent browser sessions.
// Zero or negative means auto (see ResolvePoolSize).
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.cfg.workers = n
	}
}

// WithBrowser configures the Chrome launcher.
func WithBrowser(opts BrowserOptions) Option {
	return func(e *Engine) {
		e.cfg.browser = opts
	}
}

// WithLogger sets the structured logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver sets the metrics sink for render outcomes and pool usage.
func WithObserver(o RenderObserver) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// withRendererFactory replaces the browser-backed renderer (tests only).
func withRendererFactory(f func() pdfRenderer) Option {
	return func(e *Engine) {
		e.cfg.rendererFactory = f
	}
}

// NewEngine creates an Engine with default configuration.
// Returns error if the layout is invalid or the staging directory is unusable.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg: engineConfig{
			timeout:    defaultTimeout,
			stagingDir: os.TempDir(),
			layout:     DefaultLayout(),
		},
		logger:   slog.New(slog.DiscardHandler),
		observer: noopObserver{},
		tracer:   otel.Tracer(instrumentationName),
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.cfg.layout.Validate(); err != nil {
		return nil, err
	}

	info, err := os.Stat(e.cfg.stagingDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStaging, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrStaging, e.cfg.stagingDir)
	}

	size := ResolvePoolSize(e.cfg.workers)
	if e.cfg.rendererFactory != nil {
		e.pool = newSessionPool(size, e.cfg.rendererFactory)
	} else {
		e.pool = NewSessionPool(size, e.cfg.browser)
	}

	return e, nil
}

// Render runs one job and returns the PDF bytes.
//
// Staging, session, and page failures are wrapped in ErrRender. A persistence
// failure after a successful render is wrapped in ErrPersist. Empty input
// returns ErrEmptyHTML. The browser session and the staged file are released
// on every path, including cancellation and deadline expiry.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (e *Engine) Render(ctx context.Context, job RenderJob) (pdf []byte, err error) {
	start := time.Now()
	log := e.logger
	if job.RequestID != "" {
		log = log.With("requestId", job.RequestID)
	}

	ctx, span := e.tracer.Start(ctx, "vulcan.Render",
		trace.WithAttributes(
			attribute.String("vulcan.request_id", job.RequestID),
			attribute.Int("vulcan.html_length", len(job.HTML)),
			attribute.Bool("vulcan.persist", job.Destination != nil),
		))
	defer func() {
		if r := recover(); r != nil {
			pdf = nil
			err = fmt.Errorf("%w: internal error: %v", ErrRender, r)
		}
		e.observer.ObserveRender(outcomeFor(err), time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("vulcan.pdf_size", len(pdf)))
		}
		span.End()
	}()

	if job.HTML == "" {
		log.Error("Cannot render empty PDF", "operation", "render_pdf")
		return nil, ErrEmptyHTML
	}

	pdf, err = e.render(ctx, log, job.HTML)
	if err != nil {
		return nil, err
	}

	if dst := job.Destination; dst != nil {
		if err := e.persist(ctx, log, dst, pdf); err != nil {
			return nil, err
		}
	}

	return pdf, nil
}

// render stages html, prints it in a pooled browser session, and cleans up.
// Session release happens before staging removal; both happen before return.
func (e *Engine) render(ctx context.Context, log *slog.Logger, html string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.timeout)
	defer cancel()

	tmpName := e.newID() + ".html"
	log.Debug("Writing temporary HTML file", "tmpFilename", tmpName, "htmlLength", len(html))

	tmpPath, cleanup, err := fileutil.WriteStagingFile(e.cfg.stagingDir, tmpName, html)
	if err != nil {
		log.Error("Error writing temporary file", "tmpFilename", tmpName, "error", err)
		return nil, fmt.Errorf("%w: %w: %v", ErrRender, ErrStaging, err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Warn("Failed to remove temporary file", "tmpFilename", tmpPath, "error", err)
			return
		}
		log.Debug("Temporary HTML file cleaned up", "tmpFilename", tmpPath)
	}()

	waitStart := time.Now()
	renderer, err := e.pool.acquire(ctx)
	e.observer.ObserveQueueWait(time.Since(waitStart).Seconds())
	if err != nil {
		log.Error("Failed to acquire rendering session", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	e.observer.SessionsInUse(1)
	defer func() {
		e.pool.release(renderer)
		e.observer.SessionsInUse(-1)
	}()

	log.Info("Starting PDF generation", "operation", "render_pdf", "tmpFilename", tmpPath)
	renderStart := time.Now()

	pdf, err := renderer.RenderFromFile(ctx, tmpPath, e.cfg.layout)
	if err != nil {
		log.Error("PDF rendering failed", "tmpFilename", tmpPath, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	log.Info("PDF generation completed",
		"pdfSize", len(pdf),
		"duration", time.Since(renderStart).Milliseconds(),
	)
	return pdf, nil
}

// persist hands rendered bytes to the destination's storage.
func (e *Engine) persist(ctx context.Context, log *slog.Logger, dst *Destination, pdf []byte) error {
	if dst.Storage == nil || dst.Filename == "" {
		return fmt.Errorf("%w: destination requires storage and filename", ErrPersist)
	}

	ctx, span := e.tracer.Start(ctx, "vulcan.Persist",
		trace.WithAttributes(attribute.String("vulcan.filename", dst.Filename)))
	defer span.End()

	log.Info("Saving PDF to storage", "filename", dst.Filename)
	if err := dst.Storage.Persist(ctx, pdf, dst.Filename); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Error saving PDF to storage", "filename", dst.Filename, "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	log.Info("PDF saved to storage successfully", "filename", dst.Filename, "pdfSize", len(pdf))
	return nil
}

// PoolSize returns the number of concurrent browser sessions.
func (e *Engine) PoolSize() int {
	return e.pool.Size()
}

// Close releases resources (headless Chrome browsers).
func (e *Engine) Close() error {
	if e.pool != nil {
		return e.pool.Close()
	}
	return nil
}

// outcomeFor classifies a Render result for metrics.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrEmptyHTML):
		return OutcomeInvalid
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, ErrPersist):
		return OutcomePersistError
	default:
		return OutcomeRenderError
	}
}

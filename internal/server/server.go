// Package server exposes the HTTP API: PDF generation, stored-file retrieval,
// health and metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/alnah/vulcan"
	"github.com/alnah/vulcan/internal/logging"
	"github.com/alnah/vulcan/internal/metrics"
	"github.com/alnah/vulcan/internal/telemetry"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "vulcan-pdf-service"

// Routes.
const (
	routeHealth   = "/health"
	routeFiles    = "/files/{filename}"
	routeFilesDir = "/files/"
	routePDF      = "/pdf"
)

// Renderer produces PDF bytes for a job. *vulcan.Engine implements it.
type Renderer interface {
	Render(ctx context.Context, job vulcan.RenderJob) ([]byte, error)
}

// FileStore persists rendered documents and serves them back.
// *vulcan.Store implements it.
type FileStore interface {
	vulcan.Storage
	Read(untrusted string) ([]byte, error)
}

var (
	_ Renderer  = (*vulcan.Engine)(nil)
	_ FileStore = (*vulcan.Store)(nil)
)

// RateLimit configures per-client limiting. RPS 0 disables it.
type RateLimit struct {
	RPS   float64
	Burst int
}

// Options configures a Server.
type Options struct {
	Renderer       Renderer
	Store          FileStore
	StorageBaseURL string // no trailing slash
	MaxBodyBytes   int64
	Version        string

	Logger         *slog.Logger
	Metrics        metrics.HTTPMetrics
	MetricsHandler http.Handler // nil disables the metrics route
	MetricsPath    string
	Tracer         trace.Tracer
	RateLimit      RateLimit
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	renderer     Renderer
	store        FileStore
	baseURL      string
	maxBodyBytes int64
	version      string

	logger         *slog.Logger
	metrics        metrics.HTTPMetrics
	metricsHandler http.Handler
	metricsPath    string
	tracer         trace.Tracer
	limiter        *rateLimiter
	schema         *jsonschema.Schema

	now   func() time.Time
	newID func() string
}

// New creates a Server. Renderer and Store are required.
func New(opts Options) *Server {
	s := &Server{
		renderer:       opts.Renderer,
		store:          opts.Store,
		baseURL:        opts.StorageBaseURL,
		maxBodyBytes:   opts.MaxBodyBytes,
		version:        opts.Version,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		metricsHandler: opts.MetricsHandler,
		metricsPath:    opts.MetricsPath,
		tracer:         opts.Tracer,
		schema:         pdfRequestSchema(),
		now:            time.Now,
		newID:          uuid.NewString,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.metrics == nil {
		s.metrics = metrics.Noop{}
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(telemetry.InstrumentationName)
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}
	if opts.RateLimit.RPS > 0 {
		s.limiter = newRateLimiter(opts.RateLimit.RPS, opts.RateLimit.Burst, s.now)
	}
	return s
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET "+routeHealth, s.instrumented(routeHealth, http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET "+routeFiles, s.instrumented(routeFiles, s.limited(http.HandlerFunc(s.handleGetFile))))
	mux.Handle("GET "+routeFilesDir+"{$}", s.instrumented(routeFiles, s.limited(http.HandlerFunc(s.handleGetFile))))
	mux.Handle("POST "+routePDF, s.instrumented(routePDF, s.limited(http.HandlerFunc(s.handlePostPDF))))
	if s.metricsHandler != nil {
		mux.Handle("GET "+s.metricsPath, s.metricsHandler)
	}

	return s.withRequestID(s.withRecovery(mux))
}

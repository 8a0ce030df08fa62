package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alnah/vulcan"
	"github.com/alnah/vulcan/internal/config"
	"github.com/alnah/vulcan/internal/hints"
	"github.com/alnah/vulcan/internal/logging"
	"github.com/alnah/vulcan/internal/metrics"
	"github.com/alnah/vulcan/internal/server"
	"github.com/alnah/vulcan/internal/telemetry"
)

// ErrListen marks a failure to bind the HTTP listener.
var ErrListen = errors.New("failed to listen")

// HTTP server timeouts not exposed in config.
const (
	readTimeout       = 60 * time.Second
	idleTimeout       = 120 * time.Second
	writeTimeoutSlack = 30 * time.Second
	telemetryFlush    = 5 * time.Second
)

// serve runs the HTTP service until ctx is canceled, then drains in-flight
// requests and closes the browsers.
func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := vulcan.NewStore(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("%w%s", err, hints.ForStorageDir(cfg.Storage.Dir))
	}
	logger.Info("Storage directory ready", "storageDir", store.Root())

	poolSize := vulcan.ResolvePoolSize(cfg.Render.Workers)

	var (
		observer       vulcan.RenderObserver = metrics.Noop{}
		httpMetrics    metrics.HTTPMetrics   = metrics.Noop{}
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		prom := metrics.NewProm(poolSize)
		observer, httpMetrics, metricsHandler = prom, prom, prom.Handler()
	}

	tp, err := telemetry.New(ctx, telemetry.Config{
		ServiceName:    logging.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlush)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			logger.Warn("Trace flush failed", logging.KeyError, err)
		}
	}()

	engine, err := vulcan.NewEngine(
		vulcan.WithTimeout(cfg.Render.Timeout.Std()),
		vulcan.WithStagingDir(cfg.Render.StagingDir),
		vulcan.WithLayout(cfg.Layout()),
		vulcan.WithWorkers(poolSize),
		vulcan.WithBrowser(vulcan.BrowserOptions{Bin: cfg.Browser.Bin, NoSandbox: cfg.Browser.NoSandbox}),
		vulcan.WithLogger(logger),
		vulcan.WithObserver(observer),
	)
	if err != nil {
		if errors.Is(err, vulcan.ErrStaging) {
			return fmt.Errorf("%w%s", err, hints.ForStagingDir(cfg.Render.StagingDir))
		}
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("Browser shutdown incomplete", logging.KeyError, err)
		}
	}()

	api := server.New(server.Options{
		Renderer:       engine,
		Store:          store,
		StorageBaseURL: cfg.Storage.BaseURL,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Version:        Version,
		Logger:         logger,
		Metrics:        httpMetrics,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		Tracer:         tp.Tracer(),
		RateLimit:      server.RateLimit{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst},
	})

	addr := cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w %s: %w%s", ErrListen, addr, err, hints.ForListen(addr))
	}

	httpServer := newHTTPServer(cfg, api.Handler(), logger)

	logger.Info("Vulcan PDF service started",
		"baseUrl", cfg.BaseURL,
		"port", cfg.Server.Port,
		"storageDir", store.Root(),
		"storageBaseUrl", cfg.Storage.BaseURL,
		"version", Version,
		"workers", engine.PoolSize(),
		"metrics", cfg.Metrics.Enabled,
		"tracing", tp.Enabled(),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown incomplete", logging.KeyError, err)
		_ = httpServer.Close()
	}
	logger.Info("Shutdown complete")
	return nil
}

// newHTTPServer configures the listener timeouts. Writes may legitimately
// take as long as a full render.
func newHTTPServer(cfg config.Config, h http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Std(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.Render.Timeout.Std() + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

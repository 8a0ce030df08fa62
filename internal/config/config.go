package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/vulcan"
	"github.com/alnah/vulcan/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Defaults.
const (
	DefaultPort              = 5739
	DefaultStorageDir        = "/tmp/vulcan-pdfs"
	DefaultBaseURL           = "api.example.com/v1"
	DefaultMaxBodyBytes      = 5 << 20 // 5 MiB
	DefaultRenderTimeout     = 30 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
	DefaultMetricsPath       = "/metrics"
	DefaultSampleRatio       = 1.0
)

// Log levels and formats.
var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "text"}
)

// Config is the process-wide service configuration. It is built once at
// startup and passed by value to every component.
type Config struct {
	BaseURL   string          `yaml:"baseUrl"` // informational, logged at startup
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Render    RenderConfig    `yaml:"render"`
	Browser   BrowserConfig   `yaml:"browser"`
	Page      PageConfig      `yaml:"page"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Host              string   `yaml:"host"` // empty = all interfaces
	Port              int      `yaml:"port"`
	MaxBodyBytes      int64    `yaml:"maxBodyBytes"`
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   Duration `yaml:"shutdownTimeout"`
}

// StorageConfig defines where stored PDFs live and how clients reach them.
type StorageConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"baseUrl"` // empty = http://localhost:<port>/files
}

// RenderConfig defines the render engine.
type RenderConfig struct {
	Timeout    Duration `yaml:"timeout"`
	Workers    int      `yaml:"workers"`    // 0 = auto
	StagingDir string   `yaml:"stagingDir"` // empty = OS temp dir
}

// BrowserConfig defines how Chrome is launched.
type BrowserConfig struct {
	Bin       string `yaml:"bin"` // empty = rod lookup
	NoSandbox bool   `yaml:"noSandbox"`
}

// PageConfig defines the fixed print layout. Margins are in inches.
type PageConfig struct {
	Format          string  `yaml:"format"` // "a4", "letter", "legal"
	MarginTop       float64 `yaml:"marginTop"`
	MarginBottom    float64 `yaml:"marginBottom"`
	MarginLeft      float64 `yaml:"marginLeft"`
	MarginRight     float64 `yaml:"marginRight"`
	Scale           float64 `yaml:"scale"`
	PrintBackground bool    `yaml:"printBackground"`
}

// LogConfig defines the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RateLimitConfig defines per-client request limits. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig defines OTLP trace export. Empty endpoint disables export.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	layout := vulcan.DefaultLayout()
	return Config{
		BaseURL: DefaultBaseURL,
		Server: ServerConfig{
			Port:              DefaultPort,
			MaxBodyBytes:      DefaultMaxBodyBytes,
			ReadHeaderTimeout: Duration(DefaultReadHeaderTimeout),
			ShutdownTimeout:   Duration(DefaultShutdownTimeout),
		},
		Storage: StorageConfig{Dir: DefaultStorageDir},
		Render:  RenderConfig{Timeout: Duration(DefaultRenderTimeout)},
		Browser: BrowserConfig{NoSandbox: true},
		Page: PageConfig{
			Format:          layout.Format,
			MarginTop:       layout.MarginTop,
			MarginBottom:    layout.MarginBottom,
			MarginLeft:      layout.MarginLeft,
			MarginRight:     layout.MarginRight,
			Scale:           layout.Scale,
			PrintBackground: layout.PrintBackground,
		},
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Path: DefaultMetricsPath},
		Tracing: TracingConfig{SampleRatio: DefaultSampleRatio},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default value; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := yamlutil.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Config{}, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	return cfg, nil
}

// Finalize fills values derived from other fields.
func (c *Config) Finalize() {
	if c.Storage.BaseURL == "" {
		c.Storage.BaseURL = fmt.Sprintf("http://localhost:%d/files", c.Server.Port)
	}
	c.Storage.BaseURL = strings.TrimRight(c.Storage.BaseURL, "/")
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range (1-65535)", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: server.maxBodyBytes must be positive", ErrInvalidConfig)
	}
	if c.Server.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("%w: server.readHeaderTimeout must be positive", ErrInvalidConfig)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: server.shutdownTimeout must be positive", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Storage.Dir) == "" {
		return fmt.Errorf("%w: storage.dir is required", ErrInvalidConfig)
	}
	if c.Storage.BaseURL != "" {
		if err := validateAbsoluteURL(c.Storage.BaseURL); err != nil {
			return fmt.Errorf("%w: storage.baseUrl %v", ErrInvalidConfig, err)
		}
	}
	if c.Render.Timeout <= 0 {
		return fmt.Errorf("%w: render.timeout must be positive", ErrInvalidConfig)
	}
	if c.Render.Workers < 0 {
		return fmt.Errorf("%w: render.workers must not be negative", ErrInvalidConfig)
	}
	if err := c.Layout().Validate(); err != nil {
		return fmt.Errorf("%w: page: %v", ErrInvalidConfig, err)
	}
	if !contains(validLogLevels, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("%w: log.level %q (must be one of %s)",
			ErrInvalidConfig, c.Log.Level, strings.Join(validLogLevels, ", "))
	}
	if !contains(validLogFormats, strings.ToLower(c.Log.Format)) {
		return fmt.Errorf("%w: log.format %q (must be one of %s)",
			ErrInvalidConfig, c.Log.Format, strings.Join(validLogFormats, ", "))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("%w: rateLimit values must not be negative", ErrInvalidConfig)
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		return fmt.Errorf("%w: rateLimit.burst must be at least 1 when rps is set", ErrInvalidConfig)
	}
	if c.Metrics.Enabled && c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("%w: metrics.path %q must start with /", ErrInvalidConfig, c.Metrics.Path)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sampleRatio must be between 0 and 1", ErrInvalidConfig)
	}
	return nil
}

// Layout converts the page section into the engine's layout.
func (c Config) Layout() vulcan.Layout {
	return vulcan.Layout{
		Format:          strings.ToLower(c.Page.Format),
		MarginTop:       c.Page.MarginTop,
		MarginBottom:    c.Page.MarginBottom,
		MarginLeft:      c.Page.MarginLeft,
		MarginRight:     c.Page.MarginRight,
		Scale:           c.Page.Scale,
		PrintBackground: c.Page.PrintBackground,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

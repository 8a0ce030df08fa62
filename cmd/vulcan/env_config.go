package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/alnah/vulcan/internal/config"
)

// envPrefix marks the service's own variables. PORT, STORAGE_DIR,
// STORAGE_BASE_URL and BASE_URL are accepted unprefixed for compatibility
// with existing deployments.
const envPrefix = "VULCAN_"

// Variables read outside the binding table.
const (
	envConfigPath    = "VULCAN_CONFIG"
	envContainer     = "VULCAN_CONTAINER"
	envRodBrowserBin = "ROD_BROWSER_BIN"
)

// envBinding maps one environment variable onto the configuration.
type envBinding struct {
	name  string
	apply func(cfg *config.Config, value string) error
}

// envBindings lists every variable that overlays the config file.
var envBindings = []envBinding{
	// Deployment essentials
	{"PORT", func(c *config.Config, v string) error { return setInt(&c.Server.Port, v) }},
	{"STORAGE_DIR", func(c *config.Config, v string) error { c.Storage.Dir = v; return nil }},
	{"STORAGE_BASE_URL", func(c *config.Config, v string) error { c.Storage.BaseURL = v; return nil }},
	{"BASE_URL", func(c *config.Config, v string) error { c.BaseURL = v; return nil }},

	// Server and rendering
	{"VULCAN_HOST", func(c *config.Config, v string) error { c.Server.Host = v; return nil }},
	{"VULCAN_MAX_BODY_BYTES", func(c *config.Config, v string) error { return setInt64(&c.Server.MaxBodyBytes, v) }},
	{"VULCAN_TIMEOUT", func(c *config.Config, v string) error { return setDuration(&c.Render.Timeout, v) }},
	{"VULCAN_WORKERS", func(c *config.Config, v string) error { return setInt(&c.Render.Workers, v) }},
	{"VULCAN_STAGING_DIR", func(c *config.Config, v string) error { c.Render.StagingDir = v; return nil }},
	{"VULCAN_BROWSER_BIN", func(c *config.Config, v string) error { c.Browser.Bin = v; return nil }},
	{"VULCAN_NO_SANDBOX", func(c *config.Config, v string) error { return setBool(&c.Browser.NoSandbox, v) }},

	// Observability and limits
	{"VULCAN_LOG_LEVEL", func(c *config.Config, v string) error { c.Log.Level = v; return nil }},
	{"VULCAN_LOG_FORMAT", func(c *config.Config, v string) error { c.Log.Format = v; return nil }},
	{"VULCAN_RATE_LIMIT_RPS", func(c *config.Config, v string) error { return setFloat(&c.RateLimit.RPS, v) }},
	{"VULCAN_RATE_LIMIT_BURST", func(c *config.Config, v string) error { return setInt(&c.RateLimit.Burst, v) }},
	{"VULCAN_METRICS_ENABLED", func(c *config.Config, v string) error { return setBool(&c.Metrics.Enabled, v) }},
	{"VULCAN_OTLP_ENDPOINT", func(c *config.Config, v string) error { c.Tracing.Endpoint = v; return nil }},
	{"VULCAN_OTLP_INSECURE", func(c *config.Config, v string) error { return setBool(&c.Tracing.Insecure, v) }},
}

// knownEnvVars lists valid VULCAN_* environment variables.
// Used to detect typos and warn users about unknown variables.
func knownEnvVars() []string {
	names := []string{envConfigPath, envContainer}
	for _, b := range envBindings {
		if strings.HasPrefix(b.name, envPrefix) {
			names = append(names, b.name)
		}
	}
	return names
}

// applyEnvConfig overlays set environment variables onto cfg.
// Empty values are treated as unset. ROD_BROWSER_BIN is honored when
// VULCAN_BROWSER_BIN is absent.
func applyEnvConfig(cfg *config.Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := b.apply(cfg, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%w: %s: %v", config.ErrInvalidConfig, b.name, err)
		}
	}

	if v, ok := lookup("VULCAN_BROWSER_BIN"); !ok || v == "" {
		if rod, ok := lookup(envRodBrowserBin); ok && rod != "" {
			cfg.Browser.Bin = rod
		}
	}
	return nil
}

// warnUnknownEnvVars prints a warning for unrecognized VULCAN_* variables.
// Helps catch typos like VULCAN_WORKER instead of VULCAN_WORKERS.
func warnUnknownEnvVars(w io.Writer, environ []string) {
	known := knownEnvVars()
	for _, env := range environ {
		if !strings.HasPrefix(env, envPrefix) {
			continue
		}
		name, _, _ := strings.Cut(env, "=")
		if !slices.Contains(known, name) {
			fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
		}
	}
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("not an integer: %q", v)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, v string) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %q", v)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", v)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("not a boolean: %q", v)
	}
	*dst = b
	return nil
}

func setDuration(dst *config.Duration, v string) error {
	d, err := config.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

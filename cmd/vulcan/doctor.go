package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"

	"github.com/alnah/vulcan"
	"github.com/alnah/vulcan/internal/config"
	"github.com/alnah/vulcan/internal/fileutil"
	"github.com/alnah/vulcan/internal/hints"
)

// Doctor statuses.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// probeHTML is rendered by --probe.
const probeHTML = "<!doctype html><html><body><p>vulcan doctor</p></body></html>"

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"`
	Chrome   chromeInfo `json:"chrome"`
	Env      envInfo    `json:"environment"`
	Storage  dirInfo    `json:"storage"`
	Staging  dirInfo    `json:"staging"`
	Probe    *probeInfo `json:"probe,omitempty"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`

	cfg config.Config
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
}

// dirInfo reports whether a directory the service writes to is usable.
type dirInfo struct {
	Path     string `json:"path"`
	Writable bool   `json:"writable"`
}

// probeInfo reports the outcome of a real render.
type probeInfo struct {
	OK         bool   `json:"ok"`
	Bytes      int    `json:"bytes,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found, 2 = bad usage.
func runDoctorCmd(args []string, env *Environment) int {
	fs := flag.NewFlagSet("vulcan doctor", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	jsonOutput := fs.Bool("json", false, "print results as JSON")
	probe := fs.Bool("probe", false, "render a test page through the configured engine")
	configPath := fs.StringP("config", "c", "", "YAML config file (env VULCAN_CONFIG)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, err)
		return ExitUsage
	}

	cfg, err := resolveConfig(env, *configPath, nil)
	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		return exitCodeFor(err)
	}

	result := runDoctor(cfg, env)
	if *probe && result.Chrome.Found {
		runProbe(result, cfg)
	}
	result.finalize()

	if *jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all static checks.
func runDoctor(cfg config.Config, env *Environment) *doctorResult {
	result := &doctorResult{
		Env: envInfo{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
		cfg: cfg,
	}

	checkChrome(result)
	checkEnvironment(result, env)
	checkDirs(result)
	result.finalize()

	return result
}

// finalize derives the overall status from collected findings.
func (r *doctorResult) finalize() {
	switch {
	case len(r.Errors) > 0:
		r.Status = statusErrors
	case len(r.Warnings) > 0:
		r.Status = statusWarnings
	default:
		r.Status = statusReady
	}
}

// checkChrome detects Chrome/Chromium installation.
func checkChrome(result *doctorResult) {
	chromePath := result.cfg.Browser.Bin
	result.Chrome.Sandbox = !result.cfg.Browser.NoSandbox

	if chromePath == "" {
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			result.Errors = append(result.Errors,
				"Chrome/Chromium not found"+hints.ForBrowserConnect(result.cfg.Browser.NoSandbox, ""))
			return
		}
	}

	if !fileutil.FileExists(chromePath) {
		result.Errors = append(result.Errors,
			"Chrome not found"+hints.ForBrowserConnect(result.cfg.Browser.NoSandbox, chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	// #nosec G204 -- path comes from operator config or rod's lookup
	out, err := exec.Command(chromePath, "--version").Output()
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult, env *Environment) {
	result.Env.Container, result.Env.ContainerHint = isContainer(env)

	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if env.getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if (result.Env.Container || result.Env.CI) && result.Chrome.Sandbox {
		result.Warnings = append(result.Warnings,
			"Container/CI detected with the Chrome sandbox enabled. Set VULCAN_NO_SANDBOX=true")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer(env *Environment) (bool, string) {
	if env.getenv(envContainer) == "1" {
		return true, envContainer + "=1"
	}
	if hints.IsInContainer() {
		return true, "/.dockerenv"
	}
	if v := env.getenv("container"); v != "" {
		return true, "container=" + v
	}
	if env.getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkDirs verifies the storage root and staging directory are writable.
// The storage root is created if missing, as the service does at startup.
func checkDirs(result *doctorResult) {
	result.Storage.Path = result.cfg.Storage.Dir
	if store, err := vulcan.NewStore(result.cfg.Storage.Dir); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Storage directory unusable: %v%s", err, hints.ForStorageDir(result.cfg.Storage.Dir)))
	} else {
		result.Storage.Path = store.Root()
		result.Storage.Writable = probeWritable(store.Root())
		if !result.Storage.Writable {
			result.Errors = append(result.Errors,
				"Storage directory not writable"+hints.ForStorageDir(store.Root()))
		}
	}

	staging := result.cfg.Render.StagingDir
	if staging == "" {
		staging = os.TempDir()
	}
	result.Staging.Path = staging
	result.Staging.Writable = probeWritable(staging)
	if !result.Staging.Writable {
		result.Errors = append(result.Errors,
			"Staging directory not writable"+hints.ForStagingDir(result.cfg.Render.StagingDir))
	}
}

// probeWritable creates and removes a hidden file in dir.
func probeWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".vulcan-doctor-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name)) == nil
}

// runProbe renders a small page through a one-session engine.
func runProbe(result *doctorResult, cfg config.Config) {
	engine, err := vulcan.NewEngine(
		vulcan.WithTimeout(cfg.Render.Timeout.Std()),
		vulcan.WithStagingDir(cfg.Render.StagingDir),
		vulcan.WithLayout(cfg.Layout()),
		vulcan.WithWorkers(1),
		vulcan.WithBrowser(vulcan.BrowserOptions{Bin: result.Chrome.Path, NoSandbox: cfg.Browser.NoSandbox}),
	)
	if err != nil {
		result.Probe = &probeInfo{Error: err.Error()}
		result.Errors = append(result.Errors, "Render probe failed: "+err.Error())
		return
	}
	defer func() { _ = engine.Close() }()

	start := time.Now()
	pdf, err := engine.Render(context.Background(), vulcan.RenderJob{HTML: probeHTML, RequestID: "doctor-probe"})
	result.Probe = &probeInfo{DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		result.Probe.Error = err.Error()
		msg := "Render probe failed: " + err.Error()
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			msg += hints.ForTimeout()
		case errors.Is(err, vulcan.ErrBrowserConnect):
			msg += hints.ForBrowserConnect(cfg.Browser.NoSandbox, result.Chrome.Path)
		}
		result.Errors = append(result.Errors, msg)
		return
	}
	result.Probe.OK = true
	result.Probe.Bytes = len(pdf)
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "vulcan doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chrome/Chromium")
	if r.Chrome.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Chrome.Path)
		if r.Chrome.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Chrome.Version)
		}
		if r.Chrome.Sandbox {
			fmt.Fprintln(w, "  [OK] Sandbox: enabled")
		} else {
			fmt.Fprintln(w, "  [OK] Sandbox: disabled (VULCAN_NO_SANDBOX)")
		}
	} else {
		fmt.Fprintln(w, "  [ERROR] Not found")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Directories")
	printDir(w, "Storage", r.Storage)
	printDir(w, "Staging", r.Staging)
	fmt.Fprintln(w)

	if r.Probe != nil {
		fmt.Fprintln(w, "Render probe")
		if r.Probe.OK {
			fmt.Fprintf(w, "  [OK] %d bytes in %dms\n", r.Probe.Bytes, r.Probe.DurationMs)
		} else {
			fmt.Fprintln(w, "  [ERROR] failed")
		}
		fmt.Fprintln(w)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to serve")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	case statusErrors:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}

func printDir(w io.Writer, label string, d dirInfo) {
	if d.Writable {
		fmt.Fprintf(w, "  [OK] %s: %s (writable)\n", label, d.Path)
	} else {
		fmt.Fprintf(w, "  [ERROR] %s: %s (not writable)\n", label, d.Path)
	}
}

package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/alnah/vulcan/internal/config"
)

// ErrUsage marks invalid command-line usage.
var ErrUsage = errors.New("invalid usage")

// serveFlags holds the flags accepted by the serve (default) command.
type serveFlags struct {
	config      string
	host        string
	port        int
	storageDir  string
	timeout     string
	workers     int
	logLevel    string
	logFormat   string
	printConfig bool
	version     bool
}

// parseFlags parses args (without the program name). flag.ErrHelp is
// returned after usage has been printed for -h.
func parseFlags(args []string, stderr io.Writer) (*serveFlags, *flag.FlagSet, error) {
	f := &serveFlags{}
	fs := flag.NewFlagSet("vulcan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	fs.StringVarP(&f.config, "config", "c", "", "YAML config file (env VULCAN_CONFIG)")
	fs.StringVar(&f.host, "host", "", "listen host (env VULCAN_HOST)")
	fs.IntVarP(&f.port, "port", "p", 0, "listen port (env PORT)")
	fs.StringVar(&f.storageDir, "storage-dir", "", "directory for stored PDFs (env STORAGE_DIR)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-render deadline, e.g. 30s (env VULCAN_TIMEOUT)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "browser sessions, 0 = auto (env VULCAN_WORKERS)")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn, error (env VULCAN_LOG_LEVEL)")
	fs.StringVar(&f.logFormat, "log-format", "", "json or text (env VULCAN_LOG_FORMAT)")
	fs.BoolVar(&f.printConfig, "print-config", false, "print the effective configuration as YAML and exit")
	fs.BoolVarP(&f.version, "version", "v", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: vulcan [flags]")
		fmt.Fprintln(stderr, "       vulcan doctor [--json] [--probe] [--config FILE]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}
	return f, fs, nil
}

// apply overlays explicitly set flags onto cfg.
func (f *serveFlags) apply(fs *flag.FlagSet, cfg *config.Config) error {
	if fs.Changed("host") {
		cfg.Server.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Server.Port = f.port
	}
	if fs.Changed("storage-dir") {
		cfg.Storage.Dir = f.storageDir
	}
	if fs.Changed("timeout") {
		d, err := config.ParseDuration(f.timeout)
		if err != nil {
			return fmt.Errorf("%w: --timeout: %v", ErrUsage, err)
		}
		cfg.Render.Timeout = d
	}
	if fs.Changed("workers") {
		cfg.Render.Workers = f.workers
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	return nil
}

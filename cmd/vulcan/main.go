package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/alnah/vulcan/internal/config"
	"github.com/alnah/vulcan/internal/hints"
	"github.com/alnah/vulcan/internal/logging"
	"github.com/alnah/vulcan/internal/yamlutil"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	os.Exit(run(os.Args, DefaultEnv()))
}

// run executes the command line and returns the process exit code.
func run(args []string, env *Environment) int {
	if len(args) > 1 && args[1] == "doctor" {
		return runDoctorCmd(args[2:], env)
	}

	flags, fs, err := parseFlags(args[1:], env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, err)
		return exitCodeFor(err)
	}

	if flags.version {
		fmt.Fprintf(env.Stdout, "vulcan %s\n", Version)
		return ExitSuccess
	}

	cfg, err := resolveConfig(env, flags.config, func(c *config.Config) error {
		return flags.apply(fs, c)
	})
	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		return exitCodeFor(err)
	}

	if flags.printConfig {
		out, err := yamlutil.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(env.Stderr, err)
			return ExitGeneral
		}
		_, _ = env.Stdout.Write(out)
		return ExitSuccess
	}

	logger, err := logging.New(env.Stdout, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		return ExitUsage
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("Service stopped with error", logging.KeyError, err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// resolveConfig builds the effective configuration with precedence
// flags > env > file > defaults. override applies command-line values.
func resolveConfig(env *Environment, flagPath string, override func(*config.Config) error) (config.Config, error) {
	warnUnknownEnvVars(env.Stderr, env.Environ())

	path := flagPath
	if path == "" {
		path = env.getenv(envConfigPath)
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) {
				return config.Config{}, fmt.Errorf("%w%s", err, hints.ForConfigNotFound(path))
			}
			return config.Config{}, err
		}
		cfg = loaded
	}

	if err := applyEnvConfig(&cfg, env.LookupEnv); err != nil {
		return config.Config{}, err
	}
	if override != nil {
		if err := override(&cfg); err != nil {
			return config.Config{}, err
		}
	}

	cfg.Finalize()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

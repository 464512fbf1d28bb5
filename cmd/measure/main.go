// Package main provides the CLI entry point for measure, which times
// server-side rendering of a JavaScript UI library build across
// JavaScript engines.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/weiihann/ssrmeasure/bench"
	"github.com/weiihann/ssrmeasure/config"
	"github.com/weiihann/ssrmeasure/engine"
	"github.com/weiihann/ssrmeasure/trial"
)

var errUsage = errors.New("usage: measure <library-build.js> >out.txt")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code. Samples go to
// stdout; progress, logs and usage errors go to stderr.
func run(args []string, stdout, stderr io.Writer) int {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: level,
	}))

	// cobra falls back to os.Args when given nil.
	if args == nil {
		args = []string{}
	}

	root := newRootCmd(logger, level, stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stderr)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}

	if errors.Is(err, errUsage) {
		fmt.Fprintln(stderr, err)

		return 1
	}

	logger.Error("measure failed", slog.String("error", err.Error()))

	return exitCode(err)
}

// exitCode maps a run error to a status distinct from the usage status.
func exitCode(err error) int {
	var failure *engine.Failure
	if errors.As(err, &failure) && failure.ExitCode > 1 {
		return failure.ExitCode
	}

	return 2
}

type options struct {
	configPath       string
	benchName        string
	benchPath        string
	coldTrials       int
	warmTrials       int
	warmupIterations int
	timedIterations  int
	engines          []string
	verbose          bool
}

func newRootCmd(
	logger *slog.Logger,
	level *slog.LevelVar,
	stdout, stderr io.Writer,
) *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:   "measure <library-build.js>",
		Short: "Measure server-side rendering latency across JavaScript engines",
		Long: `Measure runs a fixed SSR benchmark against a library build in
JavaScriptCore (JIT on and off) and Node.js, once per fresh process for the
cold phase and with repeated renders for the warm phase. Each timing is
printed to stdout as "<label>_<engine> <ms>".`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errUsage
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.verbose {
				level.Set(slog.LevelDebug)
			}

			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}

			return runMeasure(cmd.Context(), logger, cfg, args[0], stdout, stderr)
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w (%v)", errUsage, err)
	})

	flags := root.Flags()
	flags.StringVar(&opts.configPath, "config", "",
		"Path to an HCL configuration file")
	flags.StringVar(&opts.benchName, "bench-name", bench.DefaultName,
		"Benchmark name used in reported labels")
	flags.StringVar(&opts.benchPath, "bench", bench.DefaultPath,
		"Path to the benchmark definition file")
	flags.IntVar(&opts.coldTrials, "cold-trials", trial.DefaultColdTrials,
		"Number of cold-phase trials")
	flags.IntVar(&opts.warmTrials, "warm-trials", trial.DefaultWarmTrials,
		"Number of warm-phase trials")
	flags.IntVar(&opts.warmupIterations, "warmup-iterations",
		bench.DefaultWarmupIterations,
		"Untimed renders before warm timing starts")
	flags.IntVar(&opts.timedIterations, "timed-iterations",
		bench.DefaultTimedIterations,
		"Timed renders per warm trial")
	flags.StringSliceVar(&opts.engines, "engines", engine.KnownTags(),
		"Engines to run, in order")
	flags.BoolVar(&opts.verbose, "verbose", false,
		"Log every engine invocation")

	return root
}

// resolveConfig layers the config file and explicitly set flags over the
// defaults.
func resolveConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	cfg := config.Default()

	if opts.configPath != "" {
		var err error

		cfg, err = config.Load(opts.configPath, os.Environ())
		if err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()

	if flags.Changed("bench-name") {
		cfg.BenchName = opts.benchName
	}
	if flags.Changed("bench") {
		cfg.BenchPath = opts.benchPath
	}
	if flags.Changed("cold-trials") {
		cfg.ColdTrials = opts.coldTrials
	}
	if flags.Changed("warm-trials") {
		cfg.WarmTrials = opts.warmTrials
	}
	if flags.Changed("warmup-iterations") {
		cfg.WarmupIterations = opts.warmupIterations
	}
	if flags.Changed("timed-iterations") {
		cfg.TimedIterations = opts.timedIterations
	}
	if flags.Changed("engines") {
		if err := cfg.SetEngines(opts.engines); err != nil {
			return config.Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func runMeasure(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.Config,
	libraryPath string,
	stdout, stderr io.Writer,
) error {
	engines := make([]bench.Engine, 0, len(cfg.Engines))

	for _, kind := range cfg.Engines {
		a := engine.NewAdapter(kind, cfg.Binaries[kind], logger)
		a.Stdout = stdout
		a.Stderr = stderr

		engines = append(engines, a)
	}

	logger.InfoContext(ctx, "starting measurement",
		slog.String("library", libraryPath),
		slog.String("bench", cfg.BenchPath),
		slog.Int("cold_trials", cfg.ColdTrials),
		slog.Int("warm_trials", cfg.WarmTrials),
		slog.Any("engines", cfg.Engines),
	)

	runner := &trial.Runner{
		Engines:    engines,
		Bench:      cfg.Bench(libraryPath),
		ColdTrials: cfg.ColdTrials,
		WarmTrials: cfg.WarmTrials,
		Progress:   stderr,
		Logger:     logger,
	}

	if err := runner.Run(ctx); err != nil {
		return err
	}

	logger.InfoContext(ctx, "measurement complete")

	return nil
}

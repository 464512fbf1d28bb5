// Package trial repeats the SSR benchmark across engines: a cold phase of
// many fresh-process trials followed by a warm phase of fewer, slower
// trials.
package trial

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/weiihann/ssrmeasure/bench"
)

const (
	DefaultColdTrials = 30
	DefaultWarmTrials = 3
)

// Runner measures every engine in order, one child process at a time.
type Runner struct {
	Engines    []bench.Engine
	Bench      bench.Config
	ColdTrials int
	WarmTrials int
	// Progress receives phase headers and one '.' per completed trial.
	Progress io.Writer
	Logger   *slog.Logger
}

type phase struct {
	header string
	trials int
	warm   bool
}

// Run executes the cold phase then the warm phase. The first engine
// failure aborts the run.
func (r *Runner) Run(ctx context.Context) error {
	phases := []phase{
		{
			header: fmt.Sprintf("Measuring SSR for %s benchmark (%d trials)",
				r.Bench.Name, r.ColdTrials),
			trials: r.ColdTrials,
		},
		{
			header: fmt.Sprintf("Measuring SSR for %s with warm JIT (%d slow trials)",
				r.Bench.Name, r.WarmTrials),
			trials: r.WarmTrials,
			warm:   true,
		},
	}

	for _, p := range phases {
		if p.trials <= 0 {
			continue
		}

		if err := r.runPhase(ctx, p); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) runPhase(ctx context.Context, p phase) error {
	fmt.Fprintln(r.Progress, p.header)

	r.Logger.DebugContext(ctx, "phase started",
		slog.Int("trials", p.trials),
		slog.Bool("warm", p.warm),
		slog.Int("engines", len(r.Engines)),
	)

	start := time.Now()

	for i := 0; i < p.trials; i++ {
		for _, eng := range r.Engines {
			if err := bench.Measure(ctx, eng, r.Bench, p.warm); err != nil {
				return fmt.Errorf("trial %d: %w", i+1, err)
			}
		}

		io.WriteString(r.Progress, ".")
		flush(r.Progress)
	}

	fmt.Fprintln(r.Progress)

	r.Logger.DebugContext(ctx, "phase finished",
		slog.Bool("warm", p.warm),
		slog.Duration("elapsed", time.Since(start)),
	)

	return nil
}

func flush(w io.Writer) {
	if f, ok := w.(interface{ Flush() error }); ok {
		f.Flush()
	}
}

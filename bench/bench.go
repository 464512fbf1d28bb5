// Package bench drives the server-side rendering benchmark inside an
// engine: it loads the library under test, loads the benchmark component,
// and reports cold and warm render timings.
package bench

import (
	"context"
	"fmt"

	"github.com/weiihann/ssrmeasure/engine"
)

const (
	DefaultName             = "pe"
	DefaultPath             = "bench-pe-es5.js"
	DefaultWarmupIterations = 80
	DefaultTimedIterations  = 40
)

// Engine evaluates an instrumentation script with params bound to ENV.
type Engine interface {
	Tag() string
	Run(ctx context.Context, script string, params engine.Params) error
}

// Config identifies the library build and benchmark to measure.
type Config struct {
	LibraryPath      string
	Name             string
	Path             string
	WarmupIterations int
	TimedIterations  int
}

// DefaultConfig returns the PE benchmark configuration for libraryPath.
func DefaultConfig(libraryPath string) Config {
	return Config{
		LibraryPath:      libraryPath,
		Name:             DefaultName,
		Path:             DefaultPath,
		WarmupIterations: DefaultWarmupIterations,
		TimedIterations:  DefaultTimedIterations,
	}
}

// Params returns the ENV bag for one invocation. Warm iterations are zero
// unless warm is set.
func (c Config) Params(warm bool) engine.Params {
	p := engine.Params{
		BenchName:   c.Name,
		LibraryPath: c.LibraryPath,
		BenchPath:   c.Path,
		MeasureWarm: warm,
	}

	if warm {
		p.WarmupIterations = c.WarmupIterations
		p.TimedIterations = c.TimedIterations
	}

	return p
}

// ssrScript reports factory_ms, one ssr_<name>_cold_ms and, when warm,
// ENV.timed_iterations ssr_<name>_warm_ms samples after
// ENV.warmup_iterations untimed renders.
const ssrScript = `
var libraryCode = readFile(ENV.library_path);
var START = now();
globalEval(libraryCode);
var END = now();
if (typeof React !== 'object') {
    throw new Error('React is not available after loading ' + ENV.library_path);
}
report('factory_ms', END - START);

globalEval(readFile(ENV.bench_path));
if (typeof Benchmark !== 'function') {
    throw new Error('Benchmark is not available after loading ' + ENV.bench_path);
}

var START = now();
var html = React.renderToString(React.createElement(Benchmark));
html.charCodeAt(0);  // flatten ropes
var END = now();
report('ssr_' + ENV.bench_name + '_cold_ms', END - START);

var warmup = ENV.measure_warm ? ENV.warmup_iterations : 0;
var trials = ENV.measure_warm ? ENV.timed_iterations : 0;

for (var i = 0; i < warmup; i++) {
    React.renderToString(React.createElement(Benchmark));
}

for (var i = 0; i < trials; i++) {
    var START = now();
    var html = React.renderToString(React.createElement(Benchmark));
    html.charCodeAt(0);
    var END = now();
    report('ssr_' + ENV.bench_name + '_warm_ms', END - START);
}
`

// Script returns the instrumentation script run by Measure.
func Script() string {
	return ssrScript
}

// Measure runs the benchmark once in eng. Any engine failure is returned
// wrapped; the caller decides whether to continue.
func Measure(ctx context.Context, eng Engine, cfg Config, warm bool) error {
	if err := eng.Run(ctx, ssrScript, cfg.Params(warm)); err != nil {
		return fmt.Errorf("measure %s on %s: %w", cfg.Name, eng.Tag(), err)
	}

	return nil
}

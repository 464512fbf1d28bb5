// Package config loads measurement settings from an optional HCL file.
//
// Every attribute is optional; values left out keep their defaults. The
// file may reference process environment variables as env.NAME.
//
//	cold_trials = 30
//	engines     = ["jsc_jit", "node"]
//
//	engine "node" {
//	  binary = env.NODE_BINARY
//	}
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/weiihann/ssrmeasure/bench"
	"github.com/weiihann/ssrmeasure/engine"
	"github.com/weiihann/ssrmeasure/trial"
)

// Config is the resolved measurement configuration.
type Config struct {
	BenchName        string
	BenchPath        string
	ColdTrials       int
	WarmTrials       int
	WarmupIterations int
	TimedIterations  int
	Engines          []engine.Kind
	// Binaries overrides the executable per kind.
	Binaries map[engine.Kind]string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BenchName:        bench.DefaultName,
		BenchPath:        bench.DefaultPath,
		ColdTrials:       trial.DefaultColdTrials,
		WarmTrials:       trial.DefaultWarmTrials,
		WarmupIterations: bench.DefaultWarmupIterations,
		TimedIterations:  bench.DefaultTimedIterations,
		Engines:          engine.KnownKinds(),
		Binaries:         map[engine.Kind]string{},
	}
}

// Bench returns the benchmark configuration for libraryPath.
func (c Config) Bench(libraryPath string) bench.Config {
	return bench.Config{
		LibraryPath:      libraryPath,
		Name:             c.BenchName,
		Path:             c.BenchPath,
		WarmupIterations: c.WarmupIterations,
		TimedIterations:  c.TimedIterations,
	}
}

// SetEngines replaces the engine order with the kinds named by tags.
func (c *Config) SetEngines(tags []string) error {
	kinds := make([]engine.Kind, 0, len(tags))

	for _, tag := range tags {
		k, err := engine.ParseKind(strings.TrimSpace(tag))
		if err != nil {
			return err
		}
		kinds = append(kinds, k)
	}

	c.Engines = kinds

	return nil
}

// Validate reports the first inconsistency in c.
func (c Config) Validate() error {
	if c.BenchPath == "" {
		return errors.New("bench path must not be empty")
	}

	if c.BenchName == "" {
		return errors.New("bench name must not be empty")
	}

	counts := []struct {
		name  string
		value int
	}{
		{"cold_trials", c.ColdTrials},
		{"warm_trials", c.WarmTrials},
		{"warmup_iterations", c.WarmupIterations},
		{"timed_iterations", c.TimedIterations},
	}
	for _, n := range counts {
		if n.value < 0 {
			return fmt.Errorf("%s must not be negative, got %d", n.name, n.value)
		}
	}

	if c.WarmTrials > 0 && c.TimedIterations == 0 {
		return errors.New("timed_iterations must be positive when warm_trials is set")
	}

	if len(c.Engines) == 0 {
		return errors.New("at least one engine must be configured")
	}

	seen := make(map[engine.Kind]bool, len(c.Engines))
	for _, k := range c.Engines {
		if seen[k] {
			return fmt.Errorf("engine %s listed more than once", k)
		}
		seen[k] = true
	}

	return nil
}

type hclFile struct {
	BenchName        *string     `hcl:"bench_name,optional"`
	BenchPath        *string     `hcl:"bench_path,optional"`
	ColdTrials       *int        `hcl:"cold_trials,optional"`
	WarmTrials       *int        `hcl:"warm_trials,optional"`
	WarmupIterations *int        `hcl:"warmup_iterations,optional"`
	TimedIterations  *int        `hcl:"timed_iterations,optional"`
	Engines          *[]string   `hcl:"engines,optional"`
	EngineBlocks     []hclEngine `hcl:"engine,block"`
}

type hclEngine struct {
	Tag    string `hcl:"tag,label"`
	Binary string `hcl:"binary,optional"`
}

// Load parses the HCL file at path over the defaults.
func Load(path string, environ []string) (Config, error) {
	parser := hclparse.NewParser()

	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, diags)
	}

	return decode(f, path, environ)
}

// Parse parses HCL source over the defaults. filename is used in
// diagnostics only.
func Parse(src []byte, filename string, environ []string) (Config, error) {
	parser := hclparse.NewParser()

	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}

	return decode(f, filename, environ)
}

func decode(f *hcl.File, filename string, environ []string) (Config, error) {
	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, evalContext(environ), &parsed); diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}

	cfg := Default()

	if parsed.BenchName != nil {
		cfg.BenchName = *parsed.BenchName
	}
	if parsed.BenchPath != nil {
		cfg.BenchPath = *parsed.BenchPath
	}
	if parsed.ColdTrials != nil {
		cfg.ColdTrials = *parsed.ColdTrials
	}
	if parsed.WarmTrials != nil {
		cfg.WarmTrials = *parsed.WarmTrials
	}
	if parsed.WarmupIterations != nil {
		cfg.WarmupIterations = *parsed.WarmupIterations
	}
	if parsed.TimedIterations != nil {
		cfg.TimedIterations = *parsed.TimedIterations
	}
	if parsed.Engines != nil {
		if err := cfg.SetEngines(*parsed.Engines); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", filename, err)
		}
	}

	for _, block := range parsed.EngineBlocks {
		k, err := engine.ParseKind(block.Tag)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", filename, err)
		}

		if _, dup := cfg.Binaries[k]; dup {
			return Config{}, fmt.Errorf("config %s: duplicate engine %q block", filename, block.Tag)
		}

		cfg.Binaries[k] = block.Binary
	}

	return cfg, nil
}

// evalContext exposes environ as the env object.
func evalContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(environ))

	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}

	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
	}
}

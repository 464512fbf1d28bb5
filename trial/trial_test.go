package trial

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/weiihann/ssrmeasure/bench"
	"github.com/weiihann/ssrmeasure/engine"
)

type call struct {
	Tag  string
	Warm bool
}

type fakeEngine struct {
	tag   string
	calls *[]call
	fail  error
}

func (e *fakeEngine) Tag() string {
	return e.tag
}

func (e *fakeEngine) Run(_ context.Context, _ string, params engine.Params) error {
	*e.calls = append(*e.calls, call{Tag: e.tag, Warm: params.MeasureWarm})

	return e.fail
}

func newRunner(calls *[]call, progress io.Writer, engines ...*fakeEngine) *Runner {
	r := &Runner{
		Bench:      bench.DefaultConfig("react.min.js"),
		ColdTrials: DefaultColdTrials,
		WarmTrials: DefaultWarmTrials,
		Progress:   progress,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, e := range engines {
		e.calls = calls
		r.Engines = append(r.Engines, e)
	}

	return r
}

func threeEngines() []*fakeEngine {
	return []*fakeEngine{
		{tag: "jsc_jit"},
		{tag: "jsc_nojit"},
		{tag: "node"},
	}
}

func TestRunOrderAndCounts(t *testing.T) {
	var (
		calls    []call
		progress bytes.Buffer
	)

	r := newRunner(&calls, &progress, threeEngines()...)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var want []call
	for i := 0; i < 30; i++ {
		for _, tag := range []string{"jsc_jit", "jsc_nojit", "node"} {
			want = append(want, call{Tag: tag})
		}
	}
	for i := 0; i < 3; i++ {
		for _, tag := range []string{"jsc_jit", "jsc_nojit", "node"} {
			want = append(want, call{Tag: tag, Warm: true})
		}
	}

	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	wantProgress := "Measuring SSR for pe benchmark (30 trials)\n" +
		strings.Repeat(".", 30) + "\n" +
		"Measuring SSR for pe with warm JIT (3 slow trials)\n" +
		"...\n"
	if progress.String() != wantProgress {
		t.Errorf("progress = %q, want %q", progress.String(), wantProgress)
	}
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	var (
		calls    []call
		progress bytes.Buffer
	)

	engines := threeEngines()
	failure := &engine.Failure{Engine: "jsc_nojit", ExitCode: 1}
	engines[1].fail = failure

	r := newRunner(&calls, &progress, engines...)

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var got *engine.Failure
	if !errors.As(err, &got) || got != failure {
		t.Errorf("error %v does not wrap the engine failure", err)
	}

	want := []call{{Tag: "jsc_jit"}, {Tag: "jsc_nojit"}}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	if strings.Contains(progress.String(), ".") {
		t.Errorf("progress marker written for a failed trial: %q", progress.String())
	}
}

func TestRunSkipsEmptyPhase(t *testing.T) {
	var (
		calls    []call
		progress bytes.Buffer
	)

	r := newRunner(&calls, &progress, threeEngines()...)
	r.ColdTrials = 0
	r.WarmTrials = 1

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(calls) != 3 {
		t.Fatalf("got %d calls, want 3", len(calls))
	}
	for _, c := range calls {
		if !c.Warm {
			t.Errorf("call %+v is not warm", c)
		}
	}

	want := "Measuring SSR for pe with warm JIT (1 slow trials)\n.\n"
	if progress.String() != want {
		t.Errorf("progress = %q, want %q", progress.String(), want)
	}
}

type countingWriter struct {
	*bufio.Writer
	flushes int
}

func (w *countingWriter) Flush() error {
	w.flushes++

	return w.Writer.Flush()
}

func TestRunFlushesProgress(t *testing.T) {
	var (
		calls []call
		buf   bytes.Buffer
	)

	w := &countingWriter{Writer: bufio.NewWriter(&buf)}

	r := newRunner(&calls, w, threeEngines()...)
	r.ColdTrials = 2
	r.WarmTrials = 1

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if w.flushes != 3 {
		t.Errorf("flushes = %d, want 3", w.flushes)
	}
	if !strings.HasPrefix(buf.String(), "Measuring SSR for pe benchmark (2 trials)\n..") {
		t.Errorf("flushed progress = %q", buf.String())
	}
}

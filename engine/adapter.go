package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Failure reports an engine process that could not be started or exited
// with a non-zero status.
type Failure struct {
	Engine string
	// ExitCode is the child's exit status, or -1 when it never ran or was
	// killed by a signal.
	ExitCode int
	Err      error
}

func (f *Failure) Error() string {
	if f.ExitCode >= 0 {
		return fmt.Sprintf("engine %s exited with status %d", f.Engine, f.ExitCode)
	}

	return fmt.Sprintf("engine %s failed: %v", f.Engine, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Adapter runs scripts in one runtime kind as a child process.
type Adapter struct {
	Kind   Kind
	Binary string
	// ExtraArgs are passed before "-e <script>".
	ExtraArgs []string
	// BaseEnv is the environment each child starts from. When nil the
	// current process environment is read at every Run.
	BaseEnv []string
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
}

// NewAdapter creates an Adapter for kind. An empty binary selects the
// kind's default executable. Output is passed straight through to the
// current process's stdout and stderr.
func NewAdapter(kind Kind, binary string, logger *slog.Logger) *Adapter {
	if binary == "" {
		binary = kind.DefaultBinary()
	}

	return &Adapter{
		Kind:   kind,
		Binary: binary,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger.With(slog.String("engine", kind.Tag())),
	}
}

// Tag returns the engine tag of the adapter's kind.
func (a *Adapter) Tag() string {
	return a.Kind.Tag()
}

// Command builds the child process that evaluates body with params bound
// to ENV.
func (a *Adapter) Command(
	ctx context.Context,
	body string,
	params Params,
) (*exec.Cmd, error) {
	script, err := Render(a.Kind, body, params)
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, len(a.ExtraArgs)+2)
	args = append(args, a.ExtraArgs...)
	args = append(args, "-e", script)

	cmd := exec.CommandContext(ctx, a.Binary, args...)

	base := a.BaseEnv
	if base == nil {
		base = os.Environ()
	}

	cmd.Env = a.Kind.Environ(base)
	cmd.Stdout = a.Stdout
	cmd.Stderr = a.Stderr

	return cmd, nil
}

// Run evaluates body in a new child process and waits for it to exit.
// A non-zero exit is returned as a *Failure.
func (a *Adapter) Run(ctx context.Context, body string, params Params) error {
	cmd, err := a.Command(ctx, body, params)
	if err != nil {
		return err
	}

	a.Logger.DebugContext(ctx, "starting engine",
		slog.String("binary", a.Binary),
		slog.Bool("measure_warm", params.MeasureWarm),
	)

	wallStart := time.Now()

	if err := cmd.Run(); err != nil {
		failure := &Failure{Engine: a.Tag(), ExitCode: -1, Err: err}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			failure.ExitCode = exitErr.ExitCode()
		}

		return failure
	}

	a.Logger.DebugContext(ctx, "engine finished",
		slog.Duration("wall_time", time.Since(wallStart)),
	)

	return nil
}

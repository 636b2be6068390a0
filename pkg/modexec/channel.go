package modexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/convoyops/convoy/pkg/modexec"

// DefaultKillGrace is how long the channel waits for a forcibly terminated
// process to release its output pipes before abandoning them.
const DefaultKillGrace = 2 * time.Second

// Config holds the invocation channel settings. The argument variable name
// and kill grace are explicit configuration so multiple channels can run
// with different settings in one process without interference.
type Config struct {
	// ArgsVar is the environment variable carrying the encoded arguments.
	// Defaults to DefaultArgsVar.
	ArgsVar string

	// KillGrace bounds how long a timed-out invocation may linger after the
	// process is killed. Defaults to DefaultKillGrace.
	KillGrace time.Duration
}

// Channel launches module executables and interprets their output per the
// invocation contract. A Channel is safe for concurrent use; every
// invocation owns its own subprocess and output buffers.
type Channel struct {
	argsVar   string
	killGrace time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewChannel creates an invocation channel.
func NewChannel(cfg Config, logger zerolog.Logger) *Channel {
	argsVar := cfg.ArgsVar
	if argsVar == "" {
		argsVar = DefaultArgsVar
	}
	killGrace := cfg.KillGrace
	if killGrace <= 0 {
		killGrace = DefaultKillGrace
	}

	return &Channel{
		argsVar:   argsVar,
		killGrace: killGrace,
		logger:    logger.With().Str("component", "modexec").Logger(),
		tracer:    otel.Tracer(tracerName),
	}
}

// ArgsVar returns the environment variable name the channel delivers
// arguments through.
func (c *Channel) ArgsVar() string {
	return c.argsVar
}

// Invoke runs a module executable with the given arguments and interprets
// its output. A timeout of zero means no deadline beyond ctx's own.
//
// A *Result with Failed set is returned without error when the module itself
// reports failure; a non-nil error means the channel could not complete the
// invocation (launch, protocol, or timeout failure).
func (c *Channel) Invoke(ctx context.Context, executable string, args map[string]interface{}, timeout time.Duration) (*Result, error) {
	return c.invoke(ctx, executable, nil, args, timeout)
}

// InvokeArgv is Invoke with explicit command-line arguments in addition to
// the encoded argument payload. Dynamic inventory sources are driven through
// this form (--list, --host <name>).
func (c *Channel) InvokeArgv(ctx context.Context, executable string, argv []string, args map[string]interface{}, timeout time.Duration) (*Result, error) {
	return c.invoke(ctx, executable, argv, args, timeout)
}

func (c *Channel) invoke(ctx context.Context, executable string, argv []string, args map[string]interface{}, timeout time.Duration) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "modexec.invoke",
		trace.WithAttributes(
			attribute.String("module.executable", executable),
			attribute.Int64("module.timeout_ms", timeout.Milliseconds()),
		))
	defer span.End()

	encoded, err := EncodeArgs(args)
	if err != nil {
		return nil, NewLaunchError("arguments are not JSON-serializable", err).
			WithExecutable(executable)
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, executable, argv...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", c.argsVar, encoded))
	cmd.WaitDelay = c.killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		c.logger.Warn().
			Str("executable", executable).
			Dur("timeout", timeout).
			Msg("Module invocation timed out, process killed")
		return nil, NewTimeoutError(
			fmt.Sprintf("invocation exceeded %s deadline", timeout), runCtx.Err()).
			WithExecutable(executable).
			WithRawOutput(stdout.String()).
			WithStderr(stderr.String())
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, NewLaunchError("failed to start module process", runErr).
				WithExecutable(executable)
		}
		exitCode = exitErr.ExitCode()
	}

	doc, parseErr := parseOutput(stdout.Bytes())
	if parseErr != nil {
		var pe *InvokeError
		if errors.As(parseErr, &pe) {
			pe.WithExecutable(executable).WithExitCode(exitCode).WithStderr(stderr.String())
		}
		return nil, parseErr
	}

	result := newResult(doc, exitCode, stderr.String(), duration)

	c.logger.Debug().
		Str("executable", executable).
		Int("exit_code", result.ExitCode).
		Bool("changed", result.Changed).
		Bool("failed", result.Failed).
		Dur("duration", duration).
		Msg("Module invocation completed")

	return result, nil
}

// Package runner executes resolved recipes as shell subprocesses with the
// configuration set broadcast into each child's environment.
package runner

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"syscall"
	"time"

	"github.com/pyrill/rilldev/internal/config"
	"github.com/pyrill/rilldev/internal/log"
	"github.com/pyrill/rilldev/internal/recipe"
)

const (
	// maxStderrBytes caps the stderr tail retained for the run journal.
	maxStderrBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before SIGKILL.
	terminationGracePeriod = 5 * time.Second
)

// Result summarizes one recipe execution.
type Result struct {
	Recipe     string
	ExitCode   int
	Duration   time.Duration
	StderrTail string
}

// Runner executes recipes in a working directory.
type Runner struct {
	cfg    *config.Config
	dir    string
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithOutput redirects the child process streams (used by tests and the
// sub-build delegation).
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a Runner rooted at dir.
func New(cfg *config.Config, dir string, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		dir:    dir,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: log.WithComponent("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the recipe's steps in order, stopping at the first failure.
// Every variable of the configuration set is present, unmodified, in each
// child's environment; recipe-level env entries are appended last so they
// win over the shared set.
func (r *Runner) Run(ctx context.Context, rec *recipe.Recipe) (*Result, error) {
	recLogger := r.logger.With("recipe", rec.Name)
	recLogger.Info("executing recipe", "steps", len(rec.Steps), "timeout", rec.Timeout)

	start := time.Now()
	env := r.cfg.Environ(os.Environ())
	env = appendRecipeEnv(env, rec.Env)

	var tail bytes.Buffer

	for _, step := range rec.Steps {
		exitCode, err := r.runStep(ctx, step, env, &tail, rec.Timeout, recLogger)
		if err != nil {
			return r.result(rec, 1, start, &tail), err
		}
		if exitCode != 0 {
			recLogger.Warn("step failed", "step", step, "exit_code", exitCode)
			return r.result(rec, exitCode, start, &tail), &StepError{
				Recipe:   rec.Name,
				Step:     step,
				ExitCode: exitCode,
			}
		}
	}

	recLogger.Info("recipe completed", "duration_ms", time.Since(start).Milliseconds())
	return r.result(rec, 0, start, &tail), nil
}

func (r *Runner) result(rec *recipe.Recipe, code int, start time.Time, tail *bytes.Buffer) *Result {
	return &Result{
		Recipe:     rec.Name,
		ExitCode:   code,
		Duration:   time.Since(start),
		StderrTail: tail.String(),
	}
}

// runStep spawns one step via the shell and waits for it, enforcing the
// timeout with SIGTERM first and SIGKILL after a grace period.
func (r *Runner) runStep(
	ctx context.Context,
	step string,
	env []string,
	tail *bytes.Buffer,
	timeout time.Duration,
	logger *slog.Logger,
) (int, error) {
	cmd := exec.Command("sh", "-c", step)
	cmd.Dir = r.dir
	cmd.Env = env
	cmd.Stdout = r.stdout
	cmd.Stderr = io.MultiWriter(r.stderr, &boundedWriter{buf: tail, max: maxStderrBytes})

	logger.Debug("spawning step", "step", step)

	if err := cmd.Start(); err != nil {
		return 1, &MissingCollaboratorError{Kind: "shell", Path: "sh"}
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-ctx.Done():
		r.terminate(cmd, waitErr, logger)
		return 1, ctx.Err()

	case <-timeoutCh:
		logger.Warn("step timed out, sending SIGTERM", "step", step, "timeout", timeout)
		r.terminate(cmd, waitErr, logger)
		return 1, &TimeoutError{Recipe: step, Timeout: timeout}

	case err := <-waitErr:
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				return exitErr.ExitCode(), nil
			}
			return 1, err
		}
		return 0, nil
	}
}

// terminate sends SIGTERM, waits out the grace period, then SIGKILLs.
func (r *Runner) terminate(cmd *exec.Cmd, waitErr chan error, logger *slog.Logger) {
	if cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			logger.Error("failed to send SIGTERM", "error", err)
		}
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()

	select {
	case <-waitErr:
	case <-grace.C:
		logger.Warn("step did not exit after SIGTERM, sending SIGKILL")
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				logger.Error("failed to send SIGKILL", "error", err)
			}
		}
		<-waitErr
	}
}

// appendRecipeEnv appends recipe-level env entries in sorted key order.
func appendRecipeEnv(env []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return env
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// boundedWriter keeps the first max bytes written and silently drops the rest.
type boundedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if remaining := w.max - w.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			p = p[:remaining]
		}
		w.buf.Write(p)
	}
	return n, nil
}

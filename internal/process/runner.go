// Package process builds and runs external commands for devsetup.
//
// Commands are described by an immutable Spec and executed synchronously by
// a Runner. Arguments always reach the child as a literal argv; when shell
// interpretation is needed the caller asks for it explicitly (bash -c).
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/logging"
)

// waitDelay bounds how long Wait keeps reading output after the child is
// gone, in case a grandchild escaped the process group holding our pipes.
const waitDelay = 5 * time.Second

// Executor runs a Spec to completion.
// This interface lets the install steps and probes be tested without
// spawning real processes.
type Executor interface {
	Execute(ctx context.Context, spec *Spec) (*Result, error)
}

// Observer is notified after every command finishes, successfully or not.
type Observer interface {
	CommandFinished(spec *Spec, elapsed time.Duration, err error)
}

// Result captures the outcome of a process execution.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Logger *slog.Logger

	// Observer receives per-command timings (optional).
	Observer Observer

	// DefaultTimeout applies to specs without their own timeout.
	// Zero means no limit.
	DefaultTimeout time.Duration

	// Verbose streams every stderr line to the logger, not only
	// warnings and errors.
	Verbose bool
}

// Runner executes commands with os/exec.
type Runner struct {
	logger         *slog.Logger
	observer       Observer
	defaultTimeout time.Duration
	verbose        bool
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		logger:         logger,
		observer:       cfg.Observer,
		defaultTimeout: cfg.DefaultTimeout,
		verbose:        cfg.Verbose,
	}
}

// Execute runs spec and blocks until the child exits.
//
// On exit status 0 it returns the captured output. A non-zero exit yields a
// *ScriptingError carrying stderr and the exit code, a failure to start
// yields a *SpawnError, and an expired timeout yields a *TimeoutError. In the
// last case, and on context cancellation, the child's whole process group is
// killed before Execute returns.
func (r *Runner) Execute(ctx context.Context, spec *Spec) (*Result, error) {
	start := time.Now()
	result, err := r.execute(ctx, spec)
	elapsed := time.Since(start)

	if r.observer != nil && spec != nil {
		r.observer.CommandFinished(spec, elapsed, err)
	}
	return result, err
}

func (r *Runner) execute(ctx context.Context, spec *Spec) (*Result, error) {
	if spec == nil || spec.program == "" {
		return nil, &SpawnError{Cause: os.ErrInvalid}
	}

	display := spec.String()
	cmd := exec.Command(spec.program, spec.args...)
	cmd.Dir = spec.dir
	if len(spec.env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), spec.env)
	}
	if spec.stdin != nil {
		cmd.Stdin = bytes.NewReader(spec.stdin)
	}
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout

	// stderr is captured verbatim and also streamed line by line to the log.
	handler := logging.NewStderrHandler(display, r.logger, r.verbose)
	pr, pw := io.Pipe()
	cmd.Stderr = io.MultiWriter(&stderr, pw)
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		handler.HandleReader(pr)
	}()
	closeStream := func() {
		pw.Close()
		<-streamDone
	}

	r.logger.Debug("command_started", "command", display)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		closeStream()
		r.logger.Debug("command_spawn_failed", "command", display, "error", err)
		return nil, &SpawnError{Program: spec.program, Cause: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timeout := spec.timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	var waitErr, abortErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		abortErr = fmt.Errorf("command %s aborted: %w", spec.program, ctx.Err())
	case <-timer:
		killProcessGroup(cmd)
		<-done
		abortErr = &TimeoutError{Command: display, Duration: timeout}
	}
	closeStream()

	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode(cmd, waitErr),
		Duration: time.Since(start),
	}

	if abortErr != nil {
		result.ExitCode = -1
		r.logger.Warn("command_aborted",
			"command", display,
			"error", abortErr,
			"stderr_tail", handler.RecentLines(5),
		)
		return result, abortErr
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			// Wait failed for a reason other than the exit status
			// (output copy error, WaitDelay expiry).
			return result, &SpawnError{Program: spec.program, Cause: waitErr}
		}
		r.logger.Debug("command_failed",
			"command", display,
			"exit_code", result.ExitCode,
			"duration", result.Duration.String(),
			"stderr_tail", handler.RecentLines(5),
		)
		return result, &ScriptingError{
			Program:  spec.program,
			Message:  stderr.String(),
			ExitCode: result.ExitCode,
		}
	}

	r.logger.Debug("command_finished",
		"command", display,
		"duration", result.Duration.String(),
	)
	return result, nil
}

// exitCode extracts the exit status. A child killed by a signal reports -1.
func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

// mergeEnv layers overrides on top of base, replacing existing keys so the
// child sees exactly one value per variable.
func mergeEnv(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key := kv
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key = kv[:i]
				break
			}
		}
		if _, ok := overrides[key]; ok {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

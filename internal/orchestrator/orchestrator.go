// Package orchestrator runs the install plan: OS guard, preflight, then
// every step in order with its post-install check, stopping at the first
// failure.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/logging"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/metrics"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/preflight"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/privilege"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/provision"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/verify"
)

// ErrPreflight is returned when a required preflight check fails.
var ErrPreflight = errors.New("preflight checks failed (use --skip-preflight to override)")

// Reporter receives progress events. Indexes are zero-based.
type Reporter interface {
	RunStarted(steps []string, target string)
	StepStarted(index int, name string)
	SubStep(index int, name string)
	StepSucceeded(index int, name string, elapsed time.Duration)
	StepFailed(index int, name string, elapsed time.Duration, err error)
	RunFinished(elapsed time.Duration, err error)
}

// Verifier probes an installed tool.
type Verifier interface {
	Verify(ctx context.Context, tool verify.Tool, priv privilege.Context) error
}

// Recorder collects run metrics.
type Recorder interface {
	StepFinished(name string, elapsed time.Duration, err error)
	RunFinished(elapsed time.Duration, err error)
	CommandStats() metrics.CommandStats
}

// StepError is returned when a step or its check fails. Index is 1-based.
type StepError struct {
	Index int
	Name  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Options configures an Orchestrator.
type Options struct {
	Steps     []provision.Step
	Privilege privilege.Context
	Verifier  Verifier

	Detector      preflight.OSDetector
	Host          preflight.Host
	SkipPreflight bool

	// PreflightOutput receives the preflight table (optional).
	PreflightOutput io.Writer

	Reporter Reporter // optional
	Recorder Recorder // optional
	Logger   *slog.Logger
}

// Orchestrator runs one provisioning pass. It is not reusable.
type Orchestrator struct {
	opts     Options
	logger   *slog.Logger
	reporter Reporter

	state     State
	completed int
	startTime time.Time
	duration  time.Duration
	runErr    error
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	if opts.Detector == nil {
		opts.Detector = preflight.ReleaseFileDetector{}
	}
	if opts.PreflightOutput == nil {
		opts.PreflightOutput = io.Discard
	}
	return &Orchestrator{
		opts:     opts,
		logger:   logger,
		reporter: reporter,
		state:    StateNotStarted,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) transition(next State) {
	if !o.state.CanTransition(next) {
		// Programming error: the sequence below only moves forward.
		panic(fmt.Sprintf("orchestrator: invalid transition %s -> %s", o.state, next))
	}
	o.state = next
}

// Run executes the plan. It returns nil only if every step and check
// passed. The first failure stops the run; later steps never start.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	o.startTime = time.Now()
	defer func() {
		o.duration = time.Since(o.startTime)
		o.runErr = err
		if err != nil {
			o.transition(StateFailed)
			o.logger.Error("run_failed", "error", err, "completed", o.completed, "duration", o.duration.String())
		} else {
			o.logger.Info("run_completed", "steps", o.completed, "duration", o.duration.String())
		}
		if o.opts.Recorder != nil {
			o.opts.Recorder.RunFinished(o.duration, err)
		}
		o.reporter.RunFinished(o.duration, err)
	}()

	// The OS guard is never skippable.
	info, err := o.opts.Detector.DetectOS()
	if err != nil {
		return fmt.Errorf("detecting OS: %w", err)
	}
	detected := info.DisplayName()
	o.logger.Info("os_detected", "os", detected, "id", info.ID, "version", info.VersionID)
	if err := preflight.CheckOS(detected); err != nil {
		return err
	}
	o.transition(StateOSChecked)

	if !o.opts.SkipPreflight {
		result := preflight.RunAll(o.opts.Host)
		preflight.PrintResults(o.opts.PreflightOutput, result)
		if !result.Passed {
			return ErrPreflight
		}
	} else {
		o.logger.Warn("preflight_skipped")
	}

	o.transition(StateRunning)

	names := make([]string, len(o.opts.Steps))
	for i, s := range o.opts.Steps {
		names[i] = s.Name
	}
	priv := o.opts.Privilege
	o.reporter.RunStarted(names, priv.String())
	o.logger.Info("run_started", "steps", len(names), "context", priv.String())

	for i, step := range o.opts.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("aborted before step %d (%s): %w", i+1, step.Name, err)
		}
		if err := o.runStep(ctx, i, step, priv); err != nil {
			return err
		}
	}

	o.transition(StateCompleted)
	return nil
}

func (o *Orchestrator) runStep(ctx context.Context, i int, step provision.Step, priv privilege.Context) error {
	logger := o.logger.With("step", i+1, "name", step.Name)
	sub := func(name string) {
		logger.Debug("substep", "detail", name)
		o.reporter.SubStep(i, name)
	}

	o.reporter.StepStarted(i, step.Name)
	logger.Info("step_started")
	start := time.Now()

	err := step.Run(ctx, priv, sub)
	if err == nil && step.Check != verify.NoTool {
		err = o.opts.Verifier.Verify(ctx, step.Check, priv)
	}

	elapsed := time.Since(start)
	if o.opts.Recorder != nil {
		o.opts.Recorder.StepFinished(step.Name, elapsed, err)
	}

	if err != nil {
		logger.Error("step_failed", "error", err, "duration", elapsed.String())
		o.reporter.StepFailed(i, step.Name, elapsed, err)
		return &StepError{Index: i + 1, Name: step.Name, Err: err}
	}

	o.completed++
	logger.Info("step_finished", "duration", elapsed.String())
	o.reporter.StepSucceeded(i, step.Name, elapsed)
	return nil
}

type nopReporter struct{}

func (nopReporter) RunStarted([]string, string)                  {}
func (nopReporter) StepStarted(int, string)                      {}
func (nopReporter) SubStep(int, string)                          {}
func (nopReporter) StepSucceeded(int, string, time.Duration)     {}
func (nopReporter) StepFailed(int, string, time.Duration, error) {}
func (nopReporter) RunFinished(time.Duration, error)             {}

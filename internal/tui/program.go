package tui

import (
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ProgramOptions configures Program.
type ProgramOptions struct {
	Output io.Writer
	Input  io.Reader // nil disables keyboard input

	// OnInterrupt is called when the user presses ctrl+c.
	OnInterrupt func()
}

// Program is a progress reporter backed by a Bubble Tea program. Start it
// before the first event and Wait for it after RunFinished.
type Program struct {
	p    *tea.Program
	done chan struct{}
	err  error
}

// NewProgram creates the program without starting it.
func NewProgram(opts ProgramOptions) *Program {
	teaOpts := []tea.ProgramOption{
		tea.WithInput(opts.Input),
		// The caller owns SIGINT/SIGTERM through its context.
		tea.WithoutSignalHandler(),
	}
	if opts.Output != nil {
		teaOpts = append(teaOpts, tea.WithOutput(opts.Output))
	}
	return &Program{
		p:    tea.NewProgram(NewModel(opts.OnInterrupt), teaOpts...),
		done: make(chan struct{}),
	}
}

// Start runs the event loop in the background.
func (r *Program) Start() {
	go func() {
		defer close(r.done)
		_, r.err = r.p.Run()
	}()
}

// Wait blocks until the program has exited and returns its error.
func (r *Program) Wait() error {
	<-r.done
	return r.err
}

// RunStarted implements the orchestrator's reporter.
func (r *Program) RunStarted(steps []string, target string) {
	r.p.Send(RunStartedMsg{Steps: append([]string(nil), steps...), Target: target})
}

// StepStarted marks a step as running.
func (r *Program) StepStarted(index int, name string) {
	r.p.Send(StepStartedMsg{Index: index})
}

// SubStep shows progress within a step.
func (r *Program) SubStep(index int, name string) {
	r.p.Send(SubStepMsg{Index: index, Name: name})
}

// StepSucceeded marks a step as done.
func (r *Program) StepSucceeded(index int, name string, elapsed time.Duration) {
	r.p.Send(StepDoneMsg{Index: index, Elapsed: elapsed})
}

// StepFailed marks a step as failed.
func (r *Program) StepFailed(index int, name string, elapsed time.Duration, err error) {
	r.p.Send(StepDoneMsg{Index: index, Elapsed: elapsed, Err: err})
}

// RunFinished draws the final frame and stops the program.
func (r *Program) RunFinished(elapsed time.Duration, err error) {
	r.p.Send(RunDoneMsg{Elapsed: elapsed, Err: err})
}

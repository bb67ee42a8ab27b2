package tui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ConsoleReporter prints one line per progress event.
type ConsoleReporter struct {
	mu    sync.Mutex
	w     io.Writer
	total int
}

// NewConsoleReporter creates a reporter writing to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

// RunStarted prints the plan header.
func (r *ConsoleReporter) RunStarted(steps []string, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = len(steps)
	fmt.Fprintf(r.w, "%s %s\n",
		titleStyle.Render("devsetup"),
		mutedStyle.Render(fmt.Sprintf("%d steps, user tools for %s", len(steps), target)))
}

// StepStarted prints the step being entered.
func (r *ConsoleReporter) StepStarted(index int, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "%s %s %s\n", r.counter(index), statusRunning.Render(glyphRunning), stepStyle.Render(name))
}

// SubStep prints progress within the current step.
func (r *ConsoleReporter) SubStep(index int, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "      %s %s\n", dimStyle.Render(glyphSub), mutedStyle.Render(name))
}

// StepSucceeded prints a finished step.
func (r *ConsoleReporter) StepSucceeded(index int, name string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "%s %s %s %s\n", r.counter(index), statusOK.Render(glyphDone), stepStyle.Render(name),
		dimStyle.Render("("+formatStepDuration(elapsed)+")"))
}

// StepFailed prints the failing step and its error.
func (r *ConsoleReporter) StepFailed(index int, name string, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "%s %s %s %s\n", r.counter(index), statusError.Render(glyphFailed), stepStyle.Render(name),
		dimStyle.Render("("+formatStepDuration(elapsed)+")"))
	fmt.Fprintf(r.w, "      %s\n", errorTextStyle.Render(err.Error()))
}

// RunFinished prints nothing; the exit summary follows.
func (r *ConsoleReporter) RunFinished(elapsed time.Duration, err error) {}

func (r *ConsoleReporter) counter(index int) string {
	return dimStyle.Render(fmt.Sprintf("[%d/%d]", index+1, r.total))
}

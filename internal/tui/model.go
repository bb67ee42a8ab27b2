package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// Messages
// =============================================================================

// RunStartedMsg lists the plan.
type RunStartedMsg struct {
	Steps  []string
	Target string
}

// StepStartedMsg marks a step as running.
type StepStartedMsg struct {
	Index int
}

// SubStepMsg updates the detail line of the running step.
type SubStepMsg struct {
	Index int
	Name  string
}

// StepDoneMsg marks a step as finished. Err is nil on success.
type StepDoneMsg struct {
	Index   int
	Elapsed time.Duration
	Err     error
}

// RunDoneMsg ends the program.
type RunDoneMsg struct {
	Elapsed time.Duration
	Err     error
}

// =============================================================================
// Model
// =============================================================================

type stepState int

const (
	statePending stepState = iota
	stateRunning
	stateDone
	stateFailed
)

type stepView struct {
	name    string
	state   stepState
	detail  string
	elapsed time.Duration
	err     error
}

// Model is the Bubble Tea model for a provisioning run.
type Model struct {
	target string
	steps  []stepView

	spinner  spinner.Model
	progress progress.Model

	startTime   time.Time
	finished    bool
	interrupted bool
	runErr      error
	elapsed     time.Duration

	// onInterrupt is called once when the user presses ctrl+c.
	onInterrupt func()

	width int
}

// NewModel creates a model. onInterrupt may be nil.
func NewModel(onInterrupt func()) Model {
	return Model{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(statusRunning),
		),
		progress: progress.New(
			progress.WithGradient(string(colorPrimary), string(colorSecondary)),
			progress.WithWidth(40),
		),
		startTime:   time.Now(),
		onInterrupt: onInterrupt,
		width:       80,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.interrupted {
			// Keep drawing until the run reports back; the running
			// command is killed by the cancelled context.
			m.interrupted = true
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 20; w > 10 && w < 60 {
			m.progress.Width = w
		}
		return m, nil

	case RunStartedMsg:
		m.target = msg.Target
		m.steps = make([]stepView, len(msg.Steps))
		for i, name := range msg.Steps {
			m.steps[i] = stepView{name: name}
		}
		m.startTime = time.Now()
		return m, nil

	case StepStartedMsg:
		if s := m.step(msg.Index); s != nil {
			s.state = stateRunning
			s.detail = ""
		}
		return m, nil

	case SubStepMsg:
		if s := m.step(msg.Index); s != nil {
			s.detail = msg.Name
		}
		return m, nil

	case StepDoneMsg:
		if s := m.step(msg.Index); s != nil {
			s.elapsed = msg.Elapsed
			s.detail = ""
			s.err = msg.Err
			s.state = stateDone
			if msg.Err != nil {
				s.state = stateFailed
			}
		}
		return m, nil

	case RunDoneMsg:
		m.finished = true
		m.runErr = msg.Err
		m.elapsed = msg.Elapsed
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) step(index int) *stepView {
	if index < 0 || index >= len(m.steps) {
		return nil
	}
	return &m.steps[index]
}

// =============================================================================
// Accessors
// =============================================================================

// Completed returns the number of steps that finished successfully.
func (m Model) Completed() int {
	n := 0
	for _, s := range m.steps {
		if s.state == stateDone {
			n++
		}
	}
	return n
}

// Progress returns the fraction of steps completed (0.0 to 1.0).
func (m Model) Progress() float64 {
	if len(m.steps) == 0 {
		return 0
	}
	return float64(m.Completed()) / float64(len(m.steps))
}

// Finished reports whether RunDoneMsg was received.
func (m Model) Finished() bool {
	return m.finished
}

// Interrupted reports whether the user pressed ctrl+c.
func (m Model) Interrupted() bool {
	return m.interrupted
}

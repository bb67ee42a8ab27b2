package orchestrator

// State is the position of a run in its lifecycle.
type State int

const (
	// StateNotStarted is the initial state.
	StateNotStarted State = iota

	// StateOSChecked means the OS guard passed.
	StateOSChecked

	// StateRunning means install steps are executing.
	StateRunning

	// StateCompleted means every step and check passed.
	StateCompleted

	// StateFailed means the run stopped at the first error.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateOSChecked:
		return "os_checked"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for completed and failed runs.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether moving from s to next is allowed. States
// only move forward, and Failed is reachable from any non-terminal state.
func (s State) CanTransition(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return next == s+1 || (s == StateRunning && next == StateRunning)
}

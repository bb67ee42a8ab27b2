package process

import (
	"fmt"
	"strings"
	"time"
)

// ScriptingError is returned when a command ran but exited non-zero.
// Message holds the captured stderr text exactly as the child wrote it.
type ScriptingError struct {
	Program  string
	Message  string
	ExitCode int
}

func (e *ScriptingError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("%s exited with status %d", e.Program, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Program, e.ExitCode, msg)
}

// SpawnError is returned when the child process could not be started at all,
// for example because the binary is missing or not executable.
type SpawnError struct {
	Program string
	Cause   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Program, e.Cause)
}

func (e *SpawnError) Unwrap() error { return e.Cause }

// IOError marks SpawnError as an I/O failure rather than a command failure.
func (e *SpawnError) IOError() bool { return true }

// TimeoutError is returned when a command outlived its timeout and was killed.
type TimeoutError struct {
	Command  string
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %s timed out after %v", e.Command, e.Duration)
}

func (e *TimeoutError) Timeout() bool { return true }

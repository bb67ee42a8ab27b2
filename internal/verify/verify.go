// Package verify checks that a freshly installed tool is usable from the
// target user's login shell.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/logging"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/privilege"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/process"
)

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 30 * time.Second

// Tool identifies something a probe can check.
type Tool int

const (
	// NoTool means a step has no post-install check.
	NoTool Tool = iota
	NVM
	Node
	Rust
	Editor
)

// String returns the name used in messages.
func (t Tool) String() string {
	switch t {
	case NVM:
		return "nvm"
	case Node:
		return "node"
	case Rust:
		return "rust"
	case Editor:
		return "editor"
	default:
		return "none"
	}
}

// rootEditorFlags are required by the code launcher when it runs as root;
// without them it refuses to start.
const rootEditorFlags = `--user-data-dir "$HOME/.config/Code" --no-sandbox`

// EditorLauncher returns the code invocation for the account priv targets,
// for use inside a user-scoped script.
func EditorLauncher(priv privilege.Context) string {
	if priv.TargetIsRoot() {
		return "code " + rootEditorFlags
	}
	return "code"
}

// probeScript is run in the user's login shell. nvm and cargo put their
// setup in profile files, so sourcing them explicitly also covers
// non-interactive shells that skip .bashrc.
func (t Tool) probeScript(priv privilege.Context) (string, bool) {
	switch t {
	case NVM:
		return `. "$HOME/.nvm/nvm.sh" && nvm --version >/dev/null`, true
	case Node:
		return `. "$HOME/.nvm/nvm.sh" && node --version >/dev/null && npm --version >/dev/null`, true
	case Rust:
		return `. "$HOME/.cargo/env" && rustc --version >/dev/null && cargo --version >/dev/null`, true
	case Editor:
		return EditorLauncher(priv) + ` --version >/dev/null`, true
	}
	return "", false
}

// ValidationError reports a tool that did not answer its probe. The
// underlying cause is deliberately not kept; the message is fixed.
type ValidationError struct {
	Tool Tool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is not reachable in the target user's login shell", e.Tool)
}

// Verifier runs probes through an Executor.
type Verifier struct {
	exec    process.Executor
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a Verifier. A zero timeout selects DefaultProbeTimeout.
func New(exec process.Executor, logger *slog.Logger, timeout time.Duration) *Verifier {
	if logger == nil {
		logger = logging.Discard()
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Verifier{exec: exec, logger: logger, timeout: timeout}
}

// Verify probes tool as the user selected by priv. It returns nil when the
// probe exits 0 and a *ValidationError otherwise. A cancelled ctx is
// reported as ctx.Err() rather than as a failed probe.
func (v *Verifier) Verify(ctx context.Context, tool Tool, priv privilege.Context) error {
	script, ok := tool.probeScript(priv)
	if !ok {
		return fmt.Errorf("verify: no probe for tool %d", int(tool))
	}

	spec := priv.UserCommand(script).Timeout(v.timeout)
	_, err := v.exec.Execute(ctx, spec)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		v.logger.Debug("probe_failed", "tool", tool.String(), "context", priv.String(), "error", err)
		return &ValidationError{Tool: tool}
	}

	v.logger.Debug("probe_passed", "tool", tool.String(), "context", priv.String())
	return nil
}

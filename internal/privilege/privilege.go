// Package privilege decides whose account user-scoped tools are installed
// into.
//
// devsetup is normally started with sudo. apt and the keyring need root, but
// nvm, rustup and editor extensions live in a home directory and must land in
// the account of the person who typed sudo, not in /root. The elevation
// signal (SUDO_USER) is read exactly once at startup into a Context value,
// which is then passed explicitly to every step.
package privilege

import (
	"fmt"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/process"
)

// EnvOriginalUser is set by sudo to the login name of the invoking user.
const EnvOriginalUser = "SUDO_USER"

// ShellPath is the login shell used for user-scoped commands. Install and
// probe scripts are written for bash, whatever the user's own shell is.
const ShellPath = "/bin/bash"

// shellArg0 fills $0 for scripts so that extra arguments start at $1.
const shellArg0 = "devsetup"

// Mode distinguishes the two kinds of Context.
type Mode int

const (
	// Direct runs user-scoped commands as the current user.
	Direct Mode = iota

	// Elevated runs user-scoped commands as the original login user.
	Elevated
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case Direct:
		return "direct"
	case Elevated:
		return "elevated"
	default:
		return "unknown"
	}
}

// Context is either Direct or Elevated on behalf of a validated user.
// The zero value is Direct as a regular user.
type Context struct {
	mode Mode
	user Username
	root bool // user-scoped commands run as uid 0
}

// DirectContext returns the Direct context for a regular (non-root) user.
func DirectContext() Context {
	return Context{mode: Direct}
}

// ElevatedContext returns a context that runs user-scoped commands as user.
// user must come from ValidateUsername; the zero Username is rejected.
func ElevatedContext(user Username) (Context, error) {
	if user.name == "" {
		return Context{}, &ValidationError{Value: "", Reason: "empty"}
	}
	return Context{mode: Elevated, user: user, root: user.name == "root"}, nil
}

// Mode reports which variant c is.
func (c Context) Mode() Mode { return c.mode }

// User returns the original user for an Elevated context.
func (c Context) User() (Username, bool) {
	return c.user, c.mode == Elevated
}

// TargetIsRoot reports whether user-scoped commands run as root: Direct
// from a root process, or Elevated on behalf of root.
func (c Context) TargetIsRoot() bool { return c.root }

// String describes the context for logs and the summary.
func (c Context) String() string {
	if c.mode == Elevated {
		return fmt.Sprintf("elevated(%s)", c.user)
	}
	if c.root {
		return "direct(root)"
	}
	return "direct"
}

// Resolve builds the Context from the elevation signal. lookup is normally
// os.LookupEnv and euid the effective uid of this process.
//
// An unset signal means Direct. A set signal, empty or not, must pass
// ValidateUsername; a bad value is an error that aborts the run, never a
// silent fallback to Direct. A valid value, root included, gives
// Elevated(user).
func Resolve(lookup func(string) (string, bool), euid int) (Context, error) {
	raw, ok := lookup(EnvOriginalUser)
	if !ok {
		return Context{mode: Direct, root: euid == 0}, nil
	}

	user, err := ValidateUsername(raw)
	if err != nil {
		return Context{}, fmt.Errorf("%s: %w", EnvOriginalUser, err)
	}
	return ElevatedContext(user)
}

// UserCommand renders a bash script to run in the target user's login
// shell, so that profile-sourced setup (nvm, cargo env) is in place.
//
// script is trusted program text. args are passed as positional parameters
// ($1, $2, ...) and are never spliced into the script, so they need no
// quoting. Direct and Elevated share this one code path; only the prefix
// that enters the login session differs:
//
//	Direct:         bash -l -c <script> devsetup <args...>
//	Elevated(user): su -l -s /bin/bash -c <script> -- <user> devsetup <args...>
//
// The "--" keeps su from reading a user name that starts with '-', or any
// later argument, as one of its own options.
func (c Context) UserCommand(script string, args ...string) *process.Spec {
	var spec *process.Spec
	switch c.mode {
	case Elevated:
		spec = process.Command("su", "-l", "-s", ShellPath, "-c", script, "--", c.user.String())
	default:
		spec = process.Command(ShellPath, "-l", "-c", script)
	}
	return spec.Arg(shellArg0).Args(args...)
}

// RootCommand renders a root-scoped command. The process already holds root
// (preflight checks the effective uid), so the command runs as-is in both
// modes.
func (c Context) RootCommand(program string, args ...string) *process.Spec {
	return process.Command(program, args...)
}

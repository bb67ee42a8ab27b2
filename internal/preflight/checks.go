// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// MinFreeDiskMiB is the free space below which a warning is shown. Node,
// the Rust toolchain and the editor together take a few GiB.
const MinFreeDiskMiB = 4096

// RequiredBinaries must be on PATH before any step runs.
var RequiredBinaries = []string{"apt-get", "bash", "su"}

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d MiB free (want %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// Host abstracts the system calls the checks make.
type Host struct {
	EUID     func() int
	LookPath func(string) (string, error)
	FreeMiB  func(path string) (int, error)

	// DiskPath is where toolchains end up; /home by default.
	DiskPath string
}

// LocalHost inspects the machine devsetup runs on.
func LocalHost() Host {
	return Host{
		EUID:     os.Geteuid,
		LookPath: exec.LookPath,
		FreeMiB:  freeMiB,
		DiskPath: "/home",
	}
}

func freeMiB(path string) (int, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int(st.Bavail * uint64(st.Bsize) / (1 << 20)), nil
}

// RunAll executes all preflight checks.
func RunAll(host Host) *Result {
	result := &Result{
		Checks: make([]Check, 0, 2+len(RequiredBinaries)),
		Passed: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkRoot(host.EUID()))
	for _, name := range RequiredBinaries {
		add(checkBinary(name, host.LookPath))
	}
	// Warning only.
	add(checkDiskSpace(host.DiskPath, host.FreeMiB))

	return result
}

// checkRoot verifies the process can write apt state and keyrings.
func checkRoot(euid int) Check {
	if euid != 0 {
		return Check{
			Name:    "root",
			Passed:  false,
			Message: fmt.Sprintf("running as uid %d", euid),
		}
	}
	return Check{Name: "root", Passed: true, Message: "running as root"}
}

func checkBinary(name string, lookPath func(string) (string, error)) Check {
	path, err := lookPath(name)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  false,
			Message: "not found on PATH",
		}
	}
	return Check{Name: name, Passed: true, Message: "found at " + path}
}

func checkDiskSpace(path string, free func(string) (int, error)) Check {
	actual, err := free(path)
	if err != nil {
		return Check{
			Name:    "disk_space",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check %s: %v", path, err),
		}
	}
	return Check{
		Name:     "disk_space",
		Required: MinFreeDiskMiB,
		Actual:   actual,
		Passed:   true, // Don't fail on this
		Warning:  actual < MinFreeDiskMiB,
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed || check.Warning {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "root":
		return "run with sudo: sudo devsetup"
	case "apt-get":
		return "devsetup supports apt-based Ubuntu installs only"
	case "bash":
		return "apt-get install bash"
	case "su":
		return "apt-get install util-linux"
	case "disk_space":
		return "free space under /home (apt-get clean, remove old snaps)"
	default:
		return "see --help"
	}
}

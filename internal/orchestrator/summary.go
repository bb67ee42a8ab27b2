package orchestrator

import (
	"fmt"
	"io"
	"time"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/metrics"
)

// Summary describes a finished run.
type Summary struct {
	State     State
	Steps     int
	Completed int
	Duration  time.Duration
	Target    string
	Commands  metrics.CommandStats
	Err       error
}

// Summary returns the outcome of the last Run.
func (o *Orchestrator) Summary() Summary {
	s := Summary{
		State:     o.state,
		Steps:     len(o.opts.Steps),
		Completed: o.completed,
		Duration:  o.duration,
		Target:    o.opts.Privilege.String(),
		Err:       o.runErr,
	}
	if o.opts.Recorder != nil {
		s.Commands = o.opts.Recorder.CommandStats()
	}
	return s
}

// PrintSummary writes the exit summary.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "                        devsetup Exit Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Result:                 %s\n", s.State)
	fmt.Fprintf(w, "Run Duration:           %s\n", formatDuration(s.Duration))
	fmt.Fprintf(w, "Steps Completed:        %d/%d\n", s.Completed, s.Steps)
	fmt.Fprintf(w, "User Tools Installed:   %s\n", s.Target)
	fmt.Fprintln(w)

	if s.Commands.Count > 0 {
		fmt.Fprintln(w, "Commands:")
		fmt.Fprintf(w, "  Total:                %d\n", s.Commands.Count)
		fmt.Fprintf(w, "  P50:                  %s\n", s.Commands.P50.Round(time.Millisecond))
		fmt.Fprintf(w, "  P95:                  %s\n", s.Commands.P95.Round(time.Millisecond))
		fmt.Fprintf(w, "  Slowest:              %s\n", s.Commands.Max.Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

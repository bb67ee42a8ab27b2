package tui

import (
	"fmt"
	"strings"
	"time"
)

// View renders the step list. The final frame stays on screen after the
// program exits, so it must read well on its own.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	for i := range m.steps {
		b.WriteString(m.renderStep(i))
		b.WriteString("\n")
	}
	b.WriteString(m.renderFooter())
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderHeader() string {
	header := titleStyle.Render("devsetup")
	if m.target != "" {
		header += " " + mutedStyle.Render("user tools for "+m.target)
	}
	return header + "\n" + m.progress.ViewAs(m.Progress()) +
		mutedStyle.Render(fmt.Sprintf("  %d/%d steps", m.Completed(), len(m.steps)))
}

func (m Model) renderStep(i int) string {
	s := m.steps[i]
	num := dimStyle.Render(fmt.Sprintf("%2d.", i+1))

	switch s.state {
	case stateRunning:
		line := fmt.Sprintf("%s %s %s", num, m.spinner.View(), stepStyle.Render(s.name))
		if s.detail != "" {
			line += " " + mutedStyle.Render(glyphSub+" "+s.detail)
		}
		return line

	case stateDone:
		return fmt.Sprintf("%s %s %s %s", num, statusOK.Render(glyphDone), stepStyle.Render(s.name),
			dimStyle.Render("("+formatStepDuration(s.elapsed)+")"))

	case stateFailed:
		line := fmt.Sprintf("%s %s %s %s", num, statusError.Render(glyphFailed), stepStyle.Render(s.name),
			dimStyle.Render("("+formatStepDuration(s.elapsed)+")"))
		if s.err != nil {
			line += "\n      " + errorTextStyle.Render(s.err.Error())
		}
		return line

	default:
		return fmt.Sprintf("%s %s %s", num, dimStyle.Render(glyphPending), mutedStyle.Render(s.name))
	}
}

func (m Model) renderFooter() string {
	elapsed := m.elapsed
	if !m.finished {
		elapsed = time.Since(m.startTime)
	}
	clock := "Elapsed: " + formatDuration(elapsed)

	switch {
	case m.finished && m.runErr == nil:
		return footerStyle.Render(clock + "  " + statusOK.Render("done"))
	case m.finished:
		return footerStyle.Render(clock + "  " + statusError.Render("failed"))
	case m.interrupted:
		return footerStyle.Render(clock + "  " + statusWarning.Render("interrupting, waiting for the current command to stop"))
	default:
		return footerStyle.Render(clock + "  ctrl+c to abort")
	}
}

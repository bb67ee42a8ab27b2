package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single log line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent stderr lines kept per command.
	MaxBufferedLines = 50
)

// StderrHandler streams the stderr of one external command into the
// structured logger, line by line, and keeps the most recent lines around
// for the failure report.
type StderrHandler struct {
	command string
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewStderrHandler creates a handler for the command described by command.
func NewStderrHandler(command string, logger *slog.Logger, verbose bool) *StderrHandler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &StderrHandler{
		command: command,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleReader reads r until EOF, handling each line.
// This should be run in a goroutine. It always drains r, even after an
// over-long line stops the scanner, so the writer side never blocks.
func (h *StderrHandler) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), MaxLineLength)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
	_, _ = io.Copy(io.Discard, r)
}

// HandleLine processes a single line of stderr output.
func (h *StderrHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}
	if strings.TrimSpace(line) == "" {
		return
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	h.logLine(line)
}

func (h *StderrHandler) logLine(line string) {
	level := ClassifyLine(line)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level < slog.LevelWarn {
		return
	}

	h.logger.Log(context.Background(), level, "command_stderr",
		"command", h.command,
		"line", line,
	)
}

// ClassifyLine picks a log level for one line of installer output.
// apt prefixes problems with "E:" and "W:"; curl, gpg and most shell tools
// say "error"/"warning" somewhere in the line.
func ClassifyLine(line string) slog.Level {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(trimmed, "E:"),
		strings.HasPrefix(lower, "error"),
		strings.Contains(lower, "curl: ("),
		strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "could not resolve host"):
		return slog.LevelError
	case strings.HasPrefix(trimmed, "W:"),
		strings.HasPrefix(lower, "warning"),
		strings.HasPrefix(lower, "gpg: warning"),
		strings.Contains(lower, "deprecated"):
		return slog.LevelWarn
	}

	// Progress bars and download chatter
	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *StderrHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}

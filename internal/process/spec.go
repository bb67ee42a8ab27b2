package process

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"time"
)

// Spec describes one external command invocation.
//
// A Spec is immutable: every builder method returns a new Spec and leaves the
// receiver untouched, so a partially built Spec can be shared and extended
// from several places without copying by hand.
type Spec struct {
	program string
	args    []string
	env     map[string]string
	dir     string
	timeout time.Duration
	stdin   []byte
}

// Command starts a new Spec for program with the given arguments.
// Arguments are handed to the OS as a literal argv and are never joined
// into a shell string.
func Command(program string, args ...string) *Spec {
	return &Spec{
		program: program,
		args:    slices.Clone(args),
	}
}

func (s *Spec) clone() *Spec {
	c := *s
	c.args = slices.Clone(s.args)
	if s.env != nil {
		c.env = maps.Clone(s.env)
	}
	return &c
}

// Arg returns a copy of the Spec with one more argument appended.
func (s *Spec) Arg(arg string) *Spec {
	c := s.clone()
	c.args = append(c.args, arg)
	return c
}

// Args returns a copy of the Spec with args appended.
func (s *Spec) Args(args ...string) *Spec {
	c := s.clone()
	c.args = append(c.args, args...)
	return c
}

// Env returns a copy of the Spec with an environment override. A later call
// with the same key replaces the earlier value.
func (s *Spec) Env(key, value string) *Spec {
	c := s.clone()
	if c.env == nil {
		c.env = make(map[string]string)
	}
	c.env[key] = value
	return c
}

// Dir returns a copy of the Spec that runs in dir.
func (s *Spec) Dir(dir string) *Spec {
	c := s.clone()
	c.dir = dir
	return c
}

// Timeout returns a copy of the Spec that is killed after d.
// Zero means the runner default applies.
func (s *Spec) Timeout(d time.Duration) *Spec {
	c := s.clone()
	c.timeout = d
	return c
}

// Stdin returns a copy of the Spec that feeds data to the child's stdin.
func (s *Spec) Stdin(data []byte) *Spec {
	c := s.clone()
	c.stdin = slices.Clone(data)
	return c
}

// Program returns the executable name.
func (s *Spec) Program() string { return s.program }

// Argv returns a copy of the argument list (without the program name).
func (s *Spec) Argv() []string { return slices.Clone(s.args) }

// EnvOverrides returns a copy of the environment overrides.
func (s *Spec) EnvOverrides() map[string]string { return maps.Clone(s.env) }

// WorkDir returns the working directory, or "" for the current one.
func (s *Spec) WorkDir() string { return s.dir }

// TimeoutAfter returns the configured timeout (0 = runner default).
func (s *Spec) TimeoutAfter() time.Duration { return s.timeout }

// StdinData returns a copy of the stdin payload, or nil.
func (s *Spec) StdinData() []byte { return slices.Clone(s.stdin) }

// String renders the command for logs. Arguments that a shell would split
// or expand are single-quoted. The result is never executed.
func (s *Spec) String() string {
	var b strings.Builder

	if len(s.env) > 0 {
		keys := make([]string, 0, len(s.env))
		for k := range s.env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(quote(s.env[k]))
			b.WriteByte(' ')
		}
	}

	b.WriteString(quote(s.program))
	for _, a := range s.args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	return b.String()
}

// quote single-quotes a word when it contains anything outside a
// conservative safe set.
func quote(word string) string {
	if word == "" {
		return "''"
	}
	safe := true
	for _, r := range word {
		if !isSafeRune(r) {
			safe = false
			break
		}
	}
	if safe {
		return word
	}
	return "'" + strings.ReplaceAll(word, "'", `'\''`) + "'"
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-_./=:,+@%", r)
}

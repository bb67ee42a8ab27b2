package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Ubuntu is the only OS name devsetup runs on.
const Ubuntu = "Ubuntu"

// UnknownOS is reported when no os-release file can be read.
const UnknownOS = "unknown"

// DefaultOSReleasePaths are tried in order, per os-release(5).
var DefaultOSReleasePaths = []string{"/etc/os-release", "/usr/lib/os-release"}

// OSInfo holds the os-release fields devsetup cares about.
type OSInfo struct {
	ID        string
	IDLike    []string
	Name      string
	VersionID string
}

// DisplayName returns Ubuntu for ID=ubuntu and otherwise the most
// descriptive name available. Derivatives that only list ubuntu in ID_LIKE
// are reported by their own name.
func (o OSInfo) DisplayName() string {
	switch {
	case o.ID == "ubuntu":
		return Ubuntu
	case o.Name != "":
		return o.Name
	case o.ID != "":
		return o.ID
	default:
		return UnknownOS
	}
}

// ParseOSRelease reads KEY=VALUE lines. Comments, blank lines and lines
// without '=' are skipped; quoted values are unquoted.
func ParseOSRelease(data []byte) OSInfo {
	var info OSInfo
	for _, rawLine := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))

		switch key {
		case "ID":
			info.ID = strings.ToLower(value)
		case "ID_LIKE":
			info.IDLike = strings.Fields(strings.ToLower(value))
		case "NAME":
			info.Name = value
		case "VERSION_ID":
			info.VersionID = value
		}
	}
	return info
}

func unquote(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	if strings.ContainsRune(value, '\\') {
		r := strings.NewReplacer(`\"`, `"`, `\$`, `$`, "\\`", "`", `\\`, `\`)
		value = r.Replace(value)
	}
	return value
}

// OSDetector reports the name of the running operating system.
type OSDetector interface {
	DetectOS() (OSInfo, error)
}

// ReleaseFileDetector reads the first os-release file that exists.
type ReleaseFileDetector struct {
	Paths []string
}

// DetectOS returns the parsed os-release. When none of the files exist it
// returns a zero OSInfo, whose DisplayName is "unknown".
func (d ReleaseFileDetector) DetectOS() (OSInfo, error) {
	paths := d.Paths
	if len(paths) == 0 {
		paths = DefaultOSReleasePaths
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return OSInfo{}, fmt.Errorf("reading %s: %w", path, err)
		}
		return ParseOSRelease(data), nil
	}
	return OSInfo{}, nil
}

// UnsupportedOSError is the guard failure for anything but Ubuntu.
type UnsupportedOSError struct {
	Detected string
}

func (e *UnsupportedOSError) Error() string {
	return fmt.Sprintf("this tool requires %s, but detected: %s", Ubuntu, e.Detected)
}

// CheckOS returns nil when detected is Ubuntu.
func CheckOS(detected string) error {
	if detected != Ubuntu {
		return &UnsupportedOSError{Detected: detected}
	}
	return nil
}

// Package assets holds the editor configuration compiled into the binary:
// the extension manifest and the user settings document.
package assets

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/tidwall/jsonc"
)

// ManifestKey is the field of extensions.json that lists extension ids.
const ManifestKey = "recommendations"

//go:embed vscode/extensions.json
var extensionsJSON []byte

//go:embed vscode/settings.json
var settingsJSON []byte

// extensionID matches VS Code marketplace ids: publisher.name.
var extensionID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*\.[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Manifest is the ordered list of extensions to install.
type Manifest struct {
	Extensions []string
}

// ManifestError reports a malformed extension manifest.
type ManifestError struct {
	Reason string
	Cause  error
}

func (e *ManifestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid extension manifest: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid extension manifest: %s", e.Reason)
}

func (e *ManifestError) Unwrap() error { return e.Cause }

// Extensions parses the embedded extension manifest.
func Extensions() (*Manifest, error) {
	return ParseManifest(extensionsJSON)
}

// Settings returns a copy of the embedded settings document, byte for byte.
func Settings() []byte {
	return bytes.Clone(settingsJSON)
}

// ParseManifest reads a JSONC document (comments and trailing commas
// allowed, as VS Code writes them) whose "recommendations" field is an array
// of extension ids. Every other field is ignored.
func ParseManifest(data []byte) (*Manifest, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, &ManifestError{Reason: "not a JSON object", Cause: err}
	}

	raw, ok := doc[ManifestKey]
	if !ok {
		return nil, &ManifestError{Reason: fmt.Sprintf("missing %q field", ManifestKey)}
	}

	var items []json.RawMessage
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, &ManifestError{Reason: fmt.Sprintf("%q is null, want an array", ManifestKey)}
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ManifestError{Reason: fmt.Sprintf("%q is not an array", ManifestKey), Cause: err}
	}

	m := &Manifest{Extensions: make([]string, 0, len(items))}
	for i, item := range items {
		var id string
		if err := json.Unmarshal(item, &id); err != nil {
			return nil, &ManifestError{Reason: fmt.Sprintf("entry %d is not a string", i), Cause: err}
		}
		if !extensionID.MatchString(id) {
			return nil, &ManifestError{Reason: fmt.Sprintf("entry %d: %q is not a publisher.name extension id", i, id)}
		}
		m.Extensions = append(m.Extensions, id)
	}
	return m, nil
}

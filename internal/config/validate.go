package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/logging"
)

var (
	nvmVersionPattern  = regexp.MustCompile(`^v[0-9]+\.[0-9]+\.[0-9]+$`)
	nodeVersionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+){0,2}$`)
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if !nvmVersionPattern.MatchString(cfg.NVMVersion) {
		errs = append(errs, ValidationError{
			Field:   "nvm_version",
			Message: fmt.Sprintf("must look like v0.40.3 (got %q)", cfg.NVMVersion),
		})
	}

	if !nodeVersionPattern.MatchString(cfg.NodeVersion) {
		errs = append(errs, ValidationError{
			Field:   "node_version",
			Message: fmt.Sprintf("must be a numeric version such as 24 (got %q)", cfg.NodeVersion),
		})
	}

	if cfg.CommandTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "command_timeout",
			Message: "must not be negative",
		})
	}

	if cfg.ProbeTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "probe_timeout",
			Message: "must be positive",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if !logging.ValidLevel(cfg.LogLevel) {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be debug, info, warn or error (got %q)", cfg.LogLevel),
		})
	}

	// node_exporter only reads *.prom files.
	if cfg.MetricsTextfile != "" && filepath.Ext(cfg.MetricsTextfile) != ".prom" {
		errs = append(errs, ValidationError{
			Field:   "metrics_textfile",
			Message: fmt.Sprintf("must end in .prom (got %q)", cfg.MetricsTextfile),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Package config provides configuration management for devsetup.
package config

import "time"

// Config holds all configuration options for a provisioning run.
type Config struct {
	// Provisioning
	Packages    []string `yaml:"packages"`
	NVMVersion  string   `yaml:"nvm_version"`
	NodeVersion string   `yaml:"node_version"` // major version handed to nvm install

	// Execution
	CommandTimeout time.Duration `yaml:"command_timeout"` // 0 = no limit
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`

	// Observability
	LogFormat       string `yaml:"log_format"` // json, text
	LogLevel        string `yaml:"log_level"`
	Verbose         bool   `yaml:"verbose"`
	TUIEnabled      bool   `yaml:"tui"`
	MetricsTextfile string `yaml:"metrics_textfile"` // node_exporter textfile collector output

	// Safety & Diagnostics
	SkipPreflight bool `yaml:"skip_preflight"`

	// Set from the command line only.
	ConfigFile  string `yaml:"-"`
	ShowVersion bool   `yaml:"-"`
}

// DefaultPackages are the apt packages installed before the toolchains.
var DefaultPackages = []string{"curl", "git", "npm", "wget", "gpg", "apt-transport-https"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Provisioning
		Packages:    append([]string(nil), DefaultPackages...),
		NVMVersion:  "v0.40.3",
		NodeVersion: "24",

		// Execution
		CommandTimeout: 20 * time.Minute,
		ProbeTimeout:   30 * time.Second,

		// Observability
		LogFormat:  "text",
		LogLevel:   "info",
		Verbose:    false,
		TUIEnabled: true,
	}
}

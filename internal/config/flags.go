package config

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// ErrHelp is returned by ParseFlags when --help was requested. The usage
// text has already been written.
var ErrHelp = pflag.ErrHelp

// ParseFlags parses command-line arguments (without the program name) and
// returns a Config. When --config names a YAML file, the file is applied
// over the defaults first and flags given on the command line win over it.
// Usage and parse errors are written to usage.
func ParseFlags(args []string, usage io.Writer) (*Config, error) {
	cfg := DefaultConfig()

	fs := pflag.NewFlagSet("devsetup", pflag.ContinueOnError)
	fs.SetOutput(usage)
	fs.SortFlags = false
	fs.Usage = func() { printUsage(usage, fs) }

	// Provisioning
	fs.StringSliceVar(&cfg.Packages, "packages", cfg.Packages, "apt packages installed before the toolchains")
	fs.StringVar(&cfg.NVMVersion, "nvm-version", cfg.NVMVersion, "nvm release tag to install")
	fs.StringVar(&cfg.NodeVersion, "node-version", cfg.NodeVersion, "Node.js major version installed through nvm")

	// Execution
	fs.DurationVar(&cfg.CommandTimeout, "timeout", cfg.CommandTimeout, "per-command timeout (0 = no limit)")
	fs.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "timeout for each post-install check")

	// Observability
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `log level: "debug", "info", "warn" or "error"`)
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "stream every line of command stderr to the log")
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "live terminal display when stdout is a terminal (--tui=false to disable)")
	fs.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "write run metrics to this .prom file for the node_exporter textfile collector")

	// Safety & Diagnostics
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "skip the root and binary checks (the Ubuntu check always runs)")
	fs.StringVarP(&cfg.ConfigFile, "config", "c", cfg.ConfigFile, "YAML config file")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	if cfg.ConfigFile == "" {
		return cfg, nil
	}

	// Remember what the command line said, load the file, then put the
	// command-line values back on top.
	type override struct {
		flag  *pflag.Flag
		value string
		slice []string
	}
	var overrides []override
	fs.Visit(func(f *pflag.Flag) {
		o := override{flag: f, value: f.Value.String()}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			o.slice = sv.GetSlice()
		}
		overrides = append(overrides, o)
	})

	if err := LoadFile(cfg.ConfigFile, cfg); err != nil {
		return nil, err
	}

	for _, o := range overrides {
		var err error
		if sv, ok := o.flag.Value.(pflag.SliceValue); ok {
			err = sv.Replace(o.slice)
		} else {
			err = o.flag.Value.Set(o.value)
		}
		if err != nil {
			return nil, fmt.Errorf("reapplying --%s: %w", o.flag.Name, err)
		}
	}
	return cfg, nil
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `devsetup - provision an Ubuntu development workstation

Installs system packages, Node.js through nvm, the Rust toolchain through
rustup, and VS Code with a curated extension list and settings. Run it with
sudo: packages and the apt keyring are installed as root, user tools into the
account of the user who ran sudo.

Usage:
  sudo devsetup [flags]

Flags:
%s
Examples:
  # Full setup with the live display
  sudo devsetup

  # Plain log output, extra packages from a config file
  sudo devsetup --tui=false --log-format=json --config devsetup.yaml
`, fs.FlagUsages())
}

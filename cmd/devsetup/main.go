// Package main provides the devsetup CLI entry point.
//
// devsetup provisions an Ubuntu development workstation: system packages,
// nvm and Node.js, the Rust toolchain, and VS Code with its extensions and
// settings. Run it with sudo; user-scoped tools are installed into the
// account that invoked sudo.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/assets"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/config"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/logging"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/metrics"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/orchestrator"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/preflight"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/privilege"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/process"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/provision"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/tui"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/verify"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/devsetup
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}

// run is main without the process exit. It returns the exit code.
func run(args []string, stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) int {
	cfg, err := config.ParseFlags(args, stderr)
	if errors.Is(err, config.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	if cfg.ShowVersion {
		fmt.Fprintf(stdout, "devsetup %s\n", version)
		return 0
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}

	// When the TUI owns the terminal, logs would tear its frames.
	useTUI := cfg.TUIEnabled && isTerminal(stdout)
	var logger *slog.Logger
	if useTUI {
		logger = logging.Discard()
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	// The elevation signal is read here, once.
	priv, err := privilege.Resolve(lookupEnv, os.Geteuid())
	if err != nil {
		fmt.Fprintf(stderr, "Installation failed: %v\n", err)
		return 1
	}

	manifest, err := assets.Extensions()
	if err != nil {
		fmt.Fprintf(stderr, "Installation failed: %v\n", err)
		return 1
	}

	logger.Info("starting",
		"version", version,
		"context", priv.String(),
		"packages", len(cfg.Packages),
		"extensions", len(manifest.Extensions),
		"nvm_version", cfg.NVMVersion,
		"node_version", cfg.NodeVersion,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Version: version,
		Mode:    priv.Mode().String(),
	})
	runner := process.NewRunner(process.RunnerConfig{
		Logger:         logger,
		Observer:       collector,
		DefaultTimeout: cfg.CommandTimeout,
		Verbose:        cfg.Verbose,
	})

	steps, err := provision.New(runner, logger, cfg).Plan(manifest, assets.Settings())
	if err != nil {
		fmt.Fprintf(stderr, "Installation failed: %v\n", err)
		return 1
	}

	opts := orchestrator.Options{
		Steps:           steps,
		Privilege:       priv,
		Verifier:        verify.New(runner, logger, cfg.ProbeTimeout),
		Detector:        preflight.ReleaseFileDetector{},
		Host:            preflight.LocalHost(),
		SkipPreflight:   cfg.SkipPreflight,
		PreflightOutput: stdout,
		Recorder:        collector,
		Logger:          logger,
	}

	var program *tui.Program
	var preflightOut bytes.Buffer
	if useTUI {
		program = tui.NewProgram(tui.ProgramOptions{
			Output:      stdout,
			Input:       os.Stdin,
			OnInterrupt: stop,
		})
		opts.Reporter = program
		// Held back until the TUI has released the screen.
		opts.PreflightOutput = &preflightOut
		program.Start()
	} else {
		opts.Reporter = tui.NewConsoleReporter(stdout)
	}

	orch := orchestrator.New(opts)
	runErr := orch.Run(ctx)

	if program != nil {
		if err := program.Wait(); err != nil {
			logger.Warn("tui_failed", "error", err)
		}
		_, _ = io.Copy(stdout, &preflightOut)
	}

	orchestrator.PrintSummary(stdout, orch.Summary())

	if cfg.MetricsTextfile != "" {
		if err := collector.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("metrics_textfile_failed", "path", cfg.MetricsTextfile, "error", err)
			fmt.Fprintf(stderr, "Warning: writing metrics to %s: %v\n", cfg.MetricsTextfile, err)
		}
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "Installation failed: %v\n", runErr)
		return 1
	}
	fmt.Fprintln(stdout, "Development environment setup complete!")
	return 0
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

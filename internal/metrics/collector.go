// Package metrics records what a provisioning run did: per-step results and
// durations, per-command timings, and the overall outcome. The registry can
// be written as a node_exporter textfile so fleet dashboards see when a
// workstation was last provisioned and whether it worked.
package metrics

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/influxdata/tdigest"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/process"
)

// Command results used as the "result" label.
const (
	ResultOK        = "ok"
	ResultExitError = "exit_error"
	ResultSpawn     = "spawn_error"
	ResultTimeout   = "timeout"
	ResultAborted   = "aborted"
)

// CollectorConfig holds the run labels.
type CollectorConfig struct {
	Version string
	Mode    string // privilege mode: direct or elevated
}

// CommandStats summarizes command durations for the exit summary.
type CommandStats struct {
	Count int
	P50   time.Duration
	P95   time.Duration
	Max   time.Duration
}

// Collector owns a private registry with the run metrics.
type Collector struct {
	registry *prometheus.Registry

	info             *prometheus.GaugeVec
	stepsTotal       *prometheus.CounterVec
	stepDuration     *prometheus.GaugeVec
	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	runSuccess       prometheus.Gauge
	runDuration      prometheus.Gauge
	lastRunTimestamp prometheus.Gauge

	mu       sync.Mutex
	digest   *tdigest.TDigest
	commands int
	slowest  time.Duration
}

// NewCollector creates a Collector with a fresh registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.NewRegistry())
}

// NewCollectorWithRegistry creates a Collector registered on registry.
func NewCollectorWithRegistry(cfg CollectorConfig, registry *prometheus.Registry) *Collector {
	c := &Collector{
		registry: registry,

		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "devsetup_info",
				Help: "Information about the provisioning run (value always 1)",
			},
			[]string{"version", "mode"},
		),

		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devsetup_steps_total",
				Help: "Install steps finished, by result",
			},
			[]string{"result"},
		),

		stepDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "devsetup_step_duration_seconds",
				Help: "Wall time of each install step, including its check",
			},
			[]string{"step"},
		),

		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devsetup_commands_total",
				Help: "External commands run, by program and result",
			},
			[]string{"program", "result"},
		),

		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devsetup_command_duration_seconds",
				Help:    "External command wall time",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"program"},
		),

		runSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "devsetup_last_run_success",
				Help: "1 if the last run completed every step, 0 otherwise",
			},
		),

		runDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "devsetup_last_run_duration_seconds",
				Help: "Wall time of the last run",
			},
		),

		lastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "devsetup_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),

		digest: tdigest.NewWithCompression(100),
	}

	registry.MustRegister(
		c.info,
		c.stepsTotal,
		c.stepDuration,
		c.commandsTotal,
		c.commandDuration,
		c.runSuccess,
		c.runDuration,
		c.lastRunTimestamp,
	)

	mode := cfg.Mode
	if mode == "" {
		mode = "direct"
	}
	c.info.WithLabelValues(cfg.Version, mode).Set(1)

	return c
}

// Registry returns the registry holding the run metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CommandFinished implements process.Observer.
func (c *Collector) CommandFinished(spec *process.Spec, elapsed time.Duration, err error) {
	program := filepath.Base(spec.Program())
	c.commandsTotal.WithLabelValues(program, CommandResult(err)).Inc()
	c.commandDuration.WithLabelValues(program).Observe(elapsed.Seconds())

	c.mu.Lock()
	c.digest.Add(float64(elapsed.Nanoseconds()), 1)
	c.commands++
	if elapsed > c.slowest {
		c.slowest = elapsed
	}
	c.mu.Unlock()
}

// StepFinished records one install step.
func (c *Collector) StepFinished(name string, elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.stepsTotal.WithLabelValues(result).Inc()
	c.stepDuration.WithLabelValues(name).Set(elapsed.Seconds())
}

// RunFinished records the outcome of the whole run.
func (c *Collector) RunFinished(elapsed time.Duration, err error) {
	if err == nil {
		c.runSuccess.Set(1)
	} else {
		c.runSuccess.Set(0)
	}
	c.runDuration.Set(elapsed.Seconds())
	c.lastRunTimestamp.SetToCurrentTime()
}

// CommandStats returns command count and duration quantiles so far.
func (c *Collector) CommandStats() CommandStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.commands == 0 {
		return CommandStats{}
	}
	return CommandStats{
		Count: c.commands,
		P50:   time.Duration(c.digest.Quantile(0.50)),
		P95:   time.Duration(c.digest.Quantile(0.95)),
		Max:   c.slowest,
	}
}

// WriteTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector. The write is atomic.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// CommandResult maps an Execute error to a result label.
func CommandResult(err error) string {
	if err == nil {
		return ResultOK
	}

	var scriptErr *process.ScriptingError
	var spawnErr *process.SpawnError
	var timeoutErr *process.TimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		return ResultTimeout
	case errors.As(err, &scriptErr):
		return ResultExitError
	case errors.As(err, &spawnErr):
		return ResultSpawn
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultAborted
	default:
		return ResultExitError
	}
}

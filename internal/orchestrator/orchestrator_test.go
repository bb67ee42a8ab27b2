package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/assets"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/config"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/metrics"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/preflight"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/privilege"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/process"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/provision"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/verify"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeDetector struct {
	info preflight.OSInfo
	err  error
}

func (d fakeDetector) DetectOS() (preflight.OSInfo, error) { return d.info, d.err }

var (
	ubuntu = fakeDetector{info: preflight.OSInfo{ID: "ubuntu", Name: "Ubuntu", VersionID: "24.04"}}
	fedora = fakeDetector{info: preflight.OSInfo{ID: "fedora", Name: "Fedora Linux", VersionID: "40"}}
)

func rootHost() preflight.Host {
	return preflight.Host{
		EUID:     func() int { return 0 },
		LookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
		FreeMiB:  func(string) (int, error) { return 100000, nil },
	}
}

type fakeVerifier struct {
	calls []verify.Tool
	fail  verify.Tool
}

func (v *fakeVerifier) Verify(ctx context.Context, tool verify.Tool, priv privilege.Context) error {
	v.calls = append(v.calls, tool)
	if tool == v.fail {
		return &verify.ValidationError{Tool: tool}
	}
	return nil
}

type recordingReporter struct {
	events []string
}

func (r *recordingReporter) RunStarted(steps []string, target string) {
	r.events = append(r.events, fmt.Sprintf("run_started:%d:%s", len(steps), target))
}
func (r *recordingReporter) StepStarted(i int, name string) {
	r.events = append(r.events, fmt.Sprintf("start:%d", i))
}
func (r *recordingReporter) SubStep(i int, name string) {
	r.events = append(r.events, fmt.Sprintf("sub:%d:%s", i, name))
}
func (r *recordingReporter) StepSucceeded(i int, name string, _ time.Duration) {
	r.events = append(r.events, fmt.Sprintf("ok:%d", i))
}
func (r *recordingReporter) StepFailed(i int, name string, _ time.Duration, err error) {
	r.events = append(r.events, fmt.Sprintf("fail:%d", i))
}
func (r *recordingReporter) RunFinished(_ time.Duration, err error) {
	r.events = append(r.events, fmt.Sprintf("finished:%v", err == nil))
}

func (r *recordingReporter) count(prefix string) int {
	n := 0
	for _, e := range r.events {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

type fakeRecorder struct {
	steps  []string
	runErr error
	runs   int
}

func (f *fakeRecorder) StepFinished(name string, _ time.Duration, err error) {
	f.steps = append(f.steps, fmt.Sprintf("%s:%v", name, err == nil))
}
func (f *fakeRecorder) RunFinished(_ time.Duration, err error) {
	f.runs++
	f.runErr = err
}
func (f *fakeRecorder) CommandStats() metrics.CommandStats {
	return metrics.CommandStats{Count: 3, P50: time.Second, P95: 2 * time.Second, Max: 3 * time.Second}
}

// tracedSteps builds n steps that append their index to ran. The step at
// failAt (1-based, 0 for none) returns a distinctive error.
func tracedSteps(n, failAt int, ran *[]int) []provision.Step {
	steps := make([]provision.Step, n)
	for i := range steps {
		idx := i + 1
		steps[i] = provision.Step{
			Name: fmt.Sprintf("step-%d", idx),
			Run: func(ctx context.Context, priv privilege.Context, sub provision.SubStepFunc) error {
				*ran = append(*ran, idx)
				sub(fmt.Sprintf("detail-%d", idx))
				if idx == failAt {
					return fmt.Errorf("step %d exploded: %w", idx, &process.ScriptingError{Program: "bash", Message: "boom", ExitCode: 2})
				}
				return nil
			},
		}
	}
	return steps
}

// =============================================================================
// Tests
// =============================================================================

func TestRun_NonUbuntuAbortsBeforeAnyStep(t *testing.T) {
	var ran []int
	rep := &recordingReporter{}
	o := New(Options{
		Steps:    tracedSteps(5, 0, &ran),
		Verifier: &fakeVerifier{},
		Detector: fedora,
		Host:     rootHost(),
		Reporter: rep,
	})

	err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected failure on Fedora")
	}
	if err.Error() != "this tool requires Ubuntu, but detected: Fedora Linux" {
		t.Errorf("Error() = %q", err.Error())
	}
	var ue *preflight.UnsupportedOSError
	if !errors.As(err, &ue) {
		t.Errorf("expected *UnsupportedOSError, got %T", err)
	}
	if len(ran) != 0 {
		t.Errorf("steps ran on an unsupported OS: %v", ran)
	}
	if o.State() != StateFailed {
		t.Errorf("State() = %v, want failed", o.State())
	}
	if rep.count("start:") != 0 || rep.count("finished:false") != 1 {
		t.Errorf("reporter events = %v", rep.events)
	}
}

func TestRun_OSGuardRunsWithSkipPreflight(t *testing.T) {
	var ran []int
	o := New(Options{
		Steps:         tracedSteps(2, 0, &ran),
		Detector:      fedora,
		SkipPreflight: true,
	})
	if err := o.Run(context.Background()); err == nil || len(ran) != 0 {
		t.Fatalf("OS guard must not be skippable: err=%v ran=%v", err, ran)
	}
}

func TestRun_DetectorError(t *testing.T) {
	o := New(Options{Detector: fakeDetector{err: errors.New("permission denied")}})
	err := o.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "detecting OS") {
		t.Fatalf("expected detection error, got %v", err)
	}
}

func TestRun_PreflightFailure(t *testing.T) {
	var ran []int
	host := rootHost()
	host.EUID = func() int { return 1000 }
	var out bytes.Buffer

	o := New(Options{
		Steps:           tracedSteps(3, 0, &ran),
		Detector:        ubuntu,
		Host:            host,
		PreflightOutput: &out,
	})
	err := o.Run(context.Background())
	if !errors.Is(err, ErrPreflight) {
		t.Fatalf("expected ErrPreflight, got %v", err)
	}
	if len(ran) != 0 {
		t.Errorf("steps ran after failed preflight: %v", ran)
	}
	if !strings.Contains(out.String(), "Preflight checks:") {
		t.Errorf("preflight table not printed: %q", out.String())
	}

	// Skipping preflight lets the same host proceed.
	ran = nil
	o = New(Options{
		Steps:         tracedSteps(3, 0, &ran),
		Detector:      ubuntu,
		Host:          host,
		SkipPreflight: true,
	})
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error with --skip-preflight: %v", err)
	}
	if len(ran) != 3 {
		t.Errorf("ran = %v", ran)
	}
}

func TestRun_ThirdOfFiveFails(t *testing.T) {
	var ran []int
	rep := &recordingReporter{}
	rec := &fakeRecorder{}
	o := New(Options{
		Steps:    tracedSteps(5, 3, &ran),
		Verifier: &fakeVerifier{},
		Detector: ubuntu,
		Host:     rootHost(),
		Reporter: rep,
		Recorder: rec,
	})

	err := o.Run(context.Background())
	if !reflect.DeepEqual(ran, []int{1, 2, 3}) {
		t.Errorf("ran = %v, want [1 2 3]", ran)
	}

	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StepError, got %v", err)
	}
	if se.Index != 3 || se.Name != "step-3" {
		t.Errorf("StepError = %d %q", se.Index, se.Name)
	}
	if !strings.Contains(err.Error(), "step 3 exploded") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("step error not surfaced verbatim: %q", err.Error())
	}
	var scriptErr *process.ScriptingError
	if !errors.As(err, &scriptErr) || scriptErr.ExitCode != 2 {
		t.Errorf("cause should stay reachable: %v", err)
	}

	if o.State() != StateFailed {
		t.Errorf("State() = %v", o.State())
	}
	if rep.count("ok:") != 2 || rep.count("fail:2") != 1 || rep.count("start:3") != 0 {
		t.Errorf("reporter events = %v", rep.events)
	}
	if want := []string{"step-1:true", "step-2:true", "step-3:false"}; !reflect.DeepEqual(rec.steps, want) {
		t.Errorf("recorded steps = %v, want %v", rec.steps, want)
	}
	if rec.runs != 1 || rec.runErr == nil {
		t.Errorf("recorder RunFinished = %d, %v", rec.runs, rec.runErr)
	}

	s := o.Summary()
	if s.Completed != 2 || s.Steps != 5 || s.State != StateFailed || s.Err == nil {
		t.Errorf("Summary() = %+v", s)
	}
}

func TestRun_VerifyFailureStopsRun(t *testing.T) {
	var ran []int
	steps := tracedSteps(3, 0, &ran)
	steps[1].Check = verify.Rust

	o := New(Options{
		Steps:    steps,
		Verifier: &fakeVerifier{fail: verify.Rust},
		Detector: ubuntu,
		Host:     rootHost(),
	})
	err := o.Run(context.Background())

	var ve *verify.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *verify.ValidationError, got %v", err)
	}
	var se *StepError
	if !errors.As(err, &se) || se.Index != 2 {
		t.Errorf("expected StepError for step 2, got %v", err)
	}
	if !reflect.DeepEqual(ran, []int{1, 2}) {
		t.Errorf("ran = %v", ran)
	}
}

func TestRun_SubStepsReported(t *testing.T) {
	var ran []int
	rep := &recordingReporter{}
	o := New(Options{
		Steps:     tracedSteps(2, 0, &ran),
		Detector:  ubuntu,
		Host:      rootHost(),
		Reporter:  rep,
		Privilege: privilege.DirectContext(),
	})
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"run_started:2:direct",
		"start:0", "sub:0:detail-1", "ok:0",
		"start:1", "sub:1:detail-2", "ok:1",
		"finished:true",
	}
	if !reflect.DeepEqual(rep.events, want) {
		t.Errorf("events = %v\nwant     %v", rep.events, want)
	}
	if o.State() != StateCompleted {
		t.Errorf("State() = %v", o.State())
	}
}

func TestRun_CancelledContext(t *testing.T) {
	var ran []int
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(Options{Steps: tracedSteps(3, 0, &ran), Detector: ubuntu, Host: rootHost()})
	err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(ran) != 0 {
		t.Errorf("ran = %v", ran)
	}
}

// installExecutor accepts every command and records the extension ids
// passed to the editor.
type installExecutor struct {
	extensions []string
}

func (e *installExecutor) Execute(ctx context.Context, spec *process.Spec) (*process.Result, error) {
	argv := spec.Argv()
	for _, a := range argv {
		if strings.Contains(a, "--install-extension") {
			e.extensions = append(e.extensions, argv[len(argv)-1])
		}
	}
	if spec.Program() == "wget" {
		return &process.Result{Stdout: []byte("key")}, nil
	}
	return &process.Result{}, nil
}

func TestRun_FullPlanAllPass(t *testing.T) {
	exe := &installExecutor{}
	manifest, err := assets.Extensions()
	if err != nil {
		t.Fatal(err)
	}
	steps, err := provision.New(exe, nil, config.DefaultConfig()).Plan(manifest, assets.Settings())
	if err != nil {
		t.Fatal(err)
	}

	priv, err := privilege.Resolve(func(string) (string, bool) { return "alice", true }, 0)
	if err != nil {
		t.Fatal(err)
	}
	v := &fakeVerifier{}
	o := New(Options{
		Steps:     steps,
		Privilege: priv,
		Verifier:  v,
		Detector:  ubuntu,
		Host:      rootHost(),
	})

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []verify.Tool{verify.NVM, verify.Node, verify.Rust, verify.Editor}; !reflect.DeepEqual(v.calls, want) {
		t.Errorf("verify calls = %v, want each tool once: %v", v.calls, want)
	}
	if !reflect.DeepEqual(exe.extensions, manifest.Extensions) {
		t.Errorf("extensions installed %q, want manifest order %q", exe.extensions, manifest.Extensions)
	}
	if s := o.Summary(); s.Completed != len(steps) || s.State != StateCompleted {
		t.Errorf("Summary() = %+v", s)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, Summary{
		State:     StateCompleted,
		Steps:     7,
		Completed: 7,
		Duration:  3*time.Minute + 5*time.Second,
		Target:    "elevated(alice)",
		Commands:  metrics.CommandStats{Count: 30, P50: 1200 * time.Millisecond, P95: 40 * time.Second, Max: 95 * time.Second},
	})
	out := buf.String()
	for _, want := range []string{
		"devsetup Exit Summary",
		"Result:                 completed",
		"Run Duration:           00:03:05",
		"Steps Completed:        7/7",
		"elevated(alice)",
		"Total:                30",
		"P50:                  1.2s",
		"Slowest:              1m35s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrintSummary_NoCommands(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, Summary{State: StateFailed})
	if strings.Contains(buf.String(), "Commands:") {
		t.Error("command section should be omitted when nothing ran")
	}
}

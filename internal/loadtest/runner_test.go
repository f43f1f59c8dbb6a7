package loadtest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/wasatchphotonics/wasatch-shell/internal/device"
	"github.com/wasatchphotonics/wasatch-shell/internal/expect"
	"github.com/wasatchphotonics/wasatch-shell/internal/shell"
)

func testOptions(plan Plan) Options {
	return Options{
		Plan:              plan,
		SettleDelay:       0,
		IntegrationTimeMS: 100,
		TECSetpointDegC:   10,
		LaserPowerMW:      70,
	}
}

// startSimShell runs a real shell over in-memory pipes and returns the
// driver-side session, exactly as load-test talks to a spawned process.
func startSimShell(t *testing.T, sim *device.Simulator, opts ...expect.Option) *expect.Session {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	sh := shell.New(sim, inR, outW, nil)
	go func() {
		sh.Run()
		outW.Close()
	}()
	s := expect.NewSession(outR, inW, opts...)
	t.Cleanup(func() {
		s.Close()
		inW.Close()
	})
	return s
}

// startScriptedShell runs a canned endpoint whose responses come from
// respond, for driving the runner into specific protocol faults.
func startScriptedShell(t *testing.T, respond func(line string) string) *expect.Session {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	go func() {
		fmt.Fprintf(outW, "wasatch-shell version 0.0-test\nwp> ")
		sc := bufio.NewScanner(inR)
		for sc.Scan() {
			io.WriteString(outW, respond(sc.Text()))
		}
		outW.Close()
	}()
	s := expect.NewSession(outR, inW, expect.WithTimeout(100*time.Millisecond))
	t.Cleanup(func() {
		s.Close()
		inW.Close()
	})
	return s
}

func TestRunBoundedCompletes(t *testing.T) {
	sim, err := device.NewSimulator(device.DefaultEEPROM(), 42)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	session := startSimShell(t, sim)

	var out bytes.Buffer
	runner := NewRunner(session, &out, testOptions(Plan{Outer: 2, Inner: 3}))
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v\noutput:\n%s", err, out.String())
	}

	// open + 2 passes of (6 setup + 3*20 queries + 2 teardown)
	if got, want := runner.Exchanges(), 137; got != want {
		t.Fatalf("Exchanges = %d, want %d", got, want)
	}
	for _, marker := range []string{
		"Successfully enumerated spectrometer",
		"Pass 2 of 2",
		"Iteration 3 of 3",
		"get_spectrum",
		"All tests completed.",
	} {
		if !strings.Contains(out.String(), marker) {
			t.Fatalf("output missing %q:\n%s", marker, out.String())
		}
	}
}

func TestRunAbortsWhenConfigLacksCalibration(t *testing.T) {
	session := startScriptedShell(t, func(line string) string {
		if line == "get_config_json" {
			return "{}\nwp> "
		}
		return "1\nwp> "
	})

	var out bytes.Buffer
	runner := NewRunner(session, &out, testOptions(Plan{Outer: 1, Inner: 1}))
	err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("Run should fail when the config dump has no calibration")
	}
	if !strings.Contains(err.Error(), `"get_config_json"`) {
		t.Fatalf("error does not name the failing command: %v", err)
	}
	var te *expect.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("Run = %v, want TimeoutError", err)
	}
	if !strings.Contains(out.String(), "FAILED") {
		t.Fatalf("output missing failure diagnosis:\n%s", out.String())
	}
}

func TestRunAbortsOnNegativeAck(t *testing.T) {
	session := startScriptedShell(t, func(line string) string {
		if line == "set_tec_enable on" {
			return "0\nwp> "
		}
		if line == "get_config_json" {
			return `{"wavelength_coeffs": [0]}` + "\nwp> "
		}
		return "1\nwp> "
	})

	var out bytes.Buffer
	runner := NewRunner(session, &out, testOptions(Plan{Outer: 1, Inner: 1}))
	err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("Run should fail on a negative acknowledgment")
	}
	if !strings.Contains(err.Error(), `"set_tec_enable on"`) {
		t.Fatalf("error does not name the failing command: %v", err)
	}
}

func TestRunReportsEnumerationFailure(t *testing.T) {
	sim, err := device.NewSimulator(device.DefaultEEPROM(), 42)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	sim.FailOpen = true
	session := startSimShell(t, sim, expect.WithTimeout(100*time.Millisecond))

	var out bytes.Buffer
	runner := NewRunner(session, &out, testOptions(Plan{Outer: 1, Inner: 1}))
	if err := runner.Run(context.Background()); err == nil {
		t.Fatal("Run should fail when no spectrometer enumerates")
	}
	if !strings.Contains(out.String(), "No spectrometers found") {
		t.Fatalf("output missing enumeration diagnosis:\n%s", out.String())
	}
	if runner.Exchanges() != 0 {
		t.Fatalf("Exchanges = %d, want 0", runner.Exchanges())
	}
}

func TestRunUnboundedStopsOnCancel(t *testing.T) {
	sim, err := device.NewSimulator(device.DefaultEEPROM(), 42)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	session := startSimShell(t, sim)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	runner := NewRunner(session, &out, testOptions(Plan{Outer: 0, Inner: 1}))
	passes := 0
	runner.afterPass = func(pass int) {
		passes = pass
		if pass == 2 {
			cancel()
		}
	}

	if err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if passes != 2 {
		t.Fatalf("completed %d passes before cancel, want 2", passes)
	}
	if !strings.Contains(out.String(), "Pass 2 (unbounded)") {
		t.Fatalf("output missing unbounded pass banner:\n%s", out.String())
	}
}

func TestRunUnboundedInnerStopsOnCancel(t *testing.T) {
	sim, err := device.NewSimulator(device.DefaultEEPROM(), 42)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	session := startSimShell(t, sim)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	runner := NewRunner(session, &out, testOptions(Plan{Outer: 1, Inner: 0}))
	iterations := 0
	runner.afterIteration = func(iteration int) {
		iterations = iteration
		if iteration == 3 {
			cancel()
		}
	}

	if err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if iterations != 3 {
		t.Fatalf("completed %d iterations before cancel, want 3", iterations)
	}
	if !strings.Contains(out.String(), "Iteration 3 (unbounded)") {
		t.Fatalf("output missing unbounded iteration banner:\n%s", out.String())
	}
}

func TestPlanBounded(t *testing.T) {
	cases := []struct {
		plan Plan
		want bool
	}{
		{Plan{Outer: 5, Inner: 10}, true},
		{Plan{Outer: 0, Inner: 10}, false},
		{Plan{Outer: 5, Inner: 0}, false},
		{Plan{Outer: -1, Inner: -1}, false},
	}
	for _, c := range cases {
		if got := c.plan.Bounded(); got != c.want {
			t.Fatalf("Bounded(%+v) = %v, want %v", c.plan, got, c.want)
		}
	}
}

func TestBatteryShape(t *testing.T) {
	opts := testOptions(Plan{Outer: 1, Inner: 1})
	if got := len(setupSteps(opts)); got != 6 {
		t.Fatalf("setup battery has %d steps, want 6", got)
	}
	queries := querySteps(opts)
	if got := len(queries); got != 20 {
		t.Fatalf("query battery has %d steps, want 20", got)
	}
	if got := len(teardownSteps()); got != 2 {
		t.Fatalf("teardown battery has %d steps, want 2", got)
	}

	// the ADC probes pin the selection side effects in order
	var adcWants []string
	for _, st := range queries {
		if st.send == "get_selected_adc" {
			adcWants = append(adcWants, st.want...)
		}
	}
	if len(adcWants) != 2 || adcWants[0] != "0" || adcWants[1] != "1" {
		t.Fatalf("get_selected_adc expectations = %v, want [0 1]", adcWants)
	}
}

func TestStatsRender(t *testing.T) {
	st := newStats()
	st.record("open", 2*time.Millisecond)
	st.record("set_tec_enable on", time.Millisecond)
	st.record("set_tec_enable off", 3*time.Millisecond)

	var out bytes.Buffer
	st.render(&out)
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("summary has %d lines, want header plus two commands:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "command") {
		t.Fatalf("summary header = %q", lines[0])
	}
	if !strings.Contains(out.String(), "set_tec_enable") {
		t.Fatalf("summary missing command row:\n%s", out.String())
	}
	// both enable and disable collapse onto the command name
	if strings.Count(out.String(), "set_tec_enable") != 1 {
		t.Fatalf("set_tec_enable should aggregate to one row:\n%s", out.String())
	}
}

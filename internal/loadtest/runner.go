// Package loadtest drives the shell with a repeatable pattern of commands
// heavy enough to surface communication faults that only emerge under
// duress. A single mismatch or timeout aborts the run: the tool exists to
// expose faults, not mask them.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/wasatchphotonics/wasatch-shell/internal/expect"
)

const (
	prompt       = "wp>"
	success      = "1"
	bannerMarker = "wasatch-shell version"
	configMarker = "wavelength_coeffs"
)

var (
	colorPass = color.New(color.FgCyan, color.Bold).SprintfFunc()
	colorFail = color.New(color.FgHiRed, color.Bold).SprintfFunc()
	colorWarn = color.New(color.FgYellow).SprintfFunc()
	colorGood = color.New(color.FgGreen, color.Bold).SprintfFunc()
)

// Plan holds the loop bounds. A bound <= 0 means unbounded: the loop runs
// until externally cancelled.
type Plan struct {
	Outer int
	Inner int
}

// Bounded reports whether the whole run can terminate on its own.
func (p Plan) Bounded() bool {
	return p.Outer > 0 && p.Inner > 0
}

// Options configures one load-test run.
type Options struct {
	Plan              Plan
	SettleDelay       time.Duration
	IntegrationTimeMS int
	TECSetpointDegC   int
	LaserPowerMW      float64
}

// Runner walks the load-test state machine over one expect session:
// Launching, Opening, then pass/iteration loops, then Closing. Strictly one
// command in flight at a time.
type Runner struct {
	session *expect.Session
	out     io.Writer
	opts    Options

	stats     *stats
	exchanges int

	// afterPass and afterIteration, when set, observe completed loop
	// bodies. Tests use them to cancel unbounded runs deterministically.
	afterPass      func(pass int)
	afterIteration func(iteration int)
}

// NewRunner builds a runner over an established session. The session's
// banner must not have been consumed yet.
func NewRunner(session *expect.Session, out io.Writer, opts Options) *Runner {
	return &Runner{
		session: session,
		out:     out,
		opts:    opts,
		stats:   newStats(),
	}
}

// Exchanges reports completed protocol round trips.
func (r *Runner) Exchanges() int { return r.exchanges }

// Run executes the full test plan. The returned error is the first
// launch, expectation, or teardown failure; nil means every pass completed.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.launch(ctx); err != nil {
		return r.fail(err)
	}
	if err := r.open(ctx); err != nil {
		fmt.Fprintln(r.out, colorFail("ERROR: No spectrometers found"))
		return r.fail(err)
	}
	fmt.Fprintln(r.out, "Successfully enumerated spectrometer")

	for pass := 1; r.opts.Plan.Outer <= 0 || pass <= r.opts.Plan.Outer; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.passBanner(pass)
		if err := sleepCtx(ctx, r.opts.SettleDelay); err != nil {
			return err
		}

		if err := r.runSteps(ctx, setupSteps(r.opts)); err != nil {
			return r.fail(err)
		}

		for iteration := 1; r.opts.Plan.Inner <= 0 || iteration <= r.opts.Plan.Inner; iteration++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.iterationBanner(iteration)
			if err := r.runSteps(ctx, querySteps(r.opts)); err != nil {
				return r.fail(err)
			}
			if r.afterIteration != nil {
				r.afterIteration(iteration)
			}
		}

		if err := r.runSteps(ctx, teardownSteps()); err != nil {
			return r.fail(err)
		}
		if r.afterPass != nil {
			r.afterPass(pass)
		}
	}

	if err := r.close(ctx); err != nil {
		fmt.Fprintln(r.out, colorWarn("warning: shell did not shut down cleanly: %v", err))
		return err
	}

	r.stats.render(r.out)
	fmt.Fprintln(r.out, colorGood("All tests completed."))
	return nil
}

// launch waits for the banner and first prompt, proving the shell process
// came up at all.
func (r *Runner) launch(ctx context.Context) error {
	if err := r.session.Expect(ctx, bannerMarker); err != nil {
		return fmt.Errorf("shell did not start: %w", err)
	}
	if err := r.session.Expect(ctx, prompt); err != nil {
		return fmt.Errorf("shell did not start: %w", err)
	}
	return nil
}

func (r *Runner) open(ctx context.Context) error {
	return r.exchange(ctx, ack("open"))
}

func (r *Runner) close(ctx context.Context) error {
	if err := r.session.SendLine("close"); err != nil {
		return err
	}
	if err := r.session.ExpectEOF(ctx); err != nil {
		return fmt.Errorf("no end-of-stream after close: %w", err)
	}
	return nil
}

func (r *Runner) runSteps(ctx context.Context, steps []step) error {
	for _, st := range steps {
		if err := r.exchange(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// exchange performs one strict request/response round trip: send the
// command, require each expected substring in order, then require the
// prompt.
func (r *Runner) exchange(ctx context.Context, st step) error {
	start := time.Now()
	if err := r.session.SendLine(st.send); err != nil {
		return fmt.Errorf("command %q: %w", st.send, err)
	}
	for _, want := range st.want {
		if err := r.session.Expect(ctx, want); err != nil {
			return fmt.Errorf("command %q: %w", st.send, err)
		}
	}
	if err := r.session.Expect(ctx, prompt); err != nil {
		return fmt.Errorf("command %q: no prompt: %w", st.send, err)
	}
	r.stats.record(st.send, time.Since(start))
	r.exchanges++
	return nil
}

func (r *Runner) passBanner(pass int) {
	if r.opts.Plan.Outer > 0 {
		fmt.Fprintln(r.out, colorPass("Pass %d of %d", pass, r.opts.Plan.Outer))
	} else {
		fmt.Fprintln(r.out, colorPass("Pass %d (unbounded)", pass))
	}
}

func (r *Runner) iterationBanner(iteration int) {
	if r.opts.Plan.Inner > 0 {
		fmt.Fprintf(r.out, "  Iteration %d of %d\n", iteration, r.opts.Plan.Inner)
	} else {
		fmt.Fprintf(r.out, "  Iteration %d (unbounded)\n", iteration)
	}
}

// fail reports the failure prominently and passes the error through; on
// mismatch runs there is no summary, just the diagnosis.
func (r *Runner) fail(err error) error {
	fmt.Fprintln(r.out, colorFail("FAILED: %v", err))
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package cli

import (
	"strings"
	"testing"

	"github.com/wasatchphotonics/wasatch-shell/internal/loadtest"
)

func TestResolvePlanFlagsOnly(t *testing.T) {
	opts := &loadTestOptions{outerLoop: 5, innerLoop: 10}
	plan, err := resolvePlan(opts, nil)
	if err != nil {
		t.Fatalf("resolvePlan: %v", err)
	}
	if plan != (loadtest.Plan{Outer: 5, Inner: 10}) {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestResolvePlanPositionalsOverrideFlags(t *testing.T) {
	opts := &loadTestOptions{outerLoop: 5, innerLoop: 10}
	plan, err := resolvePlan(opts, []string{"2"})
	if err != nil {
		t.Fatalf("resolvePlan: %v", err)
	}
	if plan != (loadtest.Plan{Outer: 2, Inner: 10}) {
		t.Fatalf("plan = %+v", plan)
	}

	plan, err = resolvePlan(opts, []string{"0", "-1"})
	if err != nil {
		t.Fatalf("resolvePlan: %v", err)
	}
	if plan.Bounded() {
		t.Fatalf("plan %+v should be unbounded", plan)
	}
}

func TestResolvePlanRejectsGarbage(t *testing.T) {
	opts := &loadTestOptions{}
	if _, err := resolvePlan(opts, []string{"five"}); err == nil {
		t.Fatal("non-numeric outer bound should be rejected")
	}
	if _, err := resolvePlan(opts, []string{"5", "ten"}); err == nil {
		t.Fatal("non-numeric inner bound should be rejected")
	}
}

func TestShellCommandOverride(t *testing.T) {
	name, args, err := shellCommand("python3 wasatch-shell.py --verbose")
	if err != nil {
		t.Fatalf("shellCommand: %v", err)
	}
	if name != "python3" {
		t.Fatalf("name = %q", name)
	}
	if len(args) != 2 || args[0] != "wasatch-shell.py" || args[1] != "--verbose" {
		t.Fatalf("args = %v", args)
	}
}

func TestShellCommandDefaultsToOwnBinary(t *testing.T) {
	name, args, err := shellCommand("")
	if err != nil {
		t.Fatalf("shellCommand: %v", err)
	}
	if name == "" {
		t.Fatal("expected this binary's path")
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--log-level debug") {
		t.Fatalf("spawned shell should log at debug: %v", args)
	}
}

func TestShellCommandRejectsBlankOverride(t *testing.T) {
	if _, _, err := shellCommand("   "); err == nil {
		t.Fatal("blank override should be rejected")
	}
}

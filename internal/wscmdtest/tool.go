// Implementation of the `wscmdtest` harness.
//
// Key behaviors:
//   - Creates `/tmp/wasatch-transcripts/bench-<id>` and runs the command there,
//     so log files and transcripts never land in the repo.
//   - Seeds a `wasatch-shell.toml` with a fixed simulation seed for stable
//     spectra and temperature readings.
//   - Prepends `<repo>/bin` to PATH so transcripts invoke `wasatch-shell`
//     without knowing where it was built.
//   - Honors `WS_CMDTEST_TIMEOUT` (default 10s) to cap setup + command runtime.
//   - Honors `WS_CMDTEST_ID` to isolate bench dirs for parallel tests.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

type tool struct {
	repoRoot    string
	benchRoot   string
	shellBinDir string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

const defaultTimeout = 10 * time.Second

// benchConfig pins the simulation so transcript output is reproducible.
const benchConfig = `[simulation]
seed = 42

[loadtest]
settle_delay_ms = 1
`

func newToolFromExecutable() (*tool, error) {
	if root := os.Getenv("WS_REPO_ROOT"); root != "" {
		return newTool(root), nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, err
	}
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(exe), ".."))
	return newTool(repoRoot), nil
}

func newTool(repoRoot string) *tool {
	repoRoot = filepath.Clean(repoRoot)
	return &tool{
		repoRoot:    repoRoot,
		benchRoot:   "/tmp/wasatch-transcripts",
		shellBinDir: filepath.Join(repoRoot, "bin"),
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
}

func (t *tool) runCLI(ctx context.Context, args []string) int {
	ctx, cancel, timeout := withTimeoutFromEnv(ctx, "WS_CMDTEST_TIMEOUT", defaultTimeout)
	if cancel != nil {
		defer cancel()
	}

	opts, cmdArgs, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(t.stderr, err)
		t.printUsage()
		return 2
	}
	if opts.help {
		t.printUsage()
		return 0
	}

	exitCode, err := t.run(ctx, opts, cmdArgs, timeout)
	if err != nil {
		fmt.Fprintln(t.stderr, err)
		return 1
	}
	return exitCode
}

func (t *tool) printUsage() {
	fmt.Fprint(t.stderr, `Usage: wscmdtest [options] -- <command> [args...]

Sets up a disposable bench directory with a deterministic simulation
config, runs the given command inside it, and cleans up afterward.
Intended for transcript integration tests.

Options:
  --no-config   Leave the bench without a wasatch-shell.toml.
  --keep        Preserve the bench dir for debugging (prints its path).
`)
}

func (t *tool) run(ctx context.Context, opts options, cmdArgs []string, timeout time.Duration) (int, error) {
	if t.repoRoot == "" {
		return 1, errors.New("repo root is required")
	}
	if _, err := os.Stat(filepath.Join(t.repoRoot, "go.mod")); err != nil {
		return 1, fmt.Errorf("unable to locate wasatch-shell repo root: %w", err)
	}

	if err := os.MkdirAll(t.benchRoot, 0o755); err != nil {
		return 1, err
	}

	bench := filepath.Join(t.benchRoot, benchDirName())
	unlock, err := acquireLockFile(ctx, bench+".lock", timeout)
	if err != nil {
		return 1, err
	}
	defer unlock()

	if err := removeAllUnder(t.benchRoot, bench); err != nil {
		return 1, err
	}
	if err := os.MkdirAll(bench, 0o755); err != nil {
		return 1, err
	}

	if !opts.noConfig {
		if err := os.WriteFile(filepath.Join(bench, "wasatch-shell.toml"), []byte(benchConfig), 0o644); err != nil {
			return 1, err
		}
	}

	childEnv := deterministicEnv(os.Environ())
	childEnv = withEnv(childEnv, "PATH", t.shellBinDir+string(os.PathListSeparator)+getEnv(childEnv, "PATH"))

	cmd := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
	cmd.Dir = bench
	cmd.Env = withEnv(childEnv, "PWD", bench)
	cmd.Stdin = t.stdin
	cmd.Stdout = t.stdout
	cmd.Stderr = t.stderr

	runErr := cmd.Run()
	if runErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 124, fmt.Errorf("wscmdtest: timed out after %s", timeout)
	}
	exitCode := exitStatus(runErr)

	if opts.keepBench {
		fmt.Fprintf(t.stderr, "bench dir kept at %s\n", bench)
	} else if cleanupErr := removeAllUnder(t.benchRoot, bench); cleanupErr != nil {
		return 1, cleanupErr
	}

	return exitCode, nil
}

func deterministicEnv(base []string) []string {
	env := envMap(base)
	env["NO_COLOR"] = "1"
	env["CLICOLOR"] = "0"
	env["CLICOLOR_FORCE"] = "0"
	return envSlice(env)
}

func removeAllUnder(root, target string) error {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return err
	}
	if rel == "." {
		return fmt.Errorf("refusing to remove root: %s", root)
	}
	if strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return fmt.Errorf("refusing to remove outside root: %s", target)
	}
	return os.RemoveAll(target)
}

func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 127
}

func withTimeoutFromEnv(ctx context.Context, key string, def time.Duration) (context.Context, context.CancelFunc, time.Duration) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def.String()
	}
	if raw == "0" || raw == "0s" {
		return ctx, nil, 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		d = def
	}
	next, cancel := context.WithTimeout(ctx, d)
	return next, cancel, d
}

func envMap(env []string) map[string]string {
	out := make(map[string]string, len(env))
	for _, entry := range env {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

func envSlice(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

func withEnv(env []string, key, value string) []string {
	m := envMap(env)
	m[key] = value
	return envSlice(m)
}

func getEnv(env []string, key string) string {
	m := envMap(env)
	return m[key]
}

func benchDirName() string {
	raw := strings.TrimSpace(os.Getenv("WS_CMDTEST_ID"))
	if raw != "" {
		safe := make([]rune, 0, len(raw))
		for _, r := range raw {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
				safe = append(safe, r)
				continue
			}
			safe = append(safe, '_')
		}
		id := strings.Trim(strings.TrimSpace(string(safe)), "._-")
		if id != "" {
			return "bench-" + id
		}
	}

	// Fallback: generate a unique, non-guessable ID to avoid collisions in `/tmp`.
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("bench-%d", time.Now().UnixNano())
	}
	return "bench-" + hex.EncodeToString(b[:])
}

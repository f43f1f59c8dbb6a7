package expect

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// child tracks a spawned protocol endpoint.
type child struct {
	cmd  *exec.Cmd
	done chan error
}

// Spawn starts a process with piped stdio and wraps it in a Session. Stderr
// is merged into the response stream, matching what an operator would see.
// The child runs in its own process group so Close can clear anything it
// forked.
func Spawn(name string, args []string, opts ...Option) (*Session, error) {
	cmd := exec.Command(name, args...)
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}

	proc := &child{cmd: cmd, done: make(chan error, 1)}
	go func() {
		err := cmd.Wait()
		pw.Close()
		proc.done <- err
	}()

	s := NewSession(pr, stdin, opts...)
	s.proc = proc
	return s, nil
}

func (c *child) close() error {
	select {
	case err := <-c.done:
		return waitResult(err)
	default:
	}

	killProcessGroup(c.cmd)
	select {
	case err := <-c.done:
		return waitResult(err)
	case <-time.After(3 * time.Second):
		return errors.New("process did not exit after kill")
	}
}

func waitResult(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Killed-by-us or nonzero exit is expected at teardown.
		return nil
	}
	return err
}

// Package expect implements a small blocking request/response client over a
// duplex byte stream: write a command line, then read until an expected
// pattern appears or a timeout expires.
//
// A Session may wrap a spawned process (Spawn) or any reader/writer pair
// (NewSession), which is how tests substitute a scripted endpoint.
package expect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultTimeout bounds each individual wait. The protocol under test
// answers fast; a slow response is itself a fault worth surfacing.
const DefaultTimeout = 5 * time.Second

const tailLimit = 256

// TimeoutError reports an expectation that never arrived, with the tail of
// whatever did.
type TimeoutError struct {
	Want    string
	Tail    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %q (received %q)", e.Timeout, e.Want, e.Tail)
}

// EOFError reports a stream that ended while an expectation was pending.
type EOFError struct {
	Want string
	Tail string
}

func (e *EOFError) Error() string {
	return fmt.Sprintf("stream ended while waiting for %q (received %q)", e.Want, e.Tail)
}

// Session is a synchronous text-RPC client. It owns its stream exclusively:
// one expectation in flight at a time, no pipelining.
type Session struct {
	w          io.Writer
	readCh     chan []byte
	buf        bytes.Buffer
	before     string
	eof        bool
	timeout    time.Duration
	transcript io.Writer

	proc *child
}

// Option configures a Session.
type Option func(*Session)

// WithTimeout overrides the per-wait timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTranscript tees all traffic (both directions) to w, typically a log
// file for postmortem reading.
func WithTranscript(w io.Writer) Option {
	return func(s *Session) { s.transcript = w }
}

// NewSession builds a session over an arbitrary reader/writer pair.
func NewSession(r io.Reader, w io.Writer, opts ...Option) *Session {
	s := &Session{
		w:       w,
		readCh:  make(chan []byte, 1),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	go pump(r, s.readCh)
	return s
}

func pump(r io.Reader, ch chan<- []byte) {
	defer close(ch)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			ch <- chunk
		}
		if err != nil {
			return
		}
	}
}

// SendLine writes one command line.
func (s *Session) SendLine(line string) error {
	payload := line + "\n"
	if s.transcript != nil {
		fmt.Fprintf(s.transcript, ">> %s", payload)
	}
	_, err := io.WriteString(s.w, payload)
	if err != nil {
		return fmt.Errorf("send %q: %w", line, err)
	}
	return nil
}

// Expect blocks until want appears in the stream. Text preceding the match
// is retained for Before; the match itself is consumed.
func (s *Session) Expect(ctx context.Context, want string) error {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		if idx := strings.Index(s.buf.String(), want); idx >= 0 {
			s.before = s.buf.String()[:idx]
			s.buf.Next(idx + len(want))
			return nil
		}
		if s.eof {
			return &EOFError{Want: want, Tail: s.tail()}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return &TimeoutError{Want: want, Tail: s.tail(), Timeout: s.timeout}
		case chunk, ok := <-s.readCh:
			if !ok {
				s.eof = true
				continue
			}
			if s.transcript != nil {
				s.transcript.Write(chunk)
			}
			s.buf.Write(chunk)
		}
	}
}

// ExpectEOF blocks until the stream ends; pending output is drained and
// discarded.
func (s *Session) ExpectEOF(ctx context.Context) error {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for !s.eof {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return &TimeoutError{Want: "end of stream", Tail: s.tail(), Timeout: s.timeout}
		case chunk, ok := <-s.readCh:
			if !ok {
				s.eof = true
				continue
			}
			if s.transcript != nil {
				s.transcript.Write(chunk)
			}
			s.buf.Write(chunk)
		}
	}
	return nil
}

// Before returns the text read prior to the last Expect match; clients
// parse response values out of it.
func (s *Session) Before() string {
	return s.before
}

func (s *Session) tail() string {
	text := s.buf.String()
	if len(text) > tailLimit {
		text = "..." + text[len(text)-tailLimit:]
	}
	return text
}

// Close tears down the session. For spawned sessions the whole process
// group is terminated; pipe sessions only stop reading.
func (s *Session) Close() error {
	if s.proc != nil {
		return s.proc.close()
	}
	return nil
}

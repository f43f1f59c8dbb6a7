package expect

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestExpectConsumesThroughMatch(t *testing.T) {
	r := strings.NewReader("banner text\nwp> 1\nwp> ")
	s := NewSession(r, io.Discard)
	defer s.Close()

	ctx := context.Background()
	if err := s.Expect(ctx, "wp>"); err != nil {
		t.Fatalf("Expect: %v", err)
	}
	if got := s.Before(); got != "banner text\n" {
		t.Fatalf("Before = %q, want banner line", got)
	}
	if err := s.Expect(ctx, "wp>"); err != nil {
		t.Fatalf("second Expect: %v", err)
	}
	if got := s.Before(); got != " 1\n" {
		t.Fatalf("Before = %q, want %q", got, " 1\n")
	}
}

func TestExpectAcrossChunkBoundaries(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewSession(pr, io.Discard)
	defer s.Close()

	go func() {
		for _, part := range []string{"wavelength", "_coe", "ffs\nwp> "} {
			io.WriteString(pw, part)
			time.Sleep(time.Millisecond)
		}
		pw.Close()
	}()

	if err := s.Expect(context.Background(), "wavelength_coeffs"); err != nil {
		t.Fatalf("Expect: %v", err)
	}
}

func TestExpectTimeout(t *testing.T) {
	pr, _ := io.Pipe()
	s := NewSession(pr, io.Discard, WithTimeout(20*time.Millisecond))
	defer s.Close()

	err := s.Expect(context.Background(), "never")
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("Expect = %v, want TimeoutError", err)
	}
	if te.Want != "never" {
		t.Fatalf("TimeoutError.Want = %q", te.Want)
	}
}

func TestExpectEOFWhilePending(t *testing.T) {
	s := NewSession(strings.NewReader("partial out"), io.Discard)
	defer s.Close()

	err := s.Expect(context.Background(), "wp>")
	var ee *EOFError
	if !errors.As(err, &ee) {
		t.Fatalf("Expect = %v, want EOFError", err)
	}
	if !strings.Contains(ee.Tail, "partial out") {
		t.Fatalf("EOFError.Tail = %q, want received text", ee.Tail)
	}
}

func TestExpectHonorsContext(t *testing.T) {
	pr, _ := io.Pipe()
	s := NewSession(pr, io.Discard, WithTimeout(time.Minute))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := s.Expect(ctx, "never"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expect = %v, want context.Canceled", err)
	}
}

func TestExpectEOF(t *testing.T) {
	s := NewSession(strings.NewReader("goodbye\n"), io.Discard)
	defer s.Close()

	if err := s.ExpectEOF(context.Background()); err != nil {
		t.Fatalf("ExpectEOF: %v", err)
	}
}

func TestTranscriptTeesBothDirections(t *testing.T) {
	var transcript bytes.Buffer
	var sent bytes.Buffer
	s := NewSession(strings.NewReader("1\nwp> "), &sent, WithTranscript(&transcript))
	defer s.Close()

	if err := s.SendLine("open"); err != nil {
		t.Fatalf("SendLine: %v", err)
	}
	if err := s.Expect(context.Background(), "wp>"); err != nil {
		t.Fatalf("Expect: %v", err)
	}

	if got := sent.String(); got != "open\n" {
		t.Fatalf("sent %q, want %q", got, "open\n")
	}
	text := transcript.String()
	if !strings.Contains(text, ">> open\n") {
		t.Fatalf("transcript missing sent line: %q", text)
	}
	if !strings.Contains(text, "1\n") {
		t.Fatalf("transcript missing received text: %q", text)
	}
}

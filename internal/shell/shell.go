// Package shell implements the interactive spectrometer command shell: a
// line-oriented request/response protocol synchronized by the "wp> " prompt.
//
// Commands and arguments form a single whitespace-delimited token stream, so
// parameters may follow the command on the same line or on later lines; the
// shell reads until each command's declared arity is satisfied.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/wasatchphotonics/wasatch-shell/internal/device"
	"github.com/wasatchphotonics/wasatch-shell/internal/version"
)

// Prompt is the synchronization token clients wait for. The trailing space
// is part of the protocol.
const Prompt = "wp> "

// Shell runs the REPL over one duplex byte stream.
type Shell struct {
	dev        device.Spectrometer
	in         *bufio.Scanner
	out        *bufio.Writer
	log        *zap.Logger
	release    string
	chartWidth int

	pending []string
	exiting bool
}

// New wires a shell to a device and a duplex stream. A nil logger disables
// logging.
func New(dev device.Spectrometer, in io.Reader, out io.Writer, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{
		dev:        dev,
		in:         bufio.NewScanner(in),
		out:        bufio.NewWriter(out),
		log:        logger,
		release:    version.Release,
		chartWidth: 76,
	}
}

// SetChartWidth adjusts the get_spectrum_pretty rendering to the operator's
// terminal.
func (s *Shell) SetChartWidth(width int) {
	if width >= 16 {
		s.chartWidth = width
	}
}

// Run prints the banner and serves commands until close or end of input.
// Every command cycle ends with the prompt; protocol clients treat its
// appearance as the only ready signal.
func (s *Shell) Run() error {
	s.printf("wasatch-shell version %s\n", s.release)
	s.log.Info("shell started", zap.String("version", s.release))

	for !s.exiting {
		s.printf(Prompt)
		if err := s.out.Flush(); err != nil {
			return err
		}

		name, ok := s.nextToken()
		if !ok {
			break // end of input: treat like close
		}
		name = strings.ToLower(name)
		s.log.Debug("received command", zap.String("command", name))

		cmd, found := commandsByName[name]
		if !found {
			s.log.Error("unknown command", zap.String("command", name))
			s.printf("ERROR: unknown command %q\n", name)
			continue
		}

		args, ok := s.readArgs(cmd.arity)
		if !ok {
			break
		}
		if cmd.needsOpen && !s.dev.Opened() {
			s.log.Error("command before open", zap.String("command", name))
			s.ack(false)
			continue
		}

		if err := cmd.run(s, args); err != nil {
			s.log.Error("command failed", zap.String("command", name), zap.Error(err))
			s.ack(false)
			s.printf("ERROR: %v\n", err)
		}
	}

	// Never leave the laser firing on the way out.
	if err := s.dev.Close(); err != nil {
		s.log.Error("close failed", zap.Error(err))
	}
	s.log.Info("shell exiting")
	return s.out.Flush()
}

// nextToken pops the next token, reading further input lines as needed.
// Blank lines and comment lines are skipped.
func (s *Shell) nextToken() (string, bool) {
	for len(s.pending) == 0 {
		if !s.in.Scan() {
			return "", false
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.pending = strings.Fields(line)
	}
	tok := s.pending[0]
	s.pending = s.pending[1:]
	return tok, true
}

func (s *Shell) readArgs(arity int) ([]string, bool) {
	args := make([]string, 0, arity)
	for len(args) < arity {
		tok, ok := s.nextToken()
		if !ok {
			return nil, false
		}
		args = append(args, tok)
	}
	return args, true
}

func (s *Shell) printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

// ack emits the protocol's boolean acknowledgment line.
func (s *Shell) ack(ok bool) {
	if ok {
		s.printf("1\n")
	} else {
		s.printf("0\n")
	}
}

// ackErr acknowledges a mutating device call, logging the failure detail.
func (s *Shell) ackErr(err error) {
	if err != nil {
		s.log.Error("device error", zap.Error(err))
	}
	s.ack(err == nil)
}

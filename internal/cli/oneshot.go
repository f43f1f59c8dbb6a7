package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wasatchphotonics/wasatch-shell/internal/expect"
)

type oneShotOptions struct {
	integrationTimeMS int
	scansToAverage    int
	laser             bool
	outFile           string
	shellCommand      string
	logFile           string
}

func newOneShotCommand() *cobra.Command {
	opts := &oneShotOptions{}
	cmd := &cobra.Command{
		Use:   "one-shot",
		Short: "Take a single configured measurement and print it as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.integrationTimeMS, "integration-time-ms", 100, "integration time")
	cmd.Flags().IntVar(&opts.scansToAverage, "scans-to-average", 1, "scans averaged per spectrum")
	cmd.Flags().BoolVar(&opts.laser, "laser", false, "fire the laser during the measurement")
	cmd.Flags().StringVar(&opts.outFile, "out", "one-shot.csv", "CSV destination")
	cmd.Flags().StringVar(&opts.shellCommand, "shell-command", "", "command to spawn instead of this binary's shell")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "one-shot.log", "wire transcript destination")
	return cmd
}

func runOneShot(cmd *cobra.Command, opts *oneShotOptions) error {
	ctx := cmd.Context()

	session, transcript, err := spawnShell(opts.shellCommand, opts.logFile)
	if err != nil {
		return err
	}
	defer transcript.Close()
	defer session.Close()

	if err := awaitBanner(ctx, session); err != nil {
		return err
	}
	if err := openSpectrometer(ctx, session); err != nil {
		return err
	}

	// Configuration failures surface on the next prompt read; values are
	// not individually validated here, matching the thin-client contract.
	for _, line := range []string{
		fmt.Sprintf("set_integration_time_ms %d", opts.integrationTimeMS),
		fmt.Sprintf("set_scans_to_average %d", opts.scansToAverage),
	} {
		if err := roundTrip(ctx, session, line); err != nil {
			return err
		}
	}
	if opts.laser {
		if err := roundTrip(ctx, session, "set_laser_enable on"); err != nil {
			return err
		}
	}

	if err := roundTrip(ctx, session, "get_spectrum_save "+opts.outFile); err != nil {
		return err
	}

	if opts.laser {
		if err := roundTrip(ctx, session, "set_laser_enable off"); err != nil {
			return err
		}
	}
	if err := shutdownShell(ctx, session); err != nil {
		return err
	}

	data, err := os.ReadFile(opts.outFile)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// --- shared client plumbing ---

const (
	shellPrompt       = "wp>"
	shellBannerMarker = "wasatch-shell version"
)

func spawnShell(override, logFile string) (*expect.Session, *os.File, error) {
	name, argv, err := shellCommand(override)
	if err != nil {
		return nil, nil, err
	}
	transcript, err := os.Create(logFile)
	if err != nil {
		return nil, nil, err
	}
	session, err := expect.Spawn(name, argv, expect.WithTranscript(transcript))
	if err != nil {
		transcript.Close()
		return nil, nil, err
	}
	return session, transcript, nil
}

func awaitBanner(ctx context.Context, session *expect.Session) error {
	if err := session.Expect(ctx, shellBannerMarker); err != nil {
		return fmt.Errorf("shell did not start: %w", err)
	}
	return session.Expect(ctx, shellPrompt)
}

func openSpectrometer(ctx context.Context, session *expect.Session) error {
	if err := session.SendLine("open"); err != nil {
		return err
	}
	if err := session.Expect(ctx, "1"); err != nil {
		return fmt.Errorf("no spectrometers found: %w", err)
	}
	return session.Expect(ctx, shellPrompt)
}

func roundTrip(ctx context.Context, session *expect.Session, line string) error {
	if err := session.SendLine(line); err != nil {
		return err
	}
	if err := session.Expect(ctx, shellPrompt); err != nil {
		return fmt.Errorf("command %q: %w", line, err)
	}
	return nil
}

func shutdownShell(ctx context.Context, session *expect.Session) error {
	if err := session.SendLine("close"); err != nil {
		return err
	}
	return session.ExpectEOF(ctx)
}

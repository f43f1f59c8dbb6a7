package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wasatchphotonics/wasatch-shell/internal/config"
	"github.com/wasatchphotonics/wasatch-shell/internal/expect"
	"github.com/wasatchphotonics/wasatch-shell/internal/loadtest"
)

type loadTestOptions struct {
	outerLoop    int
	innerLoop    int
	shellCommand string
	configPath   string
	logFile      string
}

func newLoadTestCommand() *cobra.Command {
	opts := &loadTestOptions{}
	cmd := &cobra.Command{
		Use:   "load-test [outer_loop_count] [inner_loop_count]",
		Short: "Hammer the spectrometer with a repeatable pattern of operations",
		Long: `Hammer the spectrometer with a repeatable command pattern in order to
ferret out underlying communication issues which only emit under duress.
A loop count <= 0 means that loop runs until interrupted.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(cmd, opts, args)
		},
	}
	cmd.Flags().IntVar(&opts.outerLoop, "outer-loop", 5, "outer loop count (<= 0 for unbounded)")
	cmd.Flags().IntVar(&opts.innerLoop, "inner-loop", 10, "inner loop count (<= 0 for unbounded)")
	cmd.Flags().StringVar(&opts.shellCommand, "shell-command", "", "command to spawn instead of this binary's shell")
	cmd.Flags().StringVar(&opts.configPath, "config", config.DefaultPath, "settings file")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "load-test.log", "wire transcript destination")
	return cmd
}

func runLoadTest(cmd *cobra.Command, opts *loadTestOptions, args []string) error {
	plan, err := resolvePlan(opts, args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	name, argv, err := shellCommand(opts.shellCommand)
	if err != nil {
		return err
	}

	transcript, err := os.Create(opts.logFile)
	if err != nil {
		return err
	}
	defer transcript.Close()

	session, err := expect.Spawn(name, argv,
		expect.WithTimeout(cfg.LoadTest.ExpectTimeout()),
		expect.WithTranscript(transcript),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	runner := loadtest.NewRunner(session, cmd.OutOrStdout(), loadtest.Options{
		Plan:              plan,
		SettleDelay:       cfg.LoadTest.SettleDelay(),
		IntegrationTimeMS: cfg.LoadTest.IntegrationTimeMS,
		TECSetpointDegC:   cfg.LoadTest.TECSetpointDegC,
		LaserPowerMW:      cfg.LoadTest.LaserPowerMW,
	})
	return runner.Run(cmd.Context())
}

// resolvePlan folds optional positional bounds over the flag values.
func resolvePlan(opts *loadTestOptions, args []string) (loadtest.Plan, error) {
	plan := loadtest.Plan{Outer: opts.outerLoop, Inner: opts.innerLoop}
	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return loadtest.Plan{}, fmt.Errorf("invalid outer loop count %q", args[0])
		}
		plan.Outer = n
	}
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return loadtest.Plan{}, fmt.Errorf("invalid inner loop count %q", args[1])
		}
		plan.Inner = n
	}
	return plan, nil
}

// shellCommand picks the endpoint to spawn: an explicit override, or this
// binary serving the shell with debug logging.
func shellCommand(override string) (string, []string, error) {
	if override != "" {
		fields := strings.Fields(override)
		if len(fields) == 0 {
			return "", nil, fmt.Errorf("empty --shell-command")
		}
		return fields[0], fields[1:], nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", nil, err
	}
	return exe, []string{"--log-level", "debug", "--log-file", "wasatch-shell.log"}, nil
}

package cli

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wasatchphotonics/wasatch-shell/internal/config"
	"github.com/wasatchphotonics/wasatch-shell/internal/device"
	"github.com/wasatchphotonics/wasatch-shell/internal/logutil"
	"github.com/wasatchphotonics/wasatch-shell/internal/shell"
)

type shellOptions struct {
	configPath string
	logFile    string
	logLevel   string
}

func addShellFlags(cmd *cobra.Command, opts *shellOptions) {
	cmd.Flags().StringVar(&opts.configPath, "config", config.DefaultPath, "settings file")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "wasatch-shell.log", "debug log destination")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// runShell serves the wp> protocol on stdin/stdout until close or EOF.
func runShell(cmd *cobra.Command, opts *shellOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := logutil.NewFileLogger(opts.logFile, opts.logLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	sim, err := newSimulator(cfg.Simulation)
	if err != nil {
		return err
	}

	sh := shell.New(sim, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
	if f, ok := cmd.OutOrStdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			sh.SetChartWidth(width - 2)
		}
	}
	return sh.Run()
}

// newSimulator applies config overrides on top of the bench defaults.
func newSimulator(block config.SimulationBlock) (*device.Simulator, error) {
	eeprom := device.DefaultEEPROM()
	if block.Model != "" {
		eeprom.Model = block.Model
	}
	if block.SerialNumber != "" {
		eeprom.SerialNumber = block.SerialNumber
	}
	if block.Pixels > 0 {
		eeprom.ActivePixelsHoriz = block.Pixels
	}
	if block.ExcitationNM > 0 {
		eeprom.ExcitationNM = block.ExcitationNM
	}
	if len(block.WavelengthCoeffs) > 0 {
		eeprom.WavelengthCoeffs = block.WavelengthCoeffs
	}
	seed := block.Seed
	if seed == 0 {
		seed = int64(os.Getpid())
	}
	return device.NewSimulator(eeprom, seed)
}

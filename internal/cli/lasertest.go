package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wasatchphotonics/wasatch-shell/internal/expect"
)

type laserTestOptions struct {
	passes       int
	delayMS      int
	readings     int
	reverse      bool
	shellCommand string
	logFile      string
}

// hysteresisRamp walks laser power down from full to minimum and back up.
var hysteresisRamp = []int{100, 90, 80, 70, 60, 50, 40, 30, 20, 10, 1, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

func newLaserTestCommand() *cobra.Command {
	opts := &laserTestOptions{}
	cmd := &cobra.Command{
		Use:   "laser-test",
		Short: "Hysteresis test of laser power using the photodiode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaserTest(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.passes, "passes", 2, "number of hysteresis passes")
	cmd.Flags().IntVar(&opts.delayMS, "delay-ms", 1000, "delay between measurements (via integration time)")
	cmd.Flags().IntVar(&opts.readings, "readings", 20, "readings per laser power")
	cmd.Flags().BoolVar(&opts.reverse, "reverse", false, "measure temperature before the photodiode")
	cmd.Flags().StringVar(&opts.shellCommand, "shell-command", "", "command to spawn instead of this binary's shell")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "laser-test.log", "wire transcript destination")
	return cmd
}

func runLaserTest(cmd *cobra.Command, opts *laserTestOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

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
	fmt.Fprintln(out, "Successfully enumerated spectrometer")

	hasLinearity, err := queryFlag(ctx, session, "has_linearity_coeffs")
	if err != nil {
		return err
	}
	if _, err := queryFlag(ctx, session, "has_laser_power_calibration"); err != nil {
		return err
	}

	// Integration time doubles as the pacing delay between readings.
	if err := roundTrip(ctx, session, fmt.Sprintf("set_integration_time_ms %d", opts.delayMS)); err != nil {
		return err
	}
	if err := roundTrip(ctx, session, "set_laser_enable true"); err != nil {
		return err
	}

	for pass := 0; pass < opts.passes; pass++ {
		for _, perc := range hysteresisRamp {
			if err := roundTrip(ctx, session, fmt.Sprintf("set_laser_power_perc %d", perc)); err != nil {
				return err
			}
			for reading := 0; reading < opts.readings; reading++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				// Throwaway acquisition keeps the command pipeline moving
				// while the laser stabilizes.
				if err := roundTrip(ctx, session, "get_spectrum_pretty"); err != nil {
					return err
				}

				pdRaw, pdMW := 0, "NA"
				var tempRaw int
				var tempDegC float64
				if opts.reverse {
					if tempRaw, tempDegC, err = readLaserTemperature(ctx, session); err != nil {
						return err
					}
					if hasLinearity {
						if pdRaw, pdMW, err = readPhotodiode(ctx, session); err != nil {
							return err
						}
					}
				} else {
					if hasLinearity {
						if pdRaw, pdMW, err = readPhotodiode(ctx, session); err != nil {
							return err
						}
					}
					if tempRaw, tempDegC, err = readLaserTemperature(ctx, session); err != nil {
						return err
					}
				}

				fmt.Fprintf(out, "%s reading: pass %d laser_power_perc %3d reading %2d photodiode_raw %4d photodiode_mW %s temp_raw %4d temp_degC %8.2f\n",
					time.Now().Format("2006-01-02 15:04:05.000"),
					pass, perc, reading, pdRaw, pdMW, tempRaw, tempDegC)
			}
		}
	}

	if err := roundTrip(ctx, session, "set_laser_enable false"); err != nil {
		return err
	}
	return shutdownShell(ctx, session)
}

func readLaserTemperature(ctx context.Context, session *expect.Session) (raw int, degC float64, err error) {
	rawText, err := queryValue(ctx, session, "get_laser_temperature_raw")
	if err != nil {
		return 0, 0, err
	}
	raw, err = strconv.Atoi(rawText)
	if err != nil {
		return 0, 0, fmt.Errorf("unparseable laser temperature %q", rawText)
	}

	degCText, err := queryValue(ctx, session, "get_laser_temperature_degc")
	if err != nil {
		return 0, 0, err
	}
	degC, err = strconv.ParseFloat(degCText, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("unparseable laser temperature %q", degCText)
	}
	return raw, degC, nil
}

func readPhotodiode(ctx context.Context, session *expect.Session) (raw int, mw string, err error) {
	rawText, err := queryValue(ctx, session, "get_secondary_adc_raw")
	if err != nil {
		return 0, "", err
	}
	raw, err = strconv.Atoi(rawText)
	if err != nil {
		return 0, "", fmt.Errorf("unparseable photodiode reading %q", rawText)
	}

	mw, err = queryValue(ctx, session, "get_secondary_adc_calibrated")
	if err != nil {
		return 0, "", err
	}
	return raw, mw, nil
}

// queryValue issues a query and returns the last response line before the
// prompt.
func queryValue(ctx context.Context, session *expect.Session, line string) (string, error) {
	if err := roundTrip(ctx, session, line); err != nil {
		return "", err
	}
	text := strings.TrimSpace(session.Before())
	lines := strings.Split(text, "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

func queryFlag(ctx context.Context, session *expect.Session, line string) (bool, error) {
	value, err := queryValue(ctx, session, line)
	if err != nil {
		return false, err
	}
	return value == "1", nil
}

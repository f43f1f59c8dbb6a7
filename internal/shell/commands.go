package shell

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"
)

// command declares one shell verb: its argument count, a help line, and
// whether it requires an opened spectrometer. Handlers receive exactly
// arity tokens.
type command struct {
	name      string
	arity     int
	usage     string
	help      string
	needsOpen bool
	run       func(s *Shell, args []string) error
}

var commandTable = []command{
	{name: "open", help: "enumerate and claim the spectrometer",
		run: (*Shell).cmdOpen},
	{name: "close", help: "release the spectrometer and exit the shell",
		run: (*Shell).cmdClose},
	{name: "help", help: "list supported commands"},
	{name: "version", help: "report the shell version",
		run: (*Shell).cmdVersion},
	{name: "connection_check", help: "report whether the device still responds",
		run: (*Shell).cmdConnectionCheck},

	{name: "get_config_json", needsOpen: true, help: "dump the EEPROM configuration as JSON",
		run: (*Shell).cmdGetConfigJSON},

	{name: "set_integration_time_ms", arity: 1, usage: "<ms>", needsOpen: true,
		help: "set the integration time in milliseconds",
		run:  (*Shell).cmdSetIntegrationTimeMS},
	{name: "get_integration_time_ms", needsOpen: true, help: "report the integration time in milliseconds",
		run: (*Shell).cmdGetIntegrationTimeMS},
	{name: "get_actual_integration_time_us", needsOpen: true, help: "report the measured frame time in microseconds",
		run: (*Shell).cmdGetActualIntegrationTimeUS},
	{name: "get_actual_frames", needsOpen: true, help: "report the number of frames acquired",
		run: (*Shell).cmdGetActualFrames},
	{name: "set_scans_to_average", arity: 1, usage: "<n>", needsOpen: true,
		help: "set the number of scans averaged per spectrum",
		run:  (*Shell).cmdSetScansToAverage},

	{name: "set_detector_tec_setpoint_degc", arity: 1, usage: "<degC>", needsOpen: true,
		help: "set the detector TEC setpoint",
		run:  (*Shell).cmdSetTECSetpoint},
	{name: "get_detector_tec_setpoint_degc", needsOpen: true, help: "report the detector TEC setpoint",
		run: (*Shell).cmdGetTECSetpoint},
	{name: "set_tec_enable", arity: 1, usage: "<bool>", needsOpen: true,
		help: "enable or disable the detector TEC",
		run:  (*Shell).cmdSetTECEnable},
	{name: "get_tec_enabled", needsOpen: true, help: "report whether the detector TEC is enabled",
		run: (*Shell).cmdGetTECEnabled},
	{name: "get_detector_temperature_degc", needsOpen: true, help: "read the detector temperature in degC",
		run: (*Shell).cmdGetDetectorTempDegC},
	{name: "get_detector_temperature_raw", needsOpen: true, help: "read the detector thermistor ADC count",
		run: (*Shell).cmdGetDetectorTempRaw},

	{name: "set_laser_enable", arity: 1, usage: "<bool>", needsOpen: true,
		help: "fire or douse the laser",
		run:  (*Shell).cmdSetLaserEnable},
	{name: "get_laser_enabled", needsOpen: true, help: "report whether the laser is firing",
		run: (*Shell).cmdGetLaserEnabled},
	{name: "get_laser_mod_enabled", needsOpen: true, help: "report whether laser modulation is enabled",
		run: (*Shell).cmdGetLaserModEnabled},
	{name: "set_laser_power_mw", arity: 1, usage: "<mW>", needsOpen: true,
		help: "set laser power in milliwatts (requires calibration)",
		run:  (*Shell).cmdSetLaserPowerMW},
	{name: "set_laser_power_perc", arity: 1, usage: "<perc>", needsOpen: true,
		help: "set laser power as a percentage duty cycle",
		run:  (*Shell).cmdSetLaserPowerPerc},
	{name: "get_laser_mod_duration", needsOpen: true, help: "report the laser modulation duration in us",
		run: (*Shell).cmdGetLaserModDuration},
	{name: "get_laser_mod_period", needsOpen: true, help: "report the laser modulation period in us",
		run: (*Shell).cmdGetLaserModPeriod},
	{name: "get_laser_mod_pulse_delay", needsOpen: true, help: "report the laser modulation pulse delay in us",
		run: (*Shell).cmdGetLaserModPulseDelay},
	{name: "get_laser_mod_pulse_width", needsOpen: true, help: "report the laser modulation pulse width in us",
		run: (*Shell).cmdGetLaserModPulseWidth},
	{name: "get_laser_temperature_degc", needsOpen: true, help: "read the laser temperature in degC",
		run: (*Shell).cmdGetLaserTempDegC},
	{name: "get_laser_temperature_raw", needsOpen: true, help: "read the laser thermistor ADC count",
		run: (*Shell).cmdGetLaserTempRaw},
	{name: "get_laser_power_ramping_enabled", needsOpen: true, help: "report whether laser power ramping is enabled",
		run: (*Shell).cmdGetLaserPowerRamping},
	{name: "get_external_trigger_output", needsOpen: true, help: "report the external trigger output setting",
		run: (*Shell).cmdGetExternalTriggerOutput},
	{name: "get_vr_num_frames", needsOpen: true, help: "report frames per trigger event",
		run: (*Shell).cmdGetVRNumFrames},

	{name: "get_spectrum", needsOpen: true, help: "acquire a spectrum, one intensity per line",
		run: (*Shell).cmdGetSpectrum},
	{name: "get_spectrum_pretty", needsOpen: true, help: "acquire a spectrum and render it as an ASCII chart",
		run: (*Shell).cmdGetSpectrumPretty},
	{name: "get_spectrum_save", arity: 1, usage: "<path>", needsOpen: true,
		help: "acquire a spectrum and save it as CSV",
		run:  (*Shell).cmdGetSpectrumSave},

	{name: "get_selected_adc", needsOpen: true, help: "report the selected ADC index",
		run: (*Shell).cmdGetSelectedADC},
	{name: "set_selected_adc", arity: 1, usage: "<0|1>", needsOpen: true,
		help: "select the primary (0) or secondary (1) ADC",
		run:  (*Shell).cmdSetSelectedADC},
	{name: "get_secondary_adc_raw", needsOpen: true, help: "read the photodiode ADC count",
		run: (*Shell).cmdGetSecondaryADCRaw},
	{name: "get_secondary_adc_calibrated", needsOpen: true, help: "read the photodiode in calibrated mW",
		run: (*Shell).cmdGetSecondaryADCCalibrated},
	{name: "has_linearity_coeffs", needsOpen: true, help: "report whether photodiode linearity coefficients exist",
		run: (*Shell).cmdHasLinearityCoeffs},
	{name: "has_laser_power_calibration", needsOpen: true, help: "report whether a laser power calibration exists",
		run: (*Shell).cmdHasLaserPowerCalibration},
}

var commandsByName = func() map[string]*command {
	m := make(map[string]*command, len(commandTable)+2)
	for i := range commandTable {
		m[commandTable[i].name] = &commandTable[i]
	}
	// historical aliases for close
	m["quit"] = m["close"]
	m["exit"] = m["close"]
	return m
}()

// cmdHelp walks commandTable, so wiring it inside the table literal would be
// an initialization cycle.
func init() {
	commandsByName["help"].run = (*Shell).cmdHelp
}

// --- lifecycle ---

func (s *Shell) cmdOpen(args []string) error {
	if err := s.dev.Open(); err != nil {
		s.log.Error("open failed", zap.Error(err))
		s.ack(false)
		return nil
	}
	s.log.Info("spectrometer opened",
		zap.String("serial", s.dev.EEPROM().SerialNumber))
	s.ack(true)
	return nil
}

func (s *Shell) cmdClose(args []string) error {
	if err := s.dev.Close(); err != nil {
		return err
	}
	s.exiting = true
	return nil
}

func (s *Shell) cmdVersion(args []string) error {
	s.printf("wasatch-shell version %s\n", s.release)
	return nil
}

func (s *Shell) cmdConnectionCheck(args []string) error {
	s.ack(s.dev.ConnectionCheck())
	return nil
}

func (s *Shell) cmdHelp(args []string) error {
	nameWidth := 0
	for _, c := range commandTable {
		w := runewidth.StringWidth(c.name + " " + c.usage)
		if w > nameWidth {
			nameWidth = w
		}
	}
	s.printf("wasatch-shell version %s\n\nSupported commands:\n", s.release)
	for _, c := range commandTable {
		label := c.name
		if c.usage != "" {
			label += " " + c.usage
		}
		s.printf("  %s  %s\n", runewidth.FillRight(label, nameWidth), c.help)
	}
	s.printf("\nParameters may be given on the command line or on following lines.\n")
	return nil
}

// --- configuration ---

func (s *Shell) cmdGetConfigJSON(args []string) error {
	doc, err := s.dev.EEPROM().ConfigJSON()
	if err != nil {
		return err
	}
	s.printf("%s\n", doc)
	return nil
}

// --- acquisition ---

func (s *Shell) cmdSetIntegrationTimeMS(args []string) error {
	ms, err := parseInt(args[0])
	if err != nil {
		return err
	}
	s.ackErr(s.dev.SetIntegrationTimeMS(ms))
	return nil
}

func (s *Shell) cmdGetIntegrationTimeMS(args []string) error {
	s.printf("%d\n", s.dev.IntegrationTimeMS())
	return nil
}

func (s *Shell) cmdGetActualIntegrationTimeUS(args []string) error {
	s.printf("%d\n", s.dev.ActualIntegrationTimeUS())
	return nil
}

func (s *Shell) cmdGetActualFrames(args []string) error {
	s.printf("%d\n", s.dev.ActualFrames())
	return nil
}

func (s *Shell) cmdSetScansToAverage(args []string) error {
	n, err := parseInt(args[0])
	if err != nil {
		return err
	}
	s.ackErr(s.dev.SetScansToAverage(n))
	return nil
}

// --- detector TEC ---

func (s *Shell) cmdSetTECSetpoint(args []string) error {
	degC, err := parseFloat(args[0])
	if err != nil {
		return err
	}
	s.ackErr(s.dev.SetTECSetpointDegC(degC))
	return nil
}

func (s *Shell) cmdGetTECSetpoint(args []string) error {
	s.printf("%.2f\n", s.dev.TECSetpointDegC())
	return nil
}

func (s *Shell) cmdSetTECEnable(args []string) error {
	enable, err := ParseBool(args[0])
	if err != nil {
		return err
	}
	s.ackErr(s.dev.SetTECEnable(enable))
	return nil
}

func (s *Shell) cmdGetTECEnabled(args []string) error {
	s.ack(s.dev.TECEnabled())
	return nil
}

func (s *Shell) cmdGetDetectorTempDegC(args []string) error {
	s.printf("%.2f\n", s.dev.DetectorTemperatureDegC())
	return nil
}

func (s *Shell) cmdGetDetectorTempRaw(args []string) error {
	s.printf("%d\n", s.dev.DetectorTemperatureRaw())
	return nil
}

// --- laser ---

func (s *Shell) cmdSetLaserEnable(args []string) error {
	enable, err := ParseBool(args[0])
	if err != nil {
		return err
	}
	s.ackErr(s.dev.SetLaserEnable(enable))
	return nil
}

func (s *Shell) cmdGetLaserEnabled(args []string) error {
	s.ack(s.dev.LaserEnabled())
	return nil
}

func (s *Shell) cmdGetLaserModEnabled(args []string) error {
	s.ack(s.dev.LaserModEnabled())
	return nil
}

func (s *Shell) cmdSetLaserPowerMW(args []string) error {
	mw, err := parseFloat(args[0])
	if err != nil {
		return err
	}
	s.ackErr(s.dev.SetLaserPowerMW(mw))
	return nil
}

func (s *Shell) cmdSetLaserPowerPerc(args []string) error {
	perc, err := parseFloat(args[0])
	if err != nil {
		return err
	}
	s.ackErr(s.dev.SetLaserPowerPerc(perc))
	return nil
}

func (s *Shell) cmdGetLaserModDuration(args []string) error {
	s.printf("%d\n", s.dev.LaserModDurationUS())
	return nil
}

func (s *Shell) cmdGetLaserModPeriod(args []string) error {
	s.printf("%d\n", s.dev.LaserModPeriodUS())
	return nil
}

func (s *Shell) cmdGetLaserModPulseDelay(args []string) error {
	s.printf("%d\n", s.dev.LaserModPulseDelayUS())
	return nil
}

func (s *Shell) cmdGetLaserModPulseWidth(args []string) error {
	s.printf("%d\n", s.dev.LaserModPulseWidthUS())
	return nil
}

func (s *Shell) cmdGetLaserTempDegC(args []string) error {
	s.printf("%.2f\n", s.dev.LaserTemperatureDegC())
	return nil
}

func (s *Shell) cmdGetLaserTempRaw(args []string) error {
	s.printf("%d\n", s.dev.LaserTemperatureRaw())
	return nil
}

func (s *Shell) cmdGetLaserPowerRamping(args []string) error {
	s.ack(s.dev.LaserPowerRampingEnabled())
	return nil
}

func (s *Shell) cmdGetExternalTriggerOutput(args []string) error {
	s.printf("%d\n", s.dev.ExternalTriggerOutput())
	return nil
}

func (s *Shell) cmdGetVRNumFrames(args []string) error {
	s.printf("%d\n", s.dev.VRNumFrames())
	return nil
}

// --- spectra ---

func (s *Shell) cmdGetSpectrum(args []string) error {
	spectrum, err := s.dev.Spectrum()
	if err != nil {
		return err
	}
	for _, counts := range spectrum {
		s.printf("%d\n", int(counts))
	}
	return nil
}

func (s *Shell) cmdGetSpectrumPretty(args []string) error {
	spectrum, err := s.dev.Spectrum()
	if err != nil {
		return err
	}
	s.printf("%s", renderSpectrum(spectrum, s.chartWidth, 16))
	return nil
}

func (s *Shell) cmdGetSpectrumSave(args []string) error {
	path := args[0]
	spectrum, err := s.dev.Spectrum()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	eeprom := s.dev.EEPROM()
	fmt.Fprintln(f, "pixel,wavelength,intensity")
	for i, counts := range spectrum {
		fmt.Fprintf(f, "%d,%.2f,%d\n", i, eeprom.WavelengthAt(i), int(counts))
	}
	s.log.Info("spectrum saved", zap.String("path", path))
	s.ack(true)
	return nil
}

// renderSpectrum downsamples a spectrum into width buckets (keeping the
// bucket maximum) and draws a height-row chart, one '*' column per bucket.
func renderSpectrum(spectrum []float64, width, height int) string {
	if len(spectrum) < width {
		width = len(spectrum)
	}
	buckets := make([]float64, width)
	for i, v := range spectrum {
		b := i * width / len(spectrum)
		if v > buckets[b] {
			buckets[b] = v
		}
	}
	min, max := buckets[0], buckets[0]
	for _, v := range buckets {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	span := max - min
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	for row := height; row >= 1; row-- {
		threshold := min + span*float64(row)/float64(height)
		for _, v := range buckets {
			if v >= threshold {
				sb.WriteByte('*')
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "min %d max %d\n", int(min), int(max))
	return sb.String()
}

// --- ADC / photodiode ---

func (s *Shell) cmdGetSelectedADC(args []string) error {
	s.printf("%d\n", s.dev.SelectedADC())
	return nil
}

func (s *Shell) cmdSetSelectedADC(args []string) error {
	n, err := parseInt(args[0])
	if err != nil {
		return err
	}
	s.ackErr(s.dev.SelectADC(n))
	return nil
}

func (s *Shell) cmdGetSecondaryADCRaw(args []string) error {
	s.printf("%d\n", s.dev.SecondaryADCRaw())
	return nil
}

func (s *Shell) cmdGetSecondaryADCCalibrated(args []string) error {
	mw, ok := s.dev.SecondaryADCCalibrated()
	if !ok {
		s.printf("NA\n")
		return nil
	}
	s.printf("%.2f\n", mw)
	return nil
}

func (s *Shell) cmdHasLinearityCoeffs(args []string) error {
	s.ack(s.dev.EEPROM().HasLinearityCoeffs())
	return nil
}

func (s *Shell) cmdHasLaserPowerCalibration(args []string) error {
	s.ack(s.dev.EEPROM().HasLaserPowerCalibration())
	return nil
}

// Package device provides the spectrometer backend the shell dispatches
// against. Only a simulated implementation ships here; physical transports
// live behind the same surface in the hardware driver.
package device

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	// ErrNotOpen indicates a command arrived before a successful open.
	ErrNotOpen = errors.New("spectrometer not open")
	// ErrNotFound indicates enumeration found no spectrometer.
	ErrNotFound = errors.New("no spectrometers found")
)

const ambientDegC = 20.5

// Simulator models a bench spectrometer well enough to exercise the shell
// protocol end to end: settable acquisition and thermal state, synthetic
// spectra, and the ADC-selection side effects of the real firmware.
type Simulator struct {
	eeprom EEPROM
	rng    *rand.Rand

	opened bool

	integrationTimeMS int
	scansToAverage    int
	frames            int

	tecEnabled      bool
	tecSetpointDegC float64

	laserEnabled    bool
	laserModEnabled bool
	laserPowerPerc  float64
	modPeriodUS     int
	modWidthUS      int
	modDelayUS      int
	modDurationUS   int

	selectedADC int

	// FailOpen forces enumeration failure, as if no unit were attached.
	FailOpen bool
	// Fail maps a method name (e.g. "Spectrum") to an injected error.
	Fail map[string]error
}

// NewSimulator builds a simulator from a calibration page. A zero seed is
// honored as-is so tests stay deterministic.
func NewSimulator(eeprom EEPROM, seed int64) (*Simulator, error) {
	if err := eeprom.validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		eeprom:            eeprom,
		rng:               rand.New(rand.NewSource(seed)),
		integrationTimeMS: 10,
		scansToAverage:    1,
		tecSetpointDegC:   15,
	}, nil
}

func (s *Simulator) injected(method string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail[method]
}

// Open claims the simulated unit. Idempotent opens are rejected the way a
// busy USB claim would be.
func (s *Simulator) Open() error {
	if s.FailOpen {
		return ErrNotFound
	}
	if err := s.injected("Open"); err != nil {
		return err
	}
	if s.opened {
		return errors.New("spectrometer already open")
	}
	s.opened = true
	return nil
}

// Close releases the unit, dousing the laser first.
func (s *Simulator) Close() error {
	if !s.opened {
		return nil
	}
	s.laserEnabled = false
	s.laserModEnabled = false
	s.opened = false
	return nil
}

func (s *Simulator) Opened() bool { return s.opened }

// EEPROM exposes the calibration page for config dumps and axis generation.
func (s *Simulator) EEPROM() EEPROM { return s.eeprom }

func (s *Simulator) ConnectionCheck() bool {
	return s.opened && s.injected("ConnectionCheck") == nil
}

// --- acquisition ---

func (s *Simulator) SetIntegrationTimeMS(ms int) error {
	if !s.opened {
		return ErrNotOpen
	}
	if ms < s.eeprom.MinIntegrationMS || ms > s.eeprom.MaxIntegrationMS {
		return fmt.Errorf("integration time %d ms outside range [%d, %d]",
			ms, s.eeprom.MinIntegrationMS, s.eeprom.MaxIntegrationMS)
	}
	s.integrationTimeMS = ms
	return nil
}

func (s *Simulator) IntegrationTimeMS() int { return s.integrationTimeMS }

// ActualIntegrationTimeUS reports the FPGA-measured frame time, which runs a
// fixed readout overhead past the programmed value.
func (s *Simulator) ActualIntegrationTimeUS() int {
	return s.integrationTimeMS*1000 + 137
}

func (s *Simulator) ActualFrames() int { return s.frames }

func (s *Simulator) SetScansToAverage(n int) error {
	if !s.opened {
		return ErrNotOpen
	}
	if n < 1 {
		return fmt.Errorf("scans to average must be at least 1 (got %d)", n)
	}
	s.scansToAverage = n
	return nil
}

func (s *Simulator) ScansToAverage() int { return s.scansToAverage }

// Spectrum acquires one (averaged) frame of synthetic counts: a dark
// baseline, shot noise, and a few Raman-ish peaks scaled by integration
// time and laser power.
func (s *Simulator) Spectrum() ([]float64, error) {
	if !s.opened {
		return nil, ErrNotOpen
	}
	if err := s.injected("Spectrum"); err != nil {
		return nil, err
	}

	pixels := s.eeprom.ActivePixelsHoriz
	sum := make([]float64, pixels)
	for scan := 0; scan < s.scansToAverage; scan++ {
		s.frames++
		for i := 0; i < pixels; i++ {
			sum[i] += s.samplePixel(i)
		}
	}
	for i := range sum {
		sum[i] = math.Round(sum[i] / float64(s.scansToAverage))
	}
	return sum, nil
}

func (s *Simulator) samplePixel(i int) float64 {
	gain := float64(s.integrationTimeMS) / 100.0
	counts := 840.0 + s.rng.Float64()*12.0
	if s.laserEnabled {
		power := s.laserPowerPerc / 100.0
		for _, peak := range []struct {
			center, width, height float64
		}{
			{172, 9, 9400},
			{405, 14, 21000},
			{738, 6, 5200},
		} {
			d := float64(i) - peak.center
			counts += peak.height * power * gain * math.Exp(-d*d/(2*peak.width*peak.width))
		}
	}
	if counts > 65535 {
		counts = 65535
	}
	return counts
}

// --- detector TEC ---

func (s *Simulator) SetTECSetpointDegC(degC float64) error {
	if !s.opened {
		return ErrNotOpen
	}
	s.tecSetpointDegC = degC
	return nil
}

func (s *Simulator) TECSetpointDegC() float64 { return s.tecSetpointDegC }

func (s *Simulator) SetTECEnable(enable bool) error {
	if !s.opened {
		return ErrNotOpen
	}
	if !s.eeprom.HasCooling {
		return errors.New("unit has no detector TEC")
	}
	s.tecEnabled = enable
	return nil
}

func (s *Simulator) TECEnabled() bool { return s.tecEnabled }

// DetectorTemperatureDegC converges on the setpoint when the TEC is driven,
// otherwise hovers near ambient.
func (s *Simulator) DetectorTemperatureDegC() float64 {
	jitter := (s.rng.Float64() - 0.5) * 0.3
	if s.tecEnabled {
		return s.tecSetpointDegC + jitter
	}
	return ambientDegC + jitter
}

// DetectorTemperatureRaw reports the thermistor as a 12-bit ADC count.
func (s *Simulator) DetectorTemperatureRaw() int {
	raw := int((s.DetectorTemperatureDegC() + 50.0) * 40.0)
	return raw & 0xfff
}

// --- laser ---

// SetLaserEnable fires or douses the laser. Firing first enables laser
// modulation, matching firmware ordering.
func (s *Simulator) SetLaserEnable(enable bool) error {
	if !s.opened {
		return ErrNotOpen
	}
	if !s.eeprom.HasLaser {
		return errors.New("unit has no laser")
	}
	if err := s.injected("SetLaserEnable"); err != nil {
		return err
	}
	if enable {
		s.laserModEnabled = true
	}
	s.laserEnabled = enable
	return nil
}

func (s *Simulator) LaserEnabled() bool    { return s.laserEnabled }
func (s *Simulator) LaserModEnabled() bool { return s.laserModEnabled }

// SetLaserPowerPerc programs laser power as modulation duty cycle over a
// fixed 100 us period.
func (s *Simulator) SetLaserPowerPerc(perc float64) error {
	if !s.opened {
		return ErrNotOpen
	}
	if perc < 0 || perc > 100 {
		return fmt.Errorf("laser power %.2f%% outside range [0, 100]", perc)
	}
	s.laserPowerPerc = perc
	s.modPeriodUS = 100
	s.modWidthUS = int(math.Round(perc))
	return nil
}

// SetLaserPowerMW maps milliwatts through the laser power calibration, then
// programs the equivalent duty cycle.
func (s *Simulator) SetLaserPowerMW(mw float64) error {
	if !s.opened {
		return ErrNotOpen
	}
	if !s.eeprom.HasLaserPowerCalibration() {
		return errors.New("no laser power calibration on unit")
	}
	perc := polyEval(s.eeprom.LaserPowerCoeffs, mw)
	if perc < 1 {
		perc = 1
	}
	if perc > 100 {
		perc = 100
	}
	return s.SetLaserPowerPerc(perc)
}

func (s *Simulator) LaserPowerPerc() float64   { return s.laserPowerPerc }
func (s *Simulator) LaserModPeriodUS() int     { return s.modPeriodUS }
func (s *Simulator) LaserModPulseWidthUS() int { return s.modWidthUS }
func (s *Simulator) LaserModPulseDelayUS() int { return s.modDelayUS }
func (s *Simulator) LaserModDurationUS() int   { return s.modDurationUS }

func (s *Simulator) LaserPowerRampingEnabled() bool { return false }
func (s *Simulator) ExternalTriggerOutput() int     { return 0 }
func (s *Simulator) VRNumFrames() int               { return 0 }

// LaserTemperatureRaw selects the primary ADC (firmware side effect) and
// reads the laser thermistor.
func (s *Simulator) LaserTemperatureRaw() int {
	s.selectedADC = 0
	degC := ambientDegC
	if s.laserEnabled {
		degC = 29.0 + s.laserPowerPerc*0.04
	}
	degC += (s.rng.Float64() - 0.5) * 0.2
	raw := int(degC * 52.0)
	return raw & 0xfff
}

func (s *Simulator) LaserTemperatureDegC() float64 {
	raw := s.LaserTemperatureRaw()
	return float64(raw) / 52.0
}

// --- ADC selection and photodiode ---

func (s *Simulator) SelectADC(n int) error {
	if !s.opened {
		return ErrNotOpen
	}
	if n != 0 && n != 1 {
		return fmt.Errorf("invalid ADC index %d", n)
	}
	s.selectedADC = n
	return nil
}

func (s *Simulator) SelectedADC() int { return s.selectedADC }

// SecondaryADCRaw selects the secondary ADC (firmware side effect) and reads
// the photodiode, which tracks emitted laser power.
func (s *Simulator) SecondaryADCRaw() int {
	s.selectedADC = 1
	if !s.laserEnabled {
		return int(s.rng.Float64() * 4)
	}
	raw := int(s.laserPowerPerc*38.0 + s.rng.Float64()*10.0)
	return raw & 0xfff
}

// SecondaryADCCalibrated maps the photodiode through the linearity
// calibration. The second return is false when the unit lacks one.
func (s *Simulator) SecondaryADCCalibrated() (float64, bool) {
	raw := s.SecondaryADCRaw()
	if !s.eeprom.HasLinearityCoeffs() {
		return 0, false
	}
	return polyEval(s.eeprom.LinearityCoeffs, float64(raw)), true
}

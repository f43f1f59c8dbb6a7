package device

import (
	"errors"
	"strings"
	"testing"
)

func newOpenSimulator(t *testing.T) *Simulator {
	t.Helper()
	sim, err := NewSimulator(DefaultEEPROM(), 7)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	if err := sim.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return sim
}

func TestOpenFailsWhenAbsent(t *testing.T) {
	sim, err := NewSimulator(DefaultEEPROM(), 7)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	sim.FailOpen = true
	if err := sim.Open(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open = %v, want ErrNotFound", err)
	}
}

func TestCommandsRequireOpen(t *testing.T) {
	sim, err := NewSimulator(DefaultEEPROM(), 7)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	if err := sim.SetIntegrationTimeMS(100); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("SetIntegrationTimeMS = %v, want ErrNotOpen", err)
	}
	if _, err := sim.Spectrum(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Spectrum = %v, want ErrNotOpen", err)
	}
}

func TestIntegrationTimeRange(t *testing.T) {
	sim := newOpenSimulator(t)
	if err := sim.SetIntegrationTimeMS(0); err == nil {
		t.Fatal("integration time 0 should be rejected")
	}
	if err := sim.SetIntegrationTimeMS(100); err != nil {
		t.Fatalf("SetIntegrationTimeMS(100): %v", err)
	}
	if got := sim.IntegrationTimeMS(); got != 100 {
		t.Fatalf("IntegrationTimeMS = %d, want 100", got)
	}
	if got := sim.ActualIntegrationTimeUS(); got <= 100000 {
		t.Fatalf("ActualIntegrationTimeUS = %d, want > 100000", got)
	}
}

func TestTECPullsDetectorTemperature(t *testing.T) {
	sim := newOpenSimulator(t)
	if err := sim.SetTECSetpointDegC(10); err != nil {
		t.Fatalf("SetTECSetpointDegC: %v", err)
	}
	if err := sim.SetTECEnable(true); err != nil {
		t.Fatalf("SetTECEnable: %v", err)
	}
	degC := sim.DetectorTemperatureDegC()
	if degC < 9 || degC > 11 {
		t.Fatalf("cooled detector at %.2f degC, want near setpoint 10", degC)
	}
	if err := sim.SetTECEnable(false); err != nil {
		t.Fatalf("SetTECEnable(false): %v", err)
	}
	degC = sim.DetectorTemperatureDegC()
	if degC < 19 || degC > 22 {
		t.Fatalf("uncooled detector at %.2f degC, want near ambient", degC)
	}
}

func TestLaserEnableAlsoEnablesModulation(t *testing.T) {
	sim := newOpenSimulator(t)
	if sim.LaserModEnabled() {
		t.Fatal("modulation should start disabled")
	}
	if err := sim.SetLaserEnable(true); err != nil {
		t.Fatalf("SetLaserEnable: %v", err)
	}
	if !sim.LaserEnabled() || !sim.LaserModEnabled() {
		t.Fatal("firing the laser should enable modulation first")
	}
}

func TestLaserPowerMWProgramsModulation(t *testing.T) {
	sim := newOpenSimulator(t)
	if err := sim.SetLaserPowerMW(70); err != nil {
		t.Fatalf("SetLaserPowerMW: %v", err)
	}
	if got := sim.LaserModPeriodUS(); got != 100 {
		t.Fatalf("LaserModPeriodUS = %d, want 100", got)
	}
	if width := sim.LaserModPulseWidthUS(); width < 1 || width > 100 {
		t.Fatalf("LaserModPulseWidthUS = %d, want within [1, 100]", width)
	}
}

func TestLaserPowerMWRequiresCalibration(t *testing.T) {
	eeprom := DefaultEEPROM()
	eeprom.LaserPowerCoeffs = nil
	sim, err := NewSimulator(eeprom, 7)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	if err := sim.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := sim.SetLaserPowerMW(70); err == nil {
		t.Fatal("SetLaserPowerMW should fail without a calibration")
	}
	if err := sim.SetLaserPowerPerc(50); err != nil {
		t.Fatalf("SetLaserPowerPerc should not need a calibration: %v", err)
	}
}

func TestADCSelectionSideEffects(t *testing.T) {
	sim := newOpenSimulator(t)
	sim.SecondaryADCRaw()
	if got := sim.SelectedADC(); got != 1 {
		t.Fatalf("SelectedADC after photodiode read = %d, want 1", got)
	}
	sim.LaserTemperatureRaw()
	if got := sim.SelectedADC(); got != 0 {
		t.Fatalf("SelectedADC after laser temperature read = %d, want 0", got)
	}
}

func TestSpectrumShapeAndAveraging(t *testing.T) {
	sim := newOpenSimulator(t)
	spectrum, err := sim.Spectrum()
	if err != nil {
		t.Fatalf("Spectrum: %v", err)
	}
	if len(spectrum) != DefaultEEPROM().ActivePixelsHoriz {
		t.Fatalf("spectrum length %d, want %d", len(spectrum), DefaultEEPROM().ActivePixelsHoriz)
	}
	if got := sim.ActualFrames(); got != 1 {
		t.Fatalf("ActualFrames = %d, want 1", got)
	}

	if err := sim.SetScansToAverage(4); err != nil {
		t.Fatalf("SetScansToAverage: %v", err)
	}
	if _, err := sim.Spectrum(); err != nil {
		t.Fatalf("Spectrum: %v", err)
	}
	if got := sim.ActualFrames(); got != 5 {
		t.Fatalf("ActualFrames after averaging = %d, want 5", got)
	}
}

func TestLaserRaisesSpectrumPeaks(t *testing.T) {
	sim := newOpenSimulator(t)
	dark, err := sim.Spectrum()
	if err != nil {
		t.Fatalf("Spectrum: %v", err)
	}
	if err := sim.SetLaserEnable(true); err != nil {
		t.Fatalf("SetLaserEnable: %v", err)
	}
	if err := sim.SetLaserPowerPerc(100); err != nil {
		t.Fatalf("SetLaserPowerPerc: %v", err)
	}
	lit, err := sim.Spectrum()
	if err != nil {
		t.Fatalf("Spectrum: %v", err)
	}
	if lit[405] <= dark[405]+1000 {
		t.Fatalf("expected a peak at pixel 405: dark %.0f lit %.0f", dark[405], lit[405])
	}
}

func TestInjectedFailure(t *testing.T) {
	sim := newOpenSimulator(t)
	sim.Fail = map[string]error{"Spectrum": errors.New("usb stall")}
	if _, err := sim.Spectrum(); err == nil || !strings.Contains(err.Error(), "usb stall") {
		t.Fatalf("Spectrum = %v, want injected stall", err)
	}
}

func TestCloseDousesLaser(t *testing.T) {
	sim := newOpenSimulator(t)
	if err := sim.SetLaserEnable(true); err != nil {
		t.Fatalf("SetLaserEnable: %v", err)
	}
	if err := sim.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if sim.LaserEnabled() {
		t.Fatal("laser still firing after close")
	}
}

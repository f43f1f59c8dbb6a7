package device

import (
	"encoding/json"
	"fmt"
)

// EEPROM mirrors the calibration page a physical spectrometer carries in
// persistent storage. Coefficient arrays are ordered lowest power first.
type EEPROM struct {
	Model              string    `json:"model"`
	SerialNumber       string    `json:"serial_number"`
	BaudRate           int       `json:"baud_rate"`
	HasCooling         bool      `json:"has_cooling"`
	HasLaser           bool      `json:"has_laser"`
	ExcitationNM       float64   `json:"excitation_nm"`
	ActivePixelsHoriz  int       `json:"active_pixels_horizontal"`
	ActivePixelsVert   int       `json:"active_pixels_vertical"`
	MinIntegrationMS   int       `json:"min_integration_time_ms"`
	MaxIntegrationMS   int       `json:"max_integration_time_ms"`
	DetectorName       string    `json:"detector_name"`
	WavelengthCoeffs   []float64 `json:"wavelength_coeffs"`
	DegCToDACCoeffs    []float64 `json:"degC_to_dac_coeffs"`
	ADCToDegCCoeffs    []float64 `json:"adc_to_degC_coeffs"`
	LinearityCoeffs    []float64 `json:"linearity_coeffs"`
	LaserPowerCoeffs   []float64 `json:"laser_power_coeffs"`
	TECSetpointMinDegC float64   `json:"startup_temp_degc"`
}

// DefaultEEPROM returns the calibration page of the simulated bench unit.
func DefaultEEPROM() EEPROM {
	return EEPROM{
		Model:              "WP-785",
		SerialNumber:       "WP-00887",
		BaudRate:           300,
		HasCooling:         true,
		HasLaser:           true,
		ExcitationNM:       785,
		ActivePixelsHoriz:  1024,
		ActivePixelsVert:   1,
		MinIntegrationMS:   1,
		MaxIntegrationMS:   60000,
		DetectorName:       "S11511",
		WavelengthCoeffs:   []float64{802.7952, 0.1543, -2.29e-5, 3.01e-9},
		DegCToDACCoeffs:    []float64{2700.0, -43.0, 0.1},
		ADCToDegCCoeffs:    []float64{66.0, -0.00267, 1.1e-8},
		LinearityCoeffs:    []float64{1.35e-2, 5.4e-4, -1.6e-8},
		LaserPowerCoeffs:   []float64{0.82, 0.69, -2.0e-4, 1.1e-8},
		TECSetpointMinDegC: 10,
	}
}

// WavelengthAt evaluates the wavelength calibration polynomial for a pixel.
func (e EEPROM) WavelengthAt(pixel int) float64 {
	return polyEval(e.WavelengthCoeffs, float64(pixel))
}

// HasLinearityCoeffs reports whether the photodiode can report calibrated mW.
func (e EEPROM) HasLinearityCoeffs() bool {
	return hasNonZero(e.LinearityCoeffs)
}

// HasLaserPowerCalibration reports whether laser power can be set in mW.
func (e EEPROM) HasLaserPowerCalibration() bool {
	return hasNonZero(e.LaserPowerCoeffs)
}

func (e EEPROM) validate() error {
	if e.ActivePixelsHoriz <= 0 {
		return fmt.Errorf("eeprom: active_pixels_horizontal must be positive (got %d)", e.ActivePixelsHoriz)
	}
	if len(e.WavelengthCoeffs) == 0 {
		return fmt.Errorf("eeprom: wavelength_coeffs must not be empty")
	}
	return nil
}

// ConfigJSON renders the page the way `get_config_json` reports it.
func (e EEPROM) ConfigJSON() (string, error) {
	data, err := json.MarshalIndent(e, "", "    ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func polyEval(coeffs []float64, x float64) float64 {
	result := 0.0
	pow := 1.0
	for _, c := range coeffs {
		result += c * pow
		pow *= x
	}
	return result
}

func hasNonZero(coeffs []float64) bool {
	for _, c := range coeffs {
		if c != 0 {
			return true
		}
	}
	return false
}

// Package config loads the optional wasatch-shell.toml settings file, which
// tunes the simulated bench unit and the load-test driver.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultPath is checked in the working directory when --config is not given.
const DefaultPath = "wasatch-shell.toml"

// Config captures the user editable settings.
type Config struct {
	Simulation SimulationBlock `toml:"simulation"`
	LoadTest   LoadTestBlock   `toml:"loadtest"`
}

// SimulationBlock overrides the simulated unit's identity and calibration.
// Zero values keep the built-in bench defaults.
type SimulationBlock struct {
	Model            string    `toml:"model"`
	SerialNumber     string    `toml:"serial_number"`
	Pixels           int       `toml:"pixels"`
	ExcitationNM     float64   `toml:"excitation_nm"`
	WavelengthCoeffs []float64 `toml:"wavelength_coeffs"`
	Seed             int64     `toml:"seed"`
}

// LoadTestBlock governs the load-test driver's fixed setup values and
// pacing.
type LoadTestBlock struct {
	SettleDelayMS     int     `toml:"settle_delay_ms"`
	ExpectTimeoutMS   int     `toml:"expect_timeout_ms"`
	IntegrationTimeMS int     `toml:"integration_time_ms"`
	TECSetpointDegC   int     `toml:"tec_setpoint_degc"`
	LaserPowerMW      float64 `toml:"laser_power_mw"`
}

func (b *LoadTestBlock) applyDefaults() {
	if b.SettleDelayMS <= 0 {
		b.SettleDelayMS = 2000
	}
	if b.ExpectTimeoutMS <= 0 {
		b.ExpectTimeoutMS = 5000
	}
	if b.IntegrationTimeMS <= 0 {
		b.IntegrationTimeMS = 100
	}
	if b.TECSetpointDegC == 0 {
		b.TECSetpointDegC = 10
	}
	if b.LaserPowerMW <= 0 {
		b.LaserPowerMW = 70
	}
}

// SettleDelay is the pause at the top of each pass.
func (b LoadTestBlock) SettleDelay() time.Duration {
	return time.Duration(b.SettleDelayMS) * time.Millisecond
}

// ExpectTimeout bounds each response wait.
func (b LoadTestBlock) ExpectTimeout() time.Duration {
	return time.Duration(b.ExpectTimeoutMS) * time.Millisecond
}

var (
	// ErrInvalidPixels indicates a nonsensical detector width.
	ErrInvalidPixels = errors.New("config.simulation.pixels must be positive")
	// ErrInvalidLaserPower indicates a setup laser power outside the unit's range.
	ErrInvalidLaserPower = errors.New("config.loadtest.laser_power_mw must be within (0, 500]")
)

// Default returns the baseline configuration.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	c.LoadTest.applyDefaults()
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if c.Simulation.Pixels < 0 {
		return ErrInvalidPixels
	}
	if c.LoadTest.LaserPowerMW <= 0 || c.LoadTest.LaserPowerMW > 500 {
		return ErrInvalidLaserPower
	}
	return nil
}

// Load reads configuration from disk. A missing file returns the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes configuration to disk, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

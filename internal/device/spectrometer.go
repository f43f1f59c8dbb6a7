package device

// Spectrometer is the device surface the shell dispatches against. The
// simulator is the only implementation in this repo; a USB transport would
// slot in behind the same methods.
type Spectrometer interface {
	Open() error
	Close() error
	Opened() bool
	EEPROM() EEPROM
	ConnectionCheck() bool

	SetIntegrationTimeMS(ms int) error
	IntegrationTimeMS() int
	ActualIntegrationTimeUS() int
	ActualFrames() int
	SetScansToAverage(n int) error
	ScansToAverage() int
	Spectrum() ([]float64, error)

	SetTECSetpointDegC(degC float64) error
	TECSetpointDegC() float64
	SetTECEnable(enable bool) error
	TECEnabled() bool
	DetectorTemperatureDegC() float64
	DetectorTemperatureRaw() int

	SetLaserEnable(enable bool) error
	LaserEnabled() bool
	LaserModEnabled() bool
	SetLaserPowerPerc(perc float64) error
	SetLaserPowerMW(mw float64) error
	LaserPowerPerc() float64
	LaserModPeriodUS() int
	LaserModPulseWidthUS() int
	LaserModPulseDelayUS() int
	LaserModDurationUS() int
	LaserPowerRampingEnabled() bool
	ExternalTriggerOutput() int
	VRNumFrames() int
	LaserTemperatureRaw() int
	LaserTemperatureDegC() float64

	SelectADC(n int) error
	SelectedADC() int
	SecondaryADCRaw() int
	SecondaryADCCalibrated() (float64, bool)
}

var _ Spectrometer = (*Simulator)(nil)

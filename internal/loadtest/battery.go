package loadtest

import (
	"fmt"
	"strconv"
)

// step is one protocol round trip: a command line and the literal
// substrings that must appear in the response before the prompt.
type step struct {
	send string
	want []string
}

func ack(send string) step {
	return step{send: send, want: []string{success}}
}

// setupSteps is the ordered battery issued at the top of every pass: read
// the configuration, then bring the bench to its test state.
func setupSteps(opts Options) []step {
	return []step{
		{send: "get_config_json", want: []string{configMarker}},
		ack(fmt.Sprintf("set_integration_time_ms %d", opts.IntegrationTimeMS)),
		ack(fmt.Sprintf("set_detector_tec_setpoint_degc %d", opts.TECSetpointDegC)),
		ack("set_tec_enable on"),
		ack(fmt.Sprintf("set_laser_power_mw %g", opts.LaserPowerMW)),
		ack("set_laser_enable on"),
	}
}

// querySteps is the read-only battery repeated every iteration. Ordering
// matters: reading the laser temperature reselects ADC 0, and reading the
// secondary ADC reselects ADC 1, which the two get_selected_adc probes
// verify.
func querySteps(opts Options) []step {
	return []step{
		{send: "get_detector_temperature_degc"},
		{send: "get_tec_enabled", want: []string{success}},
		{send: "get_integration_time_ms", want: []string{strconv.Itoa(opts.IntegrationTimeMS)}},
		{send: "get_laser_mod_duration"},
		{send: "get_laser_mod_pulse_delay"},
		{send: "get_laser_mod_period", want: []string{"100"}},
		{send: "get_laser_temperature_degc"},
		{send: "get_actual_frames"},
		{send: "get_laser_mod_pulse_width"},
		{send: "get_actual_integration_time_us"},
		{send: "get_external_trigger_output"},
		{send: "get_laser_enabled", want: []string{success}},
		{send: "get_laser_mod_enabled", want: []string{success}},
		{send: "get_laser_power_ramping_enabled"},
		{send: "get_vr_num_frames"},
		{send: "get_spectrum"},
		{send: "get_laser_temperature_degc"},
		{send: "get_selected_adc", want: []string{"0"}},
		{send: "get_secondary_adc_calibrated"},
		{send: "get_selected_adc", want: []string{"1"}},
	}
}

// teardownSteps returns the bench to a safe state at the end of each pass.
func teardownSteps() []step {
	return []step{
		ack("set_tec_enable off"),
		ack("set_laser_enable off"),
	}
}

package headless

import (
	"time"

	"github.com/Carmen-Shannon/oxy-cull/log"
)

// DeviceBuilderOption is a functional option for configuring a Device.
// Use the With* functions to create options.
type DeviceBuilderOption func(d *Device)

// WithLatency makes every submission take at least d on the device timeline.
//
// Parameters:
//   - latency: simulated execution time per submission
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithLatency(latency time.Duration) DeviceBuilderOption {
	return func(d *Device) {
		d.latency = latency
	}
}

// WithHistory retains the last n submission records for inspection. A negative n keeps all of
// them and zero (the default) keeps none.
//
// Parameters:
//   - n: number of records to retain
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithHistory(n int) DeviceBuilderOption {
	return func(d *Device) {
		d.historyCap = n
	}
}

// WithLogger sets the logger used to report timeline errors.
func WithLogger(logger log.Logger) DeviceBuilderOption {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

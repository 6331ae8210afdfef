package wgpubackend

import (
	"github.com/Carmen-Shannon/oxy-cull/log"
	"github.com/cogentcore/webgpu/wgpu"
)

// DeviceBuilderOption is a functional option for configuring a Device.
// Use the With* functions to create options.
type DeviceBuilderOption func(d *Device)

// WithForceFallbackAdapter requests the software fallback adapter.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *Device) {
		d.forceFallbackAdapter = force
	}
}

// WithVSync selects FIFO presentation when enabled and immediate presentation otherwise.
//
// Parameters:
//   - enabled: true to wait for vertical blank
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithVSync(enabled bool) DeviceBuilderOption {
	return func(d *Device) {
		if enabled {
			d.presentMode = wgpu.PresentModeFifo
		} else {
			d.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithClearColor sets the color the render target is cleared to each frame.
func WithClearColor(r, g, b float64) DeviceBuilderOption {
	return func(d *Device) {
		d.clearColor = wgpu.Color{R: r, G: g, B: b, A: 1.0}
	}
}

// WithLogger sets the logger used for device lifecycle messages.
func WithLogger(logger log.Logger) DeviceBuilderOption {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

package gpu

import (
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/cogentcore/webgpu/wgpu"
)

type deviceConfig struct {
	deviceType           DeviceType
	width, height        int
	sampleCount          int
	vsync                bool
	forceFallbackAdapter bool
	surfaceDescriptor    *wgpu.SurfaceDescriptor
}

// DeviceBuilderOption is a functional option for NewDevice.
type DeviceBuilderOption func(*deviceConfig)

// WithDeviceType selects the backend.
func WithDeviceType(t DeviceType) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.deviceType = t
	}
}

// WithSize sets the initial back buffer size.
func WithSize(width, height int) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.width = width
		c.height = height
	}
}

// WithSampleCount sets the MSAA sample count of the back buffer.
func WithSampleCount(samples int) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.sampleCount = samples
	}
}

// WithVSync selects FIFO presentation when true and immediate presentation otherwise.
func WithVSync(vsync bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.vsync = vsync
	}
}

// WithSurfaceDescriptor sets the platform surface the wgpu device presents to.
func WithSurfaceDescriptor(desc *wgpu.SurfaceDescriptor) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.surfaceDescriptor = desc
	}
}

// WithFallbackAdapter forces the software adapter on the wgpu backend.
func WithFallbackAdapter(force bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithRendererConfig applies the backend, MSAA and present mode settings of cfg.
// An unknown backend name leaves the device type unchanged.
func WithRendererConfig(cfg config.RendererConfig) DeviceBuilderOption {
	return func(c *deviceConfig) {
		if t, err := ParseDeviceType(cfg.Backend); err == nil {
			c.deviceType = t
		}
		c.sampleCount = cfg.MSAASamples
		c.vsync = cfg.PresentMode == "vsync"
	}
}

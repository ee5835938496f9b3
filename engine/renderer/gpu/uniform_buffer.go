package gpu

import (
	"bytes"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/gogpu/gputypes"
)

// UniformBuffer is CPU storage laid out by a UniformBufferFormat plus its GPU buffer.
type UniformBuffer struct {
	format   *UniformBufferFormat
	impl     BufferImpl
	storage  []byte
	uploaded []byte
	// persistent values set directly with Set; they take precedence over scope values
	persistent map[string]any
	destroyed  bool
}

// NewUniformBuffer allocates a uniform buffer for format.
//
// Parameters:
//   - device: the owning device
//   - format: the layout
//
// Returns:
//   - *UniformBuffer: the buffer, zero filled
func NewUniformBuffer(device Device, format *UniformBufferFormat) *UniformBuffer {
	size := max(format.ByteSize(), 16)
	return &UniformBuffer{
		format:     format,
		storage:    make([]byte, size),
		impl:       device.CreateBufferImpl("Uniform Buffer", gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst, size),
		persistent: make(map[string]any),
	}
}

func (ub *UniformBuffer) Format() *UniformBufferFormat { return ub.format }
func (ub *UniformBuffer) Impl() BufferImpl             { return ub.impl }

// Storage returns the CPU-side contents. The slice is owned by the buffer.
func (ub *UniformBuffer) Storage() []byte { return ub.storage }

// Set stores a value for one uniform that overrides the scope value on every Update.
func (ub *UniformBuffer) Set(name string, value any) {
	if ub.format.Get(name) == nil {
		logger.Logger().Warn("uniform not declared in buffer format", "uniform", name)
		return
	}
	ub.persistent[name] = value
}

// Update pulls every uniform's value (persistent first, then the device scope), packs it into
// storage and uploads when the contents changed since the last upload.
//
// Returns:
//   - bool: true if the GPU buffer was written
func (ub *UniformBuffer) Update() bool {
	if ub.destroyed {
		return false
	}
	for _, u := range ub.format.Uniforms() {
		v, ok := ub.persistent[u.Name]
		if !ok && u.scopeID != nil {
			v = u.scopeID.Value()
		}
		if v == nil {
			continue
		}
		if !u.write(ub.storage, v) {
			logger.Logger().Warn("unsupported uniform value type", "uniform", u.Name, "type", u.Type.String())
		}
	}
	if ub.uploaded != nil && bytes.Equal(ub.storage, ub.uploaded) {
		return false
	}
	ub.impl.Write(ub.storage)
	ub.uploaded = append(ub.uploaded[:0], ub.storage...)
	return true
}

// Destroy releases the GPU buffer. A second call is a logged no-op.
func (ub *UniformBuffer) Destroy() {
	if !logger.Assert(!ub.destroyed, "uniform buffer destroyed twice") {
		return
	}
	ub.impl.Destroy()
	ub.destroyed = true
}

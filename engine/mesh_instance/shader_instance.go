package mesh_instance

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
)

// ShaderInstance pairs a shader variant with the per-draw resources one mesh instance needs to
// draw with it: the mesh bind group and its uniform buffer.
type ShaderInstance struct {
	shader    *gpu.Shader
	bindGroup *gpu.BindGroup
}

// NewShaderInstance wraps shader. The bind group is created on first use.
func NewShaderInstance(shader *gpu.Shader) *ShaderInstance {
	return &ShaderInstance{shader: shader}
}

func (si *ShaderInstance) Shader() *gpu.Shader { return si.shader }

// BindGroup returns the mesh bind group, creating it and its uniform buffer on first call from the
// shader's mesh formats.
//
// Parameters:
//   - device: the device that owns the resources
//
// Returns:
//   - *gpu.BindGroup: the bind group, nil while the shader has no mesh bind group format
func (si *ShaderInstance) BindGroup(device gpu.Device) *gpu.BindGroup {
	if si.bindGroup != nil {
		return si.bindGroup
	}
	format := si.shader.MeshBindGroupFormat()
	if format == nil {
		return nil
	}
	var ub *gpu.UniformBuffer
	if ubFormat := si.shader.MeshUniformBufferFormat(); ubFormat != nil {
		ub = gpu.NewUniformBuffer(device, ubFormat)
	}
	si.bindGroup = gpu.NewBindGroup(device, format, ub)
	return si.bindGroup
}

// UniformBuffer returns the mesh uniform buffer, nil before BindGroup has been called.
func (si *ShaderInstance) UniformBuffer() *gpu.UniformBuffer {
	if si.bindGroup == nil {
		return nil
	}
	return si.bindGroup.DefaultUniformBuffer()
}

// Destroy releases the bind group and its uniform buffer. The shader is owned by the material.
func (si *ShaderInstance) Destroy() {
	if si.bindGroup == nil {
		return
	}
	if ub := si.bindGroup.DefaultUniformBuffer(); ub != nil {
		ub.Destroy()
	}
	si.bindGroup.Destroy()
	si.bindGroup = nil
}

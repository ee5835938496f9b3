package material

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/gogpu/gputypes"
)

// ViewUniformBufferName is the binding name of the view uniform buffer in group 0.
const ViewUniformBufferName = "view"

// viewUniformsWGSL is the WGSL declaration matching NewViewFormats.
const viewUniformsWGSL = `struct ViewUniforms {
    matrix_viewProjection: mat4x4f,
    matrix_view: mat4x4f,
    matrix_projection: mat4x4f,
    matrix_viewInverse: mat4x4f,
    view_position: vec3f,
    camera_params: vec4f,
    blueNoiseJitter: vec4f,
    tbnBasis: f32,
}

@group(0) @binding(0) var<uniform> view: ViewUniforms;
`

// NewViewFormats creates the uniform buffer format and bind group format of the per-view bind
// group (group 0) shared by every generated shader. Uniform values are pulled from the device
// scope under the member names.
//
// Parameters:
//   - device: the owning device
//
// Returns:
//   - *gpu.UniformBufferFormat: the ViewUniforms layout
//   - *gpu.BindGroupFormat: the group 0 layout
func NewViewFormats(device gpu.Device) (*gpu.UniformBufferFormat, *gpu.BindGroupFormat) {
	ub := gpu.NewUniformBufferFormat(device, []*gpu.UniformFormat{
		gpu.NewUniformFormat("matrix_viewProjection", gpu.UniformTypeMat4, 0),
		gpu.NewUniformFormat("matrix_view", gpu.UniformTypeMat4, 0),
		gpu.NewUniformFormat("matrix_projection", gpu.UniformTypeMat4, 0),
		gpu.NewUniformFormat("matrix_viewInverse", gpu.UniformTypeMat4, 0),
		gpu.NewUniformFormat("view_position", gpu.UniformTypeVec3, 0),
		gpu.NewUniformFormat("camera_params", gpu.UniformTypeVec4, 0),
		gpu.NewUniformFormat("blueNoiseJitter", gpu.UniformTypeVec4, 0),
		gpu.NewUniformFormat("tbnBasis", gpu.UniformTypeFloat, 0),
	})
	bg := gpu.NewBindGroupFormat(device,
		gpu.WithUniformBuffer(ViewUniformBufferName, gputypes.ShaderStageVertex|gputypes.ShaderStageFragment),
	)
	return ub, bg
}

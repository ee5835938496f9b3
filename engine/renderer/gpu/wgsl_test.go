package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMeshWGSL = `
struct ViewUniforms {
    viewProjection: mat4x4f,
    cameraPosition: vec3f,
}

struct MeshUniforms {
    matrix_model: mat4x4f,
    matrix_normal: mat3x3f,
    opacity: f32, // comment, with a comma
    weights: array<vec4f, 2>,
}

/* block /* nested */ comment */
@group(0) @binding(0) var<uniform> view: ViewUniforms;
@group(0) @binding(1) var shadowAtlas: texture_depth_2d;
@group(0) @binding(2) var shadowAtlasSampler: sampler_comparison;
@group(0) @binding(3) var<storage, read> lights: array<vec4f>;

@group(1) @binding(0) var<uniform> mesh: MeshUniforms;
@group(1) @binding(1) var diffuseMap: texture_2d<f32>;
@group(1) @binding(2) var diffuseMapSampler: sampler;

@vertex
fn vertexMain(@location(0) position: vec3f) -> @builtin(position) vec4f {
    return view.viewProjection * mesh.matrix_model * vec4f(position, 1.0);
}

@fragment
fn fragmentMain() -> @location(0) vec4f {
    return vec4f(1.0);
}
`

func TestScanWGSLEntryPoints(t *testing.T) {
	m := scanWGSL(testMeshWGSL)
	assert.Equal(t, "vertexMain", m.vertexEntry)
	assert.Equal(t, "fragmentMain", m.fragmentEntry)
	assert.Equal(t, []int{0, 1}, m.groupsDeclared)
	require.Len(t, m.structs["MeshUniforms"], 4)
	assert.Equal(t, "array<vec4f, 2>", m.structs["MeshUniforms"][3].typeName)
}

func TestShaderFromWGSLMeshFormats(t *testing.T) {
	dev := NewNullDevice(8, 8)
	s := NewShaderFromWGSL(dev, "lit", testMeshWGSL)
	require.True(t, s.Ready(), "%v", s.Err())

	ub := s.MeshUniformBufferFormat()
	require.NotNil(t, ub)
	assert.Equal(t, 0, ub.Get("matrix_model").Offset)
	assert.Equal(t, 64, ub.Get("matrix_normal").Offset)
	assert.Equal(t, 112, ub.Get("opacity").Offset)
	assert.Equal(t, 128, ub.Get("weights").Offset)
	assert.Equal(t, 160, ub.ByteSize())

	bg := s.MeshBindGroupFormat()
	require.NotNil(t, bg)
	assert.Equal(t, 0, bg.GetUniformBuffer("mesh").Slot)
	assert.True(t, bg.GetTexture("diffuseMap").HasSampler)
	assert.Same(t, bg, s.BindGroupFormat(BindGroupMesh))

	view := s.BindGroupFormat(BindGroupView)
	require.NotNil(t, view)
	shadow := view.GetTexture("shadowAtlas")
	require.NotNil(t, shadow)
	assert.Equal(t, gputypes.TextureSampleTypeDepth, shadow.SampleType)
	assert.Equal(t, 3, view.GetStorageBuffer("lights").Slot)
	assert.True(t, view.GetStorageBuffer("lights").ReadOnly)
}

func TestShaderFromWGSLRejectsMisorderedBindings(t *testing.T) {
	dev := NewNullDevice(8, 8)
	src := `
struct U { a: f32, }
@group(1) @binding(0) var diffuseMap: texture_2d<f32>;
@group(1) @binding(1) var<uniform> mesh: U;
`
	s := NewShaderFromWGSL(dev, "bad", src)
	assert.True(t, s.Failed())
	assert.False(t, s.Ready())
	assert.ErrorIs(t, s.Err(), ErrWGSLBinding)
	assert.False(t, dev.SetShader(s))
}

func TestShaderFromWGSLRejectsUnknownMember(t *testing.T) {
	dev := NewNullDevice(8, 8)
	src := `
struct U { a: SomethingElse, }
@group(1) @binding(0) var<uniform> mesh: U;
`
	s := NewShaderFromWGSL(dev, "bad", src)
	assert.True(t, s.Failed())
}

func TestStripComments(t *testing.T) {
	got := stripComments("a // x\nb /* c /* d */ e */ f")
	assert.Equal(t, "a \nb  f", got)
}

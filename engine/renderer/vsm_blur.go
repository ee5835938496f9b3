package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// maxBlurWeights is the capacity of the blur weight uniform, seven vec4s.
const maxBlurWeights = 28

const vsmBlurSource = `
struct BlurUniforms {
    blur_weights: array<vec4f, 7>,
    blur_pixelOffset: vec2f,
    blur_kernel: f32,
};

@group(1) @binding(0) var<uniform> blur: BlurUniforms;
@group(1) @binding(1) var blur_source: texture_2d<f32>;

@vertex
fn vertexMain(@location(0) position: vec2f) -> @builtin(position) vec4f {
    return vec4f(position, 0.5, 1.0);
}

fn blurWeight(i: i32) -> f32 {
    return blur.blur_weights[i / 4][i % 4];
}

@fragment
fn fragmentMain(@builtin(position) coord: vec4f) -> @location(0) vec4f {
    let size = vec2i(textureDimensions(blur_source));
    let center = vec2i(coord.xy);
    let kernel = i32(blur.blur_kernel);
    let step = vec2i(blur.blur_pixelOffset);
    var moments = vec4f(0.0);
    for (var i = 0; i < kernel; i++) {
        let p = clamp(center + step * (i - kernel / 2), vec2i(0), size - vec2i(1));
        moments += textureLoad(blur_source, p, 0) * blurWeight(i);
    }
    return moments;
}
`

// depthClearSource writes the far plane over the viewport it is drawn into.
const depthClearSource = `
@vertex
fn vertexMain(@location(0) position: vec2f) -> @builtin(position) vec4f {
    return vec4f(position, 1.0, 1.0);
}
`

var quadVertexFormat = gpu.NewVertexFormat(false,
	gpu.VertexElement{Name: "position", Format: gputypes.VertexFormatFloat32x2},
)

var quadPrimitive = gpu.Primitive{Topology: gputypes.PrimitiveTopologyTriangleStrip, Count: 4}

// newQuadVertexBuffer creates a triangle strip covering clip space.
func newQuadVertexBuffer(device gpu.Device) *gpu.VertexBuffer {
	vertices := []float32{-1, -1, 1, -1, -1, 1, 1, 1}
	return gpu.NewVertexBuffer(device, quadVertexFormat, 4, common.SliceToBytes(vertices))
}

func drawQuad(device gpu.Device, shader *gpu.Shader, vb *gpu.VertexBuffer) bool {
	if !device.SetShader(shader) {
		return false
	}
	device.SetVertexBuffer(vb)
	device.SetInstanceBuffer(nil)
	device.SetIndexBuffer(nil)
	device.Draw(quadPrimitive, 1)
	return true
}

// depthClearQuad clears the depth of one viewport of a shared target, leaving the rest of the
// target intact. Render pass clears always cover the whole attachment.
type depthClearQuad struct {
	shader *gpu.Shader
	vb     *gpu.VertexBuffer
}

func newDepthClearQuad(device gpu.Device) *depthClearQuad {
	return &depthClearQuad{
		shader: gpu.NewShaderFromWGSL(device, "DepthClearQuad", depthClearSource),
		vb:     newQuadVertexBuffer(device),
	}
}

func (q *depthClearQuad) draw(device gpu.Device) {
	device.SetBlendState(gpu.BlendNoColorWrite)
	device.SetDepthState(gpu.DepthState{Func: gputypes.CompareFunctionAlways, Write: true})
	device.SetCullMode(gputypes.CullModeNone)
	if !drawQuad(device, q.shader, q.vb) {
		logger.Logger().Warn("depth clear shader unavailable", "error", q.shader.Err())
	}
}

func (q *depthClearQuad) destroy() {
	q.shader.Destroy()
	q.vb.Destroy()
}

type blurTargetKey struct {
	light uint64
	dir   mgl32.Vec2
}

// blurTarget holds the uniforms of one blur direction of one light. Uniform writes land before
// the frame's passes execute, so each pass needs its own buffer.
type blurTarget struct {
	light *light.Light
	ub    *gpu.UniformBuffer
	bg    *gpu.BindGroup
}

func (t *blurTarget) destroy() {
	t.bg.Destroy()
	t.ub.Destroy()
}

// vsmBlur runs the separable blur of variance shadow maps.
type vsmBlur struct {
	shader  *gpu.Shader
	vb      *gpu.VertexBuffer
	targets map[blurTargetKey]*blurTarget
	weights []float32
}

func newVsmBlur(device gpu.Device) *vsmBlur {
	return &vsmBlur{
		shader:  gpu.NewShaderFromWGSL(device, "VsmBlur", vsmBlurSource),
		vb:      newQuadVertexBuffer(device),
		targets: make(map[blurTargetKey]*blurTarget),
		weights: make([]float32, maxBlurWeights),
	}
}

// pass blurs src along dir into dst.
func (b *vsmBlur) pass(device gpu.Device, l *light.Light, src *gpu.Texture, dst *gpu.RenderTarget, dir mgl32.Vec2, weights []float32, kernel int) {
	if !b.shader.Ready() {
		logger.Logger().Warn("vsm blur shader unavailable", "light", l.ID(), "error", b.shader.Err())
		return
	}
	b.prune()
	key := blurTargetKey{light: l.ID(), dir: dir}
	t, ok := b.targets[key]
	if !ok {
		ub := gpu.NewUniformBuffer(device, b.shader.MeshUniformBufferFormat())
		t = &blurTarget{light: l, ub: ub, bg: gpu.NewBindGroup(device, b.shader.MeshBindGroupFormat(), ub)}
		b.targets[key] = t
	}

	clear(b.weights)
	copy(b.weights, weights)
	t.ub.Set("blur_weights", b.weights)
	t.ub.Set("blur_pixelOffset", dir)
	t.ub.Set("blur_kernel", float32(kernel))
	t.ub.Update()
	t.bg.SetTexture("blur_source", src)
	t.bg.Update()

	device.SetRenderTarget(dst)
	device.StartRenderPass(gpu.RenderPassOptions{Name: "VsmBlur", Target: dst})
	device.SetBlendState(gpu.BlendNone)
	device.SetDepthState(gpu.DepthNone)
	device.SetCullMode(gputypes.CullModeNone)
	device.SetBindGroup(gpu.BindGroupMesh, t.bg)
	drawQuad(device, b.shader, b.vb)
	device.EndRenderPass()
}

// prune drops the uniforms of destroyed lights.
func (b *vsmBlur) prune() {
	for key, t := range b.targets {
		if t.light.Destroyed() {
			t.destroy()
			delete(b.targets, key)
		}
	}
}

func (b *vsmBlur) destroy() {
	for key, t := range b.targets {
		t.destroy()
		delete(b.targets, key)
	}
	b.shader.Destroy()
	b.vb.Destroy()
}

package gpu

import (
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/gogpu/gputypes"
)

// DrawRecord is one draw observed by the NullDevice.
type DrawRecord struct {
	Target     *RenderTarget
	Pass       string
	Shader     *Shader
	CullMode   gputypes.CullMode
	Blend      BlendState
	Depth      DepthState
	Primitive  Primitive
	Instances  int
	BindGroups [maxBindGroups]*BindGroup
}

// NullStats counts the work submitted to a NullDevice since the last ResetStats.
// Per-target maps use nil for the back buffer.
type NullStats struct {
	Draws            int
	SkippedDraws     int
	Clears           int
	RenderPasses     int
	BindGroupSets    int
	BindGroupUpdates int
	UniformUploads   int
	BufferWrites     int
	TextureUploads   int
	ShaderSwitches   int
	LastCullMode     gputypes.CullMode

	DrawsPerTarget  map[*RenderTarget]int
	ClearsPerTarget map[*RenderTarget]int
	DrawLog         []DrawRecord
}

// NullDevice is a headless Device that records what it is asked to do. It backs the renderer in
// tests and in tools that need frame logic without a GPU.
type NullDevice struct {
	deviceState

	stats    NullStats
	passName string
	inPass   bool
}

var _ Device = &NullDevice{}

// NewNullDevice creates a null device with a back buffer of the given size.
func NewNullDevice(width, height int) *NullDevice {
	d := &NullDevice{deviceState: newDeviceState(width, height)}
	d.ResetStats()
	return d
}

// Stats returns the counters collected since the last ResetStats.
func (d *NullDevice) Stats() *NullStats { return &d.stats }

// ResetStats clears all counters.
func (d *NullDevice) ResetStats() {
	d.stats = NullStats{
		LastCullMode:    d.cullMode,
		DrawsPerTarget:  make(map[*RenderTarget]int),
		ClearsPerTarget: make(map[*RenderTarget]int),
	}
}

func (d *NullDevice) DeviceType() DeviceType       { return DeviceTypeNull }
func (d *NullDevice) SupportsUniformBuffers() bool { return true }
func (d *NullDevice) IsWebGPU() bool               { return true }

func (d *NullDevice) CreateTextureImpl(t *Texture) TextureImpl {
	return &nullTexture{device: d}
}

func (d *NullDevice) CreateBufferImpl(label string, usage gputypes.BufferUsage, size int) BufferImpl {
	return &nullBuffer{device: d, usage: usage, data: make([]byte, size)}
}

func (d *NullDevice) CreateBindGroupImpl(bg *BindGroup) BindGroupImpl {
	return &nullBindGroup{device: d}
}

func (d *NullDevice) CreateRenderTargetImpl(rt *RenderTarget) RenderTargetImpl {
	return nullRenderTarget{}
}

func (d *NullDevice) CreateShaderImpl(s *Shader) ShaderImpl {
	if !s.Failed() {
		s.MarkReady()
	}
	return nullShader{}
}

// StartRenderPass begins a pass and applies its clear.
func (d *NullDevice) StartRenderPass(opts RenderPassOptions) {
	if d.inPass {
		logger.Logger().Warn("render pass started while another is active", "pass", opts.Name, "active", d.passName)
	}
	if opts.Target != nil {
		d.renderTarget = opts.Target
	}
	d.inPass = true
	d.passName = opts.Name
	d.stats.RenderPasses++
	w, h := d.targetSize()
	d.SetViewport(0, 0, float32(w), float32(h))
	d.SetScissor(0, 0, float32(w), float32(h))
	if opts.Clear.Flags != 0 {
		d.Clear(opts.Clear)
	}
}

// EndRenderPass finishes the active pass.
func (d *NullDevice) EndRenderPass() {
	d.inPass = false
	d.passName = ""
}

// Clear records a clear of the current target.
func (d *NullDevice) Clear(opts ClearOptions) {
	if opts.Flags == 0 {
		return
	}
	d.stats.Clears++
	d.stats.ClearsPerTarget[d.renderTarget]++
}

// SetCullMode records the cull mode of subsequent draws.
func (d *NullDevice) SetCullMode(mode gputypes.CullMode) {
	d.cullMode = mode
	d.stats.LastCullMode = mode
}

// SetShader selects s, counting switches between different shaders.
func (d *NullDevice) SetShader(s *Shader) bool {
	prev := d.shader
	ok := d.bindShader(s)
	if ok && prev != s {
		d.stats.ShaderSwitches++
	}
	return ok
}

// SetBindGroup binds bg at index.
func (d *NullDevice) SetBindGroup(index int, bg *BindGroup) {
	if !logger.Assert(index >= 0 && index < maxBindGroups, "bind group index out of range", "index", index) {
		return
	}
	d.bindGroups[index] = bg
	d.stats.BindGroupSets++
}

// Draw records a draw. Draws without a usable shader are counted as skipped.
func (d *NullDevice) Draw(primitive Primitive, numInstances int) {
	if d.shader == nil {
		d.stats.SkippedDraws++
		return
	}
	d.stats.Draws++
	d.stats.DrawsPerTarget[d.renderTarget]++
	d.stats.DrawLog = append(d.stats.DrawLog, DrawRecord{
		Target:     d.renderTarget,
		Pass:       d.passName,
		Shader:     d.shader,
		CullMode:   d.cullMode,
		Blend:      d.blendState,
		Depth:      d.depthState,
		Primitive:  primitive,
		Instances:  max(numInstances, 1),
		BindGroups: d.bindGroups,
	})
}

// FrameStart resets per-frame bindings.
func (d *NullDevice) FrameStart() {
	d.resetDrawState()
}

// FrameEnd increments the render version.
func (d *NullDevice) FrameEnd() {
	if d.inPass {
		d.EndRenderPass()
	}
	d.renderVersion++
}

func (d *NullDevice) Present() {}
func (d *NullDevice) Destroy() {}

type nullTexture struct{ device *NullDevice }

func (t *nullTexture) Upload(*Texture) { t.device.stats.TextureUploads++ }
func (t *nullTexture) Destroy()        {}

type nullBuffer struct {
	device *NullDevice
	usage  gputypes.BufferUsage
	data   []byte
}

func (b *nullBuffer) Write(data []byte) {
	copy(b.data, data)
	b.device.stats.BufferWrites++
	if b.usage&gputypes.BufferUsageUniform != 0 {
		b.device.stats.UniformUploads++
	}
}

func (b *nullBuffer) Destroy() {}

type nullBindGroup struct{ device *NullDevice }

func (g *nullBindGroup) Update(*BindGroup) { g.device.stats.BindGroupUpdates++ }
func (g *nullBindGroup) Destroy()          {}

type nullRenderTarget struct{}

func (nullRenderTarget) Destroy() {}

type nullShader struct{}

func (nullShader) Destroy() {}

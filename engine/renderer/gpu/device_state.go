package gpu

import "github.com/gogpu/gputypes"

// maxBindGroups is the number of bind group indices tracked per draw.
const maxBindGroups = 4

// deviceState is the draw state shared by every backend. Backends embed it and read it when they
// encode a draw.
type deviceState struct {
	renderVersion uint64
	width         int
	height        int
	scope         *Scope

	renderTarget *RenderTarget
	cullMode     gputypes.CullMode
	blendState   BlendState
	depthState   DepthState
	shader       *Shader
	vertexBuffer *VertexBuffer
	instances    *VertexBuffer
	indexBuffer  *IndexBuffer
	bindGroups   [maxBindGroups]*BindGroup
	viewport     Rect
	scissor      Rect
}

func newDeviceState(width, height int) deviceState {
	return deviceState{
		width:      width,
		height:     height,
		scope:      NewScope("Device"),
		cullMode:   gputypes.CullModeBack,
		blendState: BlendNone,
		depthState: DepthDefault,
		viewport:   Rect{W: float32(width), H: float32(height)},
		scissor:    Rect{W: float32(width), H: float32(height)},
	}
}

func (d *deviceState) RenderVersion() uint64       { return d.renderVersion }
func (d *deviceState) Width() int                  { return d.width }
func (d *deviceState) Height() int                 { return d.height }
func (d *deviceState) Scope() *Scope               { return d.scope }
func (d *deviceState) RenderTarget() *RenderTarget { return d.renderTarget }

func (d *deviceState) SetRenderTarget(rt *RenderTarget) { d.renderTarget = rt }
func (d *deviceState) SetBlendState(state BlendState)   { d.blendState = state }
func (d *deviceState) SetDepthState(state DepthState)   { d.depthState = state }
func (d *deviceState) SetVertexBuffer(vb *VertexBuffer) { d.vertexBuffer = vb }
func (d *deviceState) SetIndexBuffer(ib *IndexBuffer)   { d.indexBuffer = ib }

// SetInstanceBuffer binds the per-instance buffer of the next draw, nil for non-instanced draws.
func (d *deviceState) SetInstanceBuffer(vb *VertexBuffer) { d.instances = vb }

// CullMode returns the cull mode of the next draw.
func (d *deviceState) CullMode() gputypes.CullMode { return d.cullMode }

// SetCullMode sets the face culling mode for subsequent draws.
func (d *deviceState) SetCullMode(mode gputypes.CullMode) { d.cullMode = mode }

// SetViewport sets the viewport rectangle in pixels.
func (d *deviceState) SetViewport(x, y, w, h float32) { d.viewport = Rect{x, y, w, h} }

// SetScissor sets the scissor rectangle in pixels.
func (d *deviceState) SetScissor(x, y, w, h float32) { d.scissor = Rect{x, y, w, h} }

// Resize changes the back buffer size and resets viewport and scissor to cover it.
func (d *deviceState) Resize(width, height int) {
	d.width = width
	d.height = height
	d.viewport = Rect{W: float32(width), H: float32(height)}
	d.scissor = d.viewport
}

// targetSize returns the size of the current render target.
func (d *deviceState) targetSize() (int, int) {
	if d.renderTarget != nil {
		return d.renderTarget.Width(), d.renderTarget.Height()
	}
	return d.width, d.height
}

// bindShader stores s when it is usable.
func (d *deviceState) bindShader(s *Shader) bool {
	if s == nil || !s.Ready() {
		d.shader = nil
		return false
	}
	d.shader = s
	return true
}

// resetDrawState clears bindings that must not leak across frames.
func (d *deviceState) resetDrawState() {
	d.shader = nil
	d.vertexBuffer = nil
	d.instances = nil
	d.indexBuffer = nil
	d.bindGroups = [maxBindGroups]*BindGroup{}
}

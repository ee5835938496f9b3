package gpu

import "github.com/Carmen-Shannon/oxy-render/engine/logger"

// RenderTarget is a set of attachments rendered into by a render pass. Color and depth textures
// are borrowed; Destroy releases only the target, DestroyTextureBuffers releases both.
type RenderTarget struct {
	device Device
	impl   RenderTargetImpl

	name        string
	colorBuffer *Texture
	depthBuffer *Texture
	depth       bool
	flipY       bool
	face        int
	destroyed   bool
}

// RenderTargetBuilderOption is a functional option for NewRenderTarget.
type RenderTargetBuilderOption func(*RenderTarget)

// WithRenderTargetName sets the debug name.
func WithRenderTargetName(name string) RenderTargetBuilderOption {
	return func(rt *RenderTarget) { rt.name = name }
}

// WithColorBuffer attaches a color texture.
func WithColorBuffer(tex *Texture) RenderTargetBuilderOption {
	return func(rt *RenderTarget) { rt.colorBuffer = tex }
}

// WithDepthBuffer attaches a depth texture that can be sampled later.
func WithDepthBuffer(tex *Texture) RenderTargetBuilderOption {
	return func(rt *RenderTarget) {
		rt.depthBuffer = tex
		rt.depth = true
	}
}

// WithDepth requests a private, non-sampleable depth attachment.
func WithDepth(depth bool) RenderTargetBuilderOption {
	return func(rt *RenderTarget) { rt.depth = depth }
}

// WithFlipY marks the target as having a flipped origin.
func WithFlipY(flip bool) RenderTargetBuilderOption {
	return func(rt *RenderTarget) { rt.flipY = flip }
}

// WithFace selects the cube face rendered into when the attachments are cube textures.
func WithFace(face int) RenderTargetBuilderOption {
	return func(rt *RenderTarget) { rt.face = face }
}

// NewRenderTarget creates a render target.
//
// Parameters:
//   - device: the owning device
//   - options: functional options
//
// Returns:
//   - *RenderTarget: the target
func NewRenderTarget(device Device, options ...RenderTargetBuilderOption) *RenderTarget {
	rt := &RenderTarget{device: device, name: "RenderTarget"}
	for _, opt := range options {
		opt(rt)
	}
	rt.impl = device.CreateRenderTargetImpl(rt)
	return rt
}

func (rt *RenderTarget) Name() string           { return rt.name }
func (rt *RenderTarget) ColorBuffer() *Texture  { return rt.colorBuffer }
func (rt *RenderTarget) DepthBuffer() *Texture  { return rt.depthBuffer }
func (rt *RenderTarget) HasDepth() bool         { return rt.depth }
func (rt *RenderTarget) FlipY() bool            { return rt.flipY }
func (rt *RenderTarget) Face() int              { return rt.face }
func (rt *RenderTarget) Impl() RenderTargetImpl { return rt.impl }
func (rt *RenderTarget) Destroyed() bool        { return rt.destroyed }

// Width returns the width of the first attachment, or the device width when there is none.
func (rt *RenderTarget) Width() int {
	switch {
	case rt.colorBuffer != nil:
		return rt.colorBuffer.Width()
	case rt.depthBuffer != nil:
		return rt.depthBuffer.Width()
	}
	return rt.device.Width()
}

// Height returns the height of the first attachment, or the device height when there is none.
func (rt *RenderTarget) Height() int {
	switch {
	case rt.colorBuffer != nil:
		return rt.colorBuffer.Height()
	case rt.depthBuffer != nil:
		return rt.depthBuffer.Height()
	}
	return rt.device.Height()
}

// Destroy releases the target but not its textures. A second call is a logged no-op.
func (rt *RenderTarget) Destroy() {
	if !logger.Assert(!rt.destroyed, "render target destroyed twice", "target", rt.name) {
		return
	}
	rt.impl.Destroy()
	rt.destroyed = true
}

// DestroyTextureBuffers destroys the attached textures.
func (rt *RenderTarget) DestroyTextureBuffers() {
	if rt.colorBuffer != nil && !rt.colorBuffer.Destroyed() {
		rt.colorBuffer.Destroy()
	}
	if rt.depthBuffer != nil && !rt.depthBuffer.Destroyed() {
		rt.depthBuffer.Destroy()
	}
	rt.colorBuffer = nil
	rt.depthBuffer = nil
}

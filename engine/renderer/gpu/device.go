// Package gpu is the backend-agnostic device and resource-binding layer of the renderer.
//
// Resources (textures, buffers, render targets, shaders, bind groups) are plain structs owned by
// the caller. Each one holds a backend "impl" created through the Device's ResourceFactory, so the
// same scene code drives the headless NullDevice in tests and the wgpu device at runtime.
package gpu

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

var (
	// ErrDeviceLost is returned when a backend object cannot be created because the device is gone.
	ErrDeviceLost = errors.New("gpu device lost")

	// ErrUnsupportedBackend is returned by NewDevice for an unknown DeviceType.
	ErrUnsupportedBackend = errors.New("unsupported gpu backend")
)

// DeviceType identifies the backend implementation behind a Device.
type DeviceType int

const (
	// DeviceTypeNull is the headless recording backend.
	DeviceTypeNull DeviceType = iota

	// DeviceTypeWGPU is the WebGPU backend built on cogentcore/webgpu.
	DeviceTypeWGPU
)

// String returns the config name of the device type.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeNull:
		return "null"
	case DeviceTypeWGPU:
		return "wgpu"
	default:
		return "unknown"
	}
}

// ParseDeviceType maps a config backend name to a DeviceType.
func ParseDeviceType(name string) (DeviceType, error) {
	switch name {
	case "null":
		return DeviceTypeNull, nil
	case "wgpu":
		return DeviceTypeWGPU, nil
	}
	return 0, ErrUnsupportedBackend
}

// Bind group slots shared by every shader.
const (
	BindGroupView = 0
	BindGroupMesh = 1
)

// Primitive describes one draw range of a mesh.
type Primitive struct {
	Topology gputypes.PrimitiveTopology
	Base     int
	Count    int
	Indexed  bool
}

// ClearFlags selects which attachments a clear touches.
type ClearFlags uint8

const (
	ClearColor ClearFlags = 1 << iota
	ClearDepth
	ClearStencil
)

// ClearOptions describes a clear of the current render target.
type ClearOptions struct {
	Flags   ClearFlags
	Color   mgl32.Vec4
	Depth   float32
	Stencil uint32
}

// RenderPassOptions describes a render pass started by Device.StartRenderPass.
// A nil Target renders into the back buffer.
type RenderPassOptions struct {
	Name   string
	Target *RenderTarget
	Clear  ClearOptions
}

// Rect is a viewport or scissor rectangle in pixels.
type Rect struct {
	X, Y, W, H float32
}

// TextureImpl is the backend half of a Texture.
type TextureImpl interface {
	Upload(t *Texture)
	Destroy()
}

// BufferImpl is the backend half of vertex, index, uniform and storage buffers.
type BufferImpl interface {
	Write(data []byte)
	Destroy()
}

// BindGroupImpl is the backend half of a BindGroup. Update rebuilds the backend object from the
// group's current bindings.
type BindGroupImpl interface {
	Update(bg *BindGroup)
	Destroy()
}

// RenderTargetImpl is the backend half of a RenderTarget.
type RenderTargetImpl interface {
	Destroy()
}

// ShaderImpl is the backend half of a Shader.
type ShaderImpl interface {
	Destroy()
}

// ResourceFactory creates backend impls for resources. A Device is its own factory; the split
// lets resources depend only on the factory surface.
type ResourceFactory interface {
	// CreateTextureImpl allocates backend storage for t.
	//
	// Parameters:
	//   - t: the texture being created
	//
	// Returns:
	//   - TextureImpl: the backend texture
	CreateTextureImpl(t *Texture) TextureImpl

	// CreateBufferImpl allocates a backend buffer.
	//
	// Parameters:
	//   - label: debug label
	//   - usage: buffer usage flags
	//   - size: size in bytes
	//
	// Returns:
	//   - BufferImpl: the backend buffer
	CreateBufferImpl(label string, usage gputypes.BufferUsage, size int) BufferImpl

	// CreateBindGroupImpl creates the backend object for bg.
	//
	// Parameters:
	//   - bg: the bind group being created
	//
	// Returns:
	//   - BindGroupImpl: the backend bind group
	CreateBindGroupImpl(bg *BindGroup) BindGroupImpl

	// CreateRenderTargetImpl creates the backend attachments for rt.
	//
	// Parameters:
	//   - rt: the render target being created
	//
	// Returns:
	//   - RenderTargetImpl: the backend target
	CreateRenderTargetImpl(rt *RenderTarget) RenderTargetImpl

	// CreateShaderImpl compiles s on the backend. Failures mark the shader failed.
	//
	// Parameters:
	//   - s: the shader being created
	//
	// Returns:
	//   - ShaderImpl: the backend shader
	CreateShaderImpl(s *Shader) ShaderImpl
}

// Device is the GPU surface consumed by the renderer. Implementations are selected once by
// NewDevice and never swapped.
//
// A Device is driven from a single goroutine. No draw-path method returns an error; failures
// degrade to logged no-ops.
type Device interface {
	ResourceFactory

	// DeviceType returns the backend kind.
	//
	// Returns:
	//   - DeviceType: the backend
	DeviceType() DeviceType

	// RenderVersion returns the monotonic counter incremented by FrameEnd.
	//
	// Returns:
	//   - uint64: the current render version
	RenderVersion() uint64

	// Width returns the back buffer width in pixels.
	//
	// Returns:
	//   - int: the width
	Width() int

	// Height returns the back buffer height in pixels.
	//
	// Returns:
	//   - int: the height
	Height() int

	// Resize changes the back buffer size.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	Resize(width, height int)

	// SupportsUniformBuffers reports whether the explicit bind group path is available.
	//
	// Returns:
	//   - bool: true for bind-group backends
	SupportsUniformBuffers() bool

	// IsWebGPU reports whether clip-space depth is [0, 1].
	//
	// Returns:
	//   - bool: true for WebGPU-style backends
	IsWebGPU() bool

	// Scope returns the name-keyed uniform value store.
	//
	// Returns:
	//   - *Scope: the device scope
	Scope() *Scope

	// SetRenderTarget selects the target used by the next render pass. Nil is the back buffer.
	//
	// Parameters:
	//   - rt: the render target
	SetRenderTarget(rt *RenderTarget)

	// RenderTarget returns the currently selected render target (nil for the back buffer).
	//
	// Returns:
	//   - *RenderTarget: the current target
	RenderTarget() *RenderTarget

	// StartRenderPass begins a pass on opts.Target (or the current target when nil) and applies
	// opts.Clear.
	//
	// Parameters:
	//   - opts: the pass description
	StartRenderPass(opts RenderPassOptions)

	// EndRenderPass finishes the active pass.
	EndRenderPass()

	// Clear clears the current render target.
	//
	// Parameters:
	//   - opts: which attachments to clear and the values to use
	Clear(opts ClearOptions)

	// SetViewport sets the viewport rectangle in pixels.
	//
	// Parameters:
	//   - x, y, w, h: the rectangle
	SetViewport(x, y, w, h float32)

	// SetScissor sets the scissor rectangle in pixels.
	//
	// Parameters:
	//   - x, y, w, h: the rectangle
	SetScissor(x, y, w, h float32)

	// SetCullMode sets the face culling mode for subsequent draws.
	//
	// Parameters:
	//   - mode: the cull mode
	SetCullMode(mode gputypes.CullMode)

	// SetBlendState sets the blend state for subsequent draws.
	//
	// Parameters:
	//   - state: the blend state
	SetBlendState(state BlendState)

	// SetDepthState sets the depth state for subsequent draws.
	//
	// Parameters:
	//   - state: the depth state
	SetDepthState(state DepthState)

	// SetShader selects the shader for subsequent draws.
	//
	// Parameters:
	//   - s: the shader
	//
	// Returns:
	//   - bool: false when the shader is not ready or failed, in which case draws are skipped
	SetShader(s *Shader) bool

	// SetVertexBuffer binds the vertex buffer for the next draw.
	//
	// Parameters:
	//   - vb: the vertex buffer
	SetVertexBuffer(vb *VertexBuffer)

	// SetInstanceBuffer binds the per-instance vertex buffer for the next draw.
	//
	// Parameters:
	//   - vb: a buffer laid out with InstanceMatrixFormat, or nil for non-instanced draws
	SetInstanceBuffer(vb *VertexBuffer)

	// SetIndexBuffer binds the index buffer for the next draw.
	//
	// Parameters:
	//   - ib: the index buffer, or nil for non-indexed draws
	SetIndexBuffer(ib *IndexBuffer)

	// SetBindGroup binds bg at the given group index.
	//
	// Parameters:
	//   - index: the group index
	//   - bg: the bind group
	SetBindGroup(index int, bg *BindGroup)

	// Draw submits one draw with the current state.
	//
	// Parameters:
	//   - primitive: the draw range
	//   - numInstances: the instance count (values below 1 draw once)
	Draw(primitive Primitive, numInstances int)

	// FrameStart prepares the device for a new frame.
	FrameStart()

	// FrameEnd submits the frame and increments the render version.
	FrameEnd()

	// Present shows the last submitted frame.
	Present()

	// Destroy releases the device.
	Destroy()
}

// NewDevice creates the Device selected by the options. The default is the null device.
//
// Parameters:
//   - options: functional options applied after the defaults
//
// Returns:
//   - Device: the created device
//   - error: ErrUnsupportedBackend for an unknown type, or a backend initialization error
func NewDevice(options ...DeviceBuilderOption) (Device, error) {
	cfg := &deviceConfig{
		deviceType:  DeviceTypeNull,
		width:       1280,
		height:      720,
		sampleCount: 4,
		vsync:       true,
	}
	for _, opt := range options {
		opt(cfg)
	}

	switch cfg.deviceType {
	case DeviceTypeNull:
		return NewNullDevice(cfg.width, cfg.height), nil
	case DeviceTypeWGPU:
		return newWGPUDevice(cfg)
	}
	return nil, ErrUnsupportedBackend
}

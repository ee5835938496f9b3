// Package camera holds the view definition used by the renderer: projection, render target,
// layers, clear settings and the frustum used for culling.
package camera

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Projection selects perspective or orthographic projection.
type Projection int

const (
	ProjectionPerspective Projection = iota
	ProjectionOrthographic
)

var cameraIDs atomic.Uint64

type cameraImpl struct {
	id   uint64
	node graph.GraphNode

	projection  Projection
	fov         float32
	aspect      float32
	nearClip    float32
	farClip     float32
	orthoHeight float32

	projMatrix      mgl32.Mat4
	projMatrixDirty bool
	frustum         common.Frustum

	jitter         float32
	flipFaces      bool
	cullFaces      bool
	frustumCulling bool
	enabled        bool

	renderTarget *gpu.RenderTarget
	layers       []int
	rect         mgl32.Vec4
	scissorRect  mgl32.Vec4
	priority     int

	clearColor         mgl32.Vec4
	clearColorBuffer   bool
	clearDepthBuffer   bool
	clearStencilBuffer bool
}

// Camera is a view into the scene. Its pose comes from its graph node; the view matrix is the
// inverse of the node's world transform.
//
// Rect and ScissorRect are normalized (x, y, width, height) rectangles of the render target.
// A Camera is owned by the frame-driving goroutine.
type Camera interface {
	// ID returns the process-unique camera id.
	//
	// Returns:
	//   - uint64: the id
	ID() uint64

	// Node returns the node providing the camera pose.
	//
	// Returns:
	//   - graph.GraphNode: the node
	Node() graph.GraphNode

	// Projection returns the projection type.
	//
	// Returns:
	//   - Projection: perspective or orthographic
	Projection() Projection

	// SetProjection changes the projection type.
	//
	// Parameters:
	//   - p: the projection type
	SetProjection(p Projection)

	// Fov returns the vertical field of view in degrees.
	//
	// Returns:
	//   - float32: the field of view
	Fov() float32

	// SetFov sets the vertical field of view in degrees.
	//
	// Parameters:
	//   - fov: the field of view
	SetFov(fov float32)

	// Aspect returns the width / height ratio.
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// SetAspect sets the width / height ratio.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// NearClip returns the near plane distance.
	//
	// Returns:
	//   - float32: the near distance
	NearClip() float32

	// SetNearClip sets the near plane distance.
	//
	// Parameters:
	//   - near: the near distance
	SetNearClip(near float32)

	// FarClip returns the far plane distance.
	//
	// Returns:
	//   - float32: the far distance
	FarClip() float32

	// SetFarClip sets the far plane distance.
	//
	// Parameters:
	//   - far: the far distance
	SetFarClip(far float32)

	// OrthoHeight returns the half height of the orthographic view volume.
	//
	// Returns:
	//   - float32: the half height
	OrthoHeight() float32

	// SetOrthoHeight sets the half height of the orthographic view volume.
	//
	// Parameters:
	//   - h: the half height
	SetOrthoHeight(h float32)

	// ProjectionMatrix returns the cached projection matrix, rebuilt after a projection change.
	//
	// Returns:
	//   - mgl32.Mat4: the projection with a [-1, 1] depth range
	ProjectionMatrix() mgl32.Mat4

	// ViewMatrix returns the inverse of the node's world transform.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	ViewMatrix() mgl32.Mat4

	// Frustum returns the frustum computed by the last UpdateFrustum.
	//
	// Returns:
	//   - *common.Frustum: the culling frustum
	Frustum() *common.Frustum

	// UpdateFrustum recomputes the culling frustum from a view-projection matrix.
	//
	// Parameters:
	//   - viewProj: the projection * view matrix
	UpdateFrustum(viewProj mgl32.Mat4)

	// ScreenSize returns the fraction of the viewport height covered by sphere.
	//
	// Parameters:
	//   - sphere: the world-space bounding sphere
	//
	// Returns:
	//   - float32: the projected size, 0 when behind the camera plane
	ScreenSize(sphere common.BoundingSphere) float32

	// FrustumCorners returns the eight corners of the view volume between near and far in camera
	// space: near plane first, then far plane, each counter-clockwise from bottom-left.
	//
	// Parameters:
	//   - near, far: the slice distances
	//
	// Returns:
	//   - [8]mgl32.Vec3: the corners
	FrustumCorners(near, far float32) [8]mgl32.Vec3

	// Jitter returns the temporal jitter scale in pixels. Zero disables jitter.
	//
	// Returns:
	//   - float32: the jitter scale
	Jitter() float32

	// SetJitter sets the temporal jitter scale.
	//
	// Parameters:
	//   - jitter: the scale in pixels
	SetJitter(jitter float32)

	// FlipFaces reports whether the camera inverts front and back faces.
	//
	// Returns:
	//   - bool: true when faces are flipped
	FlipFaces() bool

	// SetFlipFaces sets whether faces are flipped.
	//
	// Parameters:
	//   - flip: the flag
	SetFlipFaces(flip bool)

	// CullFaces reports whether material face culling is honored.
	//
	// Returns:
	//   - bool: false disables face culling for everything this camera draws
	CullFaces() bool

	// SetCullFaces sets whether face culling is honored.
	//
	// Parameters:
	//   - cull: the flag
	SetCullFaces(cull bool)

	// FrustumCulling reports whether mesh instances are culled against the frustum.
	//
	// Returns:
	//   - bool: true when culling
	FrustumCulling() bool

	// SetFrustumCulling enables or disables frustum culling.
	//
	// Parameters:
	//   - cull: the flag
	SetFrustumCulling(cull bool)

	// Enabled reports whether the camera renders.
	//
	// Returns:
	//   - bool: true when enabled
	Enabled() bool

	// SetEnabled enables or disables the camera.
	//
	// Parameters:
	//   - enabled: the flag
	SetEnabled(enabled bool)

	// RenderTarget returns the target rendered into, nil for the back buffer.
	//
	// Returns:
	//   - *gpu.RenderTarget: the target
	RenderTarget() *gpu.RenderTarget

	// SetRenderTarget sets the target rendered into.
	//
	// Parameters:
	//   - rt: the target, nil for the back buffer
	SetRenderTarget(rt *gpu.RenderTarget)

	// Layers returns the ids of the layers the camera renders.
	//
	// Returns:
	//   - []int: the layer ids
	Layers() []int

	// SetLayers sets the ids of the layers the camera renders.
	//
	// Parameters:
	//   - ids: the layer ids
	SetLayers(ids []int)

	// HasLayer reports whether the camera renders layer id.
	//
	// Parameters:
	//   - id: the layer id
	//
	// Returns:
	//   - bool: true when rendered
	HasLayer(id int) bool

	// Rect returns the normalized viewport rectangle.
	//
	// Returns:
	//   - mgl32.Vec4: x, y, width, height
	Rect() mgl32.Vec4

	// SetRect sets the normalized viewport rectangle.
	//
	// Parameters:
	//   - r: x, y, width, height
	SetRect(r mgl32.Vec4)

	// ScissorRect returns the normalized scissor rectangle.
	//
	// Returns:
	//   - mgl32.Vec4: x, y, width, height
	ScissorRect() mgl32.Vec4

	// SetScissorRect sets the normalized scissor rectangle.
	//
	// Parameters:
	//   - r: x, y, width, height
	SetScissorRect(r mgl32.Vec4)

	// Priority returns the render order; lower renders first.
	//
	// Returns:
	//   - int: the priority
	Priority() int

	// SetPriority sets the render order.
	//
	// Parameters:
	//   - p: the priority
	SetPriority(p int)

	// ClearOptions returns the clear applied at the first render action of the camera.
	//
	// Returns:
	//   - gpu.ClearOptions: color, depth and stencil clear settings
	ClearOptions() gpu.ClearOptions

	// SetClearColor sets the clear color.
	//
	// Parameters:
	//   - c: the RGBA color
	SetClearColor(c mgl32.Vec4)

	// SetClearFlags selects which buffers are cleared.
	//
	// Parameters:
	//   - color, depth, stencil: the buffers to clear
	SetClearFlags(color, depth, stencil bool)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a perspective camera with a 45 degree field of view looking down -Z.
//
// Parameters:
//   - options: functional options applied after the defaults
//
// Returns:
//   - Camera: the camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		id:                 cameraIDs.Add(1),
		fov:                45,
		aspect:             16.0 / 9.0,
		nearClip:           0.1,
		farClip:            1000,
		orthoHeight:        10,
		projMatrixDirty:    true,
		cullFaces:          true,
		frustumCulling:     true,
		enabled:            true,
		layers:             []int{0},
		rect:               mgl32.Vec4{0, 0, 1, 1},
		scissorRect:        mgl32.Vec4{0, 0, 1, 1},
		clearColor:         mgl32.Vec4{0.75, 0.75, 0.75, 1},
		clearColorBuffer:   true,
		clearDepthBuffer:   true,
		clearStencilBuffer: true,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.node == nil {
		c.node = graph.NewGraphNode(graph.WithName("Camera"))
	}
	return c
}

func (c *cameraImpl) ID() uint64                      { return c.id }
func (c *cameraImpl) Node() graph.GraphNode           { return c.node }
func (c *cameraImpl) Projection() Projection          { return c.projection }
func (c *cameraImpl) Fov() float32                    { return c.fov }
func (c *cameraImpl) Aspect() float32                 { return c.aspect }
func (c *cameraImpl) NearClip() float32               { return c.nearClip }
func (c *cameraImpl) FarClip() float32                { return c.farClip }
func (c *cameraImpl) OrthoHeight() float32            { return c.orthoHeight }
func (c *cameraImpl) Frustum() *common.Frustum        { return &c.frustum }
func (c *cameraImpl) Jitter() float32                 { return c.jitter }
func (c *cameraImpl) SetJitter(jitter float32)        { c.jitter = jitter }
func (c *cameraImpl) FlipFaces() bool                 { return c.flipFaces }
func (c *cameraImpl) SetFlipFaces(flip bool)          { c.flipFaces = flip }
func (c *cameraImpl) CullFaces() bool                 { return c.cullFaces }
func (c *cameraImpl) SetCullFaces(cull bool)          { c.cullFaces = cull }
func (c *cameraImpl) FrustumCulling() bool            { return c.frustumCulling }
func (c *cameraImpl) SetFrustumCulling(cull bool)     { c.frustumCulling = cull }
func (c *cameraImpl) Enabled() bool                   { return c.enabled }
func (c *cameraImpl) SetEnabled(enabled bool)         { c.enabled = enabled }
func (c *cameraImpl) RenderTarget() *gpu.RenderTarget { return c.renderTarget }
func (c *cameraImpl) Layers() []int                   { return c.layers }
func (c *cameraImpl) SetLayers(ids []int)             { c.layers = ids }
func (c *cameraImpl) Rect() mgl32.Vec4                { return c.rect }
func (c *cameraImpl) SetRect(r mgl32.Vec4)            { c.rect = r }
func (c *cameraImpl) ScissorRect() mgl32.Vec4         { return c.scissorRect }
func (c *cameraImpl) SetScissorRect(r mgl32.Vec4)     { c.scissorRect = r }
func (c *cameraImpl) Priority() int                   { return c.priority }
func (c *cameraImpl) SetPriority(p int)               { c.priority = p }
func (c *cameraImpl) SetClearColor(col mgl32.Vec4)    { c.clearColor = col }

func (c *cameraImpl) SetRenderTarget(rt *gpu.RenderTarget) { c.renderTarget = rt }

func (c *cameraImpl) SetProjection(p Projection) {
	c.projection = p
	c.projMatrixDirty = true
}

func (c *cameraImpl) SetFov(fov float32) {
	c.fov = fov
	c.projMatrixDirty = true
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.aspect = aspect
	c.projMatrixDirty = true
}

func (c *cameraImpl) SetNearClip(near float32) {
	c.nearClip = near
	c.projMatrixDirty = true
}

func (c *cameraImpl) SetFarClip(far float32) {
	c.farClip = far
	c.projMatrixDirty = true
}

func (c *cameraImpl) SetOrthoHeight(h float32) {
	c.orthoHeight = h
	c.projMatrixDirty = true
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	if c.projMatrixDirty {
		if c.projection == ProjectionPerspective {
			c.projMatrix = common.Perspective(c.fov, c.aspect, c.nearClip, c.farClip)
		} else {
			c.projMatrix = common.Ortho(c.orthoHeight, c.aspect, c.nearClip, c.farClip)
		}
		c.projMatrixDirty = false
	}
	return c.projMatrix
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	return c.node.WorldTransform().Inv()
}

func (c *cameraImpl) UpdateFrustum(viewProj mgl32.Mat4) {
	c.frustum.SetFromMat4(viewProj)
}

func (c *cameraImpl) ScreenSize(sphere common.BoundingSphere) float32 {
	if c.projection == ProjectionOrthographic {
		return sphere.Radius / c.orthoHeight
	}
	// distance along the view direction
	toSphere := sphere.Center.Sub(c.node.Position())
	dist := toSphere.Dot(c.node.Forward())
	if dist < c.nearClip {
		return 0
	}
	return sphere.Radius / (dist * math32.Tan(mgl32.DegToRad(c.fov)*0.5))
}

func (c *cameraImpl) FrustumCorners(near, far float32) [8]mgl32.Vec3 {
	var x, y [2]float32
	if c.projection == ProjectionPerspective {
		t := math32.Tan(mgl32.DegToRad(c.fov) * 0.5)
		y = [2]float32{near * t, far * t}
	} else {
		y = [2]float32{c.orthoHeight, c.orthoHeight}
	}
	x = [2]float32{y[0] * c.aspect, y[1] * c.aspect}
	d := [2]float32{near, far}

	var corners [8]mgl32.Vec3
	for i := 0; i < 2; i++ {
		corners[i*4+0] = mgl32.Vec3{-x[i], -y[i], -d[i]}
		corners[i*4+1] = mgl32.Vec3{x[i], -y[i], -d[i]}
		corners[i*4+2] = mgl32.Vec3{x[i], y[i], -d[i]}
		corners[i*4+3] = mgl32.Vec3{-x[i], y[i], -d[i]}
	}
	return corners
}

func (c *cameraImpl) HasLayer(id int) bool {
	for _, l := range c.layers {
		if l == id {
			return true
		}
	}
	return false
}

func (c *cameraImpl) ClearOptions() gpu.ClearOptions {
	var flags gpu.ClearFlags
	if c.clearColorBuffer {
		flags |= gpu.ClearColor
	}
	if c.clearDepthBuffer {
		flags |= gpu.ClearDepth
	}
	if c.clearStencilBuffer {
		flags |= gpu.ClearStencil
	}
	return gpu.ClearOptions{Flags: flags, Color: c.clearColor, Depth: 1}
}

func (c *cameraImpl) SetClearFlags(color, depth, stencil bool) {
	c.clearColorBuffer = color
	c.clearDepthBuffer = depth
	c.clearStencilBuffer = stencil
}

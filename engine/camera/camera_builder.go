package camera

import (
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

type CameraBuilderOption func(*cameraImpl)

// WithNode sets the node that provides the camera pose.
//
// Parameters:
//   - node: the graph node
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's node
func WithNode(node graph.GraphNode) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.node = node
	}
}

// WithProjection sets the projection type.
//
// Parameters:
//   - p: perspective or orthographic
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's projection
func WithProjection(p Projection) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.projection = p
	}
}

// WithFov sets the vertical field of view in degrees.
//
// Parameters:
//   - fov: field of view in degrees
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithClip sets the near and far plane distances.
//
// Parameters:
//   - near: the near plane distance
//   - far: the far plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the clip planes
func WithClip(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.nearClip = near
		c.farClip = far
	}
}

// WithOrthoHeight sets the half height of the orthographic view volume.
func WithOrthoHeight(h float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.orthoHeight = h
	}
}

// WithJitter enables temporal jitter with the given scale in pixels.
func WithJitter(jitter float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.jitter = jitter
	}
}

// WithFlipFaces inverts front and back faces for everything the camera draws.
func WithFlipFaces(flip bool) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.flipFaces = flip
	}
}

// WithCullFaces sets whether material face culling is honored.
func WithCullFaces(cull bool) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.cullFaces = cull
	}
}

// WithFrustumCulling enables or disables frustum culling.
func WithFrustumCulling(cull bool) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.frustumCulling = cull
	}
}

// WithRenderTarget sets the target rendered into. Nil renders to the back buffer.
func WithRenderTarget(rt *gpu.RenderTarget) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.renderTarget = rt
	}
}

// WithLayers sets the ids of the layers the camera renders.
//
// Parameters:
//   - ids: the layer ids
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's layers
func WithLayers(ids ...int) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.layers = ids
	}
}

// WithRect sets the normalized viewport rectangle.
func WithRect(r mgl32.Vec4) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.rect = r
	}
}

// WithScissorRect sets the normalized scissor rectangle.
func WithScissorRect(r mgl32.Vec4) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.scissorRect = r
	}
}

// WithPriority sets the render order; lower renders first.
func WithPriority(p int) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.priority = p
	}
}

// WithClearColor sets the clear color.
func WithClearColor(col mgl32.Vec4) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.clearColor = col
	}
}

// WithClearFlags selects which buffers are cleared at the camera's first render action.
//
// Parameters:
//   - color, depth, stencil: the buffers to clear
//
// Returns:
//   - CameraBuilderOption: a function that sets the clear flags
func WithClearFlags(color, depth, stencil bool) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.clearColorBuffer = color
		c.clearDepthBuffer = depth
		c.clearStencilBuffer = stencil
	}
}

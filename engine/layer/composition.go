package layer

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
)

// SubLayer is one entry of a composition: the opaque or the transparent half of a layer.
type SubLayer struct {
	Layer       *Layer
	Transparent bool
}

// RenderAction is one (camera, sublayer) step of a frame.
type RenderAction struct {
	Camera       camera.Camera
	Layer        *Layer
	Transparent  bool
	RenderTarget *gpu.RenderTarget

	// FirstCameraUse is set on the first action of each camera, which clears with the camera's
	// clear flags and updates its view uniforms.
	FirstCameraUse bool
	// LastCameraUse is set on the last action of each camera.
	LastCameraUse bool

	ClearColor   bool
	ClearDepth   bool
	ClearStencil bool
}

// LayerComposition orders sublayers and the cameras rendering them.
//
// Like Layer it is owned by the frame-driving goroutine.
type LayerComposition struct {
	name      string
	subLayers []SubLayer
	layers    []*Layer
	cameras   []camera.Camera

	actions []RenderAction
	dirty   bool
}

// LayerCompositionBuilderOption is a function that configures a composition during construction.
type LayerCompositionBuilderOption func(*LayerComposition)

// WithCompositionName is an option builder that sets the name of the composition.
func WithCompositionName(name string) LayerCompositionBuilderOption {
	return func(c *LayerComposition) {
		c.name = name
	}
}

// NewLayerComposition creates an empty composition.
//
// Parameters:
//   - options: functional options applied after the defaults
//
// Returns:
//   - *LayerComposition: the composition
func NewLayerComposition(options ...LayerCompositionBuilderOption) *LayerComposition {
	c := &LayerComposition{name: "Untitled", dirty: true}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *LayerComposition) Name() string             { return c.name }
func (c *LayerComposition) SubLayers() []SubLayer    { return c.subLayers }
func (c *LayerComposition) Cameras() []camera.Camera { return c.cameras }

// Layers returns each distinct layer once, in the order of first appearance.
func (c *LayerComposition) Layers() []*Layer { return c.layers }

// Push appends both halves of a layer, opaque first.
func (c *LayerComposition) Push(l *Layer) {
	c.PushOpaque(l)
	c.PushTransparent(l)
}

// PushOpaque appends the opaque half of a layer.
func (c *LayerComposition) PushOpaque(l *Layer) {
	c.Insert(SubLayer{Layer: l}, len(c.subLayers))
}

// PushTransparent appends the transparent half of a layer.
func (c *LayerComposition) PushTransparent(l *Layer) {
	c.Insert(SubLayer{Layer: l, Transparent: true}, len(c.subLayers))
}

// Insert places a sublayer at index. A sublayer already present is ignored.
//
// Parameters:
//   - sub: the sublayer
//   - index: the position, clamped to the list
func (c *LayerComposition) Insert(sub SubLayer, index int) {
	if !logger.Assert(sub.Layer != nil, "nil layer inserted into composition", "composition", c.name) {
		return
	}
	if slices.Contains(c.subLayers, sub) {
		return
	}
	index = max(0, min(index, len(c.subLayers)))
	c.subLayers = slices.Insert(c.subLayers, index, sub)
	c.rebuildLayers()
}

// Remove removes both halves of a layer.
func (c *LayerComposition) Remove(l *Layer) {
	c.subLayers = slices.DeleteFunc(c.subLayers, func(s SubLayer) bool { return s.Layer == l })
	c.rebuildLayers()
}

func (c *LayerComposition) rebuildLayers() {
	c.layers = c.layers[:0]
	for _, s := range c.subLayers {
		if !slices.Contains(c.layers, s.Layer) {
			c.layers = append(c.layers, s.Layer)
		}
	}
	c.dirty = true
}

// LayerByID returns the first layer with id, or nil.
func (c *LayerComposition) LayerByID(id int) *Layer {
	for _, l := range c.layers {
		if l.id == id {
			return l
		}
	}
	return nil
}

// LayerByName returns the first layer with name, or nil.
func (c *LayerComposition) LayerByName(name string) *Layer {
	for _, l := range c.layers {
		if l.name == name {
			return l
		}
	}
	return nil
}

// AddCamera adds a camera, keeping cameras ordered by ascending priority.
func (c *LayerComposition) AddCamera(cam camera.Camera) {
	if slices.Contains(c.cameras, cam) {
		return
	}
	c.cameras = append(c.cameras, cam)
	c.SortCameras()
}

// RemoveCamera removes a camera together with the per-camera state layers and lights hold for it.
func (c *LayerComposition) RemoveCamera(cam camera.Camera) {
	i := slices.Index(c.cameras, cam)
	if i < 0 {
		return
	}
	c.cameras = slices.Delete(c.cameras, i, i+1)
	seen := make(map[*light.Light]struct{})
	for _, l := range c.layers {
		l.ForgetCamera(cam)
		for _, lt := range l.lights {
			if _, ok := seen[lt]; !ok {
				seen[lt] = struct{}{}
				lt.RemoveRenderData(cam)
			}
		}
	}
	c.dirty = true
}

// SortCameras reorders cameras by priority. Call it after changing a camera's priority.
func (c *LayerComposition) SortCameras() {
	slices.SortStableFunc(c.cameras, func(a, b camera.Camera) int { return a.Priority() - b.Priority() })
	c.dirty = true
}

// MarkDirty forces the render actions to be rebuilt, needed after a camera's layers or render
// target change.
func (c *LayerComposition) MarkDirty() { c.dirty = true }

// RenderActions returns the steps of a frame: for each enabled camera in priority order, each
// enabled sublayer the camera renders, in composition order.
//
// Returns:
//   - []RenderAction: the actions, rebuilt only when the composition changed
func (c *LayerComposition) RenderActions() []RenderAction {
	if !c.dirty {
		return c.actions
	}
	c.dirty = false
	c.actions = c.actions[:0]
	for _, cam := range c.cameras {
		if !cam.Enabled() {
			continue
		}
		first := len(c.actions)
		for _, sub := range c.subLayers {
			if !sub.Layer.enabled || !cam.HasLayer(sub.Layer.id) {
				continue
			}
			action := RenderAction{
				Camera:       cam,
				Layer:        sub.Layer,
				Transparent:  sub.Transparent,
				RenderTarget: cam.RenderTarget(),
			}
			if len(c.actions) == first {
				action.FirstCameraUse = true
				clearOpts := cam.ClearOptions()
				action.ClearColor = clearOpts.Flags&gpu.ClearColor != 0
				action.ClearDepth = clearOpts.Flags&gpu.ClearDepth != 0
				action.ClearStencil = clearOpts.Flags&gpu.ClearStencil != 0
			} else if !sub.Transparent {
				action.ClearColor, action.ClearDepth, action.ClearStencil = sub.Layer.ClearFlags()
			}
			c.actions = append(c.actions, action)
		}
		if len(c.actions) > first {
			c.actions[len(c.actions)-1].LastCameraUse = true
		}
	}
	return c.actions
}

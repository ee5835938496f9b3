// Package layer groups mesh instances and lights into render layers and orders those layers and
// the cameras viewing them into the render actions of a frame.
package layer

import (
	"cmp"
	"hash/fnv"
	"slices"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/mesh_instance"
)

// SortMode selects how the visible instances of a layer bucket are ordered before submission.
type SortMode int

const (
	// SortNone keeps insertion order.
	SortNone SortMode = iota
	// SortManual orders by explicit draw order.
	SortManual
	// SortMaterialMesh groups draws sharing a material.
	SortMaterialMesh
	// SortBackToFront orders far to near, used for blending.
	SortBackToFront
	// SortFrontToBack orders near to far, for early depth rejection.
	SortFrontToBack
)

// Well-known layer ids.
const (
	LayerIDWorld = 0
	LayerIDUI    = 1
)

// CulledInstances are the instances of one layer that passed culling for one camera this frame.
type CulledInstances struct {
	Opaque      []*mesh_instance.MeshInstance
	Transparent []*mesh_instance.MeshInstance
}

// Reset empties both buckets, keeping their capacity.
func (c *CulledInstances) Reset() {
	clear(c.Opaque)
	clear(c.Transparent)
	c.Opaque = c.Opaque[:0]
	c.Transparent = c.Transparent[:0]
}

// Bucket returns the transparent or opaque bucket.
func (c *CulledInstances) Bucket(transparent bool) []*mesh_instance.MeshInstance {
	if transparent {
		return c.Transparent
	}
	return c.Opaque
}

// Layer is a named set of mesh instances, shadow casters and lights rendered together.
//
// A layer is owned by the goroutine driving the frame; mutation from other goroutines must be
// serialized with rendering by the caller.
type Layer struct {
	id      int
	name    string
	enabled bool

	meshInstances    []*mesh_instance.MeshInstance
	meshInstancesSet map[*mesh_instance.MeshInstance]struct{}
	shadowCasters    []*mesh_instance.MeshInstance
	shadowCastersSet map[*mesh_instance.MeshInstance]struct{}

	lights       []*light.Light
	lightsSet    map[*light.Light]struct{}
	splitLights  [3][]*light.Light
	sortedLights []*light.Light

	opaqueSortMode      SortMode
	transparentSortMode SortMode

	clearColorBuffer   bool
	clearDepthBuffer   bool
	clearStencilBuffer bool

	culled map[camera.Camera]*CulledInstances

	lightHash      uint32
	lightHashDirty bool
}

// NewLayer creates an enabled layer sorting opaque draws by material and transparent draws back
// to front.
//
// Parameters:
//   - options: functional options applied after the defaults
//
// Returns:
//   - *Layer: the layer
func NewLayer(options ...LayerBuilderOption) *Layer {
	l := &Layer{
		name:                "Untitled",
		enabled:             true,
		meshInstancesSet:    make(map[*mesh_instance.MeshInstance]struct{}),
		shadowCastersSet:    make(map[*mesh_instance.MeshInstance]struct{}),
		lightsSet:           make(map[*light.Light]struct{}),
		opaqueSortMode:      SortMaterialMesh,
		transparentSortMode: SortBackToFront,
		culled:              make(map[camera.Camera]*CulledInstances),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *Layer) ID() int                                       { return l.id }
func (l *Layer) Name() string                                  { return l.name }
func (l *Layer) Enabled() bool                                 { return l.enabled }
func (l *Layer) SetEnabled(enabled bool)                       { l.enabled = enabled }
func (l *Layer) MeshInstances() []*mesh_instance.MeshInstance  { return l.meshInstances }
func (l *Layer) ShadowCasters() []*mesh_instance.MeshInstance  { return l.shadowCasters }
func (l *Layer) Lights() []*light.Light                        { return l.lights }
func (l *Layer) OpaqueSortMode() SortMode                      { return l.opaqueSortMode }
func (l *Layer) TransparentSortMode() SortMode                 { return l.transparentSortMode }
func (l *Layer) SetOpaqueSortMode(mode SortMode)               { l.opaqueSortMode = mode }
func (l *Layer) SetTransparentSortMode(mode SortMode)          { l.transparentSortMode = mode }
func (l *Layer) LightsOfType(t light.LightType) []*light.Light { return l.splitLights[t] }

// ClearFlags returns the buffers cleared when the layer is not the first one a camera renders.
func (l *Layer) ClearFlags() (color, depth, stencil bool) {
	return l.clearColorBuffer, l.clearDepthBuffer, l.clearStencilBuffer
}

// AddMeshInstances appends instances not already in the layer. Unless skipShadowCasters is set,
// instances that cast shadows are also added to the shadow casters.
//
// Parameters:
//   - mis: the instances to add
//   - skipShadowCasters: true to leave the shadow caster list untouched
func (l *Layer) AddMeshInstances(mis []*mesh_instance.MeshInstance, skipShadowCasters bool) {
	for _, mi := range mis {
		if _, ok := l.meshInstancesSet[mi]; !ok {
			l.meshInstancesSet[mi] = struct{}{}
			l.meshInstances = append(l.meshInstances, mi)
		}
	}
	if !skipShadowCasters {
		l.AddShadowCasters(mis)
	}
}

// RemoveMeshInstances removes instances from the layer and, unless skipShadowCasters is set, from
// the shadow casters.
func (l *Layer) RemoveMeshInstances(mis []*mesh_instance.MeshInstance, skipShadowCasters bool) {
	l.meshInstances = removeAll(l.meshInstances, l.meshInstancesSet, mis)
	if !skipShadowCasters {
		l.RemoveShadowCasters(mis)
	}
}

// ClearMeshInstances removes every instance from the layer and, unless skipShadowCasters is set,
// every shadow caster.
func (l *Layer) ClearMeshInstances(skipShadowCasters bool) {
	clear(l.meshInstances)
	l.meshInstances = l.meshInstances[:0]
	clear(l.meshInstancesSet)
	if !skipShadowCasters {
		clear(l.shadowCasters)
		l.shadowCasters = l.shadowCasters[:0]
		clear(l.shadowCastersSet)
	}
	for _, c := range l.culled {
		c.Reset()
	}
}

// AddShadowCasters appends the shadow casting instances of mis not already listed.
func (l *Layer) AddShadowCasters(mis []*mesh_instance.MeshInstance) {
	for _, mi := range mis {
		if !mi.CastShadow() {
			continue
		}
		if _, ok := l.shadowCastersSet[mi]; !ok {
			l.shadowCastersSet[mi] = struct{}{}
			l.shadowCasters = append(l.shadowCasters, mi)
		}
	}
}

// RemoveShadowCasters removes instances from the shadow casters.
func (l *Layer) RemoveShadowCasters(mis []*mesh_instance.MeshInstance) {
	l.shadowCasters = removeAll(l.shadowCasters, l.shadowCastersSet, mis)
}

func removeAll[T comparable](list []T, set map[T]struct{}, remove []T) []T {
	n := 0
	for _, v := range remove {
		if _, ok := set[v]; ok {
			delete(set, v)
			n++
		}
	}
	if n == 0 {
		return list
	}
	kept := list[:0]
	for _, v := range list {
		if _, ok := set[v]; ok {
			kept = append(kept, v)
		}
	}
	var zero T
	for i := len(kept); i < len(list); i++ {
		list[i] = zero
	}
	return kept
}

// AddLight adds a light to the layer. Adding a light twice is a no-op.
func (l *Layer) AddLight(lt *light.Light) {
	if _, ok := l.lightsSet[lt]; ok {
		return
	}
	l.lightsSet[lt] = struct{}{}
	l.lights = append(l.lights, lt)
	l.splitLights[lt.Type()] = append(l.splitLights[lt.Type()], lt)
	l.lightHashDirty = true
}

// RemoveLight removes a light from the layer.
func (l *Layer) RemoveLight(lt *light.Light) {
	if _, ok := l.lightsSet[lt]; !ok {
		return
	}
	delete(l.lightsSet, lt)
	l.lights = slices.DeleteFunc(l.lights, func(v *light.Light) bool { return v == lt })
	l.splitLights[lt.Type()] = slices.DeleteFunc(l.splitLights[lt.Type()], func(v *light.Light) bool { return v == lt })
	l.lightHashDirty = true
}

// HasLight reports whether the light belongs to the layer.
func (l *Layer) HasLight(lt *light.Light) bool {
	_, ok := l.lightsSet[lt]
	return ok
}

// MarkLightsDirty forces the light hash to be recomputed, needed after a light changes a property
// covered by its key.
func (l *Layer) MarkLightsDirty() { l.lightHashDirty = true }

// LightHash returns a hash of the shader-affecting state of the layer's lights. Layers with equal
// hashes share forward shader variants.
//
// Returns:
//   - uint32: the hash, zero when the layer has no lights
func (l *Layer) LightHash() uint32 {
	if l.lightHashDirty {
		l.updateLights()
	}
	return l.lightHash
}

// SortedLights returns the lights in the order forward shaders evaluate them: ordered by key, then
// by id.
func (l *Layer) SortedLights() []*light.Light {
	if l.lightHashDirty {
		l.updateLights()
	}
	return l.sortedLights
}

func (l *Layer) updateLights() {
	l.lightHashDirty = false
	l.sortedLights = append(l.sortedLights[:0], l.lights...)
	slices.SortFunc(l.sortedLights, func(a, b *light.Light) int {
		return cmp.Or(cmp.Compare(a.Key(), b.Key()), cmp.Compare(a.ID(), b.ID()))
	})
	if len(l.sortedLights) == 0 {
		l.lightHash = 0
		return
	}
	h := fnv.New32a()
	var buf [4]byte
	for _, lt := range l.sortedLights {
		k := lt.Key()
		buf[0], buf[1], buf[2], buf[3] = byte(k), byte(k>>8), byte(k>>16), byte(k>>24)
		h.Write(buf[:])
	}
	l.lightHash = h.Sum32()
}

// CulledInstances returns the culling buckets of cam, creating them on first use.
//
// Parameters:
//   - cam: the viewing camera
//
// Returns:
//   - *CulledInstances: the buckets, reused across frames
func (l *Layer) CulledInstances(cam camera.Camera) *CulledInstances {
	c, ok := l.culled[cam]
	if !ok {
		c = &CulledInstances{}
		l.culled[cam] = c
	}
	return c
}

// ForgetCamera drops the culling buckets of cam.
func (l *Layer) ForgetCamera(cam camera.Camera) {
	delete(l.culled, cam)
}

// SortVisible orders one culled bucket of cam by the layer's sort mode for that bucket. Distance
// modes store the sort distance on each instance first so the draw comparator can read it.
//
// Parameters:
//   - cam: the viewing camera
//   - transparent: true to sort the transparent bucket
func (l *Layer) SortVisible(cam camera.Camera, transparent bool) {
	culled := l.CulledInstances(cam)
	mode := l.opaqueSortMode
	list := culled.Opaque
	if transparent {
		mode = l.transparentSortMode
		list = culled.Transparent
	}
	if mode == SortNone {
		return
	}

	for _, mi := range list {
		switch mode {
		case SortBackToFront:
			mi.SetZdist(mi.CalculateSortDistance(cam))
			mi.SetZdist2(0)
		case SortFrontToBack:
			mi.SetZdist(0)
			mi.SetZdist2(mi.CalculateSortDistance(cam))
		default:
			mi.SetZdist(0)
			mi.SetZdist2(0)
		}
	}
	slices.SortStableFunc(list, mesh_instance.Compare)
}

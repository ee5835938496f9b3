// Package mesh_instance binds a mesh, a material and a graph node into one drawable and caches the
// state derived from them: the world bounds and the shader variants used by each render pass.
package mesh_instance

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// GSplatInstance is the per-frame hook of a gaussian splat drawable.
type GSplatInstance interface {
	// Update refreshes the splat data of the current frame. It runs once per frame for instances
	// visible to any camera.
	Update()
}

// VisibleFunc overrides frustum culling of one mesh instance.
type VisibleFunc func(cam camera.Camera) bool

// SortDistanceFunc overrides the sort distance of one mesh instance.
type SortDistanceFunc func(mi *MeshInstance, cameraPosition, cameraForward mgl32.Vec3) float32

var meshInstanceIDs atomic.Uint64

// MeshInstance is one drawable: a refcounted mesh reference, a material and the graph node
// supplying its transform.
type MeshInstance struct {
	id       uint64
	name     string
	mesh     *model.Mesh
	material material.Material
	node     graph.GraphNode

	castShadow       bool
	receiveShadow    bool
	cull             bool
	visible          bool
	visibleThisFrame bool
	isStatic         bool
	mask             uint32
	renderStyle      model.RenderStyle

	drawOrder       int
	zdist           float32
	zdist2          float32
	sortLayer       int
	key             uint32
	flipFacesFactor float32

	customAabb  *common.BoundingBox
	aabb        common.BoundingBox
	aabbValid   bool
	aabbVer     uint64
	meshAabbVer uint64

	skinInstance    *model.SkinInstance
	morphInstance   *model.MorphInstance
	gsplat          GSplatInstance
	instancingVB    *gpu.VertexBuffer
	instancingCount int
	screenSpace     bool

	shaderDefs  material.ShaderDefs
	shaderCache map[material.ShaderPass]map[uint32]*ShaderInstance
	parameters  map[string]any

	isVisibleFunc    VisibleFunc
	sortDistanceFunc SortDistanceFunc

	destroyed bool
}

// NewMeshInstance creates a visible, shadow casting and receiving, frustum culled instance.
//
// Parameters:
//   - mesh: the geometry, whose reference count is incremented
//   - mat: the material, nil for the default material
//   - node: the graph node supplying the transform, nil for a new unparented node
//   - options: functional options applied after the defaults
//
// Returns:
//   - *MeshInstance: the instance
func NewMeshInstance(mesh *model.Mesh, mat material.Material, node graph.GraphNode, options ...MeshInstanceBuilderOption) *MeshInstance {
	mi := &MeshInstance{
		id:              meshInstanceIDs.Add(1),
		name:            "MeshInstance",
		material:        mat,
		node:            node,
		castShadow:      true,
		receiveShadow:   true,
		cull:            true,
		visible:         true,
		mask:            1,
		flipFacesFactor: 1,
		shaderCache:     make(map[material.ShaderPass]map[uint32]*ShaderInstance),
		parameters:      make(map[string]any),
	}
	if mi.node == nil {
		mi.node = graph.NewGraphNode()
	}
	for _, opt := range options {
		opt(mi)
	}
	mi.SetMesh(mesh)
	mi.updateShaderDefs()
	mi.UpdateKey()
	return mi
}

func (mi *MeshInstance) ID() uint64                          { return mi.id }
func (mi *MeshInstance) Name() string                        { return mi.name }
func (mi *MeshInstance) Mesh() *model.Mesh                   { return mi.mesh }
func (mi *MeshInstance) Material() material.Material         { return mi.material }
func (mi *MeshInstance) Node() graph.GraphNode               { return mi.node }
func (mi *MeshInstance) CastShadow() bool                    { return mi.castShadow }
func (mi *MeshInstance) ReceiveShadow() bool                 { return mi.receiveShadow }
func (mi *MeshInstance) Cull() bool                          { return mi.cull }
func (mi *MeshInstance) Visible() bool                       { return mi.visible }
func (mi *MeshInstance) VisibleThisFrame() bool              { return mi.visibleThisFrame }
func (mi *MeshInstance) IsStatic() bool                      { return mi.isStatic }
func (mi *MeshInstance) Mask() uint32                        { return mi.mask }
func (mi *MeshInstance) RenderStyle() model.RenderStyle      { return mi.renderStyle }
func (mi *MeshInstance) DrawOrder() int                      { return mi.drawOrder }
func (mi *MeshInstance) Zdist() float32                      { return mi.zdist }
func (mi *MeshInstance) Zdist2() float32                     { return mi.zdist2 }
func (mi *MeshInstance) SortLayer() int                      { return mi.sortLayer }
func (mi *MeshInstance) Key() uint32                         { return mi.key }
func (mi *MeshInstance) FlipFacesFactor() float32            { return mi.flipFacesFactor }
func (mi *MeshInstance) SkinInstance() *model.SkinInstance   { return mi.skinInstance }
func (mi *MeshInstance) MorphInstance() *model.MorphInstance { return mi.morphInstance }
func (mi *MeshInstance) GSplat() GSplatInstance              { return mi.gsplat }
func (mi *MeshInstance) InstancingBuffer() *gpu.VertexBuffer { return mi.instancingVB }
func (mi *MeshInstance) InstancingCount() int                { return mi.instancingCount }
func (mi *MeshInstance) ScreenSpace() bool                   { return mi.screenSpace }
func (mi *MeshInstance) ShaderDefs() material.ShaderDefs     { return mi.shaderDefs }
func (mi *MeshInstance) Destroyed() bool                     { return mi.destroyed }

func (mi *MeshInstance) SetCastShadow(cast bool)                 { mi.castShadow = cast }
func (mi *MeshInstance) SetCull(cull bool)                       { mi.cull = cull }
func (mi *MeshInstance) SetVisible(visible bool)                 { mi.visible = visible }
func (mi *MeshInstance) SetVisibleThisFrame(visible bool)        { mi.visibleThisFrame = visible }
func (mi *MeshInstance) SetStatic(static bool)                   { mi.isStatic = static }
func (mi *MeshInstance) SetMask(mask uint32)                     { mi.mask = mask }
func (mi *MeshInstance) SetRenderStyle(style model.RenderStyle)  { mi.renderStyle = style }
func (mi *MeshInstance) SetDrawOrder(order int)                  { mi.drawOrder = order }
func (mi *MeshInstance) SetZdist(d float32)                      { mi.zdist = d }
func (mi *MeshInstance) SetZdist2(d float32)                     { mi.zdist2 = d }
func (mi *MeshInstance) SetGSplat(g GSplatInstance)              { mi.gsplat = g }
func (mi *MeshInstance) SetVisibleFunc(fn VisibleFunc)           { mi.isVisibleFunc = fn }
func (mi *MeshInstance) SetSortDistanceFunc(fn SortDistanceFunc) { mi.sortDistanceFunc = fn }

// SetFlipFaces inverts the resolved cull mode of this instance.
func (mi *MeshInstance) SetFlipFaces(flip bool) {
	mi.flipFacesFactor = 1
	if flip {
		mi.flipFacesFactor = -1
	}
}

// MaxSortLayers bounds the layer index packed into the sort key.
const MaxSortLayers = 64

// SetSortLayer sets the layer index packed into the sort key. Indices outside [0, MaxSortLayers)
// are clamped.
func (mi *MeshInstance) SetSortLayer(index int) {
	if !logger.Assert(index >= 0 && index < MaxSortLayers, "sort layer out of range",
		"meshInstance", mi.name, "index", index, "max", MaxSortLayers) {
		index = common.Clamp(index, 0, MaxSortLayers-1)
	}
	mi.sortLayer = index
	mi.UpdateKey()
}

// SetMesh replaces the mesh, moving the reference from the old mesh to the new one.
//
// Parameters:
//   - mesh: the new mesh, may be nil
func (mi *MeshInstance) SetMesh(mesh *model.Mesh) {
	if mesh == mi.mesh {
		return
	}
	if mi.mesh != nil {
		mi.mesh.DecRefCount()
	}
	mi.mesh = mesh
	if mesh != nil {
		mesh.IncRefCount()
	}
	mi.aabbValid = false
}

// SetMaterial replaces the material and drops the shader instances built for the old one.
//
// Parameters:
//   - mat: the new material, nil for the default material
func (mi *MeshInstance) SetMaterial(mat material.Material) {
	if mat == mi.material {
		return
	}
	mi.ClearShaders()
	mi.material = mat
	mi.UpdateKey()
}

// EnsureMaterial assigns the default material when none is set.
//
// Parameters:
//   - device: the device the instance renders with
func (mi *MeshInstance) EnsureMaterial(device gpu.Device) {
	if mi.material == nil {
		logger.Logger().Debug("mesh instance has no material, using default", "meshInstance", mi.name, "device", device.DeviceType())
		mi.SetMaterial(material.Default())
	}
}

// Transparent reports whether the material blends, which places the instance in the transparent
// bucket.
func (mi *MeshInstance) Transparent() bool {
	return mi.material != nil && mi.material.Transparent()
}

// SetSkinInstance attaches the skinning state. Changing it rebuilds the shader defs.
func (mi *MeshInstance) SetSkinInstance(si *model.SkinInstance) {
	mi.skinInstance = si
	mi.aabbValid = false
	mi.updateShaderDefs()
}

// SetMorphInstance attaches the morph weights. Changing it rebuilds the shader defs.
func (mi *MeshInstance) SetMorphInstance(morph *model.MorphInstance) {
	mi.morphInstance = morph
	mi.aabbValid = false
	mi.updateShaderDefs()
}

// SetInstancing draws count copies per draw using the per-instance matrices of vb. A nil buffer
// or zero count disables instancing.
//
// Parameters:
//   - vb: the instance buffer holding one mat4 per instance
//   - count: the number of instances drawn
func (mi *MeshInstance) SetInstancing(vb *gpu.VertexBuffer, count int) {
	mi.instancingVB = vb
	mi.instancingCount = count
	if vb == nil {
		mi.instancingCount = 0
	}
	mi.updateShaderDefs()
}

// SetReceiveShadow toggles shadow receiving. Changing it rebuilds the shader defs.
func (mi *MeshInstance) SetReceiveShadow(receive bool) {
	mi.receiveShadow = receive
	mi.updateShaderDefs()
}

// SetScreenSpace marks the instance as drawn in normalized device coordinates.
func (mi *MeshInstance) SetScreenSpace(screenSpace bool) {
	mi.screenSpace = screenSpace
	mi.updateShaderDefs()
}

func (mi *MeshInstance) updateShaderDefs() {
	var defs material.ShaderDefs
	if mi.skinInstance != nil {
		defs |= material.DefSkin
	}
	if mi.morphInstance != nil {
		defs |= material.DefMorph
	}
	if mi.instancingCount > 0 {
		defs |= material.DefInstancing
	}
	if !mi.receiveShadow {
		defs |= material.DefNoShadow
	}
	if mi.screenSpace {
		defs |= material.DefScreenSpace
	}
	if defs != mi.shaderDefs {
		mi.shaderDefs = defs
		mi.ClearShaders()
	}
}

// UpdateKey repacks the forward sort key: the layer index in the top six bits, then an opaque flag,
// then 25 bits of material id.
func (mi *MeshInstance) UpdateKey() {
	var opaque, materialID uint32
	if mi.material == nil || !mi.material.Transparent() {
		opaque = 1
	}
	if mi.material != nil {
		materialID = mi.material.ID()
	}
	mi.key = uint32(mi.sortLayer&(MaxSortLayers-1))<<26 | opaque<<25 | materialID&0x1ffffff
}

// SetCustomAabb overrides the mesh bounds with a box in the node's local space.
//
// Parameters:
//   - aabb: the local box, nil to restore mesh-derived bounds
func (mi *MeshInstance) SetCustomAabb(aabb *common.BoundingBox) {
	if aabb == nil {
		mi.customAabb = nil
	} else {
		box := *aabb
		mi.customAabb = &box
	}
	mi.aabbValid = false
}

// Aabb returns the world-space bounds.
//
// A custom box is transformed on every read. Skinned instances are rebuilt on every read from
// the bones flagged as used, since bones move every frame. Their bone bounds are computed on the
// first read when the mesh was built without them. Other instances reuse the cached box
// until the node or the mesh bounds version changes.
//
// Returns:
//   - common.BoundingBox: the world bounds
func (mi *MeshInstance) Aabb() common.BoundingBox {
	if mi.customAabb != nil {
		mi.aabb.SetFromTransformedAabb(*mi.customAabb, mi.node.WorldTransform())
		return mi.aabb
	}

	if mi.mesh == nil {
		return mi.aabb
	}

	if mi.skinInstance != nil {
		mi.mesh.EnsureBoneAabbs()
		mi.aabb = mi.skinnedAabb()
		return mi.aabb
	}

	nodeVer, meshVer := mi.node.AabbVer(), mi.mesh.AabbVer()
	if mi.aabbValid && nodeVer == mi.aabbVer && meshVer == mi.meshAabbVer {
		return mi.aabb
	}
	local := mi.mesh.Aabb()
	if morph := mi.mesh.Morph(); morph != nil && mi.morphInstance != nil {
		local = morph.Aabb(local)
	}
	mi.aabb.SetFromTransformedAabb(local, mi.node.WorldTransform())
	mi.aabbVer, mi.meshAabbVer = nodeVer, meshVer
	mi.aabbValid = true
	return mi.aabb
}

func (mi *MeshInstance) skinnedAabb() common.BoundingBox {
	var (
		result common.BoundingBox
		bone   common.BoundingBox
		first  = true
	)
	bones := mi.skinInstance.Bones()
	boneAabbs := mi.mesh.BoneAabbs()
	for i, used := range mi.mesh.BoneUsed() {
		if !used || i >= len(bones) || bones[i] == nil {
			continue
		}
		bone.SetFromTransformedAabb(boneAabbs[i], bones[i].WorldTransform())
		if first {
			result = bone
			first = false
		} else {
			result.Add(bone)
		}
	}
	if first {
		result.SetFromTransformedAabb(mi.mesh.Aabb(), mi.node.WorldTransform())
	}
	if morph := mi.mesh.Morph(); morph != nil && mi.morphInstance != nil {
		var zero common.BoundingBox
		delta := morph.Aabb(zero)
		result.SetMinMax(result.Min().Add(delta.Min()), result.Max().Add(delta.Max()))
	}
	return result
}

// IsVisible tests the instance against the camera frustum, or calls the custom visibility hook
// when one is set.
//
// Parameters:
//   - cam: the camera whose frustum was updated this frame
//
// Returns:
//   - bool: true when the bounding sphere is at least partially inside
func (mi *MeshInstance) IsVisible(cam camera.Camera) bool {
	if mi.isVisibleFunc != nil {
		return mi.isVisibleFunc(cam)
	}
	sphere := mi.Aabb().BoundingSphere()
	return cam.Frustum().ContainsSphere(sphere) != common.SphereOutside
}

// CalculateSortDistance returns the distance of the bounds center along the camera forward axis,
// or the value of the custom sort distance hook.
//
// Parameters:
//   - cam: the camera the draws are sorted for
//
// Returns:
//   - float32: the signed distance
func (mi *MeshInstance) CalculateSortDistance(cam camera.Camera) float32 {
	position := cam.Node().Position()
	forward := cam.Node().Forward()
	if mi.sortDistanceFunc != nil {
		return mi.sortDistanceFunc(mi, position, forward)
	}
	aabb := mi.Aabb()
	return aabb.Center.Sub(position).Dot(forward)
}

// SetParameter stores a per-instance shader parameter, pushed after the material parameters.
func (mi *MeshInstance) SetParameter(name string, value any) { mi.parameters[name] = value }

// Parameter returns a per-instance shader parameter, or nil.
func (mi *MeshInstance) Parameter(name string) any { return mi.parameters[name] }

// DeleteParameter removes a per-instance shader parameter.
func (mi *MeshInstance) DeleteParameter(name string) { delete(mi.parameters, name) }

// SetParameters pushes every per-instance parameter into the device scope.
func (mi *MeshInstance) SetParameters(device gpu.Device) {
	scope := device.Scope()
	for name, value := range mi.parameters {
		scope.Resolve(name).SetValue(value)
	}
}

// GetShaderInstance returns the shader instance of a pass and light set, building it through the
// material on a miss. The cache is keyed per pass, then per light hash; the instance's shader defs
// are constant between cache clears.
//
// Parameters:
//   - pass: the render pass
//   - lightHash: the hash of the lights the shader evaluates
//   - device: the device compiling the shader
//   - params: the remaining variant parameters (lights and clustering)
//
// Returns:
//   - *ShaderInstance: the instance, nil when the material produced no shader
func (mi *MeshInstance) GetShaderInstance(pass material.ShaderPass, lightHash uint32, device gpu.Device, params material.ShaderVariantParams) *ShaderInstance {
	byHash := mi.shaderCache[pass]
	if byHash == nil {
		byHash = make(map[uint32]*ShaderInstance)
		mi.shaderCache[pass] = byHash
	}
	if si, ok := byHash[lightHash]; ok {
		return si
	}

	mi.EnsureMaterial(device)
	params.Pass = pass
	params.Defs = mi.shaderDefs
	params.LightHash = lightHash
	shader := mi.material.GetShaderVariant(device, params)
	if shader == nil {
		return nil
	}
	si := NewShaderInstance(shader)
	byHash[lightHash] = si
	return si
}

// NumShaderInstances returns the number of cached shader instances across passes.
func (mi *MeshInstance) NumShaderInstances() int {
	n := 0
	for _, byHash := range mi.shaderCache {
		n += len(byHash)
	}
	return n
}

// ClearShaders destroys every cached shader instance. Shaders themselves belong to the material.
func (mi *MeshInstance) ClearShaders() {
	for pass, byHash := range mi.shaderCache {
		for _, si := range byHash {
			si.Destroy()
		}
		delete(mi.shaderCache, pass)
	}
}

// Destroy releases the mesh reference and the shader instances. A second call is a logged no-op.
func (mi *MeshInstance) Destroy() {
	if !logger.Assert(!mi.destroyed, "mesh instance destroyed twice", "meshInstance", mi.name) {
		return
	}
	mi.ClearShaders()
	mi.SetMesh(nil)
	mi.destroyed = true
}

package mesh_instance

import (
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitMesh() *model.Mesh {
	return model.NewMesh(model.WithAabb(common.NewBoundingBoxMinMax(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})))
}

func TestAabbCachedUntilVersionChanges(t *testing.T) {
	node := graph.NewGraphNode(graph.WithLocalPosition(mgl32.Vec3{5, 0, 0}))
	mesh := unitMesh()
	mi := NewMeshInstance(mesh, nil, node)

	first := mi.Aabb()
	assert.Equal(t, mgl32.Vec3{4, -1, -1}, first.Min())
	assert.Equal(t, first, mi.Aabb())

	node.SetLocalPosition(mgl32.Vec3{0, 3, 0})
	node.SyncHierarchy()
	moved := mi.Aabb()
	assert.Equal(t, mgl32.Vec3{-1, 2, -1}, moved.Min())

	mesh.SetAabb(common.NewBoundingBoxMinMax(mgl32.Vec3{}, mgl32.Vec3{2, 2, 2}))
	assert.Equal(t, mgl32.Vec3{2, 5, 2}, mi.Aabb().Max())
}

func TestCustomAabbOverridesMesh(t *testing.T) {
	node := graph.NewGraphNode(graph.WithUniformScale(2))
	mi := NewMeshInstance(unitMesh(), nil, node, WithCustomAabb(common.NewBoundingBoxMinMax(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})))

	assert.Equal(t, mgl32.Vec3{2, 2, 2}, mi.Aabb().Max())

	node.SetLocalScale(mgl32.Vec3{3, 3, 3})
	assert.Equal(t, mgl32.Vec3{3, 3, 3}, mi.Aabb().Max())

	mi.SetCustomAabb(nil)
	assert.Equal(t, mgl32.Vec3{3, 3, 3}, mi.Aabb().Max())
	assert.Equal(t, mgl32.Vec3{-3, -3, -3}, mi.Aabb().Min())
}

func TestSkinnedAabbUsesOnlyUsedBones(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	root := graph.NewGraphNode(graph.WithName("root"))
	hip := graph.NewGraphNode(graph.WithName("hip"), graph.WithParent(root))
	graph.NewGraphNode(graph.WithName("knee"), graph.WithLocalPosition(mgl32.Vec3{100, 0, 0}), graph.WithParent(root))

	skin := model.NewSkin([]mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()}, []string{"hip", "knee"})
	mesh := model.NewMesh(model.WithSkin(skin))
	mesh.ComputeBoneAabbs(
		[]mgl32.Vec3{{0, 0, 0}, {1, 1, 1}},
		[][4]uint32{{0}, {0}},
		[][4]float32{{1}, {1}},
	)
	si := model.NewSkinInstance(dev, skin, model.WithBoneRoot(root))
	mi := NewMeshInstance(mesh, nil, root, WithSkinInstance(si))

	assert.Equal(t, mgl32.Vec3{1, 1, 1}, mi.Aabb().Max())

	hip.SetLocalPosition(mgl32.Vec3{0, 10, 0})
	assert.Equal(t, mgl32.Vec3{1, 11, 1}, mi.Aabb().Max())
}

func TestSkinnedAabbComputesMissingBoneBounds(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	root := graph.NewGraphNode(graph.WithName("root"))
	hip := graph.NewGraphNode(graph.WithName("hip"), graph.WithParent(root))

	skin := model.NewSkin([]mgl32.Mat4{mgl32.Ident4()}, []string{"hip"})
	vertex := func(x, y, z float32) model.GPUSkinnedVertex {
		return model.GPUSkinnedVertex{
			GPUVertex:   model.GPUVertex{Position: [3]float32{x, y, z}},
			BoneWeights: [4]float32{1},
		}
	}
	built := model.NewMeshFromVertices(dev, []model.GPUSkinnedVertex{vertex(0, 0, 0), vertex(1, 1, 1), vertex(1, 0, 0)}, nil, skin)
	// same buffer, but without the bone bounds NewMeshFromVertices derives
	mesh := model.NewMesh(model.WithVertexBuffer(built.VertexBuffer()), model.WithAabb(built.Aabb()), model.WithSkin(skin))
	require.Nil(t, mesh.BoneAabbs())

	si := model.NewSkinInstance(dev, skin, model.WithBoneRoot(root))
	mi := NewMeshInstance(mesh, nil, root, WithSkinInstance(si))

	assert.Equal(t, mgl32.Vec3{1, 1, 1}, mi.Aabb().Max())
	assert.NotNil(t, mesh.BoneAabbs())

	// the bone moves without touching the mesh node
	hip.SetLocalPosition(mgl32.Vec3{0, 10, 0})
	assert.Equal(t, mgl32.Vec3{1, 11, 1}, mi.Aabb().Max())
}

func TestShaderDefTogglesClearCache(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	mi := NewMeshInstance(unitMesh(), material.NewMaterial(), nil)

	si := mi.GetShaderInstance(material.ShaderPassForward, 0, dev, material.ShaderVariantParams{})
	require.NotNil(t, si)
	assert.Same(t, si, mi.GetShaderInstance(material.ShaderPassForward, 0, dev, material.ShaderVariantParams{}))
	mi.GetShaderInstance(material.ShaderPassForward, 9, dev, material.ShaderVariantParams{})
	mi.GetShaderInstance(material.ShaderPassDepth, 0, dev, material.ShaderVariantParams{})
	assert.Equal(t, 3, mi.NumShaderInstances())

	mi.SetReceiveShadow(false)
	assert.True(t, mi.ShaderDefs().Has(material.DefNoShadow))
	assert.Zero(t, mi.NumShaderInstances())

	mi.GetShaderInstance(material.ShaderPassForward, 0, dev, material.ShaderVariantParams{})
	mi.SetReceiveShadow(false)
	assert.Equal(t, 1, mi.NumShaderInstances())

	mi.SetScreenSpace(true)
	assert.Zero(t, mi.NumShaderInstances())
}

func TestShaderInstanceBindGroupLifecycle(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	mi := NewMeshInstance(unitMesh(), material.NewMaterial(), nil)
	si := mi.GetShaderInstance(material.ShaderPassForward, 0, dev, material.ShaderVariantParams{})
	require.NotNil(t, si)

	assert.Nil(t, si.UniformBuffer())
	bg := si.BindGroup(dev)
	require.NotNil(t, bg)
	assert.Same(t, bg, si.BindGroup(dev))
	require.NotNil(t, si.UniformBuffer())

	mi.Destroy()
	assert.True(t, bg.Destroyed())
	assert.True(t, mi.Destroyed())
	mi.Destroy()
}

func TestEnsureMaterialFallsBackToDefault(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	mi := NewMeshInstance(unitMesh(), nil, nil)
	mi.EnsureMaterial(dev)
	assert.Same(t, material.Default(), mi.Material())
}

func TestMeshRefCount(t *testing.T) {
	a, b := unitMesh(), unitMesh()
	mi := NewMeshInstance(a, nil, nil)
	other := NewMeshInstance(a, nil, nil)
	assert.Equal(t, 2, a.RefCount())

	mi.SetMesh(b)
	assert.Equal(t, 1, a.RefCount())
	assert.Equal(t, 1, b.RefCount())

	mi.Destroy()
	other.Destroy()
	assert.Zero(t, a.RefCount())
	assert.Zero(t, b.RefCount())
}

func TestIsVisible(t *testing.T) {
	cam := camera.NewCamera(camera.WithFov(90), camera.WithAspect(1), camera.WithClip(0.1, 100))
	cam.UpdateFrustum(cam.ProjectionMatrix().Mul4(cam.ViewMatrix()))

	ahead := NewMeshInstance(unitMesh(), nil, graph.NewGraphNode(graph.WithLocalPosition(mgl32.Vec3{0, 0, -10})))
	behind := NewMeshInstance(unitMesh(), nil, graph.NewGraphNode(graph.WithLocalPosition(mgl32.Vec3{0, 0, 10})))
	assert.True(t, ahead.IsVisible(cam))
	assert.False(t, behind.IsVisible(cam))

	behind.SetVisibleFunc(func(camera.Camera) bool { return true })
	assert.True(t, behind.IsVisible(cam))
}

func TestCalculateSortDistance(t *testing.T) {
	cam := camera.NewCamera()
	mi := NewMeshInstance(unitMesh(), nil, graph.NewGraphNode(graph.WithLocalPosition(mgl32.Vec3{0, 0, -7})))
	assert.InDelta(t, 7, mi.CalculateSortDistance(cam), 1e-5)

	mi.SetSortDistanceFunc(func(*MeshInstance, mgl32.Vec3, mgl32.Vec3) float32 { return 42 })
	assert.Equal(t, float32(42), mi.CalculateSortDistance(cam))
}

func TestUpdateKeyPacksLayerOpacityMaterial(t *testing.T) {
	opaque := material.NewMaterial()
	transparent := material.NewMaterial(material.WithBlendType(material.BlendNormal))

	mi := NewMeshInstance(unitMesh(), opaque, nil)
	mi.SetSortLayer(3)
	assert.Equal(t, uint32(3)<<26|1<<25|opaque.ID()&0x1ffffff, mi.Key())

	mi.SetMaterial(transparent)
	assert.Equal(t, uint32(3)<<26|transparent.ID()&0x1ffffff, mi.Key())

	// layers past sixteen keep their own key range
	mi.SetSortLayer(40)
	assert.Equal(t, 40, mi.SortLayer())
	assert.Equal(t, uint32(40)<<26|transparent.ID()&0x1ffffff, mi.Key())
	mi.SetSortLayer(MaxSortLayers + 5)
	assert.Equal(t, MaxSortLayers-1, mi.SortLayer())
}

func TestCompareOrdering(t *testing.T) {
	newMI := func() *MeshInstance { return NewMeshInstance(unitMesh(), material.NewMaterial(), nil) }

	a, b := newMI(), newMI()
	a.SetDrawOrder(2)
	b.SetDrawOrder(1)
	a.SetZdist(100)
	b.SetZdist(1)
	assert.Positive(t, Compare(a, b))
	assert.Negative(t, Compare(b, a))

	// equal draw orders ignore distance and keep submission order
	tied := newMI()
	tied.SetDrawOrder(2)
	tied.SetZdist(1)
	assert.Zero(t, Compare(a, tied))
	assert.Zero(t, Compare(tied, a))
	ordered := []*MeshInstance{tied, a}
	slices.SortStableFunc(ordered, Compare)
	assert.Equal(t, []*MeshInstance{tied, a}, ordered)

	c, d := newMI(), newMI()
	c.SetZdist(1)
	d.SetZdist(5)
	assert.Positive(t, Compare(c, d), "farther draws first")

	e, f := newMI(), newMI()
	e.SetZdist2(1)
	f.SetZdist2(5)
	assert.Negative(t, Compare(e, f), "nearer draws first")

	opaque := newMI()
	transparent := NewMeshInstance(unitMesh(), material.NewMaterial(material.WithBlendType(material.BlendAdditive)), nil)
	draws := []*MeshInstance{transparent, opaque}
	slices.SortFunc(draws, Compare)
	assert.Same(t, opaque, draws[0])
}

func TestFlipFaces(t *testing.T) {
	mi := NewMeshInstance(unitMesh(), nil, nil)
	assert.Equal(t, float32(1), mi.FlipFacesFactor())
	mi.SetFlipFaces(true)
	assert.Equal(t, float32(-1), mi.FlipFacesFactor())
}

func TestInstancingDefs(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	vb := gpu.NewVertexBuffer(dev, gpu.InstanceMatrixFormat(), 4, nil)
	mi := NewMeshInstance(unitMesh(), nil, nil)
	mi.SetInstancing(vb, 4)
	assert.True(t, mi.ShaderDefs().Has(material.DefInstancing))
	assert.Equal(t, 4, mi.InstancingCount())

	mi.SetInstancing(nil, 4)
	assert.False(t, mi.ShaderDefs().Has(material.DefInstancing))
	assert.Zero(t, mi.InstancingCount())
}

package model

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad() []GPUSkinnedVertex {
	v := func(x, y, z float32) GPUSkinnedVertex {
		return GPUSkinnedVertex{GPUVertex: GPUVertex{Position: [3]float32{x, y, z}}}
	}
	return []GPUSkinnedVertex{v(-1, -1, 0), v(1, -1, 0), v(1, 1, 0), v(-1, 1, 2)}
}

func TestNewMeshFromVertices(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	m := NewMeshFromVertices(dev, quad(), []uint32{0, 1, 2, 0, 2, 3}, nil)

	assert.Equal(t, mgl32.Vec3{-1, -1, 0}, m.Aabb().Min())
	assert.Equal(t, mgl32.Vec3{1, 1, 2}, m.Aabb().Max())
	assert.Equal(t, 6, m.Primitive(RenderStyleSolid).Count)
	assert.True(t, m.Primitive(RenderStyleSolid).Indexed)
	assert.NotNil(t, m.IndexBuffer(RenderStyleSolid))
	assert.Nil(t, m.IndexBuffer(RenderStyleWireframe))
	assert.Equal(t, 4*64, len(m.VertexBuffer().Data()))
	assert.Equal(t, 2, dev.Stats().BufferWrites)
}

func TestMeshRefCountGuardsDestroy(t *testing.T) {
	m := NewMesh()
	m.IncRefCount()
	m.IncRefCount()
	m.DecRefCount()
	assert.Equal(t, 1, m.RefCount())

	m.Destroy()
	assert.False(t, m.Destroyed())

	m.DecRefCount()
	m.DecRefCount()
	assert.Equal(t, 0, m.RefCount())
	m.Destroy()
	assert.True(t, m.Destroyed())
}

func TestMeshSetAabbBumpsVersion(t *testing.T) {
	m := NewMesh()
	v := m.AabbVer()
	m.SetAabb(common.NewBoundingBoxMinMax(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}))
	assert.Greater(t, m.AabbVer(), v)
}

func TestComputeBoneAabbs(t *testing.T) {
	skin := NewSkin([]mgl32.Mat4{mgl32.Translate3D(-1, 0, 0), mgl32.Ident4()}, []string{"hip", "knee"})
	m := NewMesh(WithSkin(skin))
	m.ComputeBoneAabbs(
		[]mgl32.Vec3{{1, 0, 0}, {2, 1, 0}, {5, 5, 5}},
		[][4]uint32{{0}, {0}, {1}},
		[][4]float32{{1}, {1}, {0}},
	)

	require.Len(t, m.BoneAabbs(), 2)
	assert.Equal(t, []bool{true, false}, m.BoneUsed())
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, m.BoneAabbs()[0].Min())
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, m.BoneAabbs()[0].Max())
}

func TestEnsureBoneAabbsReadsVertexBuffer(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	skin := NewSkin([]mgl32.Mat4{mgl32.Translate3D(-1, 0, 0), mgl32.Ident4()}, []string{"hip", "knee"})
	vertex := func(x, y, z float32, bone uint32) GPUSkinnedVertex {
		return GPUSkinnedVertex{
			GPUVertex:   GPUVertex{Position: [3]float32{x, y, z}},
			BoneIndices: [4]uint32{bone},
			BoneWeights: [4]float32{1},
		}
	}
	vertices := []GPUSkinnedVertex{vertex(1, 0, 0, 0), vertex(2, 1, 0, 0), vertex(0, 0, 3, 1)}
	vb := gpu.NewVertexBuffer(dev, SkinnedVertexFormat(), len(vertices), marshalVertices(vertices, true))

	m := NewMesh(WithVertexBuffer(vb), WithSkin(skin))
	assert.Nil(t, m.BoneAabbs())
	require.True(t, m.EnsureBoneAabbs())
	require.Len(t, m.BoneAabbs(), 2)
	assert.Equal(t, []bool{true, true}, m.BoneUsed())
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, m.BoneAabbs()[0].Max())
	assert.Equal(t, mgl32.Vec3{0, 0, 3}, m.BoneAabbs()[1].Min())

	// no CPU copy to read back
	bare := NewMesh(WithVertexBuffer(gpu.NewVertexBuffer(dev, SkinnedVertexFormat(), 3, nil)), WithSkin(skin))
	assert.False(t, bare.EnsureBoneAabbs())
	assert.False(t, bare.EnsureBoneAabbs())
	assert.False(t, NewMesh().EnsureBoneAabbs())
}

func TestSkinInstanceUpdatesOncePerGeneration(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	root := graph.NewGraphNode(graph.WithName("root"))
	bone := graph.NewGraphNode(graph.WithName("hip"), graph.WithLocalPosition(mgl32.Vec3{1, 0, 0}), graph.WithParent(root))

	skin := NewSkin([]mgl32.Mat4{mgl32.Translate3D(-1, 0, 0)}, []string{"hip"})
	si := NewSkinInstance(dev, skin, WithBoneRoot(root))
	require.Len(t, si.Bones(), 1)
	assert.Same(t, bone, si.Bones()[0])

	assert.True(t, si.UpdateMatrices(nil, 1))
	assert.False(t, si.UpdateMatrices(nil, 1))
	assert.True(t, si.Matrices()[0].ApproxEqual(mgl32.Ident4()))
	assert.True(t, si.Dirty())

	si.UpdateMatrixPalette()
	assert.False(t, si.Dirty())
	assert.Equal(t, 1, dev.Stats().TextureUploads)
	assert.Len(t, si.BoneTexture().Pixels(), 64)

	bone.SetLocalPosition(mgl32.Vec3{3, 0, 0})
	assert.True(t, si.UpdateMatrices(nil, 2))
	assert.InDelta(t, 2, si.Matrices()[0].Col(3).X(), 1e-6)
}

func TestMorphAabbAndActiveTargets(t *testing.T) {
	targets := make([]MorphTarget, 0, MaxActiveMorphTargets+2)
	targets = append(targets, NewMorphTarget("smile", 0, []mgl32.Vec3{{0, 0.5, 0}, {0, -0.25, 0}}))
	for i := 1; i < MaxActiveMorphTargets+2; i++ {
		targets = append(targets, NewMorphTarget("t", 0, nil))
	}
	morph := NewMorph(targets...)

	box := morph.Aabb(common.NewBoundingBoxMinMax(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}))
	assert.InDelta(t, -1.25, box.Min().Y(), 1e-6)
	assert.InDelta(t, 1.5, box.Max().Y(), 1e-6)

	mi := NewMorphInstance(morph)
	mi.Update()
	assert.Empty(t, mi.ActiveTargets())
	assert.False(t, mi.Dirty())

	for i := range targets {
		mi.SetWeight(i, float32(i+1)/10)
	}
	require.True(t, mi.Dirty())
	mi.Update()
	require.Len(t, mi.ActiveTargets(), MaxActiveMorphTargets)
	assert.Equal(t, len(targets)-1, mi.ActiveTargets()[0])
	assert.NotContains(t, mi.ActiveTargets(), 0)
	assert.InDelta(t, float32(len(targets))/10, mi.ActiveWeights()[0], 1e-6)

	mi.SetWeightByName("smile", 0.5)
	assert.Equal(t, float32(0.5), mi.Weight(0))
}

func TestMorphTextureLayout(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	morph := NewMorph(
		NewMorphTarget("a", 0, []mgl32.Vec3{{1, 2, 3}, {4, 5, 6}}),
		NewMorphTarget("b", 0, []mgl32.Vec3{{7, 8, 9}}),
	)
	tex := morph.Texture(dev)
	assert.Same(t, tex, morph.Texture(dev))
	assert.Equal(t, 2, tex.Width())
	assert.Equal(t, 2, tex.Height())
	assert.Len(t, tex.Pixels(), 2*2*16)
	assert.Equal(t, 1, dev.Stats().TextureUploads)

	morph.Destroy()
	assert.True(t, tex.Destroyed())
}

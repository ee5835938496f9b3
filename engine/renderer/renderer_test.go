package renderer

import (
	"fmt"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/layer"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/mesh_instance"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testScene struct {
	dev  *gpu.NullDevice
	r    *renderer
	comp *layer.LayerComposition
	lyr  *layer.Layer
	cam  camera.Camera
}

func newTestScene(t *testing.T, options ...RendererBuilderOption) *testScene {
	t.Helper()
	dev := gpu.NewNullDevice(64, 64)
	r, ok := NewRenderer(dev, options...).(*renderer)
	require.True(t, ok)
	t.Cleanup(r.Destroy)

	cam := camera.NewCamera()
	lyr := layer.NewLayer(layer.WithName("World"))
	comp := layer.NewLayerComposition()
	comp.Push(lyr)
	comp.AddCamera(cam)
	return &testScene{dev: dev, r: r, comp: comp, lyr: lyr, cam: cam}
}

func newTriangle(dev gpu.Device, skin *model.Skin) *model.Mesh {
	v := func(x, y float32) model.GPUSkinnedVertex {
		return model.GPUSkinnedVertex{GPUVertex: model.GPUVertex{
			Position: [3]float32{x, y, 0},
			Normal:   [3]float32{0, 0, 1},
			Color:    [4]float32{1, 1, 1, 1},
		}}
	}
	return model.NewMeshFromVertices(dev, []model.GPUSkinnedVertex{v(-1, -1), v(1, -1), v(0, 1)}, []uint32{0, 1, 2}, skin)
}

// addInstance places a triangle at pos in the world layer.
func (s *testScene) addInstance(pos mgl32.Vec3, mat material.Material, options ...mesh_instance.MeshInstanceBuilderOption) *mesh_instance.MeshInstance {
	if mat == nil {
		mat = material.NewMaterial()
	}
	node := graph.NewGraphNode(graph.WithLocalPosition(pos))
	mi := mesh_instance.NewMeshInstance(newTriangle(s.dev, nil), mat, node, options...)
	s.lyr.AddMeshInstances([]*mesh_instance.MeshInstance{mi}, false)
	return mi
}

func (s *testScene) frame() {
	s.dev.ResetStats()
	s.r.Update(s.comp)
	s.r.Render(s.comp)
}

func newSpot(pos mgl32.Vec3, options ...light.LightBuilderOption) *light.Light {
	options = append([]light.LightBuilderOption{
		light.WithNode(graph.NewGraphNode(graph.WithLocalPosition(pos))),
		light.WithCastShadows(true),
		light.WithRange(20),
	}, options...)
	return light.NewLight(light.LightTypeSpot, options...)
}

func TestDirectionalShadowCasterInView(t *testing.T) {
	s := newTestScene(t)
	sun := light.NewLight(light.LightTypeDirectional, light.WithCastShadows(true))
	s.lyr.AddLight(sun)
	mi := s.addInstance(mgl32.Vec3{0, 0, -5}, nil)

	s.frame()

	rd := sun.GetRenderData(s.cam, 0)
	assert.Equal(t, []light.Caster{mi}, rd.VisibleCasters)
	culled := s.lyr.CulledInstances(s.cam)
	assert.Equal(t, []*mesh_instance.MeshInstance{mi}, culled.Opaque)
	assert.Empty(t, culled.Transparent)

	require.NotNil(t, sun.ShadowMap())
	target := sun.ShadowMap().RenderTargets[0]
	stats := s.dev.Stats()
	assert.Equal(t, 1, stats.ClearsPerTarget[target])
	assert.Equal(t, 1, stats.DrawsPerTarget[target])
	assert.Equal(t, 1, stats.DrawsPerTarget[nil])
	assert.Equal(t, 1, s.r.Stats().ShadowDrawCalls)
	assert.Equal(t, 1, s.r.Stats().ForwardDrawCalls)
	assert.Equal(t, 1, s.r.Stats().ShadowMapUpdates)
}

func TestDirectionalShadowCasterBehindCamera(t *testing.T) {
	s := newTestScene(t)
	sun := light.NewLight(light.LightTypeDirectional, light.WithCastShadows(true))
	s.lyr.AddLight(sun)
	mi := s.addInstance(mgl32.Vec3{0, 0, 5}, nil)

	s.frame()

	assert.Equal(t, []light.Caster{mi}, sun.GetRenderData(s.cam, 0).VisibleCasters)
	assert.Empty(t, s.lyr.CulledInstances(s.cam).Opaque)

	target := sun.ShadowMap().RenderTargets[0]
	stats := s.dev.Stats()
	assert.Equal(t, 1, stats.DrawsPerTarget[target])
	assert.Zero(t, stats.DrawsPerTarget[nil])
	assert.Zero(t, s.r.Stats().ForwardDrawCalls)
}

func TestShadowUpdateThisFrameRendersOnce(t *testing.T) {
	s := newTestScene(t)
	spot := newSpot(mgl32.Vec3{0, 0, -1}, light.WithShadowUpdateMode(light.ShadowUpdateThisFrame))
	s.lyr.AddLight(spot)
	s.addInstance(mgl32.Vec3{0, 0, -5}, nil)

	s.frame()
	assert.Equal(t, light.ShadowUpdateNone, spot.ShadowUpdateMode())
	assert.Equal(t, 1, s.r.Stats().ShadowDrawCalls)
	require.NotNil(t, spot.ShadowMap())
	target := spot.ShadowMap().RenderTargets[0]
	assert.Equal(t, 1, s.dev.Stats().ClearsPerTarget[target])

	s.frame()
	assert.Zero(t, s.r.Stats().ShadowDrawCalls)
	assert.Zero(t, s.dev.Stats().ClearsPerTarget[target])
	assert.Same(t, target, spot.ShadowMap().RenderTargets[0])
}

func TestShadowUpdateNoneRendersWhenUnallocated(t *testing.T) {
	s := newTestScene(t)
	spot := newSpot(mgl32.Vec3{0, 0, -1}, light.WithShadowUpdateMode(light.ShadowUpdateNone))
	s.lyr.AddLight(spot)
	s.addInstance(mgl32.Vec3{0, 0, -5}, nil)
	require.Nil(t, spot.ShadowMap())

	s.frame()
	assert.Equal(t, light.ShadowUpdateNone, spot.ShadowUpdateMode())
	require.NotNil(t, spot.ShadowMap())
	assert.NotNil(t, spot.GetRenderData(nil, 0).ShadowCamera.RenderTarget())
	assert.Equal(t, 1, s.r.Stats().ShadowDrawCalls)

	s.frame()
	assert.Zero(t, s.r.Stats().ShadowDrawCalls)
	assert.Zero(t, s.r.Stats().ShadowMapUpdates)
}

func TestShadowUpdateRealtimeRendersEveryFrame(t *testing.T) {
	s := newTestScene(t)
	spot := newSpot(mgl32.Vec3{0, 0, -1})
	s.lyr.AddLight(spot)
	s.addInstance(mgl32.Vec3{0, 0, -5}, nil)

	for range 3 {
		s.frame()
		assert.Equal(t, light.ShadowUpdateRealtime, spot.ShadowUpdateMode())
		assert.Equal(t, 1, s.r.Stats().ShadowDrawCalls)
	}
}

func TestOmniShadowClearsEveryCubeFace(t *testing.T) {
	s := newTestScene(t)
	omni := light.NewLight(light.LightTypeOmni,
		light.WithNode(graph.NewGraphNode(graph.WithLocalPosition(mgl32.Vec3{0, 0, -5}))),
		light.WithCastShadows(true),
		light.WithRange(10),
	)
	s.lyr.AddLight(omni)
	s.addInstance(mgl32.Vec3{0, 0, -8}, nil)

	s.frame()

	sm := omni.ShadowMap()
	require.NotNil(t, sm)
	require.Len(t, sm.RenderTargets, 6)
	stats := s.dev.Stats()
	for _, rt := range sm.RenderTargets {
		assert.Equal(t, 1, stats.ClearsPerTarget[rt])
	}
	assert.Equal(t, 6, s.r.Stats().ShadowMapUpdates)
	// the -z face renders into cube layer 4
	assert.Equal(t, 1, stats.DrawsPerTarget[sm.RenderTargets[4]])
	assert.Equal(t, 1, s.r.Stats().ShadowDrawCalls)
}

func TestClusteredSpotShadowUsesAtlas(t *testing.T) {
	s := newTestScene(t, WithClusteredLighting(true))
	spot := newSpot(mgl32.Vec3{0, 0, -1})
	s.lyr.AddLight(spot)
	s.addInstance(mgl32.Vec3{0, 0, -5}, nil)

	s.frame()

	atlas := s.r.atlas
	assert.True(t, spot.AtlasViewportAllocated())
	assert.Same(t, atlas.ShadowMap(), spot.ShadowMap())
	assert.Equal(t, 0, spot.AtlasSlotIndex())
	assert.Equal(t, mgl32.Vec4{0, 0, 0.25, 0.25}, spot.AtlasViewport())
	assert.Equal(t, []*light.Light{spot}, s.r.clusters.Lights())
	assert.Equal(t, 1, s.r.Stats().ClusteredLights)

	rt := atlas.RenderTarget()
	stats := s.dev.Stats()
	assert.Equal(t, 1, stats.ClearsPerTarget[rt])
	// depth clear quad, then the caster
	assert.Equal(t, 2, stats.DrawsPerTarget[rt])

	s.frame()
	stats = s.dev.Stats()
	assert.Zero(t, stats.ClearsPerTarget[rt])
	assert.Equal(t, 2, stats.DrawsPerTarget[rt])
	require.NotEmpty(t, stats.DrawLog)
	first := stats.DrawLog[0]
	assert.Same(t, rt, first.Target)
	assert.Same(t, s.r.shadowRenderer.depthClearQuad().shader, first.Shader)
	assert.Equal(t, gputypes.CompareFunctionAlways, first.Depth.Func)
}

func TestClusteredAtlasSlotChangePromotesNone(t *testing.T) {
	s := newTestScene(t, WithClusteredLighting(true))
	spot := newSpot(mgl32.Vec3{0, 0, -1}, light.WithShadowUpdateMode(light.ShadowUpdateNone))
	s.lyr.AddLight(spot)
	s.addInstance(mgl32.Vec3{0, 0, -5}, nil)

	s.frame()
	assert.True(t, spot.AtlasSlotUpdated())
	assert.Equal(t, light.ShadowUpdateNone, spot.ShadowUpdateMode())
	assert.Equal(t, 1, s.r.Stats().ShadowDrawCalls)

	s.frame()
	assert.False(t, spot.AtlasSlotUpdated())
	assert.Zero(t, s.r.Stats().ShadowDrawCalls)
	assert.Zero(t, s.dev.Stats().DrawsPerTarget[s.r.atlas.RenderTarget()])
}

func TestClusteredLightOutOfViewReleasesSlot(t *testing.T) {
	s := newTestScene(t, WithClusteredLighting(true))
	spot := newSpot(mgl32.Vec3{0, 0, -1})
	s.lyr.AddLight(spot)

	s.frame()
	require.True(t, spot.AtlasViewportAllocated())

	spot.Node().SetLocalPosition(mgl32.Vec3{0, 0, 500})
	s.frame()
	assert.False(t, spot.AtlasViewportAllocated())
	assert.Equal(t, -1, spot.AtlasSlotIndex())
	assert.Nil(t, spot.ShadowMap())
	assert.Empty(t, s.r.clusters.Lights())
}

func TestCullModeFlipsForMirroredInstances(t *testing.T) {
	s := newTestScene(t)
	back := material.NewMaterial(material.WithCull(gputypes.CullModeBack))
	plain := s.addInstance(mgl32.Vec3{}, back)
	mirrored := mesh_instance.NewMeshInstance(newTriangle(s.dev, nil), back,
		graph.NewGraphNode(graph.WithLocalScale(mgl32.Vec3{-1, 1, 1})))

	s.r.setupCullMode(true, 1, plain)
	assert.Equal(t, gputypes.CullModeBack, s.dev.CullMode())
	s.r.setupCullMode(true, -1, plain)
	assert.Equal(t, gputypes.CullModeFront, s.dev.CullMode())
	s.r.setupCullMode(true, 1, mirrored)
	assert.Equal(t, gputypes.CullModeFront, s.dev.CullMode())
	s.r.setupCullMode(true, -1, mirrored)
	assert.Equal(t, gputypes.CullModeBack, s.dev.CullMode())
	s.r.setupCullMode(false, 1, plain)
	assert.Equal(t, gputypes.CullModeNone, s.dev.CullMode())

	twoSided := mesh_instance.NewMeshInstance(newTriangle(s.dev, nil),
		material.NewMaterial(material.WithCull(gputypes.CullModeNone)),
		graph.NewGraphNode(graph.WithLocalScale(mgl32.Vec3{1, -1, 1})))
	s.r.setupCullMode(true, -1, twoSided)
	assert.Equal(t, gputypes.CullModeNone, s.dev.CullMode())
	assert.Equal(t, float32(-1), s.dev.Scope().Resolve("twoSidedLightingNegScaleFactor").Value())
}

func TestCameraJitterSharesBlueNoisePerRenderVersion(t *testing.T) {
	s := newTestScene(t, WithBlueNoiseSeed(7))
	scope := s.dev.Scope()
	projection := func() mgl32.Mat4 { return scope.Resolve("matrix_projection").Value().(mgl32.Mat4) }
	noise := func() mgl32.Vec4 { return scope.Resolve("blueNoiseJitter").Value().(mgl32.Vec4) }

	first := camera.NewCamera(camera.WithJitter(1))
	second := camera.NewCamera(camera.WithJitter(1))

	s.r.SetCameraUniforms(first, nil)
	proj := projection()
	n := noise()
	// halton (1/2, 1/3) maps to a (0, -1/3) pixel offset
	assert.InDelta(t, 0, proj[8], 1e-6)
	assert.InDelta(t, -1.0/(3*64), proj[9], 1e-6)
	assert.NotEqual(t, mgl32.Vec4{}, n)

	s.r.SetCameraUniforms(second, nil)
	assert.Equal(t, n, noise())

	s.dev.FrameEnd()
	s.r.SetCameraUniforms(first, nil)
	assert.NotEqual(t, n, noise())
	assert.InDelta(t, 1.0/(3*64), projection()[9], 1e-6)

	s.r.SetCameraUniforms(camera.NewCamera(), nil)
	assert.Equal(t, mgl32.Vec4{}, noise())
	assert.Zero(t, projection()[9])
}

func TestSkinMatricesUpdateOncePerSkinOnWorkers(t *testing.T) {
	cfg := config.Default()
	cfg.SkinParallelThreshold = 2
	root := graph.NewGraphNode(graph.WithName("root"))
	s := newTestScene(t, WithConfig(cfg), WithSkinWorkerPool(2), WithSceneRoot(root))
	require.NotNil(t, s.r.skinPool)

	skin := model.NewSkin([]mgl32.Mat4{mgl32.Ident4()}, []string{"bone"})
	mesh := newTriangle(s.dev, skin)
	skins := make([]*model.SkinInstance, 0, 4)
	for i := range 4 {
		rig := graph.NewGraphNode(graph.WithName(fmt.Sprintf("rig%d", i)), graph.WithParent(root))
		graph.NewGraphNode(graph.WithName("bone"), graph.WithLocalPosition(mgl32.Vec3{float32(i), 0, 0}), graph.WithParent(rig))
		si := model.NewSkinInstance(s.dev, skin, model.WithBoneRoot(rig))
		skins = append(skins, si)
		// two instances share each skin
		for range 2 {
			mi := mesh_instance.NewMeshInstance(mesh, material.NewMaterial(), rig,
				mesh_instance.WithSkinInstance(si), mesh_instance.WithCull(false))
			s.lyr.AddMeshInstances([]*mesh_instance.MeshInstance{mi}, false)
		}
	}

	s.r.Update(s.comp)
	assert.Equal(t, 4, s.r.Stats().SkinnedUpdated)
	for i, si := range skins {
		assert.InDelta(t, float32(i), si.Matrices()[0].Col(3).X(), 1e-6)
		assert.False(t, si.Dirty())
	}

	s.r.Update(s.comp)
	assert.Equal(t, 4, s.r.Stats().SkinnedUpdated)
}

func TestShaderRebuildRegeneratesCustomVariants(t *testing.T) {
	s := newTestScene(t)
	var generated []*gpu.Shader
	provider := material.ShaderVariantProviderFunc(func(device gpu.Device, params material.ShaderVariantParams) *gpu.Shader {
		sh := material.GenerateStandardShader(device, params)
		generated = append(generated, sh)
		return sh
	})
	custom := material.NewMaterial(material.WithShaderVariantProvider(provider))
	standard := material.NewMaterial()
	s.addInstance(mgl32.Vec3{-1, 0, -5}, custom)
	s.addInstance(mgl32.Vec3{1, 0, -5}, custom)
	s.addInstance(mgl32.Vec3{0, 1, -6}, standard)

	drawn := func() []*gpu.Shader {
		var out []*gpu.Shader
		for _, d := range s.dev.Stats().DrawLog {
			out = append(out, d.Shader)
		}
		return out
	}

	s.frame()
	require.Len(t, generated, 1)
	stale := generated[0]
	var standardShader *gpu.Shader
	for _, sh := range drawn() {
		if sh != stale {
			standardShader = sh
		}
	}
	require.NotNil(t, standardShader)

	s.frame()
	assert.Len(t, generated, 1)

	s.r.RequestShaderRebuild()
	s.frame()
	// one regeneration for the material shared by two instances
	require.Len(t, generated, 2)
	assert.Equal(t, 1, custom.NumVariants())
	shaders := drawn()
	assert.Len(t, shaders, 3)
	assert.True(t, slices.Contains(shaders, generated[1]))
	assert.False(t, slices.Contains(shaders, stale))
	assert.True(t, slices.Contains(shaders, standardShader))
}

func TestSetMorphingPublishesActiveTargetsWithoutAllocating(t *testing.T) {
	s := newTestScene(t)
	morph := model.NewMorph(
		model.NewMorphTarget("smile", 0, []mgl32.Vec3{{0, 1, 0}}),
		model.NewMorphTarget("frown", 0, []mgl32.Vec3{{0, -1, 0}}),
	)
	weights := model.NewMorphInstance(morph)
	weights.SetWeight(1, 0.75)
	weights.Update()
	mi := s.addInstance(mgl32.Vec3{0, 0, -5}, nil, mesh_instance.WithMorphInstance(weights))

	s.r.setMorphing(mi)
	scope := s.dev.Scope()
	assert.Equal(t, []float32{0.75, 0, 0, 0, 0, 0, 0, 0}, scope.Resolve("morph_weights").Value())
	assert.Equal(t, []float32{1, 0, 0, 0, 0, 0, 0, 0}, scope.Resolve("morph_targets").Value())
	assert.Same(t, morph.Texture(s.dev), scope.Resolve(material.MorphTextureName).Value())

	allocs := testing.AllocsPerRun(20, func() { s.r.setMorphing(mi) })
	assert.Zero(t, allocs)

	weights.SetWeight(1, 0)
	weights.SetWeight(0, 0.5)
	weights.Update()
	s.r.setMorphing(mi)
	assert.Equal(t, []float32{0.5, 0, 0, 0, 0, 0, 0, 0}, scope.Resolve("morph_weights").Value())
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0, 0, 0}, scope.Resolve("morph_targets").Value())
}

package layer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/mesh_instance"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInstance(z float32, mat material.Material, opts ...mesh_instance.MeshInstanceBuilderOption) *mesh_instance.MeshInstance {
	mesh := model.NewMesh(model.WithAabb(common.NewBoundingBoxMinMax(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})))
	node := graph.NewGraphNode(graph.WithLocalPosition(mgl32.Vec3{0, 0, z}))
	return mesh_instance.NewMeshInstance(mesh, mat, node, opts...)
}

func TestAddRemoveMeshInstances(t *testing.T) {
	l := NewLayer()
	caster := newInstance(0, nil)
	receiver := newInstance(0, nil, mesh_instance.WithCastShadow(false))

	l.AddMeshInstances([]*mesh_instance.MeshInstance{caster, receiver, caster}, false)
	assert.Len(t, l.MeshInstances(), 2)
	assert.Equal(t, []*mesh_instance.MeshInstance{caster}, l.ShadowCasters())

	l.RemoveMeshInstances([]*mesh_instance.MeshInstance{caster}, true)
	assert.Equal(t, []*mesh_instance.MeshInstance{receiver}, l.MeshInstances())
	assert.Len(t, l.ShadowCasters(), 1)

	l.RemoveShadowCasters([]*mesh_instance.MeshInstance{caster})
	assert.Empty(t, l.ShadowCasters())

	l.AddMeshInstances([]*mesh_instance.MeshInstance{caster}, false)
	l.ClearMeshInstances(false)
	assert.Empty(t, l.MeshInstances())
	assert.Empty(t, l.ShadowCasters())
}

func TestLightHashAndSplitLights(t *testing.T) {
	l := NewLayer()
	assert.Zero(t, l.LightHash())

	dir := light.NewLight(light.LightTypeDirectional)
	spot := light.NewLight(light.LightTypeSpot, light.WithCastShadows(true))
	l.AddLight(spot)
	l.AddLight(dir)
	l.AddLight(dir)
	assert.True(t, l.HasLight(dir))
	assert.Len(t, l.Lights(), 2)
	assert.Equal(t, []*light.Light{spot}, l.LightsOfType(light.LightTypeSpot))
	assert.Equal(t, []*light.Light{dir, spot}, l.SortedLights())

	h := l.LightHash()
	assert.NotZero(t, h)

	other := NewLayer()
	other.AddLight(light.NewLight(light.LightTypeSpot, light.WithCastShadows(true)))
	other.AddLight(light.NewLight(light.LightTypeDirectional))
	assert.Equal(t, h, other.LightHash(), "same light configuration, same hash")

	l.RemoveLight(spot)
	assert.NotEqual(t, h, l.LightHash())
	assert.Empty(t, l.LightsOfType(light.LightTypeSpot))
}

func TestSortVisible(t *testing.T) {
	cam := camera.NewCamera()
	l := NewLayer()
	near := newInstance(-2, nil)
	far := newInstance(-20, nil)
	mid := newInstance(-10, nil)

	culled := l.CulledInstances(cam)
	culled.Transparent = append(culled.Transparent, near, far, mid)
	l.SortVisible(cam, true)
	assert.Equal(t, []*mesh_instance.MeshInstance{far, mid, near}, culled.Transparent)

	l.SetOpaqueSortMode(SortFrontToBack)
	culled.Opaque = append(culled.Opaque, far, near, mid)
	l.SortVisible(cam, false)
	assert.Equal(t, []*mesh_instance.MeshInstance{near, mid, far}, culled.Opaque)

	l.SetOpaqueSortMode(SortManual)
	near.SetDrawOrder(3)
	mid.SetDrawOrder(1)
	far.SetDrawOrder(2)
	l.SortVisible(cam, false)
	assert.Equal(t, []*mesh_instance.MeshInstance{mid, far, near}, culled.Opaque)

	culled.Reset()
	assert.Empty(t, culled.Opaque)
	assert.Empty(t, culled.Transparent)
}

func TestRenderActions(t *testing.T) {
	world := NewLayer(WithID(LayerIDWorld), WithName("World"))
	ui := NewLayer(WithID(LayerIDUI), WithName("UI"), WithClearFlags(false, true, false))
	comp := NewLayerComposition()
	comp.Push(world)
	comp.Push(ui)
	comp.PushOpaque(world)
	assert.Len(t, comp.SubLayers(), 4)
	assert.Equal(t, []*Layer{world, ui}, comp.Layers())
	assert.Same(t, ui, comp.LayerByName("UI"))
	assert.Same(t, world, comp.LayerByID(LayerIDWorld))
	assert.Nil(t, comp.LayerByID(7))

	main := camera.NewCamera(camera.WithPriority(1))
	overlay := camera.NewCamera(camera.WithPriority(0), camera.WithLayers(LayerIDUI))
	comp.AddCamera(main)
	comp.AddCamera(overlay)
	assert.Equal(t, []camera.Camera{overlay, main}, comp.Cameras())

	actions := comp.RenderActions()
	require.Len(t, actions, 4)
	assert.Same(t, overlay, actions[0].Camera)
	assert.True(t, actions[0].FirstCameraUse)
	assert.False(t, actions[0].LastCameraUse)
	assert.Same(t, ui, actions[1].Layer)
	assert.True(t, actions[1].LastCameraUse)

	assert.Same(t, main, actions[2].Camera)
	assert.True(t, actions[2].FirstCameraUse)
	assert.True(t, actions[2].ClearColor)
	assert.True(t, actions[3].Transparent)
	assert.False(t, actions[3].ClearDepth)
	assert.True(t, actions[3].LastCameraUse)

	ui.SetEnabled(false)
	comp.MarkDirty()
	assert.Len(t, comp.RenderActions(), 2)

	comp.Remove(ui)
	assert.Len(t, comp.SubLayers(), 2)
	comp.RemoveCamera(overlay)
	assert.Len(t, comp.Cameras(), 1)
}

func TestRemoveCameraDropsLightRenderData(t *testing.T) {
	world := NewLayer()
	dir := light.NewLight(light.LightTypeDirectional, light.WithCastShadows(true))
	world.AddLight(dir)
	comp := NewLayerComposition()
	comp.Push(world)
	cam := camera.NewCamera()
	comp.AddCamera(cam)

	dir.GetRenderData(cam, 0)
	world.CulledInstances(cam)
	require.Len(t, dir.RenderData(), 1)

	comp.RemoveCamera(cam)
	assert.Empty(t, dir.RenderData())
}

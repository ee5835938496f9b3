package light

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginFrameResetsVisibility(t *testing.T) {
	dir := NewLight(LightTypeDirectional)
	omni := NewLight(LightTypeOmni)
	omni.SetVisibleThisFrame(true)
	omni.UpdateMaxScreenSize(0.5)
	omni.SetAtlasSlot(2, mgl32.Vec4{0, 0, 0.5, 0.5})

	dir.BeginFrame()
	omni.BeginFrame()

	assert.True(t, dir.VisibleThisFrame())
	assert.False(t, omni.VisibleThisFrame())
	assert.Zero(t, omni.MaxScreenSize())
	assert.False(t, omni.AtlasViewportAllocated())
	assert.False(t, omni.AtlasSlotUpdated())

	dir.SetEnabled(false)
	dir.BeginFrame()
	assert.False(t, dir.VisibleThisFrame())
}

func TestAtlasSlotUpdatedOnlyOnChange(t *testing.T) {
	l := NewLight(LightTypeSpot)
	l.SetAtlasSlot(1, mgl32.Vec4{0, 0, 0.5, 0.5})
	assert.True(t, l.AtlasSlotUpdated())

	l.BeginFrame()
	l.SetAtlasSlot(1, mgl32.Vec4{0, 0, 0.5, 0.5})
	assert.False(t, l.AtlasSlotUpdated())
	assert.True(t, l.AtlasViewportAllocated())
}

func TestGetRenderDataIsUniquePerCameraAndFace(t *testing.T) {
	l := NewLight(LightTypeDirectional, WithCascades(2, 0.5, 50))
	cam := camera.NewCamera()

	a := l.GetRenderData(cam, 0)
	assert.Same(t, a, l.GetRenderData(cam, 0))
	assert.NotSame(t, a, l.GetRenderData(cam, 1))
	assert.NotSame(t, a, l.GetRenderData(camera.NewCamera(), 0))
	assert.Len(t, l.RenderData(), 3)
	assert.Equal(t, camera.ProjectionOrthographic, a.ShadowCamera.Projection())

	l.RemoveRenderData(cam)
	assert.Len(t, l.RenderData(), 1)
}

func TestNumShadowFaces(t *testing.T) {
	assert.Equal(t, 3, NewLight(LightTypeDirectional, WithCascades(3, 0, 10)).NumShadowFaces())
	assert.Equal(t, 6, NewLight(LightTypeOmni).NumShadowFaces())
	assert.Equal(t, 1, NewLight(LightTypeSpot).NumShadowFaces())
	assert.Equal(t, MaxCascades, NewLight(LightTypeDirectional, WithCascades(9, 0, 10)).NumCascades())
}

func TestVsmBlurSizeIsOddAndClamped(t *testing.T) {
	l := NewLight(LightTypeSpot)
	l.SetVsmBlurSize(4)
	assert.Equal(t, 5, l.VsmBlurSize())
	l.SetVsmBlurSize(100)
	assert.Equal(t, 25, l.VsmBlurSize())
	l.SetVsmBlurSize(-3)
	assert.Equal(t, 1, l.VsmBlurSize())
}

func TestKeyChangesWithShaderState(t *testing.T) {
	l := NewLight(LightTypeSpot)
	k := l.Key()
	l.SetCastShadows(true)
	assert.NotEqual(t, k, l.Key())
	k = l.Key()
	l.SetShadowType(ShadowVSM16)
	assert.NotEqual(t, k, l.Key())
	assert.NotEqual(t, NewLight(LightTypeOmni).Key(), NewLight(LightTypeSpot).Key())
}

func TestOmniRefusesVsm(t *testing.T) {
	omni := NewLight(LightTypeOmni, WithShadowType(ShadowVSM32))
	assert.Equal(t, ShadowPCF3, omni.ShadowType())

	omni.SetShadowType(ShadowPCF5)
	assert.Equal(t, ShadowPCF5, omni.ShadowType())
	omni.SetShadowType(ShadowVSM16)
	assert.Equal(t, ShadowPCF3, omni.ShadowType())

	spot := NewLight(LightTypeSpot)
	spot.SetShadowType(ShadowVSM16)
	assert.Equal(t, ShadowVSM16, spot.ShadowType())
}

func TestBoundingVolumes(t *testing.T) {
	node := graph.NewGraphNode(graph.WithLocalPosition(mgl32.Vec3{1, 2, 3}))
	omni := NewLight(LightTypeOmni, WithNode(node), WithRange(5))

	var s common.BoundingSphere
	omni.GetBoundingSphere(&s)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, s.Center)
	assert.Equal(t, float32(5), s.Radius)

	spot := NewLight(LightTypeSpot, WithRange(10), WithConeAngles(20, 30))
	spot.GetBoundingSphere(&s)
	assert.Less(t, s.Center.Z(), float32(0))
	var box common.BoundingBox
	spot.GetBoundingBox(&box)
	assert.InDelta(t, -10, box.Min().Z(), 1e-4)
	assert.InDelta(t, 0, box.Max().Z(), 1e-4)
	assert.True(t, box.ContainsPoint(s.Center))
}

func TestShadowMapFormats(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)

	pcf := NewShadowMap(dev, NewLight(LightTypeSpot, WithShadowResolution(256)))
	require.Len(t, pcf.RenderTargets, 1)
	assert.True(t, pcf.Texture.IsDepth())
	assert.Equal(t, 256, pcf.RenderTargets[0].Width())

	vsm := NewShadowMap(dev, NewLight(LightTypeDirectional, WithShadowType(ShadowVSM32)))
	assert.Equal(t, gputypes.TextureFormatRGBA32Float, vsm.Texture.Format())
	assert.True(t, vsm.RenderTargets[0].HasDepth())

	cube := NewShadowMap(dev, NewLight(LightTypeOmni))
	require.Len(t, cube.RenderTargets, 6)
	assert.Equal(t, 5, cube.RenderTargets[5].Face())
	assert.True(t, cube.Texture.Cubemap())

	cube.Destroy()
	assert.True(t, cube.Texture.Destroyed())
}

func TestLightDestroyReleasesOwnedShadowMap(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	l := NewLight(LightTypeSpot, WithCastShadows(true))
	sm := NewShadowMap(dev, l)
	l.SetShadowMap(sm)
	rd := l.GetRenderData(nil, 0)
	rd.ShadowCamera.SetRenderTarget(sm.RenderTargets[0])

	l.SetShadowResolution(512)
	assert.Nil(t, l.ShadowMap())
	assert.True(t, sm.Texture.Destroyed())
	assert.Nil(t, rd.ShadowCamera.RenderTarget())

	shared := NewShadowMap(dev, l)
	shared.Cached = true
	l.SetShadowMap(shared)
	l.Destroy()
	assert.False(t, shared.Texture.Destroyed())
	assert.True(t, l.Destroyed())
	assert.Empty(t, l.RenderData())
}

func TestShadowDepthStateAndColorWrites(t *testing.T) {
	omni := NewLight(LightTypeOmni, WithShadowBias(0.2, 0))
	assert.Zero(t, omni.ShadowDepthState(false).Bias)
	assert.InDelta(t, -200, omni.ShadowDepthState(true).Bias, 1e-3)
	assert.True(t, omni.WritesShadowColor(false))
	assert.False(t, omni.WritesShadowColor(true))

	vsm := NewLight(LightTypeSpot, WithShadowType(ShadowVSM16))
	assert.True(t, vsm.WritesShadowColor(true))
	assert.False(t, NewLight(LightTypeSpot).WritesShadowColor(false))
}

func TestPackClustered(t *testing.T) {
	l := NewLight(LightTypeSpot, WithColor(1, 0.5, 0), WithIntensity(2), WithRange(7), WithCastShadows(true))
	rd := l.GetRenderData(nil, 0)
	rd.ShadowMatrix = mgl32.Translate3D(1, 2, 3)
	l.SetAtlasSlot(0, mgl32.Vec4{0, 0, 1, 1})

	out := make([]float32, ClusteredLightStride)
	l.PackClustered(out)
	assert.Equal(t, float32(7), out[3])
	assert.Equal(t, []float32{2, 1, 0}, out[4:7])
	assert.Equal(t, float32(LightTypeSpot), out[7])
	assert.Equal(t, float32(1), out[13])
	assert.Equal(t, float32(3), out[16+14])
}

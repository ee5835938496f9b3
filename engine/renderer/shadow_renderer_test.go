package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaussWeightsAreNormalizedAndCached(t *testing.T) {
	s := &ShadowRenderer{gaussWeights: make(map[int][]float32)}
	w := s.GaussWeights(7)
	require.Len(t, w, 7)

	var sum float32
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-5)
	assert.InDelta(t, w[0], w[6], 1e-6)
	assert.InDelta(t, w[2], w[4], 1e-6)
	assert.Greater(t, w[3], w[2])
	assert.Same(t, &w[0], &s.GaussWeights(7)[0])

	box := boxWeights(4)
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, box)
}

func TestSplitCascades(t *testing.T) {
	var out [light.MaxCascades]float32

	splitCascades(&out, 2, 1, 100, 0)
	assert.InDelta(t, 50.5, out[0], 1e-4)
	assert.InDelta(t, 100, out[1], 1e-4)
	assert.Equal(t, float32(100), out[2])
	assert.Equal(t, float32(100), out[3])

	splitCascades(&out, 2, 1, 100, 1)
	assert.InDelta(t, 10, out[0], 1e-4)
	assert.InDelta(t, 100, out[1], 1e-3)

	splitCascades(&out, 1, 0, 50, 0.5)
	assert.InDelta(t, 50, out[0], 1e-3)
}

func TestCascadeViewport(t *testing.T) {
	assert.Equal(t, mgl32.Vec4{0, 0, 512, 512}, cascadeViewport(0, 1, 512))
	assert.Equal(t, mgl32.Vec4{0, 0, 256, 256}, cascadeViewport(0, 4, 512))
	assert.Equal(t, mgl32.Vec4{256, 0, 256, 256}, cascadeViewport(1, 4, 512))
	assert.Equal(t, mgl32.Vec4{0, 256, 256, 256}, cascadeViewport(2, 2, 512))
	assert.Equal(t, mgl32.Vec4{256, 256, 256, 256}, cascadeViewport(3, 4, 512))
}

func TestShadowMapCachePoolsByKey(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	cache := NewShadowMapCache()
	defer cache.Destroy()

	spot := light.NewLight(light.LightTypeSpot, light.WithShadowType(light.ShadowVSM16), light.WithShadowResolution(256))
	other := light.NewLight(light.LightTypeSpot, light.WithShadowType(light.ShadowVSM16), light.WithShadowResolution(512))

	sm := cache.Get(dev, spot)
	require.NotNil(t, sm)
	assert.True(t, sm.Cached)
	assert.Zero(t, cache.Len())

	cache.Add(spot, sm)
	assert.Equal(t, 1, cache.Len())

	fresh := cache.Get(dev, other)
	assert.NotSame(t, sm, fresh)
	assert.Equal(t, 1, cache.Len())

	assert.Same(t, sm, cache.Get(dev, spot))
	assert.Zero(t, cache.Len())
}

func TestShadowMatrixMapsViewportCenter(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	sm := light.NewShadowMap2D(dev, 512, light.ShadowPCF3)
	defer sm.Destroy()

	l := light.NewLight(light.LightTypeSpot)
	rd := l.GetRenderData(nil, 0)
	cam := rd.ShadowCamera
	cam.SetAspect(1)
	cam.SetNearClip(0.1)
	cam.SetFarClip(10)

	m := shadowMatrix(cam, mgl32.Vec4{256, 0, 256, 256}, sm.RenderTargets[0])
	p := m.Mul4x1(mgl32.Vec4{0, 0, -5, 1})
	p = p.Mul(1 / p.W())
	// the view axis lands in the middle of the top right quarter
	assert.InDelta(t, 0.75, p.X(), 1e-5)
	assert.InDelta(t, 0.25, p.Y(), 1e-5)
}

// blurDraws returns the draws of the VSM blur passes, in submission order.
func blurDraws(dev *gpu.NullDevice) []gpu.DrawRecord {
	var out []gpu.DrawRecord
	for _, d := range dev.Stats().DrawLog {
		if d.Pass == "VsmBlur" {
			out = append(out, d)
		}
	}
	return out
}

func TestVsmBlurPingPongsThroughPooledMap(t *testing.T) {
	s := newTestScene(t)
	spot := newSpot(mgl32.Vec3{0, 0, -1},
		light.WithShadowType(light.ShadowVSM16),
		light.WithVsmBlur(5, light.BlurGaussian),
	)
	s.lyr.AddLight(spot)
	s.addInstance(mgl32.Vec3{0, 0, -5}, nil)

	s.frame()

	sm := spot.ShadowMap()
	require.NotNil(t, sm)
	blurs := blurDraws(s.dev)
	require.Len(t, blurs, 2)

	cache := s.r.shadowRenderer.Cache()
	assert.Equal(t, 1, cache.Len())
	temp := cache.Get(s.dev, spot)
	// horizontal into the temporary, vertical back into the light's map
	assert.Same(t, temp.RenderTargets[0], blurs[0].Target)
	assert.Same(t, sm.RenderTargets[0], blurs[1].Target)
	assert.Same(t, blurs[0].Shader, blurs[1].Shader)
	cache.Add(spot, temp)

	s.frame()
	blurs = blurDraws(s.dev)
	require.Len(t, blurs, 2)
	assert.Same(t, temp.RenderTargets[0], blurs[0].Target)
	assert.Equal(t, 1, cache.Len())
}

func TestVsmBlurSkippedForSmallKernels(t *testing.T) {
	s := newTestScene(t)
	spot := newSpot(mgl32.Vec3{0, 0, -1},
		light.WithShadowType(light.ShadowVSM32),
		light.WithVsmBlur(1, light.BlurBox),
	)
	s.lyr.AddLight(spot)
	s.addInstance(mgl32.Vec3{0, 0, -5}, nil)

	s.frame()

	require.NotNil(t, spot.ShadowMap())
	assert.Empty(t, blurDraws(s.dev))
	assert.Zero(t, s.r.shadowRenderer.Cache().Len())
}

func TestVsmBlurSkippedForClusteredLights(t *testing.T) {
	s := newTestScene(t, WithClusteredLighting(true))
	spot := newSpot(mgl32.Vec3{0, 0, -1},
		light.WithShadowType(light.ShadowVSM16),
		light.WithVsmBlur(5, light.BlurGaussian),
	)
	s.lyr.AddLight(spot)
	s.addInstance(mgl32.Vec3{0, 0, -5}, nil)

	s.frame()

	require.True(t, spot.AtlasViewportAllocated())
	assert.Equal(t, 1, s.r.Stats().ShadowDrawCalls)
	assert.Empty(t, blurDraws(s.dev))
	assert.Zero(t, s.r.shadowRenderer.Cache().Len())
}

func TestOmniVsmFallsBackToPcf(t *testing.T) {
	s := newTestScene(t)
	omni := light.NewLight(light.LightTypeOmni,
		light.WithNode(graph.NewGraphNode(graph.WithLocalPosition(mgl32.Vec3{0, 0, -5}))),
		light.WithCastShadows(true),
		light.WithRange(10),
		light.WithShadowType(light.ShadowVSM16),
		light.WithVsmBlur(5, light.BlurGaussian),
	)
	require.Equal(t, light.ShadowPCF3, omni.ShadowType())
	s.lyr.AddLight(omni)
	s.addInstance(mgl32.Vec3{0, 0, -8}, nil)

	s.frame()

	require.NotNil(t, omni.ShadowMap())
	assert.Equal(t, light.ShadowPCF3, omni.ShadowType())
	assert.Empty(t, blurDraws(s.dev))
	assert.Zero(t, s.r.shadowRenderer.Cache().Len())
	assert.Equal(t, 1, s.r.Stats().ShadowDrawCalls)
}

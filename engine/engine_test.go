package engine

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/animator"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/layer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeadless(t *testing.T, options ...EngineBuilderOption) (Engine, *gpu.NullDevice) {
	t.Helper()
	dev := gpu.NewNullDevice(64, 64)
	e, err := NewEngine(append([]EngineBuilderOption{WithDevice(dev)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(e.Destroy)
	return e, dev
}

func TestNewEngineHeadlessUsesNullDevice(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	defer e.Destroy()

	assert.Equal(t, gpu.DeviceTypeNull, e.Device().DeviceType())
	assert.NotNil(t, e.Renderer())
	assert.NotNil(t, e.Composition())
	assert.Nil(t, e.Window())
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MSAASamples = 3
	_, err := NewEngine(WithConfig(cfg))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestFrameRendersCompositionAndAdvancesVersion(t *testing.T) {
	comp := layer.NewLayerComposition()
	comp.Push(layer.NewLayer(layer.WithName("World")))
	comp.AddCamera(camera.NewCamera())

	var rendered []float32
	e, dev := newHeadless(t, WithComposition(comp), WithProfiling(true))
	e.SetRenderCallback(func(dt float32) { rendered = append(rendered, dt) })

	version := dev.RenderVersion()
	stats := e.Frame(0.016)
	assert.Equal(t, 1, stats.Cameras)
	assert.Equal(t, version+1, dev.RenderVersion())
	assert.Equal(t, []float32{0.016}, rendered)
	assert.Same(t, comp, e.Composition())
}

func TestTickUpdatesAnimatorsBeforeCallback(t *testing.T) {
	root := graph.NewGraphNode(graph.WithName("root"))
	bone := graph.NewGraphNode(graph.WithName("bone"))
	root.AddChild(bone)

	a := animator.NewAnimator(root, animator.WithClips(animator.NewClip("slide", animator.Channel{
		Target:       "bone",
		Times:        []float32{0, 1},
		Translations: []mgl32.Vec3{{0, 0, 0}, {10, 0, 0}},
	})))
	a.Play(0, false)

	e, _ := newHeadless(t, WithAnimator(a))
	var seen mgl32.Vec3
	e.SetTickCallback(func(float32) { seen = bone.LocalPosition() })

	e.Tick(0.5)
	assert.InDelta(t, 5, seen.X(), 1e-4)

	e.RemoveAnimator(a)
	e.Tick(0.5)
	assert.InDelta(t, 5, bone.LocalPosition().X(), 1e-4)
}

func TestResizeUpdatesBackBufferCameras(t *testing.T) {
	main := camera.NewCamera()
	offscreen := camera.NewCamera(camera.WithAspect(1))
	comp := layer.NewLayerComposition()
	comp.AddCamera(main)
	comp.AddCamera(offscreen)

	e, dev := newHeadless(t, WithComposition(comp))
	rt := gpu.NewRenderTarget(dev)
	offscreen.SetRenderTarget(rt)

	e.Resize(200, 100)
	assert.Equal(t, 200, dev.Width())
	assert.Equal(t, 100, dev.Height())
	assert.InDelta(t, 2, main.Aspect(), 1e-6)
	assert.InDelta(t, 1, offscreen.Aspect(), 1e-6)

	// minimized windows report zero sizes
	e.Resize(0, 0)
	assert.Equal(t, 200, dev.Width())
}

func TestRunHeadlessStopsOnQuit(t *testing.T) {
	e, _ := newHeadless(t, WithTickRate(1000), WithRenderFrameLimit(1000))
	ticks := make(chan struct{}, 1)
	e.SetTickCallback(func(float32) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("engine never ticked")
	}
	e.Quit()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
}

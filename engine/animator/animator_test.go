package animator

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rig() (graph.GraphNode, graph.GraphNode) {
	root := graph.NewGraphNode(graph.WithName("root"))
	bone := graph.NewGraphNode(graph.WithName("bone"))
	root.AddChild(bone)
	return root, bone
}

func slide(name string, from, to mgl32.Vec3, length float32) *Clip {
	return NewClip(name, Channel{
		Target:       "bone",
		Times:        []float32{0, length},
		Translations: []mgl32.Vec3{from, to},
	})
}

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, want[i], got[i], 1e-4, "component %d", i)
	}
}

func TestNewClipDurationIsLastKey(t *testing.T) {
	c := NewClip("walk",
		Channel{Target: "a", Times: []float32{0, 0.5}},
		Channel{Target: "b", Times: []float32{0, 1.25}},
		Channel{Target: "c"},
	)
	assert.Equal(t, "walk", c.Name())
	assert.InDelta(t, 1.25, c.Duration(), 1e-6)
	assert.Len(t, c.Channels(), 3)
}

func TestChannelSampleInterpolation(t *testing.T) {
	ch := Channel{
		Times:        []float32{0, 1, 2},
		Translations: []mgl32.Vec3{{0, 0, 0}, {2, 0, 0}, {2, 4, 0}},
	}
	p := pose{scale: mgl32.Vec3{1, 1, 1}, rotation: mgl32.QuatIdent()}

	ch.sample(0.5, &p)
	assertVec3(t, mgl32.Vec3{1, 0, 0}, p.position)
	ch.sample(1.5, &p)
	assertVec3(t, mgl32.Vec3{2, 2, 0}, p.position)
	ch.sample(-1, &p)
	assertVec3(t, mgl32.Vec3{0, 0, 0}, p.position)
	ch.sample(5, &p)
	assertVec3(t, mgl32.Vec3{2, 4, 0}, p.position)
	// untouched components
	assertVec3(t, mgl32.Vec3{1, 1, 1}, p.scale)

	ch.Interpolation = InterpolationStep
	ch.sample(1.9, &p)
	assertVec3(t, mgl32.Vec3{2, 0, 0}, p.position)
}

func TestChannelSampleRotationSlerps(t *testing.T) {
	ch := Channel{
		Times:     []float32{0, 1},
		Rotations: []mgl32.Quat{mgl32.QuatIdent(), mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})},
	}
	var p pose
	ch.sample(0.5, &p)
	want := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0})
	assert.True(t, p.rotation.ApproxEqualThreshold(want, 1e-4), "got %v", p.rotation)
}

func TestUpdatePosesTargetNode(t *testing.T) {
	root, bone := rig()
	a := NewAnimator(root, WithClips(slide("move", mgl32.Vec3{}, mgl32.Vec3{4, 0, 0}, 2)))

	a.Update(0.5)
	assertVec3(t, mgl32.Vec3{}, bone.LocalPosition())

	a.Play(0, false)
	require.True(t, a.Playing())
	a.Update(0.5)
	assertVec3(t, mgl32.Vec3{1, 0, 0}, bone.LocalPosition())
	assertVec3(t, mgl32.Vec3{1, 0, 0}, bone.Position())

	// non-looping clips hold the last pose
	a.Update(10)
	assert.InDelta(t, 2, a.Time(), 1e-6)
	assertVec3(t, mgl32.Vec3{4, 0, 0}, bone.LocalPosition())
}

func TestUpdateLoopWrapsAndSpeedScales(t *testing.T) {
	root, bone := rig()
	a := NewAnimator(root, WithSpeed(2))
	idx := a.AddClip(slide("move", mgl32.Vec3{}, mgl32.Vec3{4, 0, 0}, 2))
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, a.NumClips())
	assert.Nil(t, a.Clip(3))

	a.Play(idx, true)
	a.Update(1.25)
	assert.InDelta(t, 0.5, a.Time(), 1e-5)
	assertVec3(t, mgl32.Vec3{1, 0, 0}, bone.LocalPosition())

	a.SetSpeed(-1)
	a.Update(1)
	assert.InDelta(t, 1.5, a.Time(), 1e-5)
}

func TestBlendToCrossFadesAndSwitches(t *testing.T) {
	root, bone := rig()
	a := NewAnimator(root, WithClips(
		slide("left", mgl32.Vec3{-2, 0, 0}, mgl32.Vec3{-2, 0, 0}, 1),
		slide("right", mgl32.Vec3{2, 0, 0}, mgl32.Vec3{2, 0, 0}, 1),
	))
	a.Play(0, true)
	a.Update(0.1)
	assertVec3(t, mgl32.Vec3{-2, 0, 0}, bone.LocalPosition())

	a.BlendTo(1, 1)
	require.True(t, a.IsBlending())
	a.Update(0.5)
	assert.InDelta(t, 0.5, a.BlendProgress(), 1e-5)
	assertVec3(t, mgl32.Vec3{0, 0, 0}, bone.LocalPosition())

	a.Update(0.5)
	assert.False(t, a.IsBlending())
	assert.Zero(t, a.BlendProgress())
	assert.Equal(t, 1, a.CurrentClip())
	assertVec3(t, mgl32.Vec3{2, 0, 0}, bone.LocalPosition())
}

func TestCancelBlendKeepsSourceClip(t *testing.T) {
	root, bone := rig()
	a := NewAnimator(root, WithClips(
		slide("left", mgl32.Vec3{-2, 0, 0}, mgl32.Vec3{-2, 0, 0}, 1),
		slide("right", mgl32.Vec3{2, 0, 0}, mgl32.Vec3{2, 0, 0}, 1),
	))
	a.Play(0, true)
	a.BlendTo(1, 2)
	a.Update(0.5)
	a.CancelBlend()
	a.Update(0.1)
	assert.Equal(t, 0, a.CurrentClip())
	assertVec3(t, mgl32.Vec3{-2, 0, 0}, bone.LocalPosition())
}

func TestBlendToWhileStoppedStartsTarget(t *testing.T) {
	root, _ := rig()
	a := NewAnimator(root, WithClips(
		slide("a", mgl32.Vec3{}, mgl32.Vec3{}, 1),
		slide("b", mgl32.Vec3{}, mgl32.Vec3{}, 1),
	))
	a.BlendTo(1, 1)
	assert.True(t, a.Playing())
	assert.False(t, a.IsBlending())
	assert.Equal(t, 1, a.CurrentClip())

	a.Stop()
	assert.False(t, a.Playing())
}

func TestMissingTargetIsSkipped(t *testing.T) {
	root, bone := rig()
	clip := NewClip("ghost", Channel{
		Target:       "nobody",
		Times:        []float32{0, 1},
		Translations: []mgl32.Vec3{{1, 1, 1}, {1, 1, 1}},
	})
	a := NewAnimator(root, WithClips(clip))
	a.Play(0, false)
	assert.NotPanics(t, func() { a.Update(0.5) })
	assertVec3(t, mgl32.Vec3{}, bone.LocalPosition())
}

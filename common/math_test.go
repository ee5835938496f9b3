package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func assertMatNear(t *testing.T, want, got mgl32.Mat4) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "element %d", i)
	}
}

func TestComposeTRSMatchesMatrixProduct(t *testing.T) {
	pos := mgl32.Vec3{1, -2, 3}
	rot := mgl32.QuatRotate(0.7, mgl32.Vec3{0.3, 1, 0.2}.Normalize())
	scale := mgl32.Vec3{2, 0.5, -1}

	want := mgl32.Translate3D(pos[0], pos[1], pos[2]).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))

	assertMatNear(t, want, ComposeTRS(pos, rot, scale))
}

func TestDecomposeRoundTrip(t *testing.T) {
	rot := EulerToQuat(10, 20, 30)
	m := ComposeTRS(mgl32.Vec3{4, 5, 6}, rot, mgl32.Vec3{2, 3, 4})

	assert.InDelta(t, 2, ScaleOf(m)[0], 1e-4)
	assert.InDelta(t, 3, ScaleOf(m)[1], 1e-4)
	assert.InDelta(t, 4, ScaleOf(m)[2], 1e-4)
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, TranslationOf(m))

	e := EulerFromMat4(m)
	assert.InDelta(t, 10, e[0], 1e-2)
	assert.InDelta(t, 20, e[1], 1e-2)
	assert.InDelta(t, 30, e[2], 1e-2)

	assertMatNear(t, rot.Mat4(), RotationOf(m).Mat4())
}

func TestScaleSign(t *testing.T) {
	assert.Equal(t, float32(1), ScaleSign(mgl32.Scale3D(1, 2, 3)))
	assert.Equal(t, float32(-1), ScaleSign(mgl32.Scale3D(-1, 2, 3)))
	assert.Equal(t, float32(1), ScaleSign(mgl32.Scale3D(-1, -2, 3)))
}

func TestViewportMatrixMapsClipCorners(t *testing.T) {
	m := ViewportMatrix(0.5, 0, 0.5, 0.5)

	lo := TransformPoint(m, mgl32.Vec3{-1, -1, -1})
	hi := TransformPoint(m, mgl32.Vec3{1, 1, 1})

	assert.InDelta(t, 0.5, lo[0], 1e-6)
	assert.InDelta(t, 0, lo[1], 1e-6)
	assert.InDelta(t, 0, lo[2], 1e-6)
	assert.InDelta(t, 1, hi[0], 1e-6)
	assert.InDelta(t, 0.5, hi[1], 1e-6)
	assert.InDelta(t, 1, hi[2], 1e-6)
}

func TestLookRotationFacesDirection(t *testing.T) {
	dir := mgl32.Vec3{1, -1, 0}.Normalize()
	q := LookRotation(dir, mgl32.Vec3{0, 1, 0})
	fwd := q.Rotate(mgl32.Vec3{0, 0, -1})

	assert.InDelta(t, dir[0], fwd[0], 1e-4)
	assert.InDelta(t, dir[1], fwd[1], 1e-4)
	assert.InDelta(t, dir[2], fwd[2], 1e-4)
}

func TestFrustumContainsSphere(t *testing.T) {
	proj := Perspective(90, 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	f := ExtractFrustumFromMatrix(proj.Mul4(view))

	assert.Equal(t, SphereInside, f.ContainsSphere(BoundingSphere{Center: mgl32.Vec3{0, 0, -10}, Radius: 1}))
	assert.Equal(t, SphereIntersecting, f.ContainsSphere(BoundingSphere{Center: mgl32.Vec3{0, 0, 0.5}, Radius: 1}))
	assert.Equal(t, SphereOutside, f.ContainsSphere(BoundingSphere{Center: mgl32.Vec3{0, 0, 10}, Radius: 1}))
	assert.True(t, f.ContainsPoint(mgl32.Vec3{0, 0, -50}))
	assert.False(t, f.ContainsPoint(mgl32.Vec3{0, 0, -150}))
}

func TestBoundingBoxTransformAndAdd(t *testing.T) {
	src := NewBoundingBoxMinMax(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})

	var b BoundingBox
	b.SetFromTransformedAabb(src, mgl32.Translate3D(10, 0, 0).Mul4(mgl32.Scale3D(2, 1, 1)))
	assert.Equal(t, mgl32.Vec3{10, 0, 0}, b.Center)
	assert.Equal(t, mgl32.Vec3{2, 1, 1}, b.HalfExtents)

	b.Add(NewBoundingBoxMinMax(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}))
	assert.Equal(t, mgl32.Vec3{0, -1, -1}, b.Min())
	assert.Equal(t, mgl32.Vec3{12, 1, 1}, b.Max())
	assert.True(t, b.ContainsPoint(mgl32.Vec3{5, 0, 0}))
}

func TestHaltonJitterSequence(t *testing.T) {
	first := HaltonJitter(0)
	assert.InDelta(t, 0.5, first[0], 1e-6)
	assert.InDelta(t, 1.0/3.0, first[1], 1e-6)

	second := HaltonJitter(1)
	assert.InDelta(t, 0.25, second[0], 1e-6)
	assert.InDelta(t, 2.0/3.0, second[1], 1e-6)

	assert.Equal(t, HaltonJitter(3), HaltonJitter(3+HaltonSequenceLength))
}

func TestBlueNoiseIsDeterministicAndInRange(t *testing.T) {
	a := NewBlueNoise(7)
	b := NewBlueNoise(7)
	for i := 0; i < 32; i++ {
		va, vb := a.Vec4(), b.Vec4()
		assert.Equal(t, va, vb)
		for _, c := range va {
			assert.GreaterOrEqual(t, c, float32(0))
			assert.Less(t, c, float32(1))
		}
	}
}

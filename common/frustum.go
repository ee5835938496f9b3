package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// DistanceTo returns the signed distance from the plane to p. Positive values are on the side the
// normal points to.
func (p Plane) DistanceTo(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// Sphere containment results returned by Frustum.ContainsSphere.
const (
	SphereOutside      = 0
	SphereIntersecting = 1
	SphereInside       = 2
)

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix.
// The matrix should be the combined Projection * View matrix with a [-1, 1] clip depth range.
// Uses the Gribb/Hartmann method for plane extraction.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the column-major view-projection matrix
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj mgl32.Mat4) Frustum {
	var f Frustum
	f.SetFromMat4(viewProj)
	return f
}

// SetFromMat4 recomputes the planes in place from a view-projection matrix.
func (f *Frustum) SetFromMat4(viewProj mgl32.Mat4) {
	w := viewProj.Row(3)
	// Each plane is row3 +/- row(axis); the row order matches the plane index constants.
	for axis := 0; axis < 3; axis++ {
		r := viewProj.Row(axis)
		f.setPlane(axis*2, w.Add(r))
		f.setPlane(axis*2+1, w.Sub(r))
	}
}

func (f *Frustum) setPlane(index int, v mgl32.Vec4) {
	n := v.Vec3()
	l := n.Len()
	if l == 0 {
		f.Planes[index] = Plane{}
		return
	}
	inv := 1 / l
	f.Planes[index] = Plane{Normal: n.Mul(inv), Distance: v[3] * inv}
}

// ContainsPoint reports whether p lies inside all six planes.
func (f *Frustum) ContainsPoint(p mgl32.Vec3) bool {
	for i := range f.Planes {
		if f.Planes[i].DistanceTo(p) <= 0 {
			return false
		}
	}
	return true
}

// ContainsSphere classifies a sphere against the frustum.
//
// Returns:
//   - int: SphereOutside, SphereIntersecting or SphereInside
func (f *Frustum) ContainsSphere(s BoundingSphere) int {
	inside := 0
	for i := range f.Planes {
		d := f.Planes[i].DistanceTo(s.Center)
		if d <= -s.Radius {
			return SphereOutside
		}
		if d > s.Radius {
			inside++
		}
	}
	if inside == len(f.Planes) {
		return SphereInside
	}
	return SphereIntersecting
}

// IntersectsBox reports whether the axis-aligned box intersects the frustum using the
// positive-vertex test. Boxes straddling a corner may report a false positive.
func (f *Frustum) IntersectsBox(b BoundingBox) bool {
	for i := range f.Planes {
		n := f.Planes[i].Normal
		r := b.HalfExtents[0]*math32.Abs(n[0]) + b.HalfExtents[1]*math32.Abs(n[1]) + b.HalfExtents[2]*math32.Abs(n[2])
		if f.Planes[i].DistanceTo(b.Center) < -r {
			return false
		}
	}
	return true
}

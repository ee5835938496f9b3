package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// BoundingBox is an axis-aligned box stored as center and half extents.
type BoundingBox struct {
	Center      mgl32.Vec3
	HalfExtents mgl32.Vec3
}

// BoundingSphere is a sphere described by its center and radius.
type BoundingSphere struct {
	Center mgl32.Vec3
	Radius float32
}

// NewBoundingBoxMinMax builds a box from its corners.
func NewBoundingBoxMinMax(min, max mgl32.Vec3) BoundingBox {
	var b BoundingBox
	b.SetMinMax(min, max)
	return b
}

// Min returns the minimum corner.
func (b BoundingBox) Min() mgl32.Vec3 {
	return b.Center.Sub(b.HalfExtents)
}

// Max returns the maximum corner.
func (b BoundingBox) Max() mgl32.Vec3 {
	return b.Center.Add(b.HalfExtents)
}

// SetMinMax sets the box from its corners.
func (b *BoundingBox) SetMinMax(min, max mgl32.Vec3) {
	b.Center = min.Add(max).Mul(0.5)
	b.HalfExtents = max.Sub(min).Mul(0.5)
}

// Add grows b to also enclose other.
func (b *BoundingBox) Add(other BoundingBox) {
	bMin, bMax := b.Min(), b.Max()
	oMin, oMax := other.Min(), other.Max()
	for i := 0; i < 3; i++ {
		bMin[i] = math32.Min(bMin[i], oMin[i])
		bMax[i] = math32.Max(bMax[i], oMax[i])
	}
	b.SetMinMax(bMin, bMax)
}

// AddPoint grows b to also enclose p.
func (b *BoundingBox) AddPoint(p mgl32.Vec3) {
	b.Add(BoundingBox{Center: p})
}

// SetFromTransformedAabb sets b to the axis-aligned bounds of src transformed by m.
// The half extents are projected through the absolute value of the rotation-scale part of m.
//
// Parameters:
//   - src: the local-space box
//   - m: the affine transform to apply
func (b *BoundingBox) SetFromTransformedAabb(src BoundingBox, m mgl32.Mat4) {
	c := TransformPoint(m, src.Center)
	h := src.HalfExtents
	var e mgl32.Vec3
	for row := 0; row < 3; row++ {
		e[row] = math32.Abs(m[0*4+row])*h[0] + math32.Abs(m[1*4+row])*h[1] + math32.Abs(m[2*4+row])*h[2]
	}
	b.Center = c
	b.HalfExtents = e
}

// ContainsPoint reports whether p is inside or on the box.
func (b BoundingBox) ContainsPoint(p mgl32.Vec3) bool {
	min, max := b.Min(), b.Max()
	for i := 0; i < 3; i++ {
		if p[i] < min[i] || p[i] > max[i] {
			return false
		}
	}
	return true
}

// Intersects reports whether the two boxes overlap.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	for i := 0; i < 3; i++ {
		if math32.Abs(b.Center[i]-other.Center[i]) > b.HalfExtents[i]+other.HalfExtents[i] {
			return false
		}
	}
	return true
}

// BoundingSphere returns the sphere enclosing the box.
func (b BoundingBox) BoundingSphere() BoundingSphere {
	return BoundingSphere{Center: b.Center, Radius: b.HalfExtents.Len()}
}

// Intersects reports whether the two spheres overlap.
func (s BoundingSphere) Intersects(other BoundingSphere) bool {
	r := s.Radius + other.Radius
	d := s.Center.Sub(other.Center)
	return d.Dot(d) <= r*r
}

package light

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// GetBoundingSphere writes the sphere enclosing the lit volume of an omni or spot light. Wide
// cones use the cone base radius; narrow cones a sphere through apex and base rim.
//
// Parameters:
//   - out: the sphere to fill
func (l *Light) GetBoundingSphere(out *common.BoundingSphere) {
	pos := l.node.Position()
	if l.lightType != LightTypeSpot {
		out.Center = pos
		out.Radius = l.attenuationEnd
		return
	}
	size := l.attenuationEnd
	angle := mgl32.DegToRad(l.outerConeAngle)
	cosAngle := math32.Cos(angle)
	var offset float32
	if l.outerConeAngle > 45 {
		out.Radius = size * math32.Sin(angle)
		offset = size * cosAngle
	} else {
		out.Radius = size / (2 * cosAngle)
		offset = out.Radius
	}
	out.Center = pos.Add(l.node.Forward().Mul(offset))
}

// GetBoundingBox writes the world box enclosing the lit volume of an omni or spot light.
//
// Parameters:
//   - out: the box to fill
func (l *Light) GetBoundingBox(out *common.BoundingBox) {
	if l.lightType != LightTypeSpot {
		out.Center = l.node.Position()
		out.HalfExtents = mgl32.Vec3{l.attenuationEnd, l.attenuationEnd, l.attenuationEnd}
		return
	}
	r := l.attenuationEnd
	base := r * math32.Tan(mgl32.DegToRad(l.outerConeAngle))
	local := common.BoundingBox{
		Center:      mgl32.Vec3{0, 0, -r * 0.5},
		HalfExtents: mgl32.Vec3{base, base, r * 0.5},
	}
	pose := mgl32.Translate3D(l.node.Position().Elem()).Mul4(l.node.Rotation().Mat4())
	out.SetFromTransformedAabb(local, pose)
}

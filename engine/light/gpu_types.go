package light

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ClusteredLightStride is the number of floats one light occupies in the clustered light data
// texture: four vec4 rows of parameters followed by the shadow matrix.
const ClusteredLightStride = 32

// GPUClusteredLight is the layout of one light in the clustered light data texture.
//
// Layout (vec4 rows):
//
//	row 0: position.xyz, range
//	row 1: color.rgb * intensity, type
//	row 2: direction.xyz, cos(outer cone)
//	row 3: cos(inner cone), casts shadow, shadow bias, normal offset bias
//	row 4-7: shadow matrix in atlas space (spot), or the atlas viewport in row 4 (omni)
type GPUClusteredLight struct {
	Position     mgl32.Vec3
	Range        float32
	Color        mgl32.Vec3
	Type         float32
	Direction    mgl32.Vec3
	CosOuter     float32
	CosInner     float32
	CastsShadow  float32
	ShadowBias   float32
	NormalBias   float32
	ShadowMatrix mgl32.Mat4
}

// Pack writes the light into out, which must hold ClusteredLightStride floats.
func (g *GPUClusteredLight) Pack(out []float32) {
	_ = out[ClusteredLightStride-1]
	copy(out[0:3], g.Position[:])
	out[3] = g.Range
	copy(out[4:7], g.Color[:])
	out[7] = g.Type
	copy(out[8:11], g.Direction[:])
	out[11] = g.CosOuter
	out[12] = g.CosInner
	out[13] = g.CastsShadow
	out[14] = g.ShadowBias
	out[15] = g.NormalBias
	copy(out[16:32], g.ShadowMatrix[:])
}

// PackClustered writes the light's clustered representation into out.
//
// Parameters:
//   - out: destination slice of at least ClusteredLightStride floats
func (l *Light) PackClustered(out []float32) {
	g := GPUClusteredLight{
		Position:   l.node.Position(),
		Range:      l.attenuationEnd,
		Color:      l.color.Mul(l.intensity),
		Type:       float32(l.lightType),
		Direction:  l.node.Forward(),
		CosOuter:   math32.Cos(mgl32.DegToRad(l.outerConeAngle)),
		CosInner:   math32.Cos(mgl32.DegToRad(l.innerConeAngle)),
		ShadowBias: l.shadowBias,
		NormalBias: l.normalOffsetBias,
	}
	if l.castShadows && l.atlasViewportAllocated {
		g.CastsShadow = 1
		switch {
		case l.lightType == LightTypeOmni:
			copy(g.ShadowMatrix[0:4], l.atlasViewport[:])
		case len(l.renderData) > 0:
			g.ShadowMatrix = l.renderData[0].ShadowMatrix
		}
	}
	g.Pack(out)
}

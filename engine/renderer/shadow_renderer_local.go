package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/layer"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/mesh_instance"
	"github.com/go-gl/mathgl/mgl32"
)

// cubeFaceLayer maps an omni shadow face to the cube texture layer it renders into. Cube lookups
// negate z, so the z faces swap.
var cubeFaceLayer = [6]int{0, 1, 2, 3, 5, 4}

// omniFaces orients the shadow camera of each omni face: +x, -x, +y, -y, +z, -z.
var omniFaces = [6]struct{ forward, up mgl32.Vec3 }{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
}

// ShadowRendererLocal culls the shadow faces of omni and spot lights.
type ShadowRendererLocal struct {
	s *ShadowRenderer
}

// Cull places the shadow camera of every face of l and culls its casters. Non-clustered lights
// get their own shadow map here; clustered lights render into the atlas slot assigned by the
// LightTextureAtlas and are skipped while they have none.
//
// Parameters:
//   - l: an omni or spot light
//   - comp: the composition providing the casters
//   - casters: an explicit caster list, or nil to gather from the layers holding l
func (sl *ShadowRendererLocal) Cull(l *light.Light, comp *layer.LayerComposition, casters []*mesh_instance.MeshInstance) {
	s := sl.s
	clustered := s.clusteredLight(l)
	if clustered {
		if !l.AtlasViewportAllocated() {
			return
		}
	} else {
		s.allocateShadowMap(l)
	}

	position := l.Position()
	for face := 0; face < l.NumShadowFaces(); face++ {
		rd := s.PrepareFace(l, nil, face)
		if rd == nil {
			return
		}
		shadowCam := rd.ShadowCamera
		shadowCam.SetAspect(1)
		shadowCam.SetNearClip(l.Range() * light.OmniShadowNearScale)
		shadowCam.SetFarClip(l.Range())
		node := shadowCam.Node()
		node.SetPosition(position)
		if l.Type() == light.LightTypeSpot {
			shadowCam.SetFov(l.OuterConeAngle() * 2)
			node.SetRotation(l.Node().Rotation())
		} else {
			shadowCam.SetFov(90)
			node.SetRotation(common.LookRotation(omniFaces[face].forward, omniFaces[face].up))
		}

		rd.ShadowViewport = localShadowViewport(l, rd, face, clustered)
		rd.ShadowScissor = rd.ShadowViewport
		updateCameraFrustum(shadowCam)
		s.CullShadowCasters(comp, l, rd, casters)
	}
}

// localShadowViewport returns the pixel rectangle face renders into: the whole target, the
// light's atlas slot, or for omni lights one cell of the 3x2 grid splitting the slot.
func localShadowViewport(l *light.Light, rd *light.LightRenderData, face int, clustered bool) mgl32.Vec4 {
	target := rd.ShadowCamera.RenderTarget()
	w, h := float32(target.Width()), float32(target.Height())
	if !clustered {
		return mgl32.Vec4{0, 0, w, h}
	}
	slot := l.AtlasViewport()
	x, y, vw, vh := slot[0]*w, slot[1]*h, slot[2]*w, slot[3]*h
	if l.Type() == light.LightTypeOmni {
		vw /= 3
		vh /= 2
		x += float32(face%3) * vw
		y += float32(face/3) * vh
	}
	return mgl32.Vec4{x, y, vw, vh}
}

// allocateShadowMap gives l its own shadow map, replacing one created for a different
// resolution.
func (s *ShadowRenderer) allocateShadowMap(l *light.Light) {
	if sm := l.ShadowMap(); sm != nil && !sm.Cached && sm.Texture != nil && sm.Texture.Width() == l.ShadowResolution() {
		return
	}
	l.SetShadowMap(light.NewShadowMap(s.device, l))
	logger.Logger().Debug("shadow map allocated",
		"light", l.ID(),
		"type", l.Type().String(),
		"shadowType", l.ShadowType().String(),
		"resolution", l.ShadowResolution(),
	)
}

package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/layer"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/mesh_instance"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// casterCullDepth is how far toward the light the shadow camera looks for casters before the
// depth range is fitted to the casters found.
const casterCullDepth float32 = 10000

// ShadowRendererDirectional culls the cascades of directional lights, per viewing camera.
type ShadowRendererDirectional struct {
	s *ShadowRenderer
}

// Cull splits the view frustum of cam into the cascades of l, fits an orthographic shadow camera
// around each cascade, culls its casters and writes the cascade split distances.
//
// Cascade cameras are texel snapped so the shadow does not shimmer while the camera moves, and
// their depth range is widened to enclose every visible caster.
//
// Parameters:
//   - l: a directional light
//   - comp: the composition providing the casters
//   - cam: the viewing camera
func (sd *ShadowRendererDirectional) Cull(l *light.Light, comp *layer.LayerComposition, cam camera.Camera) {
	s := sd.s
	s.allocateShadowMap(l)

	cascades := l.NumCascades()
	near := cam.NearClip()
	far := math32.Min(cam.FarClip(), l.ShadowDistance())
	distances := l.ShadowCascadeDistances()
	splitCascades(distances, cascades, near, far, l.CascadeDistribution())

	camNode := cam.Node()
	camWorld := common.ComposeTRS(camNode.Position(), camNode.Rotation(), mgl32.Vec3{1, 1, 1})
	lightRot := l.Node().Rotation()
	lightRotInv := lightRot.Inverse()

	splitNear := near
	for face := 0; face < cascades; face++ {
		splitFar := distances[face]
		rd := s.PrepareFace(l, cam, face)
		if rd == nil {
			return
		}
		shadowCam := rd.ShadowCamera
		viewport := cascadeViewport(face, cascades, rd.ShadowCamera.RenderTarget().Width())

		corners := cam.FrustumCorners(splitNear, splitFar)
		var center mgl32.Vec3
		for i := range corners {
			corners[i] = common.TransformPoint(camWorld, corners[i])
			center = center.Add(corners[i])
		}
		center = center.Mul(1.0 / float32(len(corners)))
		var radius float32
		for _, c := range corners {
			radius = math32.Max(radius, c.Sub(center).Len())
		}
		radius = math32.Max(radius, 1e-3)

		// snap the center to whole texels in light space
		texel := 2 * radius / viewport[2]
		local := lightRotInv.Rotate(center)
		local[0] = math32.Floor(local[0]/texel) * texel
		local[1] = math32.Floor(local[1]/texel) * texel
		center = lightRot.Rotate(local)

		node := shadowCam.Node()
		node.SetRotation(lightRot)
		node.SetPosition(center)
		shadowCam.SetAspect(1)
		shadowCam.SetOrthoHeight(radius)
		shadowCam.SetNearClip(-casterCullDepth)
		shadowCam.SetFarClip(radius)
		updateCameraFrustum(shadowCam)
		s.CullShadowCasters(comp, l, rd, nil)

		minDepth, maxDepth := -radius, radius
		forward := node.Forward()
		for _, c := range rd.VisibleCasters {
			mi, ok := c.(*mesh_instance.MeshInstance)
			if !ok {
				continue
			}
			sphere := mi.Aabb().BoundingSphere()
			d := sphere.Center.Sub(center).Dot(forward)
			minDepth = math32.Min(minDepth, d-sphere.Radius)
			maxDepth = math32.Max(maxDepth, d+sphere.Radius)
		}
		shadowCam.SetNearClip(minDepth)
		shadowCam.SetFarClip(maxDepth)
		rd.DepthRangeCompensation = 2 * radius / (maxDepth - minDepth)
		updateCameraFrustum(shadowCam)

		rd.ShadowViewport = viewport
		rd.ShadowScissor = viewport
		splitNear = splitFar
	}
}

// splitCascades writes the far distance of each cascade, blending linear and logarithmic splits
// by distribution. Unused entries hold far.
func splitCascades(out *[light.MaxCascades]float32, cascades int, near, far, distribution float32) {
	near = math32.Max(near, 1e-3)
	for i := 1; i <= cascades; i++ {
		f := float32(i) / float32(cascades)
		linear := near + (far-near)*f
		log := near * math32.Pow(far/near, f)
		out[i-1] = linear + (log-linear)*distribution
	}
	for i := cascades; i < light.MaxCascades; i++ {
		out[i] = far
	}
}

// cascadeViewport returns the pixel rectangle of a cascade: the whole map for a single cascade,
// otherwise one cell of a 2x2 grid.
func cascadeViewport(face, cascades, size int) mgl32.Vec4 {
	full := float32(size)
	if cascades == 1 {
		return mgl32.Vec4{0, 0, full, full}
	}
	half := full * 0.5
	return mgl32.Vec4{float32(face%2) * half, float32(face/2) * half, half, half}
}

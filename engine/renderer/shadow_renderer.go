package renderer

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/layer"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/mesh_instance"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ShadowRenderer culls shadow casters and renders the shadow maps of lights. Local lights are
// handled by ShadowRendererLocal, directional lights by ShadowRendererDirectional; both share the
// per-face protocol implemented here.
type ShadowRenderer struct {
	r      *renderer
	device gpu.Device

	local       *ShadowRendererLocal
	directional *ShadowRendererDirectional

	cache *ShadowMapCache
	blur  *vsmBlur

	gaussWeights map[int][]float32

	// sortScratch and casterSet hold the casters of the face being culled.
	sortScratch []casterDistance
	casterSet   map[*mesh_instance.MeshInstance]struct{}

	depthClear *depthClearQuad
}

type casterDistance struct {
	mi   *mesh_instance.MeshInstance
	dist float32
}

func newShadowRenderer(r *renderer) *ShadowRenderer {
	s := &ShadowRenderer{
		r:            r,
		device:       r.device,
		cache:        NewShadowMapCache(),
		gaussWeights: make(map[int][]float32),
		casterSet:    make(map[*mesh_instance.MeshInstance]struct{}),
	}
	s.local = &ShadowRendererLocal{s: s}
	s.directional = &ShadowRendererDirectional{s: s}
	return s
}

// Local returns the renderer of omni and spot light shadows.
func (s *ShadowRenderer) Local() *ShadowRendererLocal { return s.local }

// Directional returns the renderer of cascaded directional shadows.
func (s *ShadowRenderer) Directional() *ShadowRendererDirectional { return s.directional }

// Cache returns the pool of temporary shadow maps used by the VSM blur.
func (s *ShadowRenderer) Cache() *ShadowMapCache { return s.cache }

// NeedsShadowRendering reports whether the shadow of l is rendered this frame: the light is
// enabled, casts shadows, is visible and its update mode is not ShadowUpdateNone. A light in
// ShadowUpdateThisFrame drops to ShadowUpdateNone on the first call, so it renders once.
//
// Parameters:
//   - l: the light
//
// Returns:
//   - bool: true when the shadow map must be rendered
func (s *ShadowRenderer) NeedsShadowRendering(l *light.Light) bool {
	needs := l.Enabled() && l.CastShadows() && l.ShadowUpdateMode() != light.ShadowUpdateNone && l.VisibleThisFrame()
	if l.ShadowUpdateMode() == light.ShadowUpdateThisFrame {
		l.SetShadowUpdateMode(light.ShadowUpdateNone)
	}
	if needs {
		s.r.stats.ShadowMapUpdates += l.NumShadowFaces()
	}
	return needs
}

// clusteredLight reports whether l renders into the clustered shadow atlas.
func (s *ShadowRenderer) clusteredLight(l *light.Light) bool {
	return s.r.clustered && l.Type() != light.LightTypeDirectional
}

// CullShadowCasters collects the shadow casters of l visible to shadowCam into rd, sorted front
// to back along the shadow camera's forward axis.
//
// Parameters:
//   - comp: the composition whose layers provide the casters
//   - l: the light
//   - rd: the render data receiving the visible casters
//   - casters: an explicit caster list, or nil to gather from every layer holding l
func (s *ShadowRenderer) CullShadowCasters(comp *layer.LayerComposition, l *light.Light, rd *light.LightRenderData, casters []*mesh_instance.MeshInstance) {
	shadowCam := rd.ShadowCamera
	clear(rd.VisibleCasters)
	rd.VisibleCasters = rd.VisibleCasters[:0]
	clear(s.sortScratch)
	s.sortScratch = s.sortScratch[:0]
	clear(s.casterSet)

	if casters != nil {
		s.addCasters(shadowCam, casters)
	} else {
		visited := s.r.visitedLayers
		clear(visited)
		for _, lyr := range comp.Layers() {
			if _, ok := visited[lyr]; ok || !lyr.HasLight(l) {
				continue
			}
			visited[lyr] = struct{}{}
			s.addCasters(shadowCam, lyr.ShadowCasters())
		}
	}

	slices.SortStableFunc(s.sortScratch, func(a, b casterDistance) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return 0
	})
	for _, c := range s.sortScratch {
		rd.VisibleCasters = append(rd.VisibleCasters, c.mi)
	}
	s.r.stats.ShadowCastersCulled += len(s.sortScratch)
}

func (s *ShadowRenderer) addCasters(shadowCam camera.Camera, casters []*mesh_instance.MeshInstance) {
	position := shadowCam.Node().Position()
	forward := shadowCam.Node().Forward()
	for _, mi := range casters {
		if !mi.CastShadow() {
			continue
		}
		if mi.Cull() && !mi.IsVisible(shadowCam) {
			continue
		}
		if _, ok := s.casterSet[mi]; ok {
			continue
		}
		s.casterSet[mi] = struct{}{}
		mi.SetVisibleThisFrame(true)
		s.r.addProcessing(mi)
		aabb := mi.Aabb()
		s.sortScratch = append(s.sortScratch, casterDistance{mi: mi, dist: aabb.Center.Sub(position).Dot(forward)})
	}
}

// renderDataCamera returns the camera key of the render data: the viewing camera for
// directional lights, nil for local lights.
func renderDataCamera(l *light.Light, cam camera.Camera) camera.Camera {
	if l.Type() == light.LightTypeDirectional {
		return cam
	}
	return nil
}

// PrepareFace binds the shadow camera of (l, cam, face) to the render target it renders into:
// the cube face target for non-clustered omni lights, the only target otherwise.
//
// Parameters:
//   - l: the light
//   - cam: the viewing camera, used by directional lights only
//   - face: the cascade or cube face
//
// Returns:
//   - *light.LightRenderData: the face's render data, nil when the light has no shadow map
func (s *ShadowRenderer) PrepareFace(l *light.Light, cam camera.Camera, face int) *light.LightRenderData {
	sm := l.ShadowMap()
	if sm == nil || len(sm.RenderTargets) == 0 {
		logger.Logger().Warn("shadow face has no shadow map", "light", l.ID(), "face", face)
		return nil
	}
	rd := l.GetRenderData(renderDataCamera(l, cam), face)
	index := 0
	if l.Type() == light.LightTypeOmni && !s.clusteredLight(l) {
		index = cubeFaceLayer[face]
	}
	rd.ShadowCamera.SetRenderTarget(sm.RenderTargets[min(index, len(sm.RenderTargets)-1)])
	return rd
}

// RenderFace renders one face of the shadow of l into the render pass already started on its
// target.
//
// Parameters:
//   - l: the light
//   - cam: the viewing camera, used by directional lights only
//   - face: the cascade or cube face
//   - clearFace: clear the face's viewport before drawing
func (s *ShadowRenderer) RenderFace(l *light.Light, cam camera.Camera, face int, clearFace bool) {
	rd := l.GetRenderData(renderDataCamera(l, cam), face)
	shadowCam := rd.ShadowCamera
	target := shadowCam.RenderTarget()
	if target == nil {
		logger.Logger().Warn("shadow face has no render target", "light", l.ID(), "face", face)
		return
	}
	clustered := s.clusteredLight(l)

	rd.ShadowMatrix = shadowMatrix(shadowCam, rd.ShadowViewport, target)
	if l.Type() == light.LightTypeDirectional {
		copy(l.ShadowMatrixPalette()[face*16:], rd.ShadowMatrix[:])
	}

	s.r.setCameraUniforms(shadowCam, target)
	rd.ViewBindGroups = s.r.setupViewUniformBuffers(rd.ViewBindGroups)
	vp, sc := rd.ShadowViewport, rd.ShadowScissor
	s.device.SetViewport(vp[0], vp[1], vp[2], vp[3])
	s.device.SetScissor(sc[0], sc[1], sc[2], sc[3])

	if clearFace {
		if clustered {
			s.depthClearQuad().draw(s.device)
		} else {
			s.device.Clear(shadowCam.ClearOptions())
		}
	}

	blend := gpu.BlendNoColorWrite
	if l.WritesShadowColor(clustered) && target.ColorBuffer() != nil {
		blend = gpu.BlendNone
	}
	s.device.SetBlendState(blend)
	s.device.SetDepthState(l.ShadowDepthState(clustered))

	s.submitCasters(l, rd.VisibleCasters, clustered)

	s.device.SetBlendState(gpu.BlendNone)
	s.device.SetDepthState(gpu.DepthDefault)
}

// submitCasters draws the casters of one face with the shadow pass of l.
func (s *ShadowRenderer) submitCasters(l *light.Light, casters []light.Caster, clustered bool) {
	pass := material.ShadowPass(l.Type(), l.ShadowType())
	params := material.ShaderVariantParams{Clustered: clustered}
	r := s.r
	for _, c := range casters {
		mi, ok := c.(*mesh_instance.MeshInstance)
		if !ok {
			continue
		}
		mesh := mi.Mesh()
		if mesh == nil {
			continue
		}
		si := mi.GetShaderInstance(pass, 0, s.device, params)
		if si == nil {
			continue
		}
		mat := mi.Material()
		if mat.Dirty() {
			mat.Update()
		}
		r.setBaseConstants(mat)
		mi.SetParameters(s.device)
		r.setupCullMode(true, 1, mi)
		if !s.device.SetShader(si.Shader()) {
			continue
		}
		r.setVertexBuffers(mesh)
		r.setSkinning(mi)
		r.setMorphing(mi)
		r.setupMeshUniformBuffers(si, mi)
		if r.drawInstance(mi, mesh, mi.RenderStyle()) {
			r.stats.ShadowDrawCalls++
		}
	}
}

// Render renders every face of the shadow of l, one render pass per shadow render target cleared
// at its start, then blurs VSM maps. Faces without casters still clear.
//
// Parameters:
//   - l: the light
//   - cam: the viewing camera for directional lights, nil for local lights
func (s *ShadowRenderer) Render(l *light.Light, cam camera.Camera) {
	var current *gpu.RenderTarget
	open := false
	for face := 0; face < l.NumShadowFaces(); face++ {
		rd := s.PrepareFace(l, cam, face)
		if rd == nil {
			continue
		}
		target := rd.ShadowCamera.RenderTarget()
		if !open || target != current {
			if open {
				s.device.EndRenderPass()
			}
			s.device.SetRenderTarget(target)
			s.device.StartRenderPass(gpu.RenderPassOptions{
				Name:   "Shadow " + l.Type().String(),
				Target: target,
				Clear:  rd.ShadowCamera.ClearOptions(),
			})
			current, open = target, true
		}
		s.RenderFace(l, cam, face, false)
	}
	if open {
		s.device.EndRenderPass()
	}
	s.renderVsm(l)
}

// renderVsm blurs the moments of a VSM shadow. Clustered local lights are not blurred because
// their atlas slots are packed edge to edge. Omni lights never use VSM.
func (s *ShadowRenderer) renderVsm(l *light.Light) {
	if !l.ShadowType().IsVsm() || l.VsmBlurSize() <= 1 || s.clusteredLight(l) {
		return
	}
	sm := l.ShadowMap()
	if sm == nil || len(sm.RenderTargets) == 0 {
		return
	}
	if s.blur == nil {
		s.blur = newVsmBlur(s.device)
	}
	s.applyVsmBlur(l, sm)
}

// applyVsmBlur runs the separable blur: horizontally into a pooled temporary map, then
// vertically back into the light's map.
func (s *ShadowRenderer) applyVsmBlur(l *light.Light, sm *light.ShadowMap) {
	temp := s.cache.Get(s.device, l)
	defer s.cache.Add(l, temp)

	kernel := l.VsmBlurSize()
	var weights []float32
	if l.VsmBlurMode() == light.BlurGaussian {
		weights = s.GaussWeights(kernel)
	} else {
		weights = boxWeights(kernel)
	}
	s.blur.pass(s.device, l, sm.Texture, temp.RenderTargets[0], mgl32.Vec2{1, 0}, weights, kernel)
	s.blur.pass(s.device, l, temp.Texture, sm.RenderTargets[0], mgl32.Vec2{0, 1}, weights, kernel)
}

// GaussWeights returns the normalized Gaussian weights of a blur kernel, cached per kernel size.
//
// Parameters:
//   - kernel: the odd number of taps
//
// Returns:
//   - []float32: kernel weights summing to one
func (s *ShadowRenderer) GaussWeights(kernel int) []float32 {
	if w, ok := s.gaussWeights[kernel]; ok {
		return w
	}
	w := gaussWeights(kernel)
	s.gaussWeights[kernel] = w
	return w
}

func gaussWeights(kernel int) []float32 {
	sigma := float32(kernel-1) / 6
	half := float32(kernel-1) * 0.5
	weights := make([]float32, kernel)
	var sum float32
	for i := range weights {
		x := float32(i) - half
		weights[i] = math32.Exp(-(x * x) / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

func boxWeights(kernel int) []float32 {
	weights := make([]float32, kernel)
	for i := range weights {
		weights[i] = 1 / float32(kernel)
	}
	return weights
}

// shadowMatrix maps world positions to the shadow texture coordinates and depth of the face
// rendered by shadowCam into viewport (pixels of target). The view ignores node scale.
func shadowMatrix(shadowCam camera.Camera, viewport mgl32.Vec4, target *gpu.RenderTarget) mgl32.Mat4 {
	node := shadowCam.Node()
	view := common.ComposeTRS(node.Position(), node.Rotation(), mgl32.Vec3{1, 1, 1}).Inv()
	w, h := float32(max(target.Width(), 1)), float32(max(target.Height(), 1))
	x, y := viewport[0]/w, viewport[1]/h
	vw, vh := viewport[2]/w, viewport[3]/h
	// texture v grows downward, so the rect is mirrored vertically
	return common.ViewportMatrix(x, y+vh, vw, -vh).Mul4(shadowCam.ProjectionMatrix()).Mul4(view)
}

func (s *ShadowRenderer) depthClearQuad() *depthClearQuad {
	if s.depthClear == nil {
		s.depthClear = newDepthClearQuad(s.device)
	}
	return s.depthClear
}

func (s *ShadowRenderer) destroy() {
	s.cache.Destroy()
	if s.depthClear != nil {
		s.depthClear.destroy()
		s.depthClear = nil
	}
	if s.blur != nil {
		s.blur.destroy()
		s.blur = nil
	}
}

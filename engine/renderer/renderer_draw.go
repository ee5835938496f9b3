package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/layer"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/mesh_instance"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

var (
	flipYMatrix = mgl32.Scale3D(1, -1, 1)

	// fixProjRangeMatrix remaps clip depth from [-w, w] to [0, w].
	fixProjRangeMatrix = mgl32.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
)

// scopeIDs are the scope slots the renderer writes every frame, resolved once.
type scopeIDs struct {
	viewProj     *gpu.ScopeID
	view         *gpu.ScopeID
	proj         *gpu.ScopeID
	viewInv      *gpu.ScopeID
	viewPos      *gpu.ScopeID
	cameraParams *gpu.ScopeID
	blueNoise    *gpu.ScopeID
	tbnBasis     *gpu.ScopeID

	model    *gpu.ScopeID
	normal   *gpu.ScopeID
	twoSided *gpu.ScopeID
	alphaRef *gpu.ScopeID

	boneTexture  *gpu.ScopeID
	morphTexture *gpu.ScopeID
	morphWeights *gpu.ScopeID
	morphTargets *gpu.ScopeID

	lights map[lightField]*gpu.ScopeID
	scope  *gpu.Scope
}

type lightField struct {
	index int
	field string
}

func resolveScopeIDs(scope *gpu.Scope) scopeIDs {
	return scopeIDs{
		viewProj:     scope.Resolve("matrix_viewProjection"),
		view:         scope.Resolve("matrix_view"),
		proj:         scope.Resolve("matrix_projection"),
		viewInv:      scope.Resolve("matrix_viewInverse"),
		viewPos:      scope.Resolve("view_position"),
		cameraParams: scope.Resolve("camera_params"),
		blueNoise:    scope.Resolve("blueNoiseJitter"),
		tbnBasis:     scope.Resolve("tbnBasis"),
		model:        scope.Resolve("matrix_model"),
		normal:       scope.Resolve("matrix_normal"),
		twoSided:     scope.Resolve("twoSidedLightingNegScaleFactor"),
		alphaRef:     scope.Resolve(material.ParamAlphaRef),
		boneTexture:  scope.Resolve(material.BoneTextureName),
		morphTexture: scope.Resolve(material.MorphTextureName),
		morphWeights: scope.Resolve("morph_weights"),
		morphTargets: scope.Resolve("morph_targets"),
		lights:       make(map[lightField]*gpu.ScopeID),
		scope:        scope,
	}
}

// light returns the scope slot of one field of the index-th shader light.
func (ids *scopeIDs) light(index int, field string) *gpu.ScopeID {
	key := lightField{index, field}
	id, ok := ids.lights[key]
	if !ok {
		id = ids.scope.Resolve(material.LightUniformName(index, field))
		ids.lights[key] = id
	}
	return id
}

func (r *renderer) targetSize(target *gpu.RenderTarget) (float32, float32) {
	if target != nil {
		return float32(target.Width()), float32(target.Height())
	}
	return float32(r.device.Width()), float32(r.device.Height())
}

// setCameraUniforms publishes the view uniforms of cam and updates its frustum.
//
// The projection is flipped for targets rendered upside down and remapped to the [0, 1] depth
// range of WebGPU. A camera with jitter gets a sub-pixel Halton offset cycling every 16 render
// versions and a blue noise vector shared by every camera of the same render version.
func (r *renderer) setCameraUniforms(cam camera.Camera, target *gpu.RenderTarget) {
	flipY := target != nil && target.FlipY()
	projGL := cam.ProjectionMatrix()
	proj := projGL
	if flipY {
		proj = flipYMatrix.Mul4(proj)
	}
	if r.device.IsWebGPU() {
		proj = fixProjRangeMatrix.Mul4(proj)
	}

	if jitter := cam.Jitter(); jitter > 0 {
		w, h := r.targetSize(target)
		version := r.device.RenderVersion()
		offset := common.HaltonJitter(version)
		proj[8] = jitter * (offset[0]*2 - 1) / w
		proj[9] = jitter * (offset[1]*2 - 1) / h
		if !r.blueNoiseSet || r.blueNoiseVersion != version {
			r.blueNoiseSet = true
			r.blueNoiseVersion = version
			r.blueNoiseJitter = r.blueNoise.Vec4()
		}
		r.ids.blueNoise.SetValue(r.blueNoiseJitter)
	} else {
		r.ids.blueNoise.SetValue(mgl32.Vec4{})
	}

	node := cam.Node()
	position := node.Position()
	viewInv := common.ComposeTRS(position, node.Rotation(), mgl32.Vec3{1, 1, 1})
	view := viewInv.Inv()

	r.ids.proj.SetValue(proj)
	r.ids.viewInv.SetValue(viewInv)
	r.ids.view.SetValue(view)
	r.ids.viewProj.SetValue(proj.Mul4(view))
	r.ids.viewPos.SetValue(position)

	tbn := float32(1)
	if flipY {
		tbn = -1
	}
	r.ids.tbnBasis.SetValue(tbn)

	near, far := cam.NearClip(), cam.FarClip()
	var ortho float32
	if cam.Projection() == camera.ProjectionOrthographic {
		ortho = 1
	}
	r.ids.cameraParams.SetValue(mgl32.Vec4{1 / far, far, near, ortho})

	cam.UpdateFrustum(projGL.Mul4(view))
}

// setupViewUniformBuffers uploads the view uniforms into the first bind group of groups, creating
// it on first use, and binds it at the view slot.
//
// Parameters:
//   - groups: the view bind groups of one camera or shadow face
//
// Returns:
//   - []*gpu.BindGroup: groups, grown when it was empty
func (r *renderer) setupViewUniformBuffers(groups []*gpu.BindGroup) []*gpu.BindGroup {
	if len(groups) == 0 {
		ub := gpu.NewUniformBuffer(r.device, r.viewUniformFormat)
		groups = append(groups, gpu.NewBindGroup(r.device, r.viewBindGroupFormat, ub))
	}
	bg := groups[0]
	bg.DefaultUniformBuffer().Update()
	bg.Update()
	r.device.SetBindGroup(gpu.BindGroupView, bg)
	return groups
}

// setupCullMode resolves the cull mode of one draw. A one-sided material flips the culled side
// when an odd number of mirrors apply: the camera, the instance and a negative world scale.
// Double-sided draws instead publish the scale sign for two-sided lighting.
func (r *renderer) setupCullMode(cullFaces bool, flipFactor float32, mi *mesh_instance.MeshInstance) {
	matCull := mi.Material().Cull()
	mode := gputypes.CullModeNone
	if cullFaces {
		flip := float32(1)
		if matCull == gputypes.CullModeFront || matCull == gputypes.CullModeBack {
			flip = flipFactor * mi.FlipFacesFactor() * mi.Node().WorldScaleSign()
		}
		switch {
		case flip >= 0:
			mode = matCull
		case matCull == gputypes.CullModeFront:
			mode = gputypes.CullModeBack
		default:
			mode = gputypes.CullModeFront
		}
	}
	r.device.SetCullMode(mode)
	if mode == gputypes.CullModeNone && matCull == gputypes.CullModeNone {
		r.ids.twoSided.SetValue(mi.Node().WorldScaleSign())
	}
}

// setBaseConstants publishes the material state every shader reads, then its parameters.
func (r *renderer) setBaseConstants(mat material.Material) {
	r.ids.alphaRef.SetValue(mat.AlphaTest())
	mat.SetParameters(r.device)
}

// setupMeshUniformBuffers publishes the model matrices of mi and uploads its mesh bind group.
func (r *renderer) setupMeshUniformBuffers(si *mesh_instance.ShaderInstance, mi *mesh_instance.MeshInstance) {
	node := mi.Node()
	r.ids.model.SetValue(node.WorldTransform())
	r.ids.normal.SetValue(node.NormalMatrix())

	bg := si.BindGroup(r.device)
	if bg == nil {
		return
	}
	if ub := bg.DefaultUniformBuffer(); ub != nil {
		ub.Update()
	}
	bg.Update()
	r.device.SetBindGroup(gpu.BindGroupMesh, bg)
}

func (r *renderer) setVertexBuffers(mesh *model.Mesh) {
	r.device.SetVertexBuffer(mesh.VertexBuffer())
}

func (r *renderer) setSkinning(mi *mesh_instance.MeshInstance) {
	if si := mi.SkinInstance(); si != nil {
		r.ids.boneTexture.SetValue(si.BoneTexture())
	}
}

// setMorphing publishes the delta texture and the active targets of a morphed instance.
func (r *renderer) setMorphing(mi *mesh_instance.MeshInstance) {
	morph := mi.MorphInstance()
	if morph == nil {
		return
	}
	r.ids.morphTexture.SetValue(morph.Morph().Texture(r.device))
	clear(r.morphWeights)
	clear(r.morphTargets)
	copy(r.morphWeights, morph.ActiveWeights())
	for i, t := range morph.ActiveTargets() {
		if i < len(r.morphTargets) {
			r.morphTargets[i] = float32(t)
		}
	}
	// the mesh uniform buffer packs both before the next draw reuses them
	r.ids.morphWeights.SetValue(r.morphWeightsValue)
	r.ids.morphTargets.SetValue(r.morphTargetsValue)
}

// drawInstance issues the draw of mi with the index buffer of style.
//
// Returns:
//   - bool: false when an instanced draw has nothing to draw
func (r *renderer) drawInstance(mi *mesh_instance.MeshInstance, mesh *model.Mesh, style model.RenderStyle) bool {
	r.device.SetIndexBuffer(mesh.IndexBuffer(style))
	primitive := mesh.Primitive(style)
	if vb := mi.InstancingBuffer(); vb != nil {
		if mi.InstancingCount() <= 0 {
			return false
		}
		r.device.SetInstanceBuffer(vb)
		r.device.Draw(primitive, mi.InstancingCount())
		return true
	}
	r.device.SetInstanceBuffer(nil)
	r.device.Draw(primitive, 1)
	return true
}

// shaderLights returns the lights forward shaders of lyr evaluate per light: all of them, or only
// the directional ones when local lights are clustered.
func (r *renderer) shaderLights(lyr *layer.Layer) []*light.Light {
	sorted := lyr.SortedLights()
	if !r.clustered {
		return sorted
	}
	dir := make([]*light.Light, 0, len(sorted))
	for _, l := range sorted {
		if l.Type() == light.LightTypeDirectional {
			dir = append(dir, l)
		}
	}
	return dir
}

// dispatchLights publishes the uniforms and shadow maps of the shader lights, indexed in the
// order the shader declares them.
func (r *renderer) dispatchLights(lights []*light.Light) {
	for i, l := range lights {
		if l.Type() == light.LightTypeDirectional {
			r.dispatchDirectLight(i, l)
		} else {
			r.dispatchLocalLight(i, l)
		}
	}
}

func (r *renderer) dispatchLightColor(index int, l *light.Light) {
	color := l.Color().Mul(l.Intensity())
	if !l.Enabled() {
		color = mgl32.Vec3{}
	}
	r.ids.light(index, "color").SetValue(color)
}

func (r *renderer) dispatchShadowParams(index int, l *light.Light) {
	bias := l.ShadowBias()
	if l.ShadowType().IsVsm() {
		bias = l.VsmBias()
	}
	res := float32(max(l.ShadowResolution(), 1))
	r.ids.light(index, "shadowParams").SetValue(mgl32.Vec4{1 / res, l.NormalOffsetBias(), bias, 0})
	if sm := l.ShadowMap(); sm != nil {
		r.ids.light(index, "shadowMap").SetValue(sm.Texture)
	}
}

// dispatchDirectLight publishes a directional light, with its cascade palette and split
// distances when it casts shadows.
func (r *renderer) dispatchDirectLight(index int, l *light.Light) {
	r.dispatchLightColor(index, l)
	r.ids.light(index, "direction").SetValue(l.Direction())
	if !l.CastShadows() {
		return
	}
	r.dispatchShadowParams(index, l)
	r.ids.light(index, "shadowMatrixPalette").SetValue(l.ShadowMatrixPalette()[:])
	r.ids.light(index, "shadowCascadeDistances").SetValue(mgl32.Vec4(*l.ShadowCascadeDistances()))
	r.ids.light(index, "shadowCascadeCount").SetValue(float32(l.NumCascades()))
}

// dispatchLocalLight publishes an omni or spot light, with its shadow matrix when it is a
// shadow casting spot light.
func (r *renderer) dispatchLocalLight(index int, l *light.Light) {
	r.dispatchLightColor(index, l)
	r.ids.light(index, "range").SetValue(l.Range())
	r.ids.light(index, "position").SetValue(l.Position())
	if l.Type() == light.LightTypeSpot {
		r.ids.light(index, "direction").SetValue(l.Direction())
		r.ids.light(index, "cosInner").SetValue(math32.Cos(mgl32.DegToRad(l.InnerConeAngle())))
		r.ids.light(index, "cosOuter").SetValue(math32.Cos(mgl32.DegToRad(l.OuterConeAngle())))
	}
	if !l.CastShadows() {
		return
	}
	r.dispatchShadowParams(index, l)
	if l.Type() == light.LightTypeSpot {
		r.ids.light(index, "shadowMatrix").SetValue(l.GetRenderData(nil, 0).ShadowMatrix)
	}
}

// renderForward draws the culled instances of one layer bucket with pass.
//
// Parameters:
//   - cam: the camera rendering the bucket
//   - drawCalls: the sorted visible instances
//   - lyr: the layer providing the lights
//   - pass: the shader pass
func (r *renderer) renderForward(cam camera.Camera, drawCalls []*mesh_instance.MeshInstance, lyr *layer.Layer, pass material.ShaderPass) {
	lights := r.shaderLights(lyr)
	r.dispatchLights(lights)
	lightHash := lyr.LightHash()
	params := material.ShaderVariantParams{Lights: lights, Clustered: r.clustered}

	flipFactor := float32(1)
	if cam.FlipFaces() {
		flipFactor = -flipFactor
	}
	if target := r.device.RenderTarget(); target != nil && target.FlipY() {
		flipFactor = -flipFactor
	}

	for _, mi := range drawCalls {
		mesh := mi.Mesh()
		if mesh == nil || (mi.InstancingBuffer() != nil && mi.InstancingCount() <= 0) {
			continue
		}
		si := mi.GetShaderInstance(pass, lightHash, r.device, params)
		if si == nil {
			continue
		}
		mat := mi.Material()
		if mat.Dirty() {
			mat.Update()
		}
		// instance parameters of the previous draw may shadow the material's, so both are pushed
		// for every draw
		r.setBaseConstants(mat)
		mi.SetParameters(r.device)

		r.setupCullMode(cam.CullFaces(), flipFactor, mi)
		r.device.SetBlendState(mat.BlendState())
		r.device.SetDepthState(mat.DepthState())
		if !r.device.SetShader(si.Shader()) {
			continue
		}
		r.setVertexBuffers(mesh)
		r.setSkinning(mi)
		r.setMorphing(mi)
		r.setupMeshUniformBuffers(si, mi)
		if r.drawInstance(mi, mesh, mi.RenderStyle()) {
			r.stats.ForwardDrawCalls++
		}
	}
}

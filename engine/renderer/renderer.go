package renderer

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/layer"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/mesh_instance"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// Stats counts the work done by the last Update and Render.
type Stats struct {
	// Cameras is the number of cameras culled.
	Cameras int
	// CulledInstances is the number of mesh instances that passed camera culling, per camera and
	// layer.
	CulledInstances int
	// SkinnedUpdated is the number of distinct skin instances whose matrices were recomputed.
	SkinnedUpdated int
	Lights         int
	LocalLights    int
	// ShadowCastersCulled is the number of casters that passed shadow camera culling.
	ShadowCastersCulled int
	// ShadowMapUpdates is the number of shadow faces scheduled for rendering.
	ShadowMapUpdates int
	ShadowDrawCalls  int
	ForwardDrawCalls int
	// ClusteredLights is the number of local lights binned into the light clusters.
	ClusteredLights int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	device    gpu.Device
	cfg       config.RendererConfig
	clustered bool
	sceneRoot graph.GraphNode

	// clusteredOption overrides cfg.ClusteredLighting when set by WithClusteredLighting.
	clusteredOption *bool

	// lights collected from the composition this frame, each once.
	lights      []*light.Light
	localLights []*light.Light
	lightsSet   map[*light.Light]struct{}

	// processing holds the visible instances that need a GPU update this frame (skin, morph, splat).
	processing    []*mesh_instance.MeshInstance
	processingSet map[*mesh_instance.MeshInstance]struct{}
	skinned       []*mesh_instance.MeshInstance
	skinsSeen     map[*model.SkinInstance]struct{}
	skinUpdateGen uint64
	shaderRebuild bool
	// rebuiltMaterials dedups the materials whose variants a shader rebuild cleared.
	rebuiltMaterials map[material.Material]struct{}

	// per-draw morph uniforms, boxed once so publishing them does not allocate
	morphWeights, morphTargets           []float32
	morphWeightsValue, morphTargetsValue any

	// visitedLayers is reused by shadow caster culling to visit each layer once per light.
	visitedLayers map[*layer.Layer]struct{}

	cameraDirShadowLights map[camera.Camera][]*light.Light

	shadowRenderer *ShadowRenderer
	atlas          *LightTextureAtlas
	clusters       *WorldClusters
	clusteredPass  *RenderPassUpdateClustered

	viewUniformFormat    *gpu.UniformBufferFormat
	viewBindGroupFormat  *gpu.BindGroupFormat
	cameraViewBindGroups map[camera.Camera][]*gpu.BindGroup

	blueNoise        *common.BlueNoise
	blueNoiseSeed    uint64
	blueNoiseVersion uint64
	blueNoiseSet     bool
	blueNoiseJitter  mgl32.Vec4

	skinWorkers int
	skinPool    worker.DynamicWorkerPool

	ids   scopeIDs
	stats Stats

	destroyed bool
}

// Renderer drives the per-frame work of a layer composition: it culls cameras, lights and shadow
// casters, updates skinned and morphed geometry, renders shadow maps and submits the forward
// passes of every render action.
//
// A frame is Update followed by Render, both called from the goroutine that owns the scene.
type Renderer interface {
	// Update prepares a frame: syncs transforms, resets per-frame state, collects the lights of
	// the composition, culls every camera, updates the shadow atlas when clustered, culls shadow
	// casters and uploads skin palettes, morphs and splats of the visible instances.
	//
	// Parameters:
	//   - comp: the composition to prepare
	Update(comp *layer.LayerComposition)

	// Render records the frame prepared by Update: shadow maps, the clustered lighting pass and
	// the forward pass of each render action.
	//
	// Parameters:
	//   - comp: the composition passed to Update
	Render(comp *layer.LayerComposition)

	// RequestShaderRebuild drops every cached shader instance of the composition's mesh instances
	// at the start of the next Update, along with the variants of materials with custom shaders.
	RequestShaderRebuild()

	// SetCameraUniforms publishes the view uniforms of cam rendering into target and updates the
	// camera frustum.
	//
	// Parameters:
	//   - cam: the camera
	//   - target: the render target, nil for the back buffer
	SetCameraUniforms(cam camera.Camera, target *gpu.RenderTarget)

	// Device returns the device the renderer draws with.
	Device() gpu.Device

	// Config returns the renderer configuration.
	Config() config.RendererConfig

	// Clustered reports whether local lights use clustered lighting.
	Clustered() bool

	// ShadowRenderer returns the shadow renderer.
	ShadowRenderer() *ShadowRenderer

	// Lights returns the lights collected by the last Update.
	Lights() []*light.Light

	// LocalLights returns the omni and spot lights collected by the last Update.
	LocalLights() []*light.Light

	// Stats returns the counters of the last frame.
	//
	// Returns:
	//   - Stats: a copy of the counters
	Stats() Stats

	// Destroy releases the view bind groups, the shadow maps, the atlas, the clusters and the skin
	// worker pool.
	Destroy()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer drawing with device.
//
// Parameters:
//   - device: the device to draw with
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
func NewRenderer(device gpu.Device, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:                    &sync.Mutex{},
		device:                device,
		cfg:                   config.Default(),
		lightsSet:             make(map[*light.Light]struct{}),
		processingSet:         make(map[*mesh_instance.MeshInstance]struct{}),
		skinsSeen:             make(map[*model.SkinInstance]struct{}),
		rebuiltMaterials:      make(map[material.Material]struct{}),
		visitedLayers:         make(map[*layer.Layer]struct{}),
		cameraDirShadowLights: make(map[camera.Camera][]*light.Light),
		cameraViewBindGroups:  make(map[camera.Camera][]*gpu.BindGroup),
		blueNoiseSeed:         1,
		skinWorkers:           -1,
	}
	r.morphWeights = make([]float32, model.MaxActiveMorphTargets)
	r.morphTargets = make([]float32, model.MaxActiveMorphTargets)
	r.morphWeightsValue, r.morphTargetsValue = r.morphWeights, r.morphTargets
	for _, opt := range options {
		opt(r)
	}
	r.clustered = r.cfg.ClusteredLighting
	if r.clusteredOption != nil {
		r.clustered = *r.clusteredOption
	}
	if r.skinWorkers < 0 {
		r.skinWorkers = r.cfg.SkinWorkers
	}

	r.blueNoise = common.NewBlueNoise(r.blueNoiseSeed)
	r.viewUniformFormat, r.viewBindGroupFormat = material.NewViewFormats(device)
	r.ids = resolveScopeIDs(device.Scope())
	r.shadowRenderer = newShadowRenderer(r)
	if r.clustered {
		r.atlas = NewLightTextureAtlas(device, r.cfg.ShadowAtlasResolution, r.cfg.ShadowAtlasSplit)
		r.clusters = NewWorldClusters(device, r.cfg.ClusterCells, r.cfg.MaxClusterLights)
		r.clusteredPass = newRenderPassUpdateClustered(r, r.atlas, r.clusters)
	}
	if r.skinWorkers > 0 {
		r.skinPool = worker.NewDynamicWorkerPool(r.skinWorkers, 256, 1*time.Second)
	}

	logger.Logger().Debug("renderer created",
		"device", device.DeviceType().String(),
		"clustered", r.clustered,
		"skinWorkers", r.skinWorkers,
	)
	return r
}

func (r *renderer) Device() gpu.Device              { return r.device }
func (r *renderer) Config() config.RendererConfig   { return r.cfg }
func (r *renderer) Clustered() bool                 { return r.clustered }
func (r *renderer) ShadowRenderer() *ShadowRenderer { return r.shadowRenderer }
func (r *renderer) Lights() []*light.Light          { return r.lights }
func (r *renderer) LocalLights() []*light.Light     { return r.localLights }

func (r *renderer) RequestShaderRebuild() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shaderRebuild = true
}

func (r *renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *renderer) SetCameraUniforms(cam camera.Camera, target *gpu.RenderTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCameraUniforms(cam, target)
}

func (r *renderer) Update(comp *layer.LayerComposition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !logger.Assert(!r.destroyed, "update on destroyed renderer") || comp == nil {
		return
	}
	r.stats = Stats{}

	if r.sceneRoot != nil {
		r.sceneRoot.SyncHierarchy()
	}
	r.beginFrame(comp)
	r.collectLights(comp)
	r.cullComposition(comp)
	if r.clustered {
		r.atlas.Update(r.localLights)
	}
	r.cullShadowmaps(comp)
	r.gpuUpdate(r.processing)
}

func (r *renderer) Render(comp *layer.LayerComposition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !logger.Assert(!r.destroyed, "render on destroyed renderer") || comp == nil {
		return
	}
	r.stats.ShadowMapUpdates = 0
	r.stats.ShadowDrawCalls = 0
	r.stats.ForwardDrawCalls = 0

	r.device.FrameStart()

	if r.clustered {
		r.clusteredPass.Before()
		r.clusteredPass.Execute()
		r.clusteredPass.After()
	} else {
		for _, l := range r.localLights {
			if r.shadowRenderer.NeedsShadowRendering(l) {
				r.shadowRenderer.Render(l, nil)
			}
		}
	}

	for _, action := range comp.RenderActions() {
		if action.FirstCameraUse {
			r.renderDirectionalShadows(action.Camera)
		}
		r.renderAction(action)
	}

	r.device.FrameEnd()
}

// renderDirectionalShadows renders the shadow maps of the directional lights cam sees. They are
// rendered right before the camera's forward passes because the map is shared between cameras.
func (r *renderer) renderDirectionalShadows(cam camera.Camera) {
	for _, l := range r.cameraDirShadowLights[cam] {
		if r.shadowRenderer.NeedsShadowRendering(l) {
			r.shadowRenderer.Render(l, cam)
		}
	}
}

func (r *renderer) renderAction(action layer.RenderAction) {
	cam := action.Camera
	var flags gpu.ClearFlags
	if action.ClearColor {
		flags |= gpu.ClearColor
	}
	if action.ClearDepth {
		flags |= gpu.ClearDepth
	}
	if action.ClearStencil {
		flags |= gpu.ClearStencil
	}
	clearOpts := cam.ClearOptions()
	clearOpts.Flags = flags

	r.device.SetRenderTarget(action.RenderTarget)
	r.device.StartRenderPass(gpu.RenderPassOptions{
		Name:   action.Layer.Name(),
		Target: action.RenderTarget,
		Clear:  clearOpts,
	})
	r.setCameraUniforms(cam, action.RenderTarget)
	r.cameraViewBindGroups[cam] = r.setupViewUniformBuffers(r.cameraViewBindGroups[cam])
	r.setupViewport(cam, action.RenderTarget)

	action.Layer.SortVisible(cam, action.Transparent)
	visible := action.Layer.CulledInstances(cam).Bucket(action.Transparent)
	r.renderForward(cam, visible, action.Layer, material.ShaderPassForward)

	r.device.EndRenderPass()
}

// setupViewport converts the camera's normalized rect and scissor rect into pixels of target.
func (r *renderer) setupViewport(cam camera.Camera, target *gpu.RenderTarget) {
	w, h := float32(r.device.Width()), float32(r.device.Height())
	if target != nil {
		w, h = float32(target.Width()), float32(target.Height())
	}
	rect := cam.Rect()
	r.device.SetViewport(rect[0]*w, rect[1]*h, rect[2]*w, rect[3]*h)
	sc := cam.ScissorRect()
	r.device.SetScissor(sc[0]*w, sc[1]*h, sc[2]*w, sc[3]*h)
}

func (r *renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !logger.Assert(!r.destroyed, "renderer destroyed twice") {
		return
	}
	for cam, groups := range r.cameraViewBindGroups {
		destroyViewBindGroups(groups)
		delete(r.cameraViewBindGroups, cam)
	}
	for _, l := range r.lights {
		if !l.Destroyed() {
			l.SetShadowMap(nil)
		}
	}
	r.shadowRenderer.destroy()
	if r.clustered {
		r.atlas.Destroy()
		r.clusters.Destroy()
	}
	if r.skinPool != nil {
		r.skinPool.Stop()
	}
	r.destroyed = true
}

func destroyViewBindGroups(groups []*gpu.BindGroup) {
	for _, bg := range groups {
		if ub := bg.DefaultUniformBuffer(); ub != nil {
			ub.Destroy()
		}
		bg.Destroy()
	}
}

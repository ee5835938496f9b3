package renderer

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/layer"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/mesh_instance"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
)

// beginFrame clears the per-frame visibility of every mesh instance, drops cached shaders when a
// rebuild was requested and recomputes the matrices of each distinct skin so culling sees the
// skinned bounds of this frame. A rebuild clears the variants of each material with custom shaders
// once, then the shader instances of every mesh instance.
func (r *renderer) beginFrame(comp *layer.LayerComposition) {
	rebuild := r.shaderRebuild
	r.shaderRebuild = false

	clear(r.skinned)
	r.skinned = r.skinned[:0]
	clear(r.skinsSeen)
	clear(r.rebuiltMaterials)
	for _, lyr := range comp.Layers() {
		for _, mi := range lyr.MeshInstances() {
			mi.SetVisibleThisFrame(false)
			if rebuild {
				r.clearCustomVariants(mi.Material())
				mi.ClearShaders()
			}
			si := mi.SkinInstance()
			if si == nil {
				continue
			}
			if _, ok := r.skinsSeen[si]; !ok {
				r.skinsSeen[si] = struct{}{}
				r.skinned = append(r.skinned, mi)
			}
		}
	}
	r.updateCPUSkinMatrices(r.skinned)
}

// clearCustomVariants drops the cached variants of mat the first time it is seen in a rebuild.
// Standard variants depend only on their key and are kept.
func (r *renderer) clearCustomVariants(mat material.Material) {
	if mat == nil || !mat.CustomShaders() {
		return
	}
	if _, ok := r.rebuiltMaterials[mat]; ok {
		return
	}
	r.rebuiltMaterials[mat] = struct{}{}
	mat.ClearVariants()
}

// updateCPUSkinMatrices recomputes skin matrices, fanning the work out to the skin worker pool
// once there are enough skins. Each skin appears once in drawCalls, so no two tasks touch the
// same skin. Bone world transforms are only read, which needs the hierarchy synced beforehand.
func (r *renderer) updateCPUSkinMatrices(drawCalls []*mesh_instance.MeshInstance) {
	r.skinUpdateGen++
	gen := r.skinUpdateGen
	n := len(drawCalls)
	if n == 0 {
		return
	}

	if r.skinPool == nil || r.sceneRoot == nil || n < r.cfg.SkinParallelThreshold {
		for _, mi := range drawCalls {
			if mi.SkinInstance().UpdateMatrices(mi.Node(), gen) {
				r.stats.SkinnedUpdated++
			}
		}
		return
	}

	workers := max(r.skinPool.GetMaxWorkers(), 1)
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	var updated atomic.Int64
	taskID := 0
	for start := 0; start < n; start += chunk {
		part := drawCalls[start:min(start+chunk, n)]
		wg.Add(1)
		r.skinPool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				for _, mi := range part {
					if mi.SkinInstance().UpdateMatrices(mi.Node(), gen) {
						updated.Add(1)
					}
				}
				return nil, nil
			},
		})
		taskID++
	}
	// pool.Wait blocks until workers idle out, so the frame uses its own barrier.
	wg.Wait()
	r.stats.SkinnedUpdated += int(updated.Load())
}

// collectLights gathers every light of the composition once, resetting its per-frame state.
func (r *renderer) collectLights(comp *layer.LayerComposition) {
	clear(r.lights)
	clear(r.localLights)
	r.lights = r.lights[:0]
	r.localLights = r.localLights[:0]
	clear(r.lightsSet)

	for _, lyr := range comp.Layers() {
		for _, l := range lyr.Lights() {
			if _, ok := r.lightsSet[l]; ok {
				continue
			}
			r.lightsSet[l] = struct{}{}
			l.BeginFrame()
			r.lights = append(r.lights, l)
			if l.Type() != light.LightTypeDirectional {
				r.localLights = append(r.localLights, l)
			}
		}
	}
	r.stats.Lights = len(r.lights)
	r.stats.LocalLights = len(r.localLights)
}

// cullComposition culls the lights and mesh instances of each enabled layer of each enabled
// camera, filling the layer's culled buckets and the processing set.
func (r *renderer) cullComposition(comp *layer.LayerComposition) {
	clear(r.processing)
	r.processing = r.processing[:0]
	clear(r.processingSet)

	for _, cam := range comp.Cameras() {
		if !cam.Enabled() {
			continue
		}
		r.stats.Cameras++
		frustumUpdated := false
		for _, id := range cam.Layers() {
			lyr := comp.LayerByID(id)
			if lyr == nil || !lyr.Enabled() {
				continue
			}
			if !frustumUpdated {
				updateCameraFrustum(cam)
				frustumUpdated = true
			}
			r.cullLights(cam, lyr.Lights())
			r.cull(cam, lyr.MeshInstances(), lyr.CulledInstances(cam))
		}
	}
}

func updateCameraFrustum(cam camera.Camera) {
	cam.UpdateFrustum(cam.ProjectionMatrix().Mul4(cam.ViewMatrix()))
}

// cullLights marks the local lights inside the camera frustum visible and records their largest
// screen size. Directional lights are made visible by BeginFrame.
func (r *renderer) cullLights(cam camera.Camera, lights []*light.Light) {
	var sphere common.BoundingSphere
	for _, l := range lights {
		if !l.Enabled() || l.Type() == light.LightTypeDirectional {
			continue
		}
		l.GetBoundingSphere(&sphere)
		if cam.Frustum().ContainsSphere(sphere) != common.SphereOutside {
			l.SetVisibleThisFrame(true)
			l.UpdateMaxScreenSize(cam.ScreenSize(sphere))
			continue
		}
		// Non-clustered shaders sample every light's shadow map, so a shadow caster needs its map
		// allocated even while culled.
		if !r.clustered && l.CastShadows() && l.ShadowMap() == nil {
			l.SetVisibleThisFrame(true)
		}
	}
}

// cull sorts the visible instances of drawCalls into the opaque and transparent buckets of culled.
func (r *renderer) cull(cam camera.Camera, drawCalls []*mesh_instance.MeshInstance, culled *layer.CulledInstances) {
	culled.Reset()
	doCull := cam.FrustumCulling()
	for _, mi := range drawCalls {
		if !mi.Visible() {
			continue
		}
		if doCull && mi.Cull() && !mi.IsVisible(cam) {
			continue
		}
		mi.SetVisibleThisFrame(true)
		r.stats.CulledInstances++
		if mi.Transparent() {
			culled.Transparent = append(culled.Transparent, mi)
		} else {
			culled.Opaque = append(culled.Opaque, mi)
		}
		r.addProcessing(mi)
	}
}

// addProcessing queues mi for the GPU update when it carries a skin, morph or splat.
func (r *renderer) addProcessing(mi *mesh_instance.MeshInstance) {
	if mi.SkinInstance() == nil && mi.MorphInstance() == nil && mi.GSplat() == nil {
		return
	}
	if _, ok := r.processingSet[mi]; ok {
		return
	}
	r.processingSet[mi] = struct{}{}
	r.processing = append(r.processing, mi)
}

// cullShadowmaps culls the shadow casters of every local light due for a shadow update, and of
// the shadow casting directional lights of each camera.
func (r *renderer) cullShadowmaps(comp *layer.LayerComposition) {
	for _, l := range r.localLights {
		if r.clustered {
			// a new atlas slot holds no shadow yet
			if l.AtlasSlotUpdated() && l.ShadowUpdateMode() == light.ShadowUpdateNone {
				l.SetShadowUpdateMode(light.ShadowUpdateThisFrame)
			}
		} else if l.ShadowUpdateMode() == light.ShadowUpdateNone && l.CastShadows() {
			// render once so the map the shaders sample exists
			if l.GetRenderData(nil, 0).ShadowCamera.RenderTarget() == nil {
				l.SetShadowUpdateMode(light.ShadowUpdateThisFrame)
			}
		}
		if l.VisibleThisFrame() && l.CastShadows() && l.ShadowUpdateMode() != light.ShadowUpdateNone {
			r.shadowRenderer.local.Cull(l, comp, nil)
		}
	}

	cameras := comp.Cameras()
	for cam := range r.cameraDirShadowLights {
		if !slices.Contains(cameras, cam) {
			delete(r.cameraDirShadowLights, cam)
		}
	}
	for _, cam := range cameras {
		list := r.cameraDirShadowLights[cam][:0]
		if cam.Enabled() {
			for _, id := range cam.Layers() {
				lyr := comp.LayerByID(id)
				if lyr == nil || !lyr.Enabled() {
					continue
				}
				for _, l := range lyr.LightsOfType(light.LightTypeDirectional) {
					if !l.Enabled() || !l.CastShadows() || slices.Contains(list, l) {
						continue
					}
					list = append(list, l)
					r.shadowRenderer.directional.Cull(l, comp, cam)
				}
			}
		}
		r.cameraDirShadowLights[cam] = list
	}
}

// gpuUpdate uploads the skin palettes, morph weights and splat data of the instances visible to
// a camera or a shadow camera this frame.
func (r *renderer) gpuUpdate(drawCalls []*mesh_instance.MeshInstance) {
	for _, mi := range drawCalls {
		if si := mi.SkinInstance(); si != nil && si.Dirty() {
			si.UpdateMatrixPalette()
		}
		if morph := mi.MorphInstance(); morph != nil && morph.Dirty() {
			morph.Update()
		}
		if splat := mi.GSplat(); splat != nil {
			splat.Update()
		}
	}
}

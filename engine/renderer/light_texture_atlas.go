package renderer

import (
	"cmp"
	"slices"

	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// LightTextureAtlas packs the shadows of clustered local lights into one depth texture split
// into a square grid of slots. Omni lights divide their slot into a 3x2 grid of faces.
type LightTextureAtlas struct {
	device     gpu.Device
	resolution int
	split      int
	shadowMap  *light.ShadowMap
	atlasID    *gpu.ScopeID

	slots      []*light.Light
	candidates []*light.Light
	pending    []*light.Light
	needsClear bool
}

// NewLightTextureAtlas creates the atlas texture and publishes it to the device scope.
//
// Parameters:
//   - device: the owning device
//   - resolution: the atlas edge length in texels
//   - split: the number of slots per row
//
// Returns:
//   - *LightTextureAtlas: the atlas
func NewLightTextureAtlas(device gpu.Device, resolution, split int) *LightTextureAtlas {
	split = max(split, 1)
	a := &LightTextureAtlas{
		device:     device,
		resolution: resolution,
		split:      split,
		atlasID:    device.Scope().Resolve(material.ShadowAtlasName),
		slots:      make([]*light.Light, split*split),
	}
	sm := light.NewShadowMap2D(device, resolution, light.ShadowPCF3)
	sm.Cached = true
	a.shadowMap = sm
	a.needsClear = true
	a.atlasID.SetValue(sm.Texture)
	return a
}

func (a *LightTextureAtlas) ShadowMap() *light.ShadowMap { return a.shadowMap }
func (a *LightTextureAtlas) Resolution() int             { return a.resolution }
func (a *LightTextureAtlas) SlotCount() int              { return len(a.slots) }

// RenderTarget returns the target shadow passes render into.
func (a *LightTextureAtlas) RenderTarget() *gpu.RenderTarget { return a.shadowMap.RenderTargets[0] }

// SlotOwner returns the light holding slot index this frame, or nil.
func (a *LightTextureAtlas) SlotOwner(index int) *light.Light { return a.slots[index] }

// takeClear reports whether the atlas has never been cleared and marks it cleared.
func (a *LightTextureAtlas) takeClear() bool {
	clearAll := a.needsClear
	a.needsClear = false
	return clearAll
}

// SlotViewport returns the normalized rectangle of slot index.
func (a *LightTextureAtlas) SlotViewport(index int) mgl32.Vec4 {
	size := 1 / float32(a.split)
	return mgl32.Vec4{float32(index%a.split) * size, float32(index/a.split) * size, size, size}
}

// Update assigns the atlas slots for this frame. Visible, enabled shadow casting lights are
// ranked by screen size, then by ID, and the top ranked receive slots. A light keeps its previous
// slot when it is still free, so its shadow survives frames in which it is not re-rendered. Other
// lights release their slot and any claim on the atlas.
//
// Parameters:
//   - lights: the local lights of the frame
func (a *LightTextureAtlas) Update(lights []*light.Light) {
	clear(a.slots)
	a.candidates = a.candidates[:0]
	for _, l := range lights {
		if l.Type() != light.LightTypeDirectional && l.Enabled() && l.CastShadows() && l.VisibleThisFrame() {
			a.candidates = append(a.candidates, l)
			continue
		}
		a.release(l)
	}

	slices.SortStableFunc(a.candidates, func(x, y *light.Light) int {
		if c := cmp.Compare(y.MaxScreenSize(), x.MaxScreenSize()); c != 0 {
			return c
		}
		return cmp.Compare(x.ID(), y.ID())
	})
	if len(a.candidates) > len(a.slots) {
		dropped := a.candidates[len(a.slots):]
		for _, l := range dropped {
			a.release(l)
		}
		logger.Logger().Debug("shadow atlas full", "slots", len(a.slots), "dropped", len(dropped))
		a.candidates = a.candidates[:len(a.slots)]
	}

	a.pending = a.pending[:0]
	for _, l := range a.candidates {
		if idx := l.AtlasSlotIndex(); idx >= 0 && idx < len(a.slots) && a.slots[idx] == nil {
			a.slots[idx] = l
			continue
		}
		a.pending = append(a.pending, l)
	}
	free := 0
	for _, l := range a.pending {
		for a.slots[free] != nil {
			free++
		}
		a.slots[free] = l
	}

	for idx, l := range a.slots {
		if l == nil {
			continue
		}
		l.SetAtlasSlot(idx, a.SlotViewport(idx))
		l.SetShadowMap(a.shadowMap)
	}
}

func (a *LightTextureAtlas) release(l *light.Light) {
	if l.ShadowMap() == a.shadowMap {
		l.SetShadowMap(nil)
	}
	if l.AtlasSlotIndex() >= 0 {
		l.ReleaseAtlasSlot()
	}
}

// Destroy releases the atlas texture and withdraws it from the scope.
func (a *LightTextureAtlas) Destroy() {
	for _, l := range a.slots {
		if l != nil && l.ShadowMap() == a.shadowMap {
			l.SetShadowMap(nil)
		}
	}
	a.shadowMap.Destroy()
	a.atlasID.SetValue(nil)
}

// Package light defines scene lights together with the shadow state the renderer reads and
// writes every frame: update mode, per-face render data, shadow maps and atlas slots.
package light

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional has no position, only the direction of its node's forward axis.
	LightTypeDirectional LightType = iota

	// LightTypeOmni emits in all directions from its node position up to Range.
	LightTypeOmni

	// LightTypeSpot emits in a cone along its node's forward axis, shaped by the inner and outer
	// cone angles.
	LightTypeSpot

	numLightTypes
)

func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypeOmni:
		return "omni"
	case LightTypeSpot:
		return "spot"
	}
	return "unknown"
}

// ShadowUpdateMode controls how often a light's shadow map is re-rendered.
type ShadowUpdateMode int

const (
	// ShadowUpdateNone keeps the existing shadow map.
	ShadowUpdateNone ShadowUpdateMode = iota
	// ShadowUpdateThisFrame renders once and then falls back to ShadowUpdateNone.
	ShadowUpdateThisFrame
	// ShadowUpdateRealtime renders every frame the light is visible.
	ShadowUpdateRealtime
)

// BlurMode selects the VSM blur kernel.
type BlurMode int

const (
	BlurBox BlurMode = iota
	BlurGaussian
)

// MaxCascades is the largest number of directional shadow cascades.
const MaxCascades = 4

var lightIDs atomic.Uint64

// Light is a scene light. It is owned by the frame-driving goroutine; the renderer updates its
// per-frame state (visibility, atlas slot, shadow map, render data) during culling.
type Light struct {
	id        uint64
	lightType LightType
	node      graph.GraphNode

	enabled     bool
	castShadows bool
	isStatic    bool
	mask        uint32

	color          mgl32.Vec3
	intensity      float32
	attenuationEnd float32
	innerConeAngle float32
	outerConeAngle float32

	shadowUpdateMode ShadowUpdateMode
	visibleThisFrame bool
	maxScreenSize    float32

	shadowResolution int
	shadowType       ShadowType
	shadowBias       float32
	normalOffsetBias float32
	vsmBias          float32
	vsmBlurSize      int
	vsmBlurMode      BlurMode

	numCascades         int
	cascadeDistribution float32
	shadowDistance      float32

	shadowMatrixPalette    [MaxCascades * 16]float32
	shadowCascadeDistances [MaxCascades]float32

	atlasViewport          mgl32.Vec4
	atlasSlotIndex         int
	atlasSlotUpdated       bool
	atlasViewportAllocated bool

	shadowMap  *ShadowMap
	renderData []*LightRenderData
	destroyed  bool
}

// NewLight creates a light of the given type with sensible defaults and any provided options
// applied.
//
// Parameters:
//   - lightType: the kind of light to create
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - *Light: a new light
func NewLight(lightType LightType, opts ...LightBuilderOption) *Light {
	l := &Light{
		id:                  lightIDs.Add(1),
		lightType:           lightType,
		enabled:             true,
		mask:                1,
		color:               mgl32.Vec3{1, 1, 1},
		intensity:           1,
		attenuationEnd:      10,
		innerConeAngle:      40,
		outerConeAngle:      45,
		shadowUpdateMode:    ShadowUpdateRealtime,
		shadowResolution:    DefaultShadowResolution,
		shadowType:          ShadowPCF3,
		shadowBias:          DefaultShadowBias,
		normalOffsetBias:    DefaultNormalOffsetBias,
		vsmBias:             0.01,
		vsmBlurSize:         11,
		vsmBlurMode:         BlurGaussian,
		numCascades:         1,
		cascadeDistribution: 0.5,
		shadowDistance:      DefaultShadowDistance,
		atlasSlotIndex:      -1,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.shadowType = l.supportedShadowType(l.shadowType)
	if l.node == nil {
		l.node = graph.NewGraphNode(graph.WithName("Light"))
	}
	return l
}

func (l *Light) ID() uint64                         { return l.id }
func (l *Light) Type() LightType                    { return l.lightType }
func (l *Light) Node() graph.GraphNode              { return l.node }
func (l *Light) Enabled() bool                      { return l.enabled }
func (l *Light) SetEnabled(enabled bool)            { l.enabled = enabled }
func (l *Light) CastShadows() bool                  { return l.castShadows }
func (l *Light) IsStatic() bool                     { return l.isStatic }
func (l *Light) Mask() uint32                       { return l.mask }
func (l *Light) SetMask(mask uint32)                { l.mask = mask }
func (l *Light) Color() mgl32.Vec3                  { return l.color }
func (l *Light) SetColor(c mgl32.Vec3)              { l.color = c }
func (l *Light) Intensity() float32                 { return l.intensity }
func (l *Light) SetIntensity(intensity float32)     { l.intensity = intensity }
func (l *Light) Range() float32                     { return l.attenuationEnd }
func (l *Light) SetRange(r float32)                 { l.attenuationEnd = r }
func (l *Light) InnerConeAngle() float32            { return l.innerConeAngle }
func (l *Light) OuterConeAngle() float32            { return l.outerConeAngle }
func (l *Light) ShadowUpdateMode() ShadowUpdateMode { return l.shadowUpdateMode }
func (l *Light) VisibleThisFrame() bool             { return l.visibleThisFrame }
func (l *Light) SetVisibleThisFrame(v bool)         { l.visibleThisFrame = v }
func (l *Light) MaxScreenSize() float32             { return l.maxScreenSize }
func (l *Light) ShadowResolution() int              { return l.shadowResolution }
func (l *Light) ShadowType() ShadowType             { return l.shadowType }
func (l *Light) ShadowBias() float32                { return l.shadowBias }
func (l *Light) NormalOffsetBias() float32          { return l.normalOffsetBias }
func (l *Light) VsmBias() float32                   { return l.vsmBias }
func (l *Light) VsmBlurSize() int                   { return l.vsmBlurSize }
func (l *Light) VsmBlurMode() BlurMode              { return l.vsmBlurMode }
func (l *Light) NumCascades() int                   { return l.numCascades }
func (l *Light) CascadeDistribution() float32       { return l.cascadeDistribution }
func (l *Light) ShadowDistance() float32            { return l.shadowDistance }
func (l *Light) AtlasViewport() mgl32.Vec4          { return l.atlasViewport }
func (l *Light) AtlasSlotIndex() int                { return l.atlasSlotIndex }
func (l *Light) AtlasSlotUpdated() bool             { return l.atlasSlotUpdated }
func (l *Light) AtlasViewportAllocated() bool       { return l.atlasViewportAllocated }
func (l *Light) ShadowMap() *ShadowMap              { return l.shadowMap }
func (l *Light) RenderData() []*LightRenderData     { return l.renderData }
func (l *Light) Destroyed() bool                    { return l.destroyed }

// ShadowMatrixPalette returns the per-cascade shadow matrices, 16 floats per cascade.
func (l *Light) ShadowMatrixPalette() *[MaxCascades * 16]float32 { return &l.shadowMatrixPalette }

// ShadowCascadeDistances returns the far distance of each cascade.
func (l *Light) ShadowCascadeDistances() *[MaxCascades]float32 { return &l.shadowCascadeDistances }

// Position returns the world position of the light node.
func (l *Light) Position() mgl32.Vec3 { return l.node.Position() }

// Direction returns the world direction the light shines in.
func (l *Light) Direction() mgl32.Vec3 { return l.node.Forward() }

// SetCastShadows toggles shadow casting. Disabling releases the shadow map.
func (l *Light) SetCastShadows(cast bool) {
	if l.castShadows == cast {
		return
	}
	l.castShadows = cast
	if !cast {
		l.destroyShadowMap()
	}
}

// SetIsStatic marks the light as never moving.
func (l *Light) SetIsStatic(static bool) { l.isStatic = static }

// SetConeAngles sets the inner and outer cone half-angles of a spot light in degrees.
func (l *Light) SetConeAngles(innerDeg, outerDeg float32) {
	l.innerConeAngle = innerDeg
	l.outerConeAngle = outerDeg
}

// SetShadowUpdateMode changes how often the shadow map is rendered.
func (l *Light) SetShadowUpdateMode(mode ShadowUpdateMode) { l.shadowUpdateMode = mode }

// UpdateMaxScreenSize keeps the largest projected size seen by any camera this frame.
func (l *Light) UpdateMaxScreenSize(size float32) {
	l.maxScreenSize = math32.Max(l.maxScreenSize, size)
}

// SetShadowResolution changes the shadow map size. The current map is released.
func (l *Light) SetShadowResolution(res int) {
	if l.shadowResolution == res {
		return
	}
	l.shadowResolution = res
	l.destroyShadowMap()
}

// SetShadowType changes the shadow filtering technique. The current map is released. Omni
// lights do not support VSM and use ShadowPCF3 instead.
func (l *Light) SetShadowType(t ShadowType) {
	t = l.supportedShadowType(t)
	if l.shadowType == t {
		return
	}
	l.shadowType = t
	l.destroyShadowMap()
}

// supportedShadowType returns t, or ShadowPCF3 when the light type cannot use it. Omni maps are
// cube faces, which the separable VSM blur does not filter.
func (l *Light) supportedShadowType(t ShadowType) ShadowType {
	if l.lightType == LightTypeOmni && t.IsVsm() {
		logger.Logger().Debug("omni lights do not support vsm shadows, using pcf3", "light", l.id, "requested", t)
		return ShadowPCF3
	}
	return t
}

// SetShadowBias sets the constant depth bias.
func (l *Light) SetShadowBias(bias float32) { l.shadowBias = bias }

// SetNormalOffsetBias sets the normal offset applied before shadow lookup.
func (l *Light) SetNormalOffsetBias(bias float32) { l.normalOffsetBias = bias }

// SetVsmBlurSize sets the VSM blur kernel size. Even sizes round up; the result is clamped to
// [1, 25].
func (l *Light) SetVsmBlurSize(size int) {
	if size%2 == 0 {
		size++
	}
	l.vsmBlurSize = common.Clamp(size, 1, 25)
}

// SetVsmBlurMode selects the VSM blur kernel.
func (l *Light) SetVsmBlurMode(mode BlurMode) { l.vsmBlurMode = mode }

// SetNumCascades sets the directional cascade count, clamped to [1, MaxCascades]. Changing it
// releases the shadow map because the cascade layout changes.
func (l *Light) SetNumCascades(n int) {
	n = common.Clamp(n, 1, MaxCascades)
	if l.numCascades == n {
		return
	}
	l.numCascades = n
	l.destroyShadowMap()
}

// SetCascadeDistribution blends between linear (0) and logarithmic (1) cascade splits.
func (l *Light) SetCascadeDistribution(d float32) { l.cascadeDistribution = common.Clamp(d, 0, 1) }

// SetShadowDistance sets the distance from the camera covered by directional shadows.
func (l *Light) SetShadowDistance(d float32) { l.shadowDistance = d }

// NumShadowFaces returns the number of shadow renders per update: the cascade count for
// directional lights, 6 for omni lights and 1 for spot lights.
func (l *Light) NumShadowFaces() int {
	switch l.lightType {
	case LightTypeDirectional:
		return l.numCascades
	case LightTypeOmni:
		return 6
	}
	return 1
}

// BeginFrame resets the per-frame state. Directional lights are visible whenever enabled; other
// lights stay invisible until culling finds them.
func (l *Light) BeginFrame() {
	l.visibleThisFrame = l.lightType == LightTypeDirectional && l.enabled
	l.maxScreenSize = 0
	l.atlasViewportAllocated = false
	l.atlasSlotUpdated = false
}

// SetAtlasSlot records the atlas slot assigned this frame and its normalized viewport. A slot
// change is flagged through AtlasSlotUpdated.
//
// Parameters:
//   - index: the slot index
//   - viewport: the normalized x, y, width, height of the slot
func (l *Light) SetAtlasSlot(index int, viewport mgl32.Vec4) {
	l.atlasSlotUpdated = l.atlasSlotIndex != index
	l.atlasSlotIndex = index
	l.atlasViewport = viewport
	l.atlasViewportAllocated = true
}

// ReleaseAtlasSlot forgets the atlas slot, so the next slot assigned is flagged as updated.
func (l *Light) ReleaseAtlasSlot() {
	l.atlasSlotIndex = -1
	l.atlasViewportAllocated = false
}

// SetShadowMap assigns the shadow map. A previously owned, uncached map is destroyed.
//
// Parameters:
//   - sm: the new map, nil to release
func (l *Light) SetShadowMap(sm *ShadowMap) {
	if l.shadowMap == sm {
		return
	}
	l.destroyShadowMap()
	l.shadowMap = sm
}

func (l *Light) destroyShadowMap() {
	if l.shadowMap != nil && !l.shadowMap.Cached {
		l.shadowMap.Destroy()
	}
	l.shadowMap = nil
	for _, rd := range l.renderData {
		rd.ShadowCamera.SetRenderTarget(nil)
	}
}

// Key packs the light state that changes generated shader code.
//
// Returns:
//   - uint32: the packed key
func (l *Light) Key() uint32 {
	var key uint32
	key |= uint32(l.lightType) << 29
	if l.castShadows {
		key |= 1 << 28
	}
	key |= uint32(l.shadowType) << 25
	key |= uint32(l.numCascades-1) << 23
	if l.shadowType.IsVsm() && l.vsmBlurMode == BlurGaussian {
		key |= 1 << 22
	}
	return key
}

// Destroy releases the shadow map and the view bind groups of every render data entry. A second
// call is a logged no-op.
func (l *Light) Destroy() {
	if !logger.Assert(!l.destroyed, "light destroyed twice", "light", l.id) {
		return
	}
	l.destroyShadowMap()
	for _, rd := range l.renderData {
		rd.destroy()
	}
	l.renderData = nil
	l.destroyed = true
}

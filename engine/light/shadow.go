package light

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/gogpu/gputypes"
)

// DefaultShadowResolution is the default width and height in texels of a light's shadow map.
const DefaultShadowResolution = 1024

// DefaultShadowBias is the constant depth bias applied to shadow comparisons.
const DefaultShadowBias float32 = 0.05

// DefaultNormalOffsetBias is the default distance the lookup point is pushed along the surface
// normal.
const DefaultNormalOffsetBias float32 = 0.05

// DefaultShadowDistance is the default distance from the camera covered by directional shadows.
const DefaultShadowDistance float32 = 40

// OmniShadowNearScale is the near clip of omni and clustered shadow cameras as a fraction of the
// light range.
const OmniShadowNearScale float32 = 0.001

// ShadowType is the shadow filtering technique.
type ShadowType int

const (
	ShadowPCF3 ShadowType = iota
	ShadowPCF1
	ShadowPCF5
	ShadowVSM16
	ShadowVSM32
	ShadowPCSS
	numShadowTypes
)

// NumShadowTypes is the number of shadow types, used to size per-type tables.
const NumShadowTypes = int(numShadowTypes)

// IsPcf reports whether the type samples depth with percentage-closer filtering.
func (t ShadowType) IsPcf() bool {
	return t == ShadowPCF1 || t == ShadowPCF3 || t == ShadowPCF5
}

// IsVsm reports whether the type stores depth moments in a color target.
func (t ShadowType) IsVsm() bool {
	return t == ShadowVSM16 || t == ShadowVSM32
}

// ColorFormat returns the moment format of VSM types.
func (t ShadowType) ColorFormat() gputypes.TextureFormat {
	if t == ShadowVSM32 {
		return gputypes.TextureFormatRGBA32Float
	}
	return gputypes.TextureFormatRGBA16Float
}

func (t ShadowType) String() string {
	switch t {
	case ShadowPCF1:
		return "pcf1"
	case ShadowPCF3:
		return "pcf3"
	case ShadowPCF5:
		return "pcf5"
	case ShadowVSM16:
		return "vsm16"
	case ShadowVSM32:
		return "vsm32"
	case ShadowPCSS:
		return "pcss"
	}
	return "unknown"
}

// WritesShadowColor reports whether shadow passes for this light write a color value instead of
// depth only: VSM moments, or the distance stored by non-clustered omni lights.
//
// Parameters:
//   - clustered: whether the light renders into the clustered shadow atlas
//
// Returns:
//   - bool: true when color writes are required
func (l *Light) WritesShadowColor(clustered bool) bool {
	if l.shadowType.IsVsm() {
		return true
	}
	return l.lightType == LightTypeOmni && !clustered
}

// ShadowDepthState returns the depth state of the light's shadow passes. The slope-scaled bias is
// derived from the shadow bias, except for non-clustered omni lights which store distance.
//
// Parameters:
//   - clustered: whether the light renders into the clustered shadow atlas
//
// Returns:
//   - gpu.DepthState: the state to set before submitting casters
func (l *Light) ShadowDepthState(clustered bool) gpu.DepthState {
	state := gpu.DepthState{Func: gputypes.CompareFunctionLessEqual, Write: true}
	if l.lightType == LightTypeOmni && !clustered {
		return state
	}
	bias := l.shadowBias * -1000
	state.Bias = bias
	state.SlopeScale = bias
	return state
}

// ShadowMap is the set of render targets a light renders its shadow into. Cached maps (pooled
// temporaries or the shared atlas) are not destroyed with the light.
type ShadowMap struct {
	Texture       *gpu.Texture
	RenderTargets []*gpu.RenderTarget
	Cached        bool
}

// NewShadowMap creates a non-clustered shadow map for l: a depth texture for PCF and PCSS, a
// moment color target with private depth for VSM, and six cube-face targets for omni lights.
//
// Parameters:
//   - device: the owning device
//   - l: the light the map is sized and formatted for
//
// Returns:
//   - *ShadowMap: the map
func NewShadowMap(device gpu.Device, l *Light) *ShadowMap {
	if l.lightType == LightTypeOmni {
		return newCubeShadowMap(device, l)
	}
	return new2DShadowMap(device, l.shadowResolution, l.shadowType)
}

// NewShadowMap2D creates a 2D shadow map of the given size and type, also used for pooled blur
// targets and the clustered atlas.
//
// Parameters:
//   - device: the owning device
//   - size: width and height in texels
//   - shadowType: the filtering technique deciding the formats
//
// Returns:
//   - *ShadowMap: the map
func NewShadowMap2D(device gpu.Device, size int, shadowType ShadowType) *ShadowMap {
	return new2DShadowMap(device, size, shadowType)
}

func new2DShadowMap(device gpu.Device, size int, shadowType ShadowType) *ShadowMap {
	usage := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
	name := fmt.Sprintf("ShadowMap2D_%s_%d", shadowType, size)

	if shadowType.IsVsm() {
		tex := gpu.NewTexture(device,
			gpu.WithTextureName(name),
			gpu.WithTextureSize(size, size),
			gpu.WithTextureFormat(shadowType.ColorFormat()),
			gpu.WithTextureUsage(usage),
		)
		rt := gpu.NewRenderTarget(device,
			gpu.WithRenderTargetName(name),
			gpu.WithColorBuffer(tex),
			gpu.WithDepth(true),
		)
		return &ShadowMap{Texture: tex, RenderTargets: []*gpu.RenderTarget{rt}}
	}

	opts := []gpu.TextureBuilderOption{
		gpu.WithTextureName(name),
		gpu.WithTextureSize(size, size),
		gpu.WithTextureFormat(gputypes.TextureFormatDepth32Float),
		gpu.WithTextureUsage(usage),
		gpu.WithTextureFilter(gputypes.FilterModeLinear),
	}
	if shadowType.IsPcf() {
		opts = append(opts, gpu.WithTextureCompare(gputypes.CompareFunctionLess))
	}
	tex := gpu.NewTexture(device, opts...)
	rt := gpu.NewRenderTarget(device, gpu.WithRenderTargetName(name), gpu.WithDepthBuffer(tex))
	return &ShadowMap{Texture: tex, RenderTargets: []*gpu.RenderTarget{rt}}
}

func newCubeShadowMap(device gpu.Device, l *Light) *ShadowMap {
	// omni lights never use VSM, so the faces store linear distance
	format := gputypes.TextureFormatRGBA16Float
	name := fmt.Sprintf("ShadowMapCube_%d", l.shadowResolution)
	tex := gpu.NewTexture(device,
		gpu.WithTextureName(name),
		gpu.WithTextureSize(l.shadowResolution, l.shadowResolution),
		gpu.WithTextureFormat(format),
		gpu.WithTextureUsage(gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding),
		gpu.WithCubemap(),
		gpu.WithTextureFilter(gputypes.FilterModeNearest),
	)
	sm := &ShadowMap{Texture: tex, RenderTargets: make([]*gpu.RenderTarget, 6)}
	for face := range sm.RenderTargets {
		sm.RenderTargets[face] = gpu.NewRenderTarget(device,
			gpu.WithRenderTargetName(fmt.Sprintf("%s_face%d", name, face)),
			gpu.WithColorBuffer(tex),
			gpu.WithDepth(true),
			gpu.WithFace(face),
		)
	}
	return sm
}

// Destroy releases the render targets and the texture they share.
func (sm *ShadowMap) Destroy() {
	for _, rt := range sm.RenderTargets {
		if !rt.Destroyed() {
			rt.Destroy()
		}
	}
	if sm.Texture != nil && !sm.Texture.Destroyed() {
		sm.Texture.Destroy()
	}
	sm.RenderTargets = nil
}

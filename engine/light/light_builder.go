package light

import (
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/go-gl/mathgl/mgl32"
)

// LightBuilderOption is a function that configures a Light during construction.
type LightBuilderOption func(*Light)

// WithNode is an option builder that sets the node providing the light pose.
//
// Parameters:
//   - node: the graph node
//
// Returns:
//   - LightBuilderOption: a function that applies the node option to a Light
func WithNode(node graph.GraphNode) LightBuilderOption {
	return func(l *Light) {
		l.node = node
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a Light
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *Light) {
		l.color = mgl32.Vec3{r, g, b}
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a Light
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *Light) {
		l.intensity = intensity
	}
}

// WithRange is an option builder that sets the attenuation end distance of omni and spot lights.
//
// Parameters:
//   - lightRange: the range value
//
// Returns:
//   - LightBuilderOption: a function that applies the range option to a Light
func WithRange(lightRange float32) LightBuilderOption {
	return func(l *Light) {
		l.attenuationEnd = lightRange
	}
}

// WithConeAngles is an option builder that sets the inner and outer cone half-angles of a spot
// light in degrees.
//
// Parameters:
//   - innerDeg: inner cone half-angle in degrees
//   - outerDeg: outer cone half-angle in degrees
//
// Returns:
//   - LightBuilderOption: a function that applies the cone option to a Light
func WithConeAngles(innerDeg, outerDeg float32) LightBuilderOption {
	return func(l *Light) {
		l.innerConeAngle = innerDeg
		l.outerConeAngle = outerDeg
	}
}

// WithEnabled is an option builder that sets whether the light is active for rendering.
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *Light) {
		l.enabled = enabled
	}
}

// WithCastShadows is an option builder that sets whether the light renders a shadow map.
func WithCastShadows(cast bool) LightBuilderOption {
	return func(l *Light) {
		l.castShadows = cast
	}
}

// WithStatic marks the light as never moving.
func WithStatic(static bool) LightBuilderOption {
	return func(l *Light) {
		l.isStatic = static
	}
}

// WithMask sets the bit mask matched against mesh instance masks.
func WithMask(mask uint32) LightBuilderOption {
	return func(l *Light) {
		l.mask = mask
	}
}

// WithShadowUpdateMode sets how often the shadow map is rendered.
func WithShadowUpdateMode(mode ShadowUpdateMode) LightBuilderOption {
	return func(l *Light) {
		l.shadowUpdateMode = mode
	}
}

// WithShadowResolution sets the shadow map width and height in texels.
func WithShadowResolution(res int) LightBuilderOption {
	return func(l *Light) {
		l.shadowResolution = res
	}
}

// WithShadowType sets the shadow filtering technique. Omni lights fall back to ShadowPCF3 for VSM
// types.
func WithShadowType(t ShadowType) LightBuilderOption {
	return func(l *Light) {
		l.shadowType = t
	}
}

// WithShadowBias sets the constant depth bias and the normal offset bias.
//
// Parameters:
//   - bias: the depth bias
//   - normalOffset: the normal offset distance
//
// Returns:
//   - LightBuilderOption: a function that applies the bias option to a Light
func WithShadowBias(bias, normalOffset float32) LightBuilderOption {
	return func(l *Light) {
		l.shadowBias = bias
		l.normalOffsetBias = normalOffset
	}
}

// WithVsmBlur sets the VSM blur kernel size and mode.
func WithVsmBlur(size int, mode BlurMode) LightBuilderOption {
	return func(l *Light) {
		l.SetVsmBlurSize(size)
		l.vsmBlurMode = mode
	}
}

// WithCascades sets the directional cascade count, split distribution and shadow distance.
//
// Parameters:
//   - n: the cascade count, clamped to [1, MaxCascades]
//   - distribution: 0 for linear splits, 1 for logarithmic
//   - distance: the distance from the camera covered by shadows
//
// Returns:
//   - LightBuilderOption: a function that applies the cascade option to a Light
func WithCascades(n int, distribution, distance float32) LightBuilderOption {
	return func(l *Light) {
		l.SetNumCascades(n)
		l.SetCascadeDistribution(distribution)
		l.shadowDistance = distance
	}
}

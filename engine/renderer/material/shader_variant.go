package material

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
)

// ShaderPass identifies what a draw renders: lit color, depth, or one shadow configuration.
type ShaderPass int

const (
	ShaderPassForward ShaderPass = iota
	ShaderPassDepth
	// ShaderPassShadow is the first shadow pass; see ShadowPass.
	ShaderPassShadow
)

// NumShadowPasses is the number of distinct shadow passes.
const NumShadowPasses = 3 * light.NumShadowTypes

// ShadowPass returns the pass rendering shadows of the given light and shadow type.
func ShadowPass(lightType light.LightType, shadowType light.ShadowType) ShaderPass {
	return ShaderPassShadow + ShaderPass(int(lightType)*light.NumShadowTypes+int(shadowType))
}

// IsShadow reports whether p is a shadow pass.
func (p ShaderPass) IsShadow() bool { return p >= ShaderPassShadow }

// ShadowConfig returns the light and shadow type of a shadow pass.
func (p ShaderPass) ShadowConfig() (light.LightType, light.ShadowType) {
	i := int(p - ShaderPassShadow)
	return light.LightType(i / light.NumShadowTypes), light.ShadowType(i % light.NumShadowTypes)
}

func (p ShaderPass) String() string {
	switch {
	case p == ShaderPassForward:
		return "forward"
	case p == ShaderPassDepth:
		return "depth"
	case p.IsShadow():
		lt, st := p.ShadowConfig()
		return fmt.Sprintf("shadow_%s_%s", lt, st)
	}
	return "unknown"
}

// ShaderDefs is the bit set of mesh instance features baked into a shader variant.
type ShaderDefs uint32

const (
	DefSkin ShaderDefs = 1 << iota
	DefMorph
	DefInstancing
	// DefNoShadow disables shadow receiving.
	DefNoShadow
	DefScreenSpace
)

// Has reports whether every bit of d2 is set.
func (d ShaderDefs) Has(d2 ShaderDefs) bool { return d&d2 == d2 }

// ShaderVariantParams is everything a shader variant depends on.
type ShaderVariantParams struct {
	Pass      ShaderPass
	Defs      ShaderDefs
	LightHash uint32
	// Lights are the lights evaluated in the shader: every layer light, or only the directional
	// ones when Clustered is set.
	Lights    []*light.Light
	Clustered bool
}

// Key returns the variant cache key "pass_defs_lightHash". Shadow passes ignore lights, so their
// hash slot records whether the caster renders into the clustered atlas.
func (p ShaderVariantParams) Key() string {
	hash := p.LightHash
	if p.Pass.IsShadow() {
		hash = 0
		if p.Clustered {
			hash = 1
		}
	}
	return fmt.Sprintf("%d_%d_%d", p.Pass, p.Defs, hash)
}

// ShaderVariantProvider generates shaders for a material. Materials without a provider use the
// standard generator.
type ShaderVariantProvider interface {
	// ShaderVariant builds the shader for params.
	//
	// Parameters:
	//   - device: the device compiling the shader
	//   - params: the variant description
	//
	// Returns:
	//   - *gpu.Shader: the shader, nil when the variant cannot be produced
	ShaderVariant(device gpu.Device, params ShaderVariantParams) *gpu.Shader
}

// ShaderVariantProviderFunc adapts a function to ShaderVariantProvider.
type ShaderVariantProviderFunc func(device gpu.Device, params ShaderVariantParams) *gpu.Shader

// ShaderVariant calls f.
func (f ShaderVariantProviderFunc) ShaderVariant(device gpu.Device, params ShaderVariantParams) *gpu.Shader {
	return f(device, params)
}

package material

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithBaseColor is an option builder that sets the RGBA surface color of the material.
//
// Parameters:
//   - color: the base color as RGBA float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color mgl32.Vec4) MaterialBuilderOption {
	return func(m *material) {
		m.parameters[ParamBaseColor] = color
	}
}

// WithCull is an option builder that sets the face culling mode.
//
// Parameters:
//   - mode: the cull mode
//
// Returns:
//   - MaterialBuilderOption: a function that applies the cull option to a material
func WithCull(mode gputypes.CullMode) MaterialBuilderOption {
	return func(m *material) {
		m.cull = mode
	}
}

// WithBlendType is an option builder that sets how the material blends with the target.
//
// Parameters:
//   - t: the blend type
//
// Returns:
//   - MaterialBuilderOption: a function that applies the blend option to a material
func WithBlendType(t BlendType) MaterialBuilderOption {
	return func(m *material) {
		m.blendType = t
	}
}

// WithAlphaTest is an option builder that sets the alpha test reference.
//
// Parameters:
//   - ref: fragments with alpha below ref are discarded
//
// Returns:
//   - MaterialBuilderOption: a function that applies the alpha test option to a material
func WithAlphaTest(ref float32) MaterialBuilderOption {
	return func(m *material) {
		m.alphaTest = ref
		m.parameters[ParamAlphaRef] = ref
	}
}

// WithAlphaToCoverage is an option builder that enables alpha to coverage.
func WithAlphaToCoverage(enabled bool) MaterialBuilderOption {
	return func(m *material) {
		m.alphaToCoverage = enabled
	}
}

// WithDepth is an option builder that configures depth testing and writing.
//
// Parameters:
//   - test: whether fragments are depth tested
//   - write: whether fragments write depth
//
// Returns:
//   - MaterialBuilderOption: a function that applies the depth option to a material
func WithDepth(test, write bool) MaterialBuilderOption {
	return func(m *material) {
		m.depthTest = test
		m.depthWrite = write
	}
}

// WithDepthBias is an option builder that sets the constant and slope-scaled depth bias.
func WithDepthBias(bias, slope float32) MaterialBuilderOption {
	return func(m *material) {
		m.depthBias = bias
		m.slopeDepthBias = slope
	}
}

// WithColorWrite is an option builder that selects the written color channels.
func WithColorWrite(r, g, b, a bool) MaterialBuilderOption {
	return func(m *material) {
		m.redWrite, m.greenWrite, m.blueWrite, m.alphaWrite = r, g, b, a
	}
}

// WithShaderVariantProvider is an option builder that installs a custom shader generator.
//
// Parameters:
//   - provider: the generator used instead of the standard one
//
// Returns:
//   - MaterialBuilderOption: a function that applies the provider option to a material
func WithShaderVariantProvider(provider ShaderVariantProvider) MaterialBuilderOption {
	return func(m *material) {
		m.provider = provider
	}
}

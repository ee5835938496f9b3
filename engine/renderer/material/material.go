// Package material describes how a surface is drawn: face culling, blending, depth testing,
// shader parameters and the cache of shader variants generated for it.
package material

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// BlendType selects how drawn colors combine with the render target.
type BlendType int

const (
	BlendNone BlendType = iota
	BlendNormal
	BlendAdditive
	BlendPremultiplied
	BlendMultiplicative
	BlendAdditiveAlpha
)

// ParamBaseColor is the parameter holding the surface color multiplied into vertex colors.
const ParamBaseColor = "material_baseColor"

// ParamAlphaRef is the parameter holding the alpha test reference.
const ParamAlphaRef = "alpha_ref"

var materialIDs atomic.Uint32

// material is the implementation of the Material interface.
type material struct {
	id   uint32
	name string

	cull            gputypes.CullMode
	blendType       BlendType
	alphaTest       float32
	alphaToCoverage bool
	depthTest       bool
	depthWrite      bool
	depthBias       float32
	slopeDepthBias  float32
	redWrite        bool
	greenWrite      bool
	blueWrite       bool
	alphaWrite      bool

	parameters map[string]any
	provider   ShaderVariantProvider
	variants   map[string]*gpu.Shader

	blendState gpu.BlendState
	depthState gpu.DepthState
	dirty      bool
	immutable  bool
}

// Material defines how mesh instances are drawn.
//
// Render state setters mark the material dirty; the renderer calls Update before drawing a dirty
// material to rebuild the derived blend and depth states. Shader variants are cached by
// ShaderVariantParams.Key and generated by the installed ShaderVariantProvider, or by the standard
// generator when none is installed.
type Material interface {
	// ID returns the process-unique id, used in draw sort keys.
	//
	// Returns:
	//   - uint32: the id
	ID() uint32

	// Name returns the material name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Cull returns the requested face culling mode.
	//
	// Returns:
	//   - gputypes.CullMode: the cull mode
	Cull() gputypes.CullMode

	// SetCull sets the requested face culling mode.
	//
	// Parameters:
	//   - mode: the cull mode
	SetCull(mode gputypes.CullMode)

	// BlendType returns the blend type.
	//
	// Returns:
	//   - BlendType: the blend type
	BlendType() BlendType

	// SetBlendType sets the blend type.
	//
	// Parameters:
	//   - t: the blend type
	SetBlendType(t BlendType)

	// Transparent reports whether the material blends with the target and therefore sorts into
	// the transparent bucket.
	//
	// Returns:
	//   - bool: true for any blend type other than BlendNone
	Transparent() bool

	// AlphaTest returns the alpha reference below which fragments are discarded; 0 disables it.
	//
	// Returns:
	//   - float32: the reference
	AlphaTest() float32

	// SetAlphaTest sets the alpha reference.
	//
	// Parameters:
	//   - ref: the reference in [0, 1]
	SetAlphaTest(ref float32)

	// AlphaToCoverage reports whether alpha is converted to MSAA coverage.
	//
	// Returns:
	//   - bool: true when enabled
	AlphaToCoverage() bool

	// SetAlphaToCoverage enables alpha to coverage.
	//
	// Parameters:
	//   - enabled: the flag
	SetAlphaToCoverage(enabled bool)

	// SetDepth configures depth testing and writing.
	//
	// Parameters:
	//   - test: whether fragments are depth tested
	//   - write: whether fragments write depth
	SetDepth(test, write bool)

	// SetDepthBias sets the constant and slope-scaled depth bias.
	//
	// Parameters:
	//   - bias: the constant bias
	//   - slope: the slope-scaled bias
	SetDepthBias(bias, slope float32)

	// SetColorWrite selects the written color channels.
	//
	// Parameters:
	//   - r, g, b, a: the channel flags
	SetColorWrite(r, g, b, a bool)

	// BlendState returns the device blend state derived at the last Update.
	//
	// Returns:
	//   - gpu.BlendState: the blend state
	BlendState() gpu.BlendState

	// DepthState returns the device depth state derived at the last Update.
	//
	// Returns:
	//   - gpu.DepthState: the depth state
	DepthState() gpu.DepthState

	// Dirty reports whether render state changed since the last Update.
	//
	// Returns:
	//   - bool: true when Update is needed
	Dirty() bool

	// Update recomputes the derived blend and depth states.
	Update()

	// SetParameter stores a shader parameter pushed to the device scope by SetParameters.
	//
	// Parameters:
	//   - name: the uniform or texture name
	//   - value: the value
	SetParameter(name string, value any)

	// Parameter returns a stored shader parameter.
	//
	// Parameters:
	//   - name: the parameter name
	//
	// Returns:
	//   - any: the value, or nil when unset
	Parameter(name string) any

	// DeleteParameter removes a stored shader parameter.
	//
	// Parameters:
	//   - name: the parameter name
	DeleteParameter(name string)

	// SetParameters pushes every parameter into the device scope.
	//
	// Parameters:
	//   - device: the device whose scope receives the values
	SetParameters(device gpu.Device)

	// GetShaderVariant returns the cached variant for params, generating it on a miss.
	//
	// Parameters:
	//   - device: the device compiling the shader
	//   - params: the variant description
	//
	// Returns:
	//   - *gpu.Shader: the shader, nil when it could not be produced
	GetShaderVariant(device gpu.Device, params ShaderVariantParams) *gpu.Shader

	// NumVariants returns the number of cached shader variants.
	//
	// Returns:
	//   - int: the cache size
	NumVariants() int

	// ClearVariants destroys every cached shader variant.
	ClearVariants()

	// SetShaderVariantProvider installs a custom shader generator and clears the cache.
	//
	// Parameters:
	//   - provider: the generator, nil to restore the standard generator
	SetShaderVariantProvider(provider ShaderVariantProvider)

	// CustomShaders reports whether a custom shader generator is installed.
	//
	// Returns:
	//   - bool: true when a provider is set
	CustomShaders() bool

	// Destroy clears the shader variants.
	Destroy()
}

var _ Material = &material{}

// NewMaterial creates an opaque material culling back faces, with depth test and write enabled
// and a white base color.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: the new material
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		id:         materialIDs.Add(1),
		name:       "Material",
		cull:       gputypes.CullModeBack,
		depthTest:  true,
		depthWrite: true,
		redWrite:   true,
		greenWrite: true,
		blueWrite:  true,
		alphaWrite: true,
		parameters: map[string]any{ParamBaseColor: mgl32.Vec4{1, 1, 1, 1}},
		variants:   make(map[string]*gpu.Shader),
	}
	for _, opt := range options {
		opt(m)
	}
	m.Update()
	return m
}

var (
	defaultMaterial     Material
	defaultMaterialOnce sync.Once
)

// Default returns the process-wide material used by mesh instances without one. Its render state
// cannot be changed.
//
// Returns:
//   - Material: the default material
func Default() Material {
	defaultMaterialOnce.Do(func() {
		m := NewMaterial(WithName("Default Material")).(*material)
		m.immutable = true
		defaultMaterial = m
	})
	return defaultMaterial
}

// mutable reports whether state may change, logging an assertion for the default material.
func (m *material) mutable() bool {
	return logger.Assert(!m.immutable, "default material is immutable", "material", m.name)
}

func (m *material) ID() uint32                 { return m.id }
func (m *material) Name() string               { return m.name }
func (m *material) Cull() gputypes.CullMode    { return m.cull }
func (m *material) BlendType() BlendType       { return m.blendType }
func (m *material) Transparent() bool          { return m.blendType != BlendNone }
func (m *material) AlphaTest() float32         { return m.alphaTest }
func (m *material) AlphaToCoverage() bool      { return m.alphaToCoverage }
func (m *material) BlendState() gpu.BlendState { return m.blendState }
func (m *material) DepthState() gpu.DepthState { return m.depthState }
func (m *material) Dirty() bool                { return m.dirty }
func (m *material) Parameter(name string) any  { return m.parameters[name] }
func (m *material) NumVariants() int           { return len(m.variants) }
func (m *material) CustomShaders() bool        { return m.provider != nil }

func (m *material) SetCull(mode gputypes.CullMode) {
	if m.mutable() {
		m.cull = mode
	}
}

func (m *material) SetBlendType(t BlendType) {
	if m.mutable() {
		m.blendType = t
		m.dirty = true
	}
}

func (m *material) SetAlphaTest(ref float32) {
	if m.mutable() {
		m.alphaTest = ref
		m.parameters[ParamAlphaRef] = ref
	}
}

func (m *material) SetAlphaToCoverage(enabled bool) {
	if m.mutable() {
		m.alphaToCoverage = enabled
	}
}

func (m *material) SetDepth(test, write bool) {
	if m.mutable() {
		m.depthTest = test
		m.depthWrite = write
		m.dirty = true
	}
}

func (m *material) SetDepthBias(bias, slope float32) {
	if m.mutable() {
		m.depthBias = bias
		m.slopeDepthBias = slope
		m.dirty = true
	}
}

func (m *material) SetColorWrite(r, g, b, a bool) {
	if m.mutable() {
		m.redWrite, m.greenWrite, m.blueWrite, m.alphaWrite = r, g, b, a
		m.dirty = true
	}
}

func (m *material) colorWriteMask() gputypes.ColorWriteMask {
	mask := gputypes.ColorWriteMaskNone
	if m.redWrite {
		mask |= gputypes.ColorWriteMaskRed
	}
	if m.greenWrite {
		mask |= gputypes.ColorWriteMaskGreen
	}
	if m.blueWrite {
		mask |= gputypes.ColorWriteMaskBlue
	}
	if m.alphaWrite {
		mask |= gputypes.ColorWriteMaskAlpha
	}
	return mask
}

func blendComponent(src, dst gputypes.BlendFactor) gputypes.BlendComponent {
	return gputypes.BlendComponent{SrcFactor: src, DstFactor: dst, Operation: gputypes.BlendOperationAdd}
}

func (m *material) Update() {
	mask := m.colorWriteMask()
	switch m.blendType {
	case BlendNormal:
		m.blendState = gpu.NewBlendState(gputypes.BlendStateAlpha(), mask)
	case BlendPremultiplied:
		m.blendState = gpu.NewBlendState(gputypes.BlendStatePremultiplied(), mask)
	case BlendAdditive:
		c := blendComponent(gputypes.BlendFactorOne, gputypes.BlendFactorOne)
		m.blendState = gpu.BlendState{Blend: true, Color: c, Alpha: c, WriteMask: mask}
	case BlendAdditiveAlpha:
		c := blendComponent(gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOne)
		m.blendState = gpu.BlendState{Blend: true, Color: c, Alpha: c, WriteMask: mask}
	case BlendMultiplicative:
		c := blendComponent(gputypes.BlendFactorDst, gputypes.BlendFactorZero)
		m.blendState = gpu.BlendState{Blend: true, Color: c, Alpha: c, WriteMask: mask}
	default:
		m.blendState = gpu.BlendState{WriteMask: mask}
	}

	m.depthState = gpu.DepthState{
		Func:       gputypes.CompareFunctionAlways,
		Write:      m.depthWrite,
		Bias:       m.depthBias,
		SlopeScale: m.slopeDepthBias,
	}
	if m.depthTest {
		m.depthState.Func = gputypes.CompareFunctionLessEqual
	}
	m.dirty = false
}

func (m *material) SetParameter(name string, value any) {
	m.parameters[name] = value
}

func (m *material) DeleteParameter(name string) {
	delete(m.parameters, name)
}

func (m *material) SetParameters(device gpu.Device) {
	scope := device.Scope()
	for name, value := range m.parameters {
		scope.Resolve(name).SetValue(value)
	}
}

func (m *material) GetShaderVariant(device gpu.Device, params ShaderVariantParams) *gpu.Shader {
	key := params.Key()
	if s, ok := m.variants[key]; ok {
		return s
	}
	var s *gpu.Shader
	if m.provider != nil {
		s = m.provider.ShaderVariant(device, params)
	} else {
		s = GenerateStandardShader(device, params)
	}
	if s == nil {
		logger.Logger().Warn("shader variant unavailable", "material", m.name, "variant", key)
		return nil
	}
	if s.Failed() {
		logger.Logger().Error("shader variant failed", "material", m.name, "variant", key, "err", s.Err())
	}
	m.variants[key] = s
	return s
}

func (m *material) ClearVariants() {
	for key, s := range m.variants {
		s.Destroy()
		delete(m.variants, key)
	}
}

func (m *material) SetShaderVariantProvider(provider ShaderVariantProvider) {
	m.provider = provider
	m.ClearVariants()
}

func (m *material) Destroy() {
	m.ClearVariants()
}

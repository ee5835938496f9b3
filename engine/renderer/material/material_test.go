package material

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardForwardShaderDeclaresLightBindings(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	lights := []*light.Light{
		light.NewLight(light.LightTypeDirectional, light.WithCastShadows(true), light.WithCascades(4, 0.5, 50)),
		light.NewLight(light.LightTypeSpot, light.WithCastShadows(true), light.WithShadowType(light.ShadowVSM16)),
		light.NewLight(light.LightTypeOmni, light.WithCastShadows(true)),
		light.NewLight(light.LightTypeSpot),
	}
	s := GenerateStandardShader(dev, ShaderVariantParams{Pass: ShaderPassForward, LightHash: 7, Lights: lights})
	require.True(t, s.Ready(), "%v", s.Err())

	ub := s.MeshUniformBufferFormat()
	require.NotNil(t, ub)
	assert.Equal(t, 0, ub.Get("matrix_model").Offset)
	assert.NotNil(t, ub.Get("light0_shadowMatrixPalette"))
	assert.NotNil(t, ub.Get("light1_shadowMatrix"))
	assert.NotNil(t, ub.Get("light2_shadowParams"))
	assert.Nil(t, ub.Get("light3_shadowParams"))
	assert.NotNil(t, ub.Get("light3_color"))

	bg := s.MeshBindGroupFormat()
	require.NotNil(t, bg)
	dir := bg.GetTexture("light0_shadowMap")
	require.NotNil(t, dir)
	assert.Equal(t, gputypes.TextureSampleTypeDepth, dir.SampleType)
	assert.True(t, dir.HasSampler)
	assert.Equal(t, gputypes.TextureSampleTypeFloat, bg.GetTexture("light1_shadowMap").SampleType)
	assert.Equal(t, gputypes.TextureViewDimensionCube, bg.GetTexture("light2_shadowMap").Dimension)
	assert.Nil(t, bg.GetTexture("light3_shadowMap"))
}

func TestStandardShaderNoShadowDropsShadowMaps(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	lights := []*light.Light{light.NewLight(light.LightTypeSpot, light.WithCastShadows(true))}
	s := GenerateStandardShader(dev, ShaderVariantParams{Pass: ShaderPassForward, Defs: DefNoShadow, Lights: lights})
	require.True(t, s.Ready(), "%v", s.Err())
	assert.Nil(t, s.MeshBindGroupFormat().GetTexture("light0_shadowMap"))
	assert.Nil(t, s.MeshUniformBufferFormat().Get("light0_shadowMatrix"))
}

func TestStandardShaderSkinMorphClustered(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	s := GenerateStandardShader(dev, ShaderVariantParams{
		Pass:      ShaderPassForward,
		Defs:      DefSkin | DefMorph,
		Clustered: true,
	})
	require.True(t, s.Ready(), "%v", s.Err())

	bg := s.MeshBindGroupFormat()
	bone := bg.GetTexture(BoneTextureName)
	require.NotNil(t, bone)
	assert.Equal(t, gputypes.TextureSampleTypeUnfilterableFloat, bone.SampleType)
	assert.False(t, bone.HasSampler)
	assert.NotNil(t, bg.GetTexture(MorphTextureName))
	assert.NotNil(t, bg.GetTexture(ClusterLightsName))
	assert.NotNil(t, bg.GetTexture(ClusterCellsName))
	assert.True(t, bg.GetTexture(ShadowAtlasName).HasSampler)

	ub := s.MeshUniformBufferFormat()
	assert.NotNil(t, ub.Get("morph_weights"))
	assert.NotNil(t, ub.Get("cluster_cells"))
}

func TestStandardShadowPassOutputs(t *testing.T) {
	depthOnly, err := StandardShaderSource(ShaderVariantParams{Pass: ShadowPass(light.LightTypeSpot, light.ShadowPCF3)})
	require.NoError(t, err)
	assert.Contains(t, depthOnly, "fn fragmentMain(input: VertexOutput) {")

	moments, err := StandardShaderSource(ShaderVariantParams{Pass: ShadowPass(light.LightTypeSpot, light.ShadowVSM32)})
	require.NoError(t, err)
	assert.Contains(t, moments, "depth * depth")

	omni, err := StandardShaderSource(ShaderVariantParams{Pass: ShadowPass(light.LightTypeOmni, light.ShadowPCF3)})
	require.NoError(t, err)
	assert.Contains(t, omni, "view.camera_params.x")

	atlas, err := StandardShaderSource(ShaderVariantParams{Pass: ShadowPass(light.LightTypeOmni, light.ShadowPCF3), Clustered: true})
	require.NoError(t, err)
	assert.NotContains(t, atlas, "view.camera_params.x")

	dev := gpu.NewNullDevice(8, 8)
	s := GenerateStandardShader(dev, ShaderVariantParams{Pass: ShadowPass(light.LightTypeDirectional, light.ShadowPCF5)})
	assert.True(t, s.Ready(), "%v", s.Err())
}

func TestShaderPassRoundTrip(t *testing.T) {
	p := ShadowPass(light.LightTypeOmni, light.ShadowVSM16)
	assert.True(t, p.IsShadow())
	lt, st := p.ShadowConfig()
	assert.Equal(t, light.LightTypeOmni, lt)
	assert.Equal(t, light.ShadowVSM16, st)
	assert.False(t, ShaderPassDepth.IsShadow())
	assert.Equal(t, "forward", ShaderPassForward.String())
}

func TestVariantKeyIgnoresLightsInShadowPasses(t *testing.T) {
	shadow := ShaderVariantParams{Pass: ShadowPass(light.LightTypeSpot, light.ShadowPCF3), LightHash: 42}
	assert.Equal(t, ShaderVariantParams{Pass: shadow.Pass}.Key(), shadow.Key())
	clustered := shadow
	clustered.Clustered = true
	assert.NotEqual(t, shadow.Key(), clustered.Key())
	assert.Equal(t, "0_3_42", ShaderVariantParams{Pass: ShaderPassForward, Defs: DefSkin | DefMorph, LightHash: 42}.Key())
}

func TestGetShaderVariantCaches(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	m := NewMaterial()
	params := ShaderVariantParams{Pass: ShaderPassForward}

	a := m.GetShaderVariant(dev, params)
	require.NotNil(t, a)
	assert.Same(t, a, m.GetShaderVariant(dev, params))
	assert.Equal(t, 1, m.NumVariants())

	params.Pass = ShaderPassDepth
	assert.NotSame(t, a, m.GetShaderVariant(dev, params))
	assert.Equal(t, 2, m.NumVariants())

	m.ClearVariants()
	assert.Zero(t, m.NumVariants())
}

func TestShaderVariantProvider(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	calls := 0
	provider := ShaderVariantProviderFunc(func(device gpu.Device, params ShaderVariantParams) *gpu.Shader {
		calls++
		if params.Pass == ShaderPassDepth {
			return nil
		}
		return GenerateStandardShader(device, params)
	})
	m := NewMaterial(WithShaderVariantProvider(provider))
	assert.True(t, m.CustomShaders())

	assert.NotNil(t, m.GetShaderVariant(dev, ShaderVariantParams{Pass: ShaderPassForward}))
	assert.NotNil(t, m.GetShaderVariant(dev, ShaderVariantParams{Pass: ShaderPassForward}))
	assert.Nil(t, m.GetShaderVariant(dev, ShaderVariantParams{Pass: ShaderPassDepth}))
	assert.Equal(t, 2, calls)

	m.SetShaderVariantProvider(nil)
	assert.False(t, m.CustomShaders())
	assert.Zero(t, m.NumVariants())
}

func TestBlendAndDepthStates(t *testing.T) {
	m := NewMaterial()
	assert.False(t, m.Transparent())
	assert.False(t, m.BlendState().Blend)
	assert.Equal(t, gputypes.ColorWriteMaskAll, m.BlendState().WriteMask)
	assert.Equal(t, gputypes.CompareFunctionLessEqual, m.DepthState().Func)
	assert.True(t, m.DepthState().Write)

	m.SetBlendType(BlendAdditive)
	m.SetDepth(false, false)
	m.SetColorWrite(true, true, true, false)
	assert.True(t, m.Dirty())
	m.Update()
	assert.False(t, m.Dirty())

	assert.True(t, m.Transparent())
	bs := m.BlendState()
	assert.True(t, bs.Blend)
	assert.Equal(t, gputypes.BlendFactorOne, bs.Color.DstFactor)
	assert.Equal(t, gputypes.ColorWriteMaskRed|gputypes.ColorWriteMaskGreen|gputypes.ColorWriteMaskBlue, bs.WriteMask)
	assert.Equal(t, gputypes.CompareFunctionAlways, m.DepthState().Func)
	assert.False(t, m.DepthState().Write)
}

func TestParametersReachScope(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	m := NewMaterial(WithBaseColor(mgl32.Vec4{1, 0, 0, 1}), WithAlphaTest(0.5))
	m.SetParameter("custom", float32(2))
	m.SetParameters(dev)

	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, dev.Scope().Resolve(ParamBaseColor).Value())
	assert.Equal(t, float32(0.5), dev.Scope().Resolve(ParamAlphaRef).Value())
	assert.Equal(t, float32(2), m.Parameter("custom"))

	m.DeleteParameter("custom")
	assert.Nil(t, m.Parameter("custom"))
}

func TestDefaultMaterialIsImmutable(t *testing.T) {
	d := Default()
	assert.Same(t, d, Default())
	d.SetBlendType(BlendAdditive)
	d.SetCull(gputypes.CullModeNone)
	assert.Equal(t, BlendNone, d.BlendType())
	assert.Equal(t, gputypes.CullModeBack, d.Cull())
}

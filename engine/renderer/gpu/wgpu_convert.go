package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// The engine describes GPU state with gputypes; these switches translate it to the wgpu binding.

func toWGPUTextureFormat(f gputypes.TextureFormat) wgpu.TextureFormat {
	switch f {
	case gputypes.TextureFormatR32Float:
		return wgpu.TextureFormatR32Float
	case gputypes.TextureFormatRG32Float:
		return wgpu.TextureFormatRG32Float
	case gputypes.TextureFormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case gputypes.TextureFormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case gputypes.TextureFormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case gputypes.TextureFormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float
	case gputypes.TextureFormatDepth24Plus:
		return wgpu.TextureFormatDepth24Plus
	case gputypes.TextureFormatDepth24PlusStencil8:
		return wgpu.TextureFormatDepth24PlusStencil8
	case gputypes.TextureFormatDepth32Float:
		return wgpu.TextureFormatDepth32Float
	}
	return wgpu.TextureFormatUndefined
}

// texelSize returns the bytes per texel of the uploadable color formats.
func texelSize(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatRG32Float, gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	}
	return 4
}

func toWGPUTextureUsage(u gputypes.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&gputypes.TextureUsageCopySrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	if u&gputypes.TextureUsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	if u&gputypes.TextureUsageTextureBinding != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&gputypes.TextureUsageStorageBinding != 0 {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u&gputypes.TextureUsageRenderAttachment != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	return out
}

func toWGPUBufferUsage(u gputypes.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&gputypes.BufferUsageCopySrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	if u&gputypes.BufferUsageCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	if u&gputypes.BufferUsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&gputypes.BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&gputypes.BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gputypes.BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&gputypes.BufferUsageIndirect != 0 {
		out |= wgpu.BufferUsageIndirect
	}
	return out
}

func toWGPUCullMode(m gputypes.CullMode) wgpu.CullMode {
	switch m {
	case gputypes.CullModeFront:
		return wgpu.CullModeFront
	case gputypes.CullModeBack:
		return wgpu.CullModeBack
	}
	return wgpu.CullModeNone
}

func toWGPUCompare(c gputypes.CompareFunction) wgpu.CompareFunction {
	switch c {
	case gputypes.CompareFunctionNever:
		return wgpu.CompareFunctionNever
	case gputypes.CompareFunctionLess:
		return wgpu.CompareFunctionLess
	case gputypes.CompareFunctionEqual:
		return wgpu.CompareFunctionEqual
	case gputypes.CompareFunctionLessEqual:
		return wgpu.CompareFunctionLessEqual
	case gputypes.CompareFunctionGreater:
		return wgpu.CompareFunctionGreater
	case gputypes.CompareFunctionNotEqual:
		return wgpu.CompareFunctionNotEqual
	case gputypes.CompareFunctionGreaterEqual:
		return wgpu.CompareFunctionGreaterEqual
	case gputypes.CompareFunctionAlways:
		return wgpu.CompareFunctionAlways
	}
	return wgpu.CompareFunctionUndefined
}

func toWGPUBlendFactor(f gputypes.BlendFactor) wgpu.BlendFactor {
	switch f {
	case gputypes.BlendFactorZero:
		return wgpu.BlendFactorZero
	case gputypes.BlendFactorOne:
		return wgpu.BlendFactorOne
	case gputypes.BlendFactorSrc:
		return wgpu.BlendFactorSrc
	case gputypes.BlendFactorOneMinusSrc:
		return wgpu.BlendFactorOneMinusSrc
	case gputypes.BlendFactorSrcAlpha:
		return wgpu.BlendFactorSrcAlpha
	case gputypes.BlendFactorOneMinusSrcAlpha:
		return wgpu.BlendFactorOneMinusSrcAlpha
	case gputypes.BlendFactorDst:
		return wgpu.BlendFactorDst
	case gputypes.BlendFactorOneMinusDst:
		return wgpu.BlendFactorOneMinusDst
	case gputypes.BlendFactorDstAlpha:
		return wgpu.BlendFactorDstAlpha
	case gputypes.BlendFactorOneMinusDstAlpha:
		return wgpu.BlendFactorOneMinusDstAlpha
	}
	return wgpu.BlendFactorOne
}

func toWGPUBlendOperation(op gputypes.BlendOperation) wgpu.BlendOperation {
	switch op {
	case gputypes.BlendOperationSubtract:
		return wgpu.BlendOperationSubtract
	case gputypes.BlendOperationReverseSubtract:
		return wgpu.BlendOperationReverseSubtract
	case gputypes.BlendOperationMin:
		return wgpu.BlendOperationMin
	case gputypes.BlendOperationMax:
		return wgpu.BlendOperationMax
	}
	return wgpu.BlendOperationAdd
}

func toWGPUBlendComponent(c gputypes.BlendComponent) wgpu.BlendComponent {
	return wgpu.BlendComponent{
		SrcFactor: toWGPUBlendFactor(c.SrcFactor),
		DstFactor: toWGPUBlendFactor(c.DstFactor),
		Operation: toWGPUBlendOperation(c.Operation),
	}
}

func toWGPUWriteMask(m gputypes.ColorWriteMask) wgpu.ColorWriteMask {
	var out wgpu.ColorWriteMask
	if m&gputypes.ColorWriteMaskRed != 0 {
		out |= wgpu.ColorWriteMaskRed
	}
	if m&gputypes.ColorWriteMaskGreen != 0 {
		out |= wgpu.ColorWriteMaskGreen
	}
	if m&gputypes.ColorWriteMaskBlue != 0 {
		out |= wgpu.ColorWriteMaskBlue
	}
	if m&gputypes.ColorWriteMaskAlpha != 0 {
		out |= wgpu.ColorWriteMaskAlpha
	}
	return out
}

func toWGPUTopology(t gputypes.PrimitiveTopology) wgpu.PrimitiveTopology {
	switch t {
	case gputypes.PrimitiveTopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	case gputypes.PrimitiveTopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case gputypes.PrimitiveTopologyLineStrip:
		return wgpu.PrimitiveTopologyLineStrip
	case gputypes.PrimitiveTopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	}
	return wgpu.PrimitiveTopologyTriangleList
}

func toWGPUIndexFormat(f gputypes.IndexFormat) wgpu.IndexFormat {
	if f == gputypes.IndexFormatUint16 {
		return wgpu.IndexFormatUint16
	}
	return wgpu.IndexFormatUint32
}

func toWGPUVertexFormat(f gputypes.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gputypes.VertexFormatFloat32:
		return wgpu.VertexFormatFloat32
	case gputypes.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gputypes.VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case gputypes.VertexFormatFloat32x4:
		return wgpu.VertexFormatFloat32x4
	case gputypes.VertexFormatUint32:
		return wgpu.VertexFormatUint32
	case gputypes.VertexFormatUint32x2:
		return wgpu.VertexFormatUint32x2
	case gputypes.VertexFormatUint32x4:
		return wgpu.VertexFormatUint32x4
	case gputypes.VertexFormatSint32:
		return wgpu.VertexFormatSint32
	case gputypes.VertexFormatSint32x4:
		return wgpu.VertexFormatSint32x4
	}
	return wgpu.VertexFormatFloat32x4
}

func toWGPUAddressMode(m gputypes.AddressMode) wgpu.AddressMode {
	switch m {
	case gputypes.AddressModeRepeat:
		return wgpu.AddressModeRepeat
	case gputypes.AddressModeMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	}
	return wgpu.AddressModeClampToEdge
}

func toWGPUFilterMode(m gputypes.FilterMode) wgpu.FilterMode {
	if m == gputypes.FilterModeNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func toWGPUViewDimension(d gputypes.TextureViewDimension) wgpu.TextureViewDimension {
	switch d {
	case gputypes.TextureViewDimension1D:
		return wgpu.TextureViewDimension1D
	case gputypes.TextureViewDimension2DArray:
		return wgpu.TextureViewDimension2DArray
	case gputypes.TextureViewDimensionCube:
		return wgpu.TextureViewDimensionCube
	case gputypes.TextureViewDimensionCubeArray:
		return wgpu.TextureViewDimensionCubeArray
	case gputypes.TextureViewDimension3D:
		return wgpu.TextureViewDimension3D
	}
	return wgpu.TextureViewDimension2D
}

func toWGPUSampleType(t gputypes.TextureSampleType) wgpu.TextureSampleType {
	switch t {
	case gputypes.TextureSampleTypeUnfilterableFloat:
		return wgpu.TextureSampleTypeUnfilterableFloat
	case gputypes.TextureSampleTypeDepth:
		return wgpu.TextureSampleTypeDepth
	case gputypes.TextureSampleTypeSint:
		return wgpu.TextureSampleTypeSint
	case gputypes.TextureSampleTypeUint:
		return wgpu.TextureSampleTypeUint
	}
	return wgpu.TextureSampleTypeFloat
}

func toWGPUStorageAccess(a gputypes.StorageTextureAccess) wgpu.StorageTextureAccess {
	switch a {
	case gputypes.StorageTextureAccessReadOnly:
		return wgpu.StorageTextureAccessReadOnly
	case gputypes.StorageTextureAccessReadWrite:
		return wgpu.StorageTextureAccessReadWrite
	}
	return wgpu.StorageTextureAccessWriteOnly
}

func toWGPUShaderStage(s gputypes.ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&gputypes.ShaderStageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&gputypes.ShaderStageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if s&gputypes.ShaderStageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

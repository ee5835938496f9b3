package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fragmentStage = gputypes.ShaderStageFragment

func newTestFormat(dev Device) *BindGroupFormat {
	return NewBindGroupFormat(dev,
		WithUniformBuffer("default", gputypes.ShaderStageVertex|fragmentStage),
		WithTexture("diffuseMap", fragmentStage, gputypes.TextureViewDimension2D, gputypes.TextureSampleTypeFloat, true),
		WithTexture("lut", fragmentStage, gputypes.TextureViewDimension2D, gputypes.TextureSampleTypeFloat, false),
		WithStorageTexture("outImage", fragmentStage, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureViewDimension2D, gputypes.StorageTextureAccessWriteOnly),
		WithStorageBuffer("lights", fragmentStage, true),
	)
}

func TestBindGroupFormatSlots(t *testing.T) {
	f := newTestFormat(NewNullDevice(8, 8))

	assert.Equal(t, 0, f.GetUniformBuffer("default").Slot)
	assert.Equal(t, 1, f.GetTexture("diffuseMap").Slot)
	assert.Equal(t, 3, f.GetTexture("lut").Slot)
	assert.Equal(t, 4, f.GetStorageTexture("outImage").Slot)
	assert.Equal(t, 5, f.GetStorageBuffer("lights").Slot)
	assert.Equal(t, 6, f.NumSlots())

	assert.Nil(t, f.GetTexture("missing"))
	assert.Nil(t, f.GetUniformBuffer("missing"))
	assert.Nil(t, f.GetStorageBuffer("missing"))
	assert.Nil(t, f.GetStorageTexture("missing"))
	assert.Equal(t, -1, f.TextureIndex("missing"))
	assert.NotNil(t, f.GetTexture("diffuseMap").ScopeID())
}

func TestBindGroupFormatIDsAreUnique(t *testing.T) {
	dev := NewNullDevice(8, 8)
	assert.NotEqual(t, newTestFormat(dev).ID(), newTestFormat(dev).ID())
}

func TestBindGroupDirtyTracking(t *testing.T) {
	dev := NewNullDevice(8, 8)
	f := NewBindGroupFormat(dev,
		WithUniformBuffer("default", fragmentStage),
		WithTexture("diffuseMap", fragmentStage, gputypes.TextureViewDimension2D, gputypes.TextureSampleTypeFloat, true),
	)
	ub := NewUniformBuffer(dev, NewUniformBufferFormat(dev, []*UniformFormat{NewUniformFormat("x", UniformTypeFloat, 0)}))
	bg := NewBindGroup(dev, f, ub)
	require.Same(t, ub, bg.DefaultUniformBuffer())
	require.Same(t, ub, bg.UniformBuffers()[0])

	tex := NewTexture(dev)
	bg.SetTexture("diffuseMap", tex)
	require.True(t, bg.Dirty())
	bg.Update()
	assert.False(t, bg.Dirty())
	assert.Equal(t, 1, dev.Stats().BindGroupUpdates)

	// same object, unchanged contents
	bg.SetTexture("diffuseMap", tex)
	assert.False(t, bg.Dirty())

	// re-uploaded in a later frame
	dev.FrameEnd()
	tex.Upload()
	bg.SetTexture("diffuseMap", tex)
	assert.True(t, bg.Dirty())
	bg.Update()
	assert.Equal(t, 2, dev.Stats().BindGroupUpdates)

	// identity change
	bg.SetTexture("diffuseMap", NewTexture(dev))
	assert.True(t, bg.Dirty())
	bg.Update()
	bg.Update()
	assert.Equal(t, 3, dev.Stats().BindGroupUpdates)
}

func TestBindGroupUndeclaredNamesAreIgnored(t *testing.T) {
	dev := NewNullDevice(8, 8)
	bg := NewBindGroup(dev, newTestFormat(dev), nil)
	bg.Update()
	require.False(t, bg.Dirty())

	bg.SetTexture("nope", NewTexture(dev))
	bg.SetUniformBuffer("nope", nil)
	bg.SetStorageBuffer("nope", nil)
	bg.SetStorageTexture("nope", nil)
	assert.False(t, bg.Dirty())
}

func TestBindGroupPullsScopeTextures(t *testing.T) {
	dev := NewNullDevice(8, 8)
	f := NewBindGroupFormat(dev,
		WithTexture("shadowAtlas", fragmentStage, gputypes.TextureViewDimension2D, gputypes.TextureSampleTypeDepth, true),
	)
	bg := NewBindGroup(dev, f, nil)

	// nothing published yet
	bg.Update()
	assert.Nil(t, bg.Textures()[0])

	atlas := NewTexture(dev, WithTextureFormat(gputypes.TextureFormatDepth32Float))
	dev.Scope().Resolve("shadowAtlas").SetValue(atlas)
	bg.Update()
	assert.Same(t, atlas, bg.Textures()[0])
	assert.False(t, bg.Dirty())
	assert.Equal(t, dev.RenderVersion(), bg.RenderVersionUpdated())
}

func TestBindGroupDestroyTwice(t *testing.T) {
	dev := NewNullDevice(8, 8)
	bg := NewBindGroup(dev, newTestFormat(dev), nil)
	bg.Destroy()
	bg.Destroy()
	assert.True(t, bg.Destroyed())
	bg.Update()
}

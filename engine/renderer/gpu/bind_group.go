package gpu

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
)

// DefaultUniformBufferName is the binding that receives a bind group's default uniform buffer.
// Formats without a binding of that name use their first uniform buffer instead.
const DefaultUniformBufferName = "default"

var bindGroupIDs atomic.Uint64

// BindGroup is a set of resources bound together at one group index, shaped by a BindGroupFormat.
//
// Setters mark the group dirty only when the bound object changes identity, or when a texture's
// contents changed after the group last updated. Update rebuilds the backend object only if dirty.
type BindGroup struct {
	id     uint64
	device Device
	format *BindGroupFormat
	impl   BindGroupImpl

	uniformBuffers  []*UniformBuffer
	textures        []*Texture
	storageTextures []*Texture
	storageBuffers  []*StorageBuffer

	defaultUniformBuffer *UniformBuffer
	renderVersionUpdated uint64
	dirty                bool
	destroyed            bool
}

// NewBindGroup creates a bind group for format.
//
// Parameters:
//   - device: the owning device
//   - format: the binding layout
//   - defaultUniformBuffer: optional buffer bound to the default uniform slot (may be nil)
//
// Returns:
//   - *BindGroup: the group, initially dirty
func NewBindGroup(device Device, format *BindGroupFormat, defaultUniformBuffer *UniformBuffer) *BindGroup {
	bg := &BindGroup{
		id:              bindGroupIDs.Add(1),
		device:          device,
		format:          format,
		uniformBuffers:  make([]*UniformBuffer, len(format.UniformBuffers())),
		textures:        make([]*Texture, len(format.Textures())),
		storageTextures: make([]*Texture, len(format.StorageTextures())),
		storageBuffers:  make([]*StorageBuffer, len(format.StorageBuffers())),
		dirty:           true,
	}
	if defaultUniformBuffer != nil {
		bg.defaultUniformBuffer = defaultUniformBuffer
		name := DefaultUniformBufferName
		if format.UniformBufferIndex(name) < 0 && len(format.UniformBuffers()) > 0 {
			name = format.UniformBuffers()[0].Name
		}
		bg.SetUniformBuffer(name, defaultUniformBuffer)
	}
	bg.impl = device.CreateBindGroupImpl(bg)
	return bg
}

func (bg *BindGroup) ID() uint64                           { return bg.id }
func (bg *BindGroup) Format() *BindGroupFormat             { return bg.format }
func (bg *BindGroup) Impl() BindGroupImpl                  { return bg.impl }
func (bg *BindGroup) DefaultUniformBuffer() *UniformBuffer { return bg.defaultUniformBuffer }
func (bg *BindGroup) UniformBuffers() []*UniformBuffer     { return bg.uniformBuffers }
func (bg *BindGroup) Textures() []*Texture                 { return bg.textures }
func (bg *BindGroup) StorageTextures() []*Texture          { return bg.storageTextures }
func (bg *BindGroup) StorageBuffers() []*StorageBuffer     { return bg.storageBuffers }
func (bg *BindGroup) Dirty() bool                          { return bg.dirty }
func (bg *BindGroup) Destroyed() bool                      { return bg.destroyed }

// RenderVersionUpdated returns the device render version at the last Update.
func (bg *BindGroup) RenderVersionUpdated() uint64 { return bg.renderVersionUpdated }

// SetUniformBuffer binds ub to the named uniform buffer slot.
func (bg *BindGroup) SetUniformBuffer(name string, ub *UniformBuffer) {
	i := bg.format.UniformBufferIndex(name)
	if i < 0 {
		logger.Logger().Warn("uniform buffer not declared in bind group format", "name", name, "format", bg.format.ID())
		return
	}
	if bg.uniformBuffers[i] != ub {
		bg.uniformBuffers[i] = ub
		bg.dirty = true
	}
}

// SetTexture binds t to the named texture slot. Rebinding the same texture marks the group dirty
// when its contents changed after the group's last Update.
func (bg *BindGroup) SetTexture(name string, t *Texture) {
	i := bg.format.TextureIndex(name)
	if i < 0 {
		logger.Logger().Warn("texture not declared in bind group format", "name", name, "format", bg.format.ID())
		return
	}
	if bg.textures[i] != t {
		bg.textures[i] = t
		bg.dirty = true
	} else if t != nil && bg.renderVersionUpdated < t.RenderVersionDirty() {
		bg.dirty = true
	}
}

// SetStorageTexture binds t to the named storage texture slot.
func (bg *BindGroup) SetStorageTexture(name string, t *Texture) {
	i := bg.format.StorageTextureIndex(name)
	if i < 0 {
		logger.Logger().Warn("storage texture not declared in bind group format", "name", name, "format", bg.format.ID())
		return
	}
	if bg.storageTextures[i] != t {
		bg.storageTextures[i] = t
		bg.dirty = true
	} else if t != nil && bg.renderVersionUpdated < t.RenderVersionDirty() {
		bg.dirty = true
	}
}

// SetStorageBuffer binds sb to the named storage buffer slot.
func (bg *BindGroup) SetStorageBuffer(name string, sb *StorageBuffer) {
	i := bg.format.StorageBufferIndex(name)
	if i < 0 {
		logger.Logger().Warn("storage buffer not declared in bind group format", "name", name, "format", bg.format.ID())
		return
	}
	if bg.storageBuffers[i] != sb {
		bg.storageBuffers[i] = sb
		bg.dirty = true
	}
}

// Update pulls textures published in the device scope, advances the render-version watermark and
// rebuilds the backend object when anything changed.
func (bg *BindGroup) Update() {
	if bg.destroyed {
		return
	}
	for _, tf := range bg.format.Textures() {
		if tf.scopeID == nil {
			continue
		}
		if t, ok := tf.scopeID.Value().(*Texture); ok && t != nil {
			bg.SetTexture(tf.Name, t)
		}
	}
	bg.renderVersionUpdated = bg.device.RenderVersion()
	if bg.dirty {
		bg.dirty = false
		bg.impl.Update(bg)
	}
}

// Destroy releases the backend object. The default uniform buffer is not destroyed.
func (bg *BindGroup) Destroy() {
	if !logger.Assert(!bg.destroyed, "bind group destroyed twice", "id", bg.id) {
		return
	}
	bg.impl.Destroy()
	bg.destroyed = true
}

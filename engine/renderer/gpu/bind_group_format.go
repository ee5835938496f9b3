package gpu

import (
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

var bindGroupFormatIDs atomic.Uint64

// BindUniformBufferFormat declares a uniform buffer binding.
type BindUniformBufferFormat struct {
	Name       string
	Visibility gputypes.ShaderStage
	Slot       int
}

// BindTextureFormat declares a sampled texture binding. A texture with a sampler takes two
// consecutive slots: the texture, then its sampler.
type BindTextureFormat struct {
	Name       string
	Visibility gputypes.ShaderStage
	Dimension  gputypes.TextureViewDimension
	SampleType gputypes.TextureSampleType
	HasSampler bool
	Slot       int

	scopeID *ScopeID
}

// ScopeID returns the scope slot used to fetch the bound texture by name.
func (f *BindTextureFormat) ScopeID() *ScopeID { return f.scopeID }

// BindStorageTextureFormat declares a storage texture binding.
type BindStorageTextureFormat struct {
	Name       string
	Visibility gputypes.ShaderStage
	Format     gputypes.TextureFormat
	Dimension  gputypes.TextureViewDimension
	Access     gputypes.StorageTextureAccess
	Slot       int
}

// BindStorageBufferFormat declares a storage buffer binding.
type BindStorageBufferFormat struct {
	Name       string
	Visibility gputypes.ShaderStage
	ReadOnly   bool
	Slot       int
}

// BindGroupFormat is the ordered, typed list of bindings of a bind group.
//
// Slots are assigned in a fixed order: uniform buffers, then textures (with their samplers),
// then storage textures, then storage buffers.
type BindGroupFormat struct {
	id uint64

	uniformBuffers  []*BindUniformBufferFormat
	textures        []*BindTextureFormat
	storageTextures []*BindStorageTextureFormat
	storageBuffers  []*BindStorageBufferFormat

	uniformBufferIndex  map[string]int
	textureIndex        map[string]int
	storageTextureIndex map[string]int
	storageBufferIndex  map[string]int

	numSlots int
}

// BindGroupFormatBuilderOption is a functional option for NewBindGroupFormat.
type BindGroupFormatBuilderOption func(*BindGroupFormat)

// WithUniformBuffer appends a uniform buffer binding.
func WithUniformBuffer(name string, visibility gputypes.ShaderStage) BindGroupFormatBuilderOption {
	return func(f *BindGroupFormat) {
		f.uniformBuffers = append(f.uniformBuffers, &BindUniformBufferFormat{Name: name, Visibility: visibility})
	}
}

// WithTexture appends a sampled texture binding.
func WithTexture(name string, visibility gputypes.ShaderStage, dim gputypes.TextureViewDimension,
	sampleType gputypes.TextureSampleType, hasSampler bool) BindGroupFormatBuilderOption {
	return func(f *BindGroupFormat) {
		f.textures = append(f.textures, &BindTextureFormat{
			Name:       name,
			Visibility: visibility,
			Dimension:  dim,
			SampleType: sampleType,
			HasSampler: hasSampler,
		})
	}
}

// WithStorageTexture appends a storage texture binding.
func WithStorageTexture(name string, visibility gputypes.ShaderStage, format gputypes.TextureFormat,
	dim gputypes.TextureViewDimension, access gputypes.StorageTextureAccess) BindGroupFormatBuilderOption {
	return func(f *BindGroupFormat) {
		f.storageTextures = append(f.storageTextures, &BindStorageTextureFormat{
			Name:       name,
			Visibility: visibility,
			Format:     format,
			Dimension:  dim,
			Access:     access,
		})
	}
}

// WithStorageBuffer appends a storage buffer binding.
func WithStorageBuffer(name string, visibility gputypes.ShaderStage, readOnly bool) BindGroupFormatBuilderOption {
	return func(f *BindGroupFormat) {
		f.storageBuffers = append(f.storageBuffers, &BindStorageBufferFormat{Name: name, Visibility: visibility, ReadOnly: readOnly})
	}
}

// NewBindGroupFormat builds a format from the options, assigns slots and resolves texture names in
// the device scope.
//
// Parameters:
//   - device: the device whose scope provides textures by name (may be nil)
//   - options: the bindings, in declaration order within each kind
//
// Returns:
//   - *BindGroupFormat: the format with a process-unique id
func NewBindGroupFormat(device Device, options ...BindGroupFormatBuilderOption) *BindGroupFormat {
	f := &BindGroupFormat{
		id:                  bindGroupFormatIDs.Add(1),
		uniformBufferIndex:  make(map[string]int),
		textureIndex:        make(map[string]int),
		storageTextureIndex: make(map[string]int),
		storageBufferIndex:  make(map[string]int),
	}
	for _, opt := range options {
		opt(f)
	}

	slot := 0
	for i, u := range f.uniformBuffers {
		f.uniformBufferIndex[u.Name] = i
		u.Slot = slot
		slot++
	}
	for i, t := range f.textures {
		f.textureIndex[t.Name] = i
		t.Slot = slot
		slot++
		if t.HasSampler {
			slot++
		}
		if device != nil {
			t.scopeID = device.Scope().Resolve(t.Name)
		}
	}
	for i, t := range f.storageTextures {
		f.storageTextureIndex[t.Name] = i
		t.Slot = slot
		slot++
	}
	for i, b := range f.storageBuffers {
		f.storageBufferIndex[b.Name] = i
		b.Slot = slot
		slot++
	}
	f.numSlots = slot
	return f
}

// ID returns the process-unique id of the format.
func (f *BindGroupFormat) ID() uint64 { return f.id }

// NumSlots returns the number of binding slots used, samplers included.
func (f *BindGroupFormat) NumSlots() int { return f.numSlots }

func (f *BindGroupFormat) UniformBuffers() []*BindUniformBufferFormat   { return f.uniformBuffers }
func (f *BindGroupFormat) Textures() []*BindTextureFormat               { return f.textures }
func (f *BindGroupFormat) StorageTextures() []*BindStorageTextureFormat { return f.storageTextures }
func (f *BindGroupFormat) StorageBuffers() []*BindStorageBufferFormat   { return f.storageBuffers }

// UniformBufferIndex returns the index of the named uniform buffer, or -1.
func (f *BindGroupFormat) UniformBufferIndex(name string) int { return lookupIndex(f.uniformBufferIndex, name) }

// TextureIndex returns the index of the named texture, or -1.
func (f *BindGroupFormat) TextureIndex(name string) int { return lookupIndex(f.textureIndex, name) }

// StorageTextureIndex returns the index of the named storage texture, or -1.
func (f *BindGroupFormat) StorageTextureIndex(name string) int {
	return lookupIndex(f.storageTextureIndex, name)
}

// StorageBufferIndex returns the index of the named storage buffer, or -1.
func (f *BindGroupFormat) StorageBufferIndex(name string) int {
	return lookupIndex(f.storageBufferIndex, name)
}

// GetUniformBuffer returns the named uniform buffer binding, or nil.
func (f *BindGroupFormat) GetUniformBuffer(name string) *BindUniformBufferFormat {
	if i := f.UniformBufferIndex(name); i >= 0 {
		return f.uniformBuffers[i]
	}
	return nil
}

// GetTexture returns the named texture binding, or nil.
func (f *BindGroupFormat) GetTexture(name string) *BindTextureFormat {
	if i := f.TextureIndex(name); i >= 0 {
		return f.textures[i]
	}
	return nil
}

// GetStorageTexture returns the named storage texture binding, or nil.
func (f *BindGroupFormat) GetStorageTexture(name string) *BindStorageTextureFormat {
	if i := f.StorageTextureIndex(name); i >= 0 {
		return f.storageTextures[i]
	}
	return nil
}

// GetStorageBuffer returns the named storage buffer binding, or nil.
func (f *BindGroupFormat) GetStorageBuffer(name string) *BindStorageBufferFormat {
	if i := f.StorageBufferIndex(name); i >= 0 {
		return f.storageBuffers[i]
	}
	return nil
}

func lookupIndex(m map[string]int, name string) int {
	if i, ok := m[name]; ok {
		return i
	}
	return -1
}

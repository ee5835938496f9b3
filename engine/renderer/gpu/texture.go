package gpu

import (
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/gogpu/gputypes"
)

// Texture is a 2D or cube texture with its sampler settings.
//
// RenderVersionDirty records the device render version of the last content change; bind groups
// compare it against their own watermark to notice re-uploads of an already bound texture.
type Texture struct {
	device Device
	impl   TextureImpl

	name    string
	width   int
	height  int
	format  gputypes.TextureFormat
	usage   gputypes.TextureUsage
	cubemap bool
	pixels  []byte

	addressMode gputypes.AddressMode
	filter      gputypes.FilterMode
	compare     gputypes.CompareFunction

	renderVersionDirty uint64
	destroyed          bool
}

// TextureBuilderOption is a functional option for NewTexture.
type TextureBuilderOption func(*Texture)

// WithTextureName sets the debug name.
func WithTextureName(name string) TextureBuilderOption {
	return func(t *Texture) { t.name = name }
}

// WithTextureSize sets the texture size in texels.
func WithTextureSize(width, height int) TextureBuilderOption {
	return func(t *Texture) {
		t.width = width
		t.height = height
	}
}

// WithTextureFormat sets the texel format.
func WithTextureFormat(format gputypes.TextureFormat) TextureBuilderOption {
	return func(t *Texture) { t.format = format }
}

// WithTextureUsage replaces the usage flags.
func WithTextureUsage(usage gputypes.TextureUsage) TextureBuilderOption {
	return func(t *Texture) { t.usage = usage }
}

// WithCubemap makes the texture a six-face cube.
func WithCubemap() TextureBuilderOption {
	return func(t *Texture) { t.cubemap = true }
}

// WithTextureFilter sets the min/mag filter of the texture's sampler.
func WithTextureFilter(filter gputypes.FilterMode) TextureBuilderOption {
	return func(t *Texture) { t.filter = filter }
}

// WithTextureAddressMode sets the address mode on all axes of the texture's sampler.
func WithTextureAddressMode(mode gputypes.AddressMode) TextureBuilderOption {
	return func(t *Texture) { t.addressMode = mode }
}

// WithTextureCompare makes the sampler a comparison sampler (hardware shadow lookups).
func WithTextureCompare(fn gputypes.CompareFunction) TextureBuilderOption {
	return func(t *Texture) { t.compare = fn }
}

// WithTexturePixels sets the initial CPU-side texel data uploaded at creation.
func WithTexturePixels(pixels []byte) TextureBuilderOption {
	return func(t *Texture) { t.pixels = pixels }
}

// NewTexture creates a texture and its backend storage. Initial pixels, if any, are uploaded.
//
// Parameters:
//   - device: the owning device
//   - options: functional options applied after the defaults
//
// Returns:
//   - *Texture: the texture
func NewTexture(device Device, options ...TextureBuilderOption) *Texture {
	t := &Texture{
		device:      device,
		name:        "Texture",
		width:       4,
		height:      4,
		format:      gputypes.TextureFormatRGBA8Unorm,
		usage:       gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		addressMode: gputypes.AddressModeClampToEdge,
		filter:      gputypes.FilterModeLinear,
	}
	for _, opt := range options {
		opt(t)
	}
	t.impl = device.CreateTextureImpl(t)
	if t.pixels != nil {
		t.Upload()
	}
	return t
}

func (t *Texture) Name() string                      { return t.name }
func (t *Texture) Width() int                        { return t.width }
func (t *Texture) Height() int                       { return t.height }
func (t *Texture) Format() gputypes.TextureFormat    { return t.format }
func (t *Texture) Usage() gputypes.TextureUsage      { return t.usage }
func (t *Texture) Cubemap() bool                     { return t.cubemap }
func (t *Texture) Pixels() []byte                    { return t.pixels }
func (t *Texture) AddressMode() gputypes.AddressMode { return t.addressMode }
func (t *Texture) Filter() gputypes.FilterMode       { return t.filter }
func (t *Texture) Compare() gputypes.CompareFunction { return t.compare }
func (t *Texture) Impl() TextureImpl                 { return t.impl }
func (t *Texture) Destroyed() bool                   { return t.destroyed }

// Layers returns 6 for cube textures and 1 otherwise.
func (t *Texture) Layers() int {
	if t.cubemap {
		return 6
	}
	return 1
}

// IsDepth reports whether the format has a depth aspect.
func (t *Texture) IsDepth() bool {
	return t.format.HasDepth()
}

// RenderVersionDirty returns the render version of the last content change.
func (t *Texture) RenderVersionDirty() uint64 { return t.renderVersionDirty }

// SetPixels replaces the CPU-side data. Call Upload to push it.
func (t *Texture) SetPixels(pixels []byte) {
	t.pixels = pixels
}

// Upload pushes the CPU-side data (or marks GPU-written content as changed when there is none)
// and stamps the texture with the current render version.
func (t *Texture) Upload() {
	if t.destroyed {
		return
	}
	t.impl.Upload(t)
	t.renderVersionDirty = t.device.RenderVersion()
}

// MarkDirty stamps the texture as changed without uploading, used for render-target contents.
func (t *Texture) MarkDirty() {
	t.renderVersionDirty = t.device.RenderVersion()
}

// Resize reallocates the texture at a new size. Existing contents are discarded.
func (t *Texture) Resize(width, height int) {
	if t.destroyed || (t.width == width && t.height == height) {
		return
	}
	t.impl.Destroy()
	t.width = width
	t.height = height
	t.pixels = nil
	t.impl = t.device.CreateTextureImpl(t)
	t.renderVersionDirty = t.device.RenderVersion()
}

// Destroy releases the backend storage. A second call is a logged no-op.
func (t *Texture) Destroy() {
	if !logger.Assert(!t.destroyed, "texture destroyed twice", "texture", t.name) {
		return
	}
	t.impl.Destroy()
	t.destroyed = true
}

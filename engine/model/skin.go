package model

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// Skin is the bind pose of a skinned mesh: one inverse bind matrix per bone, and the bone names
// used to resolve bones in a node hierarchy.
type Skin struct {
	inverseBindMatrices []mgl32.Mat4
	boneNames           []string
}

// NewSkin creates a skin. Both slices must have one entry per bone.
func NewSkin(inverseBindMatrices []mgl32.Mat4, boneNames []string) *Skin {
	logger.Assert(len(inverseBindMatrices) == len(boneNames), "skin bone count mismatch",
		"matrices", len(inverseBindMatrices), "names", len(boneNames))
	return &Skin{inverseBindMatrices: inverseBindMatrices, boneNames: boneNames}
}

func (s *Skin) NumBones() int                         { return len(s.inverseBindMatrices) }
func (s *Skin) BoneNames() []string                   { return s.boneNames }
func (s *Skin) InverseBindMatrix(bone int) mgl32.Mat4 { return s.inverseBindMatrices[bone] }

// SkinInstance binds a Skin to the bone nodes of one hierarchy. Several mesh instances may share
// one SkinInstance; its matrices are recomputed at most once per update generation.
type SkinInstance struct {
	skin  *Skin
	bones []graph.GraphNode

	// matrices are the skin matrices in the space of the skinned node:
	// inverse(root world) * bone world * inverse bind.
	matrices    []mgl32.Mat4
	palette     []float32
	boneTexture *gpu.Texture

	skinUpdateIndex uint64
	updated         bool
	dirty           bool
	destroyed       bool
}

// SkinInstanceBuilderOption is a functional option for NewSkinInstance.
type SkinInstanceBuilderOption func(*SkinInstance)

// WithBones sets the bone nodes directly, one per skin bone.
func WithBones(bones []graph.GraphNode) SkinInstanceBuilderOption {
	return func(si *SkinInstance) { si.bones = bones }
}

// WithBoneRoot resolves the bones by name below root.
func WithBoneRoot(root graph.GraphNode) SkinInstanceBuilderOption {
	return func(si *SkinInstance) { si.ResolveBones(root) }
}

// NewSkinInstance creates the instance and its bone palette texture.
//
// Parameters:
//   - device: the device owning the bone texture
//   - skin: the skin
//   - options: functional options
//
// Returns:
//   - *SkinInstance: the instance
func NewSkinInstance(device gpu.Device, skin *Skin, options ...SkinInstanceBuilderOption) *SkinInstance {
	n := skin.NumBones()
	si := &SkinInstance{
		skin:     skin,
		matrices: make([]mgl32.Mat4, n),
		palette:  make([]float32, 16*n),
	}
	for i := range si.matrices {
		si.matrices[i] = mgl32.Ident4()
	}
	for _, opt := range options {
		opt(si)
	}
	// four RGBA32F texels per bone
	si.boneTexture = gpu.NewTexture(device,
		gpu.WithTextureName("BoneTexture"),
		gpu.WithTextureSize(max(4*n, 4), 1),
		gpu.WithTextureFormat(gputypes.TextureFormatRGBA32Float),
		gpu.WithTextureFilter(gputypes.FilterModeNearest),
	)
	return si
}

func (si *SkinInstance) Skin() *Skin               { return si.skin }
func (si *SkinInstance) Bones() []graph.GraphNode  { return si.bones }
func (si *SkinInstance) Matrices() []mgl32.Mat4    { return si.matrices }
func (si *SkinInstance) BoneTexture() *gpu.Texture { return si.boneTexture }
func (si *SkinInstance) Dirty() bool               { return si.dirty }
func (si *SkinInstance) SkinUpdateIndex() uint64   { return si.skinUpdateIndex }

// ResolveBones looks up every bone name below root. Missing bones are logged and left nil.
func (si *SkinInstance) ResolveBones(root graph.GraphNode) {
	si.bones = make([]graph.GraphNode, si.skin.NumBones())
	for i, name := range si.skin.boneNames {
		si.bones[i] = root.FindByName(name)
		if si.bones[i] == nil {
			logger.Logger().Warn("skin bone not found", "bone", name)
		}
	}
}

// UpdateMatrices recomputes the skin matrices relative to rootNode. Calls with a generation that
// was already processed do nothing, so a skin shared by several instances updates once per frame.
//
// Parameters:
//   - rootNode: the node of the skinned mesh instance, or nil for world space
//   - generation: the caller's monotonic update counter
//
// Returns:
//   - bool: true if the matrices were recomputed
func (si *SkinInstance) UpdateMatrices(rootNode graph.GraphNode, generation uint64) bool {
	if si.updated && si.skinUpdateIndex == generation {
		return false
	}
	si.skinUpdateIndex = generation
	si.updated = true

	invRoot := mgl32.Ident4()
	if rootNode != nil {
		invRoot = rootNode.WorldTransform().Inv()
	}
	for i := range si.matrices {
		if i >= len(si.bones) || si.bones[i] == nil {
			continue
		}
		si.matrices[i] = invRoot.Mul4(si.bones[i].WorldTransform()).Mul4(si.skin.inverseBindMatrices[i])
	}
	si.dirty = true
	return true
}

// UpdateMatrixPalette packs the skin matrices and uploads them into the bone texture.
func (si *SkinInstance) UpdateMatrixPalette() {
	if si.destroyed || !si.dirty {
		return
	}
	for i, m := range si.matrices {
		copy(si.palette[16*i:16*i+16], m[:])
	}
	si.boneTexture.SetPixels(common.SliceToBytes(si.palette))
	si.boneTexture.Upload()
	si.dirty = false
}

// Destroy releases the bone texture.
func (si *SkinInstance) Destroy() {
	if !logger.Assert(!si.destroyed, "skin instance destroyed twice") {
		return
	}
	si.boneTexture.Destroy()
	si.destroyed = true
}

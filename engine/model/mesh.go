// Package model holds the geometry shared between mesh instances: meshes with their buffers and
// bounds, skins with their bone palettes, and morph targets.
package model

import (
	"slices"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// RenderStyle selects which index buffer and primitive of a mesh is drawn.
type RenderStyle int

const (
	RenderStyleSolid RenderStyle = iota
	RenderStyleWireframe
	RenderStylePoints

	numRenderStyles
)

var meshIDs atomic.Uint64

// Mesh is geometry shared by any number of mesh instances. Instances hold a reference through
// IncRefCount; the mesh may only be destroyed once the count drops to zero.
type Mesh struct {
	id   uint64
	name string

	vertexBuffer *gpu.VertexBuffer
	indexBuffers [numRenderStyles]*gpu.IndexBuffer
	primitives   [numRenderStyles]gpu.Primitive

	aabb    common.BoundingBox
	aabbVer uint64

	skin      *Skin
	boneAabbs []common.BoundingBox
	boneUsed  []bool
	// set once the bone bounds could not be read back from the vertex buffer
	noBoneData bool
	morph      *Morph

	refCount  int
	destroyed bool
}

// MeshBuilderOption is a functional option for NewMesh.
type MeshBuilderOption func(*Mesh)

// WithMeshName sets the debug name.
func WithMeshName(name string) MeshBuilderOption {
	return func(m *Mesh) { m.name = name }
}

// WithVertexBuffer sets the vertex buffer.
func WithVertexBuffer(vb *gpu.VertexBuffer) MeshBuilderOption {
	return func(m *Mesh) { m.vertexBuffer = vb }
}

// WithIndexBuffer sets the index buffer drawn for style.
func WithIndexBuffer(style RenderStyle, ib *gpu.IndexBuffer) MeshBuilderOption {
	return func(m *Mesh) { m.indexBuffers[style] = ib }
}

// WithPrimitive sets the draw range used for style.
func WithPrimitive(style RenderStyle, p gpu.Primitive) MeshBuilderOption {
	return func(m *Mesh) { m.primitives[style] = p }
}

// WithAabb sets the local-space bounds.
func WithAabb(aabb common.BoundingBox) MeshBuilderOption {
	return func(m *Mesh) { m.aabb = aabb }
}

// WithSkin attaches skinning data.
func WithSkin(skin *Skin) MeshBuilderOption {
	return func(m *Mesh) { m.skin = skin }
}

// WithMorph attaches morph targets.
func WithMorph(morph *Morph) MeshBuilderOption {
	return func(m *Mesh) { m.morph = morph }
}

// NewMesh creates a mesh from prebuilt buffers.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Mesh: the mesh, with a reference count of zero
func NewMesh(options ...MeshBuilderOption) *Mesh {
	m := &Mesh{id: meshIDs.Add(1), name: "Mesh", aabbVer: 1}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// NewMeshFromVertices uploads triangle-list geometry and derives the bounds from the vertex
// positions. When skin is non-nil the skinned vertex layout is used and per-bone bounds are
// computed.
//
// Parameters:
//   - device: the device owning the buffers
//   - vertices: the vertex data
//   - indices: triangle indices, or nil for a non-indexed mesh
//   - skin: the skin, or nil
//   - options: additional functional options
//
// Returns:
//   - *Mesh: the mesh
func NewMeshFromVertices(device gpu.Device, vertices []GPUSkinnedVertex, indices []uint32, skin *Skin, options ...MeshBuilderOption) *Mesh {
	skinned := skin != nil
	format := staticVertexFormat
	if skinned {
		format = skinnedVertexFormat
	}
	vb := gpu.NewVertexBuffer(device, format, len(vertices), marshalVertices(vertices, skinned))

	positions := make([]mgl32.Vec3, len(vertices))
	var aabb common.BoundingBox
	for i := range vertices {
		positions[i] = mgl32.Vec3(vertices[i].Position)
		if i == 0 {
			aabb = common.BoundingBox{Center: positions[0]}
			continue
		}
		aabb.AddPoint(positions[i])
	}

	opts := []MeshBuilderOption{WithVertexBuffer(vb), WithAabb(aabb), WithSkin(skin)}
	if indices != nil {
		ib := gpu.NewIndexBuffer(device, gputypes.IndexFormatUint32, len(indices), marshalIndices(indices))
		opts = append(opts,
			WithIndexBuffer(RenderStyleSolid, ib),
			WithPrimitive(RenderStyleSolid, gpu.Primitive{Topology: gputypes.PrimitiveTopologyTriangleList, Count: len(indices), Indexed: true}),
		)
	} else {
		opts = append(opts, WithPrimitive(RenderStyleSolid, gpu.Primitive{Topology: gputypes.PrimitiveTopologyTriangleList, Count: len(vertices)}))
	}
	m := NewMesh(append(opts, options...)...)

	if skinned {
		boneIndices := make([][4]uint32, len(vertices))
		boneWeights := make([][4]float32, len(vertices))
		for i := range vertices {
			boneIndices[i] = vertices[i].BoneIndices
			boneWeights[i] = vertices[i].BoneWeights
		}
		m.ComputeBoneAabbs(positions, boneIndices, boneWeights)
	}
	return m
}

func (m *Mesh) ID() uint64                      { return m.id }
func (m *Mesh) Name() string                    { return m.name }
func (m *Mesh) VertexBuffer() *gpu.VertexBuffer { return m.vertexBuffer }
func (m *Mesh) Skin() *Skin                     { return m.skin }
func (m *Mesh) Morph() *Morph                   { return m.morph }
func (m *Mesh) Aabb() common.BoundingBox        { return m.aabb }
func (m *Mesh) AabbVer() uint64                 { return m.aabbVer }
func (m *Mesh) BoneAabbs() []common.BoundingBox { return m.boneAabbs }
func (m *Mesh) BoneUsed() []bool                { return m.boneUsed }
func (m *Mesh) RefCount() int                   { return m.refCount }
func (m *Mesh) Destroyed() bool                 { return m.destroyed }

// IndexBuffer returns the index buffer for style, or nil for non-indexed styles.
func (m *Mesh) IndexBuffer(style RenderStyle) *gpu.IndexBuffer {
	if style < 0 || style >= numRenderStyles {
		return nil
	}
	return m.indexBuffers[style]
}

// Primitive returns the draw range for style.
func (m *Mesh) Primitive(style RenderStyle) gpu.Primitive {
	if style < 0 || style >= numRenderStyles {
		return gpu.Primitive{}
	}
	return m.primitives[style]
}

// SetAabb replaces the local bounds and bumps the bounds version.
func (m *Mesh) SetAabb(aabb common.BoundingBox) {
	m.aabb = aabb
	m.aabbVer++
}

// SetMorph replaces the morph targets and bumps the bounds version.
func (m *Mesh) SetMorph(morph *Morph) {
	m.morph = morph
	m.aabbVer++
}

// ComputeBoneAabbs computes per-bone bounds in bone space from the bind-pose vertices. A bone
// is marked used when at least one vertex carries a non-zero weight for it. Requires a skin.
//
// Parameters:
//   - positions: bind-pose vertex positions
//   - boneIndices: the four bone indices of each vertex
//   - boneWeights: the four weights of each vertex
func (m *Mesh) ComputeBoneAabbs(positions []mgl32.Vec3, boneIndices [][4]uint32, boneWeights [][4]float32) {
	if !logger.Assert(m.skin != nil, "bone bounds require a skin", "mesh", m.name) {
		return
	}
	numBones := m.skin.NumBones()
	mins := make([]mgl32.Vec3, numBones)
	maxs := make([]mgl32.Vec3, numBones)
	inf := math32.Inf(1)
	for i := range mins {
		mins[i] = mgl32.Vec3{inf, inf, inf}
		maxs[i] = mgl32.Vec3{-inf, -inf, -inf}
	}
	m.boneUsed = make([]bool, numBones)

	for v, p := range positions {
		for j := 0; j < 4; j++ {
			if boneWeights[v][j] <= 0 {
				continue
			}
			bone := int(boneIndices[v][j])
			if bone >= numBones {
				continue
			}
			local := common.TransformPoint(m.skin.InverseBindMatrix(bone), p)
			for k := 0; k < 3; k++ {
				mins[bone][k] = math32.Min(mins[bone][k], local[k])
				maxs[bone][k] = math32.Max(maxs[bone][k], local[k])
			}
			m.boneUsed[bone] = true
		}
	}

	m.boneAabbs = make([]common.BoundingBox, numBones)
	for i := range m.boneAabbs {
		if m.boneUsed[i] {
			m.boneAabbs[i].SetMinMax(mins[i], maxs[i])
		}
	}
}

// EnsureBoneAabbs computes the per-bone bounds from the CPU copy of the skinned vertex buffer
// when they are missing. A mesh whose buffer cannot be read back keeps no bone bounds and logs
// once.
//
// Returns:
//   - bool: true when bone bounds are available
func (m *Mesh) EnsureBoneAabbs() bool {
	if m.boneAabbs != nil {
		return true
	}
	if m.skin == nil || m.noBoneData {
		return false
	}
	if m.vertexBuffer != nil {
		if positions, indices, weights, ok := unmarshalSkinData(m.vertexBuffer); ok {
			m.ComputeBoneAabbs(positions, indices, weights)
			return true
		}
	}
	m.noBoneData = true
	logger.Logger().Warn("skinned mesh has no readable bone data, bounds follow the node", "mesh", m.name)
	return false
}

// IncRefCount adds a reference.
func (m *Mesh) IncRefCount() { m.refCount++ }

// DecRefCount drops a reference.
func (m *Mesh) DecRefCount() {
	if !logger.Assert(m.refCount > 0, "mesh reference count underflow", "mesh", m.name) {
		return
	}
	m.refCount--
}

// Destroy releases the buffers. It is a logged no-op while references remain or when the mesh
// was already destroyed.
func (m *Mesh) Destroy() {
	if !logger.Assert(!m.destroyed, "mesh destroyed twice", "mesh", m.name) {
		return
	}
	if !logger.Assert(m.refCount == 0, "mesh destroyed while referenced", "mesh", m.name, "refs", m.refCount) {
		return
	}
	if m.vertexBuffer != nil {
		m.vertexBuffer.Destroy()
	}
	for i, ib := range m.indexBuffers {
		if ib != nil && !slices.Contains(m.indexBuffers[:i], ib) {
			ib.Destroy()
		}
	}
	if m.morph != nil {
		m.morph.Destroy()
	}
	m.destroyed = true
}

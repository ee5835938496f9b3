package model

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// GPUVertex is the interleaved layout of a static mesh vertex.
// Size: 64 bytes (position, normal, uv, color, tangent).
type GPUVertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
	Color    [4]float32
	Tangent  [4]float32
}

// GPUSkinnedVertex extends GPUVertex with four bone influences.
// Size: 96 bytes.
type GPUSkinnedVertex struct {
	GPUVertex
	BoneIndices [4]uint32
	BoneWeights [4]float32
}

var (
	staticVertexFormat = gpu.NewVertexFormat(false,
		gpu.VertexElement{Name: "position", Format: gputypes.VertexFormatFloat32x3},
		gpu.VertexElement{Name: "normal", Format: gputypes.VertexFormatFloat32x3},
		gpu.VertexElement{Name: "texCoord0", Format: gputypes.VertexFormatFloat32x2},
		gpu.VertexElement{Name: "color", Format: gputypes.VertexFormatFloat32x4},
		gpu.VertexElement{Name: "tangent", Format: gputypes.VertexFormatFloat32x4},
	)

	skinnedVertexFormat = gpu.NewVertexFormat(false,
		gpu.VertexElement{Name: "position", Format: gputypes.VertexFormatFloat32x3},
		gpu.VertexElement{Name: "normal", Format: gputypes.VertexFormatFloat32x3},
		gpu.VertexElement{Name: "texCoord0", Format: gputypes.VertexFormatFloat32x2},
		gpu.VertexElement{Name: "color", Format: gputypes.VertexFormatFloat32x4},
		gpu.VertexElement{Name: "tangent", Format: gputypes.VertexFormatFloat32x4},
		gpu.VertexElement{Name: "blendIndices", Format: gputypes.VertexFormatUint32x4},
		gpu.VertexElement{Name: "blendWeight", Format: gputypes.VertexFormatFloat32x4},
	)
)

// StaticVertexFormat returns the layout matching GPUVertex.
func StaticVertexFormat() *gpu.VertexFormat { return staticVertexFormat }

// SkinnedVertexFormat returns the layout matching GPUSkinnedVertex.
func SkinnedVertexFormat() *gpu.VertexFormat { return skinnedVertexFormat }

type byteWriter struct {
	buf []byte
	off int
}

func (w *byteWriter) floats(v ...float32) {
	for _, f := range v {
		binary.LittleEndian.PutUint32(w.buf[w.off:], math.Float32bits(f))
		w.off += 4
	}
}

func (w *byteWriter) uints(v ...uint32) {
	for _, u := range v {
		binary.LittleEndian.PutUint32(w.buf[w.off:], u)
		w.off += 4
	}
}

func (g *GPUVertex) put(w *byteWriter) {
	w.floats(g.Position[:]...)
	w.floats(g.Normal[:]...)
	w.floats(g.TexCoord[:]...)
	w.floats(g.Color[:]...)
	w.floats(g.Tangent[:]...)
}

// Marshal serializes the vertex for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer
func (g *GPUVertex) Marshal() []byte {
	w := &byteWriter{buf: make([]byte, staticVertexFormat.Stride)}
	g.put(w)
	return w.buf
}

// Marshal serializes the skinned vertex for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer
func (g *GPUSkinnedVertex) Marshal() []byte {
	w := &byteWriter{buf: make([]byte, skinnedVertexFormat.Stride)}
	g.GPUVertex.put(w)
	w.uints(g.BoneIndices[:]...)
	w.floats(g.BoneWeights[:]...)
	return w.buf
}

// marshalVertices packs vertices back to back.
func marshalVertices(vertices []GPUSkinnedVertex, skinned bool) []byte {
	stride := staticVertexFormat.Stride
	if skinned {
		stride = skinnedVertexFormat.Stride
	}
	w := &byteWriter{buf: make([]byte, stride*len(vertices))}
	for i := range vertices {
		vertices[i].GPUVertex.put(w)
		if skinned {
			w.uints(vertices[i].BoneIndices[:]...)
			w.floats(vertices[i].BoneWeights[:]...)
		}
	}
	return w.buf
}

func marshalIndices(indices []uint32) []byte {
	w := &byteWriter{buf: make([]byte, 4*len(indices))}
	w.uints(indices...)
	return w.buf
}

// unmarshalSkinData reads back the positions and bone influences of a skinned vertex buffer.
// It fails when the buffer has no CPU copy or lacks the skinning attributes.
func unmarshalSkinData(vb *gpu.VertexBuffer) ([]mgl32.Vec3, [][4]uint32, [][4]float32, bool) {
	format := vb.Format()
	pos, idx, wgt := format.Element("position"), format.Element("blendIndices"), format.Element("blendWeight")
	n := vb.NumVertices()
	data := vb.Data()
	if pos == nil || idx == nil || wgt == nil || len(data) < n*format.Stride {
		return nil, nil, nil, false
	}

	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(data[off:])) }
	positions := make([]mgl32.Vec3, n)
	indices := make([][4]uint32, n)
	weights := make([][4]float32, n)
	for v := range n {
		base := v * format.Stride
		for k := range 3 {
			positions[v][k] = f32(base + pos.Offset + 4*k)
		}
		for k := range 4 {
			indices[v][k] = binary.LittleEndian.Uint32(data[base+idx.Offset+4*k:])
			weights[v][k] = f32(base + wgt.Offset + 4*k)
		}
	}
	return positions, indices, weights, true
}

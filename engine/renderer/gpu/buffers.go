package gpu

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/gogpu/gputypes"
)

// VertexElement is one attribute of a vertex layout.
type VertexElement struct {
	Name     string
	Format   gputypes.VertexFormat
	Location int
	Offset   int
}

// VertexFormat describes the interleaved layout of a vertex buffer.
type VertexFormat struct {
	Elements   []VertexElement
	Stride     int
	Instancing bool
	key        string
}

// NewVertexFormat lays out elements sequentially in the given order, assigning offsets and
// locations.
//
// Parameters:
//   - instancing: true if the buffer advances per instance
//   - elements: the attributes; Offset and Location are overwritten
//
// Returns:
//   - *VertexFormat: the layout
func NewVertexFormat(instancing bool, elements ...VertexElement) *VertexFormat {
	f := &VertexFormat{Instancing: instancing, Elements: make([]VertexElement, len(elements))}
	var sb strings.Builder
	offset := 0
	for i, e := range elements {
		e.Offset = offset
		e.Location = i
		offset += int(e.Format.Size())
		f.Elements[i] = e
		fmt.Fprintf(&sb, "%s:%d;", e.Name, e.Format)
	}
	f.Stride = offset
	if instancing {
		sb.WriteString("inst")
	}
	f.key = sb.String()
	return f
}

// InstanceMatrixLocation is the first shader location of the per-instance model matrix.
const InstanceMatrixLocation = 7

var instanceMatrixFormat = func() *VertexFormat {
	f := NewVertexFormat(true,
		VertexElement{Name: "instance0", Format: gputypes.VertexFormatFloat32x4},
		VertexElement{Name: "instance1", Format: gputypes.VertexFormatFloat32x4},
		VertexElement{Name: "instance2", Format: gputypes.VertexFormatFloat32x4},
		VertexElement{Name: "instance3", Format: gputypes.VertexFormatFloat32x4},
	)
	for i := range f.Elements {
		f.Elements[i].Location += InstanceMatrixLocation
	}
	return f
}()

// InstanceMatrixFormat returns the layout of per-instance model matrix buffers: four vec4
// columns starting at InstanceMatrixLocation.
func InstanceMatrixFormat() *VertexFormat { return instanceMatrixFormat }

// Key returns a string identifying the layout, used in pipeline cache keys.
func (f *VertexFormat) Key() string { return f.key }

// Element returns the attribute with the given name, or nil.
func (f *VertexFormat) Element(name string) *VertexElement {
	for i := range f.Elements {
		if f.Elements[i].Name == name {
			return &f.Elements[i]
		}
	}
	return nil
}

// VertexBuffer holds interleaved vertex data.
type VertexBuffer struct {
	impl        BufferImpl
	format      *VertexFormat
	numVertices int
	data        []byte
	destroyed   bool
}

// NewVertexBuffer creates and uploads a vertex buffer.
//
// Parameters:
//   - device: the owning device
//   - format: the vertex layout
//   - numVertices: the vertex count
//   - data: the initial contents (may be nil)
//
// Returns:
//   - *VertexBuffer: the buffer
func NewVertexBuffer(device Device, format *VertexFormat, numVertices int, data []byte) *VertexBuffer {
	size := max(format.Stride*numVertices, 4)
	vb := &VertexBuffer{
		format:      format,
		numVertices: numVertices,
		impl:        device.CreateBufferImpl("Vertex Buffer", gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst, size),
	}
	if data != nil {
		vb.SetData(data)
	}
	return vb
}

func (vb *VertexBuffer) Format() *VertexFormat { return vb.format }
func (vb *VertexBuffer) NumVertices() int      { return vb.numVertices }
func (vb *VertexBuffer) Data() []byte          { return vb.data }
func (vb *VertexBuffer) Impl() BufferImpl      { return vb.impl }

// SetData replaces and uploads the contents.
func (vb *VertexBuffer) SetData(data []byte) {
	vb.data = data
	vb.impl.Write(data)
}

// Destroy releases the buffer.
func (vb *VertexBuffer) Destroy() {
	if !logger.Assert(!vb.destroyed, "vertex buffer destroyed twice") {
		return
	}
	vb.impl.Destroy()
	vb.destroyed = true
}

// IndexBuffer holds 16 or 32 bit indices.
type IndexBuffer struct {
	impl       BufferImpl
	format     gputypes.IndexFormat
	numIndices int
	data       []byte
	destroyed  bool
}

// NewIndexBuffer creates and uploads an index buffer.
//
// Parameters:
//   - device: the owning device
//   - format: IndexFormatUint16 or IndexFormatUint32
//   - numIndices: the index count
//   - data: the initial contents (may be nil)
//
// Returns:
//   - *IndexBuffer: the buffer
func NewIndexBuffer(device Device, format gputypes.IndexFormat, numIndices int, data []byte) *IndexBuffer {
	size := max(int(format.Size())*numIndices, 4)
	ib := &IndexBuffer{
		format:     format,
		numIndices: numIndices,
		impl:       device.CreateBufferImpl("Index Buffer", gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst, size),
	}
	if data != nil {
		ib.SetData(data)
	}
	return ib
}

func (ib *IndexBuffer) Format() gputypes.IndexFormat { return ib.format }
func (ib *IndexBuffer) NumIndices() int              { return ib.numIndices }
func (ib *IndexBuffer) Data() []byte                 { return ib.data }
func (ib *IndexBuffer) Impl() BufferImpl             { return ib.impl }

// SetData replaces and uploads the contents.
func (ib *IndexBuffer) SetData(data []byte) {
	ib.data = data
	ib.impl.Write(data)
}

// Destroy releases the buffer.
func (ib *IndexBuffer) Destroy() {
	if !logger.Assert(!ib.destroyed, "index buffer destroyed twice") {
		return
	}
	ib.impl.Destroy()
	ib.destroyed = true
}

// StorageBuffer is a read/write buffer bound through a bind group.
type StorageBuffer struct {
	impl      BufferImpl
	label     string
	size      int
	destroyed bool
}

// NewStorageBuffer allocates a storage buffer of size bytes.
func NewStorageBuffer(device Device, label string, size int) *StorageBuffer {
	return &StorageBuffer{
		label: label,
		size:  size,
		impl:  device.CreateBufferImpl(label, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst, size),
	}
}

func (sb *StorageBuffer) Label() string    { return sb.label }
func (sb *StorageBuffer) Size() int        { return sb.size }
func (sb *StorageBuffer) Impl() BufferImpl { return sb.impl }

// Write uploads data at offset 0.
func (sb *StorageBuffer) Write(data []byte) {
	sb.impl.Write(data)
}

// Destroy releases the buffer.
func (sb *StorageBuffer) Destroy() {
	if !logger.Assert(!sb.destroyed, "storage buffer destroyed twice", "buffer", sb.label) {
		return
	}
	sb.impl.Destroy()
	sb.destroyed = true
}

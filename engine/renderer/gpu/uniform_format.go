package gpu

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/go-gl/mathgl/mgl32"
)

// UniformType is the data type of a uniform.
type UniformType int

const (
	UniformTypeFloat UniformType = iota
	UniformTypeVec2
	UniformTypeVec3
	UniformTypeVec4
	UniformTypeInt
	UniformTypeIVec2
	UniformTypeIVec3
	UniformTypeIVec4
	UniformTypeUint
	UniformTypeUVec2
	UniformTypeUVec3
	UniformTypeUVec4
	UniformTypeMat2
	UniformTypeMat3
	UniformTypeMat4
)

type uniformTypeInfo struct {
	name       string
	byteSize   int
	components int
}

// Matrices are stored as columns padded to vec4.
var uniformTypes = map[UniformType]uniformTypeInfo{
	UniformTypeFloat: {"f32", 4, 1},
	UniformTypeVec2:  {"vec2f", 8, 2},
	UniformTypeVec3:  {"vec3f", 12, 3},
	UniformTypeVec4:  {"vec4f", 16, 4},
	UniformTypeInt:   {"i32", 4, 1},
	UniformTypeIVec2: {"vec2i", 8, 2},
	UniformTypeIVec3: {"vec3i", 12, 3},
	UniformTypeIVec4: {"vec4i", 16, 4},
	UniformTypeUint:  {"u32", 4, 1},
	UniformTypeUVec2: {"vec2u", 8, 2},
	UniformTypeUVec3: {"vec3u", 12, 3},
	UniformTypeUVec4: {"vec4u", 16, 4},
	UniformTypeMat2:  {"mat2x2f", 32, 8},
	UniformTypeMat3:  {"mat3x3f", 48, 12},
	UniformTypeMat4:  {"mat4x4f", 64, 16},
}

// String returns the WGSL spelling of the type.
func (t UniformType) String() string {
	return uniformTypes[t].name
}

// ByteSize returns the size of one element of the type.
func (t UniformType) ByteSize() int {
	return uniformTypes[t].byteSize
}

func (t UniformType) isInteger() bool {
	return t >= UniformTypeInt && t <= UniformTypeUVec4
}

func (t UniformType) isMatrix() bool {
	return t >= UniformTypeMat2
}

// UniformFormat is one named field of a uniform buffer.
//
// Offsets follow the vec4 packing rules: fields of up to 8 bytes align to their own size, larger
// fields align to 16, and arrays always start on 16 with a 16-byte element stride.
type UniformFormat struct {
	Name     string
	Type     UniformType
	Count    int
	Offset   int
	ByteSize int

	scopeID *ScopeID
}

// NewUniformFormat describes a uniform. count 0 declares a scalar field, count > 0 an array.
//
// Parameters:
//   - name: the uniform name used for scope lookups
//   - t: the element type
//   - count: the array length, or 0
//
// Returns:
//   - *UniformFormat: the field description with its byte size computed
func NewUniformFormat(name string, t UniformType, count int) *UniformFormat {
	f := &UniformFormat{Name: name, Type: t, Count: count}
	elem := t.ByteSize()
	if count > 0 {
		f.ByteSize = count * common.RoundUp(elem, 16)
	} else {
		f.ByteSize = elem
	}
	return f
}

// Alignment returns the byte alignment of the field.
func (f *UniformFormat) Alignment() int {
	if f.Count > 0 {
		return 16
	}
	if f.ByteSize <= 8 {
		return f.ByteSize
	}
	return 16
}

// CalculateOffset places the field at the first aligned offset at or after offset.
func (f *UniformFormat) CalculateOffset(offset int) {
	f.Offset = common.RoundUp(offset, f.Alignment())
}

// ScopeID returns the scope slot the field reads from, or nil before the format is registered.
func (f *UniformFormat) ScopeID() *ScopeID { return f.scopeID }

// elementStride is the distance in bytes between array elements.
func (f *UniformFormat) elementStride() int {
	return common.RoundUp(f.Type.ByteSize(), 16)
}

// write encodes v into dst (the buffer's storage) at the field's offset. Unsupported value types
// are reported as false.
func (f *UniformFormat) write(dst []byte, v any) bool {
	out := dst[f.Offset : f.Offset+f.ByteSize]
	switch val := v.(type) {
	case float32:
		putScalar(out, f.Type, float64(val))
	case float64:
		putScalar(out, f.Type, val)
	case int:
		putScalar(out, f.Type, float64(val))
	case int32:
		putScalar(out, f.Type, float64(val))
	case uint32:
		putScalar(out, f.Type, float64(val))
	case bool:
		b := 0.0
		if val {
			b = 1
		}
		putScalar(out, f.Type, b)
	case mgl32.Vec2:
		putFloats(out, val[:])
	case mgl32.Vec3:
		putFloats(out, val[:])
	case mgl32.Vec4:
		putFloats(out, val[:])
	case mgl32.Mat3:
		putMat3(out, val)
	case mgl32.Mat4:
		putFloats(out, val[:])
	case []float32:
		f.writeFloatArray(out, val)
	case []mgl32.Vec4:
		for i := 0; i < len(val) && (i+1)*16 <= len(out); i++ {
			putFloats(out[i*16:], val[i][:])
		}
	case []mgl32.Mat4:
		for i := 0; i < len(val) && (i+1)*64 <= len(out); i++ {
			putFloats(out[i*64:], val[i][:])
		}
	default:
		return false
	}
	return true
}

// writeFloatArray copies a flat float slice. Arrays of elements smaller than a vec4 are spread at
// the 16-byte element stride; everything else is contiguous.
func (f *UniformFormat) writeFloatArray(out []byte, vals []float32) {
	components := uniformTypes[f.Type].components
	if f.Count > 0 && f.Type.ByteSize() < 16 {
		stride := f.elementStride()
		for i := 0; i < f.Count && (i+1)*components <= len(vals); i++ {
			putFloats(out[i*stride:], vals[i*components:(i+1)*components])
		}
		return
	}
	putFloats(out, vals)
}

func putScalar(out []byte, t UniformType, v float64) {
	if t.isInteger() {
		if t >= UniformTypeUint {
			binary.LittleEndian.PutUint32(out, uint32(v))
		} else {
			binary.LittleEndian.PutUint32(out, uint32(int32(v)))
		}
		return
	}
	binary.LittleEndian.PutUint32(out, math.Float32bits(float32(v)))
}

func putFloats(out []byte, vals []float32) {
	for i, v := range vals {
		if (i+1)*4 > len(out) {
			return
		}
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
}

func putMat3(out []byte, m mgl32.Mat3) {
	for c := 0; c < 3; c++ {
		putFloats(out[c*16:], m[c*3:c*3+3])
	}
}

// UniformBufferFormat is an ordered list of uniforms with computed offsets.
type UniformBufferFormat struct {
	byteSize int
	uniforms []*UniformFormat
	index    map[string]*UniformFormat
}

// NewUniformBufferFormat lays out uniforms in declaration order and resolves each one in the
// device scope.
//
// Parameters:
//   - device: the device whose scope provides values
//   - uniforms: the fields in declaration order
//
// Returns:
//   - *UniformBufferFormat: the layout, with a byte size rounded up to 16
func NewUniformBufferFormat(device Device, uniforms []*UniformFormat) *UniformBufferFormat {
	f := &UniformBufferFormat{
		uniforms: uniforms,
		index:    make(map[string]*UniformFormat, len(uniforms)),
	}
	offset := 0
	for _, u := range uniforms {
		u.CalculateOffset(offset)
		offset = u.Offset + u.ByteSize
		if device != nil {
			u.scopeID = device.Scope().Resolve(u.Name)
		}
		f.index[u.Name] = u
	}
	f.byteSize = common.RoundUp(offset, 16)
	return f
}

// ByteSize returns the total size of the buffer in bytes.
func (f *UniformBufferFormat) ByteSize() int { return f.byteSize }

// Uniforms returns the fields in declaration order.
func (f *UniformBufferFormat) Uniforms() []*UniformFormat { return f.uniforms }

// Get returns the field with the given name, or nil when it is not declared.
func (f *UniformBufferFormat) Get(name string) *UniformFormat {
	return f.index[name]
}

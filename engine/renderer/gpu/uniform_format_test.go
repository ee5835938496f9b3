package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFloat(b []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[offset:]))
}

func TestUniformBufferFormatLayout(t *testing.T) {
	dev := NewNullDevice(64, 64)
	f := NewUniformBufferFormat(dev, []*UniformFormat{
		NewUniformFormat("a", UniformTypeFloat, 0),
		NewUniformFormat("b", UniformTypeVec3, 0),
		NewUniformFormat("c", UniformTypeVec4, 4),
	})

	assert.Equal(t, 0, f.Get("a").Offset)
	assert.Equal(t, 16, f.Get("b").Offset)
	assert.Equal(t, 32, f.Get("c").Offset)
	assert.Equal(t, 96, f.ByteSize())
	assert.Nil(t, f.Get("missing"))
}

func TestUniformFormatAlignment(t *testing.T) {
	tests := []struct {
		name     string
		format   *UniformFormat
		offset   int
		expected int
	}{
		{"float stays packed", NewUniformFormat("f", UniformTypeFloat, 0), 4, 4},
		{"vec2 aligns to 8", NewUniformFormat("v2", UniformTypeVec2, 0), 4, 8},
		{"vec3 aligns to 16", NewUniformFormat("v3", UniformTypeVec3, 0), 4, 16},
		{"mat4 aligns to 16", NewUniformFormat("m", UniformTypeMat4, 0), 20, 32},
		{"float array aligns to 16", NewUniformFormat("fa", UniformTypeFloat, 3), 4, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.format.CalculateOffset(tt.offset)
			assert.Equal(t, tt.expected, tt.format.Offset)
		})
	}
}

func TestUniformFormatSizes(t *testing.T) {
	assert.Equal(t, 48, NewUniformFormat("m3", UniformTypeMat3, 0).ByteSize)
	assert.Equal(t, 48, NewUniformFormat("fa", UniformTypeFloat, 3).ByteSize)
	assert.Equal(t, 128, NewUniformFormat("ma", UniformTypeMat4, 2).ByteSize)
}

func TestUniformBufferUploadsOnlyOnChange(t *testing.T) {
	dev := NewNullDevice(64, 64)
	f := NewUniformBufferFormat(dev, []*UniformFormat{
		NewUniformFormat("opacity", UniformTypeFloat, 0),
		NewUniformFormat("tint", UniformTypeVec3, 0),
	})
	ub := NewUniformBuffer(dev, f)

	dev.Scope().Resolve("opacity").SetValue(float32(0.5))
	dev.Scope().Resolve("tint").SetValue(mgl32.Vec3{1, 2, 3})

	require.True(t, ub.Update())
	assert.Equal(t, 1, dev.Stats().UniformUploads)
	assert.Equal(t, float32(0.5), readFloat(ub.Storage(), 0))
	assert.Equal(t, float32(3), readFloat(ub.Storage(), 24))

	assert.False(t, ub.Update())
	assert.Equal(t, 1, dev.Stats().UniformUploads)

	dev.Scope().Resolve("opacity").SetValue(float32(0.25))
	assert.True(t, ub.Update())
	assert.Equal(t, 2, dev.Stats().UniformUploads)
}

func TestUniformBufferSetOverridesScope(t *testing.T) {
	dev := NewNullDevice(64, 64)
	f := NewUniformBufferFormat(dev, []*UniformFormat{NewUniformFormat("opacity", UniformTypeFloat, 0)})
	ub := NewUniformBuffer(dev, f)

	dev.Scope().Resolve("opacity").SetValue(float32(0.5))
	ub.Set("opacity", float32(0.75))
	ub.Set("undeclared", float32(1))
	ub.Update()

	assert.Equal(t, float32(0.75), readFloat(ub.Storage(), 0))
}

func TestUniformMat3IsColumnPadded(t *testing.T) {
	dev := NewNullDevice(64, 64)
	f := NewUniformBufferFormat(dev, []*UniformFormat{NewUniformFormat("normalMatrix", UniformTypeMat3, 0)})
	ub := NewUniformBuffer(dev, f)
	ub.Set("normalMatrix", mgl32.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9})
	ub.Update()

	s := ub.Storage()
	assert.Equal(t, float32(4), readFloat(s, 16))
	assert.Equal(t, float32(7), readFloat(s, 32))
	assert.Equal(t, float32(9), readFloat(s, 40))
}

func TestUniformFloatArrayUsesVec4Stride(t *testing.T) {
	dev := NewNullDevice(64, 64)
	f := NewUniformBufferFormat(dev, []*UniformFormat{NewUniformFormat("weights", UniformTypeFloat, 3)})
	ub := NewUniformBuffer(dev, f)
	ub.Set("weights", []float32{1, 2, 3})
	ub.Update()

	s := ub.Storage()
	assert.Equal(t, float32(1), readFloat(s, 0))
	assert.Equal(t, float32(2), readFloat(s, 16))
	assert.Equal(t, float32(3), readFloat(s, 32))
}

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// BlendState is the color blend and write-mask state of a draw.
type BlendState struct {
	Blend     bool
	Color     gputypes.BlendComponent
	Alpha     gputypes.BlendComponent
	WriteMask gputypes.ColorWriteMask
}

var (
	// BlendNone writes all channels without blending.
	BlendNone = BlendState{WriteMask: gputypes.ColorWriteMaskAll}

	// BlendNoColorWrite disables color output, used by depth-only passes.
	BlendNoColorWrite = BlendState{WriteMask: gputypes.ColorWriteMaskNone}
)

// NewBlendState builds a blending state from a gputypes preset.
func NewBlendState(preset gputypes.BlendState, mask gputypes.ColorWriteMask) BlendState {
	return BlendState{Blend: true, Color: preset.Color, Alpha: preset.Alpha, WriteMask: mask}
}

// Key returns a compact identifier used in pipeline cache keys.
func (s BlendState) Key() string {
	if !s.Blend {
		return fmt.Sprintf("nb%d", s.WriteMask)
	}
	return fmt.Sprintf("b%d.%d.%d.%d.%d.%d.%d", s.Color.SrcFactor, s.Color.DstFactor, s.Color.Operation,
		s.Alpha.SrcFactor, s.Alpha.DstFactor, s.Alpha.Operation, s.WriteMask)
}

// DepthState is the depth test and write state of a draw.
type DepthState struct {
	Func       gputypes.CompareFunction
	Write      bool
	Bias       float32
	SlopeScale float32
}

var (
	// DepthDefault tests less-equal and writes.
	DepthDefault = DepthState{Func: gputypes.CompareFunctionLessEqual, Write: true}

	// DepthNoWrite tests less-equal without writing.
	DepthNoWrite = DepthState{Func: gputypes.CompareFunctionLessEqual}

	// DepthNone disables testing and writing.
	DepthNone = DepthState{Func: gputypes.CompareFunctionAlways}
)

// Key returns a compact identifier used in pipeline cache keys.
func (s DepthState) Key() string {
	return fmt.Sprintf("d%d.%t.%g.%g", s.Func, s.Write, s.Bias, s.SlopeScale)
}

package common

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// HaltonSequenceLength is the number of jitter offsets cycled through for temporal anti-aliasing.
const HaltonSequenceLength = 16

var haltonJitter = func() [HaltonSequenceLength]mgl32.Vec2 {
	var seq [HaltonSequenceLength]mgl32.Vec2
	for i := range seq {
		seq[i] = mgl32.Vec2{Halton(i+1, 2), Halton(i+1, 3)}
	}
	return seq
}()

// Halton returns the index-th element of the Halton low-discrepancy sequence for the given base.
// Values lie in (0, 1).
func Halton(index, base int) float32 {
	f := float32(1)
	r := float32(0)
	for i := index; i > 0; i /= base {
		f /= float32(base)
		r += f * float32(i%base)
	}
	return r
}

// HaltonJitter returns the (base 2, base 3) Halton pair for the given frame index, wrapping every
// HaltonSequenceLength frames.
func HaltonJitter(frame uint64) mgl32.Vec2 {
	return haltonJitter[frame%HaltonSequenceLength]
}

// BlueNoise produces a deterministic stream of well-distributed vec4 values in [0, 1).
// Each component advances along an additive recurrence (R4 sequence) from a random start, which
// gives the even spatial spread the jitter consumers need without a lookup texture.
type BlueNoise struct {
	state mgl32.Vec4
}

// r4 holds the fractional parts of the inverse powers of the plastic-number generalization for
// four dimensions.
var r4 = mgl32.Vec4{0.8566748838545029, 0.7338918566271260, 0.6287067210378087, 0.5385972572236101}

// NewBlueNoise creates a generator seeded deterministically.
func NewBlueNoise(seed uint64) *BlueNoise {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &BlueNoise{state: mgl32.Vec4{rng.Float32(), rng.Float32(), rng.Float32(), rng.Float32()}}
}

// Vec4 advances the generator and returns the next value.
func (b *BlueNoise) Vec4() mgl32.Vec4 {
	for i := 0; i < 4; i++ {
		v := b.state[i] + r4[i]
		if v >= 1 {
			v -= 1
		}
		b.state[i] = v
	}
	return b.state
}

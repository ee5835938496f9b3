package animator

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Interpolation selects how a channel blends between keyframes.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
)

// Channel animates the local transform of one node, found by name below the animator root.
// Times are ascending seconds. Each of Translations, Rotations and Scales is either empty, leaving
// that component untouched, or holds one key per time.
type Channel struct {
	Target        string
	Times         []float32
	Translations  []mgl32.Vec3
	Rotations     []mgl32.Quat
	Scales        []mgl32.Vec3
	Interpolation Interpolation
}

// keyPair returns the keys around t and the blend factor between them.
func (ch *Channel) keyPair(t float32) (int, int, float32) {
	n := len(ch.Times)
	i, found := slices.BinarySearch(ch.Times, t)
	switch {
	case found:
		return i, i, 0
	case i == 0:
		return 0, 0, 0
	case i >= n:
		return n - 1, n - 1, 0
	}
	t0, t1 := ch.Times[i-1], ch.Times[i]
	if ch.Interpolation == InterpolationStep || t1 <= t0 {
		return i - 1, i - 1, 0
	}
	return i - 1, i, (t - t0) / (t1 - t0)
}

// sample overrides the components of p the channel animates with their value at time t.
func (ch *Channel) sample(t float32, p *pose) {
	if len(ch.Times) == 0 {
		return
	}
	a, b, f := ch.keyPair(t)
	if len(ch.Translations) == len(ch.Times) {
		p.position = lerpVec3(ch.Translations[a], ch.Translations[b], f)
	}
	if len(ch.Rotations) == len(ch.Times) {
		p.rotation = mgl32.QuatSlerp(ch.Rotations[a], ch.Rotations[b], f)
	}
	if len(ch.Scales) == len(ch.Times) {
		p.scale = lerpVec3(ch.Scales[a], ch.Scales[b], f)
	}
}

// Clip is a named set of channels played together.
type Clip struct {
	name     string
	duration float32
	channels []Channel
}

// NewClip creates a clip lasting until the last key of its channels.
//
// Parameters:
//   - name: the clip name
//   - channels: the animated nodes
//
// Returns:
//   - *Clip: the clip
func NewClip(name string, channels ...Channel) *Clip {
	c := &Clip{name: name, channels: channels}
	for _, ch := range channels {
		if n := len(ch.Times); n > 0 {
			c.duration = max(c.duration, ch.Times[n-1])
		}
	}
	return c
}

func (c *Clip) Name() string        { return c.name }
func (c *Clip) Duration() float32   { return c.duration }
func (c *Clip) Channels() []Channel { return c.channels }

type pose struct {
	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3
}

func lerpVec3(a, b mgl32.Vec3, f float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(f))
}

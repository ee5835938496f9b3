package model

import (
	"cmp"
	"slices"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// MaxActiveMorphTargets is the number of weights a morphed draw can consume.
const MaxActiveMorphTargets = 8

// activeWeightEpsilon is the smallest weight magnitude that makes a target active.
const activeWeightEpsilon = 1e-4

// MorphTarget is one blend shape: per-vertex position deltas and the box bounding them.
type MorphTarget struct {
	Name          string
	DefaultWeight float32
	Deltas        []mgl32.Vec3
	DeltaAabb     common.BoundingBox
}

// Morph is the set of blend shapes of a mesh.
type Morph struct {
	targets []MorphTarget
	texture *gpu.Texture
}

// NewMorph creates a morph from its targets.
func NewMorph(targets ...MorphTarget) *Morph {
	return &Morph{targets: targets}
}

// Targets returns the blend shapes.
func (m *Morph) Targets() []MorphTarget { return m.targets }

// Texture returns the position delta texture, one row per target and one texel per vertex, read
// by morphed vertex shaders with textureLoad. It is built on first use.
//
// Parameters:
//   - device: the device creating the texture
//
// Returns:
//   - *gpu.Texture: the RGBA32Float delta texture
func (m *Morph) Texture(device gpu.Device) *gpu.Texture {
	if m.texture != nil {
		return m.texture
	}
	width := 1
	for _, t := range m.targets {
		width = max(width, len(t.Deltas))
	}
	height := max(len(m.targets), 1)
	texels := make([]float32, width*height*4)
	for row, t := range m.targets {
		for i, d := range t.Deltas {
			copy(texels[(row*width+i)*4:], d[:])
		}
	}
	m.texture = gpu.NewTexture(device,
		gpu.WithTextureName("MorphPositions"),
		gpu.WithTextureSize(width, height),
		gpu.WithTextureFormat(gputypes.TextureFormatRGBA32Float),
		gpu.WithTextureFilter(gputypes.FilterModeNearest),
		gpu.WithTexturePixels(common.SliceToBytes(texels)),
	)
	return m.texture
}

// Destroy releases the delta texture.
func (m *Morph) Destroy() {
	if m.texture != nil {
		m.texture.Destroy()
		m.texture = nil
	}
}

// Aabb returns base grown by every target's delta bounds, which encloses any weighting of the
// targets in [0, 1].
func (m *Morph) Aabb(base common.BoundingBox) common.BoundingBox {
	lo, hi := base.Min(), base.Max()
	for _, t := range m.targets {
		dMin, dMax := t.DeltaAabb.Min(), t.DeltaAabb.Max()
		for i := 0; i < 3; i++ {
			lo[i] += math32.Min(0, dMin[i])
			hi[i] += math32.Max(0, dMax[i])
		}
	}
	return common.NewBoundingBoxMinMax(lo, hi)
}

// MorphInstance holds the weights of one mesh instance's morph.
type MorphInstance struct {
	morph         *Morph
	weights       []float32
	activeTargets []int
	activeWeights []float32
	dirty         bool
}

// NewMorphInstance creates an instance with every target at its default weight.
func NewMorphInstance(morph *Morph) *MorphInstance {
	mi := &MorphInstance{
		morph:         morph,
		weights:       make([]float32, len(morph.targets)),
		activeWeights: make([]float32, MaxActiveMorphTargets),
		dirty:         true,
	}
	for i, t := range morph.targets {
		mi.weights[i] = t.DefaultWeight
	}
	return mi
}

func (mi *MorphInstance) Morph() *Morph { return mi.morph }
func (mi *MorphInstance) Dirty() bool   { return mi.dirty }

// ActiveTargets returns the indices of the targets selected by the last Update.
func (mi *MorphInstance) ActiveTargets() []int { return mi.activeTargets }

// ActiveWeights returns MaxActiveMorphTargets weights matching ActiveTargets, zero padded.
func (mi *MorphInstance) ActiveWeights() []float32 { return mi.activeWeights }

// Weight returns the weight of target index, or 0 when out of range.
func (mi *MorphInstance) Weight(index int) float32 {
	if index < 0 || index >= len(mi.weights) {
		return 0
	}
	return mi.weights[index]
}

// SetWeight sets the weight of target index and marks the instance dirty.
func (mi *MorphInstance) SetWeight(index int, weight float32) {
	if !logger.Assert(index >= 0 && index < len(mi.weights), "morph target index out of range", "index", index) {
		return
	}
	mi.weights[index] = weight
	mi.dirty = true
}

// SetWeightByName sets the weight of the named target. Unknown names are ignored.
func (mi *MorphInstance) SetWeightByName(name string, weight float32) {
	for i, t := range mi.morph.targets {
		if t.Name == name {
			mi.SetWeight(i, weight)
			return
		}
	}
	logger.Logger().Warn("unknown morph target", "target", name)
}

// Update selects the targets with the largest non-negligible weights, up to
// MaxActiveMorphTargets, and clears the dirty flag.
func (mi *MorphInstance) Update() {
	if !mi.dirty {
		return
	}
	mi.activeTargets = mi.activeTargets[:0]
	for i, w := range mi.weights {
		if math32.Abs(w) > activeWeightEpsilon {
			mi.activeTargets = append(mi.activeTargets, i)
		}
	}
	if len(mi.activeTargets) > MaxActiveMorphTargets {
		slices.SortStableFunc(mi.activeTargets, func(a, b int) int {
			return cmp.Compare(math32.Abs(mi.weights[b]), math32.Abs(mi.weights[a]))
		})
		mi.activeTargets = mi.activeTargets[:MaxActiveMorphTargets]
	}
	clear(mi.activeWeights)
	for i, t := range mi.activeTargets {
		mi.activeWeights[i] = mi.weights[t]
	}
	mi.dirty = false
}

// positionDeltaAabb bounds a list of position deltas, used when building a MorphTarget.
func positionDeltaAabb(deltas []mgl32.Vec3) common.BoundingBox {
	if len(deltas) == 0 {
		return common.BoundingBox{}
	}
	box := common.BoundingBox{Center: deltas[0]}
	for _, d := range deltas[1:] {
		box.AddPoint(d)
	}
	return box
}

// NewMorphTarget builds a target whose delta bounds enclose deltas.
func NewMorphTarget(name string, defaultWeight float32, deltas []mgl32.Vec3) MorphTarget {
	return MorphTarget{Name: name, DefaultWeight: defaultWeight, Deltas: deltas, DeltaAabb: positionDeltaAabb(deltas)}
}

package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/graph"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func omniAt(pos mgl32.Vec3, lightRange float32) *light.Light {
	return light.NewLight(light.LightTypeOmni,
		light.WithNode(graph.NewGraphNode(graph.WithLocalPosition(pos))),
		light.WithRange(lightRange),
	)
}

func TestWorldClustersBinsVisibleLights(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	c := NewWorldClusters(dev, [3]int{4, 1, 1}, 4)
	defer c.Destroy()

	left := omniAt(mgl32.Vec3{-10, 0, 0}, 1)
	right := omniAt(mgl32.Vec3{10, 0, 0}, 1)
	hidden := omniAt(mgl32.Vec3{}, 1)
	all := []*light.Light{left, hidden, right}
	for _, l := range all {
		l.BeginFrame()
	}
	left.SetVisibleThisFrame(true)
	right.SetVisibleThisFrame(true)

	c.Update(all)

	assert.Equal(t, []*light.Light{left, right}, c.Lights())
	assert.Equal(t, mgl32.Vec3{-11, -1, -1}, c.BoundsMin())
	assert.Equal(t, mgl32.Vec3{11, 1, 1}, c.BoundsMax())
	assert.InDelta(t, 5.5, c.BoundsDelta().X(), 1e-5)

	assert.Equal(t, []int{1}, c.CellLights(c.CellIndex(0, 0, 0)))
	assert.Equal(t, []int{2}, c.CellLights(c.CellIndex(3, 0, 0)))
	assert.Zero(t, c.CellLightCount(c.CellIndex(1, 0, 0)))
	assert.Zero(t, c.CellLightCount(c.CellIndex(2, 0, 0)))

	// row 0 stays empty
	assert.Equal(t, 3, c.LightsTexture().Height())
	assert.Equal(t, lightTexels, c.LightsTexture().Width())
	assert.Equal(t, 4, c.CellsTexture().Height())

	c.Activate()
	scope := dev.Scope()
	assert.Same(t, c.LightsTexture(), scope.Resolve(material.ClusterLightsName).Value())
	assert.Same(t, c.CellsTexture(), scope.Resolve(material.ClusterCellsName).Value())
	assert.Equal(t, float32(2), scope.Resolve("cluster_lightCount").Value())
	assert.Equal(t, mgl32.Vec3{4, 1, 1}, scope.Resolve("cluster_cells").Value())
}

func TestWorldClustersCellCapacity(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	c := NewWorldClusters(dev, [3]int{1, 1, 1}, 2)
	defer c.Destroy()

	lights := []*light.Light{
		omniAt(mgl32.Vec3{}, 1),
		omniAt(mgl32.Vec3{1, 0, 0}, 1),
		omniAt(mgl32.Vec3{2, 0, 0}, 1),
	}
	for _, l := range lights {
		l.BeginFrame()
		l.SetVisibleThisFrame(true)
	}
	c.Update(lights)

	require.Len(t, c.Lights(), 3)
	assert.Equal(t, []int{1, 2}, c.CellLights(0))
}

func TestWorldClustersEmpty(t *testing.T) {
	dev := gpu.NewNullDevice(8, 8)
	c := NewWorldClusters(dev, [3]int{2, 2, 2}, 4)
	defer c.Destroy()

	c.Update(nil)

	assert.Empty(t, c.Lights())
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, c.BoundsDelta())
	assert.Equal(t, 1, c.LightsTexture().Height())
	for cell := range 8 {
		assert.Zero(t, c.CellLightCount(cell))
	}
}

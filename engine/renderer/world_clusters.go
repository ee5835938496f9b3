package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// MaxClusteredLights caps the lights stored in the cluster light texture. Row 0 is reserved so
// that index 0 can terminate a cell's list.
const MaxClusteredLights = 255

// lightTexels is the width of the light texture, one RGBA32F texel per vec4 of a packed light.
const lightTexels = light.ClusteredLightStride / 4

// WorldClusters bins the visible local lights into a grid of cells spanning their combined
// bounds. Shaders find the cell of a fragment from the bounds and read the light indices stored
// for it.
//
// Two float textures carry the data: one row of packed parameters per light, starting at row 1,
// and one row per cell holding up to maxLights indices, four to a texel.
type WorldClusters struct {
	device    gpu.Device
	cells     [3]int
	maxLights int

	boundsMin   mgl32.Vec3
	boundsMax   mgl32.Vec3
	boundsDelta mgl32.Vec3

	used      []*light.Light
	counts    []int
	lightData []float32
	cellData  []float32

	lightsTexture *gpu.Texture
	cellsTexture  *gpu.Texture

	ids clusterScopeIDs
}

type clusterScopeIDs struct {
	boundsMin   *gpu.ScopeID
	boundsDelta *gpu.ScopeID
	maxLights   *gpu.ScopeID
	lightCount  *gpu.ScopeID
	cells       *gpu.ScopeID
	lights      *gpu.ScopeID
	cellIndices *gpu.ScopeID
}

// NewWorldClusters creates the cluster grid and its textures.
//
// Parameters:
//   - device: the owning device
//   - cells: the cell count along x, y and z
//   - maxLights: the number of light indices a cell can hold
//
// Returns:
//   - *WorldClusters: the clusters, empty until Update
func NewWorldClusters(device gpu.Device, cells [3]int, maxLights int) *WorldClusters {
	for i := range cells {
		cells[i] = max(cells[i], 1)
	}
	maxLights = max(maxLights, 1)
	numCells := cells[0] * cells[1] * cells[2]
	cellTexels := (maxLights + 3) / 4
	scope := device.Scope()

	c := &WorldClusters{
		device:      device,
		cells:       cells,
		maxLights:   maxLights,
		boundsDelta: mgl32.Vec3{1, 1, 1},
		counts:      make([]int, numCells),
		lightData:   make([]float32, lightTexels*4),
		cellData:    make([]float32, cellTexels*4*numCells),
		ids:         clusterScopeIDs{
			boundsMin:   scope.Resolve("cluster_boundsMin"),
			boundsDelta: scope.Resolve("cluster_boundsDelta"),
			maxLights:   scope.Resolve("cluster_maxLights"),
			lightCount:  scope.Resolve("cluster_lightCount"),
			cells:       scope.Resolve("cluster_cells"),
			lights:      scope.Resolve(material.ClusterLightsName),
			cellIndices: scope.Resolve(material.ClusterCellsName),
		},
	}
	c.lightsTexture = newClusterTexture(device, "ClusterLights", lightTexels, 1)
	c.cellsTexture = newClusterTexture(device, "ClusterCells", cellTexels, numCells)
	return c
}

func newClusterTexture(device gpu.Device, name string, width, height int) *gpu.Texture {
	return gpu.NewTexture(device,
		gpu.WithTextureName(name),
		gpu.WithTextureSize(width, height),
		gpu.WithTextureFormat(gputypes.TextureFormatRGBA32Float),
		gpu.WithTextureUsage(gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst),
		gpu.WithTextureFilter(gputypes.FilterModeNearest),
	)
}

func (c *WorldClusters) Cells() [3]int               { return c.cells }
func (c *WorldClusters) MaxLights() int              { return c.maxLights }
func (c *WorldClusters) BoundsMin() mgl32.Vec3       { return c.boundsMin }
func (c *WorldClusters) BoundsMax() mgl32.Vec3       { return c.boundsMax }
func (c *WorldClusters) BoundsDelta() mgl32.Vec3     { return c.boundsDelta }
func (c *WorldClusters) Lights() []*light.Light      { return c.used }
func (c *WorldClusters) LightsTexture() *gpu.Texture { return c.lightsTexture }
func (c *WorldClusters) CellsTexture() *gpu.Texture  { return c.cellsTexture }
func (c *WorldClusters) CellLightCount(cell int) int { return c.counts[cell] }
func (c *WorldClusters) cellTexels() int             { return (c.maxLights + 3) / 4 }

// CellIndex returns the row of cell (x, y, z) in the cells texture.
func (c *WorldClusters) CellIndex(x, y, z int) int { return x + y*c.cells[0] + z*c.cells[0]*c.cells[1] }

// CellLights returns the 1-based light rows stored in cell.
func (c *WorldClusters) CellLights(cell int) []int {
	stride := c.cellTexels() * 4
	out := make([]int, c.counts[cell])
	for i := range out {
		out[i] = int(c.cellData[cell*stride+i])
	}
	return out
}

// Update rebuilds the grid from the enabled, visible local lights and uploads both textures.
// Lights beyond MaxClusteredLights are ignored, and a cell holding maxLights indices takes no
// more.
//
// Parameters:
//   - lights: the local lights of the frame
func (c *WorldClusters) Update(lights []*light.Light) {
	c.used = c.used[:0]
	var bounds, box common.BoundingBox
	for _, l := range lights {
		if l.Type() == light.LightTypeDirectional || !l.Enabled() || !l.VisibleThisFrame() {
			continue
		}
		if len(c.used) == MaxClusteredLights {
			break
		}
		l.GetBoundingBox(&box)
		if len(c.used) == 0 {
			bounds = box
		} else {
			bounds.Add(box)
		}
		c.used = append(c.used, l)
	}

	if len(c.used) == 0 {
		c.boundsMin, c.boundsMax = mgl32.Vec3{}, mgl32.Vec3{}
		c.boundsDelta = mgl32.Vec3{1, 1, 1}
	} else {
		c.boundsMin, c.boundsMax = bounds.Min(), bounds.Max()
		size := c.boundsMax.Sub(c.boundsMin)
		for i := range 3 {
			c.boundsDelta[i] = math32.Max(size[i]/float32(c.cells[i]), 1e-4)
		}
	}

	c.packLights()
	c.binLights()
}

func (c *WorldClusters) packLights() {
	rows := len(c.used) + 1
	need := rows * lightTexels * 4
	if cap(c.lightData) < need {
		c.lightData = make([]float32, need)
	}
	c.lightData = c.lightData[:need]
	clear(c.lightData)
	for i, l := range c.used {
		off := (i + 1) * light.ClusteredLightStride
		l.PackClustered(c.lightData[off : off+light.ClusteredLightStride])
	}
	c.lightsTexture.Resize(lightTexels, rows)
	c.lightsTexture.SetPixels(common.SliceToBytes(c.lightData))
	c.lightsTexture.Upload()
}

func (c *WorldClusters) binLights() {
	clear(c.counts)
	clear(c.cellData)
	stride := c.cellTexels() * 4
	var box common.BoundingBox
	for i, l := range c.used {
		l.GetBoundingBox(&box)
		lo := c.cellCoords(box.Min())
		hi := c.cellCoords(box.Max())
		for z := lo[2]; z <= hi[2]; z++ {
			for y := lo[1]; y <= hi[1]; y++ {
				for x := lo[0]; x <= hi[0]; x++ {
					cell := c.CellIndex(x, y, z)
					if c.counts[cell] == c.maxLights {
						continue
					}
					c.cellData[cell*stride+c.counts[cell]] = float32(i + 1)
					c.counts[cell]++
				}
			}
		}
	}
	c.cellsTexture.SetPixels(common.SliceToBytes(c.cellData))
	c.cellsTexture.Upload()
}

// cellCoords returns the clamped cell containing p.
func (c *WorldClusters) cellCoords(p mgl32.Vec3) [3]int {
	var out [3]int
	for i := range 3 {
		cell := int(math32.Floor((p[i] - c.boundsMin[i]) / c.boundsDelta[i]))
		out[i] = common.Clamp(cell, 0, c.cells[i]-1)
	}
	return out
}

// Activate publishes the grid parameters and textures to the device scope for the forward pass.
func (c *WorldClusters) Activate() {
	c.ids.boundsMin.SetValue(c.boundsMin)
	c.ids.boundsDelta.SetValue(c.boundsDelta)
	c.ids.maxLights.SetValue(float32(c.maxLights))
	c.ids.lightCount.SetValue(float32(len(c.used)))
	c.ids.cells.SetValue(mgl32.Vec3{float32(c.cells[0]), float32(c.cells[1]), float32(c.cells[2])})
	c.ids.lights.SetValue(c.lightsTexture)
	c.ids.cellIndices.SetValue(c.cellsTexture)
}

// Destroy releases both textures.
func (c *WorldClusters) Destroy() {
	c.lightsTexture.Destroy()
	c.cellsTexture.Destroy()
	c.ids.lights.SetValue(nil)
	c.ids.cellIndices.SetValue(nil)
}

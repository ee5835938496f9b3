package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
)

type shadowMapKey struct {
	lightType  light.LightType
	shadowType light.ShadowType
	resolution int
}

// ShadowMapCache pools temporary 2D shadow maps, such as the intermediate target of a VSM blur,
// keyed by light type, shadow type and resolution.
type ShadowMapCache struct {
	pool map[shadowMapKey][]*light.ShadowMap
}

// NewShadowMapCache creates an empty cache.
func NewShadowMapCache() *ShadowMapCache {
	return &ShadowMapCache{pool: make(map[shadowMapKey][]*light.ShadowMap)}
}

func shadowMapKeyOf(l *light.Light) shadowMapKey {
	return shadowMapKey{lightType: l.Type(), shadowType: l.ShadowType(), resolution: l.ShadowResolution()}
}

// Get takes a map matching l from the pool, creating one when none is free. The map is marked
// Cached so lights never destroy it.
//
// Parameters:
//   - device: the device new maps are created on
//   - l: the light the map must match
//
// Returns:
//   - *light.ShadowMap: a map owned by the caller until returned with Add
func (c *ShadowMapCache) Get(device gpu.Device, l *light.Light) *light.ShadowMap {
	key := shadowMapKeyOf(l)
	if maps := c.pool[key]; len(maps) > 0 {
		sm := maps[len(maps)-1]
		maps[len(maps)-1] = nil
		c.pool[key] = maps[:len(maps)-1]
		return sm
	}
	sm := light.NewShadowMap2D(device, l.ShadowResolution(), l.ShadowType())
	sm.Cached = true
	return sm
}

// Add returns sm, taken with Get for l, to the pool.
func (c *ShadowMapCache) Add(l *light.Light, sm *light.ShadowMap) {
	key := shadowMapKeyOf(l)
	c.pool[key] = append(c.pool[key], sm)
}

// Len returns the number of pooled maps.
func (c *ShadowMapCache) Len() int {
	n := 0
	for _, maps := range c.pool {
		n += len(maps)
	}
	return n
}

// Destroy releases every pooled map.
func (c *ShadowMapCache) Destroy() {
	for key, maps := range c.pool {
		for _, sm := range maps {
			sm.Destroy()
		}
		delete(c.pool, key)
	}
}

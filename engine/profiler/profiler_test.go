package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickWithStatsAveragesOverInterval(t *testing.T) {
	p := NewProfiler(time.Second)
	start := time.Unix(100, 0)
	clock := start
	p.now = func() time.Time { return clock }
	p.lastTime = start

	clock = start.Add(250 * time.Millisecond)
	_, ok := p.TickWithStats(renderer.Stats{ForwardDrawCalls: 10, ShadowDrawCalls: 3})
	assert.False(t, ok)

	clock = start.Add(time.Second)
	s, ok := p.TickWithStats(renderer.Stats{ForwardDrawCalls: 20, ShadowDrawCalls: 4})
	require.True(t, ok)
	assert.InDelta(t, 2, s.FPS, 1e-9)
	assert.Equal(t, 15, s.Render.ForwardDrawCalls)
	assert.Equal(t, 3, s.Render.ShadowDrawCalls)

	// counters restart after a sample
	clock = start.Add(2 * time.Second)
	s, ok = p.TickWithStats(renderer.Stats{ForwardDrawCalls: 1})
	require.True(t, ok)
	assert.Equal(t, 1, s.Render.ForwardDrawCalls)
	assert.InDelta(t, 1, s.FPS, 1e-9)
}

func TestNewProfilerDefaultsInterval(t *testing.T) {
	p := NewProfiler(0)
	assert.Equal(t, time.Second, p.updateInterval)
	_, ok := p.Tick()
	assert.False(t, ok)
}

package profiler

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
)

// Profiler tracks frame rate, memory and render statistics. It logs a summary through the package
// logger once per interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	// render counters summed over the interval
	frameStats renderer.Stats
	now        func() time.Time
}

// Sample is one logged interval.
type Sample struct {
	FPS         float64
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64

	// Render holds the per-frame averages of the renderer counters, rounded down.
	Render renderer.Stats
}

// NewProfiler creates a Profiler logging every interval. Intervals of zero or less default to
// one second.
//
// Parameters:
//   - interval: the time between two samples
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: interval,
		now:            time.Now,
	}
}

// Tick counts one frame. When the interval has elapsed it samples and logs the statistics.
//
// Returns:
//   - Sample: the sample, valid when ok is true
//   - bool: true if a sample was taken this tick
func (p *Profiler) Tick() (Sample, bool) {
	return p.TickWithStats(renderer.Stats{})
}

// TickWithStats counts one frame rendered with the given renderer counters. When the interval has
// elapsed it samples and logs frame rate, memory, GC pauses and the average render counters.
//
// Parameters:
//   - stats: the counters of the frame just rendered
//
// Returns:
//   - Sample: the sample, valid when ok is true
//   - bool: true if a sample was taken this tick
func (p *Profiler) TickWithStats(stats renderer.Stats) (Sample, bool) {
	p.frameCount++
	accumulate(&p.frameStats, stats)

	current := p.now()
	elapsed := current.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Sample{}, false
	}

	runtime.ReadMemStats(&p.memStats)
	s := Sample{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
		SysMB:       float64(p.memStats.Sys) / 1024 / 1024,
		Render:      average(p.frameStats, p.frameCount),
	}

	// PauseNs is a circular buffer of the last 256 pauses
	if gc := p.memStats.NumGC; gc > 0 {
		s.LastPauseUs = p.memStats.PauseNs[(gc-1)%256] / 1000
		start := p.lastGCCount
		if gc-start > 256 {
			start = gc - 256
		}
		for i := start; i < gc; i++ {
			s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	logger.Logger().Info("profiler",
		slog.Float64("fps", s.FPS),
		slog.Float64("heapMB", s.HeapMB),
		slog.Float64("allocRateMB", s.AllocRateMB),
		slog.Uint64("gc", uint64(s.GCCount)),
		slog.Uint64("lastPauseUs", s.LastPauseUs),
		slog.Uint64("maxPauseUs", s.MaxPauseUs),
		slog.Float64("sysMB", s.SysMB),
		slog.Group("render",
			"cameras", s.Render.Cameras,
			"culled", s.Render.CulledInstances,
			"lights", s.Render.Lights,
			"shadowUpdates", s.Render.ShadowMapUpdates,
			"shadowDraws", s.Render.ShadowDrawCalls,
			"forwardDraws", s.Render.ForwardDrawCalls,
			"clusteredLights", s.Render.ClusteredLights,
			"skinned", s.Render.SkinnedUpdated,
		),
	)

	p.frameCount = 0
	p.frameStats = renderer.Stats{}
	p.lastTime = current
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return s, true
}

func accumulate(sum *renderer.Stats, s renderer.Stats) {
	sum.Cameras += s.Cameras
	sum.CulledInstances += s.CulledInstances
	sum.SkinnedUpdated += s.SkinnedUpdated
	sum.Lights += s.Lights
	sum.LocalLights += s.LocalLights
	sum.ShadowCastersCulled += s.ShadowCastersCulled
	sum.ShadowMapUpdates += s.ShadowMapUpdates
	sum.ShadowDrawCalls += s.ShadowDrawCalls
	sum.ForwardDrawCalls += s.ForwardDrawCalls
	sum.ClusteredLights += s.ClusteredLights
}

func average(sum renderer.Stats, frames int) renderer.Stats {
	if frames == 0 {
		return renderer.Stats{}
	}
	return renderer.Stats{
		Cameras:             sum.Cameras / frames,
		CulledInstances:     sum.CulledInstances / frames,
		SkinnedUpdated:      sum.SkinnedUpdated / frames,
		Lights:              sum.Lights / frames,
		LocalLights:         sum.LocalLights / frames,
		ShadowCastersCulled: sum.ShadowCastersCulled / frames,
		ShadowMapUpdates:    sum.ShadowMapUpdates / frames,
		ShadowDrawCalls:     sum.ShadowDrawCalls / frames,
		ForwardDrawCalls:    sum.ForwardDrawCalls / frames,
		ClusteredLights:     sum.ClusteredLights / frames,
	}
}

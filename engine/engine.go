package engine

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/animator"
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/layer"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	cfg      config.RendererConfig
	device   gpu.Device
	renderer renderer.Renderer
	// rendererOptions apply when the engine creates the renderer
	rendererOptions []renderer.RendererBuilderOption
	// set for the device and renderer NewEngine created, which Destroy releases
	ownsDevice, ownsRenderer bool
	comp                     atomic.Pointer[layer.LayerComposition]

	// frameMu serializes ticks, frames and resizes so animators never move nodes mid-cull.
	frameMu   sync.Mutex
	animators []animator.Animator

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the main entry point for the engine.
// It drives animation ticks and renders the layer composition each frame.
type Engine interface {
	// Window returns the window the engine presents into, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Device returns the GPU device frames are submitted to.
	Device() gpu.Device

	// Renderer returns the forward renderer.
	Renderer() renderer.Renderer

	// Composition returns the layer composition rendered each frame.
	Composition() *layer.LayerComposition

	// SetComposition replaces the layer composition rendered each frame.
	//
	// Parameters:
	//   - comp: the composition to render
	SetComposition(comp *layer.LayerComposition)

	// AddAnimator registers an animator advanced on every tick before the tick callback.
	//
	// Parameters:
	//   - a: the animator
	AddAnimator(a animator.Animator)

	// RemoveAnimator unregisters an animator.
	//
	// Parameters:
	//   - a: the animator
	RemoveAnimator(a animator.Animator)

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick, after the animators.
	// Use this for game logic, input processing and moving nodes. The callback runs with the frame
	// lock held, so it must not call AddAnimator, RemoveAnimator, Tick, Frame or Resize.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Tick advances the animators by dt and runs the tick callback.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	Tick(dt float32)

	// Frame updates and renders the composition once, presents it and feeds the profiler.
	// Run calls it from the render goroutine; headless callers may drive it directly.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	//
	// Returns:
	//   - renderer.Stats: the counters of the rendered frame
	Frame(dt float32) renderer.Stats

	// Resize changes the back buffer size and the aspect ratio of every camera rendering to it.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height int)

	// Run starts the tick and render loops. With a window it blocks until the window closes,
	// otherwise until Quit is called.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Destroy stops the engine and releases the renderer and device NewEngine created. Those
	// supplied through WithDevice or WithRenderer stay with the caller. Call it after Run returns.
	Destroy()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// When no device is supplied one is created from the renderer configuration and presents into the
// window. Without a window the engine is headless and always uses the null device.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: error if the device cannot be created
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		cfg:             config.Default(),
		profiler:        profiler.NewProfiler(time.Second),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	logger.SetAssertions(e.cfg.DebugAssertions)

	if e.device == nil {
		dev, err := gpu.NewDevice(e.deviceOptions()...)
		if err != nil {
			return nil, fmt.Errorf("failed to create device: %w", err)
		}
		e.device = dev
		e.ownsDevice = true
	}
	if e.renderer == nil {
		opts := append([]renderer.RendererBuilderOption{renderer.WithConfig(e.cfg)}, e.rendererOptions...)
		e.renderer = renderer.NewRenderer(e.device, opts...)
		e.ownsRenderer = true
	}
	if e.comp.Load() == nil {
		e.comp.Store(layer.NewLayerComposition())
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.Resize)
	}

	logger.Logger().Debug("engine created", "device", e.device.DeviceType(), "clustered", e.renderer.Clustered())
	return e, nil
}

// deviceOptions derives the device settings from the config and the window.
func (e *engine) deviceOptions() []gpu.DeviceBuilderOption {
	opts := []gpu.DeviceBuilderOption{gpu.WithRendererConfig(e.cfg)}
	if e.window == nil {
		// nothing to present into
		return append(opts, gpu.WithDeviceType(gpu.DeviceTypeNull))
	}
	return append(opts,
		gpu.WithSurfaceDescriptor(e.window.SurfaceDescriptor()),
		gpu.WithSize(e.window.Width(), e.window.Height()),
	)
}

func (e *engine) Window() window.Window       { return e.window }
func (e *engine) Device() gpu.Device          { return e.device }
func (e *engine) Renderer() renderer.Renderer { return e.renderer }

func (e *engine) Composition() *layer.LayerComposition        { return e.comp.Load() }
func (e *engine) SetComposition(comp *layer.LayerComposition) { e.comp.Store(comp) }

func (e *engine) AddAnimator(a animator.Animator) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	e.animators = append(e.animators, a)
}

func (e *engine) RemoveAnimator(a animator.Animator) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	e.animators = slices.DeleteFunc(e.animators, func(x animator.Animator) bool { return x == a })
}

func (e *engine) Tick(dt float32) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	for _, a := range e.animators {
		a.Update(dt)
	}
	if e.tickCallback != nil {
		e.tickCallback(dt)
	}
}

func (e *engine) Frame(dt float32) renderer.Stats {
	e.frameMu.Lock()
	if comp := e.comp.Load(); comp != nil {
		e.renderer.Update(comp)
		e.renderer.Render(comp)
	}
	e.device.Present()
	stats := e.renderer.Stats()
	e.frameMu.Unlock()

	if e.renderCallback != nil {
		e.renderCallback(dt)
	}
	if e.profilingEnabled && e.profiler != nil {
		e.profiler.TickWithStats(stats)
	}
	return stats
}

func (e *engine) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	e.device.Resize(width, height)
	comp := e.comp.Load()
	if comp == nil {
		return
	}
	aspect := float32(width) / float32(height)
	for _, cam := range comp.Cameras() {
		if cam.RenderTarget() == nil {
			cam.SetAspect(aspect)
		}
	}
}

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and closes the window if there is one.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
	if e.window != nil && e.window.IsRunning() {
		if err := e.window.Close(); err != nil {
			logger.Logger().Warn("failed to close window", "error", err)
		}
	}
}

func (e *engine) Destroy() {
	e.Quit()
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	if e.ownsRenderer {
		e.renderer.Destroy()
		e.ownsRenderer = false
	}
	if e.ownsDevice {
		e.device.Destroy()
		e.ownsDevice = false
	}
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Listens for dynamic rate changes via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			e.Tick(dt)
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Logger().Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			e.Frame(dt)

			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// replace a pending update rather than block
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}

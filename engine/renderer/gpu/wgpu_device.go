package gpu

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// wgpuPass is a render pass that has been requested but whose encoder may not have started yet.
// Starting lazily lets clears issued right after StartRenderPass fold into the load operations.
type wgpuPass struct {
	name    string
	target  *RenderTarget
	clear   ClearOptions
	encoder *wgpu.RenderPassEncoder
}

// wgpuDevice is the Device built on cogentcore/webgpu.
type wgpuDevice struct {
	deviceState

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	sampleCount   uint32

	// back buffer attachments; offscreen when there is no surface
	msaaView      *wgpu.TextureView
	depthView     *wgpu.TextureView
	offscreenView *wgpu.TextureView
	backTextures  []*wgpu.Texture

	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	encoder      *wgpu.CommandEncoder
	pass         *wgpuPass

	bindGroupLayouts map[uint64]*wgpu.BindGroupLayout
	pipelineLayouts  map[string]*wgpu.PipelineLayout
	pipelines        map[string]*wgpu.RenderPipeline
	emptyLayout      *wgpu.BindGroupLayout
}

var _ Device = &wgpuDevice{}

func newWGPUDevice(cfg *deviceConfig) (Device, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		deviceState:      newDeviceState(cfg.width, cfg.height),
		instance:         wgpu.CreateInstance(nil),
		presentMode:      wgpu.PresentModeImmediate,
		sampleCount:      uint32(max(cfg.sampleCount, 1)),
		surfaceFormat:    wgpu.TextureFormatBGRA8Unorm,
		bindGroupLayouts: make(map[uint64]*wgpu.BindGroupLayout),
		pipelineLayouts:  make(map[string]*wgpu.PipelineLayout),
		pipelines:        make(map[string]*wgpu.RenderPipeline),
	}
	if cfg.vsync {
		d.presentMode = wgpu.PresentModeFifo
	}
	if cfg.surfaceDescriptor != nil {
		d.surface = d.instance.CreateSurface(cfg.surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.adapter = a

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = maxBindGroups
	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "Render Device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	d.emptyLayout, err = dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: "Empty Layout"})
	if err != nil {
		return nil, fmt.Errorf("create empty layout: %w", err)
	}
	if err := d.configureBackBuffer(cfg.width, cfg.height); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *wgpuDevice) DeviceType() DeviceType       { return DeviceTypeWGPU }
func (d *wgpuDevice) SupportsUniformBuffers() bool { return true }
func (d *wgpuDevice) IsWebGPU() bool               { return true }

// configureBackBuffer (re)creates the swapchain configuration plus the MSAA and depth attachments.
func (d *wgpuDevice) configureBackBuffer(width, height int) error {
	for _, t := range d.backTextures {
		t.Release()
	}
	d.backTextures = nil
	d.msaaView, d.depthView, d.offscreenView = nil, nil, nil

	if d.surface != nil {
		capabilities := d.surface.GetCapabilities(d.adapter)
		d.surfaceFormat = capabilities.Formats[0]
		d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
			Usage:       wgpu.TextureUsageRenderAttachment,
			Format:      d.surfaceFormat,
			Width:       uint32(width),
			Height:      uint32(height),
			PresentMode: d.presentMode,
			AlphaMode:   capabilities.AlphaModes[0],
		})
	} else {
		view, err := d.createAttachment("Offscreen Color", width, height, 1, d.surfaceFormat, wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageCopySrc)
		if err != nil {
			return err
		}
		d.offscreenView = view
	}

	if d.sampleCount > 1 {
		view, err := d.createAttachment("MSAA Color", width, height, d.sampleCount, d.surfaceFormat, wgpu.TextureUsageRenderAttachment)
		if err != nil {
			return err
		}
		d.msaaView = view
	}

	view, err := d.createAttachment("Back Buffer Depth", width, height, d.sampleCount, wgpu.TextureFormatDepth24Plus, wgpu.TextureUsageRenderAttachment)
	if err != nil {
		return err
	}
	d.depthView = view
	return nil
}

func (d *wgpuDevice) createAttachment(label string, width, height int, samples uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.TextureView, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	d.backTextures = append(d.backTextures, tex)
	return tex.CreateView(nil)
}

// Resize reconfigures the back buffer.
func (d *wgpuDevice) Resize(width, height int) {
	if width == d.width && height == d.height {
		return
	}
	d.deviceState.Resize(width, height)
	if err := d.configureBackBuffer(width, height); err != nil {
		logger.Logger().Error("resize back buffer", "error", err)
	}
}

func (d *wgpuDevice) CreateTextureImpl(t *Texture) TextureImpl {
	impl := &wgpuTexture{device: d}
	impl.create(t)
	return impl
}

func (d *wgpuDevice) CreateBufferImpl(label string, usage gputypes.BufferUsage, size int) BufferImpl {
	size = (size + 3) &^ 3
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: toWGPUBufferUsage(usage),
	})
	if err != nil {
		logger.Logger().Error("create buffer", "label", label, "error", err)
	}
	return &wgpuBuffer{device: d, buffer: buf, size: size}
}

func (d *wgpuDevice) CreateBindGroupImpl(bg *BindGroup) BindGroupImpl {
	return &wgpuBindGroup{device: d}
}

func (d *wgpuDevice) CreateRenderTargetImpl(rt *RenderTarget) RenderTargetImpl {
	impl := &wgpuRenderTarget{}
	if tex := rt.ColorBuffer(); tex != nil {
		impl.colorView = d.attachmentView(tex, rt.Face())
	}
	switch {
	case rt.DepthBuffer() != nil:
		impl.depthView = d.attachmentView(rt.DepthBuffer(), rt.Face())
	case rt.HasDepth():
		view, tex, err := d.privateDepth(rt.Width(), rt.Height())
		if err != nil {
			logger.Logger().Error("create render target depth", "target", rt.Name(), "error", err)
		}
		impl.depthView, impl.depthTex = view, tex
	}
	return impl
}

func (d *wgpuDevice) privateDepth(width, height int) (*wgpu.TextureView, *wgpu.Texture, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Render Target Depth",
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, nil, err
	}
	view, err := tex.CreateView(nil)
	return view, tex, err
}

// attachmentView returns a single-layer view of tex, selecting the cube face for cube textures.
func (d *wgpuDevice) attachmentView(t *Texture, face int) *wgpu.TextureView {
	impl, ok := t.Impl().(*wgpuTexture)
	if !ok || impl.texture == nil {
		return nil
	}
	if !t.Cubemap() {
		return impl.view
	}
	aspect := wgpu.TextureAspectAll
	if t.IsDepth() {
		aspect = wgpu.TextureAspectDepthOnly
	}
	view, err := impl.texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           t.Name() + " Face",
		Format:          toWGPUTextureFormat(t.Format()),
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  uint32(face),
		ArrayLayerCount: 1,
		Aspect:          aspect,
	})
	if err != nil {
		logger.Logger().Error("create face view", "texture", t.Name(), "face", face, "error", err)
		return nil
	}
	impl.faceViews = append(impl.faceViews, view)
	return view
}

func (d *wgpuDevice) CreateShaderImpl(s *Shader) ShaderImpl {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          s.Name(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: s.Source()},
	})
	if err != nil {
		s.Fail(err)
		return &wgpuShader{}
	}
	s.MarkReady()
	return &wgpuShader{module: module}
}

// StartRenderPass records the pass; the encoder starts on the first draw or at EndRenderPass.
func (d *wgpuDevice) StartRenderPass(opts RenderPassOptions) {
	if d.pass != nil {
		logger.Logger().Warn("render pass started while another is active", "pass", opts.Name, "active", d.pass.name)
		d.EndRenderPass()
	}
	if opts.Target != nil {
		d.renderTarget = opts.Target
	}
	d.pass = &wgpuPass{name: opts.Name, target: d.renderTarget, clear: opts.Clear}
	w, h := d.targetSize()
	d.viewport = Rect{W: float32(w), H: float32(h)}
	d.scissor = d.viewport
}

// EndRenderPass finishes the active pass. A pass with no draws still runs so its clear happens.
func (d *wgpuDevice) EndRenderPass() {
	if d.pass == nil {
		return
	}
	if d.pass.encoder == nil && d.pass.clear.Flags != 0 {
		d.beginPass()
	}
	if d.pass.encoder != nil {
		d.pass.encoder.End()
		d.pass.encoder.Release()
	}
	d.pass = nil
}

// Clear folds into the pending pass, or restarts an already running pass with clear operations.
func (d *wgpuDevice) Clear(opts ClearOptions) {
	if opts.Flags == 0 {
		return
	}
	if d.pass == nil {
		d.StartRenderPass(RenderPassOptions{Name: "Clear", Clear: opts})
		d.EndRenderPass()
		return
	}
	if d.pass.encoder != nil {
		pending := &wgpuPass{name: d.pass.name, target: d.pass.target}
		d.EndRenderPass()
		d.pass = pending
	}
	d.pass.clear.Flags |= opts.Flags
	if opts.Flags&ClearColor != 0 {
		d.pass.clear.Color = opts.Color
	}
	if opts.Flags&ClearDepth != 0 {
		d.pass.clear.Depth = opts.Depth
	}
	if opts.Flags&ClearStencil != 0 {
		d.pass.clear.Stencil = opts.Stencil
	}
}

func (d *wgpuDevice) beginPass() {
	if d.encoder == nil {
		enc, err := d.device.CreateCommandEncoder(nil)
		if err != nil {
			logger.Logger().Error("create command encoder", "error", err)
			return
		}
		d.encoder = enc
	}
	p := d.pass
	co := p.clear

	colorLoad, depthLoad := wgpu.LoadOpLoad, wgpu.LoadOpLoad
	if co.Flags&ClearColor != 0 {
		colorLoad = wgpu.LoadOpClear
	}
	if co.Flags&ClearDepth != 0 {
		depthLoad = wgpu.LoadOpClear
	}

	desc := &wgpu.RenderPassDescriptor{Label: p.name}
	colorView, resolveView, depthView := d.passViews(p.target)
	if colorView != nil {
		storeOp := wgpu.StoreOpStore
		if resolveView != nil {
			storeOp = wgpu.StoreOpDiscard
		}
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{{
			View:          colorView,
			ResolveTarget: resolveView,
			LoadOp:        colorLoad,
			StoreOp:       storeOp,
			ClearValue: wgpu.Color{
				R: float64(co.Color[0]), G: float64(co.Color[1]),
				B: float64(co.Color[2]), A: float64(co.Color[3]),
			},
		}}
	}
	if depthView != nil {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            depthView,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: co.Depth,
		}
	}
	p.encoder = d.encoder.BeginRenderPass(desc)
	p.encoder.SetViewport(d.viewport.X, d.viewport.Y, d.viewport.W, d.viewport.H, 0, 1)
	p.encoder.SetScissorRect(uint32(d.scissor.X), uint32(d.scissor.Y), uint32(d.scissor.W), uint32(d.scissor.H))
}

// passViews returns the color view, MSAA resolve view and depth view of a target.
func (d *wgpuDevice) passViews(rt *RenderTarget) (*wgpu.TextureView, *wgpu.TextureView, *wgpu.TextureView) {
	if rt != nil {
		impl, _ := rt.Impl().(*wgpuRenderTarget)
		if impl == nil {
			return nil, nil, nil
		}
		return impl.colorView, nil, impl.depthView
	}
	back := d.frameView
	if back == nil {
		back = d.offscreenView
	}
	if d.msaaView != nil {
		return d.msaaView, back, d.depthView
	}
	return back, nil, d.depthView
}

// SetViewport sets the viewport, applying it to a running pass.
func (d *wgpuDevice) SetViewport(x, y, w, h float32) {
	d.deviceState.SetViewport(x, y, w, h)
	if d.pass != nil && d.pass.encoder != nil {
		d.pass.encoder.SetViewport(x, y, w, h, 0, 1)
	}
}

// SetScissor sets the scissor, applying it to a running pass.
func (d *wgpuDevice) SetScissor(x, y, w, h float32) {
	d.deviceState.SetScissor(x, y, w, h)
	if d.pass != nil && d.pass.encoder != nil {
		d.pass.encoder.SetScissorRect(uint32(x), uint32(y), uint32(w), uint32(h))
	}
}

func (d *wgpuDevice) SetShader(s *Shader) bool {
	return d.bindShader(s)
}

func (d *wgpuDevice) SetBindGroup(index int, bg *BindGroup) {
	if !logger.Assert(index >= 0 && index < maxBindGroups, "bind group index out of range", "index", index) {
		return
	}
	d.bindGroups[index] = bg
}

// Draw resolves the pipeline for the current state and encodes one draw.
func (d *wgpuDevice) Draw(primitive Primitive, numInstances int) {
	if d.shader == nil || d.vertexBuffer == nil {
		return
	}
	if d.pass == nil {
		d.StartRenderPass(RenderPassOptions{Name: "Implicit"})
	}
	if d.pass.encoder == nil {
		d.beginPass()
		if d.pass.encoder == nil {
			return
		}
	}
	pipeline := d.pipelineFor(primitive.Topology)
	if pipeline == nil {
		return
	}
	enc := d.pass.encoder
	enc.SetPipeline(pipeline)
	for i, bg := range d.bindGroups {
		if bg == nil {
			continue
		}
		impl, _ := bg.Impl().(*wgpuBindGroup)
		if impl == nil || impl.group == nil {
			continue
		}
		enc.SetBindGroup(uint32(i), impl.group, nil)
	}
	vb, _ := d.vertexBuffer.Impl().(*wgpuBuffer)
	if vb == nil || vb.buffer == nil {
		return
	}
	enc.SetVertexBuffer(0, vb.buffer, 0, wgpu.WholeSize)
	if d.instances != nil {
		inst, _ := d.instances.Impl().(*wgpuBuffer)
		if inst == nil || inst.buffer == nil {
			return
		}
		enc.SetVertexBuffer(1, inst.buffer, 0, wgpu.WholeSize)
	}

	instances := uint32(max(numInstances, 1))
	if primitive.Indexed && d.indexBuffer != nil {
		ib, _ := d.indexBuffer.Impl().(*wgpuBuffer)
		if ib == nil || ib.buffer == nil {
			return
		}
		enc.SetIndexBuffer(ib.buffer, toWGPUIndexFormat(d.indexBuffer.Format()), 0, wgpu.WholeSize)
		enc.DrawIndexed(uint32(primitive.Count), instances, uint32(primitive.Base), 0, 0)
		return
	}
	enc.Draw(uint32(primitive.Count), instances, uint32(primitive.Base), 0)
}

// pipelineFor returns the cached render pipeline for the current draw state, creating it on a miss.
func (d *wgpuDevice) pipelineFor(topology gputypes.PrimitiveTopology) *wgpu.RenderPipeline {
	colorFormat, depthFormat, samples := d.targetFormats()
	buffers := []wgpu.VertexBufferLayout{vertexLayout(d.vertexBuffer.Format())}
	vertexKey := d.vertexBuffer.Format().Key()
	if d.instances != nil {
		buffers = append(buffers, vertexLayout(d.instances.Format()))
		vertexKey += "+" + d.instances.Format().Key()
	}
	key := fmt.Sprintf("%d|%s|%s|%d|%d|%d|%d|%d|%s", d.shader.ID(), d.blendState.Key(), d.depthState.Key(),
		d.cullMode, colorFormat, depthFormat, samples, topology, vertexKey)
	if p, ok := d.pipelines[key]; ok {
		return p
	}

	layout, err := d.pipelineLayout(d.shader)
	if err != nil {
		logger.Logger().Error("create pipeline layout", "shader", d.shader.Name(), "error", err)
		return nil
	}
	module := d.shader.Impl().(*wgpuShader).module

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  d.shader.Name() + " Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: d.shader.VertexEntry(),
			Buffers:    buffers,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  toWGPUTopology(topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  toWGPUCullMode(d.cullMode),
		},
		Multisample: wgpu.MultisampleState{Count: samples, Mask: 0xFFFFFFFF},
	}
	if d.shader.FragmentEntry() != "" {
		frag := &wgpu.FragmentState{Module: module, EntryPoint: d.shader.FragmentEntry()}
		if colorFormat != wgpu.TextureFormatUndefined {
			target := wgpu.ColorTargetState{Format: colorFormat, WriteMask: toWGPUWriteMask(d.blendState.WriteMask)}
			if d.blendState.Blend {
				target.Blend = &wgpu.BlendState{
					Color: toWGPUBlendComponent(d.blendState.Color),
					Alpha: toWGPUBlendComponent(d.blendState.Alpha),
				}
			}
			frag.Targets = []wgpu.ColorTargetState{target}
		}
		desc.Fragment = frag
	}
	if depthFormat != wgpu.TextureFormatUndefined {
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:              depthFormat,
			DepthWriteEnabled:   d.depthState.Write,
			DepthCompare:        toWGPUCompare(d.depthState.Func),
			DepthBias:           int32(d.depthState.Bias),
			DepthBiasSlopeScale: d.depthState.SlopeScale,
			StencilFront:        wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:         wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	p, err := d.device.CreateRenderPipeline(desc)
	if err != nil {
		logger.Logger().Error("create render pipeline", "shader", d.shader.Name(), "error", err)
		d.shader.Fail(err)
		return nil
	}
	d.pipelines[key] = p
	return p
}

func (d *wgpuDevice) targetFormats() (wgpu.TextureFormat, wgpu.TextureFormat, uint32) {
	rt := d.renderTarget
	if rt == nil {
		return d.surfaceFormat, wgpu.TextureFormatDepth24Plus, d.sampleCount
	}
	color, depth := wgpu.TextureFormatUndefined, wgpu.TextureFormatUndefined
	if rt.ColorBuffer() != nil {
		color = toWGPUTextureFormat(rt.ColorBuffer().Format())
	}
	switch {
	case rt.DepthBuffer() != nil:
		depth = toWGPUTextureFormat(rt.DepthBuffer().Format())
	case rt.HasDepth():
		depth = wgpu.TextureFormatDepth24Plus
	}
	return color, depth, 1
}

func (d *wgpuDevice) pipelineLayout(s *Shader) (*wgpu.PipelineLayout, error) {
	formats := s.BindGroupFormats()
	maxGroup := -1
	var key strings.Builder
	for g := range formats {
		maxGroup = max(maxGroup, g)
	}
	layouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		f, ok := formats[g]
		if !ok || f == nil {
			layouts[g] = d.emptyLayout
			key.WriteString("e;")
			continue
		}
		layout, err := d.bindGroupLayout(f)
		if err != nil {
			return nil, err
		}
		layouts[g] = layout
		fmt.Fprintf(&key, "%d;", f.ID())
	}
	if pl, ok := d.pipelineLayouts[key.String()]; ok {
		return pl, nil
	}
	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            s.Name() + " Layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, err
	}
	d.pipelineLayouts[key.String()] = pl
	return pl, nil
}

// bindGroupLayout creates (once per format) the wgpu layout matching a BindGroupFormat.
func (d *wgpuDevice) bindGroupLayout(f *BindGroupFormat) (*wgpu.BindGroupLayout, error) {
	if l, ok := d.bindGroupLayouts[f.ID()]; ok {
		return l, nil
	}
	entries := make([]wgpu.BindGroupLayoutEntry, 0, f.NumSlots())
	for _, u := range f.UniformBuffers() {
		entry := wgpu.BindGroupLayoutEntry{Binding: uint32(u.Slot), Visibility: toWGPUShaderStage(u.Visibility)}
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entries = append(entries, entry)
	}
	for _, t := range f.Textures() {
		entry := wgpu.BindGroupLayoutEntry{Binding: uint32(t.Slot), Visibility: toWGPUShaderStage(t.Visibility)}
		entry.Texture.SampleType = toWGPUSampleType(t.SampleType)
		entry.Texture.ViewDimension = toWGPUViewDimension(t.Dimension)
		entries = append(entries, entry)
		if t.HasSampler {
			sampler := wgpu.BindGroupLayoutEntry{Binding: uint32(t.Slot + 1), Visibility: toWGPUShaderStage(t.Visibility)}
			sampler.Sampler.Type = wgpu.SamplerBindingTypeFiltering
			if t.SampleType == gputypes.TextureSampleTypeDepth {
				sampler.Sampler.Type = wgpu.SamplerBindingTypeComparison
			}
			entries = append(entries, sampler)
		}
	}
	for _, t := range f.StorageTextures() {
		entry := wgpu.BindGroupLayoutEntry{Binding: uint32(t.Slot), Visibility: toWGPUShaderStage(t.Visibility)}
		entry.StorageTexture.Access = toWGPUStorageAccess(t.Access)
		entry.StorageTexture.Format = toWGPUTextureFormat(t.Format)
		entry.StorageTexture.ViewDimension = toWGPUViewDimension(t.Dimension)
		entries = append(entries, entry)
	}
	for _, b := range f.StorageBuffers() {
		entry := wgpu.BindGroupLayoutEntry{Binding: uint32(b.Slot), Visibility: toWGPUShaderStage(b.Visibility)}
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		if b.ReadOnly {
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		}
		entries = append(entries, entry)
	}
	l, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   fmt.Sprintf("Bind Group Format %d", f.ID()),
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	d.bindGroupLayouts[f.ID()] = l
	return l, nil
}

func vertexLayout(f *VertexFormat) wgpu.VertexBufferLayout {
	attrs := make([]wgpu.VertexAttribute, len(f.Elements))
	for i, e := range f.Elements {
		attrs[i] = wgpu.VertexAttribute{
			Format:         toWGPUVertexFormat(e.Format),
			Offset:         uint64(e.Offset),
			ShaderLocation: uint32(e.Location),
		}
	}
	step := wgpu.VertexStepModeVertex
	if f.Instancing {
		step = wgpu.VertexStepModeInstance
	}
	return wgpu.VertexBufferLayout{ArrayStride: uint64(f.Stride), StepMode: step, Attributes: attrs}
}

// FrameStart acquires the surface texture and opens the frame's command encoder.
func (d *wgpuDevice) FrameStart() {
	d.resetDrawState()
	if d.surface != nil && d.frameSurface == nil {
		surfaceTexture, err := d.surface.GetCurrentTexture()
		if err != nil {
			logger.Logger().Error("acquire surface texture", "error", err)
		} else {
			view, err := surfaceTexture.CreateView(nil)
			if err != nil {
				surfaceTexture.Release()
				logger.Logger().Error("create surface view", "error", err)
			} else {
				d.frameSurface, d.frameView = surfaceTexture, view
			}
		}
	}
	if d.encoder == nil {
		enc, err := d.device.CreateCommandEncoder(nil)
		if err != nil {
			logger.Logger().Error("create command encoder", "error", err)
			return
		}
		d.encoder = enc
	}
}

// FrameEnd submits the recorded commands and advances the render version.
func (d *wgpuDevice) FrameEnd() {
	d.EndRenderPass()
	if d.encoder != nil {
		cmd, err := d.encoder.Finish(nil)
		if err != nil {
			logger.Logger().Error("finish command encoder", "error", err)
		} else {
			d.queue.Submit(cmd)
			cmd.Release()
		}
		d.encoder.Release()
		d.encoder = nil
	}
	d.renderVersion++
}

// Present shows the acquired surface texture.
func (d *wgpuDevice) Present() {
	if d.frameSurface == nil {
		return
	}
	d.surface.Present()
	d.frameView.Release()
	d.frameSurface.Release()
	d.frameView, d.frameSurface = nil, nil
}

// Destroy releases every cached GPU object and the device.
func (d *wgpuDevice) Destroy() {
	for _, p := range d.pipelines {
		p.Release()
	}
	for _, l := range d.pipelineLayouts {
		l.Release()
	}
	for _, l := range d.bindGroupLayouts {
		l.Release()
	}
	for _, t := range d.backTextures {
		t.Release()
	}
	d.pipelines, d.pipelineLayouts, d.bindGroupLayouts = nil, nil, nil
	if d.emptyLayout != nil {
		d.emptyLayout.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}

type wgpuTexture struct {
	device    *wgpuDevice
	texture   *wgpu.Texture
	view      *wgpu.TextureView
	faceViews []*wgpu.TextureView
	sampler   *wgpu.Sampler
}

func (w *wgpuTexture) create(t *Texture) {
	layers := uint32(t.Layers())
	tex, err := w.device.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         t.Name(),
		Usage:         toWGPUTextureUsage(t.Usage()),
		Dimension:     wgpu.TextureDimension2D,
		Size:          wgpu.Extent3D{Width: uint32(t.Width()), Height: uint32(t.Height()), DepthOrArrayLayers: layers},
		Format:        toWGPUTextureFormat(t.Format()),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		logger.Logger().Error("create texture", "texture", t.Name(), "error", err)
		return
	}
	w.texture = tex

	var viewDesc *wgpu.TextureViewDescriptor
	if t.Cubemap() {
		viewDesc = &wgpu.TextureViewDescriptor{
			Label:           t.Name() + " Cube",
			Format:          toWGPUTextureFormat(t.Format()),
			Dimension:       wgpu.TextureViewDimensionCube,
			MipLevelCount:   1,
			ArrayLayerCount: 6,
			Aspect:          wgpu.TextureAspectAll,
		}
	}
	w.view, err = tex.CreateView(viewDesc)
	if err != nil {
		logger.Logger().Error("create texture view", "texture", t.Name(), "error", err)
	}

	w.sampler, err = w.device.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         t.Name() + " Sampler",
		AddressModeU:  toWGPUAddressMode(t.AddressMode()),
		AddressModeV:  toWGPUAddressMode(t.AddressMode()),
		AddressModeW:  toWGPUAddressMode(t.AddressMode()),
		MagFilter:     toWGPUFilterMode(t.Filter()),
		MinFilter:     toWGPUFilterMode(t.Filter()),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
		Compare:       toWGPUCompare(t.Compare()),
	})
	if err != nil {
		logger.Logger().Error("create sampler", "texture", t.Name(), "error", err)
	}
}

// Upload writes the CPU pixels of every layer. Textures without pixels only change version.
func (w *wgpuTexture) Upload(t *Texture) {
	if w.texture == nil || len(t.Pixels()) == 0 || t.IsDepth() {
		return
	}
	bpr := uint32(t.Width()) * texelSize(t.Format())
	w.device.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: w.texture, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspectAll},
		t.Pixels(),
		&wgpu.TextureDataLayout{Offset: 0, BytesPerRow: bpr, RowsPerImage: uint32(t.Height())},
		&wgpu.Extent3D{Width: uint32(t.Width()), Height: uint32(t.Height()), DepthOrArrayLayers: uint32(t.Layers())},
	)
}

func (w *wgpuTexture) Destroy() {
	for _, v := range w.faceViews {
		v.Release()
	}
	if w.sampler != nil {
		w.sampler.Release()
	}
	if w.view != nil {
		w.view.Release()
	}
	if w.texture != nil {
		w.texture.Release()
	}
	w.faceViews, w.sampler, w.view, w.texture = nil, nil, nil, nil
}

type wgpuBuffer struct {
	device *wgpuDevice
	buffer *wgpu.Buffer
	size   int
}

func (b *wgpuBuffer) Write(data []byte) {
	if b.buffer == nil || len(data) == 0 {
		return
	}
	if n := len(data); n%4 != 0 {
		padded := make([]byte, (n+3)&^3)
		copy(padded, data)
		data = padded
	}
	if len(data) > b.size {
		data = data[:b.size]
	}
	b.device.queue.WriteBuffer(b.buffer, 0, data)
}

func (b *wgpuBuffer) Destroy() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}

type wgpuBindGroup struct {
	device *wgpuDevice
	group  *wgpu.BindGroup
}

// Update recreates the wgpu bind group from the current bindings. Groups with unbound slots keep
// their previous backend object.
func (g *wgpuBindGroup) Update(bg *BindGroup) {
	f := bg.Format()
	layout, err := g.device.bindGroupLayout(f)
	if err != nil {
		logger.Logger().Error("create bind group layout", "format", f.ID(), "error", err)
		return
	}
	entries := make([]wgpu.BindGroupEntry, 0, f.NumSlots())
	for i, u := range f.UniformBuffers() {
		ub := bg.UniformBuffers()[i]
		if ub == nil {
			logger.Logger().Warn("uniform buffer slot unbound", "name", u.Name)
			return
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(u.Slot), Buffer: ub.Impl().(*wgpuBuffer).buffer, Size: wgpu.WholeSize})
	}
	for i, tf := range f.Textures() {
		t := bg.Textures()[i]
		if t == nil {
			logger.Logger().Warn("texture slot unbound", "name", tf.Name)
			return
		}
		impl := t.Impl().(*wgpuTexture)
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(tf.Slot), TextureView: impl.view})
		if tf.HasSampler {
			entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(tf.Slot + 1), Sampler: impl.sampler})
		}
	}
	for i, sf := range f.StorageTextures() {
		t := bg.StorageTextures()[i]
		if t == nil {
			logger.Logger().Warn("storage texture slot unbound", "name", sf.Name)
			return
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(sf.Slot), TextureView: t.Impl().(*wgpuTexture).view})
	}
	for i, sf := range f.StorageBuffers() {
		sb := bg.StorageBuffers()[i]
		if sb == nil {
			logger.Logger().Warn("storage buffer slot unbound", "name", sf.Name)
			return
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(sf.Slot), Buffer: sb.Impl().(*wgpuBuffer).buffer, Size: wgpu.WholeSize})
	}

	group, err := g.device.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("Bind Group %d", bg.ID()),
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		logger.Logger().Error("create bind group", "id", bg.ID(), "error", err)
		return
	}
	g.Destroy()
	g.group = group
}

func (g *wgpuBindGroup) Destroy() {
	if g.group != nil {
		g.group.Release()
		g.group = nil
	}
}

type wgpuRenderTarget struct {
	colorView *wgpu.TextureView
	depthView *wgpu.TextureView
	depthTex  *wgpu.Texture
}

func (r *wgpuRenderTarget) Destroy() {
	if r.depthTex != nil {
		if r.depthView != nil {
			r.depthView.Release()
		}
		r.depthTex.Release()
	}
	r.colorView, r.depthView, r.depthTex = nil, nil, nil
}

type wgpuShader struct {
	module *wgpu.ShaderModule
}

func (s *wgpuShader) Destroy() {
	if s.module != nil {
		s.module.Release()
		s.module = nil
	}
}

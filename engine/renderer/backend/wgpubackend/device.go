// Package wgpubackend implements the gpu interfaces on WebGPU.
//
// Secondary streams are command.Recorder instances filled on worker goroutines. A primary stream
// keeps the order of its passes and secondaries and the whole frame is replayed into one native
// render pass on Submit, so the wgpu objects are only driven by the submitting goroutine.
//
// Per-draw parameter blocks are packed into a per-stream uniform buffer at a fixed stride and
// bound with a dynamic offset. WebGPU has no host-visible fences or binary semaphores, so a fence
// keeps the submission index of its frame and waiting polls the device up to that index only.
// Semaphores only carry ordering the queue already guarantees.
package wgpubackend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cull/log"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	errForeignObject  = errors.New("wgpu: object belongs to another backend")
	errStreamNotEnded = errors.New("wgpu: stream submitted before End")
	errFenceSignaled  = errors.New("wgpu: submit with a signaled fence")
	errFencePending   = errors.New("wgpu: fence reset while its submission is pending")
	errFenceIdle      = errors.New("wgpu: wait on a reset fence that was never submitted")
)

type texture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	group   *wgpu.BindGroup
}

// shadowMap is a square depth texture with the bind group the opaque pipeline samples it through.
type shadowMap struct {
	texture
	size uint32
}

func (t *texture) release() {
	t.group.Release()
	t.view.Release()
	t.texture.Release()
}

// Device owns the WebGPU instance, adapter, device and queue, plus every resource created
// through its Allocator methods.
type Device struct {
	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	logger   log.Logger

	forceFallbackAdapter bool
	presentMode          wgpu.PresentMode
	clearColor           wgpu.Color

	layouts    bindLayouts
	sampler    *wgpu.Sampler
	comparison *wgpu.Sampler
	whiteTex   *texture
	noShadow   *shadowMap
	nextHandle uint32
	buffers    map[gpu.BufferHandle]*wgpu.Buffer
	textures   map[gpu.TextureHandle]*texture
	shadowMaps map[gpu.TextureHandle]*shadowMap
	pipelines  map[gpu.PipelineHandle]*pipeline

	surface  *Surface
	inFlight []*Fence
	released bool
}

var _ gpu.Device = &Device{}

// Open creates the device together with the surface it presents to. The surface is configured at
// the given size before Open returns.
//
// Parameters:
//   - descriptor: the platform surface descriptor of the window
//   - width, height: the initial framebuffer size in pixels
//   - opts: functional options (fallback adapter, present mode, clear color, logger)
//
// Returns:
//   - *Device: the device
//   - *Surface: the configured surface
//   - error: an error if no adapter or device could be obtained
func Open(descriptor *wgpu.SurfaceDescriptor, width, height uint32, opts ...DeviceBuilderOption) (*Device, *Surface, error) {
	runtime.LockOSThread()
	d := &Device{
		instance:    wgpu.CreateInstance(nil),
		logger:      log.New("wgpu"),
		presentMode: wgpu.PresentModeFifo,
		clearColor:  wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
		buffers:     make(map[gpu.BufferHandle]*wgpu.Buffer),
		textures:    make(map[gpu.TextureHandle]*texture),
		shadowMaps:  make(map[gpu.TextureHandle]*shadowMap),
		pipelines:   make(map[gpu.PipelineHandle]*pipeline),
	}
	for _, opt := range opts {
		opt(d)
	}

	s := &Surface{device: d, surface: d.instance.CreateSurface(descriptor)}
	d.surface = s

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    s.surface,
	})
	if err != nil {
		d.release()
		return nil, nil, fmt.Errorf("wgpu: request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		d.release()
		return nil, nil, fmt.Errorf("wgpu: request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if err := d.init(); err != nil {
		d.release()
		return nil, nil, err
	}
	if err := s.configure(width, height); err != nil {
		d.release()
		return nil, nil, err
	}
	d.logger.Infof("device ready: %dx%d, present mode %v", width, height, d.presentMode)
	return d, s, nil
}

// init creates the objects shared by every pipeline, the white texture bound when a draw has no
// texture and the cleared shadow map bound when the opaque pipeline has none.
func (d *Device) init() error {
	var err error
	if d.layouts, err = newBindLayouts(d.device); err != nil {
		return err
	}
	d.sampler, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Material Sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("wgpu: sampler: %w", err)
	}
	d.comparison, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Shadow Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		Compare:       wgpu.CompareFunctionLessEqual,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("wgpu: shadow sampler: %w", err)
	}
	if d.whiteTex, err = d.newTexture("White", 1, 1, []byte{255, 255, 255, 255}); err != nil {
		return err
	}
	d.noShadow, err = d.newShadowMap("No Shadow", 1)
	return err
}

func (d *Device) handle() uint32 {
	d.nextHandle++
	return d.nextHandle
}

func (d *Device) CreateBuffer(label string, usage gpu.BufferUsage, data []byte) (gpu.BufferHandle, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("wgpu: buffer %q is empty", label)
	}
	var u wgpu.BufferUsage
	switch usage {
	case gpu.BufferUsageVertex:
		u = wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	case gpu.BufferUsageIndex:
		u = wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	default:
		return 0, fmt.Errorf("wgpu: buffer %q has unknown usage %d", label, usage)
	}
	buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    u,
	})
	if err != nil {
		return 0, fmt.Errorf("wgpu: buffer %q: %w", label, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.BufferHandle(d.handle())
	d.buffers[h] = buf
	return h, nil
}

func (d *Device) CreateTexture(label string, width, height uint32, pixels []byte) (gpu.TextureHandle, error) {
	if uint32(len(pixels)) != width*height*4 {
		return 0, fmt.Errorf("wgpu: texture %q has %d bytes, want %d", label, len(pixels), width*height*4)
	}
	t, err := d.newTexture(label, width, height, pixels)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.TextureHandle(d.handle())
	d.textures[h] = t
	return h, nil
}

func (d *Device) newTexture(label string, width, height uint32, pixels []byte) (*texture, error) {
	size := wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: texture %q: %w", label, err)
	}
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  width * 4,
			RowsPerImage: height,
		},
		&size,
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("wgpu: texture %q view: %w", label, err)
	}
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + " Bind Group",
		Layout: d.layouts.texture,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: d.sampler},
		},
	})
	if err != nil {
		view.Release()
		tex.Release()
		return nil, fmt.Errorf("wgpu: texture %q bind group: %w", label, err)
	}
	return &texture{texture: tex, view: view, group: group}, nil
}

func (d *Device) CreateShadowMap(label string, size uint32) (gpu.TextureHandle, error) {
	if size == 0 {
		return 0, fmt.Errorf("wgpu: shadow map %q has size 0", label)
	}
	m, err := d.newShadowMap(label, size)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.TextureHandle(d.handle())
	d.shadowMaps[h] = m
	return h, nil
}

// newShadowMap creates a depth texture a shadow pass renders into and binds it with the
// comparison sampler. A new map is cleared to the far plane, so sampling it lights everything.
func (d *Device) newShadowMap(label string, size uint32) (*shadowMap, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: size, Height: size, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        shadowDepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: shadow map %q: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("wgpu: shadow map %q view: %w", label, err)
	}
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + " Bind Group",
		Layout: d.layouts.shadow,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: d.comparison},
		},
	})
	if err != nil {
		view.Release()
		tex.Release()
		return nil, fmt.Errorf("wgpu: shadow map %q bind group: %w", label, err)
	}
	m := &shadowMap{texture: texture{texture: tex, view: view, group: group}, size: size}
	if err := d.clearShadowMap(m); err != nil {
		m.release()
		return nil, err
	}
	return m, nil
}

// clearShadowMap submits a depth-only pass that clears m to 1.
func (d *Device) clearShadowMap(m *shadowMap) error {
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("wgpu: shadow map clear: %w", err)
	}
	defer encoder.Release()
	pass := encoder.BeginRenderPass(shadowPassDescriptor(m.view))
	pass.End()
	pass.Release()
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("wgpu: shadow map clear: %w", err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func shadowPassDescriptor(view *wgpu.TextureView) *wgpu.RenderPassDescriptor {
	return &wgpu.RenderPassDescriptor{
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	}
}

func (d *Device) CreatePipeline(label string, kind gpu.PipelineKind) (gpu.PipelineHandle, error) {
	p, err := newPipeline(d.device, &d.layouts, d.surface.format, label, kind)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.PipelineHandle(d.handle())
	d.pipelines[h] = p
	return h, nil
}

func (d *Device) NewPrimaryStream(label string) (gpu.PrimaryStream, error) {
	return &PrimaryStream{label: label, params: &paramsArena{label: label + " Params"}}, nil
}

func (d *Device) NewSecondaryStream(label string) (gpu.SecondaryStream, error) {
	return command.NewRecorder(label), nil
}

func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	return &Fence{device: d, signaled: signaled}, nil
}

func (d *Device) NewSemaphore() (gpu.Semaphore, error) {
	return &Semaphore{}, nil
}

func (d *Device) NewUniformBuffer(label string, size uint64) (gpu.UniformBuffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  common.AlignUp(size, 4),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: uniform %q: %w", label, err)
	}
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + " Bind Group",
		Layout: d.layouts.frame,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Offset: 0, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		buf.Release()
		return nil, fmt.Errorf("wgpu: uniform %q bind group: %w", label, err)
	}
	return &UniformBuffer{label: label, device: d, buffer: buf, group: group, size: size}, nil
}

// Submit replays the primary stream and its secondaries into one command buffer and queues it.
// The parameter blocks of every draw are uploaded before the command buffer is submitted.
func (d *Device) Submit(info gpu.SubmitInfo) error {
	p, ok := info.Stream.(*PrimaryStream)
	if !ok {
		return errForeignObject
	}
	if !p.ended {
		return fmt.Errorf("%s: %w", p.label, errStreamNotEnded)
	}
	var fence *Fence
	if info.Fence != nil {
		if fence, ok = info.Fence.(*Fence); !ok {
			return errForeignObject
		}
		if fence.Signaled() {
			return errFenceSignaled
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return gpu.ErrReleased
	}

	if err := p.params.upload(d, p.forEachParams); err != nil {
		return err
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("%s: command encoder: %w", p.label, err)
	}
	defer encoder.Release()

	uniforms := make([]*UniformBuffer, 0, 1)
	r := &replayer{device: d, params: p.params, uniforms: &uniforms}
	for _, rp := range p.passes {
		if err := d.encodePass(encoder, r, p.label, rp); err != nil {
			return err
		}
	}
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("%s: finish: %w", p.label, err)
	}
	index := d.queue.Submit(commandBuffer)
	commandBuffer.Release()

	p.inFlight.Store(true)
	p.forEachSecondary((*command.Recorder).MarkInFlight)
	for _, u := range uniforms {
		u.inFlight++
	}
	if fence != nil {
		fence.arm(index, p, uniforms)
		d.inFlight = append(d.inFlight, fence)
	}
	return nil
}

// renderPassDescriptor returns the attachments of target: the target's shadow map alone, or the
// acquired surface image with the surface depth buffer.
func (d *Device) renderPassDescriptor(target gpu.RenderTarget) (*wgpu.RenderPassDescriptor, error) {
	if target.ShadowMap != 0 {
		m, ok := d.shadowMaps[target.ShadowMap]
		if !ok {
			return nil, fmt.Errorf("render pass targets unknown shadow map %d", target.ShadowMap)
		}
		if target.Extent.Width != m.size || target.Extent.Height != m.size {
			return nil, fmt.Errorf("render pass targets shadow map %d at %dx%d, want %dx%d",
				target.ShadowMap, target.Extent.Width, target.Extent.Height, m.size, m.size)
		}
		return shadowPassDescriptor(m.view), nil
	}

	view := d.surface.currentView
	depth := d.surface.depthView
	if view == nil || target.Image != d.surface.image {
		return nil, fmt.Errorf("render pass targets image %d, which is not acquired", target.Image)
	}
	return &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:          view,
				ResolveTarget: nil,
				LoadOp:        wgpu.LoadOpClear,
				StoreOp:       wgpu.StoreOpStore,
				ClearValue:    d.clearColor,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            depth,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}, nil
}

func (d *Device) encodePass(encoder *wgpu.CommandEncoder, r *replayer, label string, rp recordedPass) error {
	desc, err := d.renderPassDescriptor(rp.target)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	pass := encoder.BeginRenderPass(desc)
	r.pass = pass
	for _, s := range rp.secondaries {
		s.List().Replay(r)
		if r.err != nil {
			break
		}
	}
	pass.End()
	pass.Release()
	if r.err != nil {
		return fmt.Errorf("%s: %w", label, r.err)
	}
	return nil
}

// poll completes every armed fence once the queue has drained. With wait set it blocks until
// the queue is empty.
func (d *Device) poll(wait bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released || d.device == nil {
		return
	}
	empty := d.device.Poll(wait, nil)
	if !empty && !wait {
		return
	}
	d.completeFences(len(d.inFlight))
}

// waitFor blocks until the submission at index has executed and completes the fences armed by it
// and by earlier submissions. Later submissions stay in flight.
func (d *Device) waitFor(index wgpu.SubmissionIndex) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released || d.device == nil {
		return
	}
	if d.device.Poll(true, &wgpu.WrappedSubmissionIndex{Queue: d.queue, SubmissionIndex: index}) {
		d.completeFences(len(d.inFlight))
		return
	}
	d.completeFences(completedPrefix(d.inFlight, index))
}

// completedPrefix returns how many of the fences, in submission order, were armed at or before
// index.
func completedPrefix(fences []*Fence, index wgpu.SubmissionIndex) int {
	n := 0
	for n < len(fences) && fences[n].index <= index {
		n++
	}
	return n
}

// completeFences completes the first n in-flight fences and drops them from the list. The device
// lock is held.
func (d *Device) completeFences(n int) {
	for _, f := range d.inFlight[:n] {
		f.complete()
	}
	rest := copy(d.inFlight, d.inFlight[n:])
	clear(d.inFlight[rest:])
	d.inFlight = d.inFlight[:rest]
}

func (d *Device) WaitIdle() error {
	d.poll(true)
	return nil
}

func (d *Device) Release() {
	d.WaitIdle()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release()
}

func (d *Device) release() {
	if d.released {
		return
	}
	d.released = true
	for _, p := range d.pipelines {
		p.render.Release()
	}
	for _, t := range d.textures {
		t.release()
	}
	for _, m := range d.shadowMaps {
		m.release()
	}
	for _, b := range d.buffers {
		b.Release()
	}
	if d.whiteTex != nil {
		d.whiteTex.release()
	}
	if d.noShadow != nil {
		d.noShadow.release()
	}
	for _, s := range []*wgpu.Sampler{d.comparison, d.sampler} {
		if s != nil {
			s.Release()
		}
	}
	d.layouts.release()
	if d.surface != nil {
		d.surface.release()
	}
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	d.instance.Release()
}

func (d *Device) texture(h gpu.TextureHandle) *texture {
	if t, ok := d.textures[h]; ok {
		return t
	}
	return d.whiteTex
}

func (d *Device) shadowMap(h gpu.TextureHandle) *shadowMap {
	if m, ok := d.shadowMaps[h]; ok {
		return m
	}
	return d.noShadow
}

// Surface returns the surface created by Open.
func (d *Device) Surface() *Surface { return d.surface }

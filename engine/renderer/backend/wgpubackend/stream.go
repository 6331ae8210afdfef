package wgpubackend

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pass"
	"github.com/cogentcore/webgpu/wgpu"
)

type recordedPass struct {
	target      gpu.RenderTarget
	secondaries []*command.Recorder
}

// PrimaryStream collects render passes and the secondaries they execute. Nothing is encoded
// until the stream is submitted.
type PrimaryStream struct {
	label     string
	recording bool
	ended     bool
	inPass    bool
	passes    []recordedPass
	params    *paramsArena
	err       error
	inFlight  atomic.Bool
}

var _ gpu.PrimaryStream = &PrimaryStream{}

func (p *PrimaryStream) fail(err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: %w", p.label, err)
	}
}

func (p *PrimaryStream) Begin() error {
	if p.inFlight.Load() {
		return fmt.Errorf("%s: begin: %w", p.label, gpu.ErrStreamInFlight)
	}
	if p.recording {
		return fmt.Errorf("%s: begin: %w", p.label, gpu.ErrConcurrentRecording)
	}
	p.recording, p.ended, p.inPass = true, false, false
	p.passes = p.passes[:0]
	p.err = nil
	return nil
}

func (p *PrimaryStream) BeginRenderPass(target gpu.RenderTarget) {
	switch {
	case !p.recording:
		p.fail(gpu.ErrNotRecording)
	case p.inPass:
		p.fail(errors.New("nested render pass"))
	default:
		p.inPass = true
		p.passes = append(p.passes, recordedPass{target: target})
	}
}

func (p *PrimaryStream) ExecuteSecondary(streams ...gpu.SecondaryStream) {
	if !p.recording || !p.inPass {
		p.fail(gpu.ErrNotRecording)
		return
	}
	cur := &p.passes[len(p.passes)-1]
	for _, s := range streams {
		rec, ok := s.(*command.Recorder)
		if !ok {
			p.fail(errForeignObject)
			return
		}
		if rec.Recording() {
			p.fail(fmt.Errorf("secondary %s executed before End", rec.Label()))
			return
		}
		cur.secondaries = append(cur.secondaries, rec)
	}
}

func (p *PrimaryStream) EndRenderPass() {
	if !p.inPass {
		p.fail(errors.New("end render pass outside a pass"))
		return
	}
	p.inPass = false
}

func (p *PrimaryStream) End() error {
	if !p.recording {
		return fmt.Errorf("%s: end: %w", p.label, gpu.ErrNotRecording)
	}
	if p.inPass {
		p.fail(errors.New("end with an open render pass"))
	}
	p.recording, p.ended = false, true
	return p.err
}

func (p *PrimaryStream) Reset() error {
	if p.inFlight.Load() {
		return fmt.Errorf("%s: reset: %w", p.label, gpu.ErrStreamInFlight)
	}
	p.recording, p.ended, p.inPass = false, false, false
	p.passes = p.passes[:0]
	p.err = nil
	return nil
}

func (p *PrimaryStream) Release() {
	p.passes = nil
	p.params.release()
}

func (p *PrimaryStream) forEachSecondary(fn func(*command.Recorder)) {
	for _, rp := range p.passes {
		for _, s := range rp.secondaries {
			fn(s)
		}
	}
}

// forEachParams calls fn with every parameter block in replay order.
func (p *PrimaryStream) forEachParams(fn func([]byte)) {
	for _, rp := range p.passes {
		for _, s := range rp.secondaries {
			l := s.List()
			for _, c := range l.Commands() {
				if c.Op == command.OpPushParams {
					fn(l.Params(c))
				}
			}
		}
	}
}

// paramsArena packs per-draw parameter blocks into one uniform buffer, one block per stride, and
// grows the buffer when a frame pushes more blocks than it holds.
type paramsArena struct {
	label    string
	stride   uint64
	staging  []byte
	capacity uint64
	buffer   *wgpu.Buffer
	group    *wgpu.BindGroup
}

// upload writes every block yielded by each into the arena's buffer.
func (a *paramsArena) upload(d *Device, each func(fn func([]byte))) error {
	if a.stride == 0 {
		a.stride = paramsStride(uint64(wgpu.DefaultLimits().MinUniformBufferOffsetAlignment))
	}
	a.staging = packParams(a.staging[:0], a.stride, each)

	if n := uint64(len(a.staging)); n > a.capacity {
		if err := a.grow(d, n); err != nil {
			return err
		}
	}
	if err := d.queue.WriteBuffer(a.buffer, 0, a.staging); err != nil {
		return fmt.Errorf("%s: write: %w", a.label, err)
	}
	return nil
}

// paramsStride rounds the largest parameter block up to the dynamic offset alignment.
func paramsStride(align uint64) uint64 {
	return common.AlignUp(pass.MaxParamsSize, align)
}

// packParams appends one stride-sized slot per block to dst. At least one slot is always
// written because the pipeline layout needs a bound params group even for a frame with no draws.
func packParams(dst []byte, stride uint64, each func(fn func([]byte))) []byte {
	each(func(block []byte) {
		off := len(dst)
		dst = append(dst, make([]byte, stride)...)
		copy(dst[off:], block)
	})
	if len(dst) == 0 {
		dst = append(dst, make([]byte, stride)...)
	}
	return dst
}

func (a *paramsArena) grow(d *Device, need uint64) error {
	capacity := max(a.capacity*2, need)
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: a.label,
		Size:  capacity,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("%s: grow to %d bytes: %w", a.label, capacity, err)
	}
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  a.label + " Bind Group",
		Layout: d.layouts.params,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Offset: 0, Size: a.stride},
		},
	})
	if err != nil {
		buf.Release()
		return fmt.Errorf("%s: bind group: %w", a.label, err)
	}
	a.release()
	a.buffer, a.group, a.capacity = buf, group, capacity
	return nil
}

func (a *paramsArena) release() {
	if a.group != nil {
		a.group.Release()
		a.group = nil
	}
	if a.buffer != nil {
		a.buffer.Release()
		a.buffer = nil
	}
	a.capacity = 0
}

// replayer encodes recorded commands into a native render pass.
type replayer struct {
	device   *Device
	pass     *wgpu.RenderPassEncoder
	params   *paramsArena
	block    uint32
	uniforms *[]*UniformBuffer
	err      error
}

var _ command.Executor = &replayer{}

func (r *replayer) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *replayer) SetViewport(vp gpu.Viewport) {
	r.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
}

func (r *replayer) BindPipeline(h gpu.PipelineHandle) {
	p, ok := r.device.pipelines[h]
	if !ok {
		r.fail(fmt.Errorf("unknown pipeline %d", h))
		return
	}
	r.pass.SetPipeline(p.render)
	r.pass.SetBindGroup(groupTexture, r.device.whiteTex.group, nil)
	r.pass.SetBindGroup(groupParams, r.params.group, []uint32{0})
	if p.kind == gpu.PipelineOpaque {
		r.pass.SetBindGroup(groupShadow, r.device.noShadow.group, nil)
	}
}

func (r *replayer) BindFrameUniforms(u gpu.UniformBuffer) {
	ub, ok := u.(*UniformBuffer)
	if !ok {
		r.fail(errForeignObject)
		return
	}
	r.pass.SetBindGroup(groupFrame, ub.group, nil)
	for _, seen := range *r.uniforms {
		if seen == ub {
			return
		}
	}
	*r.uniforms = append(*r.uniforms, ub)
}

// BindTexture binds the diffuse and shadow slots. The other material slots are carried in the
// parameter block.
func (r *replayer) BindTexture(slot uint32, t gpu.TextureHandle) {
	switch slot {
	case gpu.TextureSlotDiffuse:
		r.pass.SetBindGroup(groupTexture, r.device.texture(t).group, nil)
	case gpu.TextureSlotShadow:
		r.pass.SetBindGroup(groupShadow, r.device.shadowMap(t).group, nil)
	}
}

func (r *replayer) BindVertexBuffer(h gpu.BufferHandle) {
	b, ok := r.device.buffers[h]
	if !ok {
		r.fail(fmt.Errorf("unknown vertex buffer %d", h))
		return
	}
	r.pass.SetVertexBuffer(0, b, 0, wgpu.WholeSize)
}

func (r *replayer) BindIndexBuffer(h gpu.BufferHandle, format gpu.IndexFormat) {
	b, ok := r.device.buffers[h]
	if !ok {
		r.fail(fmt.Errorf("unknown index buffer %d", h))
		return
	}
	f := wgpu.IndexFormatUint32
	if format == gpu.IndexFormatUint16 {
		f = wgpu.IndexFormatUint16
	}
	r.pass.SetIndexBuffer(b, f, 0, wgpu.WholeSize)
}

func (r *replayer) PushParams(_ []byte) {
	off := uint64(r.block) * r.params.stride
	r.pass.SetBindGroup(groupParams, r.params.group, []uint32{uint32(off)})
	r.block++
}

func (r *replayer) DrawIndexed(indexCount, instanceCount uint32) {
	r.pass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
}

// UniformBuffer is a host-writable uniform block bound at group 0.
type UniformBuffer struct {
	label    string
	device   *Device
	buffer   *wgpu.Buffer
	group    *wgpu.BindGroup
	size     uint64
	inFlight int
}

var _ gpu.UniformBuffer = &UniformBuffer{}

func (u *UniformBuffer) Write(data []byte) error {
	u.device.mu.Lock()
	defer u.device.mu.Unlock()
	if u.inFlight > 0 {
		return fmt.Errorf("%s: write: %w", u.label, gpu.ErrBufferInFlight)
	}
	if uint64(len(data)) > u.size {
		return fmt.Errorf("%s: write of %d bytes exceeds size %d", u.label, len(data), u.size)
	}
	if len(data)%4 != 0 {
		data = append(data[:len(data):len(data)], make([]byte, 4-len(data)%4)...)
	}
	if err := u.device.queue.WriteBuffer(u.buffer, 0, data); err != nil {
		return fmt.Errorf("%s: write: %w", u.label, err)
	}
	return nil
}

func (u *UniformBuffer) Size() uint64 { return u.size }

func (u *UniformBuffer) Release() {
	if u.group != nil {
		u.group.Release()
		u.buffer.Release()
		u.group, u.buffer = nil, nil
	}
}

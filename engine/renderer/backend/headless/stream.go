package headless

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
)

// Markers separating render passes and secondary streams in an encoded primary stream.
const (
	markerBeginPass byte = 0xF0
	markerSecondary byte = 0xF1
	markerEndPass   byte = 0xF2
)

type recordedPass struct {
	target      gpu.RenderTarget
	secondaries []*command.Recorder
}

// PrimaryStream records render passes that execute command.Recorder secondaries.
type PrimaryStream struct {
	label     string
	recording bool
	ended     bool
	inPass    bool
	passes    []recordedPass
	err       error
	inFlight  atomic.Int32
}

var _ gpu.PrimaryStream = &PrimaryStream{}

func (p *PrimaryStream) fail(err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: %w", p.label, err)
	}
}

func (p *PrimaryStream) Begin() error {
	if p.inFlight.Load() > 0 {
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
	if p.inFlight.Load() > 0 {
		return fmt.Errorf("%s: reset: %w", p.label, gpu.ErrStreamInFlight)
	}
	p.recording, p.ended, p.inPass = false, false, false
	p.passes = p.passes[:0]
	p.err = nil
	return nil
}

func (p *PrimaryStream) Release() { p.passes = nil }

// Encode appends the stable encoding of every pass and executed secondary to dst.
func (p *PrimaryStream) Encode(dst []byte) []byte {
	for _, pass := range p.passes {
		dst = append(dst, markerBeginPass)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(pass.target.Image))
		dst = binary.LittleEndian.AppendUint32(dst, pass.target.Extent.Width)
		dst = binary.LittleEndian.AppendUint32(dst, pass.target.Extent.Height)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(pass.target.ShadowMap))
		for _, s := range pass.secondaries {
			dst = append(dst, markerSecondary)
			dst = s.List().Encode(dst)
		}
		dst = append(dst, markerEndPass)
	}
	return dst
}

func (p *PrimaryStream) draws() int {
	n := 0
	for _, pass := range p.passes {
		for _, s := range pass.secondaries {
			n += s.List().Draws()
		}
	}
	return n
}

func (p *PrimaryStream) forEachSecondary(fn func(*command.Recorder)) {
	for _, pass := range p.passes {
		for _, s := range pass.secondaries {
			fn(s)
		}
	}
}

// UniformBuffer is host memory standing in for a uniform block.
type UniformBuffer struct {
	label    string
	data     []byte
	inFlight atomic.Int32
}

var _ gpu.UniformBuffer = &UniformBuffer{}

func (u *UniformBuffer) Write(data []byte) error {
	if u.inFlight.Load() > 0 {
		return fmt.Errorf("%s: write: %w", u.label, gpu.ErrBufferInFlight)
	}
	if len(data) > len(u.data) {
		return fmt.Errorf("%s: write of %d bytes exceeds size %d", u.label, len(data), len(u.data))
	}
	copy(u.data, data)
	return nil
}

func (u *UniformBuffer) Size() uint64 { return uint64(len(u.data)) }

// Bytes returns a copy of the buffer contents.
func (u *UniformBuffer) Bytes() []byte { return append([]byte(nil), u.data...) }

func (u *UniformBuffer) Release() { u.data = nil }

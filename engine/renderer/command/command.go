// Package command holds the backend-neutral form of recorded draw commands.
//
// Secondary streams are recorded on worker goroutines into a List, which stores fixed-size
// command records plus a byte arena for parameter blocks. Backends replay a List into their
// native encoder on the submitting goroutine, so the native API is only ever touched from one
// goroutine while recording itself stays parallel.
package command

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
)

// Op is the kind of a recorded command.
type Op uint8

const (
	OpSetViewport Op = iota + 1
	OpBindPipeline
	OpBindFrameUniforms
	OpBindTexture
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpPushParams
	OpDrawIndexed
)

func (o Op) String() string {
	switch o {
	case OpSetViewport:
		return "SetViewport"
	case OpBindPipeline:
		return "BindPipeline"
	case OpBindFrameUniforms:
		return "BindFrameUniforms"
	case OpBindTexture:
		return "BindTexture"
	case OpBindVertexBuffer:
		return "BindVertexBuffer"
	case OpBindIndexBuffer:
		return "BindIndexBuffer"
	case OpPushParams:
		return "PushParams"
	case OpDrawIndexed:
		return "DrawIndexed"
	}
	return "Unknown"
}

// Command is one recorded command. The meaning of A and B depends on Op:
//
//	BindPipeline       A = pipeline
//	BindFrameUniforms  A = index into the list's uniform table
//	BindTexture        A = slot, B = texture
//	BindVertexBuffer   A = buffer
//	BindIndexBuffer    A = buffer, B = index format
//	PushParams         A = arena offset, B = length
//	DrawIndexed        A = index count, B = instance count
type Command struct {
	Op       Op
	A, B     uint32
	Viewport gpu.Viewport
}

// Executor receives replayed commands. Backends implement it over their native encoder.
type Executor interface {
	SetViewport(vp gpu.Viewport)
	BindPipeline(p gpu.PipelineHandle)
	BindFrameUniforms(u gpu.UniformBuffer)
	BindTexture(slot uint32, t gpu.TextureHandle)
	BindVertexBuffer(b gpu.BufferHandle)
	BindIndexBuffer(b gpu.BufferHandle, format gpu.IndexFormat)
	PushParams(data []byte)
	DrawIndexed(indexCount, instanceCount uint32)
}

// List is a reusable sequence of commands. Reset keeps the backing storage.
type List struct {
	cmds     []Command
	data     []byte
	uniforms []gpu.UniformBuffer
	draws    int
}

// Reset empties the list, retaining capacity.
func (l *List) Reset() {
	l.cmds = l.cmds[:0]
	l.data = l.data[:0]
	clear(l.uniforms)
	l.uniforms = l.uniforms[:0]
	l.draws = 0
}

// Len returns the number of recorded commands.
func (l *List) Len() int { return len(l.cmds) }

// Draws returns the number of recorded DrawIndexed commands.
func (l *List) Draws() int { return l.draws }

// Commands returns the recorded commands. The slice is only valid until the next Reset.
func (l *List) Commands() []Command { return l.cmds }

// Params returns the parameter block recorded by a PushParams command.
func (l *List) Params(c Command) []byte {
	return l.data[c.A : c.A+c.B]
}

// Uniform returns the uniform buffer recorded by a BindFrameUniforms command.
func (l *List) Uniform(c Command) gpu.UniformBuffer {
	return l.uniforms[c.A]
}

func (l *List) setViewport(vp gpu.Viewport) {
	l.cmds = append(l.cmds, Command{Op: OpSetViewport, Viewport: vp})
}

func (l *List) bindPipeline(p gpu.PipelineHandle) {
	l.cmds = append(l.cmds, Command{Op: OpBindPipeline, A: uint32(p)})
}

func (l *List) bindFrameUniforms(u gpu.UniformBuffer) {
	idx := -1
	for i, existing := range l.uniforms {
		if existing == u {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = len(l.uniforms)
		l.uniforms = append(l.uniforms, u)
	}
	l.cmds = append(l.cmds, Command{Op: OpBindFrameUniforms, A: uint32(idx)})
}

func (l *List) bindTexture(slot uint32, t gpu.TextureHandle) {
	l.cmds = append(l.cmds, Command{Op: OpBindTexture, A: slot, B: uint32(t)})
}

func (l *List) bindVertexBuffer(b gpu.BufferHandle) {
	l.cmds = append(l.cmds, Command{Op: OpBindVertexBuffer, A: uint32(b)})
}

func (l *List) bindIndexBuffer(b gpu.BufferHandle, format gpu.IndexFormat) {
	l.cmds = append(l.cmds, Command{Op: OpBindIndexBuffer, A: uint32(b), B: uint32(format)})
}

func (l *List) pushParams(data []byte) {
	off := len(l.data)
	l.data = append(l.data, data...)
	l.cmds = append(l.cmds, Command{Op: OpPushParams, A: uint32(off), B: uint32(len(data))})
}

func (l *List) drawIndexed(indexCount, instanceCount uint32) {
	l.cmds = append(l.cmds, Command{Op: OpDrawIndexed, A: indexCount, B: instanceCount})
	l.draws++
}

// Replay feeds every command, in recording order, to e.
func (l *List) Replay(e Executor) {
	for _, c := range l.cmds {
		switch c.Op {
		case OpSetViewport:
			e.SetViewport(c.Viewport)
		case OpBindPipeline:
			e.BindPipeline(gpu.PipelineHandle(c.A))
		case OpBindFrameUniforms:
			e.BindFrameUniforms(l.uniforms[c.A])
		case OpBindTexture:
			e.BindTexture(c.A, gpu.TextureHandle(c.B))
		case OpBindVertexBuffer:
			e.BindVertexBuffer(gpu.BufferHandle(c.A))
		case OpBindIndexBuffer:
			e.BindIndexBuffer(gpu.BufferHandle(c.A), gpu.IndexFormat(c.B))
		case OpPushParams:
			e.PushParams(l.Params(c))
		case OpDrawIndexed:
			e.DrawIndexed(c.A, c.B)
		}
	}
}

// Encode appends a stable little-endian encoding of the list to dst. Two lists encode to the
// same bytes exactly when they hold the same commands with the same parameters.
func (l *List) Encode(dst []byte) []byte {
	for _, c := range l.cmds {
		dst = append(dst, byte(c.Op))
		switch c.Op {
		case OpSetViewport:
			vp := c.Viewport
			for _, f := range [...]float32{vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth} {
				dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
			}
		case OpPushParams:
			dst = binary.LittleEndian.AppendUint32(dst, c.B)
			dst = append(dst, l.Params(c)...)
		default:
			dst = binary.LittleEndian.AppendUint32(dst, c.A)
			dst = binary.LittleEndian.AppendUint32(dst, c.B)
		}
	}
	return dst
}

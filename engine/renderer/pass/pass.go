// Package pass defines the units of work recorded in parallel each frame. Every pass records into
// its own secondary stream; the renderer merges the streams in the order passes were declared.
package pass

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/registry"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Inputs is the frame state shared read-only by every pass of a frame.
type Inputs struct {
	Frame      uint64
	Target     gpu.RenderTarget
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Frustum    common.Frustum
	Octree     *octree.Octree
	Registry   *registry.Registry
	// Uniforms is the slot's frame uniform buffer, already written for this frame.
	Uniforms gpu.UniformBuffer
}

// Output is the exclusive scratch of one pass for one frame slot. Nothing in it is shared with
// another goroutine while the pass records.
type Output struct {
	Stream    gpu.SecondaryStream
	Traversal *octree.Traversal
	Stats     *Stats
}

// Stats counts what a pass recorded in its last frame.
type Stats struct {
	Draws   int
	Visited octree.VisitStats
}

// Reset zeroes the counters.
func (s *Stats) Reset() { *s = Stats{} }

// Targeted is implemented by passes that render into an attachment other than the frame's
// acquired image. The renderer opens one render pass per run of consecutive passes that share a
// target, in declaration order.
type Targeted interface {
	Target() gpu.RenderTarget
}

// TargetOf returns the render target p records into for the frame described by in.
func TargetOf(p Pass, in *Inputs) gpu.RenderTarget {
	if t, ok := p.(Targeted); ok {
		return t.Target()
	}
	return in.Target
}

// Pass records one independent part of the frame into a secondary stream.
type Pass interface {
	// Name identifies the pass in logs and errors.
	Name() string

	// Record begins out.Stream on the pass's target (see TargetOf), records the pass and ends
	// the stream.
	//
	// Parameters:
	//   - in: read-only frame inputs
	//   - out: the pass's exclusive stream and scratch for this frame slot
	//
	// Returns:
	//   - error: the first recording error; the stream contents are then undefined
	Record(in *Inputs, out Output) error
}

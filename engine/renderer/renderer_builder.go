package renderer

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-cull/log"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithFramesInFlight sets how many frames may be recorded or executing at once. Default 3.
//
// Parameters:
//   - n: number of frame slots; must be at least 1
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithFramesInFlight(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.framesInFlight = n
	}
}

// WithPasses sets the passes recorded every frame. Their secondary streams are merged into the
// primary stream in the order given here.
//
// Parameters:
//   - passes: the passes, in merge order
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithPasses(passes ...pass.Pass) RendererBuilderOption {
	return func(r *renderer) {
		r.passes = append(r.passes[:0], passes...)
	}
}

// WithSurfaceSize sets the function queried for the surface size when the surface is rebuilt.
// It defaults to the surface's current extent. A window may block in it until its framebuffer
// has a non-zero size.
func WithSurfaceSize(size func() (width, height uint32)) RendererBuilderOption {
	return func(r *renderer) {
		r.surfaceSize = size
	}
}

// WithRebuildHook adds a function called with the new extent after every surface rebuild, e.g.
// to update the camera aspect ratio.
func WithRebuildHook(hook func(extent common.Extent2D)) RendererBuilderOption {
	return func(r *renderer) {
		r.rebuildHooks = append(r.rebuildHooks, hook)
	}
}

// WithMaxConsecutiveRebuilds sets how many stale acquisitions in a row are tolerated before
// DrawFrame fails with ErrTooManyRebuilds. Default 8.
func WithMaxConsecutiveRebuilds(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.maxRebuilds = n
	}
}

// WithTraversalCapacity sets the initial queue capacity of each pass's traversal scratch.
func WithTraversalCapacity(capacity int) RendererBuilderOption {
	return func(r *renderer) {
		r.traversalCap = capacity
	}
}

// WithLogger overrides the renderer logger.
func WithLogger(logger log.Logger) RendererBuilderOption {
	return func(r *renderer) {
		r.logger = logger
	}
}

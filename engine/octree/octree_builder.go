package octree

import "github.com/Carmen-Shannon/oxy-cull/log"

// OctreeBuilderOption is a functional option for configuring an Octree.
// Use the With* functions to create options.
type OctreeBuilderOption func(t *Octree)

// WithMaxDepth sets the deepest level objects may descend to. The root is depth 0. Defaults to 8.
//
// Parameters:
//   - depth: the depth limit
//
// Returns:
//   - OctreeBuilderOption: option function to apply
func WithMaxDepth(depth int) OctreeBuilderOption {
	return func(t *Octree) {
		t.maxDepth = depth
	}
}

// WithMinNodeSize stops subdivision before a child node whose shortest edge would be below size.
// Zero disables the limit.
//
// Parameters:
//   - size: the minimum edge length in world units
//
// Returns:
//   - OctreeBuilderOption: option function to apply
func WithMinNodeSize(size float32) OctreeBuilderOption {
	return func(t *Octree) {
		if size < 0 {
			size = 0
		}
		t.minNodeSize = size
	}
}

// WithLogger sets the logger used to report build statistics.
func WithLogger(logger log.Logger) OctreeBuilderOption {
	return func(t *Octree) {
		t.logger = logger
	}
}

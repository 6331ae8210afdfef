package scene

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/log"
)

// SceneBuilderOption is a functional option for configuring Build.
// Use the With* functions to create options.
type SceneBuilderOption func(c *sceneConfig)

// WithOctreeOptions forwards options to the octree constructor.
//
// Parameters:
//   - opts: octree options such as octree.WithMaxDepth
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithOctreeOptions(opts ...octree.OctreeBuilderOption) SceneBuilderOption {
	return func(c *sceneConfig) {
		c.octreeOpts = append(c.octreeOpts, opts...)
	}
}

// WithLogger sets the logger used for build diagnostics.
func WithLogger(logger log.Logger) SceneBuilderOption {
	return func(c *sceneConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

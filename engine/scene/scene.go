// Package scene assembles the static culling structures for a loaded set of objects:
// the union of their bounds and the octree that indexes them.
package scene

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/registry"
	"github.com/Carmen-Shannon/oxy-cull/log"
)

// ErrDegenerateBounds is returned by Build when the union of all object bounds has no volume.
var ErrDegenerateBounds = errors.New("scene: degenerate scene bounds")

// Scene is the read-only world the renderer draws: the component registry and its octree.
type Scene struct {
	Registry *registry.Registry
	Octree   *octree.Octree
	Bounds   common.AABB
}

type sceneConfig struct {
	octreeOpts []octree.OctreeBuilderOption
	logger     log.Logger
}

// Build computes the scene bounds as the first object's box extended by every other object's box,
// creates an octree spanning them and inserts every object with its bounds.
//
// Parameters:
//   - reg: the filled registry
//   - opts: functional options
//
// Returns:
//   - *Scene: the built scene; the octree is frozen
//   - error: registry.ErrEmpty or ErrDegenerateBounds
func Build(reg *registry.Registry, opts ...SceneBuilderOption) (*Scene, error) {
	cfg := sceneConfig{logger: log.New("scene")}
	for _, opt := range opts {
		opt(&cfg)
	}

	bounds, err := reg.Bounds()
	if err != nil {
		return nil, fmt.Errorf("scene: build: %w", err)
	}
	if bounds.Degenerate() {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateBounds, bounds)
	}

	tree := octree.New(bounds, append([]octree.OctreeBuilderOption{octree.WithLogger(cfg.logger)}, cfg.octreeOpts...)...)
	for i := 0; i < reg.Len(); i++ {
		id := common.ObjectID(i)
		tree.AddObject(id, reg.Mesh(id).Bounds)
	}
	tree.Freeze()

	st := tree.Stats()
	cfg.logger.Infof("built octree over %v: %d objects, %d nodes, depth %d",
		bounds, st.Objects, st.Nodes, st.MaxDepth)

	return &Scene{Registry: reg, Octree: tree, Bounds: bounds}, nil
}

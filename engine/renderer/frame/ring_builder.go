package frame

// RingBuilderOption is a functional option for configuring a Ring.
type RingBuilderOption func(c *ringConfig)

// WithUniformSize sets the size in bytes of every slot's frame uniform buffer. Default 256.
func WithUniformSize(size uint64) RingBuilderOption {
	return func(c *ringConfig) {
		c.uniformSize = size
	}
}

// WithTraversalCapacity sets the initial queue capacity of every worker's traversal scratch.
// The queue still grows when a frame needs more.
func WithTraversalCapacity(capacity int) RingBuilderOption {
	return func(c *ringConfig) {
		c.traversalCap = capacity
	}
}

// WithLabel sets the debug label prefix of every slot resource.
func WithLabel(prefix string) RingBuilderOption {
	return func(c *ringConfig) {
		c.labelPrefix = prefix
	}
}

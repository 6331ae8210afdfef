// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "fmt"

// ObjectID is the stable handle of a scene object. IDs are issued densely from zero by the registry
// at load time and never reused while the scene is alive.
type ObjectID uint32

// Extent2D is a width/height pair in pixels, used for surfaces and render targets.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Empty reports whether either dimension is zero. A minimised window reports an empty extent.
func (e Extent2D) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// Aspect returns Width / Height, or 1 for an empty extent.
func (e Extent2D) Aspect() float32 {
	if e.Empty() {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

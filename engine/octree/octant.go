package octree

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Octant addresses one of the eight children of a node. Bit 2 selects the upper (+Y) half,
// bit 1 the right (+X) half and bit 0 the front (+Z) half.
type Octant uint8

// Octants in enumeration order. Traversal visits siblings in this order.
const (
	LowerLeftBack Octant = iota
	LowerLeftFront
	LowerRightBack
	LowerRightFront
	UpperLeftBack
	UpperLeftFront
	UpperRightBack
	UpperRightFront

	octantCount = 8
)

const (
	octantFront Octant = 1 << 0
	octantRight Octant = 1 << 1
	octantUpper Octant = 1 << 2
)

// Upper reports whether the octant is in the +Y half of its parent.
func (o Octant) Upper() bool { return o&octantUpper != 0 }

// Right reports whether the octant is in the +X half of its parent.
func (o Octant) Right() bool { return o&octantRight != 0 }

// Front reports whether the octant is in the +Z half of its parent.
func (o Octant) Front() bool { return o&octantFront != 0 }

func (o Octant) String() string {
	s := "Lower"
	if o.Upper() {
		s = "Upper"
	}
	if o.Right() {
		s += "Right"
	} else {
		s += "Left"
	}
	if o.Front() {
		s += "Front"
	} else {
		s += "Back"
	}
	return s
}

// Bounds returns the sub-box of parent covered by octant o, split at the parent's center.
func (o Octant) Bounds(parent common.AABB) common.AABB {
	c := parent.Center()
	b := common.AABB{Min: parent.Min, Max: c}
	if o.Right() {
		b.Min[0], b.Max[0] = c[0], parent.Max[0]
	}
	if o.Upper() {
		b.Min[1], b.Max[1] = c[1], parent.Max[1]
	}
	if o.Front() {
		b.Min[2], b.Max[2] = c[2], parent.Max[2]
	}
	return b
}

// octantOf returns the single octant of parent that fully contains box, if any.
func octantOf(parent common.AABB, box common.AABB) (Octant, bool) {
	c := parent.Center()
	var o Octant
	for axis, bit := range [3]Octant{octantRight, octantUpper, octantFront} {
		switch side(c, box, axis) {
		case 1:
			o |= bit
		case 0:
			return 0, false
		}
	}
	return o, parent.Contains(box)
}

// side reports which half of the split plane along axis contains box: -1 for the lower half,
// 1 for the upper half, 0 when the box straddles the plane.
func side(center mgl32.Vec3, box common.AABB, axis int) int {
	switch {
	case box.Max[axis] <= center[axis]:
		return -1
	case box.Min[axis] >= center[axis]:
		return 1
	}
	return 0
}

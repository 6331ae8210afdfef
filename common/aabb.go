package common

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned bounding box in world space.
// A box is valid when every component is finite and Min <= Max on every axis.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewAABB builds a box from two corners, ordering each axis so that Min <= Max.
//
// Parameters:
//   - a, b: any two opposite corners of the box
//
// Returns:
//   - AABB: the box spanning both corners
func NewAABB(a, b mgl32.Vec3) AABB {
	return AABB{
		Min: mgl32.Vec3{math32.Min(a[0], b[0]), math32.Min(a[1], b[1]), math32.Min(a[2], b[2])},
		Max: mgl32.Vec3{math32.Max(a[0], b[0]), math32.Max(a[1], b[1]), math32.Max(a[2], b[2])},
	}
}

// EmptyAABB returns the identity element of Extend: Min is +Inf and Max is -Inf on every axis.
// It is not Valid and is only meant as the seed of a fold.
func EmptyAABB() AABB {
	inf := math32.Inf(1)
	return AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// Extend returns the smallest box containing both a and o.
// The operation is commutative and associative.
//
// Parameters:
//   - o: the box to merge with a
//
// Returns:
//   - AABB: the componentwise min of the minimums and max of the maximums
func (a AABB) Extend(o AABB) AABB {
	return AABB{
		Min: mgl32.Vec3{math32.Min(a.Min[0], o.Min[0]), math32.Min(a.Min[1], o.Min[1]), math32.Min(a.Min[2], o.Min[2])},
		Max: mgl32.Vec3{math32.Max(a.Max[0], o.Max[0]), math32.Max(a.Max[1], o.Max[1]), math32.Max(a.Max[2], o.Max[2])},
	}
}

// ExtendPoint returns the smallest box containing both a and p.
func (a AABB) ExtendPoint(p mgl32.Vec3) AABB {
	return a.Extend(AABB{Min: p, Max: p})
}

// Valid reports whether all components are finite and Min <= Max on every axis.
func (a AABB) Valid() bool {
	for i := 0; i < 3; i++ {
		if !finite(a.Min[i]) || !finite(a.Max[i]) || a.Min[i] > a.Max[i] {
			return false
		}
	}
	return true
}

// Degenerate reports whether the box cannot serve as a spatial volume: it is invalid,
// or it has zero extent on all three axes.
func (a AABB) Degenerate() bool {
	if !a.Valid() {
		return true
	}
	s := a.Size()
	return s[0] == 0 && s[1] == 0 && s[2] == 0
}

// Center returns the midpoint of the box.
func (a AABB) Center() mgl32.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// Size returns the extent of the box along each axis.
func (a AABB) Size() mgl32.Vec3 {
	return a.Max.Sub(a.Min)
}

// Contains reports whether o lies entirely inside a. Touching faces count as inside.
func (a AABB) Contains(o AABB) bool {
	return o.Min[0] >= a.Min[0] && o.Max[0] <= a.Max[0] &&
		o.Min[1] >= a.Min[1] && o.Max[1] <= a.Max[1] &&
		o.Min[2] >= a.Min[2] && o.Max[2] <= a.Max[2]
}

// ContainsPoint reports whether p lies inside a or on its boundary.
func (a AABB) ContainsPoint(p mgl32.Vec3) bool {
	return p[0] >= a.Min[0] && p[0] <= a.Max[0] &&
		p[1] >= a.Min[1] && p[1] <= a.Max[1] &&
		p[2] >= a.Min[2] && p[2] <= a.Max[2]
}

// Intersects reports whether the two boxes overlap. Touching faces count as overlapping.
func (a AABB) Intersects(o AABB) bool {
	return a.Min[0] <= o.Max[0] && a.Max[0] >= o.Min[0] &&
		a.Min[1] <= o.Max[1] && a.Max[1] >= o.Min[1] &&
		a.Min[2] <= o.Max[2] && a.Max[2] >= o.Min[2]
}

// IntersectsFrustum performs the positive-vertex test against every plane of f.
// For each plane the corner furthest along the plane normal is selected; the box is
// rejected only when that corner lies strictly outside some plane.
//
// The test is conservative: a box near a frustum corner may be reported as intersecting
// when it is not, but a box that intersects the frustum is never rejected.
//
// Parameters:
//   - f: frustum with inward-pointing normalised planes
//
// Returns:
//   - bool: false only if the box is entirely outside at least one plane
func (a AABB) IntersectsFrustum(f Frustum) bool {
	for i := range f.Planes {
		p := &f.Planes[i]
		var v mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if p.Normal[axis] >= 0 {
				v[axis] = a.Max[axis]
			} else {
				v[axis] = a.Min[axis]
			}
		}
		if p.SignedDistance(v) < 0 {
			return false
		}
	}
	return true
}

// Corners returns the eight corners of the box. Corner i takes Max on the x axis when
// bit 1 is set, on the y axis when bit 2 is set and on the z axis when bit 0 is set.
func (a AABB) Corners() [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := range out {
		c := a.Min
		if i&1 != 0 {
			c[2] = a.Max[2]
		}
		if i&2 != 0 {
			c[0] = a.Max[0]
		}
		if i&4 != 0 {
			c[1] = a.Max[1]
		}
		out[i] = c
	}
	return out
}

func (a AABB) String() string {
	return fmt.Sprintf("AABB{min=(%g, %g, %g) max=(%g, %g, %g)}",
		a.Min[0], a.Min[1], a.Min[2], a.Max[0], a.Max[1], a.Max[2])
}

// AABBFromPoints transforms object-space positions by a model matrix and returns the
// world-space box enclosing them.
//
// Parameters:
//   - points: object-space vertex positions
//   - model: object-to-world transform
//
// Returns:
//   - AABB: the enclosing box, or EmptyAABB() if points is empty
func AABBFromPoints(points []mgl32.Vec3, model mgl32.Mat4) AABB {
	box := EmptyAABB()
	for _, p := range points {
		box = box.ExtendPoint(mgl32.TransformCoordinate(p, model))
	}
	return box
}

// TransformAABB returns the world-space box enclosing box after transformation by model.
func TransformAABB(box AABB, model mgl32.Mat4) AABB {
	corners := box.Corners()
	return AABBFromPoints(corners[:], model)
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

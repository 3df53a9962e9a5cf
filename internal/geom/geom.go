// Package geom provides the axis-aligned geometry primitives used by the
// level generator: vectors, extents, bounding volumes and 90-degree plane
// rotations. All checks are brute-force float comparisons with a small
// tolerance; there is no spatial index.
package geom

import "math"

// Epsilon is the tolerance used for overlap and containment checks.
// Chunks that merely share an edge or face are not considered overlapping.
const Epsilon = 0.001

// Dim identifies the dimensionality of an entity. Two-dimensional entities
// leave the Z coordinate and depth extent at zero.
type Dim int

const (
	Dim2 Dim = 2
	Dim3 Dim = 3
)

func (d Dim) String() string {
	if d == Dim3 {
		return "3D"
	}
	return "2D"
}

// Valid reports whether d is one of the two supported dimensionalities.
func (d Dim) Valid() bool {
	return d == Dim2 || d == Dim3
}

// Vec is a point or displacement in level space.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Add returns v + o.
func (v Vec) Add(o Vec) Vec {
	return Vec{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec) Sub(o Vec) Vec {
	return Vec{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Dist returns the Euclidean distance between v and o.
func (v Vec) Dist(o Vec) float64 {
	d := v.Sub(o)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// Size holds axis-aligned extents.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
	D float64 `json:"d,omitempty"`
}

// Measure returns the area (2D) or volume (3D) of the extents.
func (s Size) Measure(dim Dim) float64 {
	if dim == Dim3 {
		return s.W * s.H * s.D
	}
	return s.W * s.H
}

// Positive reports whether every extent relevant for dim is > 0.
// 2D sizes must have a zero depth.
func (s Size) Positive(dim Dim) bool {
	if s.W <= 0 || s.H <= 0 {
		return false
	}
	if dim == Dim3 {
		return s.D > 0
	}
	return s.D == 0
}

// Box is an axis-aligned bounding volume anchored at its minimum corner.
type Box struct {
	Min  Vec
	Size Size
}

// Max returns the maximum corner of the box.
func (b Box) Max() Vec {
	return Vec{X: b.Min.X + b.Size.W, Y: b.Min.Y + b.Size.H, Z: b.Min.Z + b.Size.D}
}

// Intersects reports whether b and o strictly overlap. Touching edges or
// faces within Epsilon do not count as an intersection.
func (b Box) Intersects(o Box, dim Dim) bool {
	bmax, omax := b.Max(), o.Max()
	if b.Min.X >= omax.X-Epsilon || bmax.X <= o.Min.X+Epsilon {
		return false
	}
	if b.Min.Y >= omax.Y-Epsilon || bmax.Y <= o.Min.Y+Epsilon {
		return false
	}
	if dim == Dim3 {
		if b.Min.Z >= omax.Z-Epsilon || bmax.Z <= o.Min.Z+Epsilon {
			return false
		}
	}
	return true
}

// Contains reports whether b fully contains o, within Epsilon.
func (b Box) Contains(o Box, dim Dim) bool {
	bmax, omax := b.Max(), o.Max()
	if o.Min.X < b.Min.X-Epsilon || omax.X > bmax.X+Epsilon {
		return false
	}
	if o.Min.Y < b.Min.Y-Epsilon || omax.Y > bmax.Y+Epsilon {
		return false
	}
	if dim == Dim3 {
		if o.Min.Z < b.Min.Z-Epsilon || omax.Z > bmax.Z+Epsilon {
			return false
		}
	}
	return true
}

// Plane selects the coordinate plane a 90-degree rotation acts in.
type Plane int

const (
	PlaneXY Plane = iota // rotation about the Z axis, swaps W and H
	PlaneXZ              // rotation about the Y axis, swaps W and D
	PlaneYZ              // rotation about the X axis, swaps H and D
)

// RotateSize returns the extents after a 90-degree rotation in the plane.
func RotateSize(s Size, pl Plane) Size {
	switch pl {
	case PlaneXZ:
		return Size{W: s.D, H: s.H, D: s.W}
	case PlaneYZ:
		return Size{W: s.W, H: s.D, D: s.H}
	default:
		return Size{W: s.H, H: s.W, D: s.D}
	}
}

// RotatePoint rotates a point 90 degrees within a bounding volume of the
// given extents, about the volume's center, and re-translates it into the
// rotated volume's coordinate frame. The coordinate on the rotation axis is
// left untouched. Applying the rotation four times returns the original
// point.
func RotatePoint(p Vec, s Size, pl Plane) Vec {
	switch pl {
	case PlaneXZ:
		return Vec{X: s.D - p.Z, Y: p.Y, Z: p.X}
	case PlaneYZ:
		return Vec{X: p.X, Y: s.D - p.Z, Z: p.Y}
	default:
		return Vec{X: s.H - p.Y, Y: p.X, Z: p.Z}
	}
}

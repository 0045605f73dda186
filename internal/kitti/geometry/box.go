package geometry

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Box is an oriented 3D bounding box.
//
// Size holds the extents as (width, length, height). In the box's local
// frame length runs along X, width along Y and height along Z.
type Box struct {
	Center      r3.Vec
	Size        r3.Vec
	Orientation quat.Number
}

// AxisRotation returns the unit quaternion rotating by radians about axis.
func AxisRotation(axis r3.Vec, radians float64) quat.Number {
	return quat.Number(r3.NewRotation(radians, axis))
}

// Compose returns a*b, i.e. b applied first and then a.
func Compose(a, b quat.Number) quat.Number {
	return quat.Mul(a, b)
}

// Rotate applies the box orientation to v.
func (b Box) Rotate(v r3.Vec) r3.Vec {
	return r3.Rotation(b.Orientation).Rotate(v)
}

// ToLocal moves a point into the box frame: centred on the box and
// aligned with its axes.
func (b Box) ToLocal(p r3.Vec) r3.Vec {
	inv := r3.Rotation(quat.Conj(b.Orientation))
	return inv.Rotate(r3.Sub(p, b.Center))
}

// Corners returns the eight box corners. The first four face forward
// (+length), the last four backward.
func (b Box) Corners() [8]r3.Vec {
	w, l, h := b.Size.X/2, b.Size.Y/2, b.Size.Z/2
	xs := [8]float64{l, l, l, l, -l, -l, -l, -l}
	ys := [8]float64{w, -w, -w, w, w, -w, -w, w}
	zs := [8]float64{h, h, -h, -h, h, h, -h, -h}

	var out [8]r3.Vec
	for i := range out {
		out[i] = r3.Add(b.Rotate(r3.Vec{X: xs[i], Y: ys[i], Z: zs[i]}), b.Center)
	}
	return out
}

// Bounds returns the axis-aligned extent of the box corners.
func (b Box) Bounds() (lo, hi r3.Vec) {
	corners := b.Corners()
	lo, hi = corners[0], corners[0]
	for _, c := range corners[1:] {
		lo = r3.Vec{X: min(lo.X, c.X), Y: min(lo.Y, c.Y), Z: min(lo.Z, c.Z)}
		hi = r3.Vec{X: max(hi.X, c.X), Y: max(hi.Y, c.Y), Z: max(hi.Z, c.Z)}
	}
	return lo, hi
}

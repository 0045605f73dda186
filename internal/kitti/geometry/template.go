package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// CropAxisAligned keeps the points strictly inside the axis-aligned extent
// of box grown by offset on every side. An empty result is not an error.
func CropAxisAligned(pc PointCloud, box Box, offset float64) PointCloud {
	lo, hi := box.Bounds()
	lo = r3.Sub(lo, r3.Vec{X: offset, Y: offset, Z: offset})
	hi = r3.Add(hi, r3.Vec{X: offset, Y: offset, Z: offset})
	return pc.filter(func(p r3.Vec) bool {
		return p.X > lo.X && p.X < hi.X &&
			p.Y > lo.Y && p.Y < hi.Y &&
			p.Z > lo.Z && p.Z < hi.Z
	})
}

// MergeTemplate aligns each cloud to its box and concatenates the points
// that fall inside the box, with extents multiplied by scale and padded by
// offset. The result is expressed in the canonical box frame with three
// values per point. Mismatched inputs merge up to the shorter length; an
// empty merge yields the origin placeholder.
func MergeTemplate(clouds []PointCloud, boxes []Box, offset, scale float64) PointCloud {
	out := PointCloud{Dims: 3}
	n := min(len(clouds), len(boxes))
	for i := 0; i < n; i++ {
		box := boxes[i]
		halfL := box.Size.Y*scale/2 + offset
		halfW := box.Size.X*scale/2 + offset
		halfH := box.Size.Z*scale/2 + offset
		pc := clouds[i]
		for j := 0; j < pc.Len(); j++ {
			p := box.ToLocal(pc.At(j))
			if math.Abs(p.X) > halfL || math.Abs(p.Y) > halfW || math.Abs(p.Z) > halfH {
				continue
			}
			out.Data = append(out.Data, float32(p.X), float32(p.Y), float32(p.Z))
		}
	}
	if out.Len() == 0 {
		return OriginPlaceholder()
	}
	return out
}

package geometry

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// VelodyneRecordSize is the number of float32 values per raw velodyne point
// (x, y, z, intensity).
const VelodyneRecordSize = 4

// PointCloud is a flat point buffer with Dims values per point: x, y, z and
// optionally intensity. Coordinates are computed in float64 and stored as
// float32 like the raw sensor files.
type PointCloud struct {
	Dims int
	Data []float32
}

// NewPointCloud wraps data with dims values per point.
func NewPointCloud(dims int, data []float32) (PointCloud, error) {
	if dims != 3 && dims != 4 {
		return PointCloud{}, fmt.Errorf("point cloud dims must be 3 or 4, got %d", dims)
	}
	if len(data)%dims != 0 {
		return PointCloud{}, fmt.Errorf("point buffer of %d values is not a multiple of %d", len(data), dims)
	}
	return PointCloud{Dims: dims, Data: data}, nil
}

// OriginPlaceholder is the single-point cloud used when no sensor data is
// available for a frame.
func OriginPlaceholder() PointCloud {
	return PointCloud{Dims: 3, Data: []float32{0, 0, 0}}
}

// DecodeVelodyne parses a little-endian float32 buffer of x,y,z,intensity
// records.
func DecodeVelodyne(raw []byte) (PointCloud, error) {
	const recordBytes = VelodyneRecordSize * 4
	if len(raw)%recordBytes != 0 {
		return PointCloud{}, fmt.Errorf("velodyne buffer of %d bytes is not a multiple of %d", len(raw), recordBytes)
	}
	data := make([]float32, len(raw)/4)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return PointCloud{Dims: VelodyneRecordSize, Data: data}, nil
}

// EncodeVelodyne is the inverse of DecodeVelodyne. Clouds without an
// intensity channel are written with zero intensity.
func EncodeVelodyne(pc PointCloud) []byte {
	n := pc.Len()
	out := make([]byte, n*VelodyneRecordSize*4)
	for i := 0; i < n; i++ {
		vals := [4]float32{pc.Data[i*pc.Dims], pc.Data[i*pc.Dims+1], pc.Data[i*pc.Dims+2], 0}
		if pc.Dims == 4 {
			vals[3] = pc.Data[i*pc.Dims+3]
		}
		for j, v := range vals {
			binary.LittleEndian.PutUint32(out[(i*4+j)*4:], math.Float32bits(v))
		}
	}
	return out
}

// Len returns the number of points.
func (pc PointCloud) Len() int {
	if pc.Dims == 0 {
		return 0
	}
	return len(pc.Data) / pc.Dims
}

// Clone returns a deep copy of pc.
func (pc PointCloud) Clone() PointCloud {
	return PointCloud{Dims: pc.Dims, Data: slices.Clone(pc.Data)}
}

// At returns the coordinates of point i.
func (pc PointCloud) At(i int) r3.Vec {
	off := i * pc.Dims
	return r3.Vec{X: float64(pc.Data[off]), Y: float64(pc.Data[off+1]), Z: float64(pc.Data[off+2])}
}

// Transformed returns a copy with every point mapped through t. Extra
// channels such as intensity are carried over untouched.
func (pc PointCloud) Transformed(t Transform) PointCloud {
	out := PointCloud{Dims: pc.Dims, Data: make([]float32, len(pc.Data))}
	copy(out.Data, pc.Data)
	for i := 0; i < pc.Len(); i++ {
		p := t.Apply(pc.At(i))
		off := i * pc.Dims
		out.Data[off] = float32(p.X)
		out.Data[off+1] = float32(p.Y)
		out.Data[off+2] = float32(p.Z)
	}
	return out
}

// filter returns the points for which keep reports true.
func (pc PointCloud) filter(keep func(p r3.Vec) bool) PointCloud {
	out := PointCloud{Dims: pc.Dims, Data: make([]float32, 0, len(pc.Data))}
	for i := 0; i < pc.Len(); i++ {
		if keep(pc.At(i)) {
			off := i * pc.Dims
			out.Data = append(out.Data, pc.Data[off:off+pc.Dims]...)
		}
	}
	return out
}

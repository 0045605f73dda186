// Package frames materializes single tracklet frames: the oriented 3D box
// in the configured coordinate system plus the frame's point cloud.
package frames

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tracklets/internal/kitti/annotations"
	"github.com/banshee-data/tracklets/internal/kitti/calib"
	"github.com/banshee-data/tracklets/internal/kitti/geometry"
	"github.com/banshee-data/tracklets/internal/monitoring"
)

// CoordinateMode selects the reference frame of boxes and point clouds.
type CoordinateMode string

const (
	// Camera is the rectified camera frame the labels are expressed in.
	Camera CoordinateMode = "camera"
	// Velodyne is the range-sensor frame.
	Velodyne CoordinateMode = "velodyne"
)

// ErrUnsupportedCoordinateMode is returned for unknown mode names.
var ErrUnsupportedCoordinateMode = errors.New("unsupported coordinate mode")

var logf = monitoring.Component("frames")

// ParseCoordinateMode accepts "camera", "velodyne" and its alias "sensor".
func ParseCoordinateMode(name string) (CoordinateMode, error) {
	switch name {
	case "camera":
		return Camera, nil
	case "velodyne", "sensor":
		return Velodyne, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCoordinateMode, name)
	}
}

// Frame is one materialized time step of a tracklet.
type Frame struct {
	PointCloud geometry.PointCloud
	Box        geometry.Box
	Record     annotations.Record
}

// Builder turns annotation records into frames.
type Builder struct {
	Calib  *calib.Store
	Points PointSource
	Mode   CoordinateMode
	// CropOffset > 0 crops clouds to the box grown by this many metres.
	CropOffset float64
}

// BuildUncropped returns the frame with its full point cloud. Cached
// materialization needs this form to merge templates before cropping.
func (b *Builder) BuildUncropped(rec annotations.Record) (Frame, error) {
	entry, err := b.Calib.Get(rec.Scene)
	if err != nil {
		return Frame{}, err
	}

	box, err := b.box(rec, entry)
	if err != nil {
		return Frame{}, err
	}

	res := b.Points.Load(rec.Scene, rec.Frame)
	pc := res.Cloud
	switch {
	case res.Missing:
		logf("scene %04d frame %06d: using placeholder cloud: %v", rec.Scene, rec.Frame, res.Reason)
		pc = geometry.OriginPlaceholder()
	case b.Mode == Camera:
		pc = pc.Transformed(entry.VeloToCam)
	}

	return Frame{PointCloud: pc, Box: box, Record: rec}, nil
}

// Build returns the frame with cropping applied when configured.
func (b *Builder) Build(rec annotations.Record) (Frame, error) {
	f, err := b.BuildUncropped(rec)
	if err != nil {
		return Frame{}, err
	}
	b.Crop(&f)
	return f, nil
}

// Crop replaces the frame's cloud with its cropped subset when CropOffset
// is positive.
func (b *Builder) Crop(f *Frame) {
	if b.CropOffset > 0 {
		f.PointCloud = geometry.CropAxisAligned(f.PointCloud, f.Box, b.CropOffset)
	}
}

// CameraCenter is the box centre in camera coordinates: labels locate the
// bottom face, so the centre sits half a height above it (camera y points
// down).
func CameraCenter(rec annotations.Record) r3.Vec {
	return r3.Vec{X: rec.X, Y: rec.Y - rec.Height/2, Z: rec.Z}
}

func (b *Builder) box(rec annotations.Record, entry *calib.Entry) (geometry.Box, error) {
	size := r3.Vec{X: rec.Width, Y: rec.Length, Z: rec.Height}
	switch b.Mode {
	case Camera:
		// Yaw about camera Y, then lay the box's height axis along -Y.
		orientation := geometry.Compose(
			geometry.AxisRotation(r3.Vec{Y: 1}, rec.RotationY),
			geometry.AxisRotation(r3.Vec{X: 1}, math.Pi/2),
		)
		return geometry.Box{Center: CameraCenter(rec), Size: size, Orientation: orientation}, nil
	case Velodyne:
		orientation := geometry.Compose(
			geometry.AxisRotation(r3.Vec{Z: -1}, rec.RotationY),
			geometry.AxisRotation(r3.Vec{Z: -1}, math.Pi/2),
		)
		center := entry.CamToVelo.Apply(CameraCenter(rec))
		return geometry.Box{Center: center, Size: size, Orientation: orientation}, nil
	default:
		return geometry.Box{}, fmt.Errorf("%w: %q", ErrUnsupportedCoordinateMode, b.Mode)
	}
}

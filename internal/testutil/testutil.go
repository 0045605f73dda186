// Package testutil provides shared test utilities and KITTI tracking
// fixtures.
//
// Fixtures are written through fsutil.FileSystem so they work against both
// the in-memory filesystem and t.TempDir().
package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/tracklets/internal/fsutil"
	"github.com/banshee-data/tracklets/internal/kitti/geometry"
)

// IdentityCalib is a calibration file whose velodyne→camera transform is the
// identity. The date line and the 9-value R_rect line must be skipped by the
// parser.
const IdentityCalib = `calib_time: 09-Jan-2012 13:57:47
P0: 7.215377e+02 0.000000e+00 6.095593e+02 0.000000e+00 0.000000e+00 7.215377e+02 1.728540e+02 0.000000e+00 0.000000e+00 0.000000e+00 1.000000e+00 0.000000e+00
R_rect 1 0 0 0 1 0 0 0 1
Tr_velo_cam 1 0 0 0 0 1 0 0 0 0 1 0
`

// AxisSwapCalib maps velodyne axes (x forward, y left, z up) to camera axes
// (x right, y down, z forward) with a small translation, like real KITTI
// calibrations.
const AxisSwapCalib = `R_rect 1 0 0 0 1 0 0 0 1
Tr_velo_cam 0 -1 0 0.1 0 0 -1 -0.2 1 0 0 -0.3
Tr_imu_velo 1 0 0 0 0 1 0 0 0 0 1 0
`

// Scene describes one fixture scene.
type Scene struct {
	ID     int
	Labels []string
	// Calib is the calibration file body; empty means no file is written.
	Calib string
	// Points maps frame numbers to x,y,z,intensity values.
	Points map[int][]float32
}

// LabelLine renders one label_02 row. Unused 2D fields are filled with
// plausible constants.
func LabelLine(frame, track int, typ string, h, w, l, x, y, z, ry float64) string {
	return fmt.Sprintf("%d %d %s 0 0 -1.57 100.0 150.0 200.0 250.0 %g %g %g %g %g %g %g",
		frame, track, typ, h, w, l, x, y, z, ry)
}

// LabelPath is the label file path of a scene under root.
func LabelPath(root string, scene int) string {
	return filepath.Join(root, "label_02", fmt.Sprintf("%04d.txt", scene))
}

// CalibPath is the calibration file path of a scene under root.
func CalibPath(root string, scene int) string {
	return filepath.Join(root, "calib", fmt.Sprintf("%04d.txt", scene))
}

// VelodynePath is the point cloud path of a frame under root.
func VelodynePath(root string, scene, frame int) string {
	return filepath.Join(root, "velodyne", fmt.Sprintf("%04d", scene), fmt.Sprintf("%06d.bin", frame))
}

// WriteScene writes the scene's label, calibration and velodyne files.
func WriteScene(t testing.TB, fsys fsutil.FileSystem, root string, s Scene) {
	t.Helper()

	write := func(path string, data []byte) {
		t.Helper()
		if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := fsys.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	write(LabelPath(root, s.ID), []byte(strings.Join(s.Labels, "\n")+"\n"))
	if s.Calib != "" {
		write(CalibPath(root, s.ID), []byte(s.Calib))
	}
	for frame, values := range s.Points {
		pc, err := geometry.NewPointCloud(geometry.VelodyneRecordSize, values)
		if err != nil {
			t.Fatalf("fixture points for frame %d: %v", frame, err)
		}
		write(VelodynePath(root, s.ID, frame), geometry.EncodeVelodyne(pc))
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

package frames

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/tracklets/internal/fsutil"
	"github.com/banshee-data/tracklets/internal/kitti/geometry"
)

// LoadResult is the outcome of reading one frame's velodyne sweep: either a
// cloud or a missing-file marker with the reason.
type LoadResult struct {
	Cloud   geometry.PointCloud
	Missing bool
	Reason  error
}

// PointSource reads raw velodyne sweeps.
type PointSource interface {
	Load(scene, frame int) LoadResult
}

// VelodynePath returns the sweep file of a frame under root.
func VelodynePath(root string, scene, frame int) string {
	return filepath.Join(root, "velodyne", fmt.Sprintf("%04d", scene), fmt.Sprintf("%06d.bin", frame))
}

// VelodyneSource reads root/velodyne/%04d/%06d.bin files.
type VelodyneSource struct {
	FS   fsutil.FileSystem
	Root string
}

// Load never fails: unreadable or malformed files are reported as Missing.
func (s VelodyneSource) Load(scene, frame int) LoadResult {
	path := VelodynePath(s.Root, scene, frame)
	raw, err := s.FS.ReadFile(path)
	if err != nil {
		return LoadResult{Missing: true, Reason: err}
	}
	pc, err := geometry.DecodeVelodyne(raw)
	if err != nil {
		return LoadResult{Missing: true, Reason: fmt.Errorf("%s: %w", path, err)}
	}
	return LoadResult{Cloud: pc}
}

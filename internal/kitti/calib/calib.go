// Package calib loads per-scene KITTI calibration files and memoizes them
// for the lifetime of a dataset.
package calib

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/tracklets/internal/fsutil"
	"github.com/banshee-data/tracklets/internal/kitti/geometry"
	"github.com/banshee-data/tracklets/internal/monitoring"
)

// KeyVeloToCam names the velodyne→camera rigid transform.
const KeyVeloToCam = "Tr_velo_cam"

// ErrMissingKey is returned when a required matrix is absent from a
// calibration file.
var ErrMissingKey = errors.New("calibration key missing")

var logf = monitoring.Component("calib")

// Calibration maps matrix names to 3×4 matrices.
type Calibration map[string]*mat.Dense

// Parse reads "<key> <12 floats>" lines. Lines that do not hold exactly 12
// numbers, such as dates or the 9-value R_rect, are skipped.
func Parse(r io.Reader) (Calibration, error) {
	out := make(Calibration)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 13 {
			continue
		}
		values := make([]float64, 12)
		ok := true
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				ok = false
				break
			}
			values[i] = v
		}
		if !ok {
			continue
		}
		out[fields[0]] = mat.NewDense(3, 4, values)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan calibration: %w", err)
	}
	return out, nil
}

// VeloToCam returns the velodyne→camera transform as a 4×4 matrix.
func (c Calibration) VeloToCam() (geometry.Transform, error) {
	m, ok := c[KeyVeloToCam]
	if !ok {
		return geometry.Transform{}, fmt.Errorf("%w: %s", ErrMissingKey, KeyVeloToCam)
	}
	return geometry.TransformFrom3x4(m)
}

// Path returns the calibration file of a scene under root.
func Path(root string, sceneID int) string {
	return filepath.Join(root, "calib", fmt.Sprintf("%04d.txt", sceneID))
}

// Entry is the memoized calibration of one scene.
type Entry struct {
	Matrices  Calibration
	VeloToCam geometry.Transform
	CamToVelo geometry.Transform
}

// Store lazily loads calibration entries keyed by scene id. It never evicts.
// Concurrent first requests for one scene may both load the file; the first
// stored entry wins and the duplicate is discarded.
type Store struct {
	fs   fsutil.FileSystem
	root string

	mu      sync.RWMutex
	entries map[int]*Entry
}

// NewStore creates a store reading from root/calib.
func NewStore(fsys fsutil.FileSystem, root string) *Store {
	return &Store{
		fs:      fsys,
		root:    root,
		entries: make(map[int]*Entry),
	}
}

// Get returns the calibration entry of a scene, loading it on first use.
// A missing file or a missing velodyne→camera key is an error.
func (s *Store) Get(sceneID int) (*Entry, error) {
	s.mu.RLock()
	e, ok := s.entries[sceneID]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}

	e, err := s.load(sceneID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[sceneID]; ok {
		return existing, nil
	}
	s.entries[sceneID] = e
	return e, nil
}

// Len reports how many scenes are memoized.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) load(sceneID int) (*Entry, error) {
	path := Path(s.root, sceneID)
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load calibration for scene %d: %w", sceneID, err)
	}
	matrices, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	veloToCam, err := matrices.VeloToCam()
	if err != nil {
		return nil, fmt.Errorf("scene %d: %w", sceneID, err)
	}
	camToVelo, err := veloToCam.Inverse()
	if err != nil {
		return nil, fmt.Errorf("scene %d: %w", sceneID, err)
	}
	logf("loaded %s (%d matrices)", path, len(matrices))
	return &Entry{Matrices: matrices, VeloToCam: veloToCam, CamToVelo: camToVelo}, nil
}

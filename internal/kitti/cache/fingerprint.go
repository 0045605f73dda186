package cache

import (
	"fmt"
	"strconv"
)

// Every key starts with KeyPrefix and ends with KeySuffix.
const (
	KeyPrefix = "KITTI_"
	KeySuffix = ".cache"
)

// Fingerprint identifies one dataset configuration. Distinct configurations
// always produce distinct keys.
type Fingerprint struct {
	Category       string
	Split          string
	CoordinateMode string
	CropOffset     float64
	// Interval is the fixed subsampling interval or "all".
	Interval string
	Debug    bool
}

// Key renders the fingerprint as a file name, e.g.
// KITTI_Car_train_velodyne_-1_1.cache.
func (f Fingerprint) Key() string {
	prefix := KeyPrefix
	if f.Debug {
		prefix += "DEBUG_"
	}
	offset := strconv.FormatFloat(f.CropOffset, 'f', -1, 64)
	return fmt.Sprintf("%s%s_%s_%s_%s_%s%s", prefix, f.Category, f.Split, f.CoordinateMode, offset, f.Interval, KeySuffix)
}

func (f Fingerprint) String() string { return f.Key() }

package kitti

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/tracklets/internal/config"
	"github.com/banshee-data/tracklets/internal/fsutil"
	"github.com/banshee-data/tracklets/internal/kitti/annotations"
	"github.com/banshee-data/tracklets/internal/kitti/cache"
	"github.com/banshee-data/tracklets/internal/kitti/calib"
	"github.com/banshee-data/tracklets/internal/kitti/frames"
	"github.com/banshee-data/tracklets/internal/kitti/geometry"
	"github.com/banshee-data/tracklets/internal/kitti/index"
	"github.com/banshee-data/tracklets/internal/monitoring"
	"github.com/banshee-data/tracklets/internal/timeutil"
)

// ErrTemplateUnavailable is returned by TemplatePointCloud when the dataset
// was opened without caching.
var ErrTemplateUnavailable = errors.New("template point cloud requires caching")

var logf = monitoring.Component("dataset")

// Options supplies the I/O dependencies of Open.
type Options struct {
	// FS reads the data root; nil means the OS filesystem.
	FS fsutil.FileSystem
	// Store holds cache blobs; nil means a FileStore in the cache dir.
	Store cache.Store
	// Progress receives the materialization progress bar; nil disables it.
	Progress io.Writer
	// Clock times indexing and stamps cache blobs; nil means wall time.
	Clock timeutil.Clock
}

// Dataset is the assembled tracklet dataset of one split.
type Dataset struct {
	split       Split
	tracklets   []annotations.Tracklet
	index       *index.Index
	builder     *frames.Builder
	fingerprint cache.Fingerprint

	// mats is nil when caching is disabled.
	mats     []cache.Materialization
	cacheHit bool
}

// Open indexes the split's annotations and, when caching is enabled for the
// split, loads or builds the materialized tracklets.
func Open(ctx context.Context, cfg *config.DatasetConfig, split Split, opts Options) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scenes, err := SceneIDs(split, cfg.GetDebug())
	if err != nil {
		return nil, err
	}
	category, err := annotations.ParseCategory(cfg.GetCategoryName())
	if err != nil {
		return nil, err
	}
	mode, err := frames.ParseCoordinateMode(cfg.GetCoordinateMode())
	if err != nil {
		return nil, err
	}
	sub, err := annotations.ParseSubsampling(cfg.GetPreloadInterval())
	if err != nil {
		return nil, err
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	root := cfg.GetDataRootDir()

	// Cropping is a training-time augmentation only.
	cropOffset := -1.0
	caching := cfg.GetCacheEval()
	if split.IsTraining() {
		cropOffset = cfg.GetPreloadOffset()
		caching = cfg.GetCacheTrain()
	}

	clock := timeutil.OrReal(opts.Clock)
	start := clock.Now()
	tracklets, err := annotations.NewIndexer(fsys, root).Build(scenes, annotations.Options{
		Category:    category,
		Training:    split.IsTraining(),
		Subsampling: sub,
	})
	if err != nil {
		return nil, err
	}

	lengths := make([]int, len(tracklets))
	for i, t := range tracklets {
		lengths[i] = t.Len()
	}
	ix, err := index.New(lengths)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", annotations.ErrEmptyTracklet, err)
	}

	ds := &Dataset{
		split:     split,
		tracklets: tracklets,
		index:     ix,
		builder: &frames.Builder{
			Calib:      calib.NewStore(fsys, root),
			Points:     frames.VelodyneSource{FS: fsys, Root: root},
			Mode:       mode,
			CropOffset: cropOffset,
		},
		fingerprint: cache.Fingerprint{
			Category:       string(category),
			Split:          string(split),
			CoordinateMode: string(mode),
			CropOffset:     cropOffset,
			Interval:       sub.String(),
			Debug:          cfg.GetDebug(),
		},
	}
	logf("%s: %d scenes, %d tracklets, %d frames in %v",
		split, len(scenes), ix.NumTracklets(), ix.NumFrames(), clock.Since(start).Round(time.Millisecond))

	if !caching {
		return ds, nil
	}

	store := opts.Store
	if store == nil {
		store = cache.NewFileStore(fsys, cfg.GetCacheDir())
	}
	m := &cache.Materializer{
		Frames:         ds.builder,
		TemplateOffset: cfg.GetModelOffset(),
		TemplateScale:  cfg.GetModelScale(),
	}
	mats, hit, err := cache.LoadOrBuild(ctx, store, ds.fingerprint.Key(), tracklets, m, cache.Options{
		Workers:  cfg.GetWorkers(),
		Progress: opts.Progress,
		Clock:    opts.Clock,
	})
	if err != nil {
		return nil, err
	}
	if len(mats) != len(tracklets) {
		logf("warning: %s holds %d tracklets but the annotations index %d; delete it to rebuild",
			ds.fingerprint.Key(), len(mats), len(tracklets))
	}
	if mats == nil {
		mats = []cache.Materialization{}
	}
	ds.mats = mats
	ds.cacheHit = hit
	return ds, nil
}

// Split returns the dataset role.
func (d *Dataset) Split() Split { return d.split }

// IsTraining reports whether this is the training split.
func (d *Dataset) IsTraining() bool { return d.split.IsTraining() }

// Fingerprint returns the cache identity of the configuration.
func (d *Dataset) Fingerprint() cache.Fingerprint { return d.fingerprint }

// Cached reports whether frames are served from materializations.
func (d *Dataset) Cached() bool { return d.mats != nil }

// CacheHit reports whether materializations came from an existing blob.
func (d *Dataset) CacheHit() bool { return d.cacheHit }

// NumTracklets returns the number of tracklets.
func (d *Dataset) NumTracklets() int { return d.index.NumTracklets() }

// NumFrames returns the number of globally indexed frames.
func (d *Dataset) NumFrames() int { return d.index.NumFrames() }

// NumTrackletFrames returns the length of tracklet t.
func (d *Dataset) NumTrackletFrames(t int) (int, error) { return d.index.NumTrackletFrames(t) }

// Resolve maps a global frame number to (tracklet, frame).
func (d *Dataset) Resolve(g int) (tracklet, frame int, err error) { return d.index.Resolve(g) }

// Tracklet returns tracklet t.
func (d *Dataset) Tracklet(t int) (annotations.Tracklet, error) {
	if _, err := d.index.NumTrackletFrames(t); err != nil {
		return annotations.Tracklet{}, err
	}
	return d.tracklets[t], nil
}

// Tracklets returns every tracklet in index order. Callers must not modify
// the result.
func (d *Dataset) Tracklets() []annotations.Tracklet { return d.tracklets }

// Frame returns frame f of tracklet t, from the materialization when cached
// and freshly built otherwise. Both paths yield identical frames, and the
// caller owns the returned point cloud.
func (d *Dataset) Frame(t, f int) (frames.Frame, error) {
	n, err := d.index.NumTrackletFrames(t)
	if err != nil {
		return frames.Frame{}, err
	}
	if f < 0 || f >= n {
		return frames.Frame{}, fmt.Errorf("%w: frame %d of tracklet %d (length %d)", index.ErrIndexOutOfRange, f, t, n)
	}
	if d.mats != nil && t < len(d.mats) && f < len(d.mats[t].Frames) {
		// Materializations are shared by every reader.
		fr := d.mats[t].Frames[f]
		fr.PointCloud = fr.PointCloud.Clone()
		return fr, nil
	}
	return d.builder.Build(d.tracklets[t].Records[f])
}

// FrameAt resolves g and returns its frame.
func (d *Dataset) FrameAt(g int) (frames.Frame, error) {
	t, f, err := d.index.Resolve(g)
	if err != nil {
		return frames.Frame{}, err
	}
	return d.Frame(t, f)
}

// TemplatePointCloud returns the merged template of tracklet t.
func (d *Dataset) TemplatePointCloud(t int) (geometry.PointCloud, error) {
	if d.mats == nil {
		return geometry.PointCloud{}, ErrTemplateUnavailable
	}
	if _, err := d.index.NumTrackletFrames(t); err != nil {
		return geometry.PointCloud{}, err
	}
	if t >= len(d.mats) {
		return geometry.PointCloud{}, fmt.Errorf("%w: tracklet %d not in cache blob", index.ErrIndexOutOfRange, t)
	}
	return d.mats[t].Template.Clone(), nil
}

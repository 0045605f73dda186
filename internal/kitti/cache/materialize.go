package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/tracklets/internal/kitti/annotations"
	"github.com/banshee-data/tracklets/internal/kitti/frames"
	"github.com/banshee-data/tracklets/internal/kitti/geometry"
	"github.com/banshee-data/tracklets/internal/monitoring"
	"github.com/banshee-data/tracklets/internal/timeutil"
)

var logf = monitoring.Component("cache")

// FrameBuilder is the part of frames.Builder the materializer needs.
type FrameBuilder interface {
	BuildUncropped(rec annotations.Record) (frames.Frame, error)
	Crop(f *frames.Frame)
}

// Materializer turns tracklets into Materializations.
type Materializer struct {
	Frames         FrameBuilder
	TemplateOffset float64
	TemplateScale  float64
}

// Materialize builds every frame uncropped, merges the template from the
// full clouds, and only then crops the frames.
func (m *Materializer) Materialize(t annotations.Tracklet) (Materialization, error) {
	out := Materialization{Frames: make([]frames.Frame, 0, t.Len())}
	clouds := make([]geometry.PointCloud, 0, t.Len())
	boxes := make([]geometry.Box, 0, t.Len())
	for _, rec := range t.Records {
		f, err := m.Frames.BuildUncropped(rec)
		if err != nil {
			return Materialization{}, fmt.Errorf("scene %d track %d frame %d: %w", rec.Scene, rec.TrackID, rec.Frame, err)
		}
		out.Frames = append(out.Frames, f)
		clouds = append(clouds, f.PointCloud)
		boxes = append(boxes, f.Box)
	}

	out.Template = geometry.MergeTemplate(clouds, boxes, m.TemplateOffset, m.TemplateScale)

	for i := range out.Frames {
		m.Frames.Crop(&out.Frames[i])
	}
	return out, nil
}

// Options tunes LoadOrBuild.
type Options struct {
	// Workers bounds parallel materialization; values below 1 mean 1.
	Workers int
	// Progress receives a progress bar; nil disables it.
	Progress io.Writer
	// Clock stamps blob headers and times the build; nil means wall time.
	Clock timeutil.Clock
}

// LoadOrBuild returns the materializations stored under key, or builds them
// in tracklet order and stores them. The boolean reports a cache hit.
func LoadOrBuild(ctx context.Context, store Store, key string, tracklets []annotations.Tracklet, m *Materializer, opts Options) ([]Materialization, bool, error) {
	data, err := store.Get(ctx, key)
	switch {
	case err == nil:
		h, mats, err := Decode(data)
		if err != nil {
			return nil, false, fmt.Errorf("load %s: %w", key, err)
		}
		logf("loaded %s: %d tracklets (build %s, version %s)", key, len(mats), h.BuildID, h.Version)
		return mats, true, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	clock := timeutil.OrReal(opts.Clock)
	start := clock.Now()
	mats, err := build(ctx, tracklets, m, opts)
	if err != nil {
		return nil, false, err
	}

	h := NewHeader(clock)
	blob, err := Encode(h, mats)
	if err != nil {
		return nil, false, err
	}
	if err := store.Put(ctx, key, blob); err != nil {
		return nil, false, fmt.Errorf("persist %s: %w", key, err)
	}
	logf("built %s: %d tracklets, %d bytes in %v (build %s)", key, len(mats), len(blob), clock.Since(start).Round(time.Millisecond), h.BuildID)
	return mats, false, nil
}

func build(ctx context.Context, tracklets []annotations.Tracklet, m *Materializer, opts Options) ([]Materialization, error) {
	workers := max(opts.Workers, 1)

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(tracklets),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("materializing tracklets"),
			progressbar.OptionShowCount(),
		)
	}

	mats := make([]Materialization, len(tracklets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range tracklets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			mat, err := m.Materialize(tracklets[i])
			if err != nil {
				return err
			}
			mats[i] = mat
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return mats, nil
}

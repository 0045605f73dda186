package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tracklets/internal/fsutil"
	"github.com/banshee-data/tracklets/internal/kitti/annotations"
	"github.com/banshee-data/tracklets/internal/kitti/frames"
	"github.com/banshee-data/tracklets/internal/kitti/geometry"
	"github.com/banshee-data/tracklets/internal/timeutil"
)

// countingBuilder returns a unit box at the origin with two points inside
// it. Crop empties the cloud so tests can tell cropped from uncropped.
type countingBuilder struct {
	builds atomic.Int64
	crops  atomic.Int64
	failOn int
}

func (b *countingBuilder) BuildUncropped(rec annotations.Record) (frames.Frame, error) {
	b.builds.Add(1)
	if b.failOn > 0 && rec.Frame == b.failOn {
		return frames.Frame{}, errors.New("boom")
	}
	return frames.Frame{
		PointCloud: geometry.PointCloud{Dims: 4, Data: []float32{0, 0, 0, 1, 0.5, 0, 0, 1}},
		Box: geometry.Box{
			Center:      r3.Vec{},
			Size:        r3.Vec{X: 2, Y: 2, Z: 2},
			Orientation: quat.Number{Real: 1},
		},
		Record: rec,
	}, nil
}

func (b *countingBuilder) Crop(f *frames.Frame) {
	b.crops.Add(1)
	f.PointCloud = geometry.PointCloud{Dims: 4, Data: []float32{}}
}

func makeTracklets(lengths ...int) []annotations.Tracklet {
	var out []annotations.Tracklet
	for i, n := range lengths {
		t := annotations.Tracklet{Scene: 0, TrackID: i, Interval: 1}
		for f := 0; f < n; f++ {
			t.Records = append(t.Records, annotations.Record{Scene: 0, Frame: f, TrackID: i, Type: "Car"})
		}
		out = append(out, t)
	}
	return out
}

// -----------------------------------------------------------------------------
// Fingerprint
// -----------------------------------------------------------------------------

func TestFingerprintKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fp   Fingerprint
		want string
	}{
		{
			name: "defaults",
			fp:   Fingerprint{Category: "Car", Split: "train", CoordinateMode: "velodyne", CropOffset: -1, Interval: "1"},
			want: "KITTI_Car_train_velodyne_-1_1.cache",
		},
		{
			name: "debug exhaustive",
			fp:   Fingerprint{Category: "All", Split: "val", CoordinateMode: "camera", CropOffset: 1.5, Interval: "all", Debug: true},
			want: "KITTI_DEBUG_All_val_camera_1.5_all.cache",
		},
		{
			name: "integral offset",
			fp:   Fingerprint{Category: "Van", Split: "test", CoordinateMode: "velodyne", CropOffset: 2, Interval: "5"},
			want: "KITTI_Van_test_velodyne_2_5.cache",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fp.Key())
		})
	}
}

func TestFingerprintKey_Distinct(t *testing.T) {
	t.Parallel()

	base := Fingerprint{Category: "Car", Split: "train", CoordinateMode: "velodyne", CropOffset: -1, Interval: "1"}
	variants := []Fingerprint{base}
	for _, mutate := range []func(*Fingerprint){
		func(f *Fingerprint) { f.Category = "Van" },
		func(f *Fingerprint) { f.Split = "val" },
		func(f *Fingerprint) { f.CoordinateMode = "camera" },
		func(f *Fingerprint) { f.CropOffset = 0.5 },
		func(f *Fingerprint) { f.Interval = "all" },
		func(f *Fingerprint) { f.Debug = true },
	} {
		fp := base
		mutate(&fp)
		variants = append(variants, fp)
	}

	seen := map[string]bool{}
	for _, fp := range variants {
		assert.False(t, seen[fp.Key()], "duplicate key %s", fp.Key())
		seen[fp.Key()] = true
	}
}

// -----------------------------------------------------------------------------
// Stores
// -----------------------------------------------------------------------------

func TestStores(t *testing.T) {
	t.Parallel()

	stores := map[string]Store{
		"file":   NewFileStore(fsutil.NewMemoryFileSystem(), "/cache"),
		"memory": NewMemoryStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, store.Put(ctx, "k", []byte("first")))
			require.NoError(t, store.Put(ctx, "k", []byte("second")))

			got, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("second"), got)
		})
	}
}

func TestFileStore_NoTempLeftBehind(t *testing.T) {
	t.Parallel()

	fsys := fsutil.NewMemoryFileSystem()
	store := NewFileStore(fsys, "/cache")
	require.NoError(t, store.Put(context.Background(), "KITTI_x.cache", []byte("blob")))

	assert.True(t, fsys.Exists("/cache/KITTI_x.cache"))
	assert.False(t, fsys.Exists("/cache/KITTI_x.cache.tmp"))
}

func TestFileStore_ListAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fsys := fsutil.NewMemoryFileSystem()
	store := NewFileStore(fsys, "/cache")

	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries, "missing dir")

	require.NoError(t, store.Put(ctx, "KITTI_Van_val_camera_-1_5.cache", []byte("abc")))
	require.NoError(t, store.Put(ctx, "KITTI_Car_train_velodyne_2_1.cache", []byte("abcdef")))
	// Leftovers and unrelated files are not cache entries.
	require.NoError(t, fsys.WriteFile("/cache/KITTI_Car_test_velodyne_-1_1.cache.tmp", []byte("x"), 0644))
	require.NoError(t, fsys.WriteFile("/cache/tracklets.db", []byte("x"), 0644))

	entries, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Key: "KITTI_Car_train_velodyne_2_1.cache", SizeBytes: 6},
		{Key: "KITTI_Van_val_camera_-1_5.cache", SizeBytes: 3},
	}, entries)

	require.NoError(t, store.Delete(ctx, "KITTI_Van_val_camera_-1_5.cache"))
	require.NoError(t, store.Delete(ctx, "KITTI_Van_val_camera_-1_5.cache"), "already gone")

	_, err = store.Get(ctx, "KITTI_Van_val_camera_-1_5.cache")
	assert.True(t, errors.Is(err, ErrNotFound))
	entries, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "KITTI_Car_train_velodyne_2_1.cache", entries[0].Key)
}

// -----------------------------------------------------------------------------
// Codec
// -----------------------------------------------------------------------------

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	m := &Materializer{Frames: &countingBuilder{}, TemplateOffset: 0, TemplateScale: 1}
	var mats []Materialization
	for _, tr := range makeTracklets(2, 3) {
		mat, err := m.Materialize(tr)
		require.NoError(t, err)
		mats = append(mats, mat)
	}

	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	h := NewHeader(clock)
	assert.Equal(t, int64(1700000000), h.CreatedUnix)
	data, err := Encode(h, mats)
	require.NoError(t, err)

	gotH, gotMats, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, h, gotH)
	assert.Equal(t, FormatName, gotH.Format)
	assert.NotEmpty(t, gotH.BuildID)
	if diff := cmp.Diff(mats, gotMats, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecode_PreservesFloatBits(t *testing.T) {
	t.Parallel()

	bits := []uint32{
		0x7fc00001, // NaN with payload
		0x7fd2a5a5,
		0xffc00000, // negative NaN
		0x7f800000, // +Inf
		0x80000000, // -0
		0x00000001, // smallest subnormal
	}
	data := make([]float32, len(bits))
	for i, b := range bits {
		data[i] = math.Float32frombits(b)
	}
	mats := []Materialization{{
		Template: geometry.PointCloud{Dims: 1, Data: data},
	}}

	blob, err := Encode(NewHeader(nil), mats)
	require.NoError(t, err)
	_, got, err := Decode(blob)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Template.Data, len(bits))
	for i, want := range bits {
		assert.Equalf(t, want, math.Float32bits(got[0].Template.Data[i]), "value %d", i)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	t.Parallel()

	_, _, err := Decode([]byte("not a blob"))
	assert.True(t, errors.Is(err, ErrCorruptBlob))
}

// -----------------------------------------------------------------------------
// Materialization
// -----------------------------------------------------------------------------

func TestMaterialize_TemplateSeesUncroppedClouds(t *testing.T) {
	t.Parallel()

	b := &countingBuilder{}
	m := &Materializer{Frames: b, TemplateOffset: 0, TemplateScale: 1}

	mat, err := m.Materialize(makeTracklets(3)[0])
	require.NoError(t, err)

	require.Len(t, mat.Frames, 3)
	for _, f := range mat.Frames {
		assert.Equal(t, 0, f.PointCloud.Len(), "frames are cropped")
	}
	assert.Equal(t, 6, mat.Template.Len(), "template merges two points from each frame")
	assert.Equal(t, 3, mat.Template.Dims)
	assert.EqualValues(t, 3, b.crops.Load())
}

func TestMaterialize_PropagatesErrors(t *testing.T) {
	t.Parallel()

	m := &Materializer{Frames: &countingBuilder{failOn: 1}, TemplateScale: 1}
	_, err := m.Materialize(makeTracklets(3)[0])
	assert.ErrorContains(t, err, "boom")
}

// -----------------------------------------------------------------------------
// LoadOrBuild
// -----------------------------------------------------------------------------

func TestLoadOrBuild_MissThenHit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	tracklets := makeTracklets(2, 1, 4)
	b := &countingBuilder{}
	m := &Materializer{Frames: b, TemplateScale: 1}

	built, hit, err := LoadOrBuild(ctx, store, "k", tracklets, m, Options{Workers: 3, Progress: io.Discard})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.EqualValues(t, 7, b.builds.Load())
	assert.Equal(t, 1, store.Len())

	require.Len(t, built, 3)
	for i, mat := range built {
		assert.Len(t, mat.Frames, tracklets[i].Len(), "tracklet %d keeps its order", i)
		assert.Equal(t, tracklets[i].TrackID, mat.Frames[0].Record.TrackID)
	}

	// A second call must not touch the builder, even with different input.
	loaded, hit, err := LoadOrBuild(ctx, store, "k", nil, m, Options{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.EqualValues(t, 7, b.builds.Load())
	if diff := cmp.Diff(built, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("cached materializations differ (-built +loaded):\n%s", diff)
	}
}

func TestLoadOrBuild_ProgressOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	m := &Materializer{Frames: &countingBuilder{}, TemplateScale: 1}
	_, _, err := LoadOrBuild(context.Background(), NewMemoryStore(), "k", makeTracklets(1, 1), m, Options{Progress: &buf})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "materializing tracklets")
}

func TestLoadOrBuild_BuildErrorStoresNothing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	m := &Materializer{Frames: &countingBuilder{failOn: 2}, TemplateScale: 1}
	_, _, err := LoadOrBuild(context.Background(), store, "k", makeTracklets(4), m, Options{Workers: 2})
	assert.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestLoadOrBuild_CorruptBlob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "k", []byte("garbage")))

	m := &Materializer{Frames: &countingBuilder{}, TemplateScale: 1}
	_, _, err := LoadOrBuild(ctx, store, "k", makeTracklets(1), m, Options{})
	assert.True(t, errors.Is(err, ErrCorruptBlob))
}

type failingStore struct{ Store }

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("disk on fire")
}

func TestLoadOrBuild_StoreError(t *testing.T) {
	t.Parallel()

	m := &Materializer{Frames: &countingBuilder{}, TemplateScale: 1}
	_, _, err := LoadOrBuild(context.Background(), failingStore{}, "k", makeTracklets(1), m, Options{})
	assert.ErrorContains(t, err, "disk on fire")
}

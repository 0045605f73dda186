package annotations

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tracklets/internal/fsutil"
	"github.com/banshee-data/tracklets/internal/testutil"
)

func track(scene, id int, typ string, frames ...int) []Record {
	out := make([]Record, len(frames))
	for i, f := range frames {
		out[i] = Record{Scene: scene, Frame: f, TrackID: id, Type: typ}
	}
	return out
}

func frameNumbers(recs []Record) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = r.Frame
	}
	return out
}

func TestParseLabels(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		testutil.LabelLine(0, 1, "Car", 1.5, 1.6, 3.9, 2, 1.7, 15, 0.1),
		"",
		"1 -1 DontCare -1 -1 -10.000000 219.31 188.49 245.50 218.56 -1000 -1000 -1000 -10 -1 -1 -1",
	}, "\n")

	recs, err := ParseLabels(strings.NewReader(body), 7)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	car := recs[0]
	assert.Equal(t, 7, car.Scene)
	assert.Equal(t, 0, car.Frame)
	assert.Equal(t, 1, car.TrackID)
	assert.Equal(t, "Car", car.Type)
	assert.Equal(t, 1.5, car.Height)
	assert.Equal(t, 1.6, car.Width)
	assert.Equal(t, 3.9, car.Length)
	assert.Equal(t, 15.0, car.Z)
	assert.Equal(t, 0.1, car.RotationY)
	assert.Equal(t, 100.0, car.BBoxLeft)

	assert.Equal(t, -1, recs[1].TrackID)
	assert.Equal(t, "DontCare", recs[1].Type)
}

func TestParseLabelsErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseLabels(strings.NewReader("0 1 Car 0 0\n"), 0)
	assert.ErrorContains(t, err, "expected 17 columns")

	bad := strings.Replace(testutil.LabelLine(0, 1, "Car", 1, 1, 1, 0, 0, 0, 0), "0 1 Car", "zero 1 Car", 1)
	_, err = ParseLabels(strings.NewReader(bad), 0)
	assert.ErrorContains(t, err, "line 1")
}

func TestCategoryFilter(t *testing.T) {
	t.Parallel()

	_, err := ParseCategory("Truck")
	assert.True(t, errors.Is(err, ErrUnsupportedCategory))

	for _, typ := range []string{"Car", "Van", "Pedestrian", "Cyclist"} {
		assert.True(t, CategoryAll.Accepts(typ), typ)
	}
	for _, typ := range []string{"Truck", "Tram", "Misc", "Person_sitting", "DontCare", "All"} {
		assert.False(t, CategoryAll.Accepts(typ), typ)
	}
	assert.True(t, CategoryVan.Accepts("Van"))
	assert.False(t, CategoryVan.Accepts("Car"))
}

func TestBuildSceneAllCategories(t *testing.T) {
	t.Parallel()

	var records []Record
	types := []string{"Car", "Van", "Pedestrian", "Cyclist", "Truck", "Tram", "Misc", "Person_sitting", "DontCare"}
	for i, typ := range types {
		records = append(records, track(0, i, typ, 0, 1)...)
	}

	tracklets, err := BuildScene(records, Options{Category: CategoryAll, Subsampling: Fixed(1)})
	require.NoError(t, err)
	require.Len(t, tracklets, 4)

	var got []string
	for _, tr := range tracklets {
		got = append(got, tr.Records[0].Type)
	}
	assert.Equal(t, []string{"Car", "Van", "Pedestrian", "Cyclist"}, got)
}

func TestBuildSceneIntervalOneKeepsTracks(t *testing.T) {
	t.Parallel()

	// Shuffled frames and interleaved tracks.
	records := []Record{}
	records = append(records, track(3, 9, "Car", 5, 1, 3)...)
	records = append(records, track(3, 2, "Car", 4, 2)...)
	records = append(records, track(3, 9, "Car", 2)...)

	tracklets, err := BuildScene(records, Options{Category: CategoryCar, Subsampling: Fixed(1)})
	require.NoError(t, err)
	require.Len(t, tracklets, 2)

	assert.Equal(t, 2, tracklets[0].TrackID)
	assert.Equal(t, []int{2, 4}, frameNumbers(tracklets[0].Records))
	assert.Equal(t, 9, tracklets[1].TrackID)
	assert.Equal(t, []int{1, 2, 3, 5}, frameNumbers(tracklets[1].Records))
	for _, tr := range tracklets {
		assert.Equal(t, 1, tr.Interval)
		assert.Equal(t, 0, tr.Phase)
		assert.Equal(t, 3, tr.Scene)
	}
}

func TestBuildSceneIntervalThree(t *testing.T) {
	t.Parallel()

	records := track(0, 1, "Car", 0, 1, 2, 3, 4, 5, 6)
	tracklets, err := BuildScene(records, Options{Category: CategoryCar, Subsampling: Fixed(3)})
	require.NoError(t, err)
	require.Len(t, tracklets, 3)

	assert.Equal(t, []int{0, 3, 6}, frameNumbers(tracklets[0].Records))
	assert.Equal(t, []int{1, 4}, frameNumbers(tracklets[1].Records))
	assert.Equal(t, []int{2, 5}, frameNumbers(tracklets[2].Records))
	for phase, tr := range tracklets {
		assert.Equal(t, phase, tr.Phase)
		assert.Equal(t, 3, tr.Interval)
	}
}

func TestBuildSceneShortTrackCapsPhases(t *testing.T) {
	t.Parallel()

	records := track(0, 1, "Car", 10, 20)
	tracklets, err := BuildScene(records, Options{Category: CategoryCar, Subsampling: Fixed(5)})
	require.NoError(t, err)
	require.Len(t, tracklets, 2, "phases are capped at the track length")
	assert.Equal(t, []int{10}, frameNumbers(tracklets[0].Records))
	assert.Equal(t, []int{20}, frameNumbers(tracklets[1].Records))
}

func TestBuildSceneExhaustive(t *testing.T) {
	t.Parallel()

	records := track(0, 4, "Pedestrian", 0, 1, 2, 3, 4, 5)

	train, err := BuildScene(records, Options{Category: CategoryPedestrian, Training: true, Subsampling: Exhaustive()})
	require.NoError(t, err)
	// k=1:1, k=2:2, k=3:3, k=5:5, k=10:6 (capped)
	require.Len(t, train, 17)

	var intervals []int
	for _, tr := range train {
		if tr.Phase == 0 {
			intervals = append(intervals, tr.Interval)
		}
	}
	assert.Equal(t, []int{1, 2, 3, 5, 10}, intervals)

	eval, err := BuildScene(records, Options{Category: CategoryPedestrian, Subsampling: Exhaustive()})
	require.NoError(t, err)
	require.Len(t, eval, 5)
	assert.Equal(t, []int{0, 5}, frameNumbers(eval[0].Records))
	assert.Equal(t, []int{4}, frameNumbers(eval[4].Records))
}

func TestBuildSceneStridesCoverEveryRecord(t *testing.T) {
	t.Parallel()

	for _, k := range []int{1, 2, 3, 4, 7, 11} {
		records := track(0, 1, "Car", 0, 1, 2, 3, 4, 5, 6, 7, 8)
		tracklets, err := BuildScene(records, Options{Category: CategoryCar, Subsampling: Fixed(k)})
		require.NoError(t, err)

		seen := map[int]int{}
		for _, tr := range tracklets {
			require.NotZero(t, tr.Len())
			prev := -1
			for _, r := range tr.Records {
				assert.Greater(t, r.Frame, prev, "frames strictly increase")
				prev = r.Frame
				seen[r.Frame]++
			}
		}
		assert.Len(t, seen, 9, "k=%d", k)
		for f, n := range seen {
			assert.Equal(t, 1, n, "k=%d frame %d", k, f)
		}
	}
}

func TestBuildSceneRejectsBadOptions(t *testing.T) {
	t.Parallel()

	_, err := BuildScene(nil, Options{Category: "Bus", Subsampling: Fixed(1)})
	assert.True(t, errors.Is(err, ErrUnsupportedCategory))

	_, err = BuildScene(nil, Options{Category: CategoryCar, Subsampling: Fixed(0)})
	assert.True(t, errors.Is(err, ErrInvalidInterval))
}

func TestSubsamplingIntervalsAreCopies(t *testing.T) {
	t.Parallel()

	first := Exhaustive().Intervals(true)
	first[0] = 99
	assert.Equal(t, []int{1, 2, 3, 5, 10}, Exhaustive().Intervals(true))

	eval := Exhaustive().Intervals(false)
	eval[0] = 99
	assert.Equal(t, []int{5}, Exhaustive().Intervals(false))
	assert.Equal(t, []int{4}, Fixed(4).Intervals(true))
}

func TestParseSubsampling(t *testing.T) {
	t.Parallel()

	s, err := ParseSubsampling("all")
	require.NoError(t, err)
	assert.Equal(t, SubsampleExhaustive, s.Mode)
	assert.Equal(t, "all", s.String())

	s, err = ParseSubsampling("exhaustive")
	require.NoError(t, err)
	assert.Equal(t, Exhaustive(), s)

	s, err = ParseSubsampling("3")
	require.NoError(t, err)
	assert.Equal(t, Fixed(3), s)
	assert.Equal(t, "3", s.String())
	assert.Equal(t, []int{3}, s.Intervals(true))

	for _, bad := range []string{"0", "-2", "every", ""} {
		_, err := ParseSubsampling(bad)
		assert.True(t, errors.Is(err, ErrInvalidInterval), bad)
	}
}

func TestIndexerBuildKeepsSceneOrder(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	testutil.WriteScene(t, mfs, "/kitti", testutil.Scene{ID: 5, Labels: []string{
		testutil.LabelLine(0, 3, "Car", 1, 1, 1, 0, 0, 10, 0),
		testutil.LabelLine(1, 3, "Car", 1, 1, 1, 0, 0, 11, 0),
	}})
	testutil.WriteScene(t, mfs, "/kitti", testutil.Scene{ID: 2, Labels: []string{
		testutil.LabelLine(0, 1, "Car", 1, 1, 1, 0, 0, 10, 0),
		testutil.LabelLine(0, 0, "Van", 1, 1, 1, 0, 0, 10, 0),
	}})

	ix := NewIndexer(mfs, "/kitti")
	tracklets, err := ix.Build([]int{5, 2}, Options{Category: CategoryCar, Subsampling: Fixed(1)})
	require.NoError(t, err)
	require.Len(t, tracklets, 2)
	assert.Equal(t, 5, tracklets[0].Scene)
	assert.Equal(t, 2, tracklets[0].Len())
	assert.Equal(t, 2, tracklets[1].Scene)

	_, err = ix.Build([]int{9}, Options{Category: CategoryCar, Subsampling: Fixed(1)})
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

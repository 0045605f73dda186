package annotations

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/banshee-data/tracklets/internal/fsutil"
	"github.com/banshee-data/tracklets/internal/monitoring"
)

// ErrEmptyTracklet signals a zero-length tracklet, which indexing can never
// produce from valid input.
var ErrEmptyTracklet = errors.New("empty tracklet")

var logf = monitoring.Component("annotations")

// Tracklet is one time-ordered (possibly subsampled) slice of a physical
// track. Records have strictly increasing frame numbers.
type Tracklet struct {
	Scene    int
	TrackID  int
	Interval int
	Phase    int
	Records  []Record
}

// Len returns the number of frames.
func (t Tracklet) Len() int { return len(t.Records) }

// Options controls tracklet assembly.
type Options struct {
	Category    Category
	Training    bool
	Subsampling Subsampling
}

// Validate checks the category and subsampling settings.
func (o Options) Validate() error {
	if _, err := ParseCategory(string(o.Category)); err != nil {
		return err
	}
	return o.Subsampling.Validate()
}

// LabelPath returns the label file of a scene under root.
func LabelPath(root string, sceneID int) string {
	return filepath.Join(root, "label_02", fmt.Sprintf("%04d.txt", sceneID))
}

// Indexer reads label files and assembles tracklets.
type Indexer struct {
	fs   fsutil.FileSystem
	root string
}

// NewIndexer creates an indexer reading root/label_02.
func NewIndexer(fsys fsutil.FileSystem, root string) *Indexer {
	return &Indexer{fs: fsys, root: root}
}

// Build parses every scene in order and returns the concatenated tracklets.
func (ix *Indexer) Build(sceneIDs []int, opts Options) ([]Tracklet, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var out []Tracklet
	for _, scene := range sceneIDs {
		path := LabelPath(ix.root, scene)
		data, err := ix.fs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read labels: %w", err)
		}
		records, err := ParseLabels(bytes.NewReader(data), scene)
		if err != nil {
			return nil, err
		}
		tracklets, err := BuildScene(records, opts)
		if err != nil {
			return nil, err
		}
		logf("scene %04d: %d records, %d tracklets", scene, len(records), len(tracklets))
		out = append(out, tracklets...)
	}
	return out, nil
}

// BuildScene filters, groups and subsamples the records of one scene.
func BuildScene(records []Record, opts Options) ([]Tracklet, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	groups := make(map[int][]Record)
	for _, rec := range records {
		if opts.Category.Accepts(rec.Type) {
			groups[rec.TrackID] = append(groups[rec.TrackID], rec)
		}
	}

	trackIDs := make([]int, 0, len(groups))
	for id := range groups {
		trackIDs = append(trackIDs, id)
	}
	sort.Ints(trackIDs)

	intervals := opts.Subsampling.Intervals(opts.Training)
	var out []Tracklet
	for _, id := range trackIDs {
		group := groups[id]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Frame < group[j].Frame })

		for _, k := range intervals {
			for phase, recs := range Stride(group, k) {
				if len(recs) == 0 {
					return nil, fmt.Errorf("%w: scene %d track %d interval %d phase %d",
						ErrEmptyTracklet, group[0].Scene, id, k, phase)
				}
				out = append(out, Tracklet{
					Scene:    recs[0].Scene,
					TrackID:  id,
					Interval: k,
					Phase:    phase,
					Records:  recs,
				})
			}
		}
	}
	return out, nil
}

// Package report summarizes assembled tracklets and renders charts of their
// length distribution.
package report

import (
	"sort"

	"github.com/banshee-data/tracklets/internal/kitti/annotations"
)

// Summary is a snapshot of dataset composition.
type Summary struct {
	Split       string         `json:"split"`
	Fingerprint string         `json:"fingerprint"`
	Cached      bool           `json:"cached"`
	Scenes      int            `json:"scenes"`
	Tracklets   int            `json:"tracklets"`
	Frames      int            `json:"frames"`
	MinLength   int            `json:"min_length"`
	MaxLength   int            `json:"max_length"`
	MeanLength  float64        `json:"mean_length"`
	ByType      map[string]int `json:"by_type"`
	ByInterval  map[int]int    `json:"by_interval"`
}

// Bin counts tracklets of one length.
type Bin struct {
	Length int `json:"length"`
	Count  int `json:"count"`
}

// Summarize counts tracklets by object type and subsampling interval.
// Split, Fingerprint and Cached are left for the caller.
func Summarize(tracklets []annotations.Tracklet) Summary {
	s := Summary{
		Tracklets:  len(tracklets),
		ByType:     make(map[string]int),
		ByInterval: make(map[int]int),
	}
	scenes := make(map[int]struct{})
	for i, t := range tracklets {
		n := t.Len()
		s.Frames += n
		if i == 0 || n < s.MinLength {
			s.MinLength = n
		}
		if n > s.MaxLength {
			s.MaxLength = n
		}
		if n > 0 {
			s.ByType[t.Records[0].Type]++
		}
		s.ByInterval[t.Interval]++
		scenes[t.Scene] = struct{}{}
	}
	s.Scenes = len(scenes)
	if s.Tracklets > 0 {
		s.MeanLength = float64(s.Frames) / float64(s.Tracklets)
	}
	return s
}

// LengthHistogram returns one bin per distinct tracklet length, ascending.
func LengthHistogram(tracklets []annotations.Tracklet) []Bin {
	counts := make(map[int]int)
	for _, t := range tracklets {
		counts[t.Len()]++
	}
	bins := make([]Bin, 0, len(counts))
	for length, count := range counts {
		bins = append(bins, Bin{Length: length, Count: count})
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].Length < bins[j].Length })
	return bins
}

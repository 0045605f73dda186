// Package index maps global frame numbers onto (tracklet, frame) pairs.
//
// Every tracklet occupies a contiguous range of global indices, in tracklet
// order. Resolution is a binary search over the prefix sums of tracklet
// lengths.
package index

import (
	"errors"
	"fmt"
	"sort"
)

// ErrIndexOutOfRange is returned for global indices outside [0, NumFrames).
var ErrIndexOutOfRange = errors.New("index out of range")

// Index is immutable after New and safe for concurrent use.
type Index struct {
	lengths []int
	// ends[i] is the exclusive global end of tracklet i.
	ends []int
}

// New builds an index from tracklet lengths. Every length must be positive.
func New(lengths []int) (*Index, error) {
	ix := &Index{
		lengths: make([]int, len(lengths)),
		ends:    make([]int, len(lengths)),
	}
	total := 0
	for i, n := range lengths {
		if n <= 0 {
			return nil, fmt.Errorf("tracklet %d has length %d", i, n)
		}
		total += n
		ix.lengths[i] = n
		ix.ends[i] = total
	}
	return ix, nil
}

// NumTracklets returns the number of tracklets.
func (ix *Index) NumTracklets() int { return len(ix.lengths) }

// NumFrames returns the sum of all tracklet lengths.
func (ix *Index) NumFrames() int {
	if len(ix.ends) == 0 {
		return 0
	}
	return ix.ends[len(ix.ends)-1]
}

// NumTrackletFrames returns the length of tracklet t.
func (ix *Index) NumTrackletFrames(t int) (int, error) {
	if t < 0 || t >= len(ix.lengths) {
		return 0, fmt.Errorf("%w: tracklet %d of %d", ErrIndexOutOfRange, t, len(ix.lengths))
	}
	return ix.lengths[t], nil
}

// Bounds returns the half-open global range [start, end) of tracklet t.
func (ix *Index) Bounds(t int) (start, end int, err error) {
	if t < 0 || t >= len(ix.lengths) {
		return 0, 0, fmt.Errorf("%w: tracklet %d of %d", ErrIndexOutOfRange, t, len(ix.lengths))
	}
	end = ix.ends[t]
	return end - ix.lengths[t], end, nil
}

// Resolve returns the tracklet containing global index g and the frame
// offset within it.
func (ix *Index) Resolve(g int) (tracklet, frame int, err error) {
	if g < 0 || g >= ix.NumFrames() {
		return 0, 0, fmt.Errorf("%w: frame %d of %d", ErrIndexOutOfRange, g, ix.NumFrames())
	}
	// First tracklet whose exclusive end lies beyond g.
	t := sort.Search(len(ix.ends), func(i int) bool { return ix.ends[i] > g })
	return t, g - (ix.ends[t] - ix.lengths[t]), nil
}

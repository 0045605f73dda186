package annotations

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// ErrInvalidInterval is returned for subsampling intervals below 1.
var ErrInvalidInterval = errors.New("invalid subsampling interval")

// SubsamplingMode is the closed set of subsampling strategies.
type SubsamplingMode int

const (
	// SubsampleFixed emits one tracklet per phase of a single interval.
	SubsampleFixed SubsamplingMode = iota
	// SubsampleExhaustive applies every interval of the role's set.
	SubsampleExhaustive
)

// Interval sets used by exhaustive subsampling. Intervals hands out copies.
var (
	trainingIntervals   = []int{1, 2, 3, 5, 10}
	evaluationIntervals = []int{5}
)

// Subsampling configures how physical tracks become tracklets.
type Subsampling struct {
	Mode     SubsamplingMode
	Interval int // SubsampleFixed only
}

// Fixed returns stride-k subsampling. k == 1 keeps every track whole.
func Fixed(k int) Subsampling {
	return Subsampling{Mode: SubsampleFixed, Interval: k}
}

// Exhaustive returns the role-dependent multi-interval subsampling.
func Exhaustive() Subsampling {
	return Subsampling{Mode: SubsampleExhaustive}
}

// ParseSubsampling accepts a positive integer, "all" or "exhaustive".
func ParseSubsampling(s string) (Subsampling, error) {
	if s == "all" || s == "exhaustive" {
		return Exhaustive(), nil
	}
	k, err := strconv.Atoi(s)
	if err != nil {
		return Subsampling{}, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
	sub := Fixed(k)
	return sub, sub.Validate()
}

// Validate rejects fixed intervals below 1 and unknown modes.
func (s Subsampling) Validate() error {
	switch s.Mode {
	case SubsampleFixed:
		if s.Interval < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidInterval, s.Interval)
		}
		return nil
	case SubsampleExhaustive:
		return nil
	default:
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidInterval, s.Mode)
	}
}

// String renders the setting the way cache fingerprints spell it.
func (s Subsampling) String() string {
	if s.Mode == SubsampleExhaustive {
		return "all"
	}
	return strconv.Itoa(s.Interval)
}

// Intervals lists the strides applied for a role, in emission order. The
// result is a fresh slice the caller may modify.
func (s Subsampling) Intervals(training bool) []int {
	switch s.Mode {
	case SubsampleExhaustive:
		if training {
			return slices.Clone(trainingIntervals)
		}
		return slices.Clone(evaluationIntervals)
	default:
		return []int{s.Interval}
	}
}

// Stride returns group[phase::k] for every phase in [0, min(len, k)).
// Each result is non-empty and together they cover every record once.
func Stride(group []Record, k int) [][]Record {
	phases := min(len(group), k)
	out := make([][]Record, 0, phases)
	for p := 0; p < phases; p++ {
		slice := make([]Record, 0, (len(group)-p+k-1)/k)
		for i := p; i < len(group); i += k {
			slice = append(slice, group[i])
		}
		out = append(out, slice)
	}
	return out
}

package kitti

import (
	"errors"
	"fmt"
)

// Split is a dataset role.
type Split string

const (
	Train Split = "train"
	Val   Split = "val"
	Test  Split = "test"
)

// ErrUnknownSplit is returned for split names other than train, val and test.
var ErrUnknownSplit = errors.New("unknown split")

// ParseSplit validates a split name.
func ParseSplit(name string) (Split, error) {
	switch s := Split(name); s {
	case Train, Val, Test:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSplit, name)
	}
}

// IsTraining reports whether the split uses the training access pattern.
func (s Split) IsTraining() bool { return s == Train }

// SceneIDs returns the scenes of a split. Debug mode keeps one scene per
// split.
func SceneIDs(split Split, debug bool) ([]int, error) {
	var ids []int
	switch split {
	case Train:
		if debug {
			return []int{0}, nil
		}
		ids = sceneRange(0, 16)
	case Val:
		if debug {
			return []int{18}, nil
		}
		ids = sceneRange(17, 18)
	case Test:
		if debug {
			return []int{19}, nil
		}
		ids = sceneRange(19, 20)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplit, string(split))
	}
	return ids, nil
}

// sceneRange returns first..last inclusive.
func sceneRange(first, last int) []int {
	ids := make([]int, 0, last-first+1)
	for id := first; id <= last; id++ {
		ids = append(ids, id)
	}
	return ids
}

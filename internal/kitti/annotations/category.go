package annotations

import (
	"errors"
	"fmt"
)

// Category selects which object types become tracklets.
type Category string

const (
	CategoryCar        Category = "Car"
	CategoryVan        Category = "Van"
	CategoryPedestrian Category = "Pedestrian"
	CategoryCyclist    Category = "Cyclist"
	// CategoryAll accepts exactly the four categories above.
	CategoryAll Category = "All"
)

// ErrUnsupportedCategory is returned for category names outside the
// supported set.
var ErrUnsupportedCategory = errors.New("unsupported category")

// ParseCategory validates a category name.
func ParseCategory(name string) (Category, error) {
	switch c := Category(name); c {
	case CategoryCar, CategoryVan, CategoryPedestrian, CategoryCyclist, CategoryAll:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCategory, name)
	}
}

// Accepts reports whether a label type passes the filter.
func (c Category) Accepts(typ string) bool {
	if c == CategoryAll {
		switch Category(typ) {
		case CategoryCar, CategoryVan, CategoryPedestrian, CategoryCyclist:
			return true
		}
		return false
	}
	return typ == string(c)
}

package annotations

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// labelColumns is the fixed column count of a label_02 row.
const labelColumns = 17

// Record is one label_02 row tagged with its scene. Records are never
// mutated after parsing.
type Record struct {
	Scene     int
	Frame     int
	TrackID   int
	Type      string
	Truncated float64
	Occluded  int
	Alpha     float64

	// 2D box in image pixels, carried through untouched.
	BBoxLeft   float64
	BBoxTop    float64
	BBoxRight  float64
	BBoxBottom float64

	// 3D dimensions (metres) and bottom-centre location in camera coordinates.
	Height    float64
	Width     float64
	Length    float64
	X         float64
	Y         float64
	Z         float64
	RotationY float64
}

// ParseLabels reads a space-separated label_02 table without header. Blank
// lines are ignored; a row with the wrong column count or a non-numeric
// field is an error.
func ParseLabels(r io.Reader, scene int) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		rec, err := parseRow(fields, scene)
		if err != nil {
			return nil, fmt.Errorf("scene %04d line %d: %w", scene, line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan labels for scene %04d: %w", scene, err)
	}
	return out, nil
}

func parseRow(fields []string, scene int) (Record, error) {
	if len(fields) != labelColumns {
		return Record{}, fmt.Errorf("expected %d columns, got %d", labelColumns, len(fields))
	}

	var firstErr error
	atoi := func(col int) int {
		v, err := strconv.Atoi(fields[col])
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("column %d: %w", col, err)
		}
		return v
	}
	atof := func(col int) float64 {
		v, err := strconv.ParseFloat(fields[col], 64)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("column %d: %w", col, err)
		}
		return v
	}

	rec := Record{
		Scene:      scene,
		Frame:      atoi(0),
		TrackID:    atoi(1),
		Type:       fields[2],
		Truncated:  atof(3),
		Occluded:   atoi(4),
		Alpha:      atof(5),
		BBoxLeft:   atof(6),
		BBoxTop:    atof(7),
		BBoxRight:  atof(8),
		BBoxBottom: atof(9),
		Height:     atof(10),
		Width:      atof(11),
		Length:     atof(12),
		X:          atof(13),
		Y:          atof(14),
		Z:          atof(15),
		RotationY:  atof(16),
	}
	return rec, firstErr
}

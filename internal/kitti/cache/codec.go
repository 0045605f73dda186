package cache

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/tracklets/internal/kitti/frames"
	"github.com/banshee-data/tracklets/internal/kitti/geometry"
	"github.com/banshee-data/tracklets/internal/timeutil"
	"github.com/banshee-data/tracklets/internal/version"
)

// FormatName tags every blob header.
const FormatName = "kitti-tracklets"

// ErrCorruptBlob is returned when a blob cannot be decompressed or decoded.
var ErrCorruptBlob = errors.New("corrupt cache blob")

// blobEncMode keeps every float bit pattern, NaN payloads included, so a
// decoded blob is bit-identical to what was built.
var blobEncMode = mustEncMode(cbor.EncOptions{
	NaNConvert: cbor.NaNConvertPreserveSignal,
	InfConvert: cbor.InfConvertNone,
})

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: invalid cbor options: %v", err))
	}
	return em
}

// Materialization is the stored form of one tracklet.
type Materialization struct {
	Frames   []frames.Frame      `cbor:"frames"`
	Template geometry.PointCloud `cbor:"template"`
}

// Header describes who wrote a blob. It is informational only.
type Header struct {
	Format      string `cbor:"format"`
	Version     string `cbor:"version"`
	BuildID     string `cbor:"build_id"`
	CreatedUnix int64  `cbor:"created_unix"`
}

// NewHeader stamps a header with the running version, a fresh build id and
// the clock's current time. A nil clock means wall time.
func NewHeader(clock timeutil.Clock) Header {
	return Header{
		Format:      FormatName,
		Version:     version.Get().Short(),
		BuildID:     uuid.NewString(),
		CreatedUnix: timeutil.OrReal(clock).Now().Unix(),
	}
}

type blob struct {
	Header    Header            `cbor:"header"`
	Tracklets []Materialization `cbor:"tracklets"`
}

// Encode serializes materializations behind header.
func Encode(h Header, mats []Materialization) ([]byte, error) {
	raw, err := blobEncMode.Marshal(blob{Header: h, Tracklets: mats})
	if err != nil {
		return nil, fmt.Errorf("encode cache blob: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (Header, []Materialization, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return Header{}, nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrCorruptBlob, err)
	}
	var b blob
	if err := cbor.Unmarshal(raw, &b); err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrCorruptBlob, err)
	}
	return b.Header, b.Tracklets, nil
}

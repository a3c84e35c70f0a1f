// Package filterfile implements the single-filter on-disk envelope
// (spec.md §3, §4.G): magic, version, kind, flags, reserved, false positive
// rate, element count, then the kind-specific body.
package filterfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/ShangDanLuXian/clp/collab"
	"github.com/ShangDanLuXian/clp/internal/base"
	"github.com/ShangDanLuXian/clp/probfilter"
)

// Magic is the unterminated ASCII magic string at the start of every
// FilterFile.
var Magic = [4]byte{'C', 'L', 'P', 'F'}

// Version1 is the only currently-defined FilterFile format version.
const Version1 = 1

// FlagNormalize indicates that lookups against this filter must lower-case
// their needle before querying (spec.md §3).
const FlagNormalize = 0x1

const headerSize = 4 + 4 + 1 + 1 + 2 + 8 + 8

// Metadata describes a FilterFile without materializing its body.
type Metadata struct {
	Kind              base.FilterKind
	Normalize         bool
	FalsePositiveRate float64
	NumElements       uint64
}

// File is a decoded FilterFile: its metadata plus the wrapped filter.
type File struct {
	Metadata
	Filter *probfilter.Filter
}

// Write encodes a FilterFile record to w.
func Write(w io.Writer, meta Metadata, filter *probfilter.Filter) (int64, error) {
	var hdr [headerSize]byte
	copy(hdr[0:4], Magic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], Version1)
	hdr[8] = byte(meta.Kind)
	if meta.Normalize {
		hdr[9] = FlagNormalize
	}
	// hdr[10:12] reserved, left zero.
	binary.LittleEndian.PutUint64(hdr[12:20], math.Float64bits(meta.FalsePositiveRate))
	binary.LittleEndian.PutUint64(hdr[20:28], meta.NumElements)

	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), errors.Wrap(err, "writing filter file header")
	}
	nn, err := filter.WriteBody(w)
	return int64(n) + nn, err
}

// Read decodes a FilterFile record from r.
func Read(r io.Reader) (*File, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "reading filter file header"), base.ErrFilterFormatInvalid)
	}
	if hdr[0] != Magic[0] || hdr[1] != Magic[1] || hdr[2] != Magic[2] || hdr[3] != Magic[3] {
		return nil, errors.Wrapf(base.ErrFilterFormatInvalid, "bad magic %q", hdr[0:4])
	}
	version := binary.LittleEndian.Uint32(hdr[4:8])
	if version != Version1 {
		return nil, errors.Wrapf(base.ErrFilterFormatInvalid, "unsupported version %d", version)
	}
	kind := base.FilterKind(hdr[8])
	flags := hdr[9]
	meta := Metadata{
		Kind:              kind,
		Normalize:         flags&FlagNormalize != 0,
		FalsePositiveRate: math.Float64frombits(binary.LittleEndian.Uint64(hdr[12:20])),
		NumElements:       binary.LittleEndian.Uint64(hdr[20:28]),
	}

	filter, err := probfilter.ReadBody(r, kind)
	if err != nil {
		return nil, err
	}
	return &File{Metadata: meta, Filter: filter}, nil
}

// WriteCompressed writes a FilterFile record through a zstd stream, the
// form a dictionary or schema writer actually persists to its section path
// ("filter.write(path) returns compressed filter size", spec.md §6). It
// returns the number of compressed bytes written to w, not the logical
// record size Write reports.
func WriteCompressed(w io.Writer, meta Metadata, filter *probfilter.Filter) (int64, error) {
	var compressed bytes.Buffer
	comp, err := collab.NewCompressor(&compressed)
	if err != nil {
		return 0, errors.Wrap(err, "opening filter file compressor")
	}
	_, err = Write(comp, meta, filter)
	if closeErr := comp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, errors.Wrap(err, "writing compressed filter file")
	}
	n, err := w.Write(compressed.Bytes())
	if err != nil {
		return int64(n), errors.Wrap(err, "writing compressed filter file")
	}
	return int64(n), nil
}

// ReadCompressed is the inverse of WriteCompressed: it wraps r in a zstd
// decompressor before decoding the FilterFile record.
func ReadCompressed(r io.Reader) (*File, error) {
	dec, err := collab.NewDecompressor(r)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "opening filter file decompressor"), base.ErrFilterFormatInvalid)
	}
	defer dec.Close()
	return Read(dec)
}

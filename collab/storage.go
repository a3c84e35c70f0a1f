package collab

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// DictionaryReader resolves dictionary ids to their string values. Archive
// readers that back a schemacache.VarIDLoader or a dictfilter.Hook's
// fallback path should implement this.
type DictionaryReader interface {
	Lookup(id int64) (string, bool)
}

// DictionaryWriter accumulates values during archive construction, the
// source of truth a DictionaryFilterHook's filter must be built over before
// any value is evicted from the writer's own in-memory map.
type DictionaryWriter interface {
	Insert(value string) (id int64, isNew bool)
	// Values returns every value ever inserted, including ones later
	// evicted from the writer's primary lookup structure. Omitting an
	// evicted value here is the false-negative hazard spec.md §3 calls out.
	Values() []string
}

// PackedStreamReader opens one schema's column-major packed stream for
// sequential decode. Checking it out while a filter section is also
// checked out is not supported by the archive reader contract.
type PackedStreamReader interface {
	OpenSchema(schemaID int32) (io.ReadCloser, error)
}

// PackedStreamWriter is the writer-side counterpart, used when an archive
// writer closes a schema's packed stream before handing its accumulated
// column filters to the writers in columnfilter.
type PackedStreamWriter interface {
	CloseSchema(schemaID int32) error
}

// Compressor and Decompressor abstract the archive's block codec. The
// concrete instance is github.com/klauspost/compress/zstd; NewCompressor and
// NewDecompressor below construct it with the defaults the rest of this
// module assumes.
type Compressor interface {
	io.WriteCloser
}

type Decompressor interface {
	io.ReadCloser
}

// NewCompressor wraps w with a streaming zstd encoder.
func NewCompressor(w io.Writer) (Compressor, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// NewDecompressor wraps r with a streaming zstd decoder.
func NewDecompressor(r io.Reader) (Decompressor, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoderCloser{dec}, nil
}

// decoderCloser adapts *zstd.Decoder's Close (no error return) to
// io.Closer's signature.
type decoderCloser struct {
	*zstd.Decoder
}

func (d decoderCloser) Close() error {
	d.Decoder.Close()
	return nil
}

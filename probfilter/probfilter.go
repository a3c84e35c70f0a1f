// Package probfilter provides the value-type polymorphic wrapper over the
// four concrete filter kinds (spec.md §4.F). It resolves the reference
// implementation's Open Question of two overlapping namespaces (see
// DESIGN.md) into a single tagged-union value: exactly one of its inner
// fields is populated at a time, selected by Kind, and every operation
// dispatches on that tag rather than through an interface vtable, so the
// hot possibly-contains path never indirects through a virtual call.
package probfilter

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/ShangDanLuXian/clp/binaryfuse"
	"github.com/ShangDanLuXian/clp/bloomfilter"
	"github.com/ShangDanLuXian/clp/internal/base"
	"github.com/ShangDanLuXian/clp/internal/policy"
	"github.com/ShangDanLuXian/clp/ngramfilter"
	"github.com/ShangDanLuXian/clp/prefixsuffix"
)

// Filter is the tagged union over the concrete filter kinds.
type Filter struct {
	kind base.FilterKind

	bloom        *bloomfilter.Filter
	binaryFuse   *binaryfuse.Filter
	ngramPrefix  *ngramfilter.Filter
	prefixSuffix *prefixsuffix.Filter
}

// Kind returns the concrete implementation this wrapper holds.
func (f *Filter) Kind() base.FilterKind { return f.kind }

// New constructs a filter of the given kind from a bulk key set. Every kind
// sizes itself from the key set; a Bloom filter is sized for len(keys)
// elements.
func New(kind base.FilterKind, keys []string, falsePositiveRate float64) (*Filter, error) {
	switch kind {
	case base.KindNone:
		return &Filter{kind: base.KindNone}, nil
	case base.KindBloomV1:
		f := bloomfilter.New(len(keys), falsePositiveRate)
		for _, k := range keys {
			f.Add([]byte(k))
		}
		return &Filter{kind: base.KindBloomV1, bloom: f}, nil
	case base.KindBinaryFuse:
		byteKeys := make([][]byte, len(keys))
		for i, k := range keys {
			byteKeys[i] = []byte(k)
		}
		f, err := binaryfuse.New(byteKeys, falsePositiveRate)
		if err != nil {
			return nil, err
		}
		return &Filter{kind: base.KindBinaryFuse, binaryFuse: f}, nil
	case base.KindNGramPrefix:
		f, err := ngramfilter.New(keys, falsePositiveRate)
		if err != nil {
			return nil, err
		}
		return &Filter{kind: base.KindNGramPrefix, ngramPrefix: f}, nil
	case base.KindPrefixSuffix:
		return &Filter{kind: base.KindPrefixSuffix, prefixSuffix: prefixsuffix.New(keys, falsePositiveRate)}, nil
	default:
		return nil, errors.Wrapf(base.ErrFilterKindUnknown, "kind=%d", kind)
	}
}

// NewEmpty constructs a filter ready to receive incremental Add calls (only
// supported for KindBloomV1 and KindPrefixSuffix).
func NewEmpty(kind base.FilterKind, expectedNumElements int, falsePositiveRate float64) (*Filter, error) {
	switch kind {
	case base.KindNone:
		return &Filter{kind: base.KindNone}, nil
	case base.KindBloomV1:
		return &Filter{kind: base.KindBloomV1, bloom: bloomfilter.New(expectedNumElements, falsePositiveRate)}, nil
	case base.KindPrefixSuffix:
		return &Filter{kind: base.KindPrefixSuffix, prefixSuffix: prefixsuffix.New(nil, falsePositiveRate)}, nil
	default:
		return nil, errors.Wrapf(base.ErrFilterConstructionFailed, "kind %s requires bulk construction", kind)
	}
}

// Add inserts value. BinaryFuse and NGramPrefix are static after bulk
// construction and return an error.
func (f *Filter) Add(value string) error {
	switch f.kind {
	case base.KindNone:
		return nil
	case base.KindBloomV1:
		f.bloom.Add([]byte(value))
		return nil
	case base.KindPrefixSuffix:
		f.prefixSuffix.Add(value)
		return nil
	case base.KindBinaryFuse, base.KindNGramPrefix:
		return errors.Newf("clp: %s filter is static; add is not supported", f.kind)
	default:
		return errors.Wrapf(base.ErrFilterKindUnknown, "kind=%d", f.kind)
	}
}

// PossiblyContains dispatches to the concrete filter's membership test.
// KindNone always returns true (a filter absent entirely is the caller's
// signal to fall back to conservative behavior, not this wrapper's).
func (f *Filter) PossiblyContains(value string) bool {
	switch f.kind {
	case base.KindNone:
		return true
	case base.KindBloomV1:
		return f.bloom.PossiblyContains([]byte(value))
	case base.KindBinaryFuse:
		return f.binaryFuse.PossiblyContains([]byte(value))
	case base.KindNGramPrefix:
		return f.ngramPrefix.PossiblyContains(value)
	case base.KindPrefixSuffix:
		return f.prefixSuffix.PossiblyContains(value)
	default:
		return true
	}
}

// IsEmpty reports whether the wrapped filter has no elements.
func (f *Filter) IsEmpty() bool {
	switch f.kind {
	case base.KindNone:
		return true
	case base.KindBloomV1:
		return f.bloom.IsEmpty()
	case base.KindBinaryFuse:
		return f.binaryFuse.IsEmpty()
	case base.KindNGramPrefix:
		return f.ngramPrefix.IsEmpty()
	case base.KindPrefixSuffix:
		return f.prefixSuffix.IsEmpty()
	default:
		return true
	}
}

// MemoryUsage returns the approximate retained byte count.
func (f *Filter) MemoryUsage() int {
	switch f.kind {
	case base.KindBloomV1:
		return f.bloom.MemoryUsage()
	case base.KindBinaryFuse:
		return f.binaryFuse.MemoryUsage()
	case base.KindNGramPrefix:
		return f.ngramPrefix.MemoryUsage()
	case base.KindPrefixSuffix:
		return f.prefixSuffix.MemoryUsage()
	default:
		return 0
	}
}

// Clone performs an arm-dispatched deep copy, never sharing mutable state
// with the original.
func (f *Filter) Clone() *Filter {
	cp := &Filter{kind: f.kind}
	switch f.kind {
	case base.KindBloomV1:
		cp.bloom = f.bloom.Clone()
	case base.KindBinaryFuse:
		cp.binaryFuse = f.binaryFuse.Clone()
	case base.KindPrefixSuffix:
		cp.prefixSuffix = f.prefixSuffix.Clone()
	case base.KindNGramPrefix:
		// ngramfilter has no standalone Clone; round-trip through the wire
		// format, mirroring the reference's policy-clone-by-reconstruction
		// fallback for filters with no shallow-copyable internal state.
		var buf writeReadBuffer
		_, _ = f.ngramPrefix.WriteTo(&buf)
		inner, err := ngramfilter.ReadFrom(&buf)
		if err == nil {
			cp.ngramPrefix = inner
		}
	}
	return cp
}

// writeReadBuffer is a tiny growable byte buffer used only by Clone, to
// avoid pulling in bytes.Buffer's larger surface for one call site.
type writeReadBuffer struct {
	data []byte
	pos  int
}

func (b *writeReadBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *writeReadBuffer) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

// WriteTo writes the kind byte followed by the concrete filter's body. Used
// when a ProbabilisticFilter is serialized on its own, self-describing its
// kind the way spec.md §4.F requires. FilterFile (spec.md §4.G) already
// carries the kind in its own header and calls WriteBody/ReadBody directly
// to avoid writing the tag twice.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write([]byte{byte(f.kind)})
	if err != nil {
		return int64(n), errors.Wrap(err, "writing filter kind byte")
	}
	nn, err := f.WriteBody(w)
	return int64(n) + nn, err
}

// WriteBody writes only the concrete filter's body, without a leading kind
// byte; the caller is expected to already know (and persist, elsewhere)
// which kind this is.
func (f *Filter) WriteBody(w io.Writer) (int64, error) {
	switch f.kind {
	case base.KindNone:
		return 0, nil
	case base.KindBloomV1:
		return f.bloom.WriteTo(w)
	case base.KindBinaryFuse:
		return f.binaryFuse.WriteTo(w)
	case base.KindNGramPrefix:
		return f.ngramPrefix.WriteTo(w)
	case base.KindPrefixSuffix:
		return f.prefixSuffix.WriteTo(w)
	default:
		return 0, errors.Wrapf(base.ErrFilterKindUnknown, "kind=%d", f.kind)
	}
}

// ReadFrom reads a kind byte then dispatches to the matching concrete
// filter's reader. See WriteTo for when to use this versus ReadBody.
func ReadFrom(r io.Reader) (*Filter, error) {
	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "reading filter kind byte"), base.ErrFilterFormatInvalid)
	}
	return ReadBody(r, base.FilterKind(kindByte[0]))
}

// ReadBody reads only the concrete filter's body for a kind already known
// to the caller (e.g. decoded from a FilterFile header).
func ReadBody(r io.Reader, kind base.FilterKind) (*Filter, error) {
	switch kind {
	case base.KindNone:
		return &Filter{kind: base.KindNone}, nil
	case base.KindBloomV1:
		inner, err := bloomfilter.ReadFrom(r)
		if err != nil {
			return nil, err
		}
		return &Filter{kind: kind, bloom: inner}, nil
	case base.KindBinaryFuse:
		inner, err := binaryfuse.ReadFrom(r)
		if err != nil {
			return nil, err
		}
		return &Filter{kind: kind, binaryFuse: inner}, nil
	case base.KindNGramPrefix:
		inner, err := ngramfilter.ReadFrom(r)
		if err != nil {
			return nil, err
		}
		return &Filter{kind: kind, ngramPrefix: inner}, nil
	case base.KindPrefixSuffix:
		inner, err := prefixsuffix.ReadFrom(r)
		if err != nil {
			return nil, err
		}
		return &Filter{kind: kind, prefixSuffix: inner}, nil
	default:
		return nil, errors.Wrapf(base.ErrFilterKindUnknown, "kind=%d", byte(kind))
	}
}

// PolicyFor returns the default sizing policy for kind, mirroring the
// reference's pairing of each concrete filter with its own IFilterPolicy.
func PolicyFor(kind base.FilterKind) policy.Policy {
	switch kind {
	case base.KindBinaryFuse:
		return policy.BinaryFuse{}
	default:
		return policy.Bloom{}
	}
}

// Package prefixsuffix implements the forward/reverse double Bloom filter
// used to answer single-anchored wildcard queries (spec.md §4.E):
// `prefix*`, `*suffix`, and exact match are each resolvable; `*infix*`
// always returns true since neither inner filter can answer a substring
// query.
package prefixsuffix

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/ShangDanLuXian/clp/bloomfilter"
)

const (
	minLength = 3
	stride    = 1
)

// Filter wraps a forward Bloom filter over prefixes and a reverse Bloom
// filter over suffixes (stored as prefixes of the reversed key).
type Filter struct {
	forward *bloomfilter.Filter
	reverse *bloomfilter.Filter
}

// New builds a filter from the given keys at the target false positive rate.
func New(keys []string, falsePositiveRate float64) *Filter {
	totalItems := 0
	for _, k := range keys {
		if len(k) >= minLength {
			totalItems += (len(k)-minLength)/stride + 1
		}
	}
	if totalItems == 0 {
		totalItems = len(keys)
	}

	f := &Filter{
		forward: bloomfilter.New(totalItems, falsePositiveRate),
		reverse: bloomfilter.New(totalItems, falsePositiveRate),
	}
	for _, k := range keys {
		f.Add(k)
	}
	return f
}

// Add inserts value's prefixes into the forward filter and the reversed
// value's prefixes into the reverse filter.
func (f *Filter) Add(value string) {
	if value == "" {
		return
	}
	addPrefixes(value, f.forward)
	addPrefixes(reverseString(value), f.reverse)
}

func addPrefixes(value string, filter *bloomfilter.Filter) {
	if len(value) < minLength {
		filter.Add([]byte(value))
		return
	}
	for length := minLength; length <= len(value); length += stride {
		filter.Add([]byte(value[:length]))
	}
	if (len(value)-minLength)%stride != 0 {
		filter.Add([]byte(value))
	}
}

func reverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// IsEmpty reports whether the filter has never had a value added.
func (f *Filter) IsEmpty() bool {
	return f.forward == nil || f.forward.IsEmpty()
}

// PossiblyContains evaluates a wildcard or exact query. Queries ending and
// starting with '*' are infix queries and always return true.
func (f *Filter) PossiblyContains(query string) bool {
	if f.IsEmpty() {
		return false
	}
	hasStartWildcard := len(query) > 0 && query[0] == '*'
	hasEndWildcard := len(query) > 0 && query[len(query)-1] == '*'

	switch {
	case hasStartWildcard && hasEndWildcard:
		return true
	case hasStartWildcard:
		suffix := query[1:]
		return f.reverse.PossiblyContains([]byte(reverseString(suffix)))
	case hasEndWildcard:
		prefix := query[:len(query)-1]
		return f.forward.PossiblyContains([]byte(prefix))
	default:
		return f.forward.PossiblyContains([]byte(query))
	}
}

// MemoryUsage sums the two inner filters' memory usage.
func (f *Filter) MemoryUsage() int {
	return f.forward.MemoryUsage() + f.reverse.MemoryUsage()
}

// Clone returns a deep copy.
func (f *Filter) Clone() *Filter {
	return &Filter{forward: f.forward.Clone(), reverse: f.reverse.Clone()}
}

// WriteTo writes the forward filter body then the reverse filter body, each
// prefixed with its own Bloom kind byte. No outer kind byte is written.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	var total int64
	n, err := writeInner(w, bloomKindByte, f.forward)
	total += n
	if err != nil {
		return total, errors.Wrap(err, "writing prefix-suffix forward filter")
	}
	n, err = writeInner(w, bloomKindByte, f.reverse)
	total += n
	if err != nil {
		return total, errors.Wrap(err, "writing prefix-suffix reverse filter")
	}
	return total, nil
}

// bloomKindByte mirrors internal/base.KindBloomV1; duplicated as a literal
// here to avoid importing internal/base solely for one constant in a file
// that otherwise has no base dependency.
const bloomKindByte = 1

func writeInner(w io.Writer, kind byte, inner *bloomfilter.Filter) (int64, error) {
	n1, err := w.Write([]byte{kind})
	if err != nil {
		return int64(n1), err
	}
	n2, err := inner.WriteTo(w)
	return int64(n1) + n2, err
}

// ReadFrom reads a body previously written by WriteTo (the outer kind byte
// must already have been consumed by the caller).
func ReadFrom(r io.Reader) (*Filter, error) {
	forward, err := readInner(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading prefix-suffix forward filter")
	}
	reverse, err := readInner(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading prefix-suffix reverse filter")
	}
	return &Filter{forward: forward, reverse: reverse}, nil
}

func readInner(r io.Reader) (*bloomfilter.Filter, error) {
	var kind [1]byte
	if _, err := io.ReadFull(r, kind[:]); err != nil {
		return nil, err
	}
	if kind[0] != bloomKindByte {
		return nil, errors.Newf("clp: prefix-suffix inner filter has unexpected kind %d", kind[0])
	}
	return bloomfilter.ReadFrom(r)
}

// Package columnfilter implements the per-schema exact-value column filters
// (spec.md §4.I): a set of distinct values seen for a column, persisted only
// when the column's cardinality is low relative to its row count. Both the
// int and string variants apply the same conservative-true semantics for a
// column absent from the filter; see DESIGN.md for the Open Question this
// resolves.
package columnfilter

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"

	"github.com/ShangDanLuXian/clp/internal/base"
)

// DefaultThreshold is the distinct/total ratio below which a column's value
// set is worth persisting as a filter.
const DefaultThreshold = 1.0 / 100.0

// IntColumnFilter tracks the distinct int64 values seen per column id during
// archive construction, then narrows itself to the low-cardinality subset on
// write.
type IntColumnFilter struct {
	values    *swiss.Map[int32, *swiss.Map[int64, struct{}]]
	counts    *swiss.Map[int32, int64]
	threshold float64
}

// NewIntColumnFilter returns an empty filter ready to accumulate values.
func NewIntColumnFilter() *IntColumnFilter {
	return &IntColumnFilter{
		values:    swiss.New[int32, *swiss.Map[int64, struct{}]](0),
		counts:    swiss.New[int32, int64](0),
		threshold: DefaultThreshold,
	}
}

// AddValue records one observation of value in columnID.
func (f *IntColumnFilter) AddValue(columnID int32, value int64) {
	set, ok := f.values.Get(columnID)
	if !ok {
		set = swiss.New[int64, struct{}](0)
		f.values.Put(columnID, set)
	}
	set.Put(value, struct{}{})
	count, _ := f.counts.Get(columnID)
	f.counts.Put(columnID, count+1)
}

// IsEmpty reports whether any column has been observed.
func (f *IntColumnFilter) IsEmpty() bool { return f.values.Len() == 0 }

// Contains reports whether value was among the distinct values seen for
// columnID. A columnID never observed at all is conservative-true: the
// caller cannot rule the row out, so it must not be skipped.
func (f *IntColumnFilter) Contains(columnID int32, value int64) bool {
	set, ok := f.values.Get(columnID)
	if !ok {
		return true
	}
	_, ok = set.Get(value)
	return ok
}

// Clone performs a deep copy.
func (f *IntColumnFilter) Clone() *IntColumnFilter {
	cp := NewIntColumnFilter()
	cp.threshold = f.threshold
	f.values.All(func(columnID int32, set *swiss.Map[int64, struct{}]) bool {
		newSet := swiss.New[int64, struct{}](set.Len())
		set.All(func(v int64, _ struct{}) bool {
			newSet.Put(v, struct{}{})
			return true
		})
		cp.values.Put(columnID, newSet)
		return true
	})
	f.counts.All(func(columnID int32, count int64) bool {
		cp.counts.Put(columnID, count)
		return true
	})
	return cp
}

type intColumnEntry struct {
	columnID int32
	values   []int64
}

func (f *IntColumnFilter) selectedColumns() []intColumnEntry {
	var out []intColumnEntry
	f.values.All(func(columnID int32, set *swiss.Map[int64, struct{}]) bool {
		totalCount, ok := f.counts.Get(columnID)
		if !ok || totalCount <= 0 {
			return true
		}
		ratio := float64(set.Len()) / float64(totalCount)
		if ratio > f.threshold {
			return true
		}
		values := make([]int64, 0, set.Len())
		set.All(func(v int64, _ struct{}) bool {
			values = append(values, v)
			return true
		})
		out = append(out, intColumnEntry{columnID: columnID, values: values})
		return true
	})
	return out
}

// WriteTo persists only the low-cardinality subset of columns, mirroring the
// original implementation's threshold-gated selection.
func (f *IntColumnFilter) WriteTo(w io.Writer) (int64, error) {
	selected := f.selectedColumns()
	var total int64
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(selected)))
	n, err := w.Write(hdr[:])
	total += int64(n)
	if err != nil {
		return total, errors.Wrap(err, "writing int column filter header")
	}
	for _, entry := range selected {
		var tail [4 + 8]byte
		binary.LittleEndian.PutUint32(tail[0:4], uint32(entry.columnID))
		binary.LittleEndian.PutUint64(tail[4:12], uint64(len(entry.values)))
		n, err := w.Write(tail[:])
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "writing int column filter entry header")
		}
		valueBuf := make([]byte, 8*len(entry.values))
		for i, v := range entry.values {
			binary.LittleEndian.PutUint64(valueBuf[i*8:], uint64(v))
		}
		n, err = w.Write(valueBuf)
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "writing int column filter values")
		}
	}
	return total, nil
}

// ReadIntColumnFilter decodes a filter written by WriteTo.
func ReadIntColumnFilter(r io.Reader) (*IntColumnFilter, error) {
	f := NewIntColumnFilter()
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "reading int column filter header"), base.ErrFilterFormatInvalid)
	}
	numColumns := binary.LittleEndian.Uint32(hdr[:])
	for i := uint32(0); i < numColumns; i++ {
		var tail [4 + 8]byte
		if _, err := io.ReadFull(r, tail[:]); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "reading int column filter entry header"), base.ErrFilterFormatInvalid)
		}
		columnID := int32(binary.LittleEndian.Uint32(tail[0:4]))
		numValues := binary.LittleEndian.Uint64(tail[4:12])
		set := swiss.New[int64, struct{}](int(numValues))
		valueBuf := make([]byte, 8*numValues)
		if _, err := io.ReadFull(r, valueBuf); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "reading int column filter values"), base.ErrFilterFormatInvalid)
		}
		for j := uint64(0); j < numValues; j++ {
			v := int64(binary.LittleEndian.Uint64(valueBuf[j*8:]))
			set.Put(v, struct{}{})
		}
		f.values.Put(columnID, set)
		// The persisted form drops per-column counts; they are only needed
		// while accumulating, not while querying.
		f.counts.Put(columnID, 0)
	}
	return f, nil
}

// StringColumnFilter tracks the distinct string values seen per column id.
type StringColumnFilter struct {
	values    *swiss.Map[int32, *swiss.Map[string, struct{}]]
	counts    *swiss.Map[int32, int64]
	threshold float64
}

// NewStringColumnFilter returns an empty filter ready to accumulate values.
func NewStringColumnFilter() *StringColumnFilter {
	return &StringColumnFilter{
		values:    swiss.New[int32, *swiss.Map[string, struct{}]](0),
		counts:    swiss.New[int32, int64](0),
		threshold: DefaultThreshold,
	}
}

// AddValue records one observation of value in columnID.
func (f *StringColumnFilter) AddValue(columnID int32, value string) {
	set, ok := f.values.Get(columnID)
	if !ok {
		set = swiss.New[string, struct{}](0)
		f.values.Put(columnID, set)
	}
	set.Put(value, struct{}{})
	count, _ := f.counts.Get(columnID)
	f.counts.Put(columnID, count+1)
}

// IsEmpty reports whether any column has been observed.
func (f *StringColumnFilter) IsEmpty() bool { return f.values.Len() == 0 }

// Contains reports whether value was among the distinct values seen for
// columnID. A columnID never observed is conservative-true.
func (f *StringColumnFilter) Contains(columnID int32, value string) bool {
	set, ok := f.values.Get(columnID)
	if !ok {
		return true
	}
	_, ok = set.Get(value)
	return ok
}

// Clone performs a deep copy.
func (f *StringColumnFilter) Clone() *StringColumnFilter {
	cp := NewStringColumnFilter()
	cp.threshold = f.threshold
	f.values.All(func(columnID int32, set *swiss.Map[string, struct{}]) bool {
		newSet := swiss.New[string, struct{}](set.Len())
		set.All(func(v string, _ struct{}) bool {
			newSet.Put(v, struct{}{})
			return true
		})
		cp.values.Put(columnID, newSet)
		return true
	})
	f.counts.All(func(columnID int32, count int64) bool {
		cp.counts.Put(columnID, count)
		return true
	})
	return cp
}

type stringColumnEntry struct {
	columnID int32
	values   []string
}

func (f *StringColumnFilter) selectedColumns() []stringColumnEntry {
	var out []stringColumnEntry
	f.values.All(func(columnID int32, set *swiss.Map[string, struct{}]) bool {
		totalCount, ok := f.counts.Get(columnID)
		if !ok || totalCount <= 0 {
			return true
		}
		ratio := float64(set.Len()) / float64(totalCount)
		if ratio > f.threshold {
			return true
		}
		values := make([]string, 0, set.Len())
		set.All(func(v string, _ struct{}) bool {
			values = append(values, v)
			return true
		})
		out = append(out, stringColumnEntry{columnID: columnID, values: values})
		return true
	})
	return out
}

// WriteTo persists only the low-cardinality subset of columns.
func (f *StringColumnFilter) WriteTo(w io.Writer) (int64, error) {
	selected := f.selectedColumns()
	var total int64
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(selected)))
	n, err := w.Write(hdr[:])
	total += int64(n)
	if err != nil {
		return total, errors.Wrap(err, "writing string column filter header")
	}
	for _, entry := range selected {
		var tail [4 + 8]byte
		binary.LittleEndian.PutUint32(tail[0:4], uint32(entry.columnID))
		binary.LittleEndian.PutUint64(tail[4:12], uint64(len(entry.values)))
		n, err := w.Write(tail[:])
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "writing string column filter entry header")
		}
		for _, v := range entry.values {
			var lenBuf [8]byte
			binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(v)))
			n, err := w.Write(lenBuf[:])
			total += int64(n)
			if err != nil {
				return total, errors.Wrap(err, "writing string column filter value length")
			}
			n, err = io.WriteString(w, v)
			total += int64(n)
			if err != nil {
				return total, errors.Wrap(err, "writing string column filter value")
			}
		}
	}
	return total, nil
}

// ReadStringColumnFilter decodes a filter written by WriteTo.
func ReadStringColumnFilter(r io.Reader) (*StringColumnFilter, error) {
	f := NewStringColumnFilter()
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "reading string column filter header"), base.ErrFilterFormatInvalid)
	}
	numColumns := binary.LittleEndian.Uint32(hdr[:])
	for i := uint32(0); i < numColumns; i++ {
		var tail [4 + 8]byte
		if _, err := io.ReadFull(r, tail[:]); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "reading string column filter entry header"), base.ErrFilterFormatInvalid)
		}
		columnID := int32(binary.LittleEndian.Uint32(tail[0:4]))
		numValues := binary.LittleEndian.Uint64(tail[4:12])
		set := swiss.New[string, struct{}](int(numValues))
		for j := uint64(0); j < numValues; j++ {
			var lenBuf [8]byte
			if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
				return nil, errors.Mark(errors.Wrap(err, "reading string column filter value length"), base.ErrFilterFormatInvalid)
			}
			strLen := binary.LittleEndian.Uint64(lenBuf[:])
			valueBuf := make([]byte, strLen)
			if _, err := io.ReadFull(r, valueBuf); err != nil {
				return nil, errors.Mark(errors.Wrap(err, "reading string column filter value"), base.ErrFilterFormatInvalid)
			}
			set.Put(string(valueBuf), struct{}{})
		}
		f.values.Put(columnID, set)
		f.counts.Put(columnID, 0)
	}
	return f, nil
}

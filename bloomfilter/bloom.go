// Package bloomfilter implements the classical double-hashed bit-array
// filter (spec.md §4.B). Hashing is SHA-256 based rather than a
// Murmur-style mix: the wire format is shared with a non-Go dictionary
// writer, so the hash construction is pinned exactly rather than chosen for
// speed.
package bloomfilter

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/ShangDanLuXian/clp/internal/base"
	"github.com/ShangDanLuXian/clp/internal/policy"
)

// minBitArraySizeBits is the enforced floor that keeps a Bloom filter
// non-degenerate even when constructed over zero or one elements.
const minBitArraySizeBits = 8

const bloomSuffix = "_bloom_"

// Filter is a classical Bloom filter over byte-string values.
type Filter struct {
	bitArray          []byte
	bitArraySizeBits  uint64
	numHashFunctions  uint32
}

// New constructs an empty filter sized for expectedNumElements at the given
// target false positive rate.
func New(expectedNumElements int, falsePositiveRate float64) *Filter {
	return NewWithPolicy(expectedNumElements, falsePositiveRate, policy.Bloom{})
}

// NewWithPolicy is New but with an explicit sizing policy, mirroring the
// reference constructor that accepts an IFilterPolicy.
func NewWithPolicy(expectedNumElements int, falsePositiveRate float64, pol policy.Policy) *Filter {
	params := pol.ComputeParameters(falsePositiveRate)
	n := expectedNumElements
	if n < 0 {
		n = 0
	}
	bits := uint64(float64(n) * params.BitsPerKey)
	if bits < minBitArraySizeBits {
		bits = minBitArraySizeBits
	}
	numBytes := (bits + 7) / 8
	return &Filter{
		bitArray:         make([]byte, numBytes),
		bitArraySizeBits: numBytes * 8,
		numHashFunctions: params.Hashes,
	}
}

// IsEmpty reports whether the filter has never had a key added to it. A
// freshly-constructed filter with a zeroed bit array is considered empty.
func (f *Filter) IsEmpty() bool {
	for _, b := range f.bitArray {
		if b != 0 {
			return false
		}
	}
	return true
}

// Add inserts value into the filter. It never fails.
func (f *Filter) Add(value []byte) {
	h1, h2 := f.hashPair(value)
	for i := uint32(0); i < f.numHashFunctions; i++ {
		pos := f.bitPosition(h1, h2, i)
		f.bitArray[pos/8] |= 1 << (pos % 8)
	}
}

// PossiblyContains returns false if value is definitely absent, true if it
// may be present.
func (f *Filter) PossiblyContains(value []byte) bool {
	if f.bitArraySizeBits == 0 {
		return false
	}
	h1, h2 := f.hashPair(value)
	for i := uint32(0); i < f.numHashFunctions; i++ {
		pos := f.bitPosition(h1, h2, i)
		if f.bitArray[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

func (f *Filter) bitPosition(h1, h2 uint64, i uint32) uint64 {
	return (h1 + uint64(i)*h2) % f.bitArraySizeBits
}

// hashPair computes the two seed hashes used by double hashing: SHA-256 of
// value, and SHA-256 of value with the "_bloom_" suffix appended, each
// interpreted as a little-endian uint64 over its first 8 bytes.
func (f *Filter) hashPair(value []byte) (h1, h2 uint64) {
	sum1 := sha256.Sum256(value)
	buf := make([]byte, 0, len(value)+len(bloomSuffix))
	buf = append(buf, value...)
	buf = append(buf, bloomSuffix...)
	sum2 := sha256.Sum256(buf)
	return binary.LittleEndian.Uint64(sum1[:8]), binary.LittleEndian.Uint64(sum2[:8])
}

// NumHashFunctions returns the number of hash probes per lookup.
func (f *Filter) NumHashFunctions() uint32 { return f.numHashFunctions }

// BitArraySizeBits returns the size of the bit array in bits.
func (f *Filter) BitArraySizeBits() uint64 { return f.bitArraySizeBits }

// WriteTo writes the Bloom body, without a leading kind byte: u32
// numHashFunctions, u64 bitArraySizeBits, u64 len(bitArray), then the raw
// bytes.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	var hdr [4 + 8 + 8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], f.numHashFunctions)
	binary.LittleEndian.PutUint64(hdr[4:12], f.bitArraySizeBits)
	binary.LittleEndian.PutUint64(hdr[12:20], uint64(len(f.bitArray)))
	n1, err := w.Write(hdr[:])
	if err != nil {
		return int64(n1), errors.Wrap(err, "writing bloom header")
	}
	n2, err := w.Write(f.bitArray)
	if err != nil {
		return int64(n1 + n2), errors.Wrap(err, "writing bloom body")
	}
	return int64(n1 + n2), nil
}

// ReadFrom reads a Bloom body previously written by WriteTo (the kind byte
// must already have been consumed by the caller).
func ReadFrom(r io.Reader) (*Filter, error) {
	var hdr [4 + 8 + 8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "reading bloom header"), base.ErrFilterFormatInvalid)
	}
	numHashFunctions := binary.LittleEndian.Uint32(hdr[0:4])
	bitArraySizeBits := binary.LittleEndian.Uint64(hdr[4:12])
	numBytes := binary.LittleEndian.Uint64(hdr[12:20])

	body := make([]byte, numBytes)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "reading bloom body"), base.ErrFilterFormatInvalid)
	}
	return &Filter{
		bitArray:         body,
		bitArraySizeBits: bitArraySizeBits,
		numHashFunctions: numHashFunctions,
	}, nil
}

// Clone returns a deep copy.
func (f *Filter) Clone() *Filter {
	cp := &Filter{
		bitArraySizeBits: f.bitArraySizeBits,
		numHashFunctions: f.numHashFunctions,
		bitArray:         make([]byte, len(f.bitArray)),
	}
	copy(cp.bitArray, f.bitArray)
	return cp
}

// MemoryUsage returns an approximate number of bytes retained by the filter.
func (f *Filter) MemoryUsage() int {
	return len(f.bitArray) + 24
}

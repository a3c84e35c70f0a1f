// Package ngramfilter implements the length-bucketed n-gram decomposition
// filter (spec.md §4.D): keys are grouped by length, and for length classes
// at or above the derived n-gram size each key is decomposed into its
// overlapping n-grams before insertion into an inner binary fuse filter.
package ngramfilter

import (
	"encoding/binary"
	"io"
	"math"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/ShangDanLuXian/clp/binaryfuse"
	"github.com/ShangDanLuXian/clp/internal/base"
	"github.com/ShangDanLuXian/clp/internal/policy"
)

const (
	targetCollisionRate = 0.01
	alphabetSize        = 26.0
)

// Filter holds one inner binary fuse filter per observed key length class.
type Filter struct {
	n             int
	lengthFilters map[uint32]*binaryfuse.Filter
}

// New builds a filter over keys at the target false positive rate.
func New(keys []string, falsePositiveRate float64) (*Filter, error) {
	f := &Filter{lengthFilters: make(map[uint32]*binaryfuse.Filter)}
	if len(keys) == 0 {
		return f, nil
	}

	lengthKeys := groupByLength(keys)
	f.n = calculateN(lengthKeys)

	lengthNgrams := extractNgrams(lengthKeys, f.n)

	lengths := make([]uint32, 0, len(lengthKeys))
	for length := range lengthKeys {
		lengths = append(lengths, length)
	}
	sort.Slice(lengths, func(i, j int) bool { return lengths[i] < lengths[j] })

	for _, length := range lengths {
		keySet := lengthKeys[length]
		if int(length) < f.n {
			inner, err := buildInner(keySet, falsePositiveRate)
			if err != nil {
				return nil, err
			}
			f.lengthFilters[length] = inner
			continue
		}

		ngramSet := lengthNgrams[length]
		if len(ngramSet) == 0 {
			inner, err := buildInner(keySet, falsePositiveRate)
			if err != nil {
				return nil, err
			}
			f.lengthFilters[length] = inner
			continue
		}

		perNgramFPR := computePerNgramFPR(falsePositiveRate, len(keySet), len(ngramSet))
		inner, err := buildInner(ngramSet, perNgramFPR)
		if err != nil {
			return nil, err
		}
		f.lengthFilters[length] = inner
	}
	return f, nil
}

func buildInner(keys []string, fpr float64) (*binaryfuse.Filter, error) {
	byteKeys := make([][]byte, len(keys))
	for i, k := range keys {
		byteKeys[i] = []byte(k)
	}
	return binaryfuse.New(byteKeys, fpr)
}

func groupByLength(keys []string) map[uint32][]string {
	out := make(map[uint32][]string)
	seen := make(map[string]bool)
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out[uint32(len(k))] = append(out[uint32(len(k))], k)
	}
	return out
}

// calculateN derives the n-gram length from the observed key population, as
// n ≈ log_A(K / (-ln(1-T))), clamped to [1, floor(average key length)].
func calculateN(lengthKeys map[uint32][]string) int {
	var totalLength, keyCount int
	for length, keys := range lengthKeys {
		totalLength += int(length) * len(keys)
		keyCount += len(keys)
	}
	if keyCount == 0 {
		return 0
	}
	averageKeyLength := float64(totalLength) / float64(keyCount)

	denom := -math.Log(1.0 - targetCollisionRate)
	aPowN := float64(keyCount) / denom
	nReal := math.Log(aPowN) / math.Log(alphabetSize)

	n := int(math.Round(nReal))
	if n < 1 {
		n = 1
	}
	if max := int(math.Floor(averageKeyLength)); n > max {
		n = max
	}
	if n < 1 {
		n = 1
	}
	return n
}

func extractNgrams(lengthKeys map[uint32][]string, n int) map[uint32][]string {
	out := make(map[uint32][]string)
	if n == 0 {
		return out
	}
	for length, keys := range lengthKeys {
		if int(length) < n {
			continue
		}
		seen := make(map[string]bool)
		var ngrams []string
		for _, key := range keys {
			for pos := 0; pos+n <= len(key); pos++ {
				g := key[pos : pos+n]
				if !seen[g] {
					seen[g] = true
					ngrams = append(ngrams, g)
				}
			}
		}
		out[length] = ngrams
	}
	return out
}

// computePerNgramFPR spreads the bit budget that a full-key Bloom filter at
// the target FPR would have used evenly across the unique n-grams in a
// length class, then inverts the Bloom policy to find the resulting FPR.
// The commented-out saturation guard in the reference implementation is
// intentionally not reproduced (see DESIGN.md).
func computePerNgramFPR(targetFPR float64, numEntries, ngramCount int) float64 {
	if targetFPR <= 0.0 || targetFPR >= 1.0 || ngramCount == 0 || numEntries == 0 {
		return targetFPR
	}
	bitsPerKey := bloomBitsPerKeyFor(targetFPR)
	totalBits := bitsPerKey * float64(numEntries)
	bitsPerNgram := totalBits / float64(ngramCount)
	return fprFromBitsPerKey(bitsPerNgram)
}

func bloomBitsPerKeyFor(p float64) float64 {
	return policy.Bloom{}.ComputeParameters(p).BitsPerKey
}

// fprFromBitsPerKey inverts the Bloom sizing formula: given a bits-per-key
// budget, compute the optimal hash count and the FPR that produces.
func fprFromBitsPerKey(bitsPerKey float64) float64 {
	if bitsPerKey <= 0.0 {
		return 1.0
	}
	k := math.Round(bitsPerKey * math.Ln2)
	if k < 1 {
		k = 1
	}
	exponent := -k / bitsPerKey
	base := 1.0 - math.Exp(exponent)
	return math.Pow(base, k)
}

// IsEmpty reports whether the filter has no length classes populated.
func (f *Filter) IsEmpty() bool {
	return len(f.lengthFilters) == 0
}

// N returns the computed n-gram length.
func (f *Filter) N() int { return f.n }

// PossiblyContains returns true iff every n-gram of value (or value itself,
// for keys shorter than n) passes the inner filter for its length class.
func (f *Filter) PossiblyContains(value string) bool {
	inner, ok := f.lengthFilters[uint32(len(value))]
	if !ok {
		return false
	}
	if len(value) < f.n {
		return inner.PossiblyContains([]byte(value))
	}
	for pos := 0; pos+f.n <= len(value); pos++ {
		if !inner.PossiblyContains([]byte(value[pos : pos+f.n])) {
			return false
		}
	}
	return true
}

// MemoryUsage sums the inner filters' memory usage.
func (f *Filter) MemoryUsage() int {
	total := 0
	for _, inner := range f.lengthFilters {
		total += inner.MemoryUsage()
	}
	return total
}

// WriteTo writes the n-gram body, without a leading kind byte: u32 n, u32
// numLengths, then for each length class (sorted, for determinism): u32
// length, inner filter body.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	var total int64
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(f.n))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(f.lengthFilters)))
	n, err := w.Write(hdr[:])
	total += int64(n)
	if err != nil {
		return total, errors.Wrap(err, "writing ngram header")
	}

	lengths := make([]uint32, 0, len(f.lengthFilters))
	for length := range f.lengthFilters {
		lengths = append(lengths, length)
	}
	sort.Slice(lengths, func(i, j int) bool { return lengths[i] < lengths[j] })

	for _, length := range lengths {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], length)
		n, err := w.Write(lenBuf[:])
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "writing ngram length class")
		}
		nn, err := f.lengthFilters[length].WriteTo(w)
		total += nn
		if err != nil {
			return total, errors.Wrap(err, "writing ngram inner filter")
		}
	}
	return total, nil
}

// ReadFrom reads a body previously written by WriteTo (the kind byte must
// already have been consumed by the caller).
func ReadFrom(r io.Reader) (*Filter, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "reading ngram header"), base.ErrFilterFormatInvalid)
	}
	f := &Filter{
		n:             int(binary.LittleEndian.Uint32(hdr[0:4])),
		lengthFilters: make(map[uint32]*binaryfuse.Filter),
	}
	numLengths := binary.LittleEndian.Uint32(hdr[4:8])
	for i := uint32(0); i < numLengths; i++ {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "reading ngram length class"), base.ErrFilterFormatInvalid)
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])
		inner, err := binaryfuse.ReadFrom(r)
		if err != nil {
			return nil, err
		}
		f.lengthFilters[length] = inner
	}
	return f, nil
}

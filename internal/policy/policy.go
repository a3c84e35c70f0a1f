// Package policy computes filter sizing parameters from a target false
// positive rate. Each concrete filter kind owns a Policy that knows how to
// translate a desired FPR into bits-per-key and a hash/fingerprint count.
package policy

import (
	"math"
)

// Parameters holds the sizing values a Policy derives from a target FPR.
type Parameters struct {
	// BitsPerKey is the space budget per inserted element.
	BitsPerKey float64
	// Hashes is the hash-function count for Bloom, or the fingerprint
	// width in bits for BinaryFuse.
	Hashes uint32
}

// Policy is the sizing strategy a filter uses at construction. It carries no
// state; Clone exists only because the original reference carries an
// IFilterPolicy::clone() and this mirrors it for callers that hold a Policy
// by interface value.
type Policy interface {
	ComputeParameters(falsePositiveRate float64) Parameters
	Clone() Policy
}

// Bloom derives bits-per-key and an optimal hash count from a target FPR.
type Bloom struct{}

var _ Policy = Bloom{}

// ComputeParameters implements Policy.
func (Bloom) ComputeParameters(p float64) Parameters {
	bitsPerKey := bloomBitsPerKey(p)
	hashes := bloomNumHashFunctions(bitsPerKey)
	return Parameters{BitsPerKey: bitsPerKey, Hashes: hashes}
}

// Clone implements Policy.
func (Bloom) Clone() Policy { return Bloom{} }

func bloomBitsPerKey(p float64) float64 {
	var bits float64
	switch {
	case p <= 0.0:
		bits = 20.0 / math.Ln2 // maximum practical configuration
	case p >= 1.0:
		bits = 1.0 // minimum practical configuration
	default:
		bits = -math.Log2(p) / math.Ln2
	}
	return clampFloat(bits, 1, 20)
}

func bloomNumHashFunctions(bitsPerKey float64) uint32 {
	k := math.Round(bitsPerKey * math.Ln2)
	return uint32(clampFloat(k, 1, 20))
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BinaryFuse derives a fingerprint width and the resulting bits-per-key from
// a target FPR.
type BinaryFuse struct{}

var _ Policy = BinaryFuse{}

// ComputeParameters implements Policy.
func (BinaryFuse) ComputeParameters(p float64) Parameters {
	fingerprintBits := binaryFuseFingerprintBits(p)
	bitsPerKey := binaryFuseBitsPerKey(fingerprintBits)
	return Parameters{BitsPerKey: bitsPerKey, Hashes: fingerprintBits}
}

// Clone implements Policy.
func (BinaryFuse) Clone() Policy { return BinaryFuse{} }

func binaryFuseFingerprintBits(p float64) uint32 {
	var bits uint32
	switch {
	case p <= 0.0:
		bits = 32
	case p >= 1.0:
		bits = 4
	default:
		fb := math.Ceil(-math.Log2(p))
		bits = uint32(clampFloat(fb, 4, 32))
	}
	return bits
}

func binaryFuseBitsPerKey(fingerprintBits uint32) float64 {
	return float64(fingerprintBits) * 1.25
}

// FPRForFingerprintBits returns 2^-fingerprintBits, the steady-state false
// positive rate of a binary fuse filter with the given fingerprint width.
func FPRForFingerprintBits(fingerprintBits uint32) float64 {
	return math.Pow(2, -float64(fingerprintBits))
}

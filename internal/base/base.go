// Package base holds the contracts shared by every filter implementation:
// the FilterKind tag, the error taxonomy, the logging interface, and the
// hit/miss metrics tracker. No package outside internal/ should need to
// import anything else from here.
package base

import (
	"fmt"
	"log"
	"os"

	"github.com/cockroachdb/errors"
)

// FilterKind tags the concrete implementation backing a ProbabilisticFilter.
// It is persisted as a single byte and must never change its numeric values.
type FilterKind uint8

const (
	// KindNone means no filter is present. It carries no body.
	KindNone FilterKind = iota
	// KindBloomV1 is the classical double-hashed bit-array filter.
	KindBloomV1
	// KindBinaryFuse is the static 3-wise XOR filter.
	KindBinaryFuse
	// KindNGramPrefix is the length-bucketed n-gram filter.
	KindNGramPrefix
	// KindPrefixSuffix is the forward/reverse double Bloom filter.
	KindPrefixSuffix
)

// String implements fmt.Stringer.
func (k FilterKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBloomV1:
		return "bloom_v1"
	case KindBinaryFuse:
		return "binary_fuse"
	case KindNGramPrefix:
		return "ngram_prefix"
	case KindPrefixSuffix:
		return "prefix_suffix"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseFilterKind maps a config string to a FilterKind, mirroring the
// original parse_filter_type name set.
func ParseFilterKind(s string) (FilterKind, error) {
	switch s {
	case "none":
		return KindNone, nil
	case "bloom", "bloom_v1":
		return KindBloomV1, nil
	case "binary_fuse":
		return KindBinaryFuse, nil
	case "ngram_prefix":
		return KindNGramPrefix, nil
	case "prefix_suffix":
		return KindPrefixSuffix, nil
	default:
		return KindNone, errors.Wrapf(ErrFilterKindUnknown, "parsing %q", s)
	}
}

// Sentinel errors for the taxonomy of spec.md §7. Call sites either wrap a
// sentinel directly with errors.Wrapf or attach it to an underlying error
// with errors.Mark; either way errors.Is keeps working across layers of
// errors.Wrapf-added context.
var (
	// ErrFilterFormatInvalid signals a magic/version/size mismatch during decode.
	ErrFilterFormatInvalid = errors.New("clp: invalid filter format")
	// ErrFilterKindUnknown signals a tag byte outside the known enumeration.
	ErrFilterKindUnknown = errors.New("clp: unknown filter kind")
	// ErrFilterConstructionFailed signals exhausted seeds or pathological input.
	ErrFilterConstructionFailed = errors.New("clp: filter construction failed")
	// ErrFilterTooLarge signals a filter body exceeding the uint32 size limit.
	ErrFilterTooLarge = errors.New("clp: filter exceeds maximum size")
	// ErrPackIndexTruncated signals a filter pack index region shorter than declared.
	ErrPackIndexTruncated = errors.New("clp: filter pack index truncated")
	// ErrIOFailed wraps any underlying read/write failure.
	ErrIOFailed = errors.New("clp: io failure")
)

// Logger is the minimal logging contract used across the module. Callers
// that care about redaction of query literals should format arguments with
// github.com/cockroachdb/redact before passing them through Infof.
type Logger interface {
	Infof(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DefaultLogger logs to the Go stdlib log package.
type DefaultLogger struct{}

// Infof implements Logger.
func (DefaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Fatalf implements Logger.
func (DefaultLogger) Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// FilterMetrics holds point-in-time hit/miss counts for a filter consumer.
type FilterMetrics struct {
	// Hits is the number of lookups a filter allowed the caller to skip.
	Hits int64
	// Misses is the number of lookups a filter could not rule out.
	Misses int64
}

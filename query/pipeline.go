package query

import (
	"bytes"
	"io"

	"github.com/ShangDanLuXian/clp/collab"
	"github.com/ShangDanLuXian/clp/dictfilter"
	"github.com/ShangDanLuXian/clp/filterfile"
	"github.com/ShangDanLuXian/clp/filterpack"
	"github.com/ShangDanLuXian/clp/internal/base"
	"github.com/ShangDanLuXian/clp/schemacache"
)

// State is one of the five pipeline states spec.md §4.M names. A negative
// answer at any tier transitions straight to Done with an empty result set.
type State int

const (
	Idle State = iota
	ArchivePassed
	DictionaryLoaded
	SchemaEvaluated
	Done
)

// ArchiveScanResult is the outcome of the archive tier, mirroring
// run_filter_scan's JSON shape.
type ArchiveScanResult struct {
	Supported bool
	Reason    string
	Passed    []string
	Total     int
	Skipped   int
}

// ScanArchives is the archive tier (spec.md §4.M, step 1). pack must already
// be parsed; packBytes backs pack's byte ranges. Archives with no index
// entry pass conservatively, matching run_filter_scan's fallback. metrics
// may be nil; when set, every archive-tier verdict is recorded on it
// (RecordSkip for a pruned archive, RecordLoad for one that still must be
// read), the same hit/miss accounting `sstable/filter.go`'s
// FilterMetricsTracker keeps for block-level bloom checks.
func ScanArchives(expr collab.Expression, archiveIDs []string, pack *filterpack.Pack, packBytes []byte, metrics *base.FilterMetricsTracker) (ArchiveScanResult, State) {
	if len(archiveIDs) == 0 {
		return ArchiveScanResult{Supported: true}, Done
	}

	termResult := ExtractTerms(expr)
	if !termResult.Supported {
		return ArchiveScanResult{
			Supported: false,
			Reason:    termResult.Reason,
			Passed:    archiveIDs,
			Total:     len(archiveIDs),
		}, ArchivePassed
	}

	asTyped, lowerCased := DedupedTerms(termResult.Terms)
	if len(asTyped) == 0 {
		return ArchiveScanResult{
			Supported: true,
			Passed:    archiveIDs,
			Total:     len(archiveIDs),
		}, ArchivePassed
	}

	result := ArchiveScanResult{Supported: true, Total: len(archiveIDs)}
	for _, id := range archiveIDs {
		offset, size, ok := pack.Lookup(id)
		if !ok {
			result.Passed = append(result.Passed, id)
			continue
		}
		end := offset + uint64(size)
		if end > uint64(len(packBytes)) {
			result.Passed = append(result.Passed, id)
			continue
		}

		file, err := filterfile.Read(bytes.NewReader(packBytes[offset:end]))
		if err != nil {
			result.Passed = append(result.Passed, id)
			continue
		}

		terms := asTyped
		if file.Normalize {
			terms = lowerCased
		}
		matches := true
		for _, term := range terms {
			if !file.Filter.PossiblyContains(term) {
				matches = false
				break
			}
		}
		if matches {
			result.Passed = append(result.Passed, id)
			if metrics != nil {
				metrics.RecordLoad()
			}
		} else {
			result.Skipped++
			if metrics != nil {
				metrics.RecordSkip()
			}
		}
	}

	if len(result.Passed) == 0 {
		return result, Done
	}
	return result, ArchivePassed
}

// DictionaryTierResult is the outcome of the dictionary-load tier.
type DictionaryTierResult struct {
	// ShouldLoad is false when every extracted term was rejected by the
	// dictionary's filter; the archive can be short-circuited without
	// loading the dictionary at all.
	ShouldLoad bool
}

// CheckDictionaryTier is the dictionary-load tier (spec.md §4.M, step 3). An
// unsupported or empty term extraction always loads, since the pipeline has
// no basis to skip.
func CheckDictionaryTier(terms TermResult, hook *dictfilter.Hook) (DictionaryTierResult, State) {
	if !terms.Supported || len(terms.Terms) == 0 {
		return DictionaryTierResult{ShouldLoad: true}, DictionaryLoaded
	}
	for _, term := range terms.Terms {
		if hook.MightContain(term) {
			return DictionaryTierResult{ShouldLoad: true}, DictionaryLoaded
		}
	}
	return DictionaryTierResult{ShouldLoad: false}, Done
}

// SchemaTierResult is the outcome of evaluating one candidate schema.
type SchemaTierResult struct {
	Passed bool
}

// CheckSchemaTier is the schema tier (spec.md §4.M, step 2): var-id filter
// first, then any resolvable integer equality.
func CheckSchemaTier(
	cache *schemacache.Cache,
	schemaID int32,
	varIDs []int64,
	resolve schemacache.VarIDLoader,
	intEqualities map[int32]int64,
) (SchemaTierResult, State) {
	if len(varIDs) > 0 && !cache.MightContain(schemaID, varIDs, resolve) {
		return SchemaTierResult{Passed: false}, Done
	}
	for columnID, value := range intEqualities {
		if !cache.IntMightContain(schemaID, columnID, value) {
			return SchemaTierResult{Passed: false}, Done
		}
	}
	return SchemaTierResult{Passed: true}, SchemaEvaluated
}

// ReadPackBytes loads an entire filter pack into memory, the same
// whole-file-buffering strategy run_filter_scan uses, since a pack is sized
// for one scan invocation rather than long-lived random access.
func ReadPackBytes(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

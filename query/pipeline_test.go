package query

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ShangDanLuXian/clp/collab"
	"github.com/ShangDanLuXian/clp/dictfilter"
	"github.com/ShangDanLuXian/clp/filterfile"
	"github.com/ShangDanLuXian/clp/filterpack"
	"github.com/ShangDanLuXian/clp/internal/base"
	"github.com/ShangDanLuXian/clp/probfilter"
	"github.com/ShangDanLuXian/clp/schemacache"
)

func filterFileBytes(t *testing.T, keys []string, normalize bool) []byte {
	t.Helper()
	f, err := probfilter.New(base.KindBloomV1, keys, 0.01)
	require.NoError(t, err)
	var buf bytes.Buffer
	meta := filterfile.Metadata{Kind: base.KindBloomV1, Normalize: normalize, FalsePositiveRate: 0.01, NumElements: uint64(len(keys))}
	_, err = filterfile.Write(&buf, meta, f)
	require.NoError(t, err)
	return buf.Bytes()
}

func buildPack(t *testing.T, entries map[string][]byte) (*filterpack.Pack, []byte) {
	t.Helper()
	var pEntries []filterpack.Entry
	for id, data := range entries {
		data := data
		pEntries = append(pEntries, filterpack.Entry{ArchiveID: id, Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}})
	}
	var buf bytes.Buffer
	total, err := filterpack.Build(&buf, pEntries)
	require.NoError(t, err)
	pack, err := filterpack.ReadPack(bytes.NewReader(buf.Bytes()), total)
	require.NoError(t, err)
	return pack, buf.Bytes()
}

func TestScanArchivesSkipsNonMatching(t *testing.T) {
	packBytes := map[string][]byte{
		"a1": filterFileBytes(t, []string{"ERROR", "disk"}, false),
		"a2": filterFileBytes(t, []string{"INFO", "cpu"}, false),
	}
	pack, raw := buildPack(t, packBytes)

	expr := eqTerm("ERROR")
	result, state := ScanArchives(expr, []string{"a1", "a2"}, pack, raw, nil)
	require.Equal(t, ArchivePassed, state)
	require.True(t, result.Supported)
	require.Equal(t, []string{"a1"}, result.Passed)
	require.Equal(t, 1, result.Skipped)
}

func TestScanArchivesUnsupportedQueryPassesEverything(t *testing.T) {
	packBytes := map[string][]byte{"a1": filterFileBytes(t, []string{"ERROR"}, false)}
	pack, raw := buildPack(t, packBytes)

	expr := fakeOr{operands: []collab.Expression{eqTerm("a"), eqTerm("b")}}
	result, state := ScanArchives(expr, []string{"a1"}, pack, raw, nil)
	require.Equal(t, ArchivePassed, state)
	require.False(t, result.Supported)
	require.Equal(t, "or-expression", result.Reason)
	require.Equal(t, []string{"a1"}, result.Passed)
}

func TestScanArchivesUnknownArchivePassesConservatively(t *testing.T) {
	packBytes := map[string][]byte{"a1": filterFileBytes(t, []string{"ERROR"}, false)}
	pack, raw := buildPack(t, packBytes)

	result, state := ScanArchives(eqTerm("ERROR"), []string{"a1", "unknown"}, pack, raw, nil)
	require.Equal(t, ArchivePassed, state)
	require.ElementsMatch(t, []string{"a1", "unknown"}, result.Passed)
}

func TestScanArchivesRecordsMetrics(t *testing.T) {
	packBytes := map[string][]byte{
		"a1": filterFileBytes(t, []string{"ERROR", "disk"}, false),
		"a2": filterFileBytes(t, []string{"INFO", "cpu"}, false),
	}
	pack, raw := buildPack(t, packBytes)

	var metrics base.FilterMetricsTracker
	_, state := ScanArchives(eqTerm("ERROR"), []string{"a1", "a2"}, pack, raw, &metrics)
	require.Equal(t, ArchivePassed, state)
	snapshot := metrics.Load()
	require.EqualValues(t, 1, snapshot.Hits)
	require.EqualValues(t, 1, snapshot.Misses)
}

func TestCheckDictionaryTierLoadsWhenHookDisabled(t *testing.T) {
	h := dictfilter.NewHook(nil)
	_ = h.Load("/nonexistent/path")
	terms := TermResult{Supported: true, Terms: []string{"anything"}}
	_, state := CheckDictionaryTier(terms, h)
	require.Equal(t, DictionaryLoaded, state) // disabled hook is conservative-true
}

func TestCheckSchemaTierPassesWithoutCachedFilter(t *testing.T) {
	cache := schemacache.New()
	result, state := CheckSchemaTier(cache, 1, []int64{1, 2}, func(id int64) string { return "" }, nil)
	require.True(t, result.Passed)
	require.Equal(t, SchemaEvaluated, state)
}

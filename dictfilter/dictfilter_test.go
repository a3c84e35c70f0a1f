package dictfilter

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ShangDanLuXian/clp/filterfile"
	"github.com/ShangDanLuXian/clp/internal/base"
	"github.com/ShangDanLuXian/clp/probfilter"
)

func writeFilterFile(t *testing.T, path string, normalize bool, keys []string) {
	t.Helper()
	f, err := probfilter.New(base.KindBloomV1, keys, 0.01)
	require.NoError(t, err)
	meta := filterfile.Metadata{
		Kind:              base.KindBloomV1,
		Normalize:         normalize,
		FalsePositiveRate: 0.01,
		NumElements:       uint64(len(keys)),
	}
	_, err = WriteFilter(path, meta, f)
	require.NoError(t, err)
}

func TestHookDisabledByDefault(t *testing.T) {
	h := NewHook(nil)
	require.False(t, h.Loaded())
	require.True(t, h.MightContain("anything"))
}

func TestHookMissingFileFallsBackConservatively(t *testing.T) {
	h := NewHook(nil)
	err := h.Load(filepath.Join(t.TempDir(), "missing.filter"))
	require.Error(t, err)
	require.False(t, h.Loaded())
	require.True(t, h.MightContain("anything"))
}

func TestHookLoadAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.filter")
	writeFilterFile(t, path, false, []string{"ERROR", "INFO"})

	h := NewHook(nil)
	require.NoError(t, h.Load(path))
	require.True(t, h.Loaded())
	require.True(t, h.MightContain("ERROR"))
}

func TestHookNormalizeLowerCasesNeedle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.filter")
	writeFilterFile(t, path, true, []string{"error", "info"})

	h := NewHook(nil)
	require.NoError(t, h.Load(path))
	require.True(t, h.MightContain("ERROR"))
}

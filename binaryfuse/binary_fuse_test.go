package binaryfuse

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ShangDanLuXian/clp/internal/policy"
)

func randomKeys(n int, seed int64) [][]byte {
	rng := rand.New(rand.NewSource(seed))
	keys := make([][]byte, n)
	for i := range keys {
		buf := make([]byte, 16)
		rng.Read(buf)
		keys[i] = buf
	}
	return keys
}

func TestEmptyFilter(t *testing.T) {
	f, err := New(nil, 0.01)
	require.NoError(t, err)
	require.True(t, f.IsEmpty())
	require.False(t, f.PossiblyContains([]byte("anything")))
}

func TestNoFalseNegatives(t *testing.T) {
	keys := randomKeys(100, 1)
	f, err := New(keys, 0.01)
	require.NoError(t, err)
	for _, k := range keys {
		require.True(t, f.PossiblyContains(k))
	}
}

func TestSingleKey(t *testing.T) {
	f, err := New([][]byte{[]byte("hello")}, 0.01)
	require.NoError(t, err)
	require.True(t, f.PossiblyContains([]byte("hello")))
}

func TestFingerprintNeverStoredAsZero(t *testing.T) {
	keys := randomKeys(50, 7)
	f, err := New(keys, 0.05)
	require.NoError(t, err)
	for _, k := range keys {
		_, _, _, fp := f.locationsAndFingerprint(k)
		require.NotZero(t, fp)
	}
}

func TestMeasuredFPRBound(t *testing.T) {
	keys := randomKeys(100, 3)
	f, err := New(keys, 0.0)
	require.NoError(t, err)
	require.Equal(t, uint32(32), f.FingerprintBits())

	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[string(k)] = true
	}

	falsePositives := 0
	const trials = 100000
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < trials; i++ {
		buf := make([]byte, 16)
		rng.Read(buf)
		if present[string(buf)] {
			continue
		}
		if f.PossiblyContains(buf) {
			falsePositives++
		}
	}
	bound := 2.0 * policy.FPRForFingerprintBits(f.FingerprintBits())
	require.LessOrEqual(t, float64(falsePositives)/float64(trials), bound+0.001)
}

func TestWriteReadRoundTrip(t *testing.T) {
	keys := randomKeys(200, 5)
	f, err := New(keys, 0.01)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadFrom(&buf)
	require.NoError(t, err)
	for _, k := range keys {
		require.True(t, got.PossiblyContains(k))
	}
}

func TestClone(t *testing.T) {
	keys := randomKeys(40, 11)
	f, err := New(keys, 0.02)
	require.NoError(t, err)
	cp := f.Clone()
	for _, k := range keys {
		require.True(t, cp.PossiblyContains(k))
	}
}

func TestVariousFingerprintWidths(t *testing.T) {
	for _, fpr := range []float64{0.5, 0.1, 0.01, 0.001, 0.0001} {
		fpr := fpr
		t.Run(fmt.Sprintf("fpr=%v", fpr), func(t *testing.T) {
			keys := randomKeys(500, int64(fpr*1e6))
			f, err := New(keys, fpr)
			require.NoError(t, err)
			for _, k := range keys {
				require.True(t, f.PossiblyContains(k))
			}
		})
	}
}

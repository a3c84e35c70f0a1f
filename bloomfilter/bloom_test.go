package bloomfilter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyFilter(t *testing.T) {
	f := New(0, 0.01)
	require.True(t, f.IsEmpty())
	require.False(t, f.PossiblyContains([]byte("anything")))
}

func TestNoFalseNegatives(t *testing.T) {
	keys := [][]byte{[]byte("hello"), []byte("world"), []byte("syserror"), []byte("")}
	f := New(len(keys), 0.01)
	for _, k := range keys {
		f.Add(k)
	}
	for _, k := range keys {
		require.True(t, f.PossiblyContains(k), "key %q must be found", k)
	}
	require.False(t, f.IsEmpty())
}

func TestSingleKeyFPR(t *testing.T) {
	f := New(1, 0.01)
	f.Add([]byte("hello"))
	require.True(t, f.PossiblyContains([]byte("hello")))

	falsePositives := 0
	const trials = 10000
	for i := 0; i < trials; i++ {
		probe := []byte{byte(i), byte(i >> 8), byte(i >> 16), 'x'}
		if bytes.Equal(probe, []byte("hello")) {
			continue
		}
		if f.PossiblyContains(probe) {
			falsePositives++
		}
	}
	require.LessOrEqual(t, float64(falsePositives)/float64(trials), 0.02)
}

func TestWriteReadRoundTrip(t *testing.T) {
	f := New(100, 0.01)
	for i := 0; i < 100; i++ {
		f.Add([]byte{byte(i)})
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, f.NumHashFunctions(), got.NumHashFunctions())
	require.Equal(t, f.BitArraySizeBits(), got.BitArraySizeBits())
	for i := 0; i < 100; i++ {
		require.True(t, got.PossiblyContains([]byte{byte(i)}))
	}
}

func TestClone(t *testing.T) {
	f := New(10, 0.01)
	f.Add([]byte("a"))
	cp := f.Clone()
	cp.Add([]byte("b"))
	require.True(t, cp.PossiblyContains([]byte("a")))
	require.False(t, f.PossiblyContains([]byte("b")))
}

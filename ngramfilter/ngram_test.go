package ngramfilter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkedExample(t *testing.T) {
	keys := []string{"abcdef", "abcxyz", "zyxwvu"}
	f, err := New(keys, 0.01)
	require.NoError(t, err)
	require.True(t, f.PossiblyContains("abcdef"))
	require.False(t, f.PossiblyContains("qqqqqq"))
}

func TestNoFalseNegatives(t *testing.T) {
	keys := []string{"alpha", "beta", "gammaexpanded", "delta", "e"}
	f, err := New(keys, 0.01)
	require.NoError(t, err)
	for _, k := range keys {
		require.True(t, f.PossiblyContains(k), "key %q must be found", k)
	}
}

func TestEmpty(t *testing.T) {
	f, err := New(nil, 0.01)
	require.NoError(t, err)
	require.True(t, f.IsEmpty())
	require.False(t, f.PossiblyContains("anything"))
}

func TestWriteReadRoundTrip(t *testing.T) {
	keys := []string{"abcdef", "abcxyz", "zyxwvu", "short", "q"}
	f, err := New(keys, 0.02)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, f.N(), got.N())
	for _, k := range keys {
		require.True(t, got.PossiblyContains(k))
	}
}

func TestAbsentLengthClass(t *testing.T) {
	f, err := New([]string{"abcdef"}, 0.01)
	require.NoError(t, err)
	require.False(t, f.PossiblyContains("abcdefghij"))
}

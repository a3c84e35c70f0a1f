package columnfilter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntColumnFilterAbsentColumnIsConservativeTrue(t *testing.T) {
	f := NewIntColumnFilter()
	require.True(t, f.IsEmpty())
	require.True(t, f.Contains(42, 7))
}

func TestIntColumnFilterLowCardinalityRoundTrip(t *testing.T) {
	f := NewIntColumnFilter()
	for i := 0; i < 1000; i++ {
		f.AddValue(1, 99) // single distinct value, well under threshold
	}
	for i := int64(0); i < 1000; i++ {
		f.AddValue(2, i) // high cardinality, should be dropped on write
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadIntColumnFilter(&buf)
	require.NoError(t, err)
	require.True(t, got.Contains(1, 99))
	require.False(t, got.Contains(1, 100))
	// column 2 exceeded the threshold and was dropped, so it reads back as
	// conservative-true rather than a definitive membership answer.
	require.True(t, got.Contains(2, 500))
}

func TestIntColumnFilterClone(t *testing.T) {
	f := NewIntColumnFilter()
	f.AddValue(1, 5)
	cp := f.Clone()
	cp.AddValue(1, 6)
	require.True(t, cp.Contains(1, 6))
	require.False(t, f.Contains(1, 6))
}

func TestStringColumnFilterAbsentColumnIsConservativeTrue(t *testing.T) {
	f := NewStringColumnFilter()
	require.True(t, f.IsEmpty())
	require.True(t, f.Contains(42, "anything"))
}

func TestStringColumnFilterLowCardinalityRoundTrip(t *testing.T) {
	f := NewStringColumnFilter()
	for i := 0; i < 1000; i++ {
		f.AddValue(1, "INFO")
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadStringColumnFilter(&buf)
	require.NoError(t, err)
	require.True(t, got.Contains(1, "INFO"))
	require.False(t, got.Contains(1, "DEBUG"))
}

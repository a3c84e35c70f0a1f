package probfilter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ShangDanLuXian/clp/internal/base"
)

func TestRoundTripEachKind(t *testing.T) {
	kinds := []base.FilterKind{base.KindBloomV1, base.KindBinaryFuse, base.KindPrefixSuffix}
	keys := []string{"hello", "world", "syserror", "sysinfo"}

	for _, kind := range kinds {
		kind := kind
		t.Run(kind.String(), func(t *testing.T) {
			f, err := New(kind, keys, 0.01)
			require.NoError(t, err)
			require.Equal(t, kind, f.Kind())

			var buf bytes.Buffer
			_, err = f.WriteTo(&buf)
			require.NoError(t, err)

			got, err := ReadFrom(&buf)
			require.NoError(t, err)
			require.Equal(t, kind, got.Kind())
			require.True(t, got.PossiblyContains("hello"))
		})
	}
}

func TestUnknownKindOnRead(t *testing.T) {
	_, err := ReadFrom(bytes.NewReader([]byte{255}))
	require.Error(t, err)
	require.ErrorIs(t, err, base.ErrFilterKindUnknown)
}

func TestNoneKindAlwaysMatches(t *testing.T) {
	f, err := New(base.KindNone, nil, 0.01)
	require.NoError(t, err)
	require.True(t, f.PossiblyContains("anything"))
	require.True(t, f.IsEmpty())
}

func TestBinaryFuseAddRejected(t *testing.T) {
	f, err := New(base.KindBinaryFuse, []string{"a", "b"}, 0.01)
	require.NoError(t, err)
	require.Error(t, f.Add("c"))
}

func TestCloneIsIndependent(t *testing.T) {
	f, err := New(base.KindBloomV1, []string{"a"}, 0.01)
	require.NoError(t, err)
	cp := f.Clone()
	require.NoError(t, cp.Add("b"))
	require.True(t, cp.PossiblyContains("b"))
}

package rqalsh

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDrusillaCandidatesAreDistinct(t *testing.T) {
	const n, d, l, m = 500, 8, 6, 10
	vectors := randomVectors(n, d, 11)

	ds, err := BuildDrusilla(n, d, l, m, 4096, vectors, t.TempDir())
	require.NoError(t, err)

	seen := make(map[int32]bool)
	for _, id := range ds.Candidates() {
		require.False(t, seen[id], "id %d selected more than once", id)
		seen[id] = true
	}
	require.Len(t, ds.Candidates(), l*m)
}

func TestDrusillaBuildLoadRoundTrip(t *testing.T) {
	const n, d, l, m = 300, 4, 4, 5
	vectors := randomVectors(n, d, 12)
	dir := t.TempDir()

	built, err := BuildDrusilla(n, d, l, m, 4096, vectors, dir)
	require.NoError(t, err)

	reopened, err := LoadDrusilla(dir)
	require.NoError(t, err)

	require.Equal(t, built.Candidates(), reopened.Candidates())
	require.Equal(t, built.N(), reopened.N())
	require.Equal(t, built.L(), reopened.L())
	require.Equal(t, built.M(), reopened.M())
}

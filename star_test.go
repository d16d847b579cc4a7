package rqalsh

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HuangQiang/RQALSH/dataset"
	"github.com/HuangQiang/RQALSH/topk"
)

func TestStarBuildLoadRoundTrip(t *testing.T) {
	const n, d, l, m = 400, 8, 5, 25 // l*m = 125 > DefaultCandidates, exercises the inner index path
	vectors := randomVectors(n, d, 21)

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	indexDir := filepath.Join(dir, "index")
	require.NoError(t, dataset.Write(vectors, d, 4096, dataDir))

	si, err := BuildStar(StarBuildConfig{N: n, D: d, B: 4096, L: l, M: m, BetaRaw: 100, Delta: 0.5, C: 2.0}, vectors, indexDir, nil)
	require.NoError(t, err)
	defer si.Close()

	reopened, err := LoadStar(indexDir)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, si.N(), reopened.N())
	require.Equal(t, si.L(), reopened.L())
	require.Equal(t, si.M(), reopened.M())

	list := topk.NewMaxKList(3)
	_, err = reopened.KFN(3, randomVectors(1, d, 22)[0], dataDir, list)
	require.NoError(t, err)
	require.Equal(t, 3, list.Len())
}

func TestStarSmallCandidatePoolSkipsInnerIndex(t *testing.T) {
	const n, d, l, m = 50, 4, 2, 3 // l*m = 6 <= DefaultCandidates, linear-scan path
	vectors := randomVectors(n, d, 23)

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	indexDir := filepath.Join(dir, "index")
	require.NoError(t, dataset.Write(vectors, d, 4096, dataDir))

	si, err := BuildStar(StarBuildConfig{N: n, D: d, B: 4096, L: l, M: m, BetaRaw: 10, Delta: 0.5, C: 2.0}, vectors, indexDir, nil)
	require.NoError(t, err)
	defer si.Close()
	require.Nil(t, si.inner)

	list := topk.NewMaxKList(2)
	io, err := si.KFN(2, randomVectors(1, d, 24)[0], dataDir, list)
	require.NoError(t, err)
	require.Equal(t, int64(l*m), io)
}

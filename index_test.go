package rqalsh

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HuangQiang/RQALSH/dataset"
	"github.com/HuangQiang/RQALSH/topk"
)

func randomVectors(n, d int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = make([]float32, d)
		for j := range vecs[i] {
			vecs[i][j] = float32(r.NormFloat64())
		}
	}
	return vecs
}

func TestBuildLoadRoundTrip(t *testing.T) {
	const n, d = 500, 8
	vectors := randomVectors(n, d, 1)

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	indexDir := filepath.Join(dir, "index")
	require.NoError(t, dataset.Write(vectors, d, 4096, dataDir))

	idx, err := Build(BuildConfig{N: n, D: d, B: 4096, BetaRaw: 100, Delta: 0.5, C: 2.0}, vectors, indexDir, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	reopened, err := Load(indexDir)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, idx.N(), reopened.N())
	require.Equal(t, idx.D(), reopened.D())
	require.Equal(t, idx.B(), reopened.B())
	require.Equal(t, idx.M(), reopened.M())
	require.Equal(t, idx.L(), reopened.L())
	require.InDelta(t, idx.C(), reopened.C(), 1e-6)
}

func TestBuildRefusesExistingIndex(t *testing.T) {
	const n, d = 50, 4
	vectors := randomVectors(n, d, 2)
	indexDir := t.TempDir()

	_, err := Build(BuildConfig{N: n, D: d, B: 4096, BetaRaw: 10, Delta: 0.5, C: 2.0}, vectors, indexDir, nil)
	require.NoError(t, err)

	_, err = Build(BuildConfig{N: n, D: d, B: 4096, BetaRaw: 10, Delta: 0.5, C: 2.0}, vectors, indexDir, nil)
	require.True(t, IsIndexExists(err))
}

// TestKFNRunsWithCandidateBudgetOverride runs a search with the budget
// override set to 20 and checks that it reports a positive I/O count and
// at most k results. The number of distance computations is not observed.
func TestKFNRunsWithCandidateBudgetOverride(t *testing.T) {
	const n, d = 2000, 8
	vectors := randomVectors(n, d, 3)

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	indexDir := filepath.Join(dir, "index")
	require.NoError(t, dataset.Write(vectors, d, 4096, dataDir))

	idx, err := Build(BuildConfig{N: n, D: d, B: 4096, BetaRaw: 100, Delta: 0.5, C: 2.0}, vectors, indexDir, nil)
	require.NoError(t, err)
	defer idx.Close()
	idx.candidates = 20

	list := topk.NewMaxKList(5)
	io, err := idx.KFN(5, randomVectors(1, d, 4)[0], dataDir, list)
	require.NoError(t, err)
	require.True(t, io > 0)
	require.LessOrEqual(t, int64(list.Len()), int64(5))
}

// TestKFNFindsFurthestAmongObviousOutlier exercises the golden path: a
// single far-away point should dominate the top-1 result.
func TestKFNFindsFurthestAmongObviousOutlier(t *testing.T) {
	const d = 4
	vectors := randomVectors(300, d, 5)
	outlierID := len(vectors)
	vectors = append(vectors, []float32{1000, 1000, 1000, 1000})

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	indexDir := filepath.Join(dir, "index")
	require.NoError(t, dataset.Write(vectors, d, 4096, dataDir))

	idx, err := Build(BuildConfig{N: len(vectors), D: d, B: 4096, BetaRaw: 100, Delta: 0.5, C: 2.0}, vectors, indexDir, nil)
	require.NoError(t, err)
	defer idx.Close()

	query := make([]float32, d)
	list := topk.NewMaxKList(1)
	_, err = idx.KFN(1, query, dataDir, list)
	require.NoError(t, err)
	require.Equal(t, int32(outlierID), list.IthID(0))
}

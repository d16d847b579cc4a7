package rqalsh

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HuangQiang/RQALSH/dataset"
	"github.com/HuangQiang/RQALSH/topk"
)

func TestLinearScanMatchesBruteForce(t *testing.T) {
	const n, d = 130, 4
	vectors := randomVectors(n, d, 41)
	dataDir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, dataset.Write(vectors, d, 256, dataDir))

	query := randomVectors(1, d, 42)[0]

	list := topk.NewMaxKList(5)
	pages, err := LinearScan(n, d, 256, query, dataDir, list)
	require.NoError(t, err)
	require.Equal(t, int64(dataset.NumPages(n, d, 256)), pages)

	want := topk.NewMaxKList(5)
	for j, v := range vectors {
		want.Insert(euclideanDist(v, query), int32(j))
	}
	for i := 0; i < 5; i++ {
		require.Equal(t, want.IthID(i), list.IthID(i))
		require.InDelta(t, want.IthKey(i), list.IthKey(i), 1e-4)
	}
}

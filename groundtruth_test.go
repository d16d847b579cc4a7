package rqalsh

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HuangQiang/RQALSH/topk"
)

func TestGroundTruthRoundTripAndRecall(t *testing.T) {
	const n, d, qn = 200, 4, 5
	vectors := randomVectors(n, d, 31)
	queries := randomVectors(qn, d, 32)

	truthPath := filepath.Join(t.TempDir(), "truth.txt")
	require.NoError(t, ComputeGroundTruth(vectors, queries, truthPath))

	rows, err := ReadGroundTruth(truthPath, qn)
	require.NoError(t, err)
	require.Len(t, rows, qn)

	for i, q := range queries {
		list := topk.NewMaxKList(MaxK)
		for j, v := range vectors {
			list.Insert(euclideanDist(v, q), int32(j))
		}
		for k := 0; k < MaxK; k++ {
			require.Equal(t, list.IthID(k), rows[i].IDs[k])
			require.InDelta(t, list.IthKey(k), rows[i].Keys[k], 1e-3)
		}
		require.InDelta(t, 100.0, Recall(MaxK, &rows[i], list), 1e-6)
		require.InDelta(t, 1.0, Ratio(MaxK, &rows[i], list), 1e-6)
	}
}

package rqalsh

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBulkloadSanity(t *testing.T) {
	const n = 10000
	entries := make([]hashEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = hashEntry{key: float32(i), id: int32(i)}
	}

	path := filepath.Join(t.TempDir(), "0.rqalsh")
	tr, err := createTree(path, 4096)
	require.NoError(t, err)
	require.NoError(t, tr.bulkload(entries))
	require.NoError(t, tr.close())

	reopened, err := openTree(path)
	require.NoError(t, err)
	defer reopened.close()

	leaf, _, _, err := reopened.leftmostLeaf()
	require.NoError(t, err)

	var got []int32
	for leaf != nil {
		for i := int32(0); i < leaf.numEntries; i++ {
			got = append(got, leaf.getEntryID(int(i)))
		}
		next, _, _, err := reopened.rightSiblingOf(leaf)
		require.NoError(t, err)
		leaf = next
	}

	require.Len(t, got, n)
	for i := 0; i < n; i++ {
		require.Equal(t, int32(i), got[i])
	}
}

func TestCreateTreeRejectsTinyBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0.rqalsh")
	_, err := createTree(path, 64)
	require.True(t, IsCapacityFloor(err))
}

package topk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertMaintainsDescendingOrder(t *testing.T) {
	l := NewMaxKList(3)
	for _, kv := range []struct {
		key float32
		id  int32
	}{
		{5, 0}, {1, 1}, {9, 2}, {3, 3}, {7, 4},
	} {
		l.Insert(kv.key, kv.id)
	}

	require.True(t, l.IsFull())
	require.Equal(t, 3, l.Len())

	var prev float32 = l.IthKey(0)
	for i := 1; i < l.Len(); i++ {
		require.LessOrEqual(t, l.IthKey(i), prev)
		prev = l.IthKey(i)
	}

	require.Equal(t, float32(9), l.MaxKey())
	require.Equal(t, float32(5), l.MinKey())
}

func TestMinKeyBeforeFull(t *testing.T) {
	l := NewMaxKList(5)
	l.Insert(1, 0)
	require.False(t, l.IsFull())
	require.True(t, l.MinKey() < float32(-1e30))
}

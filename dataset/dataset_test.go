package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vectors := [][]float32{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
	}
	const d = 4
	const b = int32(64) // pack = 64/16 = 4, fits all three in one page

	require.NoError(t, Write(vectors, d, b, dir))

	out := make([]float32, d)
	require.NoError(t, Read(2, d, b, dir, out))
	require.Equal(t, vectors[2], out)

	require.NoError(t, Read(0, d, b, dir, out))
	require.Equal(t, vectors[0], out)
}

func TestNumPagesSplitsAcrossFiles(t *testing.T) {
	require.Equal(t, 9, NumPages(9, 4, 16)) // pack = 1 per page
}

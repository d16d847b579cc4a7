package blockfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.blk")

	bf, err := Create(path, 64)
	require.NoError(t, err)

	payload := []byte("some page content")
	addr, err := bf.Append(payload)
	require.NoError(t, err)
	require.Equal(t, int32(1), addr)
	require.NoError(t, bf.Close())

	reopened, err := Open(path, false)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, int32(64), reopened.BlockLength())
	require.Equal(t, int32(1), reopened.NumBlocks())

	got, err := reopened.ReadBlock(1)
	require.NoError(t, err)
	require.Equal(t, payload, got[:len(payload)])
}

func TestReadBlockOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.blk")
	bf, err := Create(path, 64)
	require.NoError(t, err)
	defer bf.Close()

	_, err = bf.ReadBlock(1)
	require.Error(t, err)
}

func TestCreateRejectsTinyBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.blk")
	_, err := Create(path, 8)
	require.ErrorIs(t, err, ErrBlockTooSmall)
}

package objstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStoreRoundTrip(t *testing.T) {
	store := NewFSStore(t.TempDir())
	ctx := context.Background()

	err := store.Upload(ctx, "contracts/c1/up_1/file.txt", []byte("hello"), "text/plain")
	require.NoError(t, err)

	data, err := store.Download(ctx, "contracts/c1/up_1/file.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestFSStoreMissingKey(t *testing.T) {
	store := NewFSStore(t.TempDir())
	_, err := store.Download(context.Background(), "nope/missing.txt")
	assert.Error(t, err)
}

func TestFSStoreRejectsTraversal(t *testing.T) {
	store := NewFSStore(t.TempDir())
	err := store.Upload(context.Background(), "../../etc/passwd", []byte("x"), "text/plain")
	assert.Error(t, err)
}

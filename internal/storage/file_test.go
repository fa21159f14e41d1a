package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMarkerStore_MissingFileIsEmpty(t *testing.T) {
	store, err := NewFileMarkerStore(filepath.Join(t.TempDir(), DefaultMarkerFile))
	require.NoError(t, err)

	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileMarkerStore_SetGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trsync", DefaultMarkerFile)
	store, err := NewFileMarkerStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "t5"))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t5", got)

	require.NoError(t, store.Set(ctx, "t9"))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t9", got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "t9", string(data))

	// No temp files are left next to the marker.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileMarkerStore_TrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultMarkerFile)
	require.NoError(t, os.WriteFile(path, []byte("  a1\n"), 0600))

	store, err := NewFileMarkerStore(path)
	require.NoError(t, err)

	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", got)
}

func TestFileMarkerStore_RejectsInvalidLegID(t *testing.T) {
	store, err := NewFileMarkerStore(filepath.Join(t.TempDir(), DefaultMarkerFile))
	require.NoError(t, err)

	err = store.Set(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyString)

	err = store.Set(context.Background(), "a\nb")
	assert.ErrorIs(t, err, ErrInvalidLegID)
}

func TestFileMarkerStore_Reset(t *testing.T) {
	store, err := NewFileMarkerStore(filepath.Join(t.TempDir(), DefaultMarkerFile))
	require.NoError(t, err)
	ctx := context.Background()

	// Resetting a store that was never written is fine.
	require.NoError(t, store.Reset(ctx))

	require.NoError(t, store.Set(ctx, "t1"))
	require.NoError(t, store.Reset(ctx))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewFileMarkerStore_EmptyPath(t *testing.T) {
	_, err := NewFileMarkerStore("")
	assert.ErrorIs(t, err, ErrEmptyString)
}

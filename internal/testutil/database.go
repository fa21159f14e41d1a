// Package testutil provides shared fixtures for tests that need a marker
// database or a brokerage feed.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/trsync/internal/storage"
)

// SetupTestDB creates a migrated in-memory marker database.
// It is closed when the test ends.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return store
}

// SetupMarkerStore returns a marker store for key, optionally seeded with legID.
func SetupMarkerStore(t *testing.T, key, legID string) *storage.SQLiteMarkerStore {
	t.Helper()

	markers, err := SetupTestDB(t).MarkerStore(key)
	if err != nil {
		t.Fatalf("failed to open marker store: %v", err)
	}
	if legID != "" {
		if err := markers.Set(context.Background(), legID); err != nil {
			t.Fatalf("failed to seed marker %q: %v", legID, err)
		}
	}
	return markers
}

package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/trsync/internal/config"
	"github.com/Veraticus/trsync/internal/service"
	"github.com/Veraticus/trsync/internal/storage"
)

// markerHandle is the configured marker store plus whatever owns it.
type markerHandle struct {
	store    service.MarkerStore
	resetter service.MarkerResetter
	db       *storage.SQLiteStorage
	location string
	key      string
}

// openMarkerStore opens the marker backend selected in cfg. The returned
// cleanup function must always be called.
func openMarkerStore(ctx context.Context, cfg *config.Config) (*markerHandle, func(), error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := storage.NewSQLiteStorage(cfg.MarkerPath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		store, err := db.MarkerStore(cfg.MarkerKey())
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return &markerHandle{
			store:    store,
			resetter: store,
			db:       db,
			location: cfg.MarkerPath,
			key:      cfg.MarkerKey(),
		}, func() { _ = db.Close() }, nil

	default:
		store, err := storage.NewFileMarkerStore(cfg.MarkerPath)
		if err != nil {
			return nil, nil, err
		}
		return &markerHandle{
			store:    store,
			resetter: store,
			location: store.Path(),
		}, func() {}, nil
	}
}

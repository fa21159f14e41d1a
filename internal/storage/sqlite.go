package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DefaultDatabaseFile is the SQLite file name inside the data directory.
const DefaultDatabaseFile = "trsync.db"

// MarkerRecord is one stored marker or one entry of its history.
// An empty LegID in history means the marker was reset.
type MarkerRecord struct {
	UpdatedAt time.Time
	Key       string
	LegID     string
}

// SQLiteStorage keeps markers for any number of accounts in one SQLite database.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// GetMarker returns the marker stored under key, or "" if there is none.
func (s *SQLiteStorage) GetMarker(ctx context.Context, key string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(key, "key"); err != nil {
		return "", err
	}

	var legID string
	err := s.db.QueryRowContext(ctx,
		`SELECT leg_id FROM sync_markers WHERE key = ?`, key,
	).Scan(&legID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get marker: %w", err)
	}

	return legID, nil
}

// SetMarker upserts the marker for key and appends it to the history.
func (s *SQLiteStorage) SetMarker(ctx context.Context, key, legID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}
	if err := validateLegID(legID); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_markers (key, leg_id, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET
				leg_id = excluded.leg_id,
				updated_at = excluded.updated_at
		`, key, legID)
		if err != nil {
			return fmt.Errorf("failed to save marker: %w", err)
		}
		return recordHistory(ctx, tx, key, legID)
	})
}

// DeleteMarker removes the marker for key. Deleting a missing marker is not an error.
func (s *SQLiteStorage) DeleteMarker(ctx context.Context, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM sync_markers WHERE key = ?`, key)
		if err != nil {
			return fmt.Errorf("failed to delete marker: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count deleted markers: %w", err)
		}
		if n == 0 {
			return nil
		}
		return recordHistory(ctx, tx, key, "")
	})
}

// ListMarkers returns every stored marker ordered by key.
func (s *SQLiteStorage) ListMarkers(ctx context.Context) ([]MarkerRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, leg_id, updated_at FROM sync_markers ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []MarkerRecord
	for rows.Next() {
		var r MarkerRecord
		if err := rows.Scan(&r.Key, &r.LegID, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan marker: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MarkerHistory returns the most recent marker changes for key, newest first.
func (s *SQLiteStorage) MarkerHistory(ctx context.Context, key string, limit int) ([]MarkerRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, COALESCE(leg_id, ''), recorded_at
		FROM marker_history
		WHERE key = ?
		ORDER BY id DESC
		LIMIT ?
	`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query marker history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []MarkerRecord
	for rows.Next() {
		var r MarkerRecord
		if err := rows.Scan(&r.Key, &r.LegID, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan marker history: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MarkerStore returns a marker store bound to one key, usually the ledger account id.
func (s *SQLiteStorage) MarkerStore(key string) (*SQLiteMarkerStore, error) {
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}
	return &SQLiteMarkerStore{storage: s, key: key}, nil
}

func (s *SQLiteStorage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func recordHistory(ctx context.Context, tx *sql.Tx, key, legID string) error {
	var value any
	if legID != "" {
		value = legID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO marker_history (key, leg_id) VALUES (?, ?)`, key, value,
	); err != nil {
		return fmt.Errorf("failed to record marker history: %w", err)
	}
	return nil
}

// SQLiteMarkerStore is a marker store for a single key.
type SQLiteMarkerStore struct {
	storage *SQLiteStorage
	key     string
}

// Get returns the stored legId, or "" when none is stored.
func (m *SQLiteMarkerStore) Get(ctx context.Context) (string, error) {
	return m.storage.GetMarker(ctx, m.key)
}

// Set replaces the stored legId.
func (m *SQLiteMarkerStore) Set(ctx context.Context, legID string) error {
	return m.storage.SetMarker(ctx, m.key, legID)
}

// Reset forgets the marker so the next run bootstraps.
func (m *SQLiteMarkerStore) Reset(ctx context.Context) error {
	return m.storage.DeleteMarker(ctx, m.key)
}

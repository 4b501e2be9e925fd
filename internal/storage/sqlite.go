package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/capcluster/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		family TEXT PRIMARY KEY,
		k INTEGER NOT NULL,
		dimension INTEGER NOT NULL,
		distance TEXT NOT NULL,
		capacities TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS session_items (
		family TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		vector TEXT NOT NULL,
		cluster INTEGER NOT NULL,
		label TEXT,
		PRIMARY KEY (family, position)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_session_items_item ON session_items(family, item_id);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveSnapshot replaces the session row and all its items in one transaction.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snap *models.SessionSnapshot) error {
	capsJSON, err := json.Marshal(snap.Capacities)
	if err != nil {
		return fmt.Errorf("failed to marshal capacities: %w", err)
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (family, k, dimension, distance, capacities, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(family) DO UPDATE SET
		   k = excluded.k, dimension = excluded.dimension, distance = excluded.distance,
		   capacities = excluded.capacities, updated_at = excluded.updated_at`,
		snap.Family, snap.K, snap.Dimension, snap.Distance, string(capsJSON), snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_items WHERE family = ?`, snap.Family); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_items (family, position, item_id, vector, cluster, label)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, it := range snap.Items {
		vecJSON, err := json.Marshal(it.Values)
		if err != nil {
			return fmt.Errorf("failed to marshal vector of %s: %w", it.ID, err)
		}
		var label sql.NullString
		if it.Label != nil {
			label = sql.NullString{String: *it.Label, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, snap.Family, i, it.ID, string(vecJSON), it.Cluster, label); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

// LoadSnapshot returns the snapshot of family.
func (s *SQLiteStorage) LoadSnapshot(ctx context.Context, family string) (*models.SessionSnapshot, error) {
	var snap models.SessionSnapshot
	var capsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT family, k, dimension, distance, capacities, updated_at
		 FROM sessions WHERE family = ?`, family,
	).Scan(&snap.Family, &snap.K, &snap.Dimension, &snap.Distance, &capsJSON, &snap.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, family)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(capsJSON), &snap.Capacities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal capacities: %w", err)
	}

	items, err := s.loadItems(ctx, family)
	if err != nil {
		return nil, err
	}
	snap.Items = items
	return &snap, nil
}

func (s *SQLiteStorage) loadItems(ctx context.Context, family string) ([]models.SnapshotItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, vector, cluster, label
		 FROM session_items WHERE family = ? ORDER BY position`,
		family,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.SnapshotItem
	for rows.Next() {
		var it models.SnapshotItem
		var vecJSON string
		var label sql.NullString
		if err := rows.Scan(&it.ID, &vecJSON, &it.Cluster, &label); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vecJSON), &it.Values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vector of %s: %w", it.ID, err)
		}
		if label.Valid {
			l := label.String
			it.Label = &l
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// LoadSnapshots returns every stored snapshot ordered by family.
func (s *SQLiteStorage) LoadSnapshots(ctx context.Context) ([]*models.SessionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT family FROM sessions ORDER BY family`)
	if err != nil {
		return nil, err
	}
	var families []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			rows.Close()
			return nil, err
		}
		families = append(families, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snaps := make([]*models.SessionSnapshot, 0, len(families))
	for _, f := range families {
		snap, err := s.LoadSnapshot(ctx, f)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// DeleteSnapshot removes the session row and its items.
func (s *SQLiteStorage) DeleteSnapshot(ctx context.Context, family string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_items WHERE family = ?`, family); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE family = ?`, family); err != nil {
		return err
	}
	return tx.Commit()
}

// CountItems returns the number of stored items across all sessions.
func (s *SQLiteStorage) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_items`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Package storage persists clustering session snapshots.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/capcluster/internal/models"
)

// ErrNotFound is returned when no snapshot exists for a family.
var ErrNotFound = errors.New("snapshot not found")

// Storage defines snapshot persistence operations.
type Storage interface {
	// SaveSnapshot replaces the stored snapshot of snap.Family.
	SaveSnapshot(ctx context.Context, snap *models.SessionSnapshot) error
	// LoadSnapshot returns the snapshot of family or ErrNotFound.
	LoadSnapshot(ctx context.Context, family string) (*models.SessionSnapshot, error)
	// LoadSnapshots returns every stored snapshot ordered by family.
	LoadSnapshots(ctx context.Context) ([]*models.SessionSnapshot, error)
	// DeleteSnapshot removes the snapshot of family. Deleting a missing snapshot is not an error.
	DeleteSnapshot(ctx context.Context, family string) error

	Close() error
}

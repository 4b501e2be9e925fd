package storage

import (
	"fmt"

	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendNone   = "none"
)

// Options selects and configures a storage backend.
type Options struct {
	Backend      string
	DatabasePath string
	BadgerPath   string
	Logger       *zap.Logger
}

// Open returns the configured backend. It returns a nil Storage and no error
// for BackendNone, which disables persistence.
func Open(opts Options) (Storage, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		if opts.DatabasePath == "" {
			return nil, fmt.Errorf("sqlite storage requires database_path")
		}
		s, err := NewSQLiteStorage(opts.DatabasePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendBadger:
		b, err := NewBadgerStorage(BadgerOptions{Dir: opts.BadgerPath, Logger: opts.Logger})
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: sqlite, badger, none)", opts.Backend)
	}
}

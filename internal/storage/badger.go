package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/hyperjump/capcluster/internal/models"
)

const snapshotPrefix = "session/"

// BadgerStorage implements Storage on BadgerDB; each snapshot is one JSON value.
type BadgerStorage struct {
	db *badger.DB
}

var _ Storage = (*BadgerStorage)(nil)

// BadgerOptions configures BadgerStorage.
type BadgerOptions struct {
	// Dir is the data directory. Required unless InMemory is set.
	Dir string
	// InMemory keeps everything in memory; used by tests.
	InMemory bool
	// Logger receives badger's warnings and errors.
	Logger *zap.Logger
}

// NewBadgerStorage opens (or creates) a Badger database.
func NewBadgerStorage(opts BadgerOptions) (*BadgerStorage, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger storage requires a directory")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{logger.Named("badger").Sugar()})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStorage{db: db}, nil
}

func snapshotKey(family string) []byte {
	return []byte(snapshotPrefix + family)
}

// SaveSnapshot stores snap under its family.
func (b *BadgerStorage) SaveSnapshot(_ context.Context, snap *models.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(snap.Family), data)
	})
}

// LoadSnapshot returns the snapshot of family.
func (b *BadgerStorage) LoadSnapshot(_ context.Context, family string) (*models.SessionSnapshot, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(family))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, family)
	}
	if err != nil {
		return nil, err
	}
	var snap models.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", family, err)
	}
	return &snap, nil
}

// LoadSnapshots returns every stored snapshot in key order.
func (b *BadgerStorage) LoadSnapshots(_ context.Context) ([]*models.SessionSnapshot, error) {
	var snaps []*models.SessionSnapshot
	prefix := []byte(snapshotPrefix)
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var snap models.SessionSnapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("failed to unmarshal snapshot %s: %w", item.Key(), err)
			}
			snaps = append(snaps, &snap)
		}
		return nil
	})
	return snaps, err
}

// DeleteSnapshot removes the snapshot of family.
func (b *BadgerStorage) DeleteSnapshot(_ context.Context, family string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(family))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Close closes the database.
func (b *BadgerStorage) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger output to zap, dropping its chatty info and debug lines.
type badgerLogger struct {
	l *zap.SugaredLogger
}

func (b badgerLogger) Errorf(f string, v ...interface{})   { b.l.Errorf(f, v...) }
func (b badgerLogger) Warningf(f string, v ...interface{}) { b.l.Warnf(f, v...) }
func (badgerLogger) Infof(string, ...interface{})          {}
func (badgerLogger) Debugf(string, ...interface{})         {}

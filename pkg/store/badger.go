package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store on top of BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

const defaultValueLogFileSize = 128 * 1024 * 1024 // 128MB

type badgerConfig struct {
	valueLogFileSize int64
	inMemory         bool
}

// BadgerOption customizes how Badger is opened.
type BadgerOption func(*badgerConfig) error

// WithValueLogFileSize sets max bytes per value log (vlog) file.
func WithValueLogFileSize(sizeBytes int64) BadgerOption {
	return func(cfg *badgerConfig) error {
		if sizeBytes <= 0 {
			return fmt.Errorf("badger value log file size must be > 0, got %d", sizeBytes)
		}
		cfg.valueLogFileSize = sizeBytes
		return nil
	}
}

// WithInMemory keeps everything in memory with no files on disk. Nothing
// survives Close; meant for tests and throwaway runs.
func WithInMemory() BadgerOption {
	return func(cfg *badgerConfig) error {
		cfg.inMemory = true
		return nil
	}
}

// NewBadgerStore opens a Badger-backed store at path. The path is ignored
// when WithInMemory is given.
func NewBadgerStore(path string, options ...BadgerOption) (*BadgerStore, error) {
	cfg := badgerConfig{
		valueLogFileSize: defaultValueLogFileSize,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(&cfg); err != nil {
			return nil, err
		}
	}

	opts := badger.DefaultOptions(path)
	opts = opts.WithValueLogFileSize(cfg.valueLogFileSize)
	if cfg.inMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) View(fn func(Tx) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
}

func (s *BadgerStore) Update(fn func(Tx) error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
}

type badgerTx struct {
	txn *badger.Txn
}

func (tx *badgerTx) Set(key, value []byte) error {
	return tx.txn.Set(key, value)
}

func (tx *badgerTx) Get(key []byte) ([]byte, error) {
	item, err := tx.txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (tx *badgerTx) Delete(key []byte) error {
	return tx.txn.Delete(key)
}

func (tx *badgerTx) Scan(prefix []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := tx.txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

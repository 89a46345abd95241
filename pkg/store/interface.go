package store

import (
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

// Store is the KV storage backing durable synchronization state. One store
// instance serves one site; documents share it under distinct key prefixes.
type Store interface {
	// Close releases the store.
	Close() error

	// View runs fn inside a read-only transaction.
	View(fn func(Tx) error) error

	// Update runs fn inside a read-write transaction. The transaction
	// commits only if fn returns nil.
	Update(fn func(Tx) error) error
}

// Tx is a transaction handle passed to View and Update callbacks. It is
// only valid for the duration of the callback.
type Tx interface {
	// Set stores value under key.
	Set(key, value []byte) error

	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// Scan visits every key with the given prefix in ascending key order.
	// Returning an error from fn stops the scan and propagates the error.
	Scan(prefix []byte, fn func(key, value []byte) error) error
}

// Package journal persists the sequences a site has produced or integrated,
// in arrival order, so a restarted process can rebuild its engines and a
// reconnecting peer can be replayed everything it missed.
package journal

import (
	"fmt"

	"github.com/dyule/optra/pkg/ot"
	"github.com/dyule/optra/pkg/store"
)

// Key layout, per document:
//
//	seq/<doc>/<index>  encoded sequence, index zero-padded so the natural
//	                   key order is the append order
//	meta/<doc>/count   number of appended sequences
type Journal struct {
	store store.Store
}

// New wraps an already-open store.
func New(s store.Store) *Journal {
	return &Journal{store: s}
}

// Open opens a Badger-backed journal at path.
func Open(path string, options ...store.BadgerOption) (*Journal, error) {
	s, err := store.NewBadgerStore(path, options...)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return New(s), nil
}

// Close releases the underlying store.
func (j *Journal) Close() error {
	return j.store.Close()
}

func seqKey(docID string, index uint64) []byte {
	return []byte(fmt.Sprintf("seq/%s/%020d", docID, index))
}

func seqPrefix(docID string) []byte {
	return []byte(fmt.Sprintf("seq/%s/", docID))
}

func countKey(docID string) []byte {
	return []byte(fmt.Sprintf("meta/%s/count", docID))
}

// Append records a sequence under the document's next index. The entry and
// the counter commit in one transaction, so a crash cannot leave them
// disagreeing.
func (j *Journal) Append(docID string, seq *ot.TransactionSequence) error {
	data, err := seq.Bytes()
	if err != nil {
		return fmt.Errorf("encoding sequence: %w", err)
	}
	return j.store.Update(func(tx store.Tx) error {
		count, err := readCount(tx, docID)
		if err != nil {
			return err
		}
		if err := tx.Set(seqKey(docID, count), data); err != nil {
			return err
		}
		return tx.Set(countKey(docID), []byte(fmt.Sprintf("%d", count+1)))
	})
}

// Len reports how many sequences the document has journaled.
func (j *Journal) Len(docID string) (uint64, error) {
	var count uint64
	err := j.store.View(func(tx store.Tx) error {
		var err error
		count, err = readCount(tx, docID)
		return err
	})
	return count, err
}

func readCount(tx store.Tx, docID string) (uint64, error) {
	raw, err := tx.Get(countKey(docID))
	if err == store.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count uint64
	if _, err := fmt.Sscanf(string(raw), "%d", &count); err != nil {
		return 0, fmt.Errorf("corrupt sequence count %q: %w", raw, err)
	}
	return count, nil
}

// Replay visits the document's journaled sequences in append order.
// Returning an error from fn stops the replay.
func (j *Journal) Replay(docID string, fn func(seq *ot.TransactionSequence) error) error {
	return j.store.View(func(tx store.Tx) error {
		return tx.Scan(seqPrefix(docID), func(key, value []byte) error {
			seq, err := ot.TransactionSequenceFromBytes(value)
			if err != nil {
				return fmt.Errorf("replaying %s: %w", key, err)
			}
			return fn(seq)
		})
	})
}

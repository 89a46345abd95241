// Package mobile wraps the synchronization manager in a gomobile-compatible
// API. gomobile cannot bind unsigned integers, variadic parameters or slices
// of structs, so everything here sticks to strings, int64 and []byte; wire
// bundles cross the boundary as the raw encoded bytes the transport carries
// anyway.
package mobile

import (
	"encoding/json"
	"fmt"

	"github.com/dyule/optra/pkg/docsync"
	"github.com/dyule/optra/pkg/journal"
	"github.com/dyule/optra/pkg/ot"
	"github.com/dyule/optra/pkg/store"
)

// MobileSync owns one site's documents on a device.
type MobileSync struct {
	manager *docsync.Manager
	journal *journal.Journal
}

// NewMobileSync creates a manager for the given site id. journalPath is the
// directory for the durable journal; an empty path keeps everything in
// memory.
func NewMobileSync(siteID int64, journalPath string) (*MobileSync, error) {
	if siteID <= 0 || siteID > int64(^uint32(0)) {
		return nil, fmt.Errorf("site id %d out of range", siteID)
	}
	var (
		j   *journal.Journal
		err error
	)
	if journalPath == "" {
		var s *store.BadgerStore
		s, err = store.NewBadgerStore("", store.WithInMemory())
		if err == nil {
			j = journal.New(s)
		}
	} else {
		j, err = journal.Open(journalPath)
	}
	if err != nil {
		return nil, err
	}
	return &MobileSync{
		manager: docsync.NewManager(uint32(siteID), docsync.WithJournal(j)),
		journal: j,
	}, nil
}

// Close releases the journal.
func (ms *MobileSync) Close() error {
	return ms.journal.Close()
}

// CreateDocument starts a new document and returns its id.
func (ms *MobileSync) CreateDocument() string {
	return ms.manager.Create().ID()
}

// TrackDocument starts tracking a document announced by a peer.
func (ms *MobileSync) TrackDocument(id string) error {
	_, err := ms.manager.Track(id)
	return err
}

// RestoreDocument rebuilds a document from the journal after a restart.
func (ms *MobileSync) RestoreDocument(id string) error {
	_, err := ms.manager.Restore(id)
	return err
}

func (ms *MobileSync) document(id string) (*docsync.Document, error) {
	doc, ok := ms.manager.Get(id)
	if !ok {
		return nil, fmt.Errorf("document %s is not tracked", id)
	}
	return doc, nil
}

// Content returns the document's current content.
func (ms *MobileSync) Content(id string) (string, error) {
	doc, err := ms.document(id)
	if err != nil {
		return "", err
	}
	return string(doc.Content()), nil
}

// Insert adds text at a byte offset and returns the encoded bundle to send
// to the peer.
func (ms *MobileSync) Insert(id string, pos int64, text string) ([]byte, error) {
	doc, err := ms.document(id)
	if err != nil {
		return nil, err
	}
	seq, err := doc.Edit(ot.Edit{Pos: int(pos), Insert: []byte(text)})
	if err != nil {
		return nil, err
	}
	return seq.Bytes()
}

// Delete removes a byte range and returns the encoded bundle to send to the
// peer.
func (ms *MobileSync) Delete(id string, pos, length int64) ([]byte, error) {
	doc, err := ms.document(id)
	if err != nil {
		return nil, err
	}
	seq, err := doc.Edit(ot.Edit{Pos: int(pos), Delete: int(length)})
	if err != nil {
		return nil, err
	}
	return seq.Bytes()
}

// Integrate feeds an encoded peer bundle into the document. Bundles that
// arrive before their predecessors are held and retried automatically.
func (ms *MobileSync) Integrate(id string, bundle []byte) error {
	doc, err := ms.document(id)
	if err != nil {
		return err
	}
	seq, err := ot.TransactionSequenceFromBytes(bundle)
	if err != nil {
		return err
	}
	return doc.Integrate(seq)
}

// HeldCount reports how many bundles are waiting for their predecessors.
func (ms *MobileSync) HeldCount(id string) (int64, error) {
	doc, err := ms.document(id)
	if err != nil {
		return 0, err
	}
	return int64(doc.HeldCount()), nil
}

// ListDocumentsJSON returns the tracked document ids as a JSON array.
func (ms *MobileSync) ListDocumentsJSON() (string, error) {
	ids := ms.manager.Documents()
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Package docsync keeps a set of local documents synchronized against a
// peer: it owns one engine per document, applies transformed sequences to
// the document content, holds early-arriving sequences until their
// predecessors land, and journals everything for crash recovery.
package docsync

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dyule/optra/pkg/journal"
	"github.com/dyule/optra/pkg/ot"
)

// Manager tracks the documents one site synchronizes.
type Manager struct {
	mu      sync.RWMutex
	siteID  uint32
	docs    map[string]*Document
	journal *journal.Journal
}

// Option customizes a Manager.
type Option func(*Manager)

// WithJournal records every produced and integrated sequence so documents
// can be rebuilt after a restart. Without it the manager is purely
// in-memory.
func WithJournal(j *journal.Journal) Option {
	return func(m *Manager) {
		m.journal = j
	}
}

// NewManager creates a manager for the given site id.
func NewManager(siteID uint32, options ...Option) *Manager {
	m := &Manager{siteID: siteID, docs: make(map[string]*Document)}
	for _, option := range options {
		if option != nil {
			option(m)
		}
	}
	return m
}

// SiteID is the site this manager's engines stamp operations with.
func (m *Manager) SiteID() uint32 { return m.siteID }

// Create starts tracking a brand-new document under a fresh id.
func (m *Manager) Create() *Document {
	doc, _ := m.Track(uuid.NewString())
	return doc
}

// Track starts tracking a document under a known id, typically one
// announced by a peer. Tracking an id twice is an error.
func (m *Manager) Track(id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; ok {
		return nil, fmt.Errorf("document %s is already tracked", id)
	}
	doc := &Document{
		id:      id,
		engine:  ot.NewEngine(m.siteID),
		manager: m,
	}
	m.docs[id] = doc
	return doc, nil
}

// Get returns a tracked document.
func (m *Manager) Get(id string) (*Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok
}

// Documents returns the ids of every tracked document.
func (m *Manager) Documents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	return ids
}

// Restore rebuilds a document from the journal by replaying every recorded
// sequence in arrival order: the site's own bundles are re-stamped through
// a fresh engine, foreign bundles are re-integrated. The result carries the
// same content, counters and history the document had when the journal was
// last written.
func (m *Manager) Restore(id string) (*Document, error) {
	if m.journal == nil {
		return nil, fmt.Errorf("restoring %s: manager has no journal", id)
	}
	doc, err := m.Track(id)
	if err != nil {
		return nil, err
	}
	err = m.journal.Replay(id, func(seq *ot.TransactionSequence) error {
		if seq.Site() == m.siteID {
			return doc.replayOwn(seq)
		}
		return doc.replayForeign(seq)
	})
	if err != nil {
		m.mu.Lock()
		delete(m.docs, id)
		m.mu.Unlock()
		return nil, fmt.Errorf("restoring %s: %w", id, err)
	}
	return doc, nil
}

func (m *Manager) journalAppend(id string, seq *ot.TransactionSequence) error {
	if m.journal == nil {
		return nil
	}
	return m.journal.Append(id, seq)
}

package docsync

import (
	"fmt"
	"sync"

	"github.com/dyule/optra/pkg/ot"
)

// Document is one synchronized file: its current content, the engine that
// guards convergence, and the queue of sequences that arrived before their
// causal predecessors. One coarse lock serializes everything touching the
// engine, since engine methods must not run concurrently.
type Document struct {
	mu      sync.Mutex
	id      string
	engine  *ot.Engine
	content []byte
	held    []*ot.TransactionSequence
	manager *Manager
}

// ID returns the document's identifier.
func (d *Document) ID() string { return d.id }

// Content returns a copy of the current document content.
func (d *Document) Content() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.content...)
}

// HeldCount reports how many early-arriving sequences are waiting for their
// predecessors.
func (d *Document) HeldCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.held)
}

// Engine exposes the document's engine for inspection. The engine is not
// safe to drive while other goroutines use the document.
func (d *Document) Engine() *ot.Engine { return d.engine }

// Edit applies local edits to the document and returns the bundle to send
// to the peer. Positions follow the Edit contract: sequential, with
// insertions ordered before deletions at a shared position.
func (d *Document) Edit(edits ...ot.Edit) (*ot.TransactionSequence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	seq, err := d.engine.ProcessDiffs(edits)
	if err != nil {
		return nil, err
	}
	content, err := seq.Apply(d.content)
	if err != nil {
		return nil, err
	}
	d.content = content
	if err := d.manager.journalAppend(d.id, seq); err != nil {
		return nil, fmt.Errorf("journaling edit: %w", err)
	}
	return seq, nil
}

// Integrate feeds a peer's sequence into the document. A sequence whose
// predecessor has not arrived yet is held and retried automatically after
// each later integration; everything else either applies cleanly or fails.
func (d *Document) Integrate(seq *ot.TransactionSequence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.integrateOne(seq); err != nil {
		if ot.IsNoSuchState(err) {
			d.held = append(d.held, seq)
			return nil
		}
		return err
	}
	return d.drainHeld()
}

func (d *Document) integrateOne(seq *ot.TransactionSequence) error {
	transformed, err := d.engine.IntegrateRemote(seq)
	if err != nil {
		return err
	}
	content, err := transformed.Apply(d.content)
	if err != nil {
		return err
	}
	d.content = content
	if err := d.manager.journalAppend(d.id, seq); err != nil {
		return fmt.Errorf("journaling integration: %w", err)
	}
	return nil
}

// drainHeld retries held sequences until a full pass makes no progress.
// Integrating one held sequence can unblock another, so the loop keeps
// sweeping while anything lands.
func (d *Document) drainHeld() error {
	for {
		progressed := false
		remaining := make([]*ot.TransactionSequence, 0, len(d.held))
		for _, seq := range d.held {
			err := d.integrateOne(seq)
			if err == nil {
				progressed = true
				continue
			}
			if ot.IsNoSuchState(err) {
				remaining = append(remaining, seq)
				continue
			}
			return err
		}
		d.held = remaining
		if !progressed || len(d.held) == 0 {
			return nil
		}
	}
}

// replayOwn re-stamps a journaled local bundle through the engine and
// reapplies it, reconstructing the exact counters the bundle carried when
// first produced.
func (d *Document) replayOwn(seq *ot.TransactionSequence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, op := range seq.Operations() {
		var err error
		switch v := op.(type) {
		case *ot.Insert:
			_, err = d.engine.CreateInsert(v.Position(), v.Value())
		case *ot.Delete:
			_, err = d.engine.CreateDelete(v.Position(), v.Length())
		}
		if err != nil {
			return err
		}
	}
	content, err := seq.Apply(d.content)
	if err != nil {
		return err
	}
	d.content = content
	return nil
}

func (d *Document) replayForeign(seq *ot.TransactionSequence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	transformed, err := d.engine.IntegrateRemote(seq)
	if err != nil {
		return err
	}
	content, err := transformed.Apply(d.content)
	if err != nil {
		return err
	}
	d.content = content
	return nil
}

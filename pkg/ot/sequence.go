package ot

// TransactionSequence is the unit of exchange between sites: an ordered,
// site-tagged bundle of operations plus the causal state the bundle was
// created against. Sequences are immutable once constructed and safe to
// share read-only across goroutines and sites; they carry no reference back
// to any engine.
type TransactionSequence struct {
	start      *State
	site       uint32
	insertions []*Insert
	deletions  []*Delete
}

// NewTransactionSequence validates and builds a sequence. start is nil only
// for a bundle created against a brand-new file; an empty operation set with
// a nil start is rejected as ambiguous ("from scratch" vs "continuing").
// Within each list positions and local counters must be non-decreasing, and
// every operation must carry the originating site's id.
func NewTransactionSequence(start *State, site uint32, insertions []*Insert, deletions []*Delete) (*TransactionSequence, error) {
	if start == nil && len(insertions) == 0 && len(deletions) == 0 {
		return nil, newMalformed("empty sequence with no starting state")
	}
	if start != nil && start.Site != site {
		return nil, newMalformed("starting state belongs to site %d, sequence to site %d", start.Site, site)
	}
	lastPos := -1
	lastLocal := uint32(0)
	for i, op := range insertions {
		if op == nil || len(op.value) == 0 {
			return nil, newMalformed("insertion %d has no payload", i)
		}
		if op.state.Site != site {
			return nil, newMalformed("insertion %d stamped by site %d, sequence from site %d", i, op.state.Site, site)
		}
		if op.pos < lastPos {
			return nil, newMalformed("insertion positions regress at %d", i)
		}
		if op.state.Local < lastLocal {
			return nil, newMalformed("insertion local times regress at %d", i)
		}
		lastPos, lastLocal = op.pos, op.state.Local
	}
	lastPos, lastLocal = -1, 0
	for i, op := range deletions {
		if op == nil || op.length <= 0 {
			return nil, newMalformed("deletion %d has no length", i)
		}
		if op.state.Site != site {
			return nil, newMalformed("deletion %d stamped by site %d, sequence from site %d", i, op.state.Site, site)
		}
		if op.pos < lastPos {
			return nil, newMalformed("deletion positions regress at %d", i)
		}
		if op.state.Local < lastLocal {
			return nil, newMalformed("deletion local times regress at %d", i)
		}
		lastPos, lastLocal = op.pos, op.state.Local
	}
	s := &TransactionSequence{site: site}
	if start != nil {
		st := *start
		s.start = &st
	}
	s.insertions = append([]*Insert(nil), insertions...)
	s.deletions = append([]*Delete(nil), deletions...)
	return s, nil
}

// Start returns the causal state the bundle was created against, or nil for
// a brand-new file.
func (s *TransactionSequence) Start() *State {
	if s.start == nil {
		return nil
	}
	st := *s.start
	return &st
}

// Site is the originating site's id.
func (s *TransactionSequence) Site() uint32 { return s.site }

// Insertions returns the ordered insertion list.
func (s *TransactionSequence) Insertions() []*Insert {
	return append([]*Insert(nil), s.insertions...)
}

// Deletions returns the ordered deletion list.
func (s *TransactionSequence) Deletions() []*Delete {
	return append([]*Delete(nil), s.deletions...)
}

// Len is the number of operations in the bundle.
func (s *TransactionSequence) Len() int {
	return len(s.insertions) + len(s.deletions)
}

// Operations returns the flat effect-ordered list: insertions, then
// deletions.
func (s *TransactionSequence) Operations() []Operation {
	ops := make([]Operation, 0, s.Len())
	for _, op := range s.insertions {
		ops = append(ops, op)
	}
	for _, op := range s.deletions {
		ops = append(ops, op)
	}
	return ops
}

// Apply replays the sequence against buf and returns the edited content:
// insertions in ascending position order, then deletions in ascending
// position order. Deletions are expressed against the post-insertion frame,
// which is why the order is fixed. A remote sequence must pass through
// Engine.IntegrateRemote first; replaying an untransformed remote bundle
// acts in the wrong coordinate frame and corrupts the buffer.
//
// An out-of-bounds position is a protocol bug: Apply fails without returning
// a partially edited buffer.
func (s *TransactionSequence) Apply(buf []byte) ([]byte, error) {
	out := append([]byte(nil), buf...)
	for _, op := range s.insertions {
		if op.pos > len(out) {
			return nil, newMalformed("insert at %d beyond buffer length %d", op.pos, len(out))
		}
		out = splice(out, op.pos, op.value)
	}
	for _, op := range s.deletions {
		if op.pos+op.length > len(out) {
			return nil, newMalformed("delete of %d bytes at %d beyond buffer length %d", op.length, op.pos, len(out))
		}
		out = append(out[:op.pos], out[op.pos+op.length:]...)
	}
	return out, nil
}

func splice(buf []byte, pos int, value []byte) []byte {
	out := make([]byte, 0, len(buf)+len(value))
	out = append(out, buf[:pos]...)
	out = append(out, value...)
	out = append(out, buf[pos:]...)
	return out
}

// sequenceFromOps rebundles already-validated operations, partitioning them
// back into the two ordered lists. Used for transformed output, where the
// usual constructor checks have already been paid.
func sequenceFromOps(start *State, site uint32, ops []Operation) *TransactionSequence {
	s := &TransactionSequence{start: start, site: site}
	for _, op := range ops {
		switch v := op.(type) {
		case *Insert:
			s.insertions = append(s.insertions, v)
		case *Delete:
			s.deletions = append(s.deletions, v)
		}
	}
	return s
}

package ot

// Engine coordinates one site's view of one file against a peer pairing. It
// exclusively owns the local history log (the record of every operation it
// has originated or integrated) and all causal bookkeeping. There is no
// state machine beyond "synchronized up to here": the log and the counters
// embedded in causal states advance monotonically and never roll back.
//
// Methods are non-blocking, in-memory computation and must not be invoked
// concurrently against the same instance; callers wanting concurrency run
// one engine per file per site behind a coarse lock (see pkg/docsync).
type Engine struct {
	siteID     uint32
	localTime  uint32
	remoteTime uint32

	// history is the append-only operation log. Every operation is expressed
	// in the coordinate frame of the log before it. Operations before acked
	// are known to the peer; the suffix holds local operations the peer has
	// not yet observed.
	history []Operation
	acked   int

	// integrated tracks, per remote site, how many of its operations this
	// engine has incorporated.
	integrated map[uint32]uint32
}

// NewEngine creates a fresh engine for a brand-new participant. The site id
// must be unique across all participants synchronizing the same file; a
// collision silently misattributes causal history and cannot be detected
// here, so ids are typically assigned centrally.
func NewEngine(siteID uint32) *Engine {
	return &Engine{siteID: siteID, integrated: make(map[uint32]uint32)}
}

// SiteID is the identifier this engine stamps onto the operations it
// creates.
func (e *Engine) SiteID() uint32 { return e.siteID }

// LocalTime is the number of operations this site has produced itself.
func (e *Engine) LocalTime() uint32 { return e.localTime }

// RemoteTime is the number of foreign operations this site has integrated.
func (e *Engine) RemoteTime() uint32 { return e.remoteTime }

// HistoryLen reports the number of operations in the local history log.
func (e *Engine) HistoryLen() int { return len(e.history) }

// CurrentState is the causal state the next locally created operation will
// advance from.
func (e *Engine) CurrentState() State {
	return NewState(e.siteID, e.localTime, e.remoteTime)
}

// startState is the state a fresh bundle is created against: nil while the
// engine has seen nothing at all, which marks a brand-new file.
func (e *Engine) startState() *State {
	if e.localTime == 0 && e.remoteTime == 0 {
		return nil
	}
	st := e.CurrentState()
	return &st
}

func (e *Engine) stamp(st *State) {
	*st = e.CurrentState().AdvanceLocal()
	e.localTime = st.Local
}

// CreateInsert stamps a new insertion with the advanced local clock and
// appends it to history. Bundling for transport happens separately, through
// ProcessTransaction.
func (e *Engine) CreateInsert(pos int, value []byte) (*Insert, error) {
	op, err := NewInsert(pos, value, State{})
	if err != nil {
		return nil, err
	}
	e.stamp(op.State())
	e.history = append(e.history, op)
	return op, nil
}

// CreateDelete stamps a new deletion with the advanced local clock and
// appends it to history.
func (e *Engine) CreateDelete(pos, length int) (*Delete, error) {
	op, err := NewDelete(pos, length, State{})
	if err != nil {
		return nil, err
	}
	e.stamp(op.State())
	e.history = append(e.history, op)
	return op, nil
}

// ProcessDiffs stamps externally computed edits with the current causal
// state, appends them to the local history and returns the bundle to hand
// to the transport. The edit list is validated in full before any state
// advances, so a malformed list leaves the engine untouched.
func (e *Engine) ProcessDiffs(edits []Edit) (*TransactionSequence, error) {
	if err := checkEdits(edits); err != nil {
		return nil, err
	}
	start := e.startState()
	var insertions []*Insert
	var deletions []*Delete
	for _, ed := range edits {
		if len(ed.Insert) > 0 {
			op, err := e.CreateInsert(ed.Pos, ed.Insert)
			if err != nil {
				return nil, err
			}
			insertions = append(insertions, op)
		} else {
			op, err := e.CreateDelete(ed.Pos, ed.Delete)
			if err != nil {
				return nil, err
			}
			deletions = append(deletions, op)
		}
	}
	return NewTransactionSequence(start, e.siteID, insertions, deletions)
}

func checkEdits(edits []Edit) error {
	lastIns, lastDel := -1, -1
	deleted := make(map[int]bool)
	for i, ed := range edits {
		switch {
		case len(ed.Insert) > 0 && ed.Delete != 0:
			return newMalformed("edit %d is both an insertion and a deletion", i)
		case len(ed.Insert) == 0 && ed.Delete <= 0:
			return newMalformed("edit %d is neither an insertion nor a deletion", i)
		case ed.Pos < 0:
			return newMalformed("edit %d has negative position %d", i, ed.Pos)
		}
		if len(ed.Insert) > 0 {
			if deleted[ed.Pos] {
				return newMalformed("insertion follows deletion at position %d", ed.Pos)
			}
			if ed.Pos < lastIns {
				return newMalformed("insertion positions regress at edit %d", i)
			}
			lastIns = ed.Pos
		} else {
			if ed.Pos < lastDel {
				return newMalformed("deletion positions regress at edit %d", i)
			}
			lastDel = ed.Pos
			deleted[ed.Pos] = true
		}
	}
	return nil
}

// ProcessTransaction validates an already-stamped operation stream and
// re-bundles it for transport. Every operation must have been produced
// against the document state immediately following the one before it, with
// no gaps and nothing from a stale base, and the stream must extend to the
// engine's current local time. Within any group sharing a position,
// insertions precede deletions. History is not touched; stamping already
// happened when each operation was created.
func (e *Engine) ProcessTransaction(ops []Operation) (*TransactionSequence, error) {
	if len(ops) == 0 {
		return nil, newMalformed("empty operation stream")
	}
	first := *ops[0].State()
	if first.Local == 0 {
		return nil, newMalformed("operation carries an unstamped state")
	}
	prev := first.Local - 1
	var insertions []*Insert
	var deletions []*Delete
	deleted := make(map[int]bool)
	for i, op := range ops {
		st := *op.State()
		if st.Site != e.siteID {
			return nil, newMalformed("operation %d from site %d, engine owns site %d", i, st.Site, e.siteID)
		}
		if st.Local != prev+1 {
			return nil, newMalformed("gap in operation stream at %d: local time %d follows %d", i, st.Local, prev)
		}
		prev = st.Local
		switch v := op.(type) {
		case *Insert:
			if deleted[v.pos] {
				return nil, newMalformed("insertion follows deletion at position %d", v.pos)
			}
			insertions = append(insertions, v)
		case *Delete:
			deleted[v.pos] = true
			deletions = append(deletions, v)
		default:
			return nil, newMalformed("unknown operation variant at %d", i)
		}
	}
	if prev != e.localTime {
		return nil, newMalformed("operation stream ends at local time %d, history is at %d", prev, e.localTime)
	}
	var start *State
	if first.Local > 1 || first.Remote > 0 {
		st := NewState(e.siteID, first.Local-1, first.Remote)
		start = &st
	}
	return NewTransactionSequence(start, e.siteID, insertions, deletions)
}

// IntegrateRemote transforms a peer's bundle against the concurrent part of
// local history and returns the operations safe to Apply to the local copy.
// It either fully succeeds or returns an error with history untouched.
//
// A bundle whose causal prerequisite is missing fails with NoSuchState; the
// caller holds the bundle and re-presents it once the predecessor has been
// integrated. A bundle delivered twice (at-least-once transports do that)
// yields an empty sequence and no mutation. Anything else inconsistent is a
// protocol bug and fails as malformed.
func (e *Engine) IntegrateRemote(seq *TransactionSequence) (*TransactionSequence, error) {
	if seq == nil {
		return nil, newMalformed("nil sequence")
	}
	if seq.Site() == e.siteID {
		return nil, newMalformed("sequence originated at this site")
	}
	var baseLocal, baseRemote uint32
	if st := seq.Start(); st != nil {
		baseLocal, baseRemote = st.Local, st.Remote
	}
	incoming := seq.Operations()
	if err := checkIncoming(incoming, seq.Site(), baseLocal); err != nil {
		return nil, err
	}
	count := uint32(len(incoming))
	have := e.integrated[seq.Site()]
	if have < baseLocal {
		return nil, newNoSuchState("sequence from site %d starts after local time %d, only %d integrated", seq.Site(), baseLocal, have)
	}
	if have >= baseLocal+count {
		// Redelivered bundle; everything in it is already part of history.
		return &TransactionSequence{start: seq.Start(), site: seq.site}, nil
	}
	if have != baseLocal {
		return nil, newMalformed("sequence from site %d overlaps history: starts at %d, %d already integrated", seq.Site(), baseLocal, have)
	}
	if baseRemote > e.localTime {
		return nil, newMalformed("sequence claims %d observed local operations, only %d exist", baseRemote, e.localTime)
	}

	// Local operations the sender had already observed move into the
	// acknowledged prefix; what remains after ackEnd is the concurrent local
	// history the bundle must be transformed against.
	ackEnd := e.acked
	for ackEnd < len(e.history) && !e.history[ackEnd].State().HappenedAfter(baseRemote, e.siteID) {
		ackEnd++
	}
	concurrent := e.history[ackEnd:]
	transformed, rebased := transformSequences(incoming, concurrent)

	// Normalized rebuild: the acknowledged prefix, then the incoming
	// operations as the peer expressed them, then the concurrent local
	// operations re-expressed to follow. Replaying the new log yields the
	// same content as the old log plus the transformed sequence.
	history := make([]Operation, 0, ackEnd+len(incoming)+len(rebased))
	history = append(history, e.history[:ackEnd]...)
	history = append(history, incoming...)
	history = append(history, rebased...)
	e.history = history
	e.acked = ackEnd + len(incoming)
	e.integrated[seq.Site()] = baseLocal + count
	e.remoteTime += count

	return sequenceFromOps(seq.Start(), seq.site, transformed), nil
}

// checkIncoming verifies the bundle's operations carry the claimed site and
// exactly cover the local-time window following the starting state.
func checkIncoming(ops []Operation, site uint32, baseLocal uint32) error {
	seen := make(map[uint32]bool, len(ops))
	for i, op := range ops {
		st := *op.State()
		if st.Site != site {
			return newMalformed("operation %d stamped by site %d, sequence from site %d", i, st.Site, site)
		}
		if st.Local <= baseLocal || st.Local > baseLocal+uint32(len(ops)) {
			return newMalformed("operation %d local time %d outside bundle window (%d, %d]", i, st.Local, baseLocal, baseLocal+uint32(len(ops)))
		}
		if seen[st.Local] {
			return newMalformed("duplicate local time %d in bundle", st.Local)
		}
		seen[st.Local] = true
	}
	return nil
}

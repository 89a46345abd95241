package ot

import (
	"testing"
)

func TestCreateStamping(t *testing.T) {
	e := NewEngine(7)
	if e.SiteID() != 7 || e.LocalTime() != 0 || e.RemoteTime() != 0 {
		t.Fatalf("fresh engine: site %d local %d remote %d", e.SiteID(), e.LocalTime(), e.RemoteTime())
	}

	op, err := e.CreateInsert(0, []byte("a"))
	if err != nil {
		t.Fatalf("CreateInsert failed: %v", err)
	}
	if st := *op.State(); st.Site != 7 || st.Local != 1 || st.Remote != 0 {
		t.Errorf("first operation stamped %v", st)
	}
	dop, err := e.CreateDelete(0, 1)
	if err != nil {
		t.Fatalf("CreateDelete failed: %v", err)
	}
	if st := *dop.State(); st.Local != 2 {
		t.Errorf("second operation stamped %v", st)
	}
	if e.LocalTime() != 2 || e.HistoryLen() != 2 {
		t.Errorf("local time %d history %d after two creates", e.LocalTime(), e.HistoryLen())
	}

	if _, err := e.CreateInsert(-1, []byte("a")); !IsMalformed(err) {
		t.Errorf("negative position accepted: %v", err)
	}
	if e.LocalTime() != 2 || e.HistoryLen() != 2 {
		t.Errorf("rejected create advanced the engine")
	}
}

func TestProcessDiffsStartStates(t *testing.T) {
	e := NewEngine(1)
	seq, err := e.ProcessDiffs([]Edit{{Pos: 0, Insert: []byte("ab")}})
	if err != nil {
		t.Fatalf("ProcessDiffs failed: %v", err)
	}
	if seq.Start() != nil {
		t.Errorf("first bundle should start from scratch, got %v", seq.Start())
	}
	if seq.Site() != 1 || seq.Len() != 1 {
		t.Errorf("bundle site %d len %d", seq.Site(), seq.Len())
	}

	seq, err = e.ProcessDiffs([]Edit{{Pos: 2, Insert: []byte("c")}, {Pos: 0, Delete: 1}})
	if err != nil {
		t.Fatalf("second ProcessDiffs failed: %v", err)
	}
	st := seq.Start()
	if st == nil || st.Site != 1 || st.Local != 1 || st.Remote != 0 {
		t.Errorf("second bundle starts at %v, want {1 1 0}", st)
	}
	if e.LocalTime() != 3 {
		t.Errorf("local time %d after three edits", e.LocalTime())
	}
}

func TestProcessDiffsRejects(t *testing.T) {
	cases := []struct {
		name  string
		edits []Edit
	}{
		{"both kinds set", []Edit{{Pos: 0, Insert: []byte("a"), Delete: 1}}},
		{"neither kind set", []Edit{{Pos: 0}}},
		{"negative delete", []Edit{{Pos: 0, Delete: -2}}},
		{"negative position", []Edit{{Pos: -1, Insert: []byte("a")}}},
		{"insert after delete at same position", []Edit{{Pos: 2, Delete: 1}, {Pos: 2, Insert: []byte("a")}}},
		{"insert positions regress", []Edit{{Pos: 5, Insert: []byte("a")}, {Pos: 1, Insert: []byte("b")}}},
		{"delete positions regress", []Edit{{Pos: 5, Delete: 1}, {Pos: 1, Delete: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine(1)
			if _, err := e.ProcessDiffs(tc.edits); !IsMalformed(err) {
				t.Fatalf("accepted, err = %v", err)
			}
			if e.LocalTime() != 0 || e.HistoryLen() != 0 {
				t.Errorf("rejected edits advanced the engine")
			}
		})
	}
}

func TestProcessTransaction(t *testing.T) {
	e := NewEngine(1)
	a, _ := e.CreateInsert(0, []byte("ab"))
	b, _ := e.CreateDelete(1, 1)

	seq, err := e.ProcessTransaction([]Operation{a, b})
	if err != nil {
		t.Fatalf("ProcessTransaction failed: %v", err)
	}
	if seq.Start() != nil {
		t.Errorf("stream from time zero should start from scratch, got %v", seq.Start())
	}
	if seq.Len() != 2 {
		t.Errorf("bundle len %d", seq.Len())
	}

	c, _ := e.CreateInsert(0, []byte("c"))
	seq, err = e.ProcessTransaction([]Operation{c})
	if err != nil {
		t.Fatalf("ProcessTransaction failed: %v", err)
	}
	if st := seq.Start(); st == nil || st.Local != 2 {
		t.Errorf("bundle starts at %v, want local 2", st)
	}
}

func TestProcessTransactionRejects(t *testing.T) {
	e := NewEngine(1)
	a, _ := e.CreateInsert(0, []byte("ab"))
	b, _ := e.CreateDelete(1, 1)
	c, _ := e.CreateInsert(3, []byte("c"))
	_ = b

	if _, err := e.ProcessTransaction(nil); !IsMalformed(err) {
		t.Errorf("empty stream accepted: %v", err)
	}
	if _, err := e.ProcessTransaction([]Operation{a, c}); !IsMalformed(err) {
		t.Errorf("stream with a gap accepted: %v", err)
	}
	if _, err := e.ProcessTransaction([]Operation{a}); !IsMalformed(err) {
		t.Errorf("stale stream not reaching current time accepted: %v", err)
	}

	other := NewEngine(2)
	if _, err := other.ProcessTransaction([]Operation{a}); !IsMalformed(err) {
		t.Errorf("foreign operations accepted: %v", err)
	}

	unstamped, _ := NewInsert(0, []byte("x"), State{})
	if _, err := e.ProcessTransaction([]Operation{unstamped}); !IsMalformed(err) {
		t.Errorf("unstamped operation accepted: %v", err)
	}
}

func remoteSeq(t *testing.T, start *State, site uint32, insertions []*Insert, deletions []*Delete) *TransactionSequence {
	t.Helper()
	seq, err := NewTransactionSequence(start, site, insertions, deletions)
	if err != nil {
		t.Fatalf("building remote sequence: %v", err)
	}
	return seq
}

func TestIntegrateRemoteRejects(t *testing.T) {
	e := NewEngine(1)

	if _, err := e.IntegrateRemote(nil); !IsMalformed(err) {
		t.Errorf("nil sequence accepted: %v", err)
	}

	own := remoteSeq(t, nil, 1, []*Insert{ins(t, 0, "a", 1, 1, 0)}, nil)
	if _, err := e.IntegrateRemote(own); !IsMalformed(err) {
		t.Errorf("own-site sequence accepted: %v", err)
	}

	// Claims to have observed local operations that never happened.
	start := NewState(2, 0, 5)
	ahead := remoteSeq(t, &start, 2, []*Insert{ins(t, 0, "a", 2, 1, 5)}, nil)
	if _, err := e.IntegrateRemote(ahead); !IsMalformed(err) {
		t.Errorf("sequence observing nonexistent local history accepted: %v", err)
	}
	if e.RemoteTime() != 0 || e.HistoryLen() != 0 {
		t.Errorf("rejected sequence mutated the engine")
	}
}

func TestIntegrateRemoteNoSuchState(t *testing.T) {
	e := NewEngine(1)
	start := NewState(2, 1, 0)
	later := remoteSeq(t, &start, 2, []*Insert{ins(t, 1, "b", 2, 2, 0)}, nil)

	_, err := e.IntegrateRemote(later)
	if !IsNoSuchState(err) {
		t.Fatalf("want NoSuchState, got %v", err)
	}
	if e.RemoteTime() != 0 || e.HistoryLen() != 0 {
		t.Fatalf("failed integration mutated the engine")
	}

	// Once the predecessor arrives the held sequence goes through.
	first := remoteSeq(t, nil, 2, []*Insert{ins(t, 0, "a", 2, 1, 0)}, nil)
	if _, err := e.IntegrateRemote(first); err != nil {
		t.Fatalf("integrating predecessor: %v", err)
	}
	if _, err := e.IntegrateRemote(later); err != nil {
		t.Fatalf("integrating held sequence: %v", err)
	}
	if e.RemoteTime() != 2 {
		t.Errorf("remote time %d after two foreign operations", e.RemoteTime())
	}
}

func TestIntegrateRemoteDuplicate(t *testing.T) {
	e := NewEngine(1)
	seq := remoteSeq(t, nil, 2, []*Insert{ins(t, 0, "a", 2, 1, 0)}, nil)

	if _, err := e.IntegrateRemote(seq); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	histLen, remote := e.HistoryLen(), e.RemoteTime()

	again, err := e.IntegrateRemote(seq)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if again.Len() != 0 {
		t.Errorf("redelivery produced %d operations, want none", again.Len())
	}
	if got, _ := again.Apply([]byte("a")); string(got) != "a" {
		t.Errorf("empty sequence changed content to %q", got)
	}
	if e.HistoryLen() != histLen || e.RemoteTime() != remote {
		t.Errorf("redelivery mutated the engine")
	}
}

func TestIntegrateRemotePartialOverlap(t *testing.T) {
	e := NewEngine(1)
	first := remoteSeq(t, nil, 2, []*Insert{ins(t, 0, "a", 2, 1, 0)}, nil)
	if _, err := e.IntegrateRemote(first); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// A two-operation bundle straddling the integration point: operation 1
	// is already in history, operation 2 is not.
	straddle := remoteSeq(t, nil, 2,
		[]*Insert{ins(t, 0, "a", 2, 1, 0), ins(t, 1, "b", 2, 2, 0)}, nil)
	if _, err := e.IntegrateRemote(straddle); !IsMalformed(err) {
		t.Fatalf("straddling bundle accepted: %v", err)
	}
	if e.RemoteTime() != 1 {
		t.Errorf("failed integration mutated the engine")
	}
}

func TestIntegrateRemoteBadStamps(t *testing.T) {
	e := NewEngine(1)
	// Local times must exactly cover the window after the starting state.
	gap := remoteSeq(t, nil, 2, []*Insert{ins(t, 0, "a", 2, 3, 0)}, nil)
	if _, err := e.IntegrateRemote(gap); !IsMalformed(err) {
		t.Errorf("bundle with out-of-window local time accepted: %v", err)
	}
}

package ot

import "testing"

func TestAdvanceLocal(t *testing.T) {
	st := NewState(3, 5, 7)
	next := st.AdvanceLocal()
	if next.Site != 3 || next.Local != 6 || next.Remote != 7 {
		t.Fatalf("advanced to %v, want site 3 local 6 remote 7", next)
	}
	if st.Local != 5 {
		t.Errorf("AdvanceLocal mutated its receiver: %v", st)
	}
}

func TestMatchesIgnoresRemote(t *testing.T) {
	a := NewState(1, 4, 2)
	b := NewState(1, 4, 9)
	if !a.Matches(b) {
		t.Errorf("%v should match %v regardless of remote count", a, b)
	}
	if a.Matches(NewState(2, 4, 2)) {
		t.Errorf("states from different sites must not match")
	}
	if a.Matches(NewState(1, 5, 2)) {
		t.Errorf("states at different local times must not match")
	}
}

func TestHappenedAfter(t *testing.T) {
	st := NewState(1, 4, 2)
	if !st.HappenedAfter(3, 1) {
		t.Errorf("local time 4 should be after timestamp 3")
	}
	if st.HappenedAfter(4, 1) {
		t.Errorf("local time 4 is not after timestamp 4")
	}
	if st.HappenedAfter(3, 2) {
		t.Errorf("a state never happens after another site's timestamp")
	}
}

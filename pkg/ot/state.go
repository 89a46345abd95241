package ot

import "fmt"

// State marks the causal position of an operation: which site produced it,
// how many operations that site had produced itself (Local), and how many
// foreign operations it had integrated (Remote) at the moment of stamping.
//
// Two states from the same site are totally ordered by Local. States from
// different sites are only comparable through causal reachability ("had the
// sender already observed N of my operations?"), which is what HappenedAfter
// answers, and why integration transforms operations instead of sorting them
// by timestamp.
type State struct {
	Site   uint32
	Local  uint32
	Remote uint32
}

// NewState is pure value construction; counters only ever move forward from
// here via AdvanceLocal or engine bookkeeping.
func NewState(site, local, remote uint32) State {
	return State{Site: site, Local: local, Remote: remote}
}

// AdvanceLocal returns a copy with the local counter moved forward by one.
// The owning engine uses it when stamping a freshly created operation.
func (s State) AdvanceLocal() State {
	s.Local++
	return s
}

// Matches reports whether both states denote the same point in the same
// site's history, the exact operation a diverging peer last agreed on.
func (s State) Matches(other State) bool {
	return s.Site == other.Site && s.Local == other.Local
}

// HappenedAfter reports whether this state causally dominates the given
// counter value for the named site: it belongs to that site and was stamped
// after the site had produced more than timestamp operations. The engine
// uses it to decide which locally held operations the sender of a bundle had
// not yet observed.
func (s State) HappenedAfter(timestamp uint32, site uint32) bool {
	return s.Site == site && s.Local > timestamp
}

func (s State) String() string {
	return fmt.Sprintf("site %d (local %d, remote %d)", s.Site, s.Local, s.Remote)
}

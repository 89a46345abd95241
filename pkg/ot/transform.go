package ot

// Pairwise transformation rules. transformPair derives the bottom of the OT
// diamond for two concurrent operations expressed against the same document
// state: a (incoming) and b (existing). It returns a re-expressed to apply
// after b, and b re-expressed to apply after a. Either side may split in two
// (a deletion crossed by a surviving insertion) or vanish (a deletion fully
// shadowed by another deletion). Insertions are never dropped.
func transformPair(a, b Operation) ([]Operation, []Operation) {
	switch at := a.(type) {
	case *Insert:
		switch bt := b.(type) {
		case *Insert:
			return transformInsertInsert(at, bt)
		case *Delete:
			return transformInsertDelete(at, bt)
		}
	case *Delete:
		switch bt := b.(type) {
		case *Insert:
			ins, del := transformInsertDelete(bt, at)
			return del, ins
		case *Delete:
			return transformDeleteDelete(at, bt)
		}
	}
	panic("ot: unknown operation variant")
}

// Concurrent insertions at the same position are ordered by site id, lower
// site first. The tie-break makes the order total, so both sites place the
// same bytes first no matter which bundle arrives first.
func transformInsertInsert(a, b *Insert) ([]Operation, []Operation) {
	if a.pos < b.pos || (a.pos == b.pos && a.state.Site < b.state.Site) {
		return []Operation{a}, []Operation{shiftInsert(b, len(a.value))}
	}
	return []Operation{shiftInsert(a, len(b.value))}, []Operation{b}
}

// transformInsertDelete handles both directions of the insert/delete
// diamond. An insertion inside the deleted range survives: it clamps to the
// deletion's position and the deletion splits around it, so the deletion
// removes exactly the bytes it originally targeted and none of the new ones.
func transformInsertDelete(ins *Insert, del *Delete) ([]Operation, []Operation) {
	end := del.pos + del.length
	switch {
	case ins.pos <= del.pos:
		// Insert at or before the deleted range; the range shifts right.
		return []Operation{ins}, []Operation{moveDelete(del, len(ins.value))}
	case ins.pos >= end:
		// Insert past the deleted range; the insert shifts left.
		return []Operation{shiftInsert(ins, -del.length)}, []Operation{del}
	default:
		// Insert strictly inside the deleted range.
		front := ins.pos - del.pos
		clamped := remakeInsert(ins, del.pos)
		head := remakeDelete(del, del.pos, front)
		tail := remakeDelete(del, del.pos+len(ins.value), del.length-front)
		return []Operation{clamped}, []Operation{head, tail}
	}
}

// Overlapping deletions each shrink by the overlap, so applying both never
// removes the same byte twice.
func transformDeleteDelete(a, b *Delete) ([]Operation, []Operation) {
	aEnd, bEnd := a.pos+a.length, b.pos+b.length
	switch {
	case aEnd <= b.pos:
		return []Operation{a}, []Operation{moveDelete(b, -a.length)}
	case bEnd <= a.pos:
		return []Operation{moveDelete(a, -b.length)}, []Operation{b}
	}
	overlap := min(aEnd, bEnd) - max(a.pos, b.pos)
	return shrinkDelete(a, overlap, bytesBefore(b, a.pos)), shrinkDelete(b, overlap, bytesBefore(a, b.pos))
}

// bytesBefore is how many bytes of del lie strictly before pos.
func bytesBefore(del *Delete, pos int) int {
	if del.pos >= pos {
		return 0
	}
	return min(del.length, pos-del.pos)
}

func shrinkDelete(d *Delete, overlap, shift int) []Operation {
	if d.length <= overlap {
		// Every byte it wanted is already gone.
		return nil
	}
	return []Operation{remakeDelete(d, d.pos-shift, d.length-overlap)}
}

func shiftInsert(op *Insert, delta int) *Insert {
	return &Insert{state: op.state, pos: op.pos + delta, value: op.value}
}

func remakeInsert(op *Insert, pos int) *Insert {
	return &Insert{state: op.state, pos: pos, value: op.value}
}

func moveDelete(op *Delete, delta int) *Delete {
	return &Delete{state: op.state, pos: op.pos + delta, length: op.length}
}

func remakeDelete(op *Delete, pos, length int) *Delete {
	return &Delete{state: op.state, pos: pos, length: length}
}

// transformSequences transforms two concurrent operation sequences expressed
// against the same starting document state. Both inputs are sequential: each
// operation assumes the ones before it in its own list have been applied.
// The results are sequential again: incoming re-expressed to apply after
// all of existing, and existing re-expressed to apply after all of incoming.
// Applying either branch's original ops followed by the other's transformed
// ops yields the same buffer.
//
// The recursion is the diamond rectangle: transform the heads against each
// other, then each head across the other tail, then the tails. Split pieces
// stay sequential within their list, so the shape composes.
func transformSequences(incoming, existing []Operation) ([]Operation, []Operation) {
	if len(incoming) == 0 || len(existing) == 0 {
		return incoming, existing
	}
	aHead, bHead := transformPair(incoming[0], existing[0])
	aHead, bRest := transformSequences(aHead, existing[1:])
	aRest, bHead := transformSequences(incoming[1:], bHead)
	aRest, bRest = transformSequences(aRest, bRest)
	return append(aHead, aRest...), append(bHead, bRest...)
}

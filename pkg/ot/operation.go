package ot

import "fmt"

// Operation is the capability contract shared by the two edit kinds. The
// variant set is closed: every Operation is either *Insert or *Delete, and
// the transformation rules match exhaustively over the pair.
type Operation interface {
	// State returns a mutable reference to the causal state stamped on the
	// operation. The state is the only part of an operation that may be
	// rewritten after creation; position and size are fixed, and
	// transformation produces new operation values instead of moving them.
	State() *State

	// Position is the byte offset the operation acts at, expressed in the
	// coordinate frame implied by its causal state, not an absolute file
	// offset valid at arbitrary later times.
	Position() int

	// Increment is the magnitude of the size change. The variant decides the
	// sign: insertions grow the buffer, deletions shrink it.
	Increment() int
}

// Insert adds a byte payload at a position.
type Insert struct {
	state State
	pos   int
	value []byte
}

// Delete removes a run of bytes starting at a position.
type Delete struct {
	state  State
	pos    int
	length int
}

// NewInsert builds an insertion. The payload must be non-empty and the
// position non-negative.
func NewInsert(pos int, value []byte, state State) (*Insert, error) {
	if pos < 0 {
		return nil, newMalformed("insert position %d is negative", pos)
	}
	if len(value) == 0 {
		return nil, newMalformed("insert payload is empty")
	}
	v := make([]byte, len(value))
	copy(v, value)
	return &Insert{state: state, pos: pos, value: v}, nil
}

// NewDelete builds a deletion. The length must be strictly positive and the
// position non-negative.
func NewDelete(pos, length int, state State) (*Delete, error) {
	if pos < 0 {
		return nil, newMalformed("delete position %d is negative", pos)
	}
	if length <= 0 {
		return nil, newMalformed("delete length %d is not positive", length)
	}
	return &Delete{state: state, pos: pos, length: length}, nil
}

func (op *Insert) State() *State  { return &op.state }
func (op *Insert) Position() int  { return op.pos }
func (op *Insert) Increment() int { return len(op.value) }

// Value returns the literal bytes the insertion adds.
func (op *Insert) Value() []byte { return op.value }

func (op *Insert) String() string {
	return fmt.Sprintf("insert@%d(%q, %v)", op.pos, op.value, op.state)
}

func (op *Delete) State() *State  { return &op.state }
func (op *Delete) Position() int  { return op.pos }
func (op *Delete) Increment() int { return op.length }

// Length returns the number of bytes the deletion removes. It reports the
// same number as Increment; the named accessor keeps call sites readable.
func (op *Delete) Length() int { return op.length }

func (op *Delete) String() string {
	return fmt.Sprintf("delete@%d(%d bytes, %v)", op.pos, op.length, op.state)
}

// Edit is a raw, unstamped edit produced by an external diff pass against
// the engine's last-known content. Exactly one of Insert and Delete is set.
// Positions are sequential: each edit is expressed against the content as
// left by the edits before it, with insertions ordered before deletions at a
// shared position.
type Edit struct {
	Pos    int
	Insert []byte
	Delete int
}

package ot

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Wire layout for sequences crossing the network or landing in the journal.
// The wire structs are a flat mirror of the in-memory types so the exported
// API keeps its invariants while msgpack gets plain exported fields.

type wireState struct {
	Site   uint32 `msgpack:"s"`
	Local  uint32 `msgpack:"l"`
	Remote uint32 `msgpack:"r"`
}

type wireInsert struct {
	State wireState `msgpack:"st"`
	Pos   int       `msgpack:"p"`
	Value []byte    `msgpack:"v"`
}

type wireDelete struct {
	State  wireState `msgpack:"st"`
	Pos    int       `msgpack:"p"`
	Length int       `msgpack:"n"`
}

type wireSequence struct {
	Start      *wireState   `msgpack:"b"`
	Site       uint32       `msgpack:"s"`
	Insertions []wireInsert `msgpack:"i"`
	Deletions  []wireDelete `msgpack:"d"`
}

func packState(st State) wireState {
	return wireState{Site: st.Site, Local: st.Local, Remote: st.Remote}
}

func (w wireState) unpack() State {
	return NewState(w.Site, w.Local, w.Remote)
}

// Bytes encodes the sequence with msgpack.
func (s *TransactionSequence) Bytes() ([]byte, error) {
	w := wireSequence{Site: s.site}
	if s.start != nil {
		st := packState(*s.start)
		w.Start = &st
	}
	for _, op := range s.insertions {
		w.Insertions = append(w.Insertions, wireInsert{
			State: packState(op.state),
			Pos:   op.pos,
			Value: op.value,
		})
	}
	for _, op := range s.deletions {
		w.Deletions = append(w.Deletions, wireDelete{
			State:  packState(op.state),
			Pos:    op.pos,
			Length: op.length,
		})
	}
	return msgpack.Marshal(&w)
}

// TransactionSequenceFromBytes decodes a msgpack sequence. Decoded data runs
// through the same validation as locally built sequences, so a corrupted or
// hostile payload surfaces as MalformedSequence rather than as an engine
// panic later.
func TransactionSequenceFromBytes(data []byte) (*TransactionSequence, error) {
	var w wireSequence
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, newMalformed("decoding sequence: %v", err)
	}
	var start *State
	if w.Start != nil {
		st := w.Start.unpack()
		start = &st
	}
	insertions := make([]*Insert, 0, len(w.Insertions))
	for _, op := range w.Insertions {
		ins, err := NewInsert(op.Pos, op.Value, op.State.unpack())
		if err != nil {
			return nil, err
		}
		insertions = append(insertions, ins)
	}
	deletions := make([]*Delete, 0, len(w.Deletions))
	for _, op := range w.Deletions {
		del, err := NewDelete(op.Pos, op.Length, op.State.unpack())
		if err != nil {
			return nil, err
		}
		deletions = append(deletions, del)
	}
	return NewTransactionSequence(start, w.Site, insertions, deletions)
}

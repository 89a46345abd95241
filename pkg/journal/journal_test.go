package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dyule/optra/pkg/ot"
	"github.com/dyule/optra/pkg/store"
)

func setupJournal(t *testing.T) *Journal {
	s, err := store.NewBadgerStore("", store.WithInMemory())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return New(s)
}

func makeSeq(t *testing.T, site uint32, local uint32, text string) *ot.TransactionSequence {
	t.Helper()
	e := ot.NewEngine(site)
	for i := uint32(1); i < local; i++ {
		if _, err := e.CreateInsert(0, []byte("x")); err != nil {
			t.Fatalf("priming engine: %v", err)
		}
	}
	op, err := e.CreateInsert(0, []byte(text))
	if err != nil {
		t.Fatalf("creating insert: %v", err)
	}
	seq, err := e.ProcessTransaction([]ot.Operation{op})
	if err != nil {
		t.Fatalf("bundling: %v", err)
	}
	return seq
}

func TestJournal_AppendAndReplay(t *testing.T) {
	j := setupJournal(t)
	defer j.Close()

	first := makeSeq(t, 1, 1, "hello")
	if err := j.Append("doc", first); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	second := makeSeq(t, 2, 1, "world")
	if err := j.Append("doc", second); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	count, err := j.Len("doc")
	if err != nil {
		t.Fatalf("Len() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Len() = %d, want 2", count)
	}

	var sites []uint32
	var payloads [][]byte
	err = j.Replay("doc", func(seq *ot.TransactionSequence) error {
		sites = append(sites, seq.Site())
		payloads = append(payloads, seq.Insertions()[0].Value())
		return nil
	})
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if len(sites) != 2 || sites[0] != 1 || sites[1] != 2 {
		t.Errorf("Replayed sites %v, want [1 2]", sites)
	}
	if !bytes.Equal(payloads[0], []byte("hello")) || !bytes.Equal(payloads[1], []byte("world")) {
		t.Errorf("Replayed payloads %q", payloads)
	}
}

func TestJournal_DocumentsAreIsolated(t *testing.T) {
	j := setupJournal(t)
	defer j.Close()

	if err := j.Append("one", makeSeq(t, 1, 1, "a")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := j.Append("two", makeSeq(t, 1, 1, "b")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	count, err := j.Len("one")
	if err != nil {
		t.Fatalf("Len() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Len(one) = %d, want 1", count)
	}

	replayed := 0
	err = j.Replay("one", func(seq *ot.TransactionSequence) error {
		replayed++
		return nil
	})
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if replayed != 1 {
		t.Errorf("Replayed %d sequences for doc one, want 1", replayed)
	}
}

func TestJournal_EmptyDocument(t *testing.T) {
	j := setupJournal(t)
	defer j.Close()

	count, err := j.Len("missing")
	if err != nil {
		t.Fatalf("Len() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Len() = %d, want 0", count)
	}
	err = j.Replay("missing", func(seq *ot.TransactionSequence) error {
		t.Error("Replay visited a sequence for an empty document")
		return nil
	})
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
}

func TestJournal_ReopenKeepsOrder(t *testing.T) {
	tmpDir := filepath.Join(os.TempDir(), "journal-test-reopen")
	os.RemoveAll(tmpDir)
	defer os.RemoveAll(tmpDir)

	j, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	for i, text := range []string{"a", "b", "c"} {
		if err := j.Append("doc", makeSeq(t, 1, uint32(i+1), text)); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	j, err = Open(tmpDir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer j.Close()

	var got []string
	err = j.Replay("doc", func(seq *ot.TransactionSequence) error {
		got = append(got, string(seq.Insertions()[0].Value()))
		return nil
	})
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Replayed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("At position %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

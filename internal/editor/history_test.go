package editor

import "testing"

func TestHistoryUndoRedo(t *testing.T) {
	h := NewHistory([]byte("0"), 10)
	if h.CanUndo() || h.CanRedo() {
		t.Fatalf("fresh history: undo=%v redo=%v", h.CanUndo(), h.CanRedo())
	}
	if _, ok := h.Undo(); ok {
		t.Fatalf("undo at cursor 0 should be a no-op")
	}

	h.Commit([]byte("1"))
	h.Commit([]byte("2"))

	snap, ok := h.Undo()
	if !ok || string(snap) != "1" {
		t.Fatalf("undo: want=%q got=%q", "1", snap)
	}
	snap, ok = h.Redo()
	if !ok || string(snap) != "2" {
		t.Fatalf("redo: want=%q got=%q", "2", snap)
	}
	if _, ok := h.Redo(); ok {
		t.Fatalf("redo at last index should be a no-op")
	}
}

func TestHistoryCommitTruncatesRedo(t *testing.T) {
	h := NewHistory([]byte("0"), 10)
	h.Commit([]byte("1"))
	h.Commit([]byte("2"))
	h.Undo()
	h.Undo()
	h.Commit([]byte("x"))

	if h.CanRedo() {
		t.Fatalf("commit after undo must drop the redo branch")
	}
	if h.Len() != 2 {
		t.Fatalf("len: want=2 got=%d", h.Len())
	}
	snap, _ := h.Undo()
	if string(snap) != "0" {
		t.Fatalf("undo: want=%q got=%q", "0", snap)
	}
}

func TestHistoryLimitDropsOldest(t *testing.T) {
	h := NewHistory([]byte("0"), 3)
	for _, s := range []string{"1", "2", "3", "4", "5"} {
		h.Commit([]byte(s))
	}
	if h.Len() != 3 {
		t.Fatalf("len: want=3 got=%d", h.Len())
	}
	if h.Cursor() != 2 {
		t.Fatalf("cursor: want=2 got=%d", h.Cursor())
	}

	var got []string
	for {
		snap, ok := h.Undo()
		if !ok {
			break
		}
		got = append(got, string(snap))
	}
	if len(got) != 2 || got[0] != "4" || got[1] != "3" {
		t.Fatalf("undo chain: want=[4 3] got=%v", got)
	}
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory([]byte("0"), 0)
	h.Commit([]byte("1"))
	h.Reset([]byte("loaded"))
	if h.Len() != 1 || h.Cursor() != 0 || h.CanUndo() {
		t.Fatalf("reset: len=%d cursor=%d", h.Len(), h.Cursor())
	}
}

package editor

// ============================================================
// History
// ============================================================

const DefaultHistoryLimit = 50

// History — линейный список снимков всей сцены с курсором. Индекс 0 —
// исходное состояние (пустой канвас или только что загруженный проект).
type History struct {
	entries [][]byte
	cursor  int
	limit   int
}

func NewHistory(initial []byte, limit int) *History {
	if limit < 2 {
		limit = DefaultHistoryLimit
	}
	return &History{
		entries: [][]byte{initial},
		limit:   limit,
	}
}

// Commit отрезает всё после курсора и добавляет снимок. При превышении
// лимита отбрасываются самые старые записи.
func (h *History) Commit(snapshot []byte) {
	h.entries = append(h.entries[:h.cursor+1], snapshot)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append([][]byte(nil), h.entries[over:]...)
	}
	h.cursor = len(h.entries) - 1
}

func (h *History) Undo() ([]byte, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

func (h *History) Redo() ([]byte, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

func (h *History) CanUndo() bool { return h.cursor > 0 }

func (h *History) CanRedo() bool { return h.cursor < len(h.entries)-1 }

func (h *History) Cursor() int { return h.cursor }

func (h *History) Len() int { return len(h.entries) }

// Reset начинает историю заново с одного снимка.
func (h *History) Reset(initial []byte) {
	h.entries = [][]byte{initial}
	h.cursor = 0
}

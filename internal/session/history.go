package session

// HistoryEntry is one retained pressure reading.
type HistoryEntry struct {
	PressureMmHg uint16
	AtMillis     int64
}

// pressureHistory is a bounded ring of recent pressure readings, roughly
// ten seconds of data at the device's 100 ms cadence. Oldest entries are
// dropped; nothing is persisted.
type pressureHistory struct {
	entries []HistoryEntry
	next    int
	filled  bool
}

func newPressureHistory(capacity int) *pressureHistory {
	return &pressureHistory{entries: make([]HistoryEntry, capacity)}
}

func (h *pressureHistory) push(e HistoryEntry) {
	h.entries[h.next] = e
	h.next++
	if h.next == len(h.entries) {
		h.next = 0
		h.filled = true
	}
}

func (h *pressureHistory) len() int {
	if h.filled {
		return len(h.entries)
	}
	return h.next
}

// snapshot returns retained entries ordered oldest to newest.
func (h *pressureHistory) snapshot() []HistoryEntry {
	n := h.len()
	out := make([]HistoryEntry, 0, n)
	if h.filled {
		out = append(out, h.entries[h.next:]...)
	}
	return append(out, h.entries[:h.next]...)
}

func (h *pressureHistory) clear() {
	h.next = 0
	h.filled = false
}

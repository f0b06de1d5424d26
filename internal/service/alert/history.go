package alert

import (
	"sync"

	"facewatch/internal/model"
)

// History is the in-memory list of triggered alerts.
type History struct {
	mu     sync.RWMutex
	events []model.AlertEvent
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(e model.AlertEvent) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

// Recent returns up to limit events, newest first. A limit <= 0 returns all.
func (h *History) Recent(limit int) []model.AlertEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.AlertEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, h.events[i])
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

func (h *History) Clear() {
	h.mu.Lock()
	h.events = nil
	h.mu.Unlock()
}

package decision

import (
	"sync"
	"time"
)

// PlanRecord is the textual description of an intended effect, recorded in
// planning mode instead of executing.
type PlanRecord struct {
	ActionID    string
	Description string
	CreatedAt   time.Time
}

// History accumulates plan records for the life of the process.
type History struct {
	mu      sync.Mutex
	records []PlanRecord
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(record PlanRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
}

// Records returns a copy of the accumulated plan records.
func (h *History) Records() []PlanRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]PlanRecord, len(h.records))
	copy(out, h.records)
	return out
}

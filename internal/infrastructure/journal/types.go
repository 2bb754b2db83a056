package journal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is one dispatched mutation envelope plus its execution state. The
// entry id doubles as the execution handle returned to callers. Steps records
// per-step checkpoints so a crashed or retried drain resumes where it left
// off instead of redoing completed work.
type Entry struct {
	ID         string          `json:"id"`
	EntityID   string          `json:"entity_id"`
	CustomerID string          `json:"customer_id"`
	Kind       string          `json:"kind"`
	Action     string          `json:"action"`
	Envelope   json.RawMessage `json:"envelope"`
	Steps      map[string]bool `json:"steps,omitempty"`
	Attempts   int             `json:"attempts"`
	NotBefore  time.Time       `json:"not_before,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (e *Entry) normalize() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Steps == nil {
		e.Steps = make(map[string]bool)
	}
}

// Done reports whether the named step already ran to completion.
func (e *Entry) Done(step string) bool {
	return e.Steps[step]
}

// Checkpoint marks the named step as completed.
func (e *Entry) Checkpoint(step string) {
	if e.Steps == nil {
		e.Steps = make(map[string]bool)
	}
	e.Steps[step] = true
}

// Ready reports whether the entry is eligible for processing at the given
// instant (retry backoff windows push NotBefore into the future).
func (e *Entry) Ready(now time.Time) bool {
	return e.NotBefore.IsZero() || !now.Before(e.NotBefore)
}

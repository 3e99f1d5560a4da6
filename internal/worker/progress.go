package worker

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Progress states.
const (
	ProgressQueued    = "queued"
	ProgressRunning   = "running"
	ProgressCompleted = "completed"
	ProgressFailed    = "failed"
)

// Progress is a point-in-time snapshot of a task's advancement.
type Progress struct {
	TaskID    uuid.UUID `json:"task_id"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker keeps per-task progress for API polling. Entries are kept until
// evicted; Evict is wired to the retention sweep so finished bulk runs do not
// accumulate forever.
type Tracker struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]Progress
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[uuid.UUID]Progress)}
}

// Set records a task's progress snapshot.
func (t *Tracker) Set(p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	t.tasks[p.TaskID] = p
}

// Get returns the progress for a task, if known.
func (t *Tracker) Get(taskID uuid.UUID) (Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.tasks[taskID]
	return p, ok
}

// Evict drops finished entries last updated before the cutoff.
func (t *Tracker) Evict(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n int
	for id, p := range t.tasks {
		if p.Status != ProgressCompleted && p.Status != ProgressFailed {
			continue
		}
		if p.UpdatedAt.Before(cutoff) {
			delete(t.tasks, id)
			n++
		}
	}
	return n
}

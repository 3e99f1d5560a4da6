// Package worker runs queued scrape work on a fixed-size pool and owns the
// periodic retention sweep.
package worker

import (
	"time"

	"github.com/google/uuid"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

// TaskKind discriminates queue payloads.
type TaskKind string

// Supported task kinds.
const (
	TaskExecute TaskKind = "execute"
	TaskBulk    TaskKind = "bulk"
)

// Task is one unit of queued work. Execute tasks reference an existing
// pending job; bulk tasks carry a template that is stamped into one job per
// URL as the worker walks the list.
type Task struct {
	ID    uuid.UUID
	Kind  TaskKind
	JobID uuid.UUID
	Bulk  *BulkRequest
}

// BulkRequest is the job template for a bulk URL sweep.
type BulkRequest struct {
	URLs       []string
	Method     scraper.FetchMethod
	Selectors  map[string]string
	Headers    map[string]string
	Cookies    map[string]string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	PolicyID   *uuid.UUID
}

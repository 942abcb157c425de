package processor

import (
	"context"
	"time"
)

// TaskStatus is the lifecycle state of a background task
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status is final. Terminal records are
// never overwritten.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// TaskRecord is the persisted state of a task
type TaskRecord struct {
	Status      TaskStatus  `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	CompletedAt *time.Time  `json:"completed_at"`
	Result      interface{} `json:"result"`
	Error       *string     `json:"error"`
}

// TaskUpdate is a state change notification published on the task's
// update channel.
type TaskUpdate struct {
	TaskID    string                 `json:"task_id"`
	Status    TaskStatus             `json:"status"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// TaskFunc is a unit of background work. It must honor ctx cancellation.
type TaskFunc func(ctx context.Context) (interface{}, error)

// BlockingFunc is a unit of work that cannot observe a context. The
// processor runs it on its own goroutine and abandons it on cancellation;
// the function keeps running but its result is discarded.
type BlockingFunc func() (interface{}, error)

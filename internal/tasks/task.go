// apps/duel-server/internal/tasks/task.go
//
// Deferred task records and the interfaces the duel service depends on.

package tasks

import (
	"context"
	"encoding/json"
	"time"
)

// Task is one deferred handler invocation.
type Task struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	RunAt   time.Time       `json:"runAt"`
}

// Handler runs a task of one kind. Handlers must tolerate being run late,
// twice, or after their precondition has gone away.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Scheduler arms a task to run at or after now+delay.
type Scheduler interface {
	Schedule(ctx context.Context, kind string, payload any, delay time.Duration) error
}

// Registry binds task kinds to handlers.
type Registry interface {
	Handle(kind string, h Handler)
}

// Journal persists armed tasks so they survive a restart.
type Journal interface {
	SaveTask(ctx context.Context, t Task) error
	DeleteTask(ctx context.Context, id string) error
	PendingTasks(ctx context.Context) ([]Task, error)
}

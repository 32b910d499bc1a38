// Package queue provides delayed task execution for trigger scheduling.
// Tasks carry an opaque JSON-serializable payload and an execute-at
// instant; the queue invokes the registered handler when the instant
// arrives. Two implementations exist: LocalQueue runs timers in
// process, RedisQueue persists tasks in a Redis sorted set so they
// survive restarts.
package queue

import (
	"context"
	"time"
)

// Task is one pending unit of delayed work.
type Task struct {
	ID        string                 `json:"id"`
	Payload   map[string]interface{} `json:"payload"`
	ExecuteAt time.Time              `json:"execute_at"`
	CreatedAt time.Time              `json:"created_at"`
}

// Handler processes a due task. A returned error is logged by the
// queue; tasks are not retried.
type Handler func(ctx context.Context, task *Task) error

// Queue schedules tasks for future execution.
type Queue interface {
	// Submit enqueues a payload to run after the given delay and
	// returns the task ID. A zero or negative delay means as soon
	// as possible.
	Submit(ctx context.Context, payload map[string]interface{}, delay time.Duration) (string, error)

	// Cancel removes a pending task. It reports whether the task was
	// still pending; cancelling an unknown or already-executed task
	// is not an error.
	Cancel(ctx context.Context, taskID string) (bool, error)

	// SetHandler registers the callback invoked for due tasks. It
	// must be called before Submit.
	SetHandler(handler Handler)

	// Start begins executing due tasks. For LocalQueue this is a
	// no-op; for RedisQueue it launches the polling worker.
	Start(ctx context.Context) error

	// Close stops execution and releases resources. Pending tasks in
	// persistent queues remain for the next run.
	Close() error
}

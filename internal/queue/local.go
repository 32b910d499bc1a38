package queue

import (
	"context"
	"sync"
	"time"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/logging"
	"guest-messaging/internal/common/utils"
)

// LocalQueue executes tasks with in-process timers. Pending tasks are
// lost on restart; it suits tests and single-node deployments.
type LocalQueue struct {
	logger  logging.Logger
	handler Handler

	mu     sync.Mutex
	timers map[string]*time.Timer
	tasks  map[string]*Task
	closed bool
}

// NewLocalQueue creates an in-process queue.
func NewLocalQueue(logger logging.Logger) *LocalQueue {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LocalQueue{
		logger: logger,
		timers: make(map[string]*time.Timer),
		tasks:  make(map[string]*Task),
	}
}

func (q *LocalQueue) SetHandler(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
}

func (q *LocalQueue) Start(_ context.Context) error { return nil }

func (q *LocalQueue) Submit(_ context.Context, payload map[string]interface{}, delay time.Duration) (string, error) {
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", errors.InternalError("queue is closed", nil)
	}
	if q.handler == nil {
		return "", errors.ConfigError("no task handler registered")
	}

	now := time.Now()
	task := &Task{
		ID:        utils.NewTaskID(),
		Payload:   payload,
		ExecuteAt: now.Add(delay),
		CreatedAt: now,
	}

	q.tasks[task.ID] = task
	q.timers[task.ID] = time.AfterFunc(delay, func() {
		q.fire(task.ID)
	})

	q.logger.Debug("task submitted",
		logging.String("task_id", task.ID),
		logging.Duration("delay", delay))
	return task.ID, nil
}

func (q *LocalQueue) Cancel(_ context.Context, taskID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	timer, ok := q.timers[taskID]
	if !ok {
		return false, nil
	}
	timer.Stop()
	delete(q.timers, taskID)
	delete(q.tasks, taskID)

	q.logger.Debug("task cancelled", logging.String("task_id", taskID))
	return true, nil
}

func (q *LocalQueue) fire(taskID string) {
	q.mu.Lock()
	task, ok := q.tasks[taskID]
	handler := q.handler
	closed := q.closed
	delete(q.timers, taskID)
	delete(q.tasks, taskID)
	q.mu.Unlock()

	if !ok || closed || handler == nil {
		return
	}

	if err := handler(context.Background(), task); err != nil {
		q.logger.Error("task handler failed", err,
			logging.String("task_id", taskID))
	}
}

// Pending reports the number of not-yet-fired tasks.
func (q *LocalQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *LocalQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
		delete(q.tasks, id)
	}
	return nil
}

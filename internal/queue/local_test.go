package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

// collector records handled tasks for assertions.
type collector struct {
	mu    sync.Mutex
	tasks []*Task
}

func (c *collector) handler(_ context.Context, task *Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task)
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

func (c *collector) waitFor(t *testing.T, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d tasks, got %d", n, c.count())
}

func TestLocalQueueSubmitAndFire(t *testing.T) {
	q := NewLocalQueue(nil)
	defer q.Close()

	c := &collector{}
	q.SetHandler(c.handler)

	id, err := q.Submit(context.Background(), map[string]interface{}{"trigger_id": "t1"}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if id == "" {
		t.Fatal("Submit() returned empty task ID")
	}

	c.waitFor(t, 1, time.Second)

	c.mu.Lock()
	task := c.tasks[0]
	c.mu.Unlock()
	if task.ID != id {
		t.Errorf("fired task ID = %q, want %q", task.ID, id)
	}
	if got := task.Payload["trigger_id"]; got != "t1" {
		t.Errorf("payload trigger_id = %v, want t1", got)
	}
	if q.Pending() != 0 {
		t.Errorf("Pending() = %d after fire, want 0", q.Pending())
	}
}

func TestLocalQueueNegativeDelayFiresImmediately(t *testing.T) {
	q := NewLocalQueue(nil)
	defer q.Close()

	c := &collector{}
	q.SetHandler(c.handler)

	if _, err := q.Submit(context.Background(), nil, -time.Hour); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	c.waitFor(t, 1, time.Second)
}

func TestLocalQueueCancel(t *testing.T) {
	q := NewLocalQueue(nil)
	defer q.Close()

	c := &collector{}
	q.SetHandler(c.handler)

	id, err := q.Submit(context.Background(), nil, time.Hour)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	cancelled, err := q.Cancel(context.Background(), id)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if !cancelled {
		t.Error("Cancel() = false for pending task, want true")
	}
	if q.Pending() != 0 {
		t.Errorf("Pending() = %d after cancel, want 0", q.Pending())
	}

	// Second cancel is a no-op, not an error.
	cancelled, err = q.Cancel(context.Background(), id)
	if err != nil {
		t.Fatalf("second Cancel() error = %v", err)
	}
	if cancelled {
		t.Error("Cancel() = true for unknown task, want false")
	}
}

func TestLocalQueueRequiresHandler(t *testing.T) {
	q := NewLocalQueue(nil)
	defer q.Close()

	if _, err := q.Submit(context.Background(), nil, 0); err == nil {
		t.Fatal("Submit() without handler should fail")
	}
}

func TestLocalQueueCloseStopsTimers(t *testing.T) {
	q := NewLocalQueue(nil)

	c := &collector{}
	q.SetHandler(c.handler)

	if _, err := q.Submit(context.Background(), nil, 20*time.Millisecond); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if c.count() != 0 {
		t.Errorf("handler ran %d times after Close, want 0", c.count())
	}

	if _, err := q.Submit(context.Background(), nil, 0); err == nil {
		t.Error("Submit() after Close should fail")
	}
}

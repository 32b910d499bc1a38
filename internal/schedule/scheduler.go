// Package schedule plans future trigger executions against the task
// queue. It maps (trigger, guest) pairs to pending tasks, computes
// dispatch instants from trigger schedules, and fences stale tasks
// with per-pair epochs so a reschedule never races its predecessor.
package schedule

import (
	"context"
	"sync"
	"time"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/logging"
	"guest-messaging/internal/conditions"
	"guest-messaging/internal/queue"
	"guest-messaging/internal/storage"
)

// Executor runs a due trigger for a guest. The scheduler calls it from
// the queue handler after epoch validation passes.
type Executor func(ctx context.Context, triggerID, guestID, hotelID string, extra map[string]interface{}) error

// Scheduler owns the pending-task bookkeeping for trigger dispatch.
type Scheduler struct {
	queue  queue.Queue
	store  storage.Store
	logger logging.Logger

	mu       sync.Mutex
	epochs   map[string]int64  // pair key -> current epoch
	tasks    map[string]string // pair key -> pending task ID
	executor Executor
}

// NewScheduler wires a scheduler to its queue and store. Call
// SetExecutor before scheduling anything.
func NewScheduler(q queue.Queue, store storage.Store, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Scheduler{
		queue:  q,
		store:  store,
		logger: logger,
		epochs: make(map[string]int64),
		tasks:  make(map[string]string),
	}
	q.SetHandler(s.handleTask)
	return s
}

// SetExecutor registers the callback that performs the actual trigger
// execution.
func (s *Scheduler) SetExecutor(executor Executor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executor = executor
}

func pairKey(triggerID, guestID string) string {
	return triggerID + "|" + guestID
}

// Schedule enqueues one execution of the trigger for the guest after
// the given delay. Negative delays are treated as immediate. Any task
// already pending for the pair is replaced.
func (s *Scheduler) Schedule(ctx context.Context, trigger *storage.Trigger, guest *storage.Guest, delay time.Duration) (string, error) {
	return s.schedule(ctx, trigger, guest, delay, nil)
}

func (s *Scheduler) schedule(ctx context.Context, trigger *storage.Trigger, guest *storage.Guest, delay time.Duration, extra map[string]interface{}) (string, error) {
	if trigger == nil || guest == nil {
		return "", errors.ValidationError("trigger and guest are required")
	}
	if delay < 0 {
		s.logger.Warn("negative schedule delay clamped to zero",
			logging.String("trigger_id", trigger.ID),
			logging.String("guest_id", guest.ID),
			logging.Duration("delay", delay))
		delay = 0
	}

	key := pairKey(trigger.ID, guest.ID)

	s.mu.Lock()
	if s.executor == nil {
		s.mu.Unlock()
		return "", errors.ConfigError("no executor registered")
	}
	// Replacing a pending task advances the epoch so a task that was
	// already claimed by the queue is discarded at execution time.
	s.epochs[key]++
	epoch := s.epochs[key]
	previous := s.tasks[key]
	s.mu.Unlock()

	if previous != "" {
		if _, err := s.queue.Cancel(ctx, previous); err != nil {
			s.logger.Warn("failed to cancel superseded task",
				logging.String("task_id", previous),
				logging.Err(err))
		}
	}

	payload := map[string]interface{}{
		"trigger_id": trigger.ID,
		"guest_id":   guest.ID,
		"hotel_id":   trigger.HotelID,
		"epoch":      epoch,
	}
	for k, v := range extra {
		payload[k] = v
	}

	taskID, err := s.queue.Submit(ctx, payload, delay)
	if err != nil {
		return "", errors.InternalError("failed to enqueue trigger execution", err)
	}

	s.mu.Lock()
	s.tasks[key] = taskID
	s.mu.Unlock()

	s.logger.Info("trigger execution scheduled",
		logging.String("trigger_id", trigger.ID),
		logging.String("guest_id", guest.ID),
		logging.String("task_id", taskID),
		logging.Duration("delay", delay))
	return taskID, nil
}

// Cancel removes the pending execution for the pair, reporting whether
// one was pending. Cancellation is best effort: a task already claimed
// by the queue is instead fenced by the epoch bump.
func (s *Scheduler) Cancel(ctx context.Context, triggerID, guestID string) bool {
	key := pairKey(triggerID, guestID)

	s.mu.Lock()
	s.epochs[key]++
	taskID := s.tasks[key]
	delete(s.tasks, key)
	s.mu.Unlock()

	if taskID == "" {
		return false
	}

	cancelled, err := s.queue.Cancel(ctx, taskID)
	if err != nil {
		s.logger.Warn("failed to cancel task",
			logging.String("task_id", taskID),
			logging.Err(err))
		return false
	}
	return cancelled
}

// Reschedule cancels any pending execution for the pair and schedules
// a new one with the given delay.
func (s *Scheduler) Reschedule(ctx context.Context, trigger *storage.Trigger, guest *storage.Guest, delay time.Duration) (string, error) {
	return s.schedule(ctx, trigger, guest, delay, nil)
}

// ScheduleAllForGuest plans every active time-based trigger of the
// guest's hotel against the guest's check-in. Triggers whose schedule
// cannot be computed are skipped and logged; one bad trigger does not
// block the rest.
func (s *Scheduler) ScheduleAllForGuest(ctx context.Context, hotelID, guestID string) (int, error) {
	guest, err := s.store.GetGuest(guestID, hotelID)
	if err != nil {
		return 0, err
	}

	triggers, err := s.store.ListActiveTriggers(hotelID, storage.TimeBased)
	if err != nil {
		return 0, err
	}

	reference := time.Now()
	if guest.CheckinAt != nil {
		reference = *guest.CheckinAt
	}

	scheduled := 0
	for _, trigger := range triggers {
		at, err := conditions.NextExecutionTime(trigger.Conditions.Time, reference)
		if err != nil {
			s.logger.Error("failed to compute execution time", err,
				logging.String("trigger_id", trigger.ID),
				logging.String("guest_id", guestID))
			continue
		}

		if _, err := s.Schedule(ctx, trigger, guest, time.Until(at)); err != nil {
			s.logger.Error("failed to schedule trigger", err,
				logging.String("trigger_id", trigger.ID),
				logging.String("guest_id", guestID))
			continue
		}
		scheduled++
	}

	s.logger.Info("guest triggers scheduled",
		logging.String("guest_id", guestID),
		logging.String("hotel_id", hotelID),
		logging.Int("scheduled", scheduled),
		logging.Int("total", len(triggers)))
	return scheduled, nil
}

// FireEvent submits a single fan-out task for a hotel event. The task
// matches the event against the hotel's event-based triggers when it
// runs, and schedules an independent execution for every match, so the
// caller returns as soon as the event is durably queued.
func (s *Scheduler) FireEvent(ctx context.Context, hotelID, eventType string, eventData map[string]interface{}) (string, error) {
	if hotelID == "" || eventType == "" {
		return "", errors.ValidationError("hotel_id and event_type are required")
	}
	if _, err := s.store.GetHotel(hotelID); err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"hotel_id":   hotelID,
		"event_type": eventType,
		"event_time": time.Now().UTC().Format(time.RFC3339),
	}
	if eventData != nil {
		payload["event_data"] = eventData
	}

	taskID, err := s.queue.Submit(ctx, payload, 0)
	if err != nil {
		return "", errors.InternalError("failed to enqueue event", err)
	}

	s.logger.Info("event queued for fan-out",
		logging.String("hotel_id", hotelID),
		logging.String("event_type", eventType),
		logging.String("task_id", taskID))
	return taskID, nil
}

// fanOutEvent resolves an event task into per-trigger executions. Each
// listening trigger is scheduled as its own task with the trigger's
// configured delay, carrying the event payload so filters and templates
// can reference it at execution time.
func (s *Scheduler) fanOutEvent(ctx context.Context, task *queue.Task) error {
	hotelID, _ := task.Payload["hotel_id"].(string)
	eventType, _ := task.Payload["event_type"].(string)
	eventTime, _ := task.Payload["event_time"].(string)
	eventData, _ := task.Payload["event_data"].(map[string]interface{})
	if hotelID == "" {
		return errors.ValidationError("event task payload missing hotel_id")
	}

	// Events target one guest; the publisher names them in the payload.
	guestID, _ := eventData["guest_id"].(string)
	if guestID == "" {
		s.logger.Warn("event carries no guest_id, nothing to fan out",
			logging.String("hotel_id", hotelID),
			logging.String("event_type", eventType))
		return nil
	}
	guest, err := s.store.GetGuest(guestID, hotelID)
	if err != nil {
		return err
	}

	triggers, err := s.store.ListActiveTriggers(hotelID, storage.EventBased)
	if err != nil {
		return err
	}

	fired := 0
	for _, trigger := range triggers {
		spec := trigger.Conditions.Event
		if spec == nil || spec.EventType != eventType {
			continue
		}

		extra := map[string]interface{}{
			"event_type": eventType,
			"event_time": eventTime,
		}
		if eventData != nil {
			extra["event_data"] = eventData
		}

		delay := time.Duration(spec.DelayMinutes) * time.Minute
		if _, err := s.schedule(ctx, trigger, guest, delay, extra); err != nil {
			s.logger.Error("failed to schedule event trigger", err,
				logging.String("trigger_id", trigger.ID),
				logging.String("event_type", eventType))
			continue
		}
		fired++
	}

	s.logger.Info("event fanned out",
		logging.String("hotel_id", hotelID),
		logging.String("event_type", eventType),
		logging.Int("matched", fired))
	return nil
}

// handleTask is the queue callback. Event tasks carry no trigger and
// fan out into per-trigger executions. Execution tasks validate their
// epoch against the pair's current epoch and go to the executor; stale
// tasks are dropped silently.
func (s *Scheduler) handleTask(ctx context.Context, task *queue.Task) error {
	triggerID, _ := task.Payload["trigger_id"].(string)
	guestID, _ := task.Payload["guest_id"].(string)
	hotelID, _ := task.Payload["hotel_id"].(string)
	if triggerID == "" {
		if _, ok := task.Payload["event_type"].(string); ok {
			return s.fanOutEvent(ctx, task)
		}
		return errors.ValidationError("task payload missing trigger_id")
	}
	if guestID == "" {
		return errors.ValidationError("task payload missing guest_id")
	}

	key := pairKey(triggerID, guestID)

	s.mu.Lock()
	current := s.epochs[key]
	executor := s.executor
	if s.tasks[key] == task.ID {
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	if taskEpoch(task) != current {
		s.logger.Debug("dropping stale task",
			logging.String("task_id", task.ID),
			logging.String("trigger_id", triggerID),
			logging.String("guest_id", guestID))
		return nil
	}
	if executor == nil {
		return errors.ConfigError("no executor registered")
	}

	extra := make(map[string]interface{})
	for k, v := range task.Payload {
		switch k {
		case "trigger_id", "guest_id", "hotel_id", "epoch":
		default:
			extra[k] = v
		}
	}

	return executor(ctx, triggerID, guestID, hotelID, extra)
}

// taskEpoch reads the epoch from a payload that may have round-tripped
// through JSON, where integers come back as float64.
func taskEpoch(task *queue.Task) int64 {
	switch v := task.Payload["epoch"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return -1
	}
}

// Pending reports how many pairs have a task outstanding.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

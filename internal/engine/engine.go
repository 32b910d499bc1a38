// Package engine orchestrates trigger execution: it evaluates which
// triggers qualify for a guest, renders their message templates and
// hands the result to the delivery channel, feeding the scheduler's
// planned dispatches back through the same path.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/logging"
	"guest-messaging/internal/common/utils"
	"guest-messaging/internal/conditions"
	"guest-messaging/internal/delivery"
	"guest-messaging/internal/queue"
	"guest-messaging/internal/render"
	"guest-messaging/internal/schedule"
	"guest-messaging/internal/storage"
)

// ExecutionResult reports one trigger execution attempt. Success is
// false only for caught failures (render, delivery); a trigger whose
// conditions did not hold is a successful execution that sent nothing.
type ExecutionResult struct {
	TriggerID       string `json:"trigger_id"`
	GuestID         string `json:"guest_id"`
	Success         bool   `json:"success"`
	MessageSent     bool   `json:"message_sent"`
	RenderedMessage string `json:"rendered_message,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// Engine wires the evaluator, renderer, scheduler and delivery channel
// around the store.
type Engine struct {
	store     storage.Store
	evaluator *conditions.Evaluator
	renderer  *render.Renderer
	deliverer delivery.Deliverer
	scheduler *schedule.Scheduler
	logger    logging.Logger
	metrics   *Metrics

	sweepMu    sync.Mutex
	sweepFired map[string]struct{}
}

// NewEngine assembles an engine and registers it as the scheduler's
// executor, so queued tasks flow through ExecuteTrigger.
func NewEngine(store storage.Store, q queue.Queue, deliverer delivery.Deliverer, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	e := &Engine{
		store:      store,
		evaluator:  conditions.NewEvaluator(logger),
		renderer:   render.NewRenderer(render.DefaultConfig(), logger),
		deliverer:  deliverer,
		scheduler:  schedule.NewScheduler(q, store, logger),
		logger:     logger,
		metrics:    &Metrics{},
		sweepFired: make(map[string]struct{}),
	}
	e.scheduler.SetExecutor(e.executeScheduled)
	return e
}

// Scheduler exposes the engine's scheduler for admin operations.
func (e *Engine) Scheduler() *schedule.Scheduler { return e.scheduler }

// Metrics exposes the engine counters.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// RenderCacheStats reports the template cache hit/miss counters.
func (e *Engine) RenderCacheStats() render.CacheStats { return e.renderer.CacheStats() }

// EvaluateTriggers returns the hotel's active triggers whose conditions
// hold for the context, in priority order. An empty triggerType means
// all types. Evaluation failures count as non-qualifying; one broken
// trigger never blocks the rest.
func (e *Engine) EvaluateTriggers(hotelID string, evalCtx map[string]interface{}, triggerType storage.TriggerType) ([]*storage.Trigger, error) {
	triggers, err := e.store.ListActiveTriggers(hotelID, triggerType)
	if err != nil {
		return nil, err
	}

	var qualifying []*storage.Trigger
	for _, trigger := range triggers {
		e.metrics.Evaluations.Add(1)
		if e.evaluator.Evaluate(trigger, evalCtx) {
			qualifying = append(qualifying, trigger)
		}
	}
	return qualifying, nil
}

// ExecuteTrigger runs one trigger for one guest end to end. Execution
// errors (missing or inactive trigger, unknown hotel or guest, a
// failed delivery) are fatal and propagate so the caller decides on
// retry or alerting. Only unexpected render failures are caught into
// the result, keeping batch loops resilient to one broken template.
func (e *Engine) ExecuteTrigger(ctx context.Context, triggerID, guestID, hotelID string, extra map[string]interface{}) (*ExecutionResult, error) {
	started := time.Now()
	result := &ExecutionResult{TriggerID: triggerID, GuestID: guestID}
	defer func() {
		result.ExecutionTimeMs = time.Since(started).Milliseconds()
	}()

	trigger, err := e.store.GetTrigger(triggerID)
	if err != nil {
		return nil, err
	}
	if hotelID == "" {
		hotelID = trigger.HotelID
	}
	if trigger.HotelID != hotelID {
		return nil, errors.NotFoundError(fmt.Sprintf("trigger %s", triggerID))
	}

	guest, err := e.store.GetGuest(guestID, hotelID)
	if err != nil {
		return nil, err
	}
	hotel, err := e.store.GetHotel(hotelID)
	if err != nil {
		return nil, err
	}

	log := e.logger.WithFields(
		logging.String("trigger_id", triggerID),
		logging.String("guest_id", guestID),
		logging.String("hotel_id", hotelID),
		logging.String("correlation_id", correlationID(ctx, triggerID)))

	if !trigger.Active {
		log.Warn("refusing to execute inactive trigger")
		return nil, errors.ValidationError(fmt.Sprintf("trigger %s is inactive", triggerID))
	}

	e.metrics.Evaluations.Add(1)
	if !e.evaluator.Evaluate(trigger, buildEvalContext(hotel, guest, extra)) {
		e.metrics.Skipped.Add(1)
		log.Info("trigger conditions not met")
		result.Success = true
		return result, nil
	}

	e.metrics.Executions.Add(1)

	rendered, err := e.renderer.Render(trigger.MessageTemplate, buildRenderContext(hotel, guest, trigger, extra))
	if err != nil {
		e.metrics.RenderFailures.Add(1)
		log.Error("template render failed", err)
		result.ErrorMessage = err.Error()
		return result, nil
	}
	result.RenderedMessage = rendered

	// A guest that cannot be messaged is not a failure: the render is
	// still useful to the caller, there is just nowhere to send it.
	address := guest.Address()
	if address == "" {
		e.metrics.Skipped.Add(1)
		log.Info("guest has no deliverable address, nothing sent")
		result.Success = true
		return result, nil
	}

	err = e.deliverer.Send(ctx, &delivery.Message{
		HotelID:   hotelID,
		GuestID:   guestID,
		TriggerID: triggerID,
		Address:   address,
		Text:      rendered,
	})
	if err != nil {
		e.metrics.SendFailures.Add(1)
		log.Error("message delivery failed", err,
			logging.String("channel", e.deliverer.Name()))
		if !errors.IsType(err, errors.ErrTypeDelivery) {
			err = errors.DeliveryError("message delivery failed", err)
		}
		return nil, err
	}

	e.metrics.MessagesSent.Add(1)
	log.Info("trigger executed",
		logging.String("channel", e.deliverer.Name()),
		logging.Int64("execution_time_ms", time.Since(started).Milliseconds()))
	result.Success = true
	result.MessageSent = true
	return result, nil
}

// executeScheduled adapts ExecuteTrigger to the scheduler's executor
// contract. Fatal errors propagate so the queue logs them; caught
// failures are already recorded in metrics and logs.
func (e *Engine) executeScheduled(ctx context.Context, triggerID, guestID, hotelID string, extra map[string]interface{}) error {
	_, err := e.ExecuteTrigger(ctx, triggerID, guestID, hotelID, extra)
	return err
}

// ScheduleGuest plans all time-based triggers for a guest, typically
// at check-in.
func (e *Engine) ScheduleGuest(ctx context.Context, hotelID, guestID string) (int, error) {
	return e.scheduler.ScheduleAllForGuest(ctx, hotelID, guestID)
}

// ScheduleTrigger plans one trigger for one guest after a delay,
// superseding any earlier schedule for the same pair.
func (e *Engine) ScheduleTrigger(ctx context.Context, triggerID, guestID string, delay time.Duration) (string, error) {
	trigger, err := e.store.GetTrigger(triggerID)
	if err != nil {
		return "", err
	}
	guest, err := e.store.GetGuest(guestID, trigger.HotelID)
	if err != nil {
		return "", err
	}
	return e.scheduler.Schedule(ctx, trigger, guest, delay)
}

// CancelScheduled cancels a pending schedule for the pair. Best-effort;
// false means nothing was pending or the queue refused.
func (e *Engine) CancelScheduled(ctx context.Context, triggerID, guestID string) bool {
	return e.scheduler.Cancel(ctx, triggerID, guestID)
}

// FireEvent queues a hotel lifecycle event for fan-out to the hotel's
// listening event triggers, returning the submitted task's ID.
func (e *Engine) FireEvent(ctx context.Context, hotelID, eventType string, eventData map[string]interface{}) (string, error) {
	return e.scheduler.FireEvent(ctx, hotelID, eventType, eventData)
}

// PreviewTrigger renders a trigger's template for a guest without
// sending anything. Used by the admin preview endpoint.
func (e *Engine) PreviewTrigger(triggerID, guestID string) (string, error) {
	trigger, err := e.store.GetTrigger(triggerID)
	if err != nil {
		return "", err
	}
	guest, err := e.store.GetGuest(guestID, trigger.HotelID)
	if err != nil {
		return "", err
	}
	hotel, err := e.store.GetHotel(trigger.HotelID)
	if err != nil {
		return "", err
	}
	return e.renderer.Render(trigger.MessageTemplate, buildRenderContext(hotel, guest, trigger, nil))
}

// RenderPreview renders arbitrary template text against a caller-supplied
// sample context, so admins can iterate on a template before saving it.
func (e *Engine) RenderPreview(templateText string, sampleCtx map[string]interface{}) (string, error) {
	return e.renderer.Render(templateText, sampleCtx)
}

// ValidateTemplate checks template text without executing it.
func (e *Engine) ValidateTemplate(templateText string) *render.ValidationResult {
	return render.Validate(templateText)
}

func correlationID(ctx context.Context, triggerID string) string {
	if v, ok := ctx.Value("correlation_id").(string); ok {
		return v
	}
	return utils.NewCorrelationID(triggerID)
}

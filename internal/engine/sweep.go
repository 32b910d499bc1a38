package engine

import (
	"context"

	"guest-messaging/internal/common/logging"
	"guest-messaging/internal/storage"
)

// Sweep walks every hotel's active condition-based triggers and runs
// them against each of the hotel's guests. A pair that results in a
// sent message is remembered so later sweeps do not re-send; pairs
// whose conditions did not hold, or whose execution failed, are
// retried on the next sweep.
//
// The fired set lives in process memory. After a restart a pair whose
// conditions still hold will fire again; durable send history belongs
// to the delivery collaborator.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	hotels, err := e.store.ListHotels()
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, hotel := range hotels {
		n, err := e.sweepHotel(ctx, hotel.ID)
		if err != nil {
			e.logger.Error("sweep failed for hotel", err,
				logging.String("hotel_id", hotel.ID),
			)
			continue
		}
		sent += n
	}
	return sent, nil
}

func (e *Engine) sweepHotel(ctx context.Context, hotelID string) (int, error) {
	triggers, err := e.store.ListActiveTriggers(hotelID, storage.ConditionBased)
	if err != nil {
		return 0, err
	}
	if len(triggers) == 0 {
		return 0, nil
	}

	guests, err := e.store.ListGuests(hotelID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, guest := range guests {
		for _, trigger := range triggers {
			key := trigger.ID + "|" + guest.ID
			if e.sweepSeen(key) {
				continue
			}

			result, err := e.ExecuteTrigger(ctx, trigger.ID, guest.ID, hotelID, nil)
			if err != nil {
				e.logger.Warn("sweep execution failed",
					logging.String("trigger_id", trigger.ID),
					logging.String("guest_id", guest.ID),
					logging.Err(err),
				)
				continue
			}
			if result.MessageSent {
				e.markSwept(key)
				sent++
			}
		}
	}
	return sent, nil
}

func (e *Engine) sweepSeen(key string) bool {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	_, ok := e.sweepFired[key]
	return ok
}

func (e *Engine) markSwept(key string) {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	e.sweepFired[key] = struct{}{}
}

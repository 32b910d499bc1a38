package delivery

import (
	"context"

	"guest-messaging/internal/common/logging"
)

// LogDeliverer writes messages to the log instead of sending them.
// Used in development and as the default when no channel is configured.
type LogDeliverer struct {
	logger logging.Logger
}

func NewLogDeliverer(logger logging.Logger) *LogDeliverer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LogDeliverer{logger: logger}
}

func (d *LogDeliverer) Name() string { return "log" }

func (d *LogDeliverer) Send(_ context.Context, msg *Message) error {
	d.logger.Info("message delivered",
		logging.String("channel", "log"),
		logging.String("hotel_id", msg.HotelID),
		logging.String("guest_id", msg.GuestID),
		logging.String("trigger_id", msg.TriggerID),
		logging.String("address", msg.Address),
		logging.String("text", msg.Text))
	return nil
}

func (d *LogDeliverer) Close() error { return nil }

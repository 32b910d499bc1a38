// Package delivery carries rendered messages to guests. The engine is
// channel-agnostic; a Deliverer adapts one outbound channel (webhook,
// AMQP broker, or the log for development).
package delivery

import "context"

// Message is one rendered outbound message.
type Message struct {
	HotelID   string `json:"hotel_id"`
	GuestID   string `json:"guest_id"`
	TriggerID string `json:"trigger_id"`
	Address   string `json:"address"`
	Text      string `json:"text"`
}

// Deliverer sends a message over one channel.
type Deliverer interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
	Close() error
}

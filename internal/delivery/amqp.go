package delivery

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/logging"
)

// AMQPConfig configures the broker deliverer.
type AMQPConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Exchange   string `json:"exchange,omitempty"`
	RoutingKey string `json:"routing_key,omitempty"`
}

// AMQPDeliverer publishes messages to a RabbitMQ queue for a
// downstream sender to pick up. The queue is declared durable so
// messages survive broker restarts.
type AMQPDeliverer struct {
	config *AMQPConfig
	logger logging.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPDeliverer connects to the broker and declares the outbound queue.
func NewAMQPDeliverer(config *AMQPConfig, logger logging.Logger) (*AMQPDeliverer, error) {
	if config == nil || config.URL == "" {
		return nil, errors.ConfigError("amqp deliverer requires a URL")
	}
	if config.Queue == "" {
		config.Queue = "guest-messages"
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	d := &AMQPDeliverer{config: config, logger: logger}
	if err := d.connect(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *AMQPDeliverer) connect() error {
	conn, err := amqp.Dial(d.config.URL)
	if err != nil {
		return errors.ConnectionError("failed to connect to RabbitMQ", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errors.ConnectionError("failed to open RabbitMQ channel", err)
	}

	if _, err := channel.QueueDeclare(
		d.config.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return errors.ConnectionError("failed to declare delivery queue", err)
	}

	d.mu.Lock()
	d.conn = conn
	d.channel = channel
	d.mu.Unlock()
	return nil
}

func (d *AMQPDeliverer) Name() string { return "amqp" }

func (d *AMQPDeliverer) Send(_ context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.InternalError("failed to serialize message", err)
	}

	d.mu.Lock()
	channel := d.channel
	d.mu.Unlock()
	if channel == nil {
		return errors.ConnectionError("amqp deliverer not connected", nil)
	}

	routingKey := d.config.RoutingKey
	if d.config.Exchange == "" {
		routingKey = d.config.Queue
	}

	err = channel.Publish(
		d.config.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return errors.DeliveryError("failed to publish message", err)
	}

	d.logger.Info("message delivered",
		logging.String("channel", "amqp"),
		logging.String("trigger_id", msg.TriggerID),
		logging.String("guest_id", msg.GuestID))
	return nil
}

func (d *AMQPDeliverer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.channel != nil {
		d.channel.Close()
		d.channel = nil
	}
	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		return err
	}
	return nil
}

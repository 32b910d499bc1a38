package delivery

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/logging"
)

// BreakerConfig controls when the delivery circuit opens.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive send failures that opens
	// the circuit.
	MaxFailures int
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration
	// MaxHalfOpen is the number of probe sends allowed while half-open.
	MaxHalfOpen int
}

// DefaultBreakerConfig matches a flaky downstream gateway: trip after
// five consecutive failures, probe again after a minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		Timeout:     time.Minute,
		MaxHalfOpen: 1,
	}
}

// BreakerDeliverer wraps another deliverer with a circuit breaker so a
// dead gateway fails fast instead of stalling every execution on its
// timeout.
type BreakerDeliverer struct {
	inner   Deliverer
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// NewBreakerDeliverer wraps inner with a circuit breaker.
func NewBreakerDeliverer(inner Deliverer, config BreakerConfig, logger logging.Logger) *BreakerDeliverer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if config.MaxFailures <= 0 {
		config = DefaultBreakerConfig()
	}

	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: uint32(config.MaxHalfOpen),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Delivery circuit state changed",
				logging.String("channel", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
	}

	return &BreakerDeliverer{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

func (d *BreakerDeliverer) Name() string { return d.inner.Name() }

// Send forwards through the circuit breaker. When the circuit is open
// the send is rejected immediately with a delivery error.
func (d *BreakerDeliverer) Send(ctx context.Context, msg *Message) error {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.inner.Send(ctx, msg)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return errors.DeliveryError("delivery channel unavailable", err)
	}
	return err
}

// State reports the current circuit state.
func (d *BreakerDeliverer) State() string {
	return d.breaker.State().String()
}

func (d *BreakerDeliverer) Close() error { return d.inner.Close() }

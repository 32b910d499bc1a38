package delivery

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"guest-messaging/internal/common/logging"
)

// RateLimitConfig bounds outbound message volume.
type RateLimitConfig struct {
	// MessagesPerSecond applies per hotel; messaging one tenant's
	// guests never starves another's.
	MessagesPerSecond float64
	Burst             int
}

// RateLimitedDeliverer wraps another deliverer with a per-hotel token
// bucket. Send blocks until a token is available or the context ends.
type RateLimitedDeliverer struct {
	inner  Deliverer
	config RateLimitConfig
	logger logging.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitedDeliverer wraps inner with per-hotel rate limiting.
func NewRateLimitedDeliverer(inner Deliverer, config RateLimitConfig, logger logging.Logger) *RateLimitedDeliverer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if config.MessagesPerSecond <= 0 {
		config.MessagesPerSecond = 10
	}
	if config.Burst <= 0 {
		config.Burst = int(config.MessagesPerSecond)
		if config.Burst < 1 {
			config.Burst = 1
		}
	}

	return &RateLimitedDeliverer{
		inner:    inner,
		config:   config,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (d *RateLimitedDeliverer) Name() string { return d.inner.Name() }

func (d *RateLimitedDeliverer) Send(ctx context.Context, msg *Message) error {
	if err := d.limiterFor(msg.HotelID).Wait(ctx); err != nil {
		return err
	}
	return d.inner.Send(ctx, msg)
}

func (d *RateLimitedDeliverer) limiterFor(hotelID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	limiter, ok := d.limiters[hotelID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(d.config.MessagesPerSecond), d.config.Burst)
		d.limiters[hotelID] = limiter
	}
	return limiter
}

func (d *RateLimitedDeliverer) Close() error { return d.inner.Close() }

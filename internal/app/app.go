// Package app wires the configured backends together and runs the
// daemon lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/logging"
	"guest-messaging/internal/config"
	"guest-messaging/internal/delivery"
	"guest-messaging/internal/engine"
	"guest-messaging/internal/handlers"
	"guest-messaging/internal/queue"
	"guest-messaging/internal/storage"
	"guest-messaging/internal/storage/cached"
	"guest-messaging/internal/storage/memory"
	"guest-messaging/internal/storage/postgres"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Store     storage.Store
	Queue     queue.Queue
	Deliverer delivery.Deliverer
	Engine    *engine.Engine
	Handlers  *handlers.Handlers
	Logger    logging.Logger

	sweeper   *cron.Cron
	cancelRun context.CancelFunc
}

// New builds every component from the configuration. Backends are
// selected per config: store memory|postgres, queue local|redis,
// delivery log|webhook|amqp.
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}
	if err := app.initQueue(); err != nil {
		app.Store.Close()
		return nil, err
	}
	if err := app.initDeliverer(); err != nil {
		app.Queue.Close()
		app.Store.Close()
		return nil, err
	}

	app.Engine = engine.NewEngine(app.Store, app.Queue, app.Deliverer, logging.GetGlobalLogger())
	app.Handlers = handlers.New(app.Store, app.Engine, cfg)
	return app, nil
}

func (app *App) initStore() error {
	var store storage.Store
	switch app.Config.StoreType {
	case "postgres":
		pg, err := postgres.NewStore(context.Background(), app.Config.PostgresURL)
		if err != nil {
			return err
		}
		store = pg
		app.Logger.Info("Using PostgreSQL store")
	case "memory":
		store = memory.NewStore()
		app.Logger.Info("Using in-memory store")
	default:
		return errors.ConfigError(fmt.Sprintf("unknown store type %q", app.Config.StoreType))
	}

	if app.Config.EntityCacheTTL > 0 {
		store = cached.NewStore(store, app.Config.EntityCacheTTL)
	}
	app.Store = store
	return nil
}

func (app *App) initQueue() error {
	switch app.Config.QueueType {
	case "redis":
		q, err := queue.NewRedisQueue(&queue.RedisConfig{
			Address:      app.Config.RedisAddress,
			Password:     app.Config.RedisPassword,
			DB:           app.Config.RedisDB,
			PoolSize:     app.Config.RedisPoolSize,
			PollInterval: app.Config.QueuePollInterval,
		}, logging.GetGlobalLogger())
		if err != nil {
			return err
		}
		app.Queue = q
		app.Logger.Info("Using Redis job queue",
			logging.String("address", app.Config.RedisAddress))
	case "local":
		app.Queue = queue.NewLocalQueue(logging.GetGlobalLogger())
		app.Logger.Info("Using local job queue")
	default:
		return errors.ConfigError(fmt.Sprintf("unknown queue type %q", app.Config.QueueType))
	}
	return nil
}

func (app *App) initDeliverer() error {
	var deliverer delivery.Deliverer
	remote := false

	switch app.Config.DeliveryChannel {
	case "webhook":
		d, err := delivery.NewWebhookDeliverer(&delivery.WebhookConfig{
			URL: app.Config.WebhookURL,
		}, logging.GetGlobalLogger())
		if err != nil {
			return err
		}
		deliverer, remote = d, true
	case "amqp":
		d, err := delivery.NewAMQPDeliverer(&delivery.AMQPConfig{
			URL:   app.Config.RabbitMQURL,
			Queue: app.Config.DeliveryQueue,
		}, logging.GetGlobalLogger())
		if err != nil {
			return err
		}
		deliverer, remote = d, true
	case "log":
		deliverer = delivery.NewLogDeliverer(logging.GetGlobalLogger())
	default:
		return errors.ConfigError(fmt.Sprintf("unknown delivery channel %q", app.Config.DeliveryChannel))
	}

	// Remote channels get a circuit breaker so a dead gateway fails
	// fast instead of stalling every execution on its timeout.
	if remote && app.Config.BreakerFailures > 0 {
		cfg := delivery.DefaultBreakerConfig()
		cfg.MaxFailures = app.Config.BreakerFailures
		deliverer = delivery.NewBreakerDeliverer(deliverer, cfg, logging.GetGlobalLogger())
	}
	if app.Config.DeliveryRateLimit > 0 {
		deliverer = delivery.NewRateLimitedDeliverer(deliverer, delivery.RateLimitConfig{
			MessagesPerSecond: app.Config.DeliveryRateLimit,
		}, logging.GetGlobalLogger())
	}

	app.Deliverer = deliverer
	app.Logger.Info("Delivery channel ready",
		logging.String("channel", app.Deliverer.Name()))
	return nil
}

// Start begins queue consumption and the periodic evaluation sweep.
func (app *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancelRun = cancel

	if err := app.Queue.Start(ctx); err != nil {
		cancel()
		return err
	}

	app.sweeper = cron.New()
	_, err := app.sweeper.AddFunc(app.Config.SweepSchedule, func() {
		sent, err := app.Engine.Sweep(ctx)
		if err != nil {
			app.Logger.Error("evaluation sweep failed", err)
			return
		}
		if sent > 0 {
			app.Logger.Info("Evaluation sweep complete",
				logging.Int("messages_sent", sent))
		}
	})
	if err != nil {
		cancel()
		return errors.ConfigError(fmt.Sprintf("invalid sweep schedule %q: %v", app.Config.SweepSchedule, err))
	}
	app.sweeper.Start()
	return nil
}

// Shutdown stops the sweep and queue consumption, waiting for in-flight
// work within the context deadline.
func (app *App) Shutdown(ctx context.Context) error {
	if app.sweeper != nil {
		sweepCtx := app.sweeper.Stop()
		select {
		case <-sweepCtx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if app.cancelRun != nil {
		app.cancelRun()
	}
	return nil
}

// Cleanup releases all held resources.
func (app *App) Cleanup() {
	if app.Deliverer != nil {
		if err := app.Deliverer.Close(); err != nil {
			app.Logger.Warn("Error closing deliverer",
				logging.String("error", err.Error()))
		}
	}
	if app.Queue != nil {
		if err := app.Queue.Close(); err != nil {
			app.Logger.Warn("Error closing queue",
				logging.String("error", err.Error()))
		}
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Warn("Error closing store",
				logging.String("error", err.Error()))
		}
	}
}

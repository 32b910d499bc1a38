package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/logging"
	"guest-messaging/internal/common/utils"
)

const (
	defaultPollInterval = time.Second
	defaultKeyPrefix    = "triggerq"
	taskBodyTTL         = 7 * 24 * time.Hour
)

// RedisConfig configures the Redis-backed queue.
type RedisConfig struct {
	Address      string        `json:"address"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	KeyPrefix    string        `json:"key_prefix"`
	PollInterval time.Duration `json:"poll_interval"`
}

// RedisQueue persists pending tasks in a sorted set scored by their
// execute-at instant. A polling worker claims due members with ZREM,
// which makes each task fire on exactly one node even when several
// workers share the queue.
type RedisQueue struct {
	client *redis.Client
	config *RedisConfig
	logger logging.Logger

	mu      sync.Mutex
	handler Handler
	started bool

	stop chan struct{}
	done chan struct{}
}

// NewRedisQueue connects to Redis and returns a queue. Start must be
// called before tasks execute.
func NewRedisQueue(config *RedisConfig, logger logging.Logger) (*RedisQueue, error) {
	if config == nil {
		return nil, errors.ConfigError("redis queue config is required")
	}
	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaultKeyPrefix
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.ConnectionError("failed to connect to Redis", err)
	}

	return &RedisQueue{
		client: client,
		config: config,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

func (q *RedisQueue) scheduleKey() string {
	return q.config.KeyPrefix + ":schedule"
}

func (q *RedisQueue) taskKey(taskID string) string {
	return q.config.KeyPrefix + ":task:" + taskID
}

func (q *RedisQueue) SetHandler(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
}

func (q *RedisQueue) Submit(ctx context.Context, payload map[string]interface{}, delay time.Duration) (string, error) {
	if delay < 0 {
		delay = 0
	}

	now := time.Now()
	task := &Task{
		ID:        utils.NewTaskID(),
		Payload:   payload,
		ExecuteAt: now.Add(delay),
		CreatedAt: now,
	}

	body, err := json.Marshal(task)
	if err != nil {
		return "", errors.InternalError("failed to serialize task", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.taskKey(task.ID), body, taskBodyTTL)
	pipe.ZAdd(ctx, q.scheduleKey(), &redis.Z{
		Score:  float64(task.ExecuteAt.UnixMilli()),
		Member: task.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", errors.ConnectionError("failed to enqueue task", err)
	}

	q.logger.Debug("task submitted",
		logging.String("task_id", task.ID),
		logging.Duration("delay", delay))
	return task.ID, nil
}

func (q *RedisQueue) Cancel(ctx context.Context, taskID string) (bool, error) {
	removed, err := q.client.ZRem(ctx, q.scheduleKey(), taskID).Result()
	if err != nil {
		return false, errors.ConnectionError("failed to cancel task", err)
	}
	if removed == 0 {
		return false, nil
	}

	q.client.Del(ctx, q.taskKey(taskID))
	q.logger.Debug("task cancelled", logging.String("task_id", taskID))
	return true, nil
}

// Start launches the polling worker. It returns an error if no handler
// was registered.
func (q *RedisQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.handler == nil {
		return errors.ConfigError("no task handler registered")
	}
	if q.started {
		return nil
	}
	q.started = true

	go q.poll(ctx)
	return nil
}

func (q *RedisQueue) poll(ctx context.Context) {
	defer close(q.done)

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.drainDue(ctx)
		}
	}
}

// drainDue claims and executes every task whose score has passed.
func (q *RedisQueue) drainDue(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	ids, err := q.client.ZRangeByScore(ctx, q.scheduleKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		q.logger.Error("failed to poll task schedule", err)
		return
	}

	for _, id := range ids {
		// ZREM succeeds on exactly one worker, so the claim doubles
		// as a distributed lock per task.
		claimed, err := q.client.ZRem(ctx, q.scheduleKey(), id).Result()
		if err != nil {
			q.logger.Error("failed to claim task", err,
				logging.String("task_id", id))
			continue
		}
		if claimed == 0 {
			continue
		}
		q.execute(ctx, id)
	}
}

func (q *RedisQueue) execute(ctx context.Context, taskID string) {
	body, err := q.client.Get(ctx, q.taskKey(taskID)).Result()
	if err == redis.Nil {
		q.logger.Warn("claimed task has no body", logging.String("task_id", taskID))
		return
	}
	if err != nil {
		q.logger.Error("failed to load task body", err,
			logging.String("task_id", taskID))
		return
	}
	q.client.Del(ctx, q.taskKey(taskID))

	var task Task
	if err := json.Unmarshal([]byte(body), &task); err != nil {
		q.logger.Error("failed to decode task body", err,
			logging.String("task_id", taskID))
		return
	}

	q.mu.Lock()
	handler := q.handler
	q.mu.Unlock()

	if err := handler(ctx, &task); err != nil {
		q.logger.Error("task handler failed", err,
			logging.String("task_id", taskID))
	}
}

// Pending reports the number of tasks still waiting in the schedule.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	count, err := q.client.ZCard(ctx, q.scheduleKey()).Result()
	if err != nil {
		return 0, errors.ConnectionError("failed to count pending tasks", err)
	}
	return count, nil
}

// Health verifies the Redis connection.
func (q *RedisQueue) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis queue unhealthy: %w", err)
	}
	return nil
}

func (q *RedisQueue) Close() error {
	q.mu.Lock()
	started := q.started
	q.started = false
	q.mu.Unlock()

	if started {
		close(q.stop)
		select {
		case <-q.done:
		case <-time.After(5 * time.Second):
		}
	}
	return q.client.Close()
}

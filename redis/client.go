// Package redis wraps the asynq task queue used for background health-data
// syncs and periodic maintenance.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/tranquilae/Tranquilae-sub003/models"
	"github.com/tranquilae/Tranquilae-sub003/redis/config"
	"github.com/tranquilae/Tranquilae-sub003/redis/tasks"
)

// Client wraps asynq client functionality
type Client struct {
	client *asynq.Client
	cfg    *config.RedisConfig
}

// NewClient creates a new Redis client with the provided configuration
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	if err := testConnection(client); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client, cfg: cfg}, nil
}

// EnqueueTask enqueues a task with the given type and payload.
func (c *Client) EnqueueTask(ctx context.Context, taskType string, payload []byte, opts ...asynq.Option) error {
	task := asynq.NewTask(taskType, payload)

	_, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// EnqueueHealthSync schedules a background data sync for one integration.
// The task is unique per (user, service) while queued, so reconnect bursts
// collapse into a single sync.
func (c *Client) EnqueueHealthSync(ctx context.Context, userID string, service models.ServiceName) error {
	payload, err := json.Marshal(tasks.HealthSyncPayload{
		UserID:      userID,
		ServiceName: string(service),
	})
	if err != nil {
		return fmt.Errorf("failed to encode sync payload: %w", err)
	}

	return c.EnqueueTask(ctx, tasks.TypeHealthSync, payload,
		asynq.MaxRetry(c.cfg.MaxRetries),
		asynq.Unique(c.cfg.RetryInterval),
		asynq.Retention(c.cfg.RetentionPeriod),
	)
}

// Close closes the Redis client connection
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}

// IsHealthy checks if the Redis connection is healthy
func (c *Client) IsHealthy(ctx context.Context) bool {
	_, err := c.client.EnqueueContext(ctx, asynq.NewTask(tasks.TypeHealthCheck, nil))
	return err == nil
}

func testConnection(client *asynq.Client) error {
	_, err := client.EnqueueContext(context.Background(), asynq.NewTask(tasks.TypeConnectionTest, nil))
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return nil
}

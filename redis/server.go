package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tranquilae/Tranquilae-sub003/redis/config"
)

// Server wraps asynq server functionality
type Server struct {
	server *asynq.Server
	cfg    *config.RedisConfig
	logger *log.Logger
}

// NewServer creates a new Redis server with the provided configuration
func NewServer(cfg *config.RedisConfig, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Workers,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				if n >= cfg.MaxRetries {
					logger.Printf("Task %s exhausted retries: %v", task.Type(), err)
					return -1 * time.Second
				}

				// Exponential backoff capped at the retry interval.
				delay := time.Duration(1<<uint(n)) * time.Second
				if delay > cfg.RetryInterval {
					delay = cfg.RetryInterval
				}

				logger.Printf("Task %s failed, retry %d scheduled in %v: %v", task.Type(), n, delay, err)

				return delay
			},
			Queues:         cfg.QueuePriorities,
			StrictPriority: true,
		},
	)

	return &Server{server: srv, cfg: cfg, logger: logger}
}

// Start starts the server with the provided handler mux
func (s *Server) Start(mux *asynq.ServeMux) error {
	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Run blocks processing tasks until the context is canceled.
func (s *Server) Run(ctx context.Context, mux *asynq.ServeMux) error {
	if err := s.Start(mux); err != nil {
		return err
	}

	<-ctx.Done()
	s.Shutdown()

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() {
	s.server.Shutdown()
}

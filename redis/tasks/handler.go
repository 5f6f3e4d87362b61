// Package tasks provides Redis task handling functionality
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// TaskHandler handles processing of Redis tasks
type TaskHandler interface {
	ProcessTask(ctx context.Context, task *asynq.Task) error
}

// HealthSyncer pulls fresh data for one integration. Implemented by
// healthsync.Service.
type HealthSyncer interface {
	Sync(ctx context.Context, userID string, service models.ServiceName) error
}

// StatePurger removes expired OAuth states. Implemented by
// oauth.StateManager.
type StatePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Handler implements TaskHandler interface
type Handler struct {
	syncer      HealthSyncer
	purger      StatePurger
	logger      *log.Logger
	taskTimeout time.Duration
}

// HandlerOption is a function that configures a Handler
type HandlerOption func(*Handler)

// WithTaskTimeout sets the timeout for task processing
func WithTaskTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		h.taskTimeout = timeout
	}
}

// WithLogger sets the handler logger
func WithLogger(logger *log.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a new task handler with the provided options
func NewHandler(syncer HealthSyncer, purger StatePurger, opts ...HandlerOption) *Handler {
	h := &Handler{
		syncer:      syncer,
		purger:      purger,
		logger:      log.Default(),
		taskTimeout: 2 * time.Minute,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ProcessTask processes a task based on its type
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	ctx, cancel := context.WithTimeout(ctx, h.taskTimeout)
	defer cancel()

	switch task.Type() {
	case TypeHealthSync:
		return h.processHealthSync(ctx, task)
	case TypeStatePurge:
		return h.processStatePurge(ctx)
	case TypeHealthCheck, TypeConnectionTest:
		return nil
	default:
		return fmt.Errorf("unknown task type: %s", task.Type())
	}
}

func (h *Handler) processHealthSync(ctx context.Context, task *asynq.Task) error {
	var payload HealthSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid health sync payload: %w", err)
	}

	if payload.UserID == "" || payload.ServiceName == "" {
		return fmt.Errorf("health sync payload missing user or service")
	}

	err := h.syncer.Sync(ctx, payload.UserID, models.ServiceName(payload.ServiceName))
	if err != nil {
		return fmt.Errorf("health sync for user %s service %s: %w", payload.UserID, payload.ServiceName, err)
	}

	return nil
}

func (h *Handler) processStatePurge(ctx context.Context) error {
	n, err := h.purger.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("state purge: %w", err)
	}

	if n > 0 {
		h.logger.Printf("purged %d expired oauth states", n)
	}

	return nil
}

// NewMux returns an asynq mux with the handler registered for all known
// task types.
func NewMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeHealthSync, h)
	mux.Handle(TypeStatePurge, h)
	mux.Handle(TypeHealthCheck, h)
	mux.Handle(TypeConnectionTest, h)

	return mux
}

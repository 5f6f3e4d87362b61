// Package workerrunner runs the background task worker: health data syncs
// and periodic purging of expired OAuth states.
package workerrunner

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tranquilae/Tranquilae-sub003/healthsync"
	"github.com/tranquilae/Tranquilae-sub003/oauth"
	"github.com/tranquilae/Tranquilae-sub003/pkg/encryption"
	"github.com/tranquilae/Tranquilae-sub003/postgres"
	"github.com/tranquilae/Tranquilae-sub003/redis"
	redisconfig "github.com/tranquilae/Tranquilae-sub003/redis/config"
	"github.com/tranquilae/Tranquilae-sub003/redis/tasks"
	"github.com/tranquilae/Tranquilae-sub003/runner"
)

const statePurgeInterval = 10 * time.Minute

type workerrunner struct {
	srv     *redis.Server
	client  *redis.Client
	handler *tasks.Handler
	db      *sql.DB
	logger  *log.Logger
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.Dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := sql.Open("pgx", cfg.Dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(5)

	logger := log.New(os.Stderr, "worker: ", log.LstdFlags)

	cipher, err := encryption.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	integrationRepo := postgres.NewIntegrationRepository(db)
	healthRepo := postgres.NewHealthDataRepository(db)
	stateRepo := postgres.NewOAuthStateRepository(db)

	registry := oauth.NewRegistry(cfg.OAuthProviders()...)
	states := oauth.NewStateManager(stateRepo)

	syncer := healthsync.NewService(registry, integrationRepo, healthRepo, cipher, logger)

	redisCfg, err := redisconfig.NewRedisConfig()
	if err != nil {
		return nil, err
	}

	if cfg.Workers > 0 {
		redisCfg.Workers = cfg.Workers
	}

	client, err := redis.NewClient(redisCfg)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ans := workerrunner{
		srv:     redis.NewServer(redisCfg, logger),
		client:  client,
		handler: tasks.NewHandler(syncer, states, tasks.WithLogger(logger)),
		db:      db,
		logger:  logger,
	}

	return &ans, nil
}

func (w *workerrunner) Run(ctx context.Context) error {
	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return w.srv.Run(ctx, tasks.NewMux(w.handler))
	})

	egroup.Go(func() error {
		return w.schedulePurges(ctx)
	})

	return egroup.Wait()
}

func (w *workerrunner) Close(context.Context) error {
	_ = w.client.Close()

	return w.db.Close()
}

// schedulePurges enqueues an expired-state purge task on a fixed interval.
// The task is idempotent, so overlapping runs across replicas are harmless.
func (w *workerrunner) schedulePurges(ctx context.Context) error {
	ticker := time.NewTicker(statePurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.client.EnqueueTask(ctx, tasks.TypeStatePurge, nil); err != nil {
				w.logger.Printf("failed to enqueue state purge: %v", err)
			}
		}
	}
}

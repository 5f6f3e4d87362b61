// Package webrunner assembles the HTTP API server: repositories, OAuth
// providers, the integration service, handlers and middleware.
package webrunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tranquilae/Tranquilae-sub003/audit"
	"github.com/tranquilae/Tranquilae-sub003/config"
	"github.com/tranquilae/Tranquilae-sub003/crawler"
	"github.com/tranquilae/Tranquilae-sub003/oauth"
	"github.com/tranquilae/Tranquilae-sub003/pkg/encryption"
	"github.com/tranquilae/Tranquilae-sub003/postgres"
	"github.com/tranquilae/Tranquilae-sub003/ratelimit"
	"github.com/tranquilae/Tranquilae-sub003/redis"
	redisconfig "github.com/tranquilae/Tranquilae-sub003/redis/config"
	"github.com/tranquilae/Tranquilae-sub003/runner"
	stripeclient "github.com/tranquilae/Tranquilae-sub003/stripe"
	"github.com/tranquilae/Tranquilae-sub003/subscription"
	"github.com/tranquilae/Tranquilae-sub003/tlmt"
	"github.com/tranquilae/Tranquilae-sub003/web"
	"github.com/tranquilae/Tranquilae-sub003/web/auth"
	"github.com/tranquilae/Tranquilae-sub003/web/handlers"
	"github.com/tranquilae/Tranquilae-sub003/web/middleware"
)

type webrunner struct {
	srv     *http.Server
	db      *sql.DB
	queue   *redis.Client
	limiter *goredis.Client
	cfg     *runner.Config
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.Dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := sql.Open("pgx", cfg.Dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)

	logger := log.New(os.Stderr, "web: ", log.LstdFlags)

	userRepo := postgres.NewUserRepository(db)
	integrationRepo := postgres.NewIntegrationRepository(db)
	stateRepo := postgres.NewOAuthStateRepository(db)
	mediaRepo := postgres.NewMediaRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	cipher, err := encryption.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	registry := oauth.NewRegistry(cfg.OAuthProviders()...)
	states := oauth.NewStateManager(stateRepo)

	var (
		queue     *redis.Client
		scheduler web.SyncScheduler
	)

	redisCfg, err := redisconfig.NewRedisConfig()
	if err != nil {
		return nil, err
	}

	queue, err = redis.NewClient(redisCfg)
	if err != nil {
		logger.Printf("task queue unavailable, initial syncs will not be scheduled: %v", err)
	} else {
		scheduler = queue
	}

	integrations := web.NewIntegrationService(registry, states, integrationRepo, cipher, scheduler, logger)

	authMiddleware, err := auth.NewAuthMiddleware(cfg.JWTSecret, userRepo)
	if err != nil {
		return nil, err
	}

	sink := audit.NewDBSink(auditRepo, logger)
	cfgsvc := config.New(db)

	ingest := &configuredIngest{
		svc: crawler.NewIngestService(crawler.New(nil, logger), mediaRepo, logger),
		cfg: cfgsvc,
	}

	stripeClient := stripeclient.NewClient(cfg.StripeAPIKey)
	subs := subscription.NewService(stripeClient, userRepo, logger)

	deps := handlers.Dependencies{
		Logger:              logger,
		Auth:                authMiddleware,
		Integrations:        integrations,
		States:              states,
		UserRepo:            userRepo,
		Ingest:              ingest,
		Audit:               sink,
		Subscriptions:       subs,
		Stripe:              stripeClient,
		DashboardURL:        cfg.DashboardURL,
		AdminIngestToken:    cfg.AdminIngestToken,
		StripeWebhookSecret: cfg.StripeWebhookSecret,
	}

	group := handlers.NewHandlerGroup(deps)

	limiterClient := goredis.NewClient(&goredis.Options{
		Addr:     redisCfg.GetRedisAddr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	perMinute, err := cfgsvc.GetInt(context.Background(), config.KeyRateLimitPerIP, 60)
	if err != nil {
		perMinute = 60
	}

	var limiter ratelimit.Limiter
	if err := limiterClient.Ping(context.Background()).Err(); err != nil {
		logger.Printf("redis unavailable, using in-memory rate limiter: %v", err)
		limiter = ratelimit.NewMemoryLimiter(perMinute, time.Minute)
	} else {
		limiter = ratelimit.NewRedisLimiter(limiterClient, perMinute, time.Minute)
	}

	allowedOrigin := cfg.AllowedOrigin
	if allowedOrigin == "" {
		allowedOrigin = cfg.DashboardURL
	}

	router := buildRouter(group, authMiddleware, limiter, allowedOrigin, cfg.Debug, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}

	ans := webrunner{
		srv:     srv,
		db:      db,
		queue:   queue,
		limiter: limiterClient,
		cfg:     cfg,
	}

	return &ans, nil
}

func (w *webrunner) Run(ctx context.Context) error {
	evt := tlmt.NewEvent("web_start", map[string]any{"addr": w.cfg.Addr})
	_ = runner.Telemetry().Send(ctx, evt)

	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return w.srv.Shutdown(shutdownCtx)
	})

	egroup.Go(func() error {
		err := w.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	})

	return egroup.Wait()
}

func (w *webrunner) Close(context.Context) error {
	if w.queue != nil {
		_ = w.queue.Close()
	}

	if w.limiter != nil {
		_ = w.limiter.Close()
	}

	return w.db.Close()
}

func buildRouter(
	group *handlers.HandlerGroup,
	authMiddleware *auth.AuthMiddleware,
	limiter ratelimit.Limiter,
	allowedOrigin string,
	debug bool,
	logger *log.Logger,
) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", handlers.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/webhooks/stripe", group.Webhook.HandleStripeWebhook).Methods(http.MethodPost)

	// The callback is hit by a browser redirect from the OAuth provider, so
	// it cannot carry a session token. The state record identifies the user.
	router.HandleFunc("/api/integrations/{service}/callback", group.Integration.HandleCallback).Methods(http.MethodGet)

	// Token-guarded rather than session-guarded; meant for operator scripts.
	router.HandleFunc("/api/admin/exercises/media/ingest", group.Admin.HandleMediaIngest).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Authenticate)

	api.HandleFunc("/integrations/{service}/auth", group.Integration.HandleConnect).Methods(http.MethodGet)
	api.HandleFunc("/user/integrations", group.Integration.HandleList).Methods(http.MethodGet)
	api.HandleFunc("/user/integrations", group.Integration.HandleUpdateSettings).Methods(http.MethodPatch)
	api.HandleFunc("/user/integrations/{service}", group.Integration.HandleDisconnect).Methods(http.MethodDelete)

	api.HandleFunc("/admin/users/{id}/suspend", group.Admin.HandleSuspendUser).Methods(http.MethodPost)
	api.HandleFunc("/admin/users/{id}/activate", group.Admin.HandleActivateUser).Methods(http.MethodPost)
	api.HandleFunc("/admin/users/{id}/email", group.Admin.HandleChangeEmail).Methods(http.MethodPut)
	api.HandleFunc("/admin/users/{id}/billing/sync", group.Admin.HandleBillingSync).Methods(http.MethodPost)

	return middleware.Chain(router,
		middleware.RequestLogger(logger),
		middleware.SecurityHeaders,
		middleware.CORS(allowedOrigin, debug),
		middleware.RateLimit(limiter, logger),
	)
}

// configuredIngest fills unset crawl options from the dynamic configuration
// before delegating to the crawl service.
type configuredIngest struct {
	svc *crawler.IngestService
	cfg *config.Service
}

func (c *configuredIngest) Run(ctx context.Context, seeds []string, opts crawler.Options) (*crawler.IngestResult, error) {
	if opts.MaxDepth <= 0 {
		if v, err := c.cfg.GetInt(ctx, config.KeyCrawlMaxDepth, 0); err == nil && v > 0 {
			opts.MaxDepth = v
		}
	}

	if opts.MaxPages <= 0 {
		if v, err := c.cfg.GetInt(ctx, config.KeyCrawlMaxPages, 0); err == nil && v > 0 {
			opts.MaxPages = v
		}
	}

	if opts.Delay <= 0 {
		if v, err := c.cfg.GetDuration(ctx, config.KeyCrawlDelay, 0); err == nil && v > 0 {
			opts.Delay = v
		}
	}

	return c.svc.Run(ctx, seeds, opts)
}

// Package runner holds process configuration and the Runner contract that
// the web, worker and migrate entrypoints implement.
package runner

import (
	"context"
	"errors"
	"flag"
	"os"
	"strconv"
	"sync"

	"github.com/tranquilae/Tranquilae-sub003/models"
	"github.com/tranquilae/Tranquilae-sub003/oauth"
	"github.com/tranquilae/Tranquilae-sub003/tlmt"
	"github.com/tranquilae/Tranquilae-sub003/tlmt/gonoop"
	"github.com/tranquilae/Tranquilae-sub003/tlmt/goposthog"
)

const (
	RunModeWeb = iota + 1
	RunModeWorker
	RunModeMigrate
)

var (
	ErrInvalidRunMode = errors.New("invalid run mode")
)

type Runner interface {
	Run(context.Context) error
	Close(context.Context) error
}

type Config struct {
	Addr             string
	Dsn              string
	BaseURL          string
	DashboardURL     string
	AllowedOrigin    string
	Workers          int
	Debug            bool
	DisableTelemetry bool
	RunMode          int

	JWTSecret        string
	EncryptionKey    string
	AdminIngestToken string

	StripeAPIKey        string
	StripeWebhookSecret string

	GoogleFitClientID     string
	GoogleFitClientSecret string
	FitbitClientID        string
	FitbitClientSecret    string
	AppleClientID         string
	AppleClientSecret     string
}

func ParseConfig() *Config {
	cfg := Config{}

	var (
		workerMode  bool
		migrateMode bool
	)

	flag.StringVar(&cfg.Addr, "addr", ":8080", "address to listen on for the web server")
	flag.StringVar(&cfg.Dsn, "dsn", "", "postgres connection string [default: DATABASE_URL]")
	flag.StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "public base URL used to build OAuth redirect URIs")
	flag.StringVar(&cfg.DashboardURL, "dashboard-url", "http://localhost:3000/dashboard", "frontend dashboard URL OAuth callbacks redirect to")
	flag.StringVar(&cfg.AllowedOrigin, "allowed-origin", "", "origin allowed by CORS [default: derived from dashboard-url]")
	flag.IntVar(&cfg.Workers, "workers", 0, "background worker concurrency [default: from redis config]")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable verbose logging")
	flag.BoolVar(&workerMode, "worker", false, "run the background task worker instead of the web server")
	flag.BoolVar(&migrateMode, "migrate", false, "run database migrations and exit")
	flag.BoolVar(&cfg.DisableTelemetry, "disable-telemetry", false, "disable anonymous usage telemetry")

	flag.Parse()

	if cfg.Dsn == "" {
		cfg.Dsn = os.Getenv("DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("SUPABASE_JWT_SECRET")
	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")
	cfg.AdminIngestToken = os.Getenv("ADMIN_INGEST_TOKEN")
	cfg.StripeAPIKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.GoogleFitClientID = os.Getenv("GOOGLE_FIT_CLIENT_ID")
	cfg.GoogleFitClientSecret = os.Getenv("GOOGLE_FIT_CLIENT_SECRET")
	cfg.FitbitClientID = os.Getenv("FITBIT_CLIENT_ID")
	cfg.FitbitClientSecret = os.Getenv("FITBIT_CLIENT_SECRET")
	cfg.AppleClientID = os.Getenv("APPLE_CLIENT_ID")
	cfg.AppleClientSecret = os.Getenv("APPLE_CLIENT_SECRET")

	if os.Getenv("DISABLE_TELEMETRY") == "1" {
		cfg.DisableTelemetry = true
	}

	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			cfg.Addr = ":" + v
		}
	}

	if cfg.Dsn == "" {
		panic("Dsn must be provided (flag -dsn or DATABASE_URL)")
	}

	switch {
	case migrateMode:
		cfg.RunMode = RunModeMigrate
	case workerMode:
		cfg.RunMode = RunModeWorker
	default:
		cfg.RunMode = RunModeWeb
	}

	if cfg.RunMode == RunModeWeb {
		if cfg.JWTSecret == "" {
			panic("SUPABASE_JWT_SECRET must be provided in web mode")
		}

		if cfg.EncryptionKey == "" {
			panic("ENCRYPTION_KEY must be provided in web mode")
		}
	}

	if cfg.RunMode == RunModeWorker && cfg.EncryptionKey == "" {
		panic("ENCRYPTION_KEY must be provided in worker mode")
	}

	return &cfg
}

// OAuthProviders builds the provider set from the configured credentials.
// Providers without a client id are left out, which removes them from the
// catalog users can connect.
func (c *Config) OAuthProviders() []oauth.Provider {
	callback := func(service models.ServiceName) string {
		return c.BaseURL + "/api/integrations/" + string(service) + "/callback"
	}

	var providers []oauth.Provider

	if creds := (oauth.Credentials{
		ClientID:     c.GoogleFitClientID,
		ClientSecret: c.GoogleFitClientSecret,
		RedirectURI:  callback(models.ServiceGoogleFit),
	}); creds.Configured() {
		providers = append(providers, oauth.NewGoogleFit(creds))
	}

	if creds := (oauth.Credentials{
		ClientID:     c.FitbitClientID,
		ClientSecret: c.FitbitClientSecret,
		RedirectURI:  callback(models.ServiceFitbit),
	}); creds.Configured() {
		providers = append(providers, oauth.NewFitbit(creds))
	}

	if creds := (oauth.Credentials{
		ClientID:     c.AppleClientID,
		ClientSecret: c.AppleClientSecret,
		RedirectURI:  callback(models.ServiceAppleHealth),
	}); creds.Configured() {
		providers = append(providers, oauth.NewAppleHealth(creds))
	}

	return providers
}

var (
	telemetryOnce sync.Once
	telemetry     tlmt.Telemetry
)

func Telemetry() tlmt.Telemetry {
	telemetryOnce.Do(func() {
		if os.Getenv("DISABLE_TELEMETRY") == "1" {
			telemetry = gonoop.New()

			return
		}

		val, err := goposthog.New("phc_Wd2BxwBBzCAmXlf8zx4wQnpPZ1wZFiYZLAnBsLpzQbT", "https://eu.i.posthog.com")
		if err != nil || val == nil {
			telemetry = gonoop.New()

			return
		}

		telemetry = val
	})

	return telemetry
}

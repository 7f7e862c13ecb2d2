package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/claimy/claimy-admin/internal/api"
	"github.com/claimy/claimy-admin/internal/assets"
	"github.com/claimy/claimy-admin/internal/auth"
	"github.com/claimy/claimy-admin/internal/cache"
	"github.com/claimy/claimy-admin/internal/cases"
	"github.com/claimy/claimy-admin/internal/config"
	"github.com/claimy/claimy-admin/internal/database"
	"github.com/claimy/claimy-admin/internal/desk"
	"github.com/claimy/claimy-admin/internal/mail"
	"github.com/claimy/claimy-admin/internal/metrics"
	"github.com/claimy/claimy-admin/internal/server"
	"github.com/claimy/claimy-admin/internal/stores"
	"github.com/claimy/claimy-admin/pkg/logger"
)

func main() {
	var migrate bool
	flag.BoolVar(&migrate, "migrate", false, "Run database migrations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Initialize(database.Options{
		Driver: cfg.DatabaseDriver,
		Path:   cfg.DatabasePath,
		URL:    cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}

	if migrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("Failed to run migrations", "error", err)
		}
		log.Info("Database migrations completed successfully")
		return
	}

	ctx := context.Background()

	bucket, err := assets.OpenBucket(ctx, cfg.AssetBucketURL)
	if err != nil {
		log.Fatal("Failed to open asset bucket", "error", err, "url", cfg.AssetBucketURL)
	}
	assetStore := assets.NewStore(bucket, nil, cfg.AssetBaseURL, log)

	var provider desk.MailProvider
	if cfg.GmailConfigured() {
		gmail, err := mail.NewGmail(ctx, mail.GmailConfig{
			ClientID:     cfg.GmailClientID,
			ClientSecret: cfg.GmailClientSecret,
			RefreshToken: cfg.GmailRefreshToken,
			User:         cfg.GmailUser,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize Gmail client", "error", err)
		}
		provider = gmail
	} else {
		log.Warn("Gmail is not configured, mail endpoints will fail")
	}

	identities, err := newIdentities(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize Firebase auth", "error", err)
	}
	if identities == nil {
		log.Warn("Firebase is not configured, admin sessions cannot be created")
	}

	caseCache := cache.NewCache(cfg.CacheSize, cfg.CacheTTL)
	caseService := cases.NewService(db, caseCache, log)
	appMetrics := metrics.New()
	caseDesk := desk.New(caseService, provider, assetStore, desk.Options{
		From:      cfg.GmailUser,
		BatchSize: cfg.SyncBatchSize,
		Workers:   cfg.WorkerPoolSize,
	}, log).WithObserver(appMetrics)

	srv := server.New(cfg, api.Dependencies{
		Config:     cfg,
		DB:         db,
		Cache:      caseCache,
		Cases:      caseService,
		Desk:       caseDesk,
		Stores:     stores.NewService(db, log),
		Sessions:   auth.NewSessions(cfg.AdminSecretToken, cfg.SessionTTL, cfg.AdminEmail),
		Identities: identities,
		Metrics:    appMetrics,
		Logger:     log,
	})
	srv.OnShutdown("database", func() error { return database.Close(db) })
	srv.OnShutdown("asset store", assetStore.Close)

	log.Info("Starting Claimy admin API",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.DatabaseDriver,
		"gmail", provider != nil,
	)

	if err := srv.Run(); err != nil {
		log.Fatal("Server failed to start", "error", err)
	}
}

func newIdentities(ctx context.Context, cfg *config.Config) (*auth.Identities, error) {
	if cfg.FirebaseProjectID == "" && cfg.FirebaseCredsFile == "" {
		return nil, nil
	}

	var opts []option.ClientOption
	if cfg.FirebaseCredsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return auth.NewIdentities(client, cfg.AdminEmail), nil
}

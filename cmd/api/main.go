package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"guidepost/api/internal/app"
	"guidepost/api/internal/billing"
	"guidepost/api/internal/config"
	"guidepost/api/internal/logger"
	"guidepost/api/internal/media"
	"guidepost/api/internal/pagecache"
	"guidepost/api/internal/revision"
	"guidepost/api/internal/search"
	"guidepost/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	logger.Init(cfg.LogMode, cfg.LogLevel)
	defer func() { _ = logger.Log.Sync() }()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		logger.Log.Fatal("migrations failed", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.RevisionsDir, 0o755); err != nil {
		logger.Log.Fatal("failed to create revisions dir", zap.Error(err))
	}

	dataStore := store.NewPostgresStore(db)

	opts := app.Options{
		Revisions: revision.New(cfg.RevisionsDir),
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	opts.Search = search.NewService(meiliClient, pgfts)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		cache, err := pagecache.New(cfg.RedisURL, cfg.PageCacheTTL)
		if err != nil {
			logger.Log.Fatal("redis connection failed", zap.Error(err))
		}
		defer cache.Close()
		opts.Cache = cache
		logger.Log.Info("page cache enabled", zap.Duration("ttl", cfg.PageCacheTTL))
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		uploader, err := media.New(media.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.PublicBaseURL + "/media",
		})
		if err != nil {
			logger.Log.Fatal("media storage init failed", zap.Error(err))
		}
		if err := uploader.EnsureBucket(ctx); err != nil {
			logger.Log.Fatal("media bucket init failed", zap.Error(err))
		}
		opts.Media = uploader
	}

	if strings.TrimSpace(cfg.BillingAPIKey) != "" {
		opts.Billing = billing.NewClient(cfg.BillingAPIBase, cfg.BillingAPIKey, cfg.BillingAPISecret, cfg.BillingReturnURL)
	}

	service := app.New(cfg, dataStore, opts)
	if err := service.Bootstrap(ctx); err != nil {
		logger.Log.Warn("bootstrap error, will retry on next restart", zap.Error(err))
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Log.Info("Guidepost API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("shutdown error", zap.Error(err))
	}
}

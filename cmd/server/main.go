package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chimu.app/backend/internal/config"
	"chimu.app/backend/internal/entity"
	"chimu.app/backend/internal/server"
	"chimu.app/backend/pkg/cache"
	"chimu.app/backend/pkg/database"
	"chimu.app/backend/pkg/storage"
	"github.com/getsentry/sentry-go"
	"github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	setupLogging(cfg)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			logrus.WithError(err).Warn("sentry disabled")
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, cfg.AppEnv)
	if err != nil {
		logrus.Fatalf("database: %v", err)
	}
	if err := db.AutoMigrate(entity.All()...); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}

	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logrus.WithError(err).Warn("redis unavailable, running without cache and realtime notifications")
		redisClient = nil
	}

	var meili meilisearch.ServiceManager
	if cfg.MeiliSearchHost != "" {
		meili = meilisearch.New(meiliHost(cfg.MeiliSearchHost), meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	}

	photos, err := storage.NewCloudinaryStorage(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		logrus.WithError(err).Warn("avatar uploads disabled")
		photos = nil
	}

	srv, err := server.NewServer(cfg, server.Deps{
		DB:          db,
		Redis:       redisClient,
		Meilisearch: meili,
		Photos:      photos,
	})
	if err != nil {
		logrus.Fatalf("failed to build server: %v", err)
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Run()
	}()

	select {
	case err := <-errs:
		if err != nil {
			logrus.Fatalf("server exited with error: %v", err)
		}
	case <-ctx.Done():
		logrus.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("could not stop server gracefully")
		}
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func setupLogging(cfg *config.Config) {
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.DebugLevel)
}

func meiliHost(host string) string {
	if strings.HasPrefix(host, "http") {
		return host
	}
	return "http://" + host + ":7700"
}

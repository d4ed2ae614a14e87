package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/VaibhavMttl21/ItemManager/internal/app"
	"github.com/VaibhavMttl21/ItemManager/internal/config"
	"github.com/VaibhavMttl21/ItemManager/internal/ratelimit"
	"github.com/VaibhavMttl21/ItemManager/internal/server"
	"github.com/VaibhavMttl21/ItemManager/internal/util"
	"github.com/VaibhavMttl21/ItemManager/pkg/mailer"
	"github.com/VaibhavMttl21/ItemManager/pkg/storage"
	"github.com/VaibhavMttl21/ItemManager/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init postgres store: %v", err)
	}
	objects, err := storage.NewMinioStore(
		cfg.MinioEndpoint,
		cfg.MinioAccessKey,
		cfg.MinioSecretKey,
		cfg.MinioBucket,
		cfg.MinioPublicBaseURL,
		cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}
	stager, err := storage.NewStager(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to init upload staging: %v", err)
	}
	notifier, err := mailer.NewSMTPMailer(mailer.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUsername,
		Password:    cfg.SMTPPassword,
		FromAddress: cfg.FromAddress,
		AdminEmail:  cfg.AdminEmail,
	})
	if err != nil {
		log.Fatalf("failed to init mailer: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:             dataStore,
		Objects:           objects,
		Stager:            stager,
		Notifier:          notifier,
		MaxFileBytes:      cfg.MaxFileBytes,
		MaxImages:         cfg.MaxImages,
		UploadConcurrency: cfg.UploadConcurrency,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	var createLimiter, enquiryLimiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		createLimiter, err = newLimiter(cfg, "create", cfg.CreateRateLimitPerMinute, 30)
		if err != nil {
			log.Fatalf("failed to init create limiter: %v", err)
		}
		enquiryLimiter, err = newLimiter(cfg, "enquiry", cfg.EnquiryRateLimitPerMinute, 10)
		if err != nil {
			log.Fatalf("failed to init enquiry limiter: %v", err)
		}
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		CreateLimiter:  createLimiter,
		EnquiryLimiter: enquiryLimiter,
		TrustedProxies: trustedProxies,
		MaxUploadBytes: int64(cfg.MaxImages+1)*cfg.MaxFileBytes + (1 << 20),
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("item server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func newLimiter(cfg config.FileConfig, name string, limit, fallback int) (*ratelimit.FixedWindowLimiter, error) {
	if limit <= 0 {
		limit = fallback
	}
	prefix := "items:ratelimit:" + name
	return ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
}

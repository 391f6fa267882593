package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"

	"pillid/internal/util"
	"pillid/pkg/fda"
	"pillid/pkg/reminder"
	"pillid/pkg/storage"
	"pillid/pkg/store"
	"pillid/pkg/vision"
	"pillid/services/api/internal/app"
	"pillid/services/api/internal/config"
	"pillid/services/api/internal/server"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	sessionTTL, _ := config.ParseDuration("sessionTTL", cfg.SessionTTL)
	leeway, _ := config.ParseDuration("jwtLeeway", cfg.JWTLeeway)
	imageURLTTL, _ := config.ParseDuration("imageURLTTL", cfg.ImageURLTTL)

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init postgres store: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to reach redis: %v", err)
	}
	cancel()

	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, sessionTTL, store.NewRedisTokenRevoker(rdb, sessionTTL), store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   leeway,
	})
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}

	visionClient, err := vision.NewClient(cfg.VisionAPIKey, cfg.VisionBaseURL)
	if err != nil {
		log.Fatalf("failed to init vision client: %v", err)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	} else {
		objects, err = storage.NewFileStore(cfg.DataDir)
	}
	if err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	}

	core, err := app.New(app.Config{
		Store:       db,
		Sessions:    sessions,
		Lookup:      fda.NewClient(cfg.OpenFDAAPIKey, cfg.OpenFDABaseURL),
		Vision:      visionClient,
		Objects:     objects,
		ImageURLTTL: imageURLTTL,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	httpServer, err := server.New(server.Config{
		App:                    core,
		Redis:                  rdb,
		AuthRateLimitPerMinute: cfg.AuthRateLimitPerMinute,
		ScanRateLimitPerMinute: cfg.ScanRateLimitPerMinute,
		MaxImageBytes:          cfg.MaxImageBytes,
		CORSOrigins:            cfg.CORSOrigins,
		TrustedProxies:         trusted,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	if cfg.ReminderSchedulerActive {
		sched := reminder.NewScheduler(core.Store(), reminder.LogNotifier{Logger: logger})
		if err := sched.Start(); err != nil {
			log.Fatalf("failed to start reminder scheduler: %v", err)
		}
		defer sched.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"scoutlink/internal/config"
	"scoutlink/internal/db"
	apihttp "scoutlink/internal/http"
	"scoutlink/internal/identity"
	"scoutlink/internal/realtime"
	"scoutlink/internal/repository"
	"scoutlink/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var (
		messageRepo repository.MessageRepository
		viewRepo    repository.ViewRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		messageRepo = repository.NewPgMessageRepository(pool)
		viewRepo = repository.NewPgViewRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not configured, using in-memory stores")
		messageRepo = repository.NewMemoryMessageRepository()
		viewRepo = repository.NewMemoryViewRepository()
	}

	var directory identity.Directory = &identity.MockDirectory{}
	if cfg.IdentityBaseURL != "" {
		directory = identity.NewHTTPClient(cfg.IdentityBaseURL, cfg.IdentityAPIKey, nil)
	} else {
		logger.Warn("IDENTITY_BASE_URL not configured, using mock directory")
	}

	memoryHub := realtime.NewMemoryNotifier(logger)
	var (
		notifier   realtime.Notifier   = memoryHub
		subscriber realtime.Subscriber = memoryHub
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, falling back to in-memory notifier", zap.Error(err))
		} else {
			rn := realtime.NewRedisNotifier(redisClient, logger)
			notifier = rn
			subscriber = rn
		}
		cancel()
	}

	messagingSvc := service.NewMessagingService(logger, messageRepo, viewRepo, directory, notifier, service.Limits{
		MaxContentLength:  cfg.MaxMessageLength,
		HistoryPageLimit:  cfg.HistoryPageLimit,
		InboxPageLimit:    cfg.InboxPageLimit,
		ViewUpdateRetries: cfg.ViewUpdateRetries,
	})

	if cfg.ReconcileIntervalSeconds > 0 {
		reconciler := service.NewReconciler(logger, messageRepo, viewRepo, directory,
			time.Duration(cfg.ReconcileIntervalSeconds)*time.Second)
		go reconciler.Run(ctx)
	}

	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMin)*time.Minute)
	msgHandler := apihttp.NewMessagingHandler(logger, messagingSvc, subscriber)
	router := apihttp.NewRouter(logger, jwtSvc, msgHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}

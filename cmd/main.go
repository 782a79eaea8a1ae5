package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rallymatch/backend/internal/api/handler"
	"rallymatch/backend/internal/chathub"
	"rallymatch/backend/internal/config"
	"rallymatch/backend/internal/identity"
	"rallymatch/backend/internal/localization"
	"rallymatch/backend/internal/logging"
	"rallymatch/backend/internal/matching"
	"rallymatch/backend/internal/messaging"
	"rallymatch/backend/internal/notify"
	"rallymatch/backend/internal/session"
	"rallymatch/backend/internal/storage"
	"rallymatch/backend/internal/storage/memstore"
	"rallymatch/backend/internal/swipe"

	"github.com/gin-gonic/gin"
)

// setupStorage opens the configured backend. The postgres driver also needs
// Redis for live message watches.
func setupStorage(ctx context.Context, cfg *config.Config, logger logging.Logger) (storage.Storage, func(), error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn(ctx, "using in-memory store, data is lost on exit")
		return memstore.New(), func() {}, nil
	}

	db, err := storage.OpenPostgres(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	rdb, err := storage.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}

	s := storage.NewStorageService(db, rdb, logger.With("component", "storage"))
	if err := s.Migrate(ctx); err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "database and redis connections established, migrations complete")

	cleanup := func() {
		_ = rdb.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return s, cleanup, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "starting rallymatch backend", "store", cfg.StoreDriver, "addr", cfg.HTTPAddr)

	store, cleanup, err := setupStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "storage setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var resolverOpts []session.Option
	resolverOpts = append(resolverOpts,
		session.WithLogger(logger.With("component", "session")),
		session.WithTimeout(cfg.AcceptTimeout),
	)
	if cfg.TelegramBotToken != "" {
		loc, err := localization.Default()
		if err != nil {
			logger.Error(ctx, "localization failed", "error", err)
			os.Exit(1)
		}
		bot, err := notify.NewBotSender(cfg.TelegramBotToken)
		if err != nil {
			logger.Error(ctx, "telegram bot failed", "error", err)
			os.Exit(1)
		}
		notifier := notify.NewNotifier(bot, store, loc, logger.With("component", "notify"))
		resolverOpts = append(resolverOpts, session.WithOnCreated(notifier.SessionCreated))
	} else {
		logger.Info(ctx, "TELEGRAM_BOT_TOKEN not set, match notifications disabled")
	}

	resolver := session.NewResolver(store, resolverOpts...)
	coordinator := messaging.NewCoordinator(store, messaging.WithLogger(logger.With("component", "messaging")))
	feed := matching.NewService(store, matching.RankOptions{Mutual: cfg.MutualLevels}, logger.With("component", "matching"))

	swipeLog := logger.With("component", "swipe")
	swipes := swipe.NewRegistry(resolver,
		swipe.WithLogger(swipeLog),
		swipe.WithPolicy(swipe.AcceptPolicy{
			Retries: uint64(cfg.AcceptRetries),
			Backoff: cfg.AcceptBackoff,
			Timeout: cfg.AcceptTimeout,
		}),
		swipe.WithOnResolveFailure(func(ctx context.Context, viewer, candidate string, err error) {
			swipeLog.Error(ctx, "match lost, user must retry from chats", "viewer", viewer, "candidate", candidate, "error", err)
		}),
	)

	go swipes.Run(ctx, cfg.SwipeIdle, cfg.SwipeIdle/2)

	hub := chathub.NewManagerService(coordinator, logger.With("component", "chathub"))
	go hub.Run(ctx)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	h := handler.NewHandler(handler.Handler{
		Hub:      hub,
		Store:    store,
		Feed:     feed,
		Swipes:   swipes,
		Sessions: resolver,
		Messages: coordinator,
		Tokens:   identity.NewJWTIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Log:      logger.With("component", "http"),
	})
	h.Routes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(ctx, "http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info(context.Background(), "server stopped")
}

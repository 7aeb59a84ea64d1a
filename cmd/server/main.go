package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/ai"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/api"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/api/middleware"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/config"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/emergency"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/handlers"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/push"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/realtime"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/store"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/whatsapp"
)

const heartbeatInterval = 30 * time.Second

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db := openStore(ctx, cfg, logger)
	defer db.Close()

	// Initialize Redis store
	var redisStore *store.RedisStore
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		redisClient = redisStore.Client()
		logger.Info().Msg("connected to Redis")
	}

	// Realtime fan-out
	hub := realtime.NewHub(logger)
	go hub.Heartbeat(ctx.Done(), heartbeatInterval)
	var events realtime.Publisher
	if redisStore != nil {
		events = realtime.NewRedisPublisher(redisStore)
		go realtime.Relay(ctx, redisStore, hub, logger)
	} else {
		events = realtime.NewLocalPublisher(hub)
	}

	// Push delivery: web dashboards always, mobile through FCM when configured
	notifiers := []push.Notifier{push.NewWebNotifier(events)}
	if cfg.FCMEnabled() {
		fcm, err := push.NewFCMNotifier(ctx, cfg.FCMProjectID, cfg.FCMCredentialsFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("FCM credentials invalid")
		}
		notifiers = append(notifiers, fcm)
		logger.Info().Str("project", cfg.FCMProjectID).Msg("FCM push enabled")
	}
	dispatcher := push.NewDispatcher(db, logger, notifiers...)

	deps := handlers.Deps{
		Store:             db,
		Redis:             redisStore,
		WhatsApp:          whatsapp.NewClient(cfg.WhatsAppGraphURL, cfg.WhatsAppAPIVersion, nil),
		Push:              dispatcher,
		Events:            events,
		Hub:               hub,
		Logger:            logger,
		VerifyToken:       cfg.WhatsAppVerifyToken,
		AppSecret:         cfg.WhatsAppAppSecret,
		DefaultPropertyID: cfg.DefaultPropertyID,
	}

	if cfg.MailEnabled() {
		deps.Mailer = emergency.NewSMTPMailer(emergency.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		logger.Warn().Msg("SMTP not configured, emergency emails disabled")
	}

	if cfg.AIEnabled() {
		completer, err := ai.New(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Str("provider", cfg.AIProvider).Msg("AI provider setup failed")
		}
		deps.Completer = completer
	} else {
		logger.Warn().Str("provider", cfg.AIProvider).Msg("AI provider has no API key, suggestions disabled")
	}

	if cfg.JWTSecret == "" {
		logger.Warn().Msg("SUPABASE_JWT_SECRET not set, authenticated routes will reject every request")
	}

	// Create router
	router := api.NewRouter(api.Options{
		Logger:  logger,
		Handler: handlers.NewHandler(deps),
		Auth:    middleware.NewAuthMiddleware(cfg.JWTSecret),
		Redis:   redisClient,
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		},
		CORSOrigins: cfg.CORSAllowedOrigins,
	})

	// Create server. WriteTimeout is left at zero for the websocket route;
	// AI calls can also take longer than a typical request.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting Airhost API server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	stop()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// openStore connects to PostgreSQL when DATABASE_URL is set and falls back
// to a local SQLite file otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) store.DataStore {
	if cfg.DatabaseURL == "" {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("sqlite open failed")
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite store")
		return sqliteStore
	}

	logger.Info().Msg("running database migrations...")
	if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Msg("migrations completed")

	pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	logger.Info().Msg("connected to PostgreSQL")
	return pgStore
}

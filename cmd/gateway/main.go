package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/api"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/config"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/gateway"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/queue"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/store"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize message store: Postgres, then SQLite, then in-memory
	var st store.MessageStore
	switch {
	case cfg.DatabaseURL != "":
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		st = pg
		logger.Info().Msg("connected to PostgreSQL")
	case cfg.SQLitePath != "":
		sq, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		st = sq
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite store")
	default:
		st = store.NewMemoryStore()
		logger.Warn().Msg("no database configured, messages will not survive restarts")
	}
	defer st.Close()

	// Initialize Redis cache (optional)
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Initialize durable queue transport
	var transport queue.Transport
	if cfg.NATSURL != "" {
		js, err := queue.NewJetStreamTransport(ctx, queue.JetStreamConfig{
			URL:           cfg.NATSURL,
			MaxDeliver:    cfg.QueueMaxDeliver,
			ReconnectWait: cfg.ReconnectWait,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("broker connection failed")
		}
		transport = js
	} else {
		transport = queue.NewMemoryTransport()
		logger.Warn().Msg("no broker configured, using in-process queue")
	}
	defer transport.Close()

	// Wire up the realtime core
	gw := gateway.NewGateway(st, redisStore, transport, gateway.Options{
		Room:         cfg.DefaultRoom,
		HistoryLimit: cfg.HistoryLimit,
		MaxAttempts:  cfg.QueueMaxDeliver,
	}, logger)

	// Start the pipeline consumer
	go func() {
		if err := gw.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("pipeline consumer stopped")
		}
	}()

	// Create router and server
	router := api.NewRouter(logger, st, redisStore, gw, cfg.DefaultRoom)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting chat gateway")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

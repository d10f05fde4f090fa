package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"uploadflow/internal/auth"
	"uploadflow/internal/config"
	"uploadflow/internal/db"
	"uploadflow/internal/metrics"
	"uploadflow/internal/realtime"
	"uploadflow/internal/s3"
	"uploadflow/internal/upload"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	uploadConfig, err := config.LoadUploadConfig()
	if err != nil {
		logger.Warn("upload config not loaded, using defaults", "error", err)
		uploadConfig = config.DefaultUploadConfig()
	}

	s3Client, err := s3.NewClient(ctx, cfg.S3Region, cfg.S3Bucket, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.S3Endpoint)
	if err != nil {
		log.Fatalf("Failed to create S3 client 🚨: %v", err)
	}

	var store upload.SessionStore
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database 🚨: %v", err)
		}
		defer pool.Close()
		store = upload.NewPostgresStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory session store")
		store = upload.NewMemoryStore()
	}

	hub := realtime.NewHub()
	tracker := upload.NewTracker(hub)
	service := upload.NewService(store, s3Client, tracker, uploadConfig, cfg.PublicBaseURL, logger)
	handler := upload.NewHandler(service, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(&auth.Config{APIKey: cfg.APIKey}))
		handler.Register(r)
		r.Get("/v1/events", realtime.SSEHandler(hub))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  5 * time.Minute, // chunk bodies can be large
		WriteTimeout: 0,               // SSE streams stay open
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server 🚀", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start 🚨: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server 🛑")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown 🚨: %v", err)
	}

	logger.Info("server exited")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

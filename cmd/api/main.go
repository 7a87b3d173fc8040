// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/config"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/handler"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/live"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/middleware"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/service"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/store"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "byte-buddy-talk", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	liveClient, err := live.Connect(live.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer liveClient.Close()

	// Open the store
	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to database", zap.Error(err))
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Error("failed to run migrations", zap.Error(err))
			os.Exit(1)
		}
		st = pg
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store; data will not survive restarts")
		st = store.NewMemoryStore()
	}
	defer st.Close()

	// Live update channel
	channel := live.NewChannel(liveClient, log)

	// Initialize services
	presenceSvc := service.NewPresenceService(st, channel, log)
	sessionSvc := service.NewSessionService(st, presenceSvc, cfg.JWTSecret, cfg.SessionTTL, log)
	roomSvc := service.NewRoomService(st, log)
	messageSvc := service.NewMessageService(st, channel, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(st, liveClient)
	authHandler := handler.NewAuthHandler(sessionSvc, log)
	userHandler := handler.NewUserHandler(st, log)
	roomHandler := handler.NewRoomHandler(roomSvc, log)
	messageHandler := handler.NewMessageHandler(messageSvc, log)
	streamHandler := handler.NewStreamHandler(st, channel, log)
	presenceHandler := handler.NewPresenceHandler(presenceSvc, sessionSvc, cfg.JWTSecret, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Public auth endpoints
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// The unload beacon authenticates via query token, not a header, so it
	// sits outside the bearer-auth subtree.
	r.Post("/api/v1/presence/offline", presenceHandler.Offline)

	// Authenticated API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret, sessionSvc))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/session", authHandler.Session)
		r.Get("/users", userHandler.List)
		r.Put("/presence", presenceHandler.Update)

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", roomHandler.List)
			r.Get("/stream", streamHandler.Directory)
			r.Post("/direct", roomHandler.ResolveDirect)
			r.Post("/group", roomHandler.CreateGroup)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
				r.Get("/stream", streamHandler.Room)
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

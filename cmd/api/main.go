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
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/birdtrack/support-platform/internal/blob"
	"github.com/birdtrack/support-platform/internal/bus"
	"github.com/birdtrack/support-platform/internal/config"
	"github.com/birdtrack/support-platform/internal/handler"
	"github.com/birdtrack/support-platform/internal/identity"
	"github.com/birdtrack/support-platform/internal/mailer"
	"github.com/birdtrack/support-platform/internal/middleware"
	"github.com/birdtrack/support-platform/internal/store"
	"github.com/birdtrack/support-platform/internal/support"
	"github.com/birdtrack/support-platform/internal/webhook"
	"github.com/birdtrack/support-platform/pkg/logger"
	"github.com/birdtrack/support-platform/pkg/tracing"
)

func main() {
	// Load configuration
	godotenv.Load()
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
		tp, err := tracing.InitTracer(ctx, "support-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to the database
	db, err := store.Open(cfg.DatabaseDSN, log)
	if err != nil {
		log.Error("failed to open database", zap.Error(err))
		os.Exit(1)
	}

	// Connect to NATS
	busClient, err := bus.Connect(bus.Config{
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
	defer busClient.Close()

	// Ensure the audit stream exists
	if err := busClient.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Collaborator clients
	mailClient := mailer.New(mailer.Config{
		BaseURL: cfg.MailAPIURL,
		APIKey:  cfg.MailAPIKey,
		From:    cfg.MailFrom,
	})
	webhookClient := webhook.New(cfg.IssueWebhookURL)
	blobClient := blob.New(blob.Config{
		BaseURL: cfg.StorageAPIURL,
		APIKey:  cfg.StorageAPIKey,
		Bucket:  cfg.StorageBucket,
	})

	// Core services
	resolver := identity.NewResolver(db)
	hub := support.NewHub(db, busClient, blobClient, mailClient, log)
	issues := support.NewIssues(db, busClient, mailClient, webhookClient, cfg.SupportEmail, cfg.CasePrefix, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(busClient, db)
	supportHandler := handler.NewSupportHandler(hub, db, resolver, log)
	streamHandler := handler.NewStreamHandler(db, busClient, log)
	adminHandler := handler.NewAdminHandler(db, log)
	issueHandler := handler.NewIssueHandler(issues, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Support-Session"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Support chat is open to anonymous visitors
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWTSecret))

			r.Route("/support", func(r chi.Router) {
				r.Post("/chat", supportHandler.Start)
				r.Delete("/chat", supportHandler.End)
				r.Post("/chat/messages", supportHandler.Send)

				r.Route("/conversations/{id}", func(r chi.Router) {
					r.Get("/messages", supportHandler.History)
					r.Get("/stream", streamHandler.Conversation)
				})
			})
		})

		// Issue reports need a resolvable reporter email
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Post("/issues", issueHandler.Submit)
		})

		// Admin panel
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RequireAdmin(resolver))

			r.Route("/admin", func(r chi.Router) {
				r.Get("/support/pending", adminHandler.Pending)
				r.Get("/support/conversations", adminHandler.Conversations)
				r.Get("/alerts/stream", streamHandler.Alerts)
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

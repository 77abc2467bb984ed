package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowdesk/internal/api"
	"flowdesk/internal/config"
	"flowdesk/internal/db"
	"flowdesk/internal/jobs"
	"flowdesk/internal/mailer"
	"flowdesk/internal/plan"
	"flowdesk/internal/pubsub"
	"flowdesk/internal/service"
	"flowdesk/internal/webhook"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Check for migrate command
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrations(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		os.Exit(0)
	}

	// Check for goose migrate command
	if len(os.Args) > 1 && os.Args[1] == "goose-migrate" {
		if err := runGooseMigrations(); err != nil {
			log.Fatalf("Goose migration failed: %v", err)
		}
		os.Exit(0)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Check for serve command (default)
	if len(os.Args) > 1 && os.Args[1] != "serve" {
		log.Fatalf("Unknown command: %s (use 'serve' or 'migrate')", os.Args[1])
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Database connection
	dbPool, err := db.NewPool(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Pub/sub bus
	bus := pubsub.New(rdb, logger)

	// Collaborators
	var mail mailer.Mailer
	if cfg.SMTPConfigured() {
		mail = mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	} else {
		mail = mailer.NewLogMailer(logger)
	}
	webhooks := webhook.NewSender(cfg.WebhookTimeout, logger)

	// Core services
	store := dbPool.Queries
	plans := plan.NewRegistry()
	lifecycleSvc := service.NewLifecycleService(store, plans, bus, logger)
	notifier := service.NewNotifier(store, mail, logger)
	matcher := service.NewMatcher(store, logger)
	executor := service.NewExecutor(store, lifecycleSvc, notifier, webhooks, logger)
	engine := service.NewEngine(matcher, executor, logger)
	ruleSvc := service.NewRuleService(store, matcher, logger)
	scanner := service.NewScanner(store, engine, logger)

	// Background jobs
	jobServer, jobClient := jobs.NewJobServer(cfg.RedisAddr, engine, scanner, notifier, logger)
	go func() {
		if err := jobServer.Start(jobs.Schedules{
			DueDateScan:  cfg.DueDateScanSpec,
			DailyDigest:  cfg.DailyDigestSpec,
			WeeklyDigest: cfg.WeeklyDigestSpec,
		}); err != nil {
			logger.Fatal("Job server failed", zap.Error(err))
		}
	}()
	defer jobServer.Stop()

	// Transitions commit first; automation runs out of band.
	lifecycleSvc.SetDispatcher(jobs.NewDispatcher(jobClient))

	// HTTP router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Mount API routes
	r.Mount("/v1", api.Routes(api.Dependencies{
		DB:        dbPool,
		Bus:       bus,
		Log:       logger,
		Lifecycle: lifecycleSvc,
		Rules:     ruleSvc,
		Notifier:  notifier,
		JWTSecret: cfg.JWTSecret,
	}))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	// Start server
	logger.Info("Starting server", zap.String("addr", cfg.Addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

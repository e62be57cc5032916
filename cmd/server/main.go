package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/richmond-dms/docflow/internal/ai"
	"github.com/richmond-dms/docflow/internal/api"
	"github.com/richmond-dms/docflow/internal/archive"
	"github.com/richmond-dms/docflow/internal/config"
	"github.com/richmond-dms/docflow/internal/db"
	"github.com/richmond-dms/docflow/internal/scheduler"
	"github.com/richmond-dms/docflow/internal/services"
	"github.com/richmond-dms/docflow/internal/workflow"
	"github.com/richmond-dms/docflow/pkg/logger"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv(config.ConfigPathEnv))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Environment, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	config.LogConfig(zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Initialize(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	if cfg.Database.Seed {
		if err := db.Seed(ctx, database, zapLogger); err != nil {
			zapLogger.Fatal("Failed to seed database", zap.Error(err))
		}
	}

	store, err := archive.New(ctx, cfg.Mongo, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect document archive", zap.Error(err))
	}

	metricsCollector := metrics.NewMetricsCollector()

	var completer ai.Completer
	if cfg.OpenRouter.APIKey != "" {
		completer = ai.NewOpenRouterClient(cfg.OpenRouter, zapLogger)
	} else {
		zapLogger.Warn("OPENROUTER_API_KEY not set, AI generation runs offline")
	}

	publishingService := services.NewPublishingService(database, store, zapLogger, metricsCollector)
	svc := api.Services{
		Documents:     services.NewDocumentService(database, zapLogger, metricsCollector),
		Users:         services.NewUserService(database, zapLogger, metricsCollector),
		Organizations: services.NewOrganizationService(database, zapLogger, metricsCollector),
		Feedback:      services.NewFeedbackService(database, zapLogger, metricsCollector),
		Workflow:      services.NewWorkflowService(database, workflow.Builtin(), zapLogger, metricsCollector),
		Publishing:    publishingService,
		Generator:     services.NewGeneratorService(database, completer, zapLogger, metricsCollector),
		Notifications: services.NewNotificationService(database, zapLogger, metricsCollector),
	}

	router := api.NewRouter(cfg, zapLogger, metricsCollector, svc)
	router.SetupRoutes()

	port := cfg.Server.Port
	server := router.Server(":" + port)

	jobs := scheduler.New(zapLogger, metricsCollector)
	if cfg.Scheduler.Enabled {
		jobs.Every("expire_approvals", cfg.Scheduler.ExpireApprovalsEvery, publishingService.ExpireApprovals)
		jobs.Every("publish_scheduled", cfg.Scheduler.PublishScheduledEvery, publishingService.PublishScheduled)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("Server started", zap.String("port", port), zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return jobs.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLogger.Error("Server exited with error", zap.Error(err))
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := store.Close(closeCtx); err != nil {
		zapLogger.Warn("Failed to close document archive", zap.Error(err))
	}
	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}
	zapLogger.Info("Server gracefully stopped")
}

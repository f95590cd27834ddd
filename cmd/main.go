package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/wordarena/arena-backend/config"
	"github.com/wordarena/arena-backend/db"
	"github.com/wordarena/arena-backend/handlers"
	"github.com/wordarena/arena-backend/live"
	"github.com/wordarena/arena-backend/models"
	"github.com/wordarena/arena-backend/repositories"
	api "github.com/wordarena/arena-backend/routes"
	"github.com/wordarena/arena-backend/services"
	"github.com/wordarena/arena-backend/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("timezone", cfg.CompetitionTimezone.String()),
		slog.Duration("reconcile_interval", cfg.ReconcileInterval))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Snapshot archiving is optional; without R2 credentials finalization
	// keeps only the database copy.
	var archiver storage.SnapshotArchiver
	if cfg.R2AccountID != "" {
		archiver, err = storage.NewCloudflareR2Archiver(storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 archiver", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 snapshot archiver initialized")
	} else {
		logger.Info("snapshot archiving disabled, no R2 credentials configured")
	}

	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	competitionRepo := repositories.NewPostgresCompetitionRepository(dbConn)
	participationRepo := repositories.NewPostgresParticipationRepository(dbConn)
	sessionRepo := repositories.NewPostgresSessionRepository(dbConn)
	rankingRepo := repositories.NewPostgresRankingRepository(dbConn)
	snapshotRepo := repositories.NewPostgresSnapshotRepository(dbConn)
	automationRepo := repositories.NewPostgresAutomationLogRepository(dbConn)
	inviteRepo := repositories.NewPostgresInviteRepository(dbConn)
	logger.Info("repositories initialized")

	loc := cfg.CompetitionTimezone
	competitionService := services.NewCompetitionService(competitionRepo, loc)
	rankingService := services.NewRankingService(
		competitionRepo, participationRepo, rankingRepo, userRepo,
		models.DefaultWeeklyPrizeTable, loc, wsHub, logger,
	)
	finalizationService := services.NewFinalizationService(
		competitionRepo, participationRepo, snapshotRepo, userRepo, automationRepo,
		rankingService, archiver, loc, wsHub, logger,
	)
	reconcilerService := services.NewReconcilerService(
		competitionRepo, automationRepo, finalizationService, loc, wsHub, logger,
	)
	participationService := services.NewParticipationService(
		competitionRepo, participationRepo, sessionRepo, userRepo, loc, wsHub, logger,
	)
	auditService := services.NewAuditService(
		competitionRepo, rankingRepo, sessionRepo, userRepo, automationRepo, loc, logger,
	)
	dashboardService := services.NewDashboardService(
		userRepo, competitionRepo, sessionRepo, rankingRepo, snapshotRepo, automationRepo,
	)
	inviteService := services.NewInviteService(inviteRepo, userRepo, logger)
	logger.Info("services initialized")

	// Background sweep: re-derive statuses on the configured interval.
	// Finalization hangs off the sweep when a window closes.
	go func() {
		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()
		logger.Info("status reconciliation scheduler started", slog.Duration("interval", cfg.ReconcileInterval))

		// Run once immediately at startup, then on ticker.
		if _, err := reconcilerService.ReconcileStatuses(context.Background()); err != nil {
			logger.Error("scheduler: initial sweep failed", slog.Any("error", err))
		}
		for range ticker.C {
			if _, err := reconcilerService.ReconcileStatuses(context.Background()); err != nil {
				logger.Error("scheduler: periodic sweep failed", slog.Any("error", err))
			}
		}
	}()

	competitionHandler := handlers.NewCompetitionHandler(competitionService)
	participationHandler := handlers.NewParticipationHandler(participationService)
	rankingHandler := handlers.NewRankingHandler(rankingService)
	inviteHandler := handlers.NewInviteHandler(inviteService)
	adminHandler := handlers.NewAdminHandler(
		reconcilerService, finalizationService, auditService, dashboardService, automationRepo,
	)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		competitionHandler,
		participationHandler,
		rankingHandler,
		inviteHandler,
		adminHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shut down gracefully")
	}
}

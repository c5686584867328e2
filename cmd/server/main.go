package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/framingham-risk-server/internal/api"
	"github.com/framingham-risk-server/internal/config"
	"github.com/framingham-risk-server/internal/database"
	"github.com/framingham-risk-server/internal/domain"
	"github.com/framingham-risk-server/internal/history"
	"github.com/framingham-risk-server/internal/notify"
	"github.com/framingham-risk-server/internal/repository"
	"github.com/framingham-risk-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Error("Server failed")
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()
	var serverOpts []api.ServerOption

	if cfg.History.Backend == domain.HistoryBackendPostgres {
		if err := runMigrations(ctx, configManager, logger); err != nil {
			return err
		}

		db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := repository.NewPredictionRepository(db.Pool, logger)
		serverOpts = append(serverOpts, api.WithAnalytics(repo))
		if cfg.History.Retention > 0 {
			go purgeLoop(ctx, repo, cfg.History.Retention, logger)
		}
	}

	store, err := history.Open(cfg.History, configManager.GetDatabaseURL())
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	scorerOpts := []service.Option{service.WithAsyncRecording(true)}
	if store != nil {
		scorerOpts = append(scorerOpts, service.WithRecorder(service.NewResilientRecorder(store, cfg.Breaker, logger)))
	}

	if cfg.Notify.Enabled {
		publisher, err := notify.NewRedisPublisher(ctx, cfg.Notify, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		scorerOpts = append(scorerOpts, service.WithPublisher(service.NewResilientPublisher(publisher, cfg.Breaker, logger)))
	}

	scorer := service.NewScoringService(logger, scorerOpts...)
	defer scorer.Wait()

	var hist api.PredictionHistory
	if store != nil {
		hist = store
	}
	server, err := api.NewServer(configManager, scorer, hist, logger, serverOpts...)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"history": cfg.History.Backend,
		"notify":  cfg.Notify.Enabled,
	}).Info("Starting Framingham risk server")

	return server.Start(ctx)
}

func runMigrations(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), configManager.GetDatabaseConfig().MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Up(ctx)
}

// purgeLoop deletes predictions older than retention once a day
func purgeLoop(ctx context.Context, repo *repository.PredictionRepository, retention time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		n, err := repo.PurgeBefore(ctx, time.Now().UTC().Add(-retention))
		if err != nil {
			logger.WithError(err).Warn("Failed to purge old predictions")
		} else if n > 0 {
			logger.WithField("deleted", n).Info("Purged old predictions")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

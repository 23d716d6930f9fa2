package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"lovemoney/internal/amqp"
	"lovemoney/internal/auth"
	"lovemoney/internal/cli"
	apphttp "lovemoney/internal/http"
	"lovemoney/internal/log"
	"lovemoney/internal/records"
	"lovemoney/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL"))

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Invalid configuration", err, log.FieldErrorType, log.ErrorTypeConfiguration)
	}
	loc, err := cfg.Location()
	if err != nil {
		cli.Fatal(logger, "Invalid timezone", err)
	}

	ctx, stop := cli.ShutdownContext()
	defer stop()

	store, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open store", err, log.FieldBackend, cfg.DataBackend)
	}
	if store.Cleanup != nil {
		defer func() {
			if err := store.Cleanup(); err != nil {
				logger.Error("Store cleanup failed", log.FieldError, err)
			}
		}()
	}

	summaries, stopCache := cli.NewSummaryCache(ctx, logger, cfg)
	defer stopCache()

	repo := records.NewRepository(store.Store, loc, logger)
	revisions := services.NewRevisions()

	var publisher services.EventPublisher
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		host, _ := os.Hostname()
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, host+"-"+uuid.NewString()[:8], logger)
		if err != nil {
			cli.Fatal(logger, "Failed to connect to AMQP", err)
		}
		defer events.Close()
		publisher = events
	}

	changes := services.NewChanges(revisions, publisher, logger)
	loader := services.NewLoader(repo, summaries, revisions, logger)

	if events != nil {
		go func() {
			err := events.ConsumeRecordsChanged(ctx, changes.Apply)
			if err != nil && ctx.Err() == nil {
				logger.WithComponent(log.ComponentAMQP).Error("Records changed consumer stopped", log.FieldError, err)
				stop()
			}
		}()
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Repo:      repo,
		Loader:    loader,
		View:      services.NewPeriodView(loader, logger),
		Mutations: services.NewMutations(repo, changes, logger),
		Forms:     services.NewForms(repo, changes),
		Dashboard: services.NewDashboard(repo, loader),
		Verifier:  auth.NewVerifier(cfg.AuthJWTSecret),
		Logger:    logger,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to build HTTP server", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	logger.Info("Starting lovemoney",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"cache", cfg.CacheBackend,
		"events", events != nil,
		"auth", cfg.AuthJWTSecret != "")

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", log.FieldError, err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldOperation, log.OpShutdown, log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/attachments"
	"fintrack/internal/auth"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/services"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	files, err := attachments.NewStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		logger.Error("Failed to initialize attachment store", applog.FieldError, err, "dir", cfg.UploadDir)
		os.Exit(1)
	}

	// Event publishing is optional. A nil *amqp.Client must not be stored in
	// the interface, so assign only when configured.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	var exporter services.SheetsExporter
	sheetsExporter, err := cli.NewSheetsExporter(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", applog.FieldError, err)
		os.Exit(1)
	}
	if sheetsExporter != nil {
		exporter = sheetsExporter
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	sessions := auth.NewSessionManager(repo, cfg.SessionSecret, cfg.SessionIdleTimeout)
	keys := auth.RegistrationKeys{Admin: cfg.AdminRegistrationKey, User: cfg.UserRegistrationKey}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		SecureCookies:      cfg.SecureCookies,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		TrustedProxies:     cfg.TrustedProxyCIDRs,
		MaxUploadBytes:     files.MaxBytes(),
	}, apphttp.Services{
		Auth:         services.NewAuthService(repo, sessions, keys),
		Transactions: services.NewTransactionService(repo, files, publisher, exporter),
		Categories:   services.NewCategoryService(repo),
		Planner:      services.NewPlannerService(repo),
		DB:           repo,
	}, logger)
	if err != nil {
		logger.Error("Failed to configure HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintrack server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/exescorp/expense-approval/internal/application/port"
	"github.com/exescorp/expense-approval/internal/application/service"
	"github.com/exescorp/expense-approval/internal/config"
	"github.com/exescorp/expense-approval/internal/currency"
	"github.com/exescorp/expense-approval/internal/infrastructure/persistence/repository"
	"github.com/exescorp/expense-approval/internal/infrastructure/persistence/sqlite"
	httpiface "github.com/exescorp/expense-approval/internal/interfaces/http"
	"github.com/exescorp/expense-approval/internal/report"
	"github.com/exescorp/expense-approval/pkg/database"
	"github.com/exescorp/expense-approval/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// Optional .env for local development
	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting expense approval service",
		zap.String("company", cfg.Company.Name),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	txManager := sqlite.NewDB(db.DB, logger)
	expenseRepo := repository.NewExpenseRepository(db.DB, txManager, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	sequenceRepo := repository.NewSequenceRepository(db.DB, txManager, logger)
	ruleRepo := repository.NewRuleRepository(db.DB, logger)

	// Services
	serviceLogger := utils.NewZapAdapter(logger)
	directoryService := service.NewDirectoryService(userRepo, sequenceRepo, serviceLogger)
	sequenceService := service.NewSequenceService(sequenceRepo, serviceLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	expenseService, err := service.NewExpenseService(
		ctx,
		expenseRepo,
		ruleRepo,
		directoryService,
		port.SystemClock{},
		serviceLogger,
	)
	if err != nil {
		logger.Fatal("Failed to initialize expense service", zap.Error(err))
	}

	// External collaborators
	converter := currency.NewConverter(currency.Config{
		APIBaseURL: cfg.Currency.APIBaseURL,
		Timeout:    cfg.Currency.Timeout,
		Retries:    cfg.Currency.Retries,
	}, logger)
	exporter := report.NewExporter(cfg.Company.Name, logger)

	// HTTP server
	handlers := httpiface.NewHandlers(
		expenseService,
		directoryService,
		sequenceService,
		converter,
		exporter,
		cfg.Company.Currency,
		serviceLogger,
	)
	server := httpiface.NewServer(httpiface.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, serviceLogger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// Command seed populates the directory with an initial set of users so a
// fresh deployment has managers and admins to route approvals through.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/exescorp/expense-approval/internal/config"
	"github.com/exescorp/expense-approval/internal/domain/entity"
	"github.com/exescorp/expense-approval/internal/infrastructure/persistence/repository"
	"github.com/exescorp/expense-approval/pkg/database"
	"github.com/exescorp/expense-approval/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{Level: "info", OutputPath: "stdout", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	users := []*entity.User{
		{ID: "admin1", Name: "Sarah Chen - Director", Email: "sarah.chen@exescorp.com", Role: entity.RoleAdmin},
		{ID: "admin2", Name: "Michael Torres - Finance", Email: "michael.torres@exescorp.com", Role: entity.RoleAdmin},
		{ID: "manager1", Name: "Jessica Park", Email: "jessica.park@exescorp.com", Role: entity.RoleManager, IsManagerApprover: true},
		{ID: "manager2", Name: "David Kim", Email: "david.kim@exescorp.com", Role: entity.RoleManager, IsManagerApprover: true},
		{ID: "employee1", Name: "Alex Johnson", Email: "alex.johnson@exescorp.com", Role: entity.RoleEmployee, ManagerID: "manager1"},
		{ID: "employee2", Name: "Emma Wilson", Email: "emma.wilson@exescorp.com", Role: entity.RoleEmployee, ManagerID: "manager2"},
	}

	userRepo := repository.NewUserRepository(db.DB, logger)
	ctx := context.Background()
	for _, user := range users {
		existing, err := userRepo.GetByID(ctx, user.ID)
		if err != nil {
			logger.Fatal("Failed to check user", zap.String("id", user.ID), zap.Error(err))
		}
		if existing != nil {
			logger.Info("User already present, skipping", zap.String("id", user.ID))
			continue
		}
		if err := userRepo.Create(ctx, user); err != nil {
			logger.Fatal("Failed to seed user", zap.String("id", user.ID), zap.Error(err))
		}
		logger.Info("Seeded user", zap.String("id", user.ID), zap.String("role", user.Role.String()))
	}
}

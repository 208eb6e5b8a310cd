package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"anoa.com/itdesk/internal/bootstrap"
	"anoa.com/itdesk/internal/config"
	"anoa.com/itdesk/internal/server"
	"anoa.com/itdesk/pkg/biztime"
	"anoa.com/itdesk/pkg/database"
	"anoa.com/itdesk/pkg/logger"
	"anoa.com/itdesk/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "itdesk",
		Short: "IT helpdesk ticketing server",
		RunE:  runServe,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Create the default super admin and test user",
			RunE:  runSeed,
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type runtime struct {
	cfg *config.Config
	log *slog.Logger
	db  *gorm.DB
}

func setup() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})

	if err := biztime.Init(cfg.DisplayTimezone); err != nil {
		return nil, err
	}

	db, err := database.Connect(database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Name:     cfg.DBName,
	}, log)
	if err != nil {
		return nil, err
	}

	return &runtime{cfg: cfg, log: log, db: db}, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(rt.db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	rt.log.Info("migration completed")
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	return bootstrap.SeedDefaultUsers(rt.db, rt.log)
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	cfg, log := rt.cfg, rt.log

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := bootstrap.Migrate(rt.db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if cfg.IsDevelopment() {
		if err := bootstrap.SeedDefaultUsers(rt.db, log); err != nil {
			return fmt.Errorf("failed to seed default users: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn("redis unreachable at startup", "error", err)
		}
	} else {
		log.Warn("REDIS_URL not set: sessions are not revocable and notifications are disabled")
	}

	fileStorage, err := newStorage(cfg)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg, rt.db, redisClient, fileStorage, log)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		return err
	}
	log.Info("server exited gracefully")
	return nil
}

func newStorage(cfg *config.Config) (storage.FileStorage, error) {
	switch cfg.StorageDriver {
	case "cloudinary":
		s, err := storage.NewCloudinaryStorage(cfg.CloudinaryUploadFolder)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cloudinary storage: %w", err)
		}
		return s, nil
	default:
		s, err := storage.NewLocalStorage(cfg.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		return s, nil
	}
}

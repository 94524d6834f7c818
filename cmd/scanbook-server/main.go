package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/scanbook/scanbook/internal/config"
	"github.com/scanbook/scanbook/internal/domain/catalog"
	"github.com/scanbook/scanbook/internal/domain/scheduling"
	"github.com/scanbook/scanbook/internal/platform/db"
	"github.com/scanbook/scanbook/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scanbook-server",
		Short: "Scanner slot booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(generateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a backup or write a forward migration that reverts the change.")
			return nil
		},
	})

	return cmd
}

// generateCmd runs one slot generation pass and exits. Useful from cron or
// an operator shell when the API is not reachable.
func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate slots for the upcoming window",
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			start, _ := cmd.Flags().GetString("start")
			examinationIDs, _ := cmd.Flags().GetStringSlice("examination")
			deviceIDs, _ := cmd.Flags().GetStringSlice("device")

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.GenerationDays
			}

			startDate := time.Now().UTC()
			if start != "" {
				startDate, err = time.Parse(catalog.DateLayout, start)
				if err != nil {
					return fmt.Errorf("invalid --start date %q: %w", start, err)
				}
			}

			params := scheduling.GenerateParams{StartDate: startDate, Days: days}
			for _, raw := range examinationIDs {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid --examination id %q: %w", raw, err)
				}
				params.ExaminationIDs = append(params.ExaminationIDs, id)
			}
			for _, raw := range deviceIDs {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid --device id %q: %w", raw, err)
				}
				params.DeviceIDs = append(params.DeviceIDs, id)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			poolCache, err := newPoolCache(cfg)
			if err != nil {
				return err
			}

			deviceRepo := catalog.NewDeviceRepoPG(pool)
			examRepo := catalog.NewExaminationRepoPG(pool)
			slotRepo := scheduling.NewSlotRepoPG(pool)
			release := scheduling.NewRelease(slotRepo, deviceRepo, poolCache, cfg.PromotionRetries, logger)
			generator := scheduling.NewGenerator(deviceRepo, examRepo, slotRepo, release, logger)

			report, err := generator.Run(ctx, params)
			if err != nil {
				return err
			}

			fmt.Printf("Created %d slot(s), skipped %d device-day(s).\n", report.SlotsCreated, report.SkippedDeviceDays)
			for _, msg := range report.Errors {
				fmt.Printf("  config error: %s\n", msg)
			}
			return nil
		},
	}
	cmd.Flags().Int("days", 0, "Number of days to generate (default GENERATION_DAYS)")
	cmd.Flags().String("start", "", "Start date YYYY-MM-DD (default today)")
	cmd.Flags().StringSlice("examination", nil, "Restrict to examination ID (repeatable)")
	cmd.Flags().StringSlice("device", nil, "Restrict to device ID (repeatable)")
	return cmd
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// newPoolCache returns the Redis-backed release pool cache when REDIS_URL is
// set, otherwise the in-process one. The cache is advisory, so a single-node
// deployment runs fine without Redis.
func newPoolCache(cfg *config.Config) (scheduling.PoolCache, error) {
	if cfg.RedisURL == "" {
		return scheduling.NewMemoryPool(), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return scheduling.NewRedisPool(redis.NewClient(opts)), nil
}

func runServer() error {
	// Logger
	logger := newLogger()

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Release pool cache
	poolCache, err := newPoolCache(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure pool cache")
	}
	if cfg.RedisURL != "" {
		logger.Info().Msg("using redis pool cache")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	// API group
	apiV1 := e.Group("/api/v1")

	// Rate limiting middleware
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Catalog: devices, working hours, examinations
	deviceRepo := catalog.NewDeviceRepoPG(pool)
	examRepo := catalog.NewExaminationRepoPG(pool)
	catalogSvc := catalog.NewService(deviceRepo, examRepo)
	catalogHandler := catalog.NewHandler(catalogSvc)
	catalogHandler.RegisterRoutes(apiV1)

	// Scheduling: slots, release pool, bookings
	slotRepo := scheduling.NewSlotRepoPG(pool)
	apptRepo := scheduling.NewAppointmentRepoPG(pool)
	release := scheduling.NewRelease(slotRepo, deviceRepo, poolCache, cfg.PromotionRetries, logger)
	generator := scheduling.NewGenerator(deviceRepo, examRepo, slotRepo, release, logger)
	booking := scheduling.NewBooking(slotRepo, apptRepo, examRepo, release, poolCache, logger)
	sweeper := scheduling.NewSweeper(slotRepo, deviceRepo, release, poolCache, logger)
	schedulingSvc := scheduling.NewService(slotRepo, apptRepo, generator, release, booking, sweeper, poolCache, logger)
	schedulingHandler := scheduling.NewHandler(schedulingSvc)
	schedulingHandler.RegisterRoutes(apiV1)

	// Background sweeper repairs groups left without an open slot and
	// rebuilds the pool cache.
	if err := sweeper.Start(ctx, cfg.SweepSchedule); err != nil {
		logger.Fatal().Err(err).Msg("failed to start sweeper")
	}
	defer sweeper.Stop()

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kanishkgandecha/medilink/internal/config"
	"github.com/kanishkgandecha/medilink/internal/domain/doctor"
	"github.com/kanishkgandecha/medilink/internal/domain/inventory"
	"github.com/kanishkgandecha/medilink/internal/domain/patient"
	"github.com/kanishkgandecha/medilink/internal/domain/prescription"
	"github.com/kanishkgandecha/medilink/internal/domain/scheduling"
	"github.com/kanishkgandecha/medilink/internal/domain/vitals"
	"github.com/kanishkgandecha/medilink/internal/domain/ward"
	"github.com/kanishkgandecha/medilink/internal/platform/auth"
	"github.com/kanishkgandecha/medilink/internal/platform/db"
	"github.com/kanishkgandecha/medilink/internal/platform/lock"
	"github.com/kanishkgandecha/medilink/internal/platform/metrics"
	"github.com/kanishkgandecha/medilink/internal/platform/middleware"
	"github.com/kanishkgandecha/medilink/internal/platform/notification"
	"github.com/kanishkgandecha/medilink/internal/platform/redisclient"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "medilink-server",
		Short: "MediLink hospital back-office API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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
			return withMigrator(cmd, dir, func(ctx context.Context, m *db.Migrator, schema string) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(cmd, dir, func(ctx context.Context, m *db.Migrator, schema string) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Migration status for schema: %s\n", schema)
				printStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func withMigrator(cmd *cobra.Command, dir string, fn func(context.Context, *db.Migrator, string) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, dir), cfg.DBSchema)
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Logger
	logger := newLogger(cfg.Env)

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Redis is optional; without it locks and notifications stay in-process.
	healthDeps := map[string]db.Pinger{}
	var locker lock.Locker = lock.NewLocal()
	var publisher notification.Publisher
	if cfg.RedisURL != "" {
		rc, err := redisclient.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rc.Close()
		locker = lock.NewRedis(rc.Client(), cfg.LockTTL)
		publisher = notification.NewRedisPublisher(rc.Client())
		healthDeps["redis"] = rc
		logger.Info().Msg("connected to redis")
	}

	notifier := notification.NewManager(emailSender(cfg), cfg.AlertEmail, publisher, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Unauthenticated endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, healthDeps))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// API group
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(authMiddleware(cfg))
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))
	apiV1.Use(middleware.Audit(logger))

	tx := db.NewTxManager(pool)

	// Repositories
	patientRepo := patient.NewRepo(pool)
	doctorRepo := doctor.NewRepo(pool)
	inventoryRepo := inventory.NewRepo(pool)
	appointmentRepo := scheduling.NewAppointmentRepo(pool)
	wardRepo := ward.NewRepo(pool)
	prescriptionRepo := prescription.NewRepo(pool)
	vitalsRepo := vitals.NewRepo(pool)

	// Records
	patient.NewHandler(patient.NewService(patientRepo)).RegisterRoutes(apiV1)
	doctor.NewHandler(doctor.NewService(doctorRepo)).RegisterRoutes(apiV1)
	inventory.NewHandler(inventory.NewService(inventoryRepo, tx, notifier, logger)).RegisterRoutes(apiV1)

	// Appointment Scheduler
	clinicLoc, err := cfg.Location()
	if err != nil {
		return err
	}
	scheduler := scheduling.NewScheduler(appointmentRepo, patientRepo, doctorRepo, clinicLoc, logger)
	scheduling.NewHandler(scheduling.NewService(appointmentRepo, patientRepo, doctorRepo, scheduler, logger)).RegisterRoutes(apiV1)

	// Ward Allocation Engine
	allocator := ward.NewAllocator(wardRepo, patientRepo, tx, locker, notifier, logger)
	ward.NewHandler(ward.NewService(wardRepo, patientRepo, allocator, logger)).RegisterRoutes(apiV1)

	// Prescription Safety Checker
	checker := prescription.NewChecker(prescription.DefaultInteractionTable(), inventoryRepo, logger)
	prescription.NewHandler(prescription.NewService(prescriptionRepo, patientRepo, doctorRepo, checker, logger)).RegisterRoutes(apiV1)

	// Vital readings
	vitals.NewHandler(vitals.NewService(vitalsRepo, patientRepo, notifier, logger)).RegisterRoutes(apiV1)

	notification.NewHandler(notifier).RegisterRoutes(apiV1)

	stopStats := make(chan struct{})
	go reportPoolStats(pool, 15*time.Second, stopStats)
	defer close(stopStats)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
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
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// authMiddleware picks the dev identity shim in development and JWT
// verification everywhere else.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		return auth.DevAuthMiddleware()
	}
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// emailSender returns nil unless SMTP and an alert recipient are configured.
func emailSender(cfg *config.Config) notification.EmailSender {
	if !cfg.EmailEnabled() {
		return nil
	}
	return notification.NewSMTPSender(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.AlertEmail,
	})
}

func reportPoolStats(pool *pgxpool.Pool, every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.RecordDBConnections(pool.Stat().TotalConns())
		case <-stop:
			return
		}
	}
}

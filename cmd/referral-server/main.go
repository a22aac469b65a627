package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carebridge/carebridge/internal/config"
	"github.com/carebridge/carebridge/internal/domain/assignment"
	"github.com/carebridge/carebridge/internal/domain/hospital"
	"github.com/carebridge/carebridge/internal/domain/patient"
	"github.com/carebridge/carebridge/internal/domain/profile"
	"github.com/carebridge/carebridge/internal/domain/public"
	"github.com/carebridge/carebridge/internal/domain/referral"
	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/internal/platform/authz"
	"github.com/carebridge/carebridge/internal/platform/db"
	"github.com/carebridge/carebridge/internal/platform/metrics"
	"github.com/carebridge/carebridge/internal/platform/middleware"
	"github.com/carebridge/carebridge/internal/platform/sandbox"
	"github.com/carebridge/carebridge/internal/platform/webhook"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "referral-server",
		Short: "Hospital referral coordination API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the referral API server",
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
			schema, _ := cmd.Flags().GetString("schema")
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
			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
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
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with synthetic referral-network data",
		RunE: func(cmd *cobra.Command, args []string) error {
			hospitals, _ := cmd.Flags().GetInt("hospitals")
			patients, _ := cmd.Flags().GetInt("patients")
			referrals, _ := cmd.Flags().GetInt("referrals")
			seed, _ := cmd.Flags().GetInt64("seed")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			seedCfg := sandbox.DefaultSeedConfig()
			if hospitals > 0 {
				seedCfg.Hospitals = hospitals
			}
			if patients > 0 {
				seedCfg.PatientsPerHospital = patients
			}
			if referrals > 0 {
				seedCfg.Referrals = referrals
			}
			seedCfg.Seed = seed

			seeder := sandbox.NewSeeder(seedCfg)
			result, err := seeder.Generate()
			if err != nil {
				return fmt.Errorf("generate seed data: %w", err)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			inserted, err := seeder.Apply(ctx, pool)
			if err != nil {
				return fmt.Errorf("apply seed data: %w", err)
			}

			fmt.Printf("Generated %d rows (%d hospitals, %d departments, %d profiles, %d patients, %d referrals).\n",
				result.TotalRows, result.Hospitals, result.Departments, result.Profiles,
				result.Patients, result.Referrals)
			fmt.Printf("Inserted %d new row(s); the rest already existed.\n", inserted)
			fmt.Printf("Dev admin profile: %s\n", auth.DevUserID)
			return nil
		},
	}
	cmd.Flags().Int("hospitals", 0, "Number of hospitals to generate")
	cmd.Flags().Int("patients", 0, "Patients per hospital")
	cmd.Flags().Int("referrals", 0, "Number of referrals to generate")
	cmd.Flags().Int64("seed", 1, "Random seed; 0 for a different network every run")
	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPoolStats(pool)
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware. Ordering matters: recovery wraps everything,
	// request IDs exist before logging, and input hygiene runs before any
	// handler sees the request.
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Sanitize())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(metrics.Middleware())

	// Authentication. Both modes share the skipper that keeps health,
	// metrics, and the public tracking endpoint reachable without a token.
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		}))
	}

	// Resolve the caller's profile into an Actor for policy decisions.
	e.Use(authz.Middleware(authz.NewResolver(pool)))
	e.Use(middleware.Audit(logger))

	// Health and metrics.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// Authenticated API.
	api := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	policy := authz.NewEngine()

	// Profile routes mount directly on the API group: provisioning must
	// work for authenticated callers who have no profile row yet.
	profileSvc := profile.NewService(profile.NewRepo(pool, policy), policy)
	profile.NewHandler(profileSvc).RegisterRoutes(api)

	// Everything else requires a resolved actor.
	fenced := api.Group("", authz.RequireActor())

	hospitalSvc := hospital.NewService(hospital.NewRepo(pool, policy), policy)
	hospital.NewHandler(hospitalSvc).RegisterRoutes(fenced)

	patientSvc := patient.NewService(patient.NewRepo(pool, policy), policy, pool)
	patient.NewHandler(patientSvc).RegisterRoutes(fenced)

	referralSvc := referral.NewService(referral.NewRepo(pool, policy), policy, pool)
	referral.NewHandler(referralSvc).RegisterRoutes(fenced)

	assignmentSvc := assignment.NewService(assignment.NewRepo(pool, policy), policy)
	assignment.NewHandler(assignmentSvc).RegisterRoutes(fenced)

	// Webhook administration and event fan-out.
	webhookManager := webhook.NewManager(webhook.NewPGStore(pool), webhook.WithLogger(logger))
	referralSvc.SetEventSink(newWebhookSink(webhookManager, logger))
	webhookGroup := api.Group("/webhooks", authz.RequireActor(), auth.RequireRole(authz.RoleAdmin))
	webhook.NewHandler(webhookManager).RegisterRoutes(webhookGroup)

	// Public tracking gateway: no auth, fixed projection, tighter limits.
	publicRateCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.PublicRateLimitRPS,
		BurstSize:         cfg.PublicRateLimitBurst,
	}
	if publicRateCfg.RequestsPerSecond <= 0 {
		publicRateCfg = middleware.DefaultRateLimitConfig()
	}
	pub := e.Group("/public", middleware.RateLimit(publicRateCfg))
	publicSvc := public.NewService(public.NewRepo(pool))
	public.NewHandler(publicSvc).RegisterRoutes(pub)

	// Graceful shutdown.
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
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

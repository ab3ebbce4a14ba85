package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-events-backend/config"
	_ "go-events-backend/docs" // Important for Swagger
	"go-events-backend/internal/delivery/http/middleware"
	v1 "go-events-backend/internal/delivery/http/v1"
	"go-events-backend/internal/domain"
	"go-events-backend/internal/repository/gotrue"
	"go-events-backend/internal/repository/localauth"
	"go-events-backend/internal/repository/memory"
	"go-events-backend/internal/repository/postgres"
	redisrepo "go-events-backend/internal/repository/redis"
	"go-events-backend/internal/usecase"
	"go-events-backend/pkg/auth"
	"go-events-backend/pkg/database"
	"go-events-backend/pkg/logger"
	"go-events-backend/pkg/metrics"
	"go-events-backend/pkg/redis"
	"go-events-backend/pkg/request"
	"go-events-backend/pkg/security"
	"go-events-backend/pkg/supabase"
	"go-events-backend/pkg/validation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const serviceName = "events-backend"

// @title           Events Backend API
// @version         1.0
// @description     Session gating, onboarding and OTP verification for the events app.
// @host            localhost:8080
// @BasePath        /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	root := &cobra.Command{
		Use:           "api",
		Short:         "Events app backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP API", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Apply database migrations and exit", RunE: runMigrate},
	)

	if err := root.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger.Init(serviceName, cfg.AppEnv, cfg.LogLevel)

	if cfg.DBUrl == "" {
		return errors.New("DATABASE_URL is required for migrations")
	}
	if err := database.ApplyMigrations(cfg.DBUrl); err != nil {
		return err
	}
	logger.Log.Info("Migrations applied")
	return nil
}

// redisPinger adapts *goredis.Client to usecase.Pinger.
type redisPinger struct {
	rdb *goredis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// 2. Setup Logger
	logger.Init(serviceName, cfg.AppEnv, cfg.LogLevel)
	logger.Log.Info("Starting events backend", "port", cfg.Port, "otp_provider", cfg.OTPProvider)
	if cfg.UsingPlaceholder {
		logger.Log.Warn("Hosted backend credentials missing, using placeholder pair")
	}

	secLogger := security.NewSecurityLogger(serviceName, cfg.AppEnv)
	defer func() { _ = secLogger.Sync() }()

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	health := map[string]usecase.Pinger{"database": nil, "redis": nil}

	// 4. Setup Database
	if cfg.DBUrl != "" {
		if err := database.ApplyMigrations(cfg.DBUrl); err != nil {
			logger.Log.Error("Failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}
	dbPool, err := database.NewPostgresConnection(ctx, cfg.DBUrl)
	if err != nil {
		logger.Log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	health["database"] = dbPool

	// 5. Redis (optional)
	var (
		otpStore domain.OTPStateStore = memory.NewOTPStore(nil)
		limiter                       = middleware.NewRateLimiter(nil, secLogger)
	)
	rdb, err := redis.Connect(ctx, redis.Config{URL: cfg.UpstashRedisURL, Password: cfg.UpstashRedisPassword})
	switch {
	case err == nil:
		defer rdb.Close()
		otpStore = redisrepo.NewOTPStore(rdb)
		limiter = middleware.NewRateLimiter(rdb, secLogger)
		health["redis"] = redisPinger{rdb: rdb}
	case errors.Is(err, redis.ErrNotConfigured):
		logger.Log.Warn("Redis not configured, OTP state is per process")
	default:
		logger.Log.Error("Redis connection failed, OTP state is per process", "error", err)
	}

	// 6. Hosted backend client
	reqCfg := request.DefaultConfig()
	reqCfg.Timeout = cfg.UpstreamTimeout
	reqCfg.MaxTimeout = cfg.UpstreamMaxTimeout
	reqCfg.MaxRetries = cfg.UpstreamMaxRetries
	reqClient := request.New(reqCfg, nil)
	reqClient.OnRetry(func(attempt int, err error) {
		m.UpstreamRetries.Inc()
		logger.Log.Warn("Retrying hosted backend call", "attempt", attempt, "error", err)
	})
	sb := supabase.New(cfg.SupabaseUrl, cfg.SupabaseKey, cfg.SupabaseServiceKey, reqClient)

	var gateway domain.AuthGateway = gotrue.NewGateway(sb)
	if cfg.OTPProvider == "local" {
		local, err := localauth.NewGateway(cfg.SupabaseJWTSecret)
		if err != nil {
			logger.Log.Error("Local OTP provider misconfigured", "error", err)
			os.Exit(1)
		}
		logger.Log.Warn("OTP_PROVIDER=local: codes are logged, not texted")
		gateway = local
	}

	// 7. Setup Repositories
	profileRepo := postgres.NewProfileRepository(dbPool)
	pollRepo := postgres.NewPollRepository(dbPool)

	// 8. Setup UseCases
	validate := validation.New()
	otpUC := usecase.NewOTPUsecase(gateway, otpStore, validate, usecase.OTPOptions{
		ResendWindow: time.Duration(cfg.OTPResendSeconds) * time.Second,
		Metrics:      m,
		Security:     secLogger,
	})
	sessionUC := usecase.NewSessionUsecase(gateway, secLogger)
	onboardingUC := usecase.NewOnboardingUsecase(profileRepo, sb, cfg.AvatarBucket, validate, m)
	pollUC := usecase.NewPollUsecase(pollRepo, validate, m)
	healthUC := usecase.NewHealthUsecase(health)

	// 9. Setup Auth Verifier (HS256 secret + JWKS)
	verifier := auth.NewVerifier(cfg.SupabaseJWTSecret, auth.NewProvider(sb.JWKSURL()))

	// 10. Setup Router
	router := v1.NewRouter(v1.RouterDeps{
		OTPUC:        otpUC,
		SessionUC:    sessionUC,
		OnboardingUC: onboardingUC,
		PollUC:       pollUC,
		HealthUC:     healthUC,
		Verifier:     verifier,
		RateLimiter:  limiter,
		Security:     secLogger,
		Metrics:      m,
		Gatherer:     registry,
		Config:       cfg,
	})

	// 11. Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Listen failed", "error", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", "error", err)
	}

	logger.Log.Info("Server exiting")
	return nil
}

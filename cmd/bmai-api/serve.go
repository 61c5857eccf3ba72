package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bmai-api/internal/auth"
	"bmai-api/internal/config"
	"bmai-api/internal/database"
	"bmai-api/internal/http/client"
	"bmai-api/internal/http/handler"
	"bmai-api/internal/integrations/authadmin"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/ratelimit"
	"bmai-api/internal/repo"
	"bmai-api/internal/service"
	"bmai-api/internal/session"
	"bmai-api/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the Building Manager AI HTTP server with all middlewares and observability`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(cfg.OTELServiceName, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info(ctx, "starting bmai api",
		zap.String("version", telemetry.ServiceVersion),
		zap.String("service", cfg.OTELServiceName),
		zap.String("env", cfg.AppEnv),
	)

	// Run database migrations
	log.Info(ctx, "running database migrations")
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info(ctx, "migrations completed successfully")

	// Initialize telemetry strictly as opt-in
	var tracerProvider *sdktrace.TracerProvider
	var meterProvider *sdkmetric.MeterProvider
	var metrics *telemetry.Metrics

	if cfg.OTELEnabled {
		log.Info(ctx, "initializing telemetry", zap.String("endpoint", cfg.OTELExporterEndpoint))

		tp, err := telemetry.InitTracer(ctx, cfg.OTELServiceName, cfg.OTELExporterEndpoint, cfg.OTELSamplingRatio)
		if err != nil {
			log.Warn(ctx, "failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			tracerProvider = tp
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
					log.Error(shutdownCtx, "failed to shutdown tracer provider", zap.Error(err))
				}
			}()
		}

		mp, m, err := telemetry.InitMetrics(ctx, cfg.OTELServiceName, cfg.OTELExporterEndpoint)
		if err != nil {
			log.Warn(ctx, "failed to initialize metrics, continuing without metrics", zap.Error(err))
		} else {
			meterProvider = mp
			metrics = m
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := meterProvider.Shutdown(shutdownCtx); err != nil {
					log.Error(shutdownCtx, "failed to shutdown meter provider", zap.Error(err))
				}
			}()
		}

		log.Info(ctx, "telemetry initialized", zap.Bool("tracing", tracerProvider != nil), zap.Bool("metrics", metrics != nil))
	} else {
		log.Info(ctx, "telemetry disabled")
	}

	// Connect to database
	log.Info(ctx, "connecting to database")
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolOptions{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Info(ctx, "database connected")

	// Connect to Redis
	log.Info(ctx, "connecting to redis")
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info(ctx, "redis connected")

	// JWT (JWT_HS256_SECRET must be Base64-encoded)
	resolver, err := buildKeyResolver(cfg)
	if err != nil {
		return err
	}
	log.Info(ctx, "JWT authentication initialized",
		zap.Strings("allowed_issuers", cfg.GetAllowedIssuers()),
		zap.Int("clock_skew_seconds", cfg.JWTClockSkewSeconds),
	)

	// Initialize repositories
	buildingRepo := repo.NewBuildingRepository(pool)
	profileRepo := repo.NewProfileRepository(pool)
	manualRepo := repo.NewManualRepository(pool)
	serviceRequestRepo := repo.NewServiceRequestRepository(pool)
	auditRepo := repo.NewAuditRepo(pool)

	// Sessions
	registry := telemetry.NewRegistry()
	var observer session.Observer = registry.Sessions
	if metrics != nil {
		observer = telemetry.FanOut(registry.Sessions, metrics)
	}
	sessions := session.NewManager(session.Deps{
		Resolver: session.NewResolver(profileRepo, log),
		Catalog:  session.NewSharedCatalog(buildingRepo),
		Store:    session.NewRedisSelectionStore(redisClient, cfg.SelectionTTL),
		Observer: observer,
		Log:      log,
	}, session.ManagerConfig{
		IdleTimeout:    cfg.SessionIdleTimeout,
		RefreshWorkers: cfg.SessionRefreshWorkers,
	})
	defer sessions.CloseAll()

	// Invitations are only available when the auth provider admin API is configured
	var identity service.IdentityProvisioner
	if cfg.InvitesEnabled() {
		identity = authadmin.NewClient(cfg.AuthAdminURL, cfg.AuthServiceRoleKey, client.NewExternalHTTPClient(10*time.Second))
		log.Info(ctx, "user invitations enabled")
	} else {
		log.Warn(ctx, "AUTH_ADMIN_URL or AUTH_SERVICE_ROLE_KEY not set, user invitations disabled")
	}

	// Initialize services
	buildingService := service.NewBuildingService(buildingRepo, auditRepo, sessions, log)
	userService := service.NewUserService(profileRepo, buildingRepo, identity, auditRepo, sessions, log)
	manualService := service.NewManualService(manualRepo, log)
	serviceRequestService := service.NewServiceRequestService(serviceRequestRepo, auditRepo, log)

	// Initialize handlers
	meHandler := handler.NewMeHandler(sessions)
	manualHandler := handler.NewManualHandler(manualService)
	serviceRequestHandler := handler.NewServiceRequestHandler(serviceRequestService)
	buildingHandler := handler.NewBuildingHandler(buildingService)
	userHandler := handler.NewUserHandler(userService)
	debugHandler := handler.NewDebugHandler(cfg.AppEnv, pool)

	// Initialize rate limiter
	var rateLimitCounter metric.Int64Counter
	if metrics != nil {
		rateLimitCounter = metrics.RateLimitRejections
	}
	rateLimiter := ratelimit.NewRedisRateLimiter(redisClient, rateLimitCounter)
	idempotencyStore := repo.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)

	// Build router
	r := buildRouter(RouterDeps{
		Cfg:                   cfg,
		Log:                   log,
		Resolver:              resolver,
		Sessions:              sessions,
		RateLimiter:           rateLimiter,
		Idempotency:           idempotencyStore,
		Metrics:               metrics,
		Registry:              registry,
		Pool:                  pool,
		Redis:                 redisClient,
		MeHandler:             meHandler,
		ManualHandler:         manualHandler,
		ServiceRequestHandler: serviceRequestHandler,
		BuildingHandler:       buildingHandler,
		UserHandler:           userHandler,
		DebugHandler:          debugHandler,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runSessionSweeper(sweepCtx, log, sessions, cfg.SessionSweepInterval)

	go func() {
		log.Info(ctx, "starting http server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info(ctx, "shutdown signal received, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown error", zap.Error(err))
	}

	log.Info(shutdownCtx, "shutdown complete")
	return nil
}

// buildKeyResolver registers one HS256 validator per allowed issuer, all
// sharing the same secret.
func buildKeyResolver(cfg *config.Config) (*auth.KeyResolver, error) {
	secretBytes, err := base64.StdEncoding.DecodeString(cfg.JWTHS256Secret)
	if err != nil {
		return nil, fmt.Errorf("JWT_HS256_SECRET must be valid Base64-encoded: %w", err)
	}
	if len(secretBytes) < 32 {
		return nil, fmt.Errorf("JWT_HS256_SECRET decoded bytes must be at least 32 bytes (256 bits), got %d bytes", len(secretBytes))
	}

	allowedIssuers := cfg.GetAllowedIssuers()
	if len(allowedIssuers) == 0 {
		return nil, fmt.Errorf("JWT_ALLOWED_ISSUERS must contain at least one valid issuer")
	}

	keyStore := auth.NewKeyStore()
	clockSkew := time.Duration(cfg.JWTClockSkewSeconds) * time.Second
	resolver := auth.NewKeyResolver(allowedIssuers, []string{cfg.JWTAudience})
	for _, issuer := range allowedIssuers {
		keyStore.LoadHS256Key(issuer, auth.DefaultKID, secretBytes)
		resolver.RegisterValidator(issuer, auth.NewHS256Validator(keyStore, issuer, clockSkew))
	}
	return resolver, nil
}

// runSessionSweeper evicts idle sessions until ctx is cancelled.
func runSessionSweeper(ctx context.Context, log *logger.Logger, sessions *session.Manager, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if evicted := sessions.Sweep(now); evicted > 0 {
				log.Info(ctx, "idle sessions evicted",
					logger.Module("session"),
					logger.Action("sweep"),
					zap.Int("evicted", evicted),
				)
			}
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"servicecrm/internal/analytics"
	"servicecrm/internal/caching"
	"servicecrm/internal/config"
	"servicecrm/internal/handlers"
	"servicecrm/internal/jobs"
	"servicecrm/internal/jobs/background"
	"servicecrm/internal/logger"
	"servicecrm/internal/metrics"
	"servicecrm/internal/middleware"
	"servicecrm/internal/repositories"
	"servicecrm/internal/services"
	"servicecrm/internal/session"
	"servicecrm/pkg/database"
)

const version = "1.0.0"

// stores bundles the repositories of the configured driver.
type stores struct {
	tenants     repositories.TenantRepository
	memberships repositories.MembershipRepository
	orders      repositories.OrderRepository
	pool        *pgxpool.Pool
}

func (s *stores) ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

func openStores(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *zap.Logger) (*stores, error) {
	seq := repositories.SequenceConfig{
		Prefix:     cfg.OrderNumberPrefix,
		MaxRetries: cfg.SequenceMaxRetries,
		OnRetry:    m.SequenceRetries.Inc,
	}

	if cfg.StoreDriver == "memory" {
		log.Warn("Using in-memory store; data is lost on restart")
		mem := repositories.NewMemoryStore(seq)
		return &stores{
			tenants:     mem.Tenants(),
			memberships: mem.Memberships(),
			orders:      mem.Orders(),
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}
	return &stores{
		tenants:     repositories.NewTenantRepo(pool),
		memberships: repositories.NewMembershipRepo(pool),
		orders:      repositories.NewOrderRepo(pool, seq),
		pool:        pool,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "servicecrm")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Storage
	st, err := openStores(ctx, cfg, m, log)
	if err != nil {
		return err
	}
	defer database.ClosePool(st.pool, log)

	// Redis
	redisClient := caching.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	defer redisClient.Close()
	cacheSvc := caching.NewRedisCacheService(redisClient, log)

	// MinIO
	minioSvc, err := services.NewMinioService(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		return fmt.Errorf("init minio: %w", err)
	}
	bucketCtx, cancelBucket := context.WithTimeout(ctx, 10*time.Second)
	if err := minioSvc.EnsureBucketExists(bucketCtx, cfg.ExportBucket); err != nil {
		log.Warn("Export bucket unavailable; exports will fail until it is reachable",
			zap.String("bucket", cfg.ExportBucket), zap.Error(err))
	}
	cancelBucket()

	// Services
	actions := services.NewActionLogger(log)
	access := services.NewAccessChecker(st.tenants, st.memberships, actions, m)
	resolver := session.NewTenantResolver(cacheSvc, st.tenants, access, cfg.SessionTTL, log)

	tenantSvc := services.NewTenantService(st.tenants, st.memberships, access, resolver, cacheSvc, actions, m, log)
	orderSvc := services.NewOrderService(st.orders, access, cacheSvc, actions, m, log)
	demoSvc := services.NewDemoDataService(st.orders, access, cacheSvc, actions, m, log)
	exportSvc := services.NewExportService(st.orders, access, minioSvc, cfg.ExportBucket, actions, log)
	analyticsSvc := analytics.NewAnalyticsService(st.orders, access, cacheSvc, cfg.AnalyticsCacheTTL, m, log)

	// Authentication
	var jwks *keyfunc.JWKS
	if cfg.JWKSURL != "" {
		jwks, err = middleware.NewJWKS(ctx, cfg.JWKSURL, log)
		if err != nil {
			return fmt.Errorf("load jwks: %w", err)
		}
		defer jwks.EndBackground()
	}
	jwtSecret := cfg.JWTSecret
	if jwks == nil && jwtSecret == "" {
		jwtSecret = random.String(32)
		log.Warn("JWT_SECRET not set; using a generated secret, tokens will not survive a restart")
	}
	jwtConfig := middleware.NewJWTConfig(jwtSecret, jwks)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handlers.ErrorHandler(log)

	e.Use(echoMiddleware.Recover())
	e.Use(middleware.RequestAudit(log))
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.ContextTimeout(cfg.StoreTimeout))

	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	// Health endpoints (no auth required)
	health := handlers.NewHealthHandlers(version, map[string]handlers.HealthCheckFunc{
		"database": st.ping,
		"redis":    cacheSvc.Ping,
	}, "database")
	e.GET("/health", health.HealthCheck)
	e.GET("/health/ready", health.ReadinessCheck)
	e.GET("/health/live", health.LivenessCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// API routes
	v1 := e.Group("/v1")
	v1.Use(versionMiddleware.VersionHeader("v1"))
	v1.Use(middleware.Authenticate(jwtConfig))
	v1.Use(middleware.ActiveTenant(resolver, log))

	routes := handlers.Handlers{
		ServiceCenters: handlers.NewServiceCenterHandlers(tenantSvc),
		Orders:         handlers.NewOrderHandlers(orderSvc, exportSvc),
		Analytics:      handlers.NewAnalyticsHandlers(analyticsSvc),
		DemoData:       handlers.NewDemoDataHandlers(demoSvc),
	}
	limiter := middleware.WithFallback(cacheSvc, middleware.NewLocalRateLimiter(), log)
	routes.Register(v1, middleware.RateLimit(limiter, "expensive", cfg.ExpensiveRateLimit, time.Minute, log))

	// Background jobs
	refresher := jobs.NewAnalyticsRefreshService(analyticsSvc, st.tenants, log)
	scheduler, err := background.NewJobScheduler(refresher, cfg.AnalyticsRefreshInterval, log)
	if err != nil {
		return err
	}
	scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting",
			zap.String("version", version),
			zap.Int("port", cfg.Port),
			zap.String("store", cfg.StoreDriver))
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			_ = scheduler.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := scheduler.Stop(); err != nil {
		log.Error("Scheduler shutdown failed", zap.Error(err))
	}
	log.Info("Server stopped")
	return nil
}

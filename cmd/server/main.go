package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/accounts"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/api/handler"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/config"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/events"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/health"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/ledger"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/logging"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/session"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/trips"
)

func main() {
	cfg, err := config.Load(config.New("server"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Database ─────────────────────────────────────────────────────────────
	db, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("connected to postgres")

	// ── Identity ledger ──────────────────────────────────────────────────────
	probes := []health.Probe{{Name: "postgres", Check: db.Ping}}

	snap, snapProbe, closeSnap, err := openSnapshot(ctx, cfg.Ledger, db, logger)
	if err != nil {
		return err
	}
	defer closeSnap()
	if snapProbe != nil {
		probes = append(probes, *snapProbe)
	}

	idLedger, err := ledger.Open(ctx, snap, logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	idLedger.SetMetricsRecord(handler.RecordLedgerEvent)
	st := idLedger.Stats()
	logger.Info("identity ledger ready",
		zap.String("backend", cfg.Ledger.Backend),
		zap.Int("records", st.Count),
	)

	// ── Events ───────────────────────────────────────────────────────────────
	var pubs []events.Publisher
	if cfg.Events.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		pubs = append(pubs, np)
		logger.Info("publishing identity events to NATS", zap.String("url", cfg.Events.NATSURL))
	}
	if len(cfg.Events.WebhookURLs) > 0 {
		wp := events.NewWebhookPublisher(cfg.Events.WebhookURLs, cfg.Events.WebhookSecret, cfg.Events.SubjectPrefix, logger)
		wp.SetMetricsRecord(handler.RecordWebhookDelivery)
		pubs = append(pubs, wp)
		logger.Info("publishing identity events to webhooks", zap.Int("endpoints", len(cfg.Events.WebhookURLs)))
	}
	if len(pubs) == 0 {
		pubs = append(pubs, events.NewNoopPublisher(logger))
		logger.Info("event publisher: noop (set events.nats_url or events.webhook_urls to enable)")
	}
	pub := events.Multi(pubs...)
	defer pub.Close()

	// ── Dependency health ────────────────────────────────────────────────────
	checker := health.New(probes, health.Config{}, logger)
	checker.SetMetricsRecord(handler.RecordDependencyProbe)
	checker.SetTransitionHook(func(ctx context.Context, dep string, healthy bool) {
		ev := events.DependencyHealth{Dependency: dep, Healthy: healthy, At: time.Now().UTC()}
		if err := pub.Publish(ctx, events.SubjectDependencyHealth, ev); err != nil {
			logger.Warn("publish dependency health", zap.Error(err))
		}
	})
	checker.CheckAll(ctx)
	go checker.Start(ctx)

	// ── Wire up layers ───────────────────────────────────────────────────────
	tokens, err := session.NewIssuer(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return fmt.Errorf("session issuer: %w", err)
	}

	accountSvc := accounts.NewService(accounts.NewRepository(db), logger)
	tripSvc := trips.NewService(trips.NewRepository(db), accountSvc, idLedger, pub, logger)

	authHandler := handler.NewAuthHandler(accountSvc, tokens, logger)
	authHandler.SetCookieSecure(cfg.Session.CookieSecure)
	tripHandler := handler.NewTripHandler(tripSvc, tokens, logger)
	ledgerHandler := handler.NewLedgerHandler(idLedger, cfg.Server.AdminSecret, logger)

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", handler.AdminSecretHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Session-Token"},
		AllowCredentials: !containsWildcard(cfg.Server.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))
	router.Use(handler.SecurityHeaders())
	router.Use(handler.BodyLimit(1 << 20))

	if rps := cfg.Server.RateLimitRPS; rps > 0 {
		router.Use(handler.RateLimiter(ctx, rps, int(rps*2)+1))
	}

	router.Use(handler.RequestLogger(logger))
	router.Use(handler.PrometheusMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ledgerRecords": idLedger.Count()})
	})
	router.GET("/readyz", handler.ReadinessHandler(checker))
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	authHandler.Register(v1)
	tripHandler.Register(v1)
	ledgerHandler.Register(v1)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP listen: %w", err)
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

// openSnapshot builds the snapshot backend named by cfg.Backend. Backends with
// their own connection also return a readiness probe and a func releasing it.
func openSnapshot(ctx context.Context, cfg config.LedgerConfig, db *pgxpool.Pool, logger *zap.Logger) (ledger.Snapshot, *health.Probe, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.BackendPostgres:
		return ledger.NewPostgresSnapshot(db, logger), nil, noop, nil
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("parse ledger.redis_url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close() //nolint:errcheck
			return nil, nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		probe := &health.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}}
		return ledger.NewRedisSnapshot(client, cfg.RedisPrefix), probe, func() { client.Close() }, nil //nolint:errcheck
	case config.BackendMemory:
		logger.Warn("ledger backend is memory; anchored identities are lost on restart")
		return ledger.NewMemorySnapshot(), nil, noop, nil
	default:
		return ledger.NewFileSnapshot(afero.NewOsFs(), cfg.Path), nil, noop, nil
	}
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/gemini"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/httpserver"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/metrics"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/notify"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/postgres"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/redis"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/stripe"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/supabase"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/websocket"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/app"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/config"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/logging"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/version"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

const (
	roleMemoryTTL        = 10 * time.Second
	roleEvictionInterval = time.Minute
	leaderLockTTL        = 30 * time.Second
	shutdownTimeout      = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, reg prometheus.Registerer) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracer := postgres.NewMetricsTracer(metrics.NewDBMetrics(reg))
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, tracer)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config, external *metrics.ExternalMetrics) *goredis.Client {
	breaker := redis.NewCircuitBreakerHook(func(state float64) {
		external.SetBreakerState("redis", state)
	})
	client, err := redis.NewClient(ctx, cfg.RedisURL, breaker)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func runGracefulShutdown(srv *httpserver.Server, stopBackground context.CancelFunc, hub *websocket.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopBackground()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting", "service", info.Service, "version", info.Version, "env", cfg.AppEnv, "port", cfg.Port)

	registry := metrics.NewRegistry()
	external := metrics.NewExternalMetrics(registry)

	pool := setupDB(cfg, registry)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg, external)
	defer func() { _ = redisClient.Close() }()

	// Background workers stop when bgCtx is cancelled during shutdown.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// Repositories
	profiles := postgres.NewProfileRepo(pool)
	specialists := postgres.NewSpecialistRepo(pool)
	appointments := postgres.NewAppointmentRepo(pool)
	messages := postgres.NewMessageRepo(pool)
	memberships := postgres.NewMembershipRepo(pool)
	payments := postgres.NewPaymentRepo(pool)

	// Role resolution: memory + Redis cache, cross-instance announcements
	roleCache := redis.NewRoleCacheRepo(redisClient, clock, roleMemoryTTL, metrics.NewRoleCacheMetrics(registry))
	stopEviction := roleCache.StartEvictionTimer(roleEvictionInterval)
	defer stopEviction()

	roleEvents := redis.NewRoleEventBus(redisClient, roleCache)
	go roleEvents.Start(bgCtx)
	roles := app.NewRoleLookup(profiles, roleCache, roleEvents)

	// External services
	authProvider := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, clock, external)
	paymentGateway := stripe.NewClient(cfg.StripeBaseURL, cfg.StripeSecretKey, clock, external)
	webhooks := stripe.NewWebhookVerifier(cfg.StripeWebhookSecret)
	generator, err := gemini.NewClient(context.Background(), cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, clock, external)
	if err != nil {
		slog.Error("Failed to create Gemini client", "error", err)
		os.Exit(1)
	}
	notifier := notify.NewLogNotifier(slog.Default())

	// Live message delivery
	hub := websocket.NewHub(cfg.MaxWebSocketConnections, metrics.NewWebSocketMetrics(registry))
	stream := websocket.NewServer(hub, websocket.NewCheckOrigin(cfg.AppURL, !cfg.IsProduction()))
	messageBus := redis.NewMessageBus(redisClient)
	go messageBus.Start(bgCtx, hub.Deliver)

	// Application services
	authSvc := app.NewAuthService(authProvider, profiles, specialists, roles, clock)
	bookingSvc := app.NewBookingService(appointments, specialists, profiles, payments, paymentGateway, notifier, clock)
	messagingSvc := app.NewMessagingService(messages, appointments, roles, messageBus, clock)
	billingSvc := app.NewBillingService(paymentGateway, payments, memberships, appointments, profiles, app.BillingConfig{
		AppURL:       cfg.AppURL,
		PriceBasic:   cfg.StripePriceBasic,
		PricePremium: cfg.StripePricePremium,
	}, clock)
	matchingSvc := app.NewMatchingService(specialists, generator)
	specialistSvc := app.NewSpecialistService(specialists)
	adminSvc := app.NewAdminService(profiles, specialists, appointments, memberships, payments, roles)

	leader := app.NewLeaderElector(redisClient, instanceID(), app.ReminderLockKey, leaderLockTTL)
	reminders := app.NewReminderScheduler(
		appointments, profiles, notifier, redis.NewReminderLedger(redisClient), leader,
		clock, cfg.ReminderInterval, cfg.ReminderLeadTime, metrics.NewReminderMetrics(registry),
	)
	go reminders.Run(bgCtx)

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Critical: true, Check: pool.Ping},
		{Name: "redis", Critical: true, Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		{Name: "stripe", Check: paymentGateway.CheckHealth},
		{Name: "gemini", Check: generator.CheckHealth},
	}

	srv := httpserver.NewServer(cfg, httpserver.Services{
		Auth:        authSvc,
		Roles:       roles,
		Booking:     bookingSvc,
		Messaging:   messagingSvc,
		Billing:     billingSvc,
		Matching:    matchingSvc,
		Specialists: specialistSvc,
		Admin:       adminSvc,
		Webhooks:    webhooks,
		Stream:      stream,
	}, clock, httpserver.Observability{
		Access:  metrics.NewAccessMetrics(registry),
		HTTP:    metrics.NewHTTPMetrics(registry),
		Handler: metrics.Handler(registry),
	}, healthChecks)

	done := runGracefulShutdown(srv, stopBackground, hub)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}


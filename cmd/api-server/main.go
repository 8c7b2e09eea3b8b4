package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/carebook-scheduling/internal/api"
	"github.com/hackgods/carebook-scheduling/internal/appointment"
	"github.com/hackgods/carebook-scheduling/internal/config"
	"github.com/hackgods/carebook-scheduling/internal/db"
	"github.com/hackgods/carebook-scheduling/internal/directory"
	"github.com/hackgods/carebook-scheduling/internal/notify"
	"github.com/hackgods/carebook-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/carebook-scheduling/internal/redis"
	"github.com/hackgods/carebook-scheduling/internal/schedule"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

var version = "dev"

// backend is the storage the server runs on.
type backend struct {
	store     appointment.Store
	directory interface {
		appointment.Directory
		api.ProviderDirectory
		schedule.ProviderLister
	}
	checks  []api.Check
	closeFn func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server", "env", cfg.Env)
	logger.Info("api-server starting up", "http_port", cfg.HTTPPort, "store_backend", cfg.StoreBackend)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("storage setup failed", "error", err)
		os.Exit(1)
	}
	defer be.closeFn()

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	var locker redisclient.Locker
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			// Bookings stay correct on the database claim alone.
			logger.Warn("redis unavailable, slot lock disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					logger.Warn("error closing redis", "error", err)
				}
			}()
			locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
			be.checks = append(be.checks, redisCheck(rdb))
			logger.Info("connected to Redis", "addr", cfg.RedisAddr)
		}
	}

	emailSender, err := notify.NewEmailSender(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("email sender setup failed", "provider", cfg.EmailProvider, "error", err)
		os.Exit(1)
	}
	dispatcher := notify.NewDispatcher(emailSender, notify.NewLogSMSSender(logger), logger, bookingMetrics)

	svc := appointment.NewService(be.store, be.directory, locker, cfg,
		appointment.WithNotifier(dispatcher),
		appointment.WithLogger(logger),
		appointment.WithMetrics(bookingMetrics),
	)

	if cfg.StoreBackend == config.StoreBackendMemory {
		roller := schedule.NewRoller(be.store.Slots(), be.directory, cfg.SlotWindowDays,
			schedule.WithRollerLogger(logger),
			schedule.WithRollerMetrics(bookingMetrics),
		)
		go roller.Run(rootCtx, cfg.WorkerInterval)
	}

	router := api.NewRouter(api.RouterConfig{
		Service:     svc,
		Directory:   be.directory,
		Checks:      be.checks,
		Logger:      logger,
		HTTPMetrics: httpMetrics,
		Metrics:     promhttp.Handler(),
		RateLimit:   api.RateLimit{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
		BookingRate: api.RateLimit{RPS: cfg.BookingRateLimitRPS, Burst: cfg.BookingRateLimitBurst},
		SuggestRate: api.RateLimit{RPS: cfg.SuggestRateLimitRPS, Burst: cfg.SuggestRateLimitBurst},
		TrustProxy:  cfg.TrustProxy,
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func openBackend(ctx context.Context, cfg config.Config, logger *logging.Logger) (*backend, error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return &backend{
			store:     appointment.NewMemoryStore(),
			directory: directory.DefaultCatalog(),
			closeFn:   func() {},
		}, nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to Postgres")

	return &backend{
		store:     appointment.NewPgStore(pool, cfg.DBLockTimeout),
		directory: directory.NewPgDirectory(pool),
		checks: []api.Check{{
			Name:     "postgres",
			Required: true,
			Ping:     pool.Ping,
		}},
		closeFn: pool.Close,
	}, nil
}

func redisCheck(rdb *redis.Client) api.Check {
	return api.Check{
		Name: "redis",
		Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
}

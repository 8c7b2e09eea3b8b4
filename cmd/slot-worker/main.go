package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
	"github.com/hackgods/carebook-scheduling/internal/config"
	"github.com/hackgods/carebook-scheduling/internal/db"
	"github.com/hackgods/carebook-scheduling/internal/directory"
	"github.com/hackgods/carebook-scheduling/internal/observability/metrics"
	"github.com/hackgods/carebook-scheduling/internal/schedule"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

// slot-worker keeps the rolling window of bookable cells filled.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	if cfg.StoreBackend != config.StoreBackendPostgres {
		logging.Default().Error("slot-worker needs STORE_BACKEND=postgres")
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "slot-worker", "env", cfg.Env)
	logger.Info("slot-worker starting up", "interval", cfg.WorkerInterval, "window_days", cfg.SlotWindowDays)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to Postgres")

	store := appointment.NewPgStore(pool, cfg.DBLockTimeout)
	roller := schedule.NewRoller(store.Slots(), directory.NewPgDirectory(pool), cfg.SlotWindowDays,
		schedule.WithRollerLogger(logger),
		schedule.WithRollerMetrics(metrics.NewBookingMetrics(prometheus.DefaultRegisterer)),
	)

	roller.Run(rootCtx, cfg.WorkerInterval)
	logger.Info("slot-worker stopped")
}

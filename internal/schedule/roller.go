package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
	"github.com/hackgods/carebook-scheduling/internal/observability/metrics"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

type ProviderLister interface {
	ProviderIDs(ctx context.Context) ([]int64, error)
}

// Roller keeps the slot grid populated for a rolling window of weekdays.
// Existing cells, booked or not, are left untouched.
type Roller struct {
	slots     appointment.SlotStore
	providers ProviderLister
	days      int
	times     []string
	logger    *logging.Logger
	metrics   *metrics.BookingMetrics
	now       func() time.Time
}

type RollerOption func(*Roller)

func WithRollerLogger(l *logging.Logger) RollerOption {
	return func(r *Roller) {
		r.logger = l
	}
}

func WithRollerMetrics(m *metrics.BookingMetrics) RollerOption {
	return func(r *Roller) {
		r.metrics = m
	}
}

func WithRollerClock(now func() time.Time) RollerOption {
	return func(r *Roller) {
		r.now = now
	}
}

func NewRoller(slots appointment.SlotStore, providers ProviderLister, days int, opts ...RollerOption) *Roller {
	r := &Roller{
		slots:     slots,
		providers: providers,
		days:      days,
		times:     DefaultTimes,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Default()
	}
	return r
}

// RollOnce inserts any missing cells of the window and returns how many
// were created.
func (r *Roller) RollOnce(ctx context.Context) (int, error) {
	ids, err := r.providers.ProviderIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list providers: %w", err)
	}

	cells := Cells(ids, Weekdays(r.now(), r.days), r.times)
	n, err := r.slots.EnsureSlots(ctx, cells)
	if err != nil {
		return n, fmt.Errorf("ensure slots: %w", err)
	}
	r.metrics.AddSlotsGenerated(n)
	return n, nil
}

const DefaultInterval = time.Hour

// Run rolls once immediately and then on every tick until ctx is done.
// A non-positive interval falls back to DefaultInterval.
func (r *Roller) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		r.logger.Warn("invalid roll interval, using default", "interval", interval, "default", DefaultInterval)
		interval = DefaultInterval
	}
	r.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("slot roller stopping")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Roller) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	n, err := r.RollOnce(runCtx)
	if err != nil {
		r.logger.Error("slot roll failed", "error", err)
		return
	}
	r.logger.Info("slot roll complete", "created", n, "days", r.days, "duration", time.Since(start))
}

package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
	"github.com/hackgods/carebook-scheduling/internal/config"
	"github.com/hackgods/carebook-scheduling/internal/db"
	"github.com/hackgods/carebook-scheduling/internal/directory"
	"github.com/hackgods/carebook-scheduling/internal/schedule"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

// seed loads the reference providers and appointment types, adds
// SEED_EXTRA_PROVIDERS generated providers and fills the slot window.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("service", "seed")
	logger.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	providers := directory.ReferenceProviders()
	extra := 0
	if v := os.Getenv("SEED_EXTRA_PROVIDERS"); v != "" {
		if extra, err = strconv.Atoi(v); err != nil || extra < 0 {
			logger.Error("invalid SEED_EXTRA_PROVIDERS", "value", v)
			os.Exit(1)
		}
	}
	providers = append(providers, fakeProviders(providers, extra)...)

	dir := directory.NewPgDirectory(pool)
	inserted, err := dir.Seed(ctx, providers, directory.ReferenceAppointmentTypes())
	if err != nil {
		logger.Error("seed directory", "error", err)
		os.Exit(1)
	}
	logger.Info("directory seeded", "providers", len(providers), "new_providers", inserted)

	store := appointment.NewPgStore(pool, cfg.DBLockTimeout)
	roller := schedule.NewRoller(store.Slots(), dir, cfg.SlotWindowDays, schedule.WithRollerLogger(logger))
	created, err := roller.RollOnce(ctx)
	if err != nil {
		logger.Error("generate slots", "error", err)
		os.Exit(1)
	}

	logger.Info("seed complete", "slots_created", created, "window_days", cfg.SlotWindowDays)
}

// fakeProviders invents n providers that reuse the reference specialties
// and locations so search and filters have realistic spread.
func fakeProviders(ref []appointment.Provider, n int) []appointment.Provider {
	if n == 0 || len(ref) == 0 {
		return nil
	}

	var specialties, locations, addresses []string
	for _, p := range ref {
		specialties = append(specialties, p.Specialty)
		locations = append(locations, p.Location)
		addresses = append(addresses, p.Address)
	}

	out := make([]appointment.Provider, 0, n)
	for i := range n {
		first := gofakeit.FirstName()
		last := gofakeit.LastName()
		loc := gofakeit.Number(0, len(locations)-1)
		specialty := gofakeit.RandomString(specialties)

		out = append(out, appointment.Provider{
			FirstName:            first,
			LastName:             last,
			Title:                gofakeit.RandomString([]string{"MD", "DO"}),
			Specialty:            specialty,
			Phone:                fmt.Sprintf("(555) %03d-%04d", gofakeit.Number(200, 999), gofakeit.Number(0, 9999)),
			Email:                fmt.Sprintf("%s.%s.%d@carebook.health", strings.ToLower(first), strings.ToLower(last), i+1),
			Location:             locations[loc],
			Address:              addresses[loc],
			Bio:                  fmt.Sprintf("Dr. %s practices %s at %s.", last, specialty, locations[loc]),
			Rating:               math.Round(gofakeit.Float64Range(3.8, 5.0)*10) / 10,
			ReviewCount:          gofakeit.Number(5, 400),
			AcceptingNewPatients: gofakeit.Bool(),
		})
	}
	return out
}

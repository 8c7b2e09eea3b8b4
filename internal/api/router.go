package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hackgods/carebook-scheduling/internal/observability/metrics"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

type RouterConfig struct {
	Service     BookingService
	Directory   ProviderDirectory
	Checks      []Check
	Logger      *logging.Logger
	HTTPMetrics *metrics.HTTPMetrics
	Metrics     http.Handler
	RateLimit   RateLimit
	BookingRate RateLimit
	SuggestRate RateLimit
	TrustProxy  bool
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger, cfg.HTTPMetrics))
	r.Use(middleware.Recoverer)
	r.Use(BodyLimitMiddleware)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	appts := &appointmentHandler{svc: cfg.Service, directory: cfg.Directory, logger: logger}
	providers := &providerHandler{svc: cfg.Service, directory: cfg.Directory, logger: logger}
	bookingLimiter := NewIPRateLimiter(cfg.BookingRate)
	suggestLimiter := NewIPRateLimiter(cfg.SuggestRate)

	r.Route("/api", func(r chi.Router) {
		r.Use(NewIPRateLimiter(cfg.RateLimit).Middleware)

		r.Route("/appointments", func(r chi.Router) {
			r.With(bookingLimiter.Middleware).Post("/", appts.book)
			r.Get("/", appts.find)
			r.Get("/{id}", appts.get)
			r.Patch("/{id}/cancel", appts.cancel)
			r.Patch("/{id}/reschedule", appts.reschedule)
		})

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", providers.list)
			r.Get("/specialties", providers.specialties)
			r.Get("/{id}", providers.get)
			r.Get("/{id}/slots", providers.slots)
		})

		r.Get("/appointment-types", providers.appointmentTypes)
		r.With(suggestLimiter.Middleware).Post("/ai/suggest", suggestHandler)
	})

	return r
}

package api

import (
	"context"
	"net/http"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

// ProviderDirectory is the read side of the provider and type catalog.
type ProviderDirectory interface {
	Provider(ctx context.Context, id int64) (*appointment.Provider, error)
	Search(ctx context.Context, q, specialty string) ([]appointment.Provider, error)
	Specialties(ctx context.Context) ([]string, error)
	AppointmentTypes(ctx context.Context) ([]appointment.AppointmentType, error)
}

type providerHandler struct {
	svc       BookingService
	directory ProviderDirectory
	logger    *logging.Logger
}

func (h *providerHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	providers, err := h.directory.Search(r.Context(), q.Get("q"), q.Get("specialty"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	out := make([]ProviderResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, newProviderResponse(p))
	}
	writeJSON(w, http.StatusOK, ProviderListResponse{Providers: out, Total: len(out)})
}

func (h *providerHandler) specialties(w http.ResponseWriter, r *http.Request) {
	specialties, err := h.directory.Specialties(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if specialties == nil {
		specialties = []string{}
	}
	writeJSON(w, http.StatusOK, specialties)
}

func (h *providerHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "provider")
	if !ok {
		return
	}

	p, err := h.directory.Provider(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newProviderResponse(*p))
}

func (h *providerHandler) slots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "provider")
	if !ok {
		return
	}

	q := r.URL.Query()
	av, err := h.svc.AvailableSlots(r.Context(), id, appointment.SlotFilter{
		Date:  q.Get("date"),
		Month: q.Get("month"),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	slots := make(map[string][]string, len(av.Days))
	for _, d := range av.Days {
		slots[d.Date] = d.Times
	}
	writeJSON(w, http.StatusOK, SlotsResponse{
		ProviderID:     av.ProviderID,
		Slots:          slots,
		TotalAvailable: av.Total,
	})
}

func (h *providerHandler) appointmentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.directory.AppointmentTypes(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	out := make([]AppointmentTypeResponse, 0, len(types))
	for _, t := range types {
		out = append(out, AppointmentTypeResponse{
			ID:              t.ID,
			Name:            t.Name,
			Description:     t.Description,
			DurationMinutes: t.DurationMinutes,
			Category:        t.Category,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

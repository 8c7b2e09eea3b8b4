package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
	"github.com/hackgods/carebook-scheduling/internal/suggest"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

// BookingService is the coordinator surface the handlers drive.
type BookingService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.BookResult, error)
	Cancel(ctx context.Context, id int64, reason *string) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, id int64, date, tm string) (*appointment.Appointment, error)
	Get(ctx context.Context, id int64) (*appointment.AppointmentDetail, error)
	Find(ctx context.Context, email, code string) ([]appointment.AppointmentDetail, error)
	AvailableSlots(ctx context.Context, providerID int64, filter appointment.SlotFilter) (*appointment.Availability, error)
}

type appointmentHandler struct {
	svc       BookingService
	directory ProviderDirectory
	logger    *logging.Logger
}

func (h *appointmentHandler) book(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Book(r.Context(), req.toDomain())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, BookAppointmentResponse{
		Message:           "Appointment booked successfully!",
		Appointment:       newAppointmentResponse(res.Appointment, res.Provider, res.AppointmentType),
		NotificationsSent: res.NotificationsSent,
	})
}

func (h *appointmentHandler) find(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	details, err := h.svc.Find(r.Context(), q.Get("email"), q.Get("confirmation_number"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	out := make([]AppointmentResponse, 0, len(details))
	for i := range details {
		d := &details[i]
		out = append(out, newAppointmentResponse(&d.Appointment, d.Provider, d.AppointmentType))
	}
	writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: out, Total: len(out)})
}

func (h *appointmentHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "appointment")
	if !ok {
		return
	}

	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentResponse(&d.Appointment, d.Provider, d.AppointmentType))
}

func (h *appointmentHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "appointment")
	if !ok {
		return
	}
	var req CancelAppointmentRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	appt, err := h.svc.Cancel(r.Context(), id, req.CancelReason)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AppointmentActionResponse{
		Message:     "Appointment cancelled successfully",
		Appointment: newAppointmentResponse(appt, nil, nil),
	})
}

func (h *appointmentHandler) reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "appointment")
	if !ok {
		return
	}
	var req RescheduleAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), id, req.AppointmentDate, req.AppointmentTime)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	// The provider lookup only decorates the response.
	provider, perr := h.directory.Provider(r.Context(), appt.ProviderID)
	if perr != nil {
		h.logger.Warn("provider lookup after reschedule", "provider_id", appt.ProviderID, "error", perr)
	}
	writeJSON(w, http.StatusOK, AppointmentActionResponse{
		Message:     "Appointment rescheduled successfully",
		Appointment: newAppointmentResponse(appt, provider, nil),
	})
}

func suggestHandler(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Description == nil || strings.TrimSpace(*req.Description) == "" {
		writeError(w, http.StatusBadRequest, string(appointment.KindValidation), []appointment.FieldError{
			{Field: "description", Message: "Description is required"},
		})
		return
	}
	if len([]rune(*req.Description)) > suggest.MaxDescriptionLen {
		writeError(w, http.StatusBadRequest, string(appointment.KindValidation), []appointment.FieldError{
			{Field: "description", Message: "Description must be under 1000 characters"},
		})
		return
	}

	writeJSON(w, http.StatusOK, suggest.Analyze(suggest.StripTags(*req.Description)))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDecodeError(w, err)
		return false
	}
	return true
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeDecodeError(w, err)
	return false
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body is too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
}

func pathID(w http.ResponseWriter, r *http.Request, what string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, string(appointment.KindValidation), []appointment.FieldError{
			{Field: "id", Message: "Valid " + what + " ID is required"},
		})
		return 0, false
	}
	return id, true
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, details any) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps a coordinator error to its status by kind. Fatal
// errors are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	kind := appointment.KindOf(err)
	switch kind {
	case appointment.KindValidation:
		var verr *appointment.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, string(kind), verr.Fields)
			return
		}
		writeError(w, http.StatusBadRequest, string(kind), err.Error())
	case appointment.KindNotFound:
		writeError(w, http.StatusNotFound, string(kind), err.Error())
	case appointment.KindSlotUnavailable:
		writeError(w, http.StatusConflict, string(kind), "This time slot is no longer available. Please choose another time.")
	case appointment.KindAlreadyCancelled:
		writeError(w, http.StatusBadRequest, string(kind), err.Error())
	case appointment.KindTransientStore:
		logger.Warn("transient store error", "path", r.URL.Path, "request_id", GetRequestID(r.Context()), "error", err)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, string(kind), "The service is busy, please retry shortly.")
	default:
		logger.Error("request failed", "path", r.URL.Path, "request_id", GetRequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, string(appointment.KindFatal), "Internal server error")
	}
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/soaringjerry/surveyd/internal/middleware"
	"github.com/soaringjerry/surveyd/internal/services"
	"github.com/soaringjerry/surveyd/internal/utils"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success  bool     `json:"success"`
	Data     any      `json:"data,omitempty"`
	Message  string   `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
	Fields   []string `json:"fields,omitempty"`
	Fallback bool     `json:"fallback,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeOK writes a success envelope with a localized message for msgKey.
func writeOK(w http.ResponseWriter, r *http.Request, status int, data any, msgKey string) {
	body := envelope{Success: true, Data: data}
	if msgKey != "" {
		body.Message = utils.T(middleware.LocaleFromContext(r.Context()), msgKey)
	}
	writeJSON(w, status, body)
}

// writeError maps err onto a status code and an error envelope. Storage
// failures are logged with their cause and reported generically.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())

	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeJSON(w, http.StatusBadRequest, envelope{
			Message: utils.T(locale, "error.bad_request"),
			Error:   reqErr.Error(),
		})
		return
	}

	se, isService := services.AsServiceError(err)
	if !isService {
		rt.logger.ErrorContext(r.Context(), "unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, envelope{
			Message: utils.T(locale, "error.internal"),
			Error:   "internal error",
		})
		return
	}

	status, key := http.StatusInternalServerError, "error.internal"
	switch se.Code {
	case services.ErrorInvalid:
		status, key = http.StatusBadRequest, "error.invalid"
	case services.ErrorInactive:
		status, key = http.StatusBadRequest, "error.inactive"
	case services.ErrorForbidden:
		status, key = http.StatusForbidden, "error.forbidden"
	case services.ErrorNotFound:
		status, key = http.StatusNotFound, "error.not_found"
	case services.ErrorPersistence:
		status, key = http.StatusInternalServerError, "error.persistence"
		rt.logger.ErrorContext(r.Context(), "storage failure", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, envelope{
		Message: utils.T(locale, key),
		Error:   se.Message,
		Fields:  se.Fields,
	})
}

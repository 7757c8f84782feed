package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"moneymanager/internal/core"
	applog "moneymanager/internal/log"
	"moneymanager/internal/resilience"
	"moneymanager/internal/services"
	"moneymanager/internal/sheets"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// validationErrors are caller mistakes answered with 422.
var validationErrors = []error{
	core.ErrEmptyID,
	core.ErrZeroDate,
	core.ErrInvalidType,
	core.ErrInvalidAmount,
	core.ErrInvalidStatus,
	core.ErrUnknownAccount,
	core.ErrMissingAccount,
	core.ErrReasonTooLong,
	core.ErrMissingCustomer,
	services.ErrNoUpdates,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, sheets.ErrInvalidSecret):
		return http.StatusForbidden
	case errors.Is(err, sheets.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrAlreadySettled):
		return http.StatusConflict
	case errors.Is(err, resilience.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// writeServiceError answers with the mapped status. Server-side failures are
// logged and their details withheld from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		msg = http.StatusText(status)
	}
	writeError(w, status, msg)
}

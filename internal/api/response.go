package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"stock-trading-sim-go/internal/apperr"

	"go.uber.org/zap"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError maps a service error to its HTTP status. Unclassified
// errors are logged and reported with a generic message.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		v *apperr.ValidationError
		r *apperr.RuleViolation
		n *apperr.NotFoundError
	)
	switch {
	case errors.As(err, &v):
		WriteError(w, http.StatusBadRequest, "validation_error", v.Message)
	case errors.As(err, &r):
		WriteError(w, ruleStatus(r), r.Code, r.Message)
	case errors.As(err, &n):
		WriteError(w, http.StatusNotFound, n.Code, n.Message)
	default:
		logger.Error("Request failed", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "something went wrong, please try again")
	}
}

func ruleStatus(r *apperr.RuleViolation) int {
	switch r {
	case apperr.ErrUnauthorized, apperr.ErrInvalidCredentials:
		return http.StatusUnauthorized
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrAccountExists, apperr.ErrDuplicateTicker, apperr.ErrHolidayExists, apperr.ErrConcurrentUpdate:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return apperr.Invalid("request body must be JSON with Content-Type: application/json")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("malformed request body: %v", err)
	}
	return nil
}

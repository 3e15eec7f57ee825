package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fuelsync/internal/auth"
	closure "fuelsync/internal/closure/domain"
	credit "fuelsync/internal/credit/domain"
	"fuelsync/internal/pricing"
	readings "fuelsync/internal/readings/domain"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// RespondError maps core errors onto HTTP statuses. Every error carries
// enough detail for the caller to correct the request.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, readings.ErrNotOwner),
		errors.Is(err, readings.ErrAuditWindowClosed):
		status = http.StatusForbidden
	case errors.Is(err, readings.ErrReadingNotFound),
		errors.Is(err, closure.ErrClosureNotFound),
		errors.Is(err, credit.ErrCreditNotFound):
		status = http.StatusNotFound
	case errors.Is(err, readings.ErrDuplicateReading),
		errors.Is(err, closure.ErrConflict),
		errors.Is(err, closure.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, credit.ErrOverAllocation),
		errors.Is(err, pricing.ErrMissingPrice),
		isValidation(err):
		status = http.StatusBadRequest
	}
	RespondJSON(w, status, map[string]string{"error": err.Error()})
}

func isValidation(err error) bool {
	var readingErr *readings.ValidationError
	var closureErr *closure.ValidationError
	var creditErr *credit.ValidationError
	return errors.As(err, &readingErr) || errors.As(err, &closureErr) || errors.As(err, &creditErr)
}

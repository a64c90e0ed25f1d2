package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/idempotency"
)

type errorBody struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Reference string            `json:"payment_reference,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Unknown errors are
// logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= 500 {
		LoggerFrom(r.Context()).WithError(err).Error("request failed")
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	var pce *domain.PaymentCallbackError
	if errors.As(err, &pce) {
		return http.StatusBadGateway, errorBody{
			Error:     "payment received but booking could not be confirmed; contact support with reference " + pce.Reference,
			Reference: pce.Reference,
		}
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, errorBody{Error: "validation failed", Fields: ve.Fields}
	}
	switch {
	case errors.Is(err, idempotency.ErrKeyReused):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error()}
	case errors.Is(err, idempotency.ErrInProgress):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrSeatUnavailable):
		return http.StatusConflict, errorBody{Error: "seat unavailable, pick another seat"}
	case errors.Is(err, domain.ErrSeatMismatch):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, domain.ErrSerializationFailure):
		return http.StatusConflict, errorBody{Error: "conflict, try again"}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorBody{Error: "unauthorized"}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrStorage), errors.Is(err, domain.ErrAmbiguousCommit):
		return http.StatusServiceUnavailable, errorBody{Error: "storage unavailable, try again"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

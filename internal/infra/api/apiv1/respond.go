package apiv1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/infra/api"
)

const maxBodyBytes = 64 << 10

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, domain.ErrInvalidArgument)
	}
	return nil
}

// statusFor maps domain errors onto HTTP. Order matters: more specific first.
func statusFor(err error) (int, string) {
	var re *domain.RemoteError
	switch {
	case errors.Is(err, api.ErrMissingToken), errors.Is(err, api.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrPlanUnavailable):
		return http.StatusUnprocessableEntity, "plan_unavailable"
	case errors.Is(err, domain.ErrCheckoutInProgress):
		return http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, domain.ErrCancelTooLate):
		return http.StatusConflict, "cancel_too_late"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "not_awaiting_input"
	case errors.Is(err, domain.ErrNoActiveCheckout):
		return http.StatusNotFound, "no_active_checkout"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrStaleCallback), errors.Is(err, domain.ErrGatewaySessionClosed):
		return http.StatusGone, "stale_callback"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrBusy):
		return http.StatusServiceUnavailable, "busy"
	case errors.As(err, &re), errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrBackendRejected):
		return http.StatusBadGateway, "backend_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= 500 {
		// upstream detail stays in the logs
		msg = http.StatusText(status)
	}
	if status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

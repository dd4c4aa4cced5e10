package api

import (
	"errors"
	"net/http"

	"github.com/okian/puckcast/internal/adapters/mq/queue"
	"github.com/okian/puckcast/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("missing or invalid token")
	ErrBackpressure = errors.New("backpressure")
)

// WrapKind tags err with the handler operation and an API error kind.
func WrapKind(op string, kind, err error) error {
	return model.Wrap(op, kind, err)
}

// NewKind returns a bare error of kind for op.
func NewKind(op string, kind error) error {
	return model.Kind(op, kind, "")
}

// statusFor maps an error kind to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, model.ErrData):
		return http.StatusUnprocessableEntity, "data_error"
	case errors.Is(err, model.ErrModelNotFound):
		return http.StatusConflict, "model_not_found"
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrUpstreamFetch):
		return http.StatusBadGateway, "upstream_fetch"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

var errMissingDate = errors.New("date query parameter is required (YYYY-MM-DD)")

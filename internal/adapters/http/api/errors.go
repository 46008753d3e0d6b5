package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/libero/internal/app"
	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/recorder"
	"github.com/okian/libero/internal/domain/report"
	"github.com/okian/libero/internal/domain/scoring"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// Wire codes that are not validation kinds.
const (
	codeBadRequest   = "bad_request"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeInFlight     = "in_flight"
	codeBackpressure = "backpressure"
	codeTimeout      = "timeout"
	codeUnavailable  = "unavailable"
	codeInternal     = "internal"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Seq     uint64 `json:"seq,omitempty"`
}

// wrapKind marks err as a kind for status mapping while keeping its text.
func wrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// classify maps an error to its HTTP status and wire code.
func classify(err error) (int, string) {
	if code := recorder.Code(err); code != "" {
		if errors.Is(err, recorder.ErrSetAlreadyClosed) {
			return http.StatusConflict, code
		}
		return http.StatusUnprocessableEntity, code
	}
	switch {
	case errors.Is(err, service.ErrMatchNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, service.ErrMatchExists):
		return http.StatusConflict, codeConflict
	case errors.Is(err, service.ErrInFlight):
		return http.StatusConflict, codeInFlight
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidMatch),
		errors.Is(err, report.ErrInvalidFilter),
		errors.Is(err, model.ErrInvalidValue),
		errors.Is(err, scoring.ErrInvalidRules):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, service.ErrQueueSaturated), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, codeBackpressure
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, codeUnavailable
	}
	return http.StatusInternalServerError, codeInternal
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := errorResponse{Code: code, Message: err.Error()}
	var rerr *recorder.Error
	if errors.As(err, &rerr) {
		body.Seq = rerr.Seq
		body.Message = rerr.Reason
	}
	if status == http.StatusInternalServerError {
		body.Message = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

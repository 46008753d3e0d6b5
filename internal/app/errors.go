package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrMatchNotFound  = errors.New("match not found")
	ErrMatchExists    = errors.New("match already exists")
	ErrInvalidMatch   = errors.New("invalid match")
	ErrInFlight       = errors.New("submission with this idempotency key is in flight")
	ErrPersist        = errors.New("persist event")
	ErrQueueSaturated = errors.New("recorder queue saturated")
)

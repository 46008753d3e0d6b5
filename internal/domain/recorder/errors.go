package recorder

import (
	"errors"
	"fmt"
)

// Validation kinds. Every rejection wraps exactly one of them.
var (
	ErrInvalidEventSequence = errors.New("invalid event sequence")
	ErrUnknownPlayer        = errors.New("unknown player")
	ErrSetAlreadyClosed     = errors.New("set already closed")
	ErrInvalidRotationState = errors.New("invalid rotation state")
)

// Error is a recoverable rejection of a single event. The ledger that
// produced it is unchanged.
type Error struct {
	Kind   error
	Seq    uint64
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at seq %d: %s", e.Kind, e.Seq, e.Reason)
}

func (e *Error) Unwrap() error { return e.Kind }

func reject(kind error, seq uint64, format string, args ...any) *Error {
	return &Error{Kind: kind, Seq: seq, Reason: fmt.Sprintf(format, args...)}
}

// CorruptLedgerError reports a persisted event that cannot be replayed.
type CorruptLedgerError struct {
	Seq uint64
	Err error
}

func (e *CorruptLedgerError) Error() string {
	return fmt.Sprintf("corrupt ledger at seq %d: %v", e.Seq, e.Err)
}

func (e *CorruptLedgerError) Unwrap() error { return e.Err }

// Code returns the wire name of the validation kind wrapped by err, or ""
// when err is not a validation rejection.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEventSequence):
		return "invalid_event_sequence"
	case errors.Is(err, ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, ErrSetAlreadyClosed):
		return "set_already_closed"
	case errors.Is(err, ErrInvalidRotationState):
		return "invalid_rotation_state"
	}
	return ""
}

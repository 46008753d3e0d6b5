package stats

import (
	"errors"
	"fmt"
)

// Structural kinds. The stream being folded is not a valid ledger slice.
var (
	ErrOutOfOrder  = errors.New("event out of order")
	ErrUnknownType = errors.New("unknown event type")
)

// EventError identifies the event that broke a fold.
type EventError struct {
	Seq uint64
	Err error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("stats: seq %d: %v", e.Seq, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

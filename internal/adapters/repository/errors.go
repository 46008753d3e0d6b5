package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("match not found")
	ErrMatchExists  = errors.New("match already exists")
	ErrSeqConflict  = errors.New("event sequence already stored")
	ErrCorruptStore = errors.New("corrupt stored record")
)

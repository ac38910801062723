package store

import "errors"

var (
	// ErrReadOnly is returned when committing through a read-only container.
	ErrReadOnly = errors.New("store is read-only")

	// ErrUnknownColumn is returned when a query or field name does not map to the model.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrClosed is returned when work is scheduled on a closed queue.
	ErrClosed = errors.New("store is closed")

	// ErrNotLoaded is returned when a container is used before Load succeeded.
	ErrNotLoaded = errors.New("store is not loaded")
)

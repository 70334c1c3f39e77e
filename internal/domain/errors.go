package domain

import "errors"

var (
	// ErrNotFound is returned by query operations for an absent topic.
	ErrNotFound = errors.New("not found")

	// ErrMalformedMessage marks an unparseable feed frame or one with a
	// missing required field. The frame is dropped and counted; never fatal.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrUnknownEntity marks a valid frame that references a market the
	// initial snapshot never loaded. The frame is dropped.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrInvalidFilter marks a query parameter rejected before any store
	// access (malformed range, unknown sort field, bad pagination).
	ErrInvalidFilter = errors.New("invalid filter parameter")

	// ErrNotConnected is returned when a write is attempted on a transport
	// that is not established.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyStarted is returned by a second Start on a running stream
	// connection.
	ErrAlreadyStarted = errors.New("already started")

	// ErrClosed is returned by operations on a stopped component.
	ErrClosed = errors.New("closed")
)

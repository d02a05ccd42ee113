package sync

import "errors"

var (
	// ErrInvalidInput indicates a malformed cursor or sync request.
	ErrInvalidInput = errors.New("invalid sync request")
	// ErrUnknownResource indicates an unsupported resource name.
	ErrUnknownResource = errors.New("unknown resource")
)

package services

import "errors"

var (
	// ErrUnsupportedCommand is returned for a websocket command the
	// dashboard does not handle
	ErrUnsupportedCommand = errors.New("unsupported command")

	// ErrInvalidCommand is returned when a command payload cannot be decoded
	ErrInvalidCommand = errors.New("invalid command payload")
)

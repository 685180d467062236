package gateway

import "errors"

var (
	// ErrTimeout is returned when the gateway does not answer in time.
	ErrTimeout = errors.New("gateway: request timed out")

	// ErrRejected is returned when the gateway answers with a failure.
	ErrRejected = errors.New("gateway: request rejected")

	// ErrClosed is returned for requests issued after Close.
	ErrClosed = errors.New("gateway: transport closed")
)

package client

import "errors"

// Client-specific errors
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrNotBootstrapped  = errors.New("client session is not bootstrapped")
	ErrUnknownTransport = errors.New("unknown transport")
)

package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed      = errors.New("server is closed")
	ErrEntityNotFound    = errors.New("entity not found")
	ErrUnauthorized      = errors.New("operation not authorized")
	ErrInvalidConfig     = errors.New("invalid server configuration")
	ErrUnknownTransport  = errors.New("unknown transport")
	ErrUnknownAuthorizer = errors.New("unknown authorization mode")
)

package common

import "errors"

// Failure taxonomy. Callers should use errors.Is to match these values;
// concrete errors returned by gateways and services wrap one of them.
var (
	// ErrUnauthenticated: the operation requires a resolved user and none is present.
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrRemoteRejected: the remote service answered with a structured error.
	ErrRemoteRejected = errors.New("remote rejected")
	// ErrPartialWrite: the first step of a multi-step write succeeded, a later one failed.
	ErrPartialWrite = errors.New("partial write")
	// ErrTransport: the remote call itself could not complete.
	ErrTransport = errors.New("transport error")

	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrDuplicateCreate = errors.New("create already in flight")
	ErrNotConfigured   = errors.New("not configured")
)

// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across gateway/engine layers.
var (
	// ErrUnauthenticated indicates a missing, invalid or expired credential.
	// Terminal for the operation; never retried.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrValidation indicates input rejected locally before any network call
	// (e.g. an empty send or edit payload).
	ErrValidation = errors.New("validation failed")

	// ErrServerRejected indicates a non-2xx response to a well-formed request.
	ErrServerRejected = errors.New("server rejected request")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Package controller implements the authentication adapters for managed
// controller families. Each adapter separates the stateless authentication
// exchange (Authenticate) from cached retrieval (CachedCredential), which
// delegates TTL and locking discipline to the authcache package.
package controller

import "errors"

// Authentication error kinds. Callers distinguish a controller that
// rejected the credentials from one that could not be reached at all.
var (
	// ErrAuthRejected: the controller answered and refused the credentials.
	ErrAuthRejected = errors.New("controller rejected credentials")

	// ErrUnreachable: the controller could not be reached or timed out.
	ErrUnreachable = errors.New("controller unreachable")
)

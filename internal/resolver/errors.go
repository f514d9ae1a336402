package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds for detection, registry and schema failures. All of
// them indicate a setup mistake and abort the current resolution run.
var (
	// ErrAmbiguousConfiguration: more than one controller family is fully
	// configured, or detection found no usable signal at all.
	ErrAmbiguousConfiguration = errors.New("ambiguous controller configuration")

	// ErrIncompleteConfiguration: a controller family is partially
	// configured (e.g. URL set but password missing).
	ErrIncompleteConfiguration = errors.New("incomplete controller configuration")

	// ErrUnsupportedArchitecture: the detected family does not support the
	// requested device class.
	ErrUnsupportedArchitecture = errors.New("architecture does not support this device class")

	// ErrResolverNotFound: no resolver is registered for a detected family.
	ErrResolverNotFound = errors.New("no resolver registered")

	// ErrSchemaMismatch: the detected family's root key is absent from the
	// data model.
	ErrSchemaMismatch = errors.New("data model missing expected root key")
)

// MalformedAddressError reports a device whose host-IP field failed
// validation after CIDR stripping. It aborts the whole batch: a bad address
// is a data-model authoring error worth surfacing loudly, never something
// to drop silently.
type MalformedAddressError struct {
	DeviceID string
	Value    string
}

func (e *MalformedAddressError) Error() string {
	return fmt.Sprintf("device %q has malformed host address %q", e.DeviceID, e.Value)
}

// MissingCredentialError aggregates every absent credential environment
// variable into a single failure.
type MissingCredentialError struct {
	Architecture string
	Vars         []string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf(
		"missing required credential environment variables: %s (required for %s device testing)",
		strings.Join(e.Vars, ", "), e.Architecture,
	)
}

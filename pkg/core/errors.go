package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for malformed input, detected before any network call
	ErrValidation = errors.New("validation error")

	// ErrStaleSignature is returned when a signature is attached to a transaction whose
	// signed fields changed after the signature was produced
	ErrStaleSignature = errors.New("signature was produced for a different transaction digest")
)

// ProviderError wraps a failed RPC call.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

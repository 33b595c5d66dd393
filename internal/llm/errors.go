package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// The invocation engine distinguishes three failure classes, all of which
// advance the fallback chain to the next candidate:
//
//   - TransportError: the request never produced an HTTP response
//     (connection refused, DNS failure, timeout).
//   - ProviderError: the remote service answered with a non-success status.
//   - EmptyResultError: success status but no usable content.

// TransportError wraps a network-level failure talking to a remote service.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError represents a non-success HTTP status from the provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("provider error %d", e.StatusCode)
}

// EmptyResultError is returned when a request succeeds at the HTTP level
// but the aggregated content is empty.
type EmptyResultError struct {
	Model string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("model %s returned an empty result", e.Model)
}

// IsConnectivity reports whether err is a transport-level failure rather
// than a provider-side one. The final user-facing message after an
// exhausted fallback chain depends on this distinction.
func IsConnectivity(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// StatusCode extracts the HTTP status from a provider error, or 0.
func StatusCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

package connectors

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// ErrUnsupportedSupplier is returned by the registry when no connector is
// wired for a supplier type.
var ErrUnsupportedSupplier = errors.New("unsupported supplier type")

// AuthError means the supplier rejected our credentials. Retrying with the
// same key pair cannot succeed.
type AuthError struct {
	Supplier enums.SupplierType
	Message  string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Supplier, e.Message)
	}
	return fmt.Sprintf("%s: authentication rejected", e.Supplier)
}

func (e *AuthError) Retryable() bool { return false }

// RateLimitError means the supplier kept returning 429 after the transport
// exhausted its in-call retries.
type RateLimitError struct {
	Supplier enums.SupplierType
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited", e.Supplier)
}

func (e *RateLimitError) Retryable() bool { return true }

// TimeoutError means the supplier did not answer within the request timeout.
type TimeoutError struct {
	Supplier enums.SupplierType
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out", e.Supplier)
}

func (e *TimeoutError) Retryable() bool { return true }

// UpstreamError carries a non-OK HTTP status from the supplier. 5xx and
// transport-level failures are retryable, other 4xx are not.
type UpstreamError struct {
	Supplier enums.SupplierType
	Status   int
	CanRetry bool
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream returned %d", e.Supplier, e.Status)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Supplier, e.Message)
	}
	return fmt.Sprintf("%s: upstream request failed", e.Supplier)
}

func (e *UpstreamError) Retryable() bool { return e.CanRetry }

// MalformedResponseError means the supplier answered 2xx but the body did
// not match the documented shape.
type MalformedResponseError struct {
	Supplier enums.SupplierType
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Supplier, e.Reason)
}

func (e *MalformedResponseError) Retryable() bool { return false }

type retryableClassifier interface {
	Retryable() bool
}

// Retryable reports whether a later attempt against the supplier could
// succeed. Errors outside the connector taxonomy are not retryable.
func Retryable(err error) bool {
	var classified retryableClassifier
	if errors.As(err, &classified) {
		return classified.Retryable()
	}
	return false
}

// api/errors/classify.go
package errors

import (
	"context"
	"errors"
)

// Kind is the external-facing failure classification consumed by the
// boundary layer when mapping an error to a response status.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindTimeout             Kind = "timeout"
	KindValidation          Kind = "validation_error"
	KindInternal            Kind = "internal"
)

// Classify maps an internal failure to its external kind. Unrecognized
// errors are reported as internal.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResourceNotFound):
		return KindNotFound
	case errors.Is(err, ErrFetchTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	case errors.Is(err, ErrInvalidSubscriptionID), errors.Is(err, ErrInvalidResourceName):
		return KindValidation
	default:
		return KindInternal
	}
}

// api/errors/azure_errors.go
package errors

import "errors"

var (
	ErrResourceNotFound      = errors.New("resource not found")
	ErrUpstreamUnavailable   = errors.New("upstream management API unavailable")
	ErrFetchTimeout          = errors.New("upstream fetch timed out")
	ErrInvalidSubscriptionID = errors.New("invalid subscription ID")
	ErrInvalidResourceName   = errors.New("invalid resource name")
	ErrInternalServer        = errors.New("internal server error")
)

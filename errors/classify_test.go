// api/errors/classify_test.go
package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	proxy_errors "github.com/cloudscope/armproxy/api/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want proxy_errors.Kind
	}{
		{"nil", nil, proxy_errors.Kind("")},
		{"not found", proxy_errors.ErrResourceNotFound, proxy_errors.KindNotFound},
		{"wrapped not found", fmt.Errorf("%w: vm %q", proxy_errors.ErrResourceNotFound, "web-01"), proxy_errors.KindNotFound},
		{"upstream unavailable", proxy_errors.ErrUpstreamUnavailable, proxy_errors.KindUpstreamUnavailable},
		{"fetch timeout", fmt.Errorf("%w: virtualMachine:sub:rg:vm", proxy_errors.ErrFetchTimeout), proxy_errors.KindTimeout},
		{"raw deadline", context.DeadlineExceeded, proxy_errors.KindTimeout},
		{"invalid subscription", proxy_errors.ErrInvalidSubscriptionID, proxy_errors.KindValidation},
		{"invalid resource name", fmt.Errorf("%w: %q", proxy_errors.ErrInvalidResourceName, "bad name"), proxy_errors.KindValidation},
		{"unrecognized", errors.New("boom"), proxy_errors.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, proxy_errors.Classify(tt.err))
		})
	}
}

func TestTimeoutWinsOverUnavailableWrap(t *testing.T) {
	// A timeout wrapped in upstream context still classifies as timeout.
	err := fmt.Errorf("%w: %w", proxy_errors.ErrFetchTimeout, context.DeadlineExceeded)
	assert.Equal(t, proxy_errors.KindTimeout, proxy_errors.Classify(err))
}

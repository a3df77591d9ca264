// api/util/validation_util.go

package util

import (
	"fmt"
	"regexp"

	proxy_errors "github.com/cloudscope/armproxy/api/errors"
)

var (
	// Whether a subscription exists is upstream's call; validation only
	// rejects identifiers that could never be ARM path segments.
	subscriptionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]{1,64}$`)
	resourceNamePattern   = regexp.MustCompile(`^[a-zA-Z0-9._()\-]{1,90}$`)
)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

// ValidateSubscriptionID checks the shape of a subscription ID before any
// upstream call is attempted.
func (v *ValidationUtil) ValidateSubscriptionID(subscriptionID string) error {
	if !subscriptionIDPattern.MatchString(subscriptionID) {
		return fmt.Errorf("%w: %q", proxy_errors.ErrInvalidSubscriptionID, subscriptionID)
	}
	return nil
}

// ValidateResourceGroupName checks ARM resource group naming rules.
func (v *ValidationUtil) ValidateResourceGroupName(name string) error {
	if !resourceNamePattern.MatchString(name) {
		return fmt.Errorf("%w: resource group %q", proxy_errors.ErrInvalidResourceName, name)
	}
	return nil
}

// ValidateResourceName checks a VM, NIC, or route table name.
func (v *ValidationUtil) ValidateResourceName(name string) error {
	if !resourceNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", proxy_errors.ErrInvalidResourceName, name)
	}
	return nil
}

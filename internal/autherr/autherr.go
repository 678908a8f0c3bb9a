// Package autherr defines the error taxonomy shared by every stage of the
// external-identity sign-in flow. Callers classify failures with errors.Is
// and errors.As; end users only ever see the hyphenated notice code derived
// by NoticeCode.
package autherr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a failure class. Kinds use underscore form internally;
// NoticeCode converts to the hyphenated form exposed in redirect URLs.
type Kind string

const (
	KindStateMismatch      Kind = "state_mismatch"
	KindAuthExchangeFailed Kind = "authentication_error"
	KindValidationFailed   Kind = "validation_failed"
	KindProvisioningError  Kind = "provisioning_error"
	KindConfigurationError Kind = "configuration_error"
)

var (
	// ErrStateMismatch covers forged, expired, and absent state tokens.
	// The three cases are deliberately indistinguishable to the caller.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrAuthExchangeFailed covers every outbound HTTP failure: token
	// exchange, user-info retrieval, and enrichment-service calls.
	ErrAuthExchangeFailed = errors.New("authentication exchange failed")

	// ErrValidationFailed is returned when the resolved identity is missing
	// a required field or carries an invalid avatar after all sources were
	// consulted.
	ErrValidationFailed = errors.New("identity validation failed")
)

// ProvisioningError is raised by the account-provisioning boundary. It may
// carry its own notice id and a preferred redirect target, which take
// precedence over the generic default-path fallback.
type ProvisioningError struct {
	Notice       string
	RedirectPath string
	RedirectHost string
	Err          error
}

func (e *ProvisioningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provisioning failed (%s): %v", e.Notice, e.Err)
	}
	return fmt.Sprintf("provisioning failed (%s)", e.Notice)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports missing or contradictory provider settings.
// It is raised at startup, before any callback is accepted.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// ClassifyKind maps an error to its failure class. Unknown errors fall back
// to the exchange kind so users never see internal detail.
func ClassifyKind(err error) Kind {
	var provErr *ProvisioningError
	var confErr *ConfigurationError

	switch {
	case errors.Is(err, ErrStateMismatch):
		return KindStateMismatch
	case errors.Is(err, ErrValidationFailed):
		return KindValidationFailed
	case errors.As(err, &provErr):
		return KindProvisioningError
	case errors.As(err, &confErr):
		return KindConfigurationError
	default:
		return KindAuthExchangeFailed
	}
}

// NoticeCode returns the machine-readable notice exposed to the end user in
// a redirect query parameter. A ProvisioningError's own notice id wins.
func NoticeCode(err error) string {
	var provErr *ProvisioningError
	if errors.As(err, &provErr) && provErr.Notice != "" {
		return strings.ReplaceAll(provErr.Notice, "_", "-")
	}
	return strings.ReplaceAll(string(ClassifyKind(err)), "_", "-")
}

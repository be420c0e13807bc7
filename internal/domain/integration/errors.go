package integration

import (
	"errors"
	"fmt"
)

// Sentinel targets for errors.Is
var (
	ErrConfiguration = errors.New("integration: configuration missing")
	ErrUpstream      = errors.New("integration: upstream request failed")
	ErrMapping       = errors.New("integration: event could not be mapped")
)

// ConfigurationError reports a missing credential or URL. It is raised by the
// consumer of the setting before any network call is attempted.
type ConfigurationError struct {
	Setting string
	Message string
}

// NewConfigurationError creates a ConfigurationError for the given setting
func NewConfigurationError(setting, message string) *ConfigurationError {
	return &ConfigurationError{Setting: setting, Message: message}
}

func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("configuration error: %s (%s)", e.Message, e.Setting)
	}
	return fmt.Sprintf("configuration error: %s is not configured", e.Setting)
}

// Is makes errors.Is(err, ErrConfiguration) match
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// UpstreamError reports a failed call to a remote dependency.
// StatusCode is zero for network-level failures (timeout, refused connection).
type UpstreamError struct {
	Service    string // "crm" or "erp"
	Operation  string // e.g. "token exchange", "fetch account", "authenticate"
	StatusCode int
	Body       string
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s returned %d: %s", e.Service, e.Operation, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s %s failed: %v", e.Service, e.Operation, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s %s failed: %s", e.Service, e.Operation, e.Message)
	default:
		return fmt.Sprintf("%s %s failed", e.Service, e.Operation)
	}
}

// Unwrap exposes the transport error, if any
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUpstream) match
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// HasStatus reports whether the remote answered with an HTTP status
func (e *UpstreamError) HasStatus() bool {
	return e.StatusCode != 0
}

// NewHTTPStatusError creates an UpstreamError for a non-2xx response
func NewHTTPStatusError(service, operation string, status int, body string) *UpstreamError {
	return &UpstreamError{
		Service:    service,
		Operation:  operation,
		StatusCode: status,
		Body:       body,
	}
}

// NewTransportError creates an UpstreamError for a network-level failure
func NewTransportError(service, operation string, err error) *UpstreamError {
	return &UpstreamError{
		Service:   service,
		Operation: operation,
		Err:       err,
	}
}

// NewInvalidResponseError creates an UpstreamError for a 2xx response whose
// content is unusable (missing token, missing session, bad JSON)
func NewInvalidResponseError(service, operation, message string) *UpstreamError {
	return &UpstreamError{
		Service:   service,
		Operation: operation,
		Message:   message,
	}
}

// MappingError reports an event that could not be decoded at all.
// Missing or oddly typed fields never produce a MappingError; they degrade to
// empty values instead.
type MappingError struct {
	Reason string
	Err    error
}

func (e *MappingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mapping error: %s: %v", e.Reason, e.Err)
	}
	return "mapping error: " + e.Reason
}

// Unwrap returns the underlying decode error
func (e *MappingError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMapping) match
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

// StatusCodeOf returns the HTTP status carried by an UpstreamError in the
// chain, or zero
func StatusCodeOf(err error) int {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode
	}
	return 0
}

// ABOUTME: Error taxonomy for the unified LLM SDK.
// ABOUTME: Typed errors distinguishing transport, status-code, invariant, unsupported, and refusal failures.

package llm

import (
	"errors"
	"fmt"
)

// InvalidInputError reports a LanguageModelInput the SDK itself rejects
// before reaching the provider.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// NewInvalidInputError creates an InvalidInputError.
func NewInvalidInputError(reason string) *InvalidInputError {
	return &InvalidInputError{Reason: reason}
}

// TransportError reports a connection or decoding failure talking to the
// provider.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError wraps err as a TransportError.
func NewTransportError(err error) *TransportError {
	return &TransportError{Cause: err}
}

// StatusCodeError reports a non-2xx response from the provider.
type StatusCodeError struct {
	StatusCode int
	Body       string
}

func (e *StatusCodeError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

// NewStatusCodeError creates a StatusCodeError.
func NewStatusCodeError(statusCode int, body string) *StatusCodeError {
	return &StatusCodeError{StatusCode: statusCode, Body: body}
}

// UnsupportedError reports an input the provider cannot honor.
type UnsupportedError struct {
	Provider string
	Reason   string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: unsupported: %s", e.Provider, e.Reason)
}

// NewUnsupportedError creates an UnsupportedError.
func NewUnsupportedError(provider, reason string) *UnsupportedError {
	return &UnsupportedError{Provider: provider, Reason: reason}
}

// NotImplementedError reports functionality the adapter has not implemented.
type NotImplementedError struct {
	Provider string
	Reason   string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s: not implemented: %s", e.Provider, e.Reason)
}

// NewNotImplementedError creates a NotImplementedError.
func NewNotImplementedError(provider, reason string) *NotImplementedError {
	return &NotImplementedError{Provider: provider, Reason: reason}
}

// InvariantError reports an upstream response that violates the adapter's
// parsing assumptions.
type InvariantError struct {
	Provider string
	Reason   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: invariant violated: %s", e.Provider, e.Reason)
}

// NewInvariantError creates an InvariantError.
func NewInvariantError(provider, reason string) *InvariantError {
	return &InvariantError{Provider: provider, Reason: reason}
}

// RefusalError reports an explicit refusal from the provider.
type RefusalError struct {
	Refusal string
}

func (e *RefusalError) Error() string {
	return "model refused: " + e.Refusal
}

// NewRefusalError creates a RefusalError.
func NewRefusalError(refusal string) *RefusalError {
	return &RefusalError{Refusal: refusal}
}

// IsRefusal reports whether err is (or wraps) a RefusalError.
func IsRefusal(err error) bool {
	var re *RefusalError
	return errors.As(err, &re)
}

// IsStatusCode reports whether err is (or wraps) a StatusCodeError with the
// given code.
func IsStatusCode(err error, code int) bool {
	var sce *StatusCodeError
	return errors.As(err, &sce) && sce.StatusCode == code
}

// Package domain provides the canonical types shared by adapters and the
// provider pipeline.
package domain

import (
	"fmt"
	"time"
)

// ErrorCode is the shared taxonomy every vendor error is classified into.
type ErrorCode string

const (
	CodeRateLimit             ErrorCode = "rate_limit"
	CodeProviderUnavailable   ErrorCode = "provider_unavailable"
	CodeProviderInternal      ErrorCode = "provider_internal_error"
	CodeTimeout               ErrorCode = "timeout"
	CodeReadTimeout           ErrorCode = "read_timeout"
	CodeInvalidProviderConfig ErrorCode = "invalid_provider_config"
	CodeContentModeration     ErrorCode = "content_moderation"
	CodeMaxTokensExceeded     ErrorCode = "max_tokens_exceeded"
	CodeStructuredGeneration  ErrorCode = "structured_generation_error"
	CodeFailedGeneration      ErrorCode = "failed_generation"
	CodeBadRequest            ErrorCode = "bad_request"
	CodeInvalidFile           ErrorCode = "invalid_file"
	CodeUnknown               ErrorCode = "unknown_provider_error"
)

// FallbackCategory keys a model's fallback policy.
type FallbackCategory string

const (
	FallbackModeration           FallbackCategory = "content_moderation"
	FallbackStructuredGeneration FallbackCategory = "structured_generation"
	FallbackContextExceeded      FallbackCategory = "context_exceeded"
	FallbackAvailability         FallbackCategory = "availability"
	FallbackUnknown              FallbackCategory = "unknown"
)

// ProviderError is the tagged error variant raised by adapters and consumed
// by the pipeline. The pipeline switches exhaustively on Code rather than
// walking a type hierarchy.
type ProviderError struct {
	Code    ErrorCode
	Message string

	// Provider names the vendor instance that produced the error.
	Provider string

	// RetryAfter is a vendor-suggested wait before retrying, when known.
	RetryAfter time.Duration

	// TryNextProvider signals that a different provider may succeed where
	// this one failed.
	TryNextProvider bool

	// Capture marks the error worth reporting to observability. Expected
	// conditions (oversized images, exhausted trial credit) stay false.
	Capture bool

	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ProviderError) Unwrap() error { return e.Cause }

// Retryable reports whether the pipeline may attempt another provider
// instance after this error.
func (e *ProviderError) Retryable() bool {
	switch e.Code {
	case CodeRateLimit, CodeProviderUnavailable, CodeProviderInternal,
		CodeTimeout, CodeReadTimeout, CodeInvalidProviderConfig, CodeUnknown:
		return true
	}
	return e.TryNextProvider
}

// FallbackCategory maps the error onto the model fallback policy key. The
// second return is false for errors that never drive model fallback.
func (e *ProviderError) FallbackCategory() (FallbackCategory, bool) {
	switch e.Code {
	case CodeContentModeration:
		return FallbackModeration, true
	case CodeStructuredGeneration, CodeFailedGeneration:
		return FallbackStructuredGeneration, true
	case CodeMaxTokensExceeded:
		return FallbackContextExceeded, true
	case CodeRateLimit, CodeProviderUnavailable, CodeProviderInternal, CodeTimeout, CodeReadTimeout:
		return FallbackAvailability, true
	case CodeUnknown:
		return FallbackUnknown, true
	}
	return "", false
}

// NewProviderError creates an error with the given code and message. Codes
// that conventionally merit a different-provider retry or observability
// capture get those flags preset; With* methods adjust per call site.
func NewProviderError(code ErrorCode, message string) *ProviderError {
	e := &ProviderError{Code: code, Message: message}
	switch code {
	case CodeRateLimit, CodeProviderUnavailable, CodeTimeout, CodeReadTimeout,
		CodeInvalidProviderConfig:
		e.TryNextProvider = true
	case CodeProviderInternal:
		e.TryNextProvider = true
		e.Capture = true
	case CodeUnknown:
		e.TryNextProvider = true
		e.Capture = true
	}
	return e
}

// WithProvider tags the error with the originating vendor instance.
func (e *ProviderError) WithProvider(name string) *ProviderError {
	e.Provider = name
	return e
}

// WithRetryAfter records a vendor-suggested retry delay.
func (e *ProviderError) WithRetryAfter(d time.Duration) *ProviderError {
	e.RetryAfter = d
	return e
}

// WithCapture marks the error for observability capture.
func (e *ProviderError) WithCapture(capture bool) *ProviderError {
	e.Capture = capture
	return e
}

// WithCause attaches the wrapped underlying error.
func (e *ProviderError) WithCause(err error) *ProviderError {
	e.Cause = err
	return e
}

// WithDetail attaches a structured detail value.
func (e *ProviderError) WithDetail(key string, value any) *ProviderError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

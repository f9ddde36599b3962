package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes
const (
	CodeExtraction         = "EXTRACTION_ERROR"
	CodeModelCall          = "MODEL_CALL_ERROR"
	CodeParse              = "PARSE_ERROR"
	CodeTimeout            = "TIMEOUT_ERROR"
	CodeContextInvalidated = "CONTEXT_INVALIDATED"
	CodeCache              = "CACHE_ERROR"
	CodeBridge             = "BRIDGE_ERROR"
)

type EnhanceError struct {
	Message string
	Code    string
	Context map[string]any
	Cause   error
}

func (e *EnhanceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *EnhanceError) Unwrap() error {
	return e.Cause
}

func NewEnhanceError(message, code string, context map[string]any) *EnhanceError {
	return &EnhanceError{
		Message: message,
		Code:    code,
		Context: context,
	}
}

func (e *EnhanceError) WithCause(cause error) *EnhanceError {
	e.Cause = cause
	return e
}

// ExtractionError signals that the page yielded no usable activity data. It is
// surfaced to the user before any model call is attempted.
type ExtractionError struct {
	*EnhanceError
}

func NewExtractionError(message string) *ExtractionError {
	return &ExtractionError{
		EnhanceError: &EnhanceError{
			Message: message,
			Code:    CodeExtraction,
		},
	}
}

// ModelCallError is a retryable provider/network failure.
type ModelCallError struct {
	*EnhanceError
	Provider string
}

func NewModelCallError(message, provider string, cause error) *ModelCallError {
	return &ModelCallError{
		EnhanceError: &EnhanceError{
			Message: message,
			Code:    CodeModelCall,
			Context: map[string]any{"provider": provider},
			Cause:   cause,
		},
		Provider: provider,
	}
}

// TimeoutError is raised when the edit page gives up waiting for enhanced
// data. It degrades silently; no blocking dialog is shown.
type TimeoutError struct {
	*EnhanceError
}

func NewTimeoutError(message string) *TimeoutError {
	return &TimeoutError{
		EnhanceError: &EnhanceError{
			Message: message,
			Code:    CodeTimeout,
		},
	}
}

type CacheError struct {
	*EnhanceError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		EnhanceError: &EnhanceError{
			Message: message,
			Code:    CodeCache,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

type BridgeError struct {
	*EnhanceError
}

func NewBridgeError(message string, cause error) *BridgeError {
	return &BridgeError{
		EnhanceError: &EnhanceError{
			Message: message,
			Code:    CodeBridge,
			Cause:   cause,
		},
	}
}

// IsContextInvalidated reports whether the error text indicates the extension
// runtime was reloaded underneath the page. Detection is by message content;
// the client has no structured signal for this condition.
func IsContextInvalidated(err error) bool {
	if err == nil {
		return false
	}
	var ee *EnhanceError
	if errors.As(err, &ee) && ee.Code == CodeContextInvalidated {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Extension context invalidated") ||
		strings.Contains(msg, "context invalidated")
}

func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

func IsExtraction(err error) bool {
	var xe *ExtractionError
	return errors.As(err, &xe)
}

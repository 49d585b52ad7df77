package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies engine failures for propagation decisions.
type ErrorCategory string

const (
	// Fatal categories stop the process.
	ErrorCategoryFatal  ErrorCategory = "FATAL"
	ErrorCategoryConfig ErrorCategory = "CONFIG"

	// Recoverable categories: the cycle continues past them. Risk
	// rejections are not errors; they travel as trade records with a
	// rejected outcome.
	ErrorCategoryData      ErrorCategory = "DATA"
	ErrorCategoryExecution ErrorCategory = "EXECUTION"
	ErrorCategoryNetwork   ErrorCategory = "NETWORK"
	ErrorCategoryTimeout   ErrorCategory = "TIMEOUT"
)

// EngineError is a categorized error with component context. The reason
// string is user-visible; every rejection and failure carries one.
type EngineError struct {
	Category   ErrorCategory
	Component  string
	Reason     string
	Underlying error
}

func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Component, e.Reason, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Component, e.Reason)
}

func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsFatal reports whether the error should stop the engine rather than
// just the current trade or asset.
func (e *EngineError) IsFatal() bool {
	return e.Category == ErrorCategoryFatal || e.Category == ErrorCategoryConfig
}

// Retryable reports whether a collaborator may retry the operation.
func (e *EngineError) Retryable() bool {
	switch e.Category {
	case ErrorCategoryNetwork, ErrorCategoryTimeout, ErrorCategoryExecution:
		return true
	default:
		return false
	}
}

// NewDataUnavailable marks missing price or return data.
func NewDataUnavailable(component, reason string, err error) *EngineError {
	return &EngineError{Category: ErrorCategoryData, Component: component, Reason: reason, Underlying: err}
}

// NewExecutionFailed marks a transient venue or network failure while
// submitting a trade.
func NewExecutionFailed(component, reason string, err error) *EngineError {
	return &EngineError{Category: ErrorCategoryExecution, Component: component, Reason: reason, Underlying: err}
}

func NewNetworkError(component, reason string, err error) *EngineError {
	return &EngineError{Category: ErrorCategoryNetwork, Component: component, Reason: reason, Underlying: err}
}

func NewTimeoutError(component, reason string, err error) *EngineError {
	return &EngineError{Category: ErrorCategoryTimeout, Component: component, Reason: reason, Underlying: err}
}

func NewConfigError(component, reason string) *EngineError {
	return &EngineError{Category: ErrorCategoryConfig, Component: component, Reason: reason}
}

// IsDataUnavailable reports whether err (or anything it wraps) is a
// DATA-category engine error.
func IsDataUnavailable(err error) bool {
	return hasCategory(err, ErrorCategoryData)
}

// IsExecutionFailed reports whether err is an EXECUTION-category error.
func IsExecutionFailed(err error) bool {
	return hasCategory(err, ErrorCategoryExecution)
}

func hasCategory(err error, cat ErrorCategory) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Category == cat
	}
	return false
}

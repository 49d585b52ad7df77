package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineError_MessageCarriesCategoryAndComponent(t *testing.T) {
	err := NewDataUnavailable("marketdata", "no return history for WETH", nil)
	assert.Contains(t, err.Error(), "DATA")
	assert.Contains(t, err.Error(), "marketdata")
	assert.Contains(t, err.Error(), "no return history for WETH")
}

func TestEngineError_UnwrapsUnderlying(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewNetworkError("venue", "trade submission failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEngineError_CategoryPredicates(t *testing.T) {
	assert.True(t, IsDataUnavailable(NewDataUnavailable("marketdata", "no prices", nil)))
	assert.True(t, IsExecutionFailed(NewExecutionFailed("venue", "rejected", nil)))

	assert.False(t, IsDataUnavailable(NewExecutionFailed("venue", "rejected", nil)))
	assert.False(t, IsExecutionFailed(stderrors.New("plain")))
}

func TestEngineError_PredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("cycle failed: %w", NewDataUnavailable("marketdata", "feed down", nil))
	assert.True(t, IsDataUnavailable(wrapped))
}

func TestEngineError_RetryableAndFatal(t *testing.T) {
	assert.True(t, NewNetworkError("venue", "down", nil).Retryable())
	assert.True(t, NewTimeoutError("venue", "slow", nil).Retryable())
	assert.False(t, NewConfigError("config", "bad weights").Retryable())

	assert.True(t, NewConfigError("config", "bad weights").IsFatal())
	assert.False(t, NewNetworkError("venue", "down", nil).IsFatal())
}

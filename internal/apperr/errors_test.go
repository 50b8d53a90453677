package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNetworkErrorClassifiesDeadline(t *testing.T) {
	err := NewNetworkError("gist load", fmt.Errorf("request: %w", context.DeadlineExceeded))

	assert.True(t, err.Timeout)
	assert.True(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestNewNetworkErrorPlainFailure(t *testing.T) {
	err := NewNetworkError("gist save", errors.New("connection refused"))

	assert.False(t, err.Timeout)
	assert.False(t, IsTimeout(fmt.Errorf("wrapped: %w", err)))
}

func TestAsNetworkErrorUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("sync: %w", &NetworkError{Op: "load", StatusCode: 502})

	nErr, ok := AsNetworkError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, 502, nErr.StatusCode)
}

func TestTaxonomyHelpers(t *testing.T) {
	cfgErr := fmt.Errorf("activate: %w", &ConfigurationError{Field: "token", Reason: "rejected"})
	assert.True(t, IsConfiguration(cfgErr))
	assert.False(t, IsDataFormat(cfgErr))

	dataErr := &DataFormatError{Source: "nflPredictions", Err: errors.New("bad json")}
	assert.True(t, IsDataFormat(dataErr))
	assert.Equal(t, "malformed data in nflPredictions: bad json", dataErr.Error())

	vErr, ok := AsValidationError(&ValidationError{Subject: "BUF", Problems: []string{"a", "b"}})
	assert.True(t, ok)
	assert.Equal(t, "BUF: a; b", vErr.Error())
}

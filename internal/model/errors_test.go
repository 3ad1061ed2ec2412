package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_UnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("submit review: %w", NewValidationError("review", ErrEmptyComment))

	assert.True(t, errors.Is(err, ErrEmptyComment))
	assert.True(t, IsValidation(err))
	assert.False(t, IsSessionExpired(err))
	assert.Contains(t, err.Error(), "VALIDATION: review")
}

func TestIsSessionExpired(t *testing.T) {
	err := &Error{Code: CodeSessionExpired, Op: "checkout", Err: ErrSessionExpired}
	assert.True(t, IsSessionExpired(err))
	assert.True(t, IsSessionExpired(ErrSessionExpired))
	assert.False(t, IsSessionExpired(errors.New("boom")))
}

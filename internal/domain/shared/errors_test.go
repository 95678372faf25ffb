package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError("INVALID_INPUT", "document type is required")
	assert.Equal(t, "document type is required", err.Error())
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := NewDomainError("NOT_FOUND", "dialog 42 not found")
	wrapped := fmt.Errorf("load dialog: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrInvalidState))
}

func TestDomainError_As(t *testing.T) {
	wrapped := fmt.Errorf("select: %w", ErrInvalidInput)

	var de *DomainError
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "INVALID_INPUT", de.Code)
}

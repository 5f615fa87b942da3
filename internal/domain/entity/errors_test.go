package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "required field",
			field:    "user_id",
			message:  "required",
			expected: "validation error on field 'user_id': required",
		},
		{
			name:     "empty message",
			field:    "channels",
			message:  "",
			expected: "validation error on field 'channels': ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ValidationError{Field: tt.field, Message: tt.message}
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestValidationError_IsValidationFailed(t *testing.T) {
	err := fmt.Errorf("notify: %w", &ValidationError{Field: "title", Message: "required"})

	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.False(t, errors.Is(err, ErrNotFound))

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "title", vErr.Field)
}

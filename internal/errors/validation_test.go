package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("title", "is required", "")

	assert.Equal(t, "title", err.Field)
	assert.Equal(t, "is required", err.Message)
	assert.Equal(t, "", err.Value)
	assert.Equal(t, "validation error on field 'title': is required", err.Error())
}

func TestValidationErrorWithRule(t *testing.T) {
	err := NewValidationErrorWithRule("type", "must be a valid question type", "question_type", "essay")

	assert.Equal(t, "question_type", err.Rule)
	assert.Equal(t, "type", err.Field)
	assert.Equal(t, "essay", err.Value)
}

func TestValidationErrorsMessage(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "validation failed", errs.Error())

	errs = append(errs, *NewValidationError("points", "must be at least 1", 0))
	assert.Equal(t, "validation failed: points must be at least 1", errs.Error())

	errs = append(errs, *NewValidationError("prompt", "is required", nil))
	assert.Equal(t, "validation failed: 2 field errors", errs.Error())
}

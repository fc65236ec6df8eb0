package errors

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError is a single rejected field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidationErrors collects every rejected field of one request.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

func NewValidationErrorWithRule(field, message, rule string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    rule,
	}
}

// ToValidationErrors flattens go-playground field errors into the API shape.
func ToValidationErrors(err error) ValidationErrors {
	var out ValidationErrors

	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			out = append(out, ValidationError{
				Field:   fe.Field(),
				Message: messageFor(fe),
				Value:   fe.Value(),
				Rule:    fe.Tag(),
			})
		}
	}

	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())

	case "question_type":
		return "must be a valid question type (true_false, single_choice, multiple_choice, open_ended, fill_blanks, sort_answer, matching)"

	case "time_limit":
		return "must be between 1 and 300 minutes"
	case "passing_grade":
		return "must be between 0 and 100"
	case "quiz_title":
		return "must be between 1 and 200 characters"
	case "quiz_description":
		return "must not exceed 1000 characters"
	case "points_range":
		return "must be between 1 and 100"

	default:
		return fmt.Sprintf("validation failed for rule '%s'", fe.Tag())
	}
}

package services

import (
	"errors"
	"fmt"

	apperrors "github.com/courselab/quiz-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// Quiz specific errors
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrQuizAccessDenied   = errors.New("access denied to quiz")
	ErrQuizDuplicateTitle = errors.New("quiz title already exists for this user")

	// Question specific errors
	ErrQuestionNotFound       = errors.New("question not found")
	ErrQuestionInvalidType    = errors.New("invalid question type")
	ErrQuestionInvalidContent = errors.New("invalid question content for type")

	// Session specific errors
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionAlreadySubmitted = errors.New("session already submitted")
	ErrSessionNotStarted       = errors.New("session not started")
	ErrInvalidAnswerPayload    = errors.New("invalid answer payload")

	// Progress specific errors
	ErrProgressNotFound    = errors.New("onboarding progress not found")
	ErrProgressStoreFailed = errors.New("progress could not be persisted")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

// ===== ERROR HELPERS =====

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

// IsNotFound reports whether the error is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrProgressNotFound)
}

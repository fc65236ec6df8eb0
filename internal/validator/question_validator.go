package validator

import (
	"encoding/json"
	"fmt"

	"github.com/courselab/quiz-service/internal/models"
)

// QuestionValidator checks question content against its declared type,
// including the index invariant: every correctAnswers/correctOrder entry must
// reference an existing option/item.
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateContent validates a content blob for the given question type.
func (v *QuestionValidator) ValidateContent(questionType models.QuestionType, content []byte) error {
	if len(content) == 0 {
		return fmt.Errorf("content cannot be empty")
	}

	switch questionType {
	case models.TrueFalse:
		return v.validateTrueFalseContent(content)
	case models.SingleChoice:
		return v.validateChoiceContent(content, true)
	case models.MultipleChoice:
		return v.validateChoiceContent(content, false)
	case models.OpenEnded:
		return v.validateOpenEndedContent(content)
	case models.FillBlanks:
		return v.validateFillBlanksContent(content)
	case models.SortAnswer:
		return v.validateSortContent(content)
	case models.Matching:
		return v.validateMatchingContent(content)
	default:
		return fmt.Errorf("unsupported question type: %s", questionType)
	}
}

// ValidateQuestion validates a complete question.
func (v *QuestionValidator) ValidateQuestion(question *models.Question) error {
	if question.Prompt == "" {
		return fmt.Errorf("question prompt is required")
	}
	if question.Points < 1 || question.Points > 100 {
		return fmt.Errorf("question points must be between 1 and 100")
	}
	return v.ValidateContent(question.Type, question.Content)
}

// ValidateQuiz validates quiz metadata and every question, including id
// uniqueness across the question list.
func (v *QuestionValidator) ValidateQuiz(quiz *models.Quiz) error {
	seen := make(map[string]bool, len(quiz.Questions))
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		if seen[q.ID] {
			return fmt.Errorf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = true

		if err := v.ValidateQuestion(q); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

// ValidateBatch validates multiple questions, e.g. an import batch.
func (v *QuestionValidator) ValidateBatch(questions []*models.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("question batch cannot be empty")
	}
	for i, question := range questions {
		if err := v.ValidateQuestion(question); err != nil {
			return fmt.Errorf("validation failed for question %d: %w", i+1, err)
		}
	}
	return nil
}

// Private validation methods per question type

func (v *QuestionValidator) validateTrueFalseContent(content []byte) error {
	var c models.TrueFalseContent
	if err := json.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("invalid true/false content: %w", err)
	}
	return nil
}

func (v *QuestionValidator) validateChoiceContent(content []byte, single bool) error {
	var c models.ChoiceContent
	if err := json.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("invalid choice content: %w", err)
	}

	if len(c.Options) < 2 {
		return fmt.Errorf("must have at least 2 options")
	}
	if len(c.Options) > 10 {
		return fmt.Errorf("cannot have more than 10 options")
	}
	for _, option := range c.Options {
		if option == "" {
			return fmt.Errorf("option text cannot be empty")
		}
	}

	if len(c.CorrectAnswers) == 0 {
		return fmt.Errorf("must have at least 1 correct answer")
	}
	if single && len(c.CorrectAnswers) != 1 {
		return fmt.Errorf("single choice must have exactly 1 correct answer")
	}

	seen := make(map[int]bool, len(c.CorrectAnswers))
	for _, idx := range c.CorrectAnswers {
		if idx < 0 || idx >= len(c.Options) {
			return fmt.Errorf("correct answer index %d out of range", idx)
		}
		if seen[idx] {
			return fmt.Errorf("duplicate correct answer index %d", idx)
		}
		seen[idx] = true
	}
	return nil
}

func (v *QuestionValidator) validateOpenEndedContent(content []byte) error {
	var c models.OpenEndedContent
	if err := json.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("invalid open-ended content: %w", err)
	}
	return nil
}

func (v *QuestionValidator) validateFillBlanksContent(content []byte) error {
	var c models.FillBlanksContent
	if err := json.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("invalid fill-in-blanks content: %w", err)
	}

	if c.TextWithBlanks == "" {
		return fmt.Errorf("text with blanks is required")
	}
	if len(c.Answers) == 0 {
		return fmt.Errorf("must have at least 1 blank answer")
	}
	for i, answer := range c.Answers {
		if answer == "" {
			return fmt.Errorf("blank answer %d cannot be empty", i+1)
		}
	}
	return nil
}

func (v *QuestionValidator) validateSortContent(content []byte) error {
	var c models.SortContent
	if err := json.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("invalid sort content: %w", err)
	}

	if len(c.Items) < 2 {
		return fmt.Errorf("must have at least 2 items")
	}
	if len(c.CorrectOrder) != len(c.Items) {
		return fmt.Errorf("correct order must reference every item exactly once")
	}

	seen := make(map[int]bool, len(c.CorrectOrder))
	for _, idx := range c.CorrectOrder {
		if idx < 0 || idx >= len(c.Items) {
			return fmt.Errorf("correct order index %d out of range", idx)
		}
		if seen[idx] {
			return fmt.Errorf("duplicate correct order index %d", idx)
		}
		seen[idx] = true
	}
	return nil
}

func (v *QuestionValidator) validateMatchingContent(content []byte) error {
	var c models.MatchingContent
	if err := json.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("invalid matching content: %w", err)
	}

	if len(c.Items) == 0 {
		return fmt.Errorf("must have at least 1 matching pair")
	}

	seen := make(map[string]bool, len(c.Items))
	for i, item := range c.Items {
		if item.ID == "" {
			return fmt.Errorf("matching item %d is missing an id", i+1)
		}
		if seen[item.ID] {
			return fmt.Errorf("duplicate matching item id %s", item.ID)
		}
		seen[item.ID] = true
	}
	return nil
}

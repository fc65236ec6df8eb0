package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	TrueFalse      QuestionType = "true_false"
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	OpenEnded      QuestionType = "open_ended"
	FillBlanks     QuestionType = "fill_blanks"
	SortAnswer     QuestionType = "sort_answer"
	Matching       QuestionType = "matching"
)

// AllQuestionTypes lists every authorable question kind. Matching covers the
// image variant through MatchingContent.IsImage.
var AllQuestionTypes = []QuestionType{
	TrueFalse,
	SingleChoice,
	MultipleChoice,
	OpenEnded,
	FillBlanks,
	SortAnswer,
	Matching,
}

func (t QuestionType) IsValid() bool {
	for _, qt := range AllQuestionTypes {
		if qt == t {
			return true
		}
	}
	return false
}

// IsChoice reports whether the type carries an options list that supports
// option elimination.
func (t QuestionType) IsChoice() bool {
	return t == SingleChoice || t == MultipleChoice
}

// Question is one entry in a quiz. Content holds the type-specific payload as
// JSON; decode it with DecodeContent.
type Question struct {
	ID      string         `json:"id" gorm:"primaryKey;size:26"`
	QuizID  string         `json:"-" gorm:"index;size:26"`
	Type    QuestionType   `json:"type" gorm:"not null;size:20" validate:"required,question_type"`
	Prompt  string         `json:"question" gorm:"type:text;not null" validate:"required"`
	Points  int            `json:"points" gorm:"default:1" validate:"min=1"`
	Order   int            `json:"-" gorm:"not null"`
	Content datatypes.JSON `json:"content" gorm:"type:jsonb"`
}

func (Question) TableName() string {
	return "questions"
}

// ===== TYPE-SPECIFIC CONTENT =====

type TrueFalseContent struct {
	CorrectAnswer bool `json:"correctAnswer"`
}

// ChoiceContent backs both single and multiple choice. CorrectAnswers holds
// indices into Options; exactly one index for single choice.
type ChoiceContent struct {
	Options        []string `json:"options" validate:"min=2"`
	CorrectAnswers []int    `json:"correctAnswers" validate:"min=1"`
}

type OpenEndedContent struct {
	// ModelAnswer is reference material for reviewers; never auto-graded.
	ModelAnswer string `json:"modelAnswer"`
}

type FillBlanksContent struct {
	TextWithBlanks string   `json:"questionWithBlanks"`
	Answers        []string `json:"answers" validate:"min=1"`
}

// SortContent: Items is the display order, CorrectOrder the indices into
// Items giving the correct sequence.
type SortContent struct {
	Items        []string `json:"items" validate:"min=2"`
	CorrectOrder []int    `json:"correctOrder"`
}

type MatchItem struct {
	ID    string `json:"id"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

type MatchingContent struct {
	Items   []MatchItem `json:"items" validate:"min=1"`
	IsImage bool        `json:"isImage"`
}

// DecodeContent unmarshals the question's content blob into the struct for
// its type. The switch is exhaustive over AllQuestionTypes.
func (q *Question) DecodeContent() (interface{}, error) {
	var (
		target interface{}
		err    error
	)
	switch q.Type {
	case TrueFalse:
		var c TrueFalseContent
		err = json.Unmarshal(q.Content, &c)
		target = &c
	case SingleChoice, MultipleChoice:
		var c ChoiceContent
		err = json.Unmarshal(q.Content, &c)
		target = &c
	case OpenEnded:
		var c OpenEndedContent
		err = json.Unmarshal(q.Content, &c)
		target = &c
	case FillBlanks:
		var c FillBlanksContent
		err = json.Unmarshal(q.Content, &c)
		target = &c
	case SortAnswer:
		var c SortContent
		err = json.Unmarshal(q.Content, &c)
		target = &c
	case Matching:
		var c MatchingContent
		err = json.Unmarshal(q.Content, &c)
		target = &c
	default:
		return nil, fmt.Errorf("unknown question type %q", q.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s content: %w", q.Type, err)
	}
	return target, nil
}

// SetContent marshals a typed content struct into the question's JSON blob.
func (q *Question) SetContent(content interface{}) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode %s content: %w", q.Type, err)
	}
	q.Content = raw
	return nil
}

// ChoiceContent returns the decoded options payload, or an error for
// non-choice questions.
func (q *Question) ChoiceContent() (*ChoiceContent, error) {
	if !q.Type.IsChoice() {
		return nil, fmt.Errorf("question %s is not a choice question", q.ID)
	}
	content, err := q.DecodeContent()
	if err != nil {
		return nil, err
	}
	return content.(*ChoiceContent), nil
}

// SortContent returns the decoded ordering payload, or an error for other
// question types.
func (q *Question) SortContent() (*SortContent, error) {
	if q.Type != SortAnswer {
		return nil, fmt.Errorf("question %s is not a sort question", q.ID)
	}
	content, err := q.DecodeContent()
	if err != nil {
		return nil, err
	}
	return content.(*SortContent), nil
}

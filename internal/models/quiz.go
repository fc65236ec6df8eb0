package models

import (
	"time"
)

// Quiz is the authored document: metadata plus an ordered question list.
// Settings are frozen for the duration of any session started from it.
type Quiz struct {
	ID          string  `json:"id" gorm:"primaryKey;size:26"`
	Title       string  `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`

	// TimeLimit is in minutes; nil means untimed.
	TimeLimit *int `json:"timeLimit" validate:"omitempty,min=1,max=300"`
	// MaxQuestions caps how many questions a session draws; nil means all.
	MaxQuestions *int `json:"maxQuestions" validate:"omitempty,min=1"`
	// PassingGrade is a 0-100 percentage; nil means every submission passes.
	PassingGrade *int `json:"passingGrade" validate:"omitempty,min=0,max=100"`

	CreatedBy string    `json:"created_by" gorm:"index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Questions []Question `json:"questions" gorm:"foreignKey:QuizID;references:ID"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// QuestionByID returns the question with the given id, or nil.
func (q *Quiz) QuestionByID(id string) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i]
		}
	}
	return nil
}

// TotalPoints sums points over all questions.
func (q *Quiz) TotalPoints() int {
	total := 0
	for i := range q.Questions {
		total += q.Questions[i].Points
	}
	return total
}

// QuizDocument is the whole-document persistence envelope: the quiz plus the
// save timestamp, serialized as one JSON blob under a fixed key.
type QuizDocument struct {
	Data      Quiz  `json:"data"`
	Timestamp int64 `json:"timestamp"`
}

// NewQuizDocument snapshots a quiz for key-value persistence.
func NewQuizDocument(quiz Quiz) QuizDocument {
	return QuizDocument{
		Data:      quiz,
		Timestamp: time.Now().UnixMilli(),
	}
}

package events

import (
	"time"

	"github.com/courselab/quiz-service/internal/utils"
)

// EventType represents different types of quiz lifecycle events
type EventType string

const (
	// Session events
	EventSessionStarted   EventType = "session.started"
	EventSessionSubmitted EventType = "session.submitted"

	// Progress events
	EventProgressSaved   EventType = "progress.saved"
	EventProgressCleared EventType = "progress.cleared"
)

// Event is the base structure for all published events
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Session event payloads

type SessionStartedEvent struct {
	SessionID     string    `json:"session_id"`
	QuizID        string    `json:"quiz_id"`
	QuizTitle     string    `json:"quiz_title"`
	QuestionCount int       `json:"question_count"`
	TimeLimit     *int      `json:"time_limit,omitempty"` // minutes
	StartedAt     time.Time `json:"started_at"`
}

type SessionSubmittedEvent struct {
	SessionID   string    `json:"session_id"`
	QuizID      string    `json:"quiz_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	EndReason   string    `json:"end_reason"` // submitted or timeout
	Earned      int       `json:"earned"`
	Total       int       `json:"total"`
	Percentage  int       `json:"percentage"`
	Passed      bool      `json:"passed"`
}

// Progress event payloads

type ProgressSavedEvent struct {
	SessionID  string    `json:"session_id"`
	StepNumber int       `json:"step_number"`
	UserID     *string   `json:"user_id,omitempty"`
	SavedAt    time.Time `json:"saved_at"`
}

type ProgressClearedEvent struct {
	SessionID string    `json:"session_id"`
	ClearedAt time.Time `json:"cleared_at"`
}

// Event factory functions

func NewSessionStartedEvent(sessionID, quizID, quizTitle string, questionCount int, timeLimit *int) *Event {
	return newEvent(EventSessionStarted, SessionStartedEvent{
		SessionID:     sessionID,
		QuizID:        quizID,
		QuizTitle:     quizTitle,
		QuestionCount: questionCount,
		TimeLimit:     timeLimit,
		StartedAt:     time.Now(),
	})
}

func NewSessionSubmittedEvent(sessionID, quizID, endReason string, earned, total, percentage int, passed bool) *Event {
	return newEvent(EventSessionSubmitted, SessionSubmittedEvent{
		SessionID:   sessionID,
		QuizID:      quizID,
		SubmittedAt: time.Now(),
		EndReason:   endReason,
		Earned:      earned,
		Total:       total,
		Percentage:  percentage,
		Passed:      passed,
	})
}

func NewProgressSavedEvent(sessionID string, stepNumber int, userID *string) *Event {
	return newEvent(EventProgressSaved, ProgressSavedEvent{
		SessionID:  sessionID,
		StepNumber: stepNumber,
		UserID:     userID,
		SavedAt:    time.Now(),
	})
}

func NewProgressClearedEvent(sessionID string) *Event {
	return newEvent(EventProgressCleared, ProgressClearedEvent{
		SessionID: sessionID,
		ClearedAt: time.Now(),
	})
}

func newEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        utils.NewULID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    "quiz-service",
		Version:   "1.0",
		Data:      data,
	}
}

// Package session implements the in-progress quiz attempt: answer
// collection, option elimination, bounded navigation, the countdown timer
// and the one-way submission transition.
package session

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/courselab/quiz-service/internal/grading"
	"github.com/courselab/quiz-service/internal/models"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
)

type EndReason string

const (
	EndReasonSubmitted EndReason = "submitted"
	EndReasonTimeout   EndReason = "timeout"
)

var (
	ErrSessionSubmitted   = errors.New("session already submitted")
	ErrSessionNotStarted  = errors.New("session not started")
	ErrQuestionNotInScope = errors.New("question is not part of this session")
	ErrNotChoiceQuestion  = errors.New("elimination only applies to choice questions")
	ErrIndexOutOfBounds   = errors.New("question index out of bounds")
)

// Session is one attempt at a quiz. Quiz settings are frozen at start; all
// state transitions go through the mutex so the countdown goroutine and
// request handlers never race.
type Session struct {
	ID     string
	QuizID string

	mu           sync.Mutex
	questions    []models.Question
	passingGrade *int
	status       Status
	answers      models.AnswerSet
	eliminations models.EliminationSet
	currentIndex int
	remaining    *int // seconds; nil means untimed
	startedAt    time.Time
	submittedAt  *time.Time
	endReason    *EndReason
	score        *grading.ScoreResult

	countdown *countdown
	onSubmit  func(Snapshot)
}

// Snapshot is an immutable copy of session state, safe to hand to views,
// persistence and event publishing after the lock is released.
type Snapshot struct {
	ID            string
	QuizID        string
	Status        Status
	Questions     []models.Question
	Answers       models.AnswerSet
	Eliminations  models.EliminationSet
	CurrentIndex  int
	RemainingTime *int
	StartedAt     time.Time
	SubmittedAt   *time.Time
	EndReason     *EndReason
	Score         *grading.ScoreResult
}

// SelectQuestions draws the session's question subset: a uniform shuffle of
// all questions, truncated to maxQuestions when set and smaller than the
// total. The draw never contains duplicates.
func SelectQuestions(all []models.Question, maxQuestions *int) []models.Question {
	selected := make([]models.Question, len(all))
	copy(selected, all)
	rand.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	if maxQuestions != nil && *maxQuestions < len(selected) {
		selected = selected[:*maxQuestions]
	}
	return selected
}

// New builds a session from a quiz with its settings frozen. onSubmit fires
// exactly once, after the submitted state is committed.
func New(id string, quiz *models.Quiz, onSubmit func(Snapshot)) *Session {
	s := &Session{
		ID:           id,
		QuizID:       quiz.ID,
		questions:    SelectQuestions(quiz.Questions, quiz.MaxQuestions),
		passingGrade: quiz.PassingGrade,
		status:       StatusNotStarted,
		answers:      models.AnswerSet{},
		eliminations: models.EliminationSet{},
		onSubmit:     onSubmit,
	}
	if quiz.TimeLimit != nil {
		seconds := *quiz.TimeLimit * 60
		s.remaining = &seconds
	}
	return s
}

// Start moves the session into InProgress. The wall-clock countdown is
// started separately (StartCountdown) so state transitions stay testable
// with manually driven ticks.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusNotStarted {
		return
	}
	s.status = StatusInProgress
	s.startedAt = time.Now()
}

// StartCountdown spawns the one-second ticker for a timed, in-progress
// session. Untimed sessions ignore it.
func (s *Session) StartCountdown() {
	s.mu.Lock()
	if s.status != StatusInProgress || s.remaining == nil || s.countdown != nil {
		s.mu.Unlock()
		return
	}
	s.countdown = newCountdown(s)
	cd := s.countdown
	s.mu.Unlock()

	cd.run()
}

// RecordAnswer upserts the answer for a question. Last write wins per
// question id; mutation is rejected once submitted.
func (s *Session) RecordAnswer(questionID string, answer models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgress(); err != nil {
		return err
	}
	if s.question(questionID) == nil {
		return ErrQuestionNotInScope
	}
	s.answers[questionID] = answer
	return nil
}

// ToggleElimination strikes an option out, or back in. It is a display
// affordance for choice questions only and never influences grading.
func (s *Session) ToggleElimination(questionID string, optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgress(); err != nil {
		return err
	}
	q := s.question(questionID)
	if q == nil {
		return ErrQuestionNotInScope
	}
	if !q.Type.IsChoice() {
		return ErrNotChoiceQuestion
	}

	current := s.eliminations[questionID]
	for i, idx := range current {
		if idx == optionIndex {
			s.eliminations[questionID] = append(current[:i], current[i+1:]...)
			return nil
		}
	}
	s.eliminations[questionID] = append(current, optionIndex)
	return nil
}

// Next advances to the following question. On the last question it submits
// instead of advancing and reports that it did so.
func (s *Session) Next() (submitted bool, err error) {
	s.mu.Lock()
	if err := s.requireInProgress(); err != nil {
		s.mu.Unlock()
		return false, err
	}
	if s.currentIndex < len(s.questions)-1 {
		s.currentIndex++
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	s.Submit(EndReasonSubmitted)
	return true, nil
}

// Previous steps back one question, stopping at the first.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgress(); err != nil {
		return err
	}
	if s.currentIndex > 0 {
		s.currentIndex--
	}
	return nil
}

// Goto jumps to a question index within bounds.
func (s *Session) Goto(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgress(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.questions) {
		return ErrIndexOutOfBounds
	}
	s.currentIndex = index
	return nil
}

// Submit transitions InProgress -> Submitted exactly once: answers freeze,
// the countdown stops, the score is computed and onSubmit fires. Repeat
// calls return the already-computed score with no further side effects.
func (s *Session) Submit(reason EndReason) grading.ScoreResult {
	s.mu.Lock()
	if s.status == StatusSubmitted {
		score := *s.score
		s.mu.Unlock()
		return score
	}
	s.status = StatusSubmitted
	now := time.Now()
	s.submittedAt = &now
	s.endReason = &reason
	result := grading.CalculateScore(s.questions, s.answers, s.passingGrade)
	s.score = &result
	cd := s.countdown
	snapshot := s.snapshotLocked()
	callback := s.onSubmit
	s.mu.Unlock()

	if cd != nil {
		cd.stop()
	}
	if callback != nil {
		callback(snapshot)
	}
	return result
}

// Close tears the session down: the countdown is cancelled with no further
// callbacks. An in-progress session is abandoned, not submitted.
func (s *Session) Close() {
	s.mu.Lock()
	cd := s.countdown
	s.countdown = nil
	s.mu.Unlock()

	if cd != nil {
		cd.stop()
	}
}

// Tick consumes one second of the countdown. At zero it triggers the
// automatic submission, exactly once.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.status != StatusInProgress || s.remaining == nil {
		s.mu.Unlock()
		return
	}
	if *s.remaining > 0 {
		*s.remaining--
	}
	expired := *s.remaining <= 0
	s.mu.Unlock()

	if expired {
		s.Submit(EndReasonTimeout)
	}
}

// ===== READ ACCESSORS =====

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) RemainingTime() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remaining == nil {
		return nil
	}
	v := *s.remaining
	return &v
}

func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ===== INTERNAL =====

func (s *Session) requireInProgress() error {
	switch s.status {
	case StatusInProgress:
		return nil
	case StatusSubmitted:
		return ErrSessionSubmitted
	default:
		return ErrSessionNotStarted
	}
}

func (s *Session) question(id string) *models.Question {
	for i := range s.questions {
		if s.questions[i].ID == id {
			return &s.questions[i]
		}
	}
	return nil
}

func (s *Session) snapshotLocked() Snapshot {
	answers := make(models.AnswerSet, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	eliminations := make(models.EliminationSet, len(s.eliminations))
	for k, v := range s.eliminations {
		indices := make([]int, len(v))
		copy(indices, v)
		eliminations[k] = indices
	}
	questions := make([]models.Question, len(s.questions))
	copy(questions, s.questions)

	snapshot := Snapshot{
		ID:           s.ID,
		QuizID:       s.QuizID,
		Status:       s.status,
		Questions:    questions,
		Answers:      answers,
		Eliminations: eliminations,
		CurrentIndex: s.currentIndex,
		StartedAt:    s.startedAt,
		SubmittedAt:  s.submittedAt,
		EndReason:    s.endReason,
		Score:        s.score,
	}
	if s.remaining != nil {
		v := *s.remaining
		snapshot.RemainingTime = &v
	}
	return snapshot
}

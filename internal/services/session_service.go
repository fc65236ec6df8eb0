package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/courselab/quiz-service/internal/events"
	"github.com/courselab/quiz-service/internal/grading"
	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/player"
	"github.com/courselab/quiz-service/internal/repositories"
	"github.com/courselab/quiz-service/internal/session"
	"github.com/courselab/quiz-service/internal/utils"
)

// SessionService drives live quiz sessions: start, answer, eliminate,
// navigate, submit, review. Sessions live in memory; the submitted result is
// announced on the event bus.
type SessionService interface {
	Start(ctx context.Context, quizID string) (player.SessionView, error)
	Get(ctx context.Context, sessionID string) (player.SessionView, error)

	RecordAnswer(ctx context.Context, sessionID, questionID string, payload json.RawMessage) error
	ToggleElimination(ctx context.Context, sessionID, questionID string, optionIndex int) error

	Next(ctx context.Context, sessionID string) (submitted bool, err error)
	Previous(ctx context.Context, sessionID string) error
	Goto(ctx context.Context, sessionID string, index int) error

	Submit(ctx context.Context, sessionID string) (grading.ScoreResult, error)
	TimeRemaining(ctx context.Context, sessionID string) (*int, error)

	CurrentView(ctx context.Context, sessionID string) (player.QuestionView, error)
	ReviewViews(ctx context.Context, sessionID string) ([]player.QuestionView, error)

	Exit(ctx context.Context, sessionID string) error
}

type sessionService struct {
	quizRepo  repositories.QuizRepository
	manager   *session.Manager
	publisher events.EventPublisher
	logger    *slog.Logger
}

func NewSessionService(quizRepo repositories.QuizRepository, manager *session.Manager, publisher events.EventPublisher, logger *slog.Logger) SessionService {
	return &sessionService{
		quizRepo:  quizRepo,
		manager:   manager,
		publisher: publisher,
		logger:    logger,
	}
}

// ===== LIFECYCLE =====

func (s *sessionService) Start(ctx context.Context, quizID string) (player.SessionView, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, repositories.ErrQuizNotFound) {
			return player.SessionView{}, ErrQuizNotFound
		}
		return player.SessionView{}, fmt.Errorf("failed to load quiz: %w", err)
	}

	sessionID := utils.NewULID()
	sess := s.manager.Create(sessionID, quiz, s.onSubmit)
	snap := sess.Snapshot()

	s.logger.Info("Session started",
		"session_id", sessionID,
		"quiz_id", quizID,
		"time_limit", quiz.TimeLimit)

	event := events.NewSessionStartedEvent(sessionID, quiz.ID, quiz.Title, len(snap.Questions), quiz.TimeLimit)
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish session started event", "session_id", sessionID, "error", err)
	}

	view, err := player.BuildSessionView(snap)
	if err != nil {
		return player.SessionView{}, fmt.Errorf("failed to project session: %w", err)
	}
	return view, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (player.SessionView, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return player.SessionView{}, err
	}
	view, err := player.BuildSessionView(sess.Snapshot())
	if err != nil {
		return player.SessionView{}, fmt.Errorf("failed to project session: %w", err)
	}
	return view, nil
}

// onSubmit runs once per session, on whichever path ended it.
func (s *sessionService) onSubmit(snap session.Snapshot) {
	reason := ""
	if snap.EndReason != nil {
		reason = string(*snap.EndReason)
	}

	s.logger.Info("Session submitted",
		"session_id", snap.ID,
		"quiz_id", snap.QuizID,
		"end_reason", reason,
		"percentage", snap.Score.Percentage)

	event := events.NewSessionSubmittedEvent(snap.ID, snap.QuizID, reason,
		snap.Score.Earned, snap.Score.Total, snap.Score.Percentage, snap.Score.Passed)
	if err := s.publisher.PublishEvent(context.Background(), event); err != nil {
		s.logger.Error("Failed to publish session submitted event", "session_id", snap.ID, "error", err)
	}
}

// ===== ANSWERING =====

// RecordAnswer decodes the payload against the question's type and upserts
// it. A payload that does not fit the type, or that references unknown
// options/items, is rejected with no state change.
func (s *sessionService) RecordAnswer(ctx context.Context, sessionID, questionID string, payload json.RawMessage) error {
	sess, err := s.get(sessionID)
	if err != nil {
		return err
	}

	snap := sess.Snapshot()
	var question *models.Question
	for i := range snap.Questions {
		if snap.Questions[i].ID == questionID {
			question = &snap.Questions[i]
			break
		}
	}
	if question == nil {
		return ErrQuestionNotFound
	}

	answer, err := decodeAnswer(question, payload)
	if err != nil {
		return err
	}

	return s.translateSessionErr(sess.RecordAnswer(questionID, answer))
}

func decodeAnswer(q *models.Question, payload json.RawMessage) (models.Answer, error) {
	switch q.Type {
	case models.TrueFalse:
		var v bool
		if err := json.Unmarshal(payload, &v); err != nil {
			return models.Answer{}, ErrInvalidAnswerPayload
		}
		return models.BoolAnswer(v), nil

	case models.SingleChoice, models.MultipleChoice:
		content, err := q.ChoiceContent()
		if err != nil {
			return models.Answer{}, ErrInvalidAnswerPayload
		}
		if q.Type == models.SingleChoice {
			var idx int
			if err := json.Unmarshal(payload, &idx); err != nil {
				return models.Answer{}, ErrInvalidAnswerPayload
			}
			if idx < 0 || idx >= len(content.Options) {
				return models.Answer{}, fmt.Errorf("%w: option index %d out of range", ErrInvalidAnswerPayload, idx)
			}
			return models.IndexAnswer(idx), nil
		}
		var indices []int
		if err := json.Unmarshal(payload, &indices); err != nil {
			return models.Answer{}, ErrInvalidAnswerPayload
		}
		for _, idx := range indices {
			if idx < 0 || idx >= len(content.Options) {
				return models.Answer{}, fmt.Errorf("%w: option index %d out of range", ErrInvalidAnswerPayload, idx)
			}
		}
		return models.IndexSetAnswer(indices), nil

	case models.OpenEnded:
		var text string
		if err := json.Unmarshal(payload, &text); err != nil {
			return models.Answer{}, ErrInvalidAnswerPayload
		}
		return models.TextAnswer(text), nil

	case models.FillBlanks:
		var values []string
		if err := json.Unmarshal(payload, &values); err != nil {
			return models.Answer{}, ErrInvalidAnswerPayload
		}
		return models.BlanksAnswer(values), nil

	case models.SortAnswer:
		var order []string
		if err := json.Unmarshal(payload, &order); err != nil {
			return models.Answer{}, ErrInvalidAnswerPayload
		}
		answer, err := player.ReorderAnswer(q, order)
		if err != nil {
			return models.Answer{}, fmt.Errorf("%w: %v", ErrInvalidAnswerPayload, err)
		}
		return answer, nil

	case models.Matching:
		var pairs map[string]string
		if err := json.Unmarshal(payload, &pairs); err != nil {
			return models.Answer{}, ErrInvalidAnswerPayload
		}
		answer, err := player.PairAnswer(q, pairs)
		if err != nil {
			return models.Answer{}, fmt.Errorf("%w: %v", ErrInvalidAnswerPayload, err)
		}
		return answer, nil

	default:
		return models.Answer{}, fmt.Errorf("%w: %s", ErrQuestionInvalidType, q.Type)
	}
}

func (s *sessionService) ToggleElimination(ctx context.Context, sessionID, questionID string, optionIndex int) error {
	sess, err := s.get(sessionID)
	if err != nil {
		return err
	}
	return s.translateSessionErr(sess.ToggleElimination(questionID, optionIndex))
}

// ===== NAVIGATION =====

func (s *sessionService) Next(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return false, err
	}
	submitted, err := sess.Next()
	return submitted, s.translateSessionErr(err)
}

func (s *sessionService) Previous(ctx context.Context, sessionID string) error {
	sess, err := s.get(sessionID)
	if err != nil {
		return err
	}
	return s.translateSessionErr(sess.Previous())
}

func (s *sessionService) Goto(ctx context.Context, sessionID string, index int) error {
	sess, err := s.get(sessionID)
	if err != nil {
		return err
	}
	return s.translateSessionErr(sess.Goto(index))
}

// ===== SUBMISSION =====

func (s *sessionService) Submit(ctx context.Context, sessionID string) (grading.ScoreResult, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return grading.ScoreResult{}, err
	}
	return sess.Submit(session.EndReasonSubmitted), nil
}

func (s *sessionService) TimeRemaining(ctx context.Context, sessionID string) (*int, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.RemainingTime(), nil
}

// ===== VIEWS =====

func (s *sessionService) CurrentView(ctx context.Context, sessionID string) (player.QuestionView, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return player.QuestionView{}, err
	}
	snap := sess.Snapshot()
	return player.BuildQuestionView(snap, snap.CurrentIndex)
}

func (s *sessionService) ReviewViews(ctx context.Context, sessionID string) ([]player.QuestionView, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return player.BuildViews(sess.Snapshot())
}

// Exit tears the session down; the countdown is cancelled so no late tick can
// fire afterwards.
func (s *sessionService) Exit(ctx context.Context, sessionID string) error {
	if _, err := s.get(sessionID); err != nil {
		return err
	}
	s.manager.Remove(sessionID)
	s.logger.Info("Session exited", "session_id", sessionID)
	return nil
}

// ===== INTERNAL =====

func (s *sessionService) get(sessionID string) (*session.Session, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *sessionService) translateSessionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrSessionSubmitted):
		return ErrSessionAlreadySubmitted
	case errors.Is(err, session.ErrSessionNotStarted):
		return ErrSessionNotStarted
	case errors.Is(err, session.ErrQuestionNotInScope):
		return ErrQuestionNotFound
	default:
		return err
	}
}

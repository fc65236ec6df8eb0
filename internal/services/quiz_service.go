package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/courselab/quiz-service/internal/authoring"
	"github.com/courselab/quiz-service/internal/cache"
	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/repositories"
	"github.com/courselab/quiz-service/internal/utils"
	"github.com/courselab/quiz-service/internal/validator"
)

// The document never expires; deletes remove it explicitly.
const quizDocumentTTL time.Duration = 0

// QuizDocumentKey is the fixed KV key for a quiz's whole-document snapshot.
func QuizDocumentKey(quizID string) string {
	return "quizbuilder:document:" + quizID
}

// QuizService covers authoring: quiz CRUD, question CRUD, and option/item
// edits with index re-referencing. Every mutation re-serializes the whole
// quiz document into the KV store and updates the authority row.
type QuizService interface {
	Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*models.Quiz, error)
	GetByID(ctx context.Context, id string) (*models.Quiz, error)
	List(ctx context.Context, creatorID string, limit, offset int) ([]*models.Quiz, int64, error)
	UpdateMeta(ctx context.Context, id string, patch authoring.MetaPatch, userID string) (*models.Quiz, error)
	Delete(ctx context.Context, id string, userID string) error

	AddQuestion(ctx context.Context, quizID string, qtype models.QuestionType, userID string) (*models.Question, error)
	ImportQuestions(ctx context.Context, quizID string, questions []*models.Question, userID string) (*models.Quiz, error)
	UpdateQuestion(ctx context.Context, quizID, questionID string, patch authoring.QuestionPatch, userID string) (*models.Quiz, error)
	DeleteQuestion(ctx context.Context, quizID, questionID string, userID string) error

	AddChoiceOption(ctx context.Context, quizID, questionID, option string, userID string) (*models.Quiz, error)
	RemoveChoiceOption(ctx context.Context, quizID, questionID string, index int, userID string) (*models.Quiz, error)
	AddSortItem(ctx context.Context, quizID, questionID, item string, userID string) (*models.Quiz, error)
	RemoveSortItem(ctx context.Context, quizID, questionID string, index int, userID string) (*models.Quiz, error)
}

type CreateQuizRequest struct {
	Title        string  `json:"title" validate:"required,min=1,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=1000"`
	TimeLimit    *int    `json:"timeLimit" validate:"omitempty,min=1,max=300"`
	MaxQuestions *int    `json:"maxQuestions" validate:"omitempty,min=1"`
	PassingGrade *int    `json:"passingGrade" validate:"omitempty,min=0,max=100"`
}

type quizService struct {
	repo      repositories.QuizRepository
	cache     cache.CacheService
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuizService(repo repositories.QuizRepository, cacheSvc cache.CacheService, logger *slog.Logger, v *validator.Validator) QuizService {
	return &quizService{
		repo:      repo,
		cache:     cacheSvc,
		logger:    logger,
		validator: v,
	}
}

// ===== QUIZ CRUD =====

func (s *quizService) Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*models.Quiz, error) {
	s.logger.Info("Creating quiz", "creator_id", creatorID, "title", req.Title)

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	quiz := &models.Quiz{
		ID:           utils.NewULID(),
		Title:        req.Title,
		Description:  req.Description,
		TimeLimit:    req.TimeLimit,
		MaxQuestions: req.MaxQuestions,
		PassingGrade: req.PassingGrade,
		CreatedBy:    creatorID,
		Questions:    []models.Question{},
	}

	if err := s.repo.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	s.persistDocument(ctx, quiz)
	return quiz, nil
}

func (s *quizService) GetByID(ctx context.Context, id string) (*models.Quiz, error) {
	quiz, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrQuizNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return quiz, nil
}

func (s *quizService) List(ctx context.Context, creatorID string, limit, offset int) ([]*models.Quiz, int64, error) {
	return s.repo.GetByCreator(ctx, creatorID, repositories.QuizFilters{
		Limit:  limit,
		Offset: offset,
	})
}

func (s *quizService) UpdateMeta(ctx context.Context, id string, patch authoring.MetaPatch, userID string) (*models.Quiz, error) {
	return s.mutate(ctx, id, userID, func(b *authoring.Builder) error {
		b.UpdateMeta(patch)
		return nil
	})
}

func (s *quizService) Delete(ctx context.Context, id string, userID string) error {
	if err := s.requireOwner(ctx, id, userID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrQuizNotFound) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	if err := s.cache.Delete(ctx, QuizDocumentKey(id)); err != nil {
		s.logger.Warn("Failed to drop quiz document from cache", "quiz_id", id, "error", err)
	}

	s.logger.Info("Quiz deleted", "quiz_id", id, "user_id", userID)
	return nil
}

// ===== QUESTION EDITING =====

func (s *quizService) AddQuestion(ctx context.Context, quizID string, qtype models.QuestionType, userID string) (*models.Question, error) {
	if !qtype.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrQuestionInvalidType, qtype)
	}

	var added *models.Question
	_, err := s.mutate(ctx, quizID, userID, func(b *authoring.Builder) error {
		q, err := b.AddQuestion(qtype)
		if err != nil {
			return err
		}
		added = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (s *quizService) ImportQuestions(ctx context.Context, quizID string, questions []*models.Question, userID string) (*models.Quiz, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: import batch is empty", ErrBadRequest)
	}

	batch := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		imported := *q
		if imported.ID == "" {
			imported.ID = utils.NewULID()
		}
		batch = append(batch, imported)
	}

	quiz, err := s.mutate(ctx, quizID, userID, func(b *authoring.Builder) error {
		b.AppendQuestions(batch)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("imported questions into quiz",
		"quiz_id", quizID,
		"count", len(batch),
	)
	return quiz, nil
}

func (s *quizService) UpdateQuestion(ctx context.Context, quizID, questionID string, patch authoring.QuestionPatch, userID string) (*models.Quiz, error) {
	return s.mutate(ctx, quizID, userID, func(b *authoring.Builder) error {
		return b.UpdateQuestion(questionID, patch)
	})
}

func (s *quizService) DeleteQuestion(ctx context.Context, quizID, questionID string, userID string) error {
	_, err := s.mutate(ctx, quizID, userID, func(b *authoring.Builder) error {
		return b.DeleteQuestion(questionID)
	})
	return err
}

func (s *quizService) AddChoiceOption(ctx context.Context, quizID, questionID, option string, userID string) (*models.Quiz, error) {
	return s.mutate(ctx, quizID, userID, func(b *authoring.Builder) error {
		return b.AddChoiceOption(questionID, option)
	})
}

func (s *quizService) RemoveChoiceOption(ctx context.Context, quizID, questionID string, index int, userID string) (*models.Quiz, error) {
	return s.mutate(ctx, quizID, userID, func(b *authoring.Builder) error {
		return b.RemoveChoiceOption(questionID, index)
	})
}

func (s *quizService) AddSortItem(ctx context.Context, quizID, questionID, item string, userID string) (*models.Quiz, error) {
	return s.mutate(ctx, quizID, userID, func(b *authoring.Builder) error {
		return b.AddSortItem(questionID, item)
	})
}

func (s *quizService) RemoveSortItem(ctx context.Context, quizID, questionID string, index int, userID string) (*models.Quiz, error) {
	return s.mutate(ctx, quizID, userID, func(b *authoring.Builder) error {
		return b.RemoveSortItem(questionID, index)
	})
}

// ===== INTERNAL =====

// mutate runs one builder edit against the stored quiz, validates the result
// and persists it to both the authority row and the KV document.
func (s *quizService) mutate(ctx context.Context, quizID, userID string, edit func(*authoring.Builder) error) (*models.Quiz, error) {
	if err := s.requireOwner(ctx, quizID, userID); err != nil {
		return nil, err
	}

	quiz, err := s.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	builder := authoring.NewBuilder(quiz)
	if err := edit(builder); err != nil {
		if errors.Is(err, authoring.ErrQuestionNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}

	if err := s.validator.Question().ValidateQuiz(quiz); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	if err := s.repo.Update(ctx, quiz); err != nil {
		return nil, fmt.Errorf("failed to save quiz: %w", err)
	}

	s.persistDocument(ctx, quiz)
	return quiz, nil
}

func (s *quizService) requireOwner(ctx context.Context, quizID, userID string) error {
	owner, err := s.repo.IsOwner(ctx, quizID, userID)
	if err != nil {
		return fmt.Errorf("ownership check failed: %w", err)
	}
	if !owner {
		return ErrQuizAccessDenied
	}
	return nil
}

// persistDocument re-serializes the whole quiz under its fixed document key.
// Cache failures are soft; the authority row already holds the data.
func (s *quizService) persistDocument(ctx context.Context, quiz *models.Quiz) {
	doc := models.NewQuizDocument(*quiz)
	if err := s.cache.Set(ctx, QuizDocumentKey(quiz.ID), doc, quizDocumentTTL); err != nil {
		s.logger.Warn("Failed to persist quiz document", "quiz_id", quiz.ID, "error", err)
	}
}

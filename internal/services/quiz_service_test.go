package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courselab/quiz-service/internal/cache"
	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/repositories"
	"github.com/courselab/quiz-service/internal/validator"
)

// memoryQuizRepo is an in-memory authority stand-in.
type memoryQuizRepo struct {
	mu      sync.Mutex
	quizzes map[string]*models.Quiz
}

func newMemoryQuizRepo() *memoryQuizRepo {
	return &memoryQuizRepo{quizzes: make(map[string]*models.Quiz)}
}

func (r *memoryQuizRepo) Create(ctx context.Context, quiz *models.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *quiz
	r.quizzes[quiz.ID] = &clone
	return nil
}

func (r *memoryQuizRepo) GetByID(ctx context.Context, id string) (*models.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz, ok := r.quizzes[id]
	if !ok {
		return nil, repositories.ErrQuizNotFound
	}
	clone := *quiz
	clone.Questions = append([]models.Question(nil), quiz.Questions...)
	return &clone, nil
}

func (r *memoryQuizRepo) Update(ctx context.Context, quiz *models.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quizzes[quiz.ID]; !ok {
		return repositories.ErrQuizNotFound
	}
	clone := *quiz
	clone.Questions = append([]models.Question(nil), quiz.Questions...)
	r.quizzes[quiz.ID] = &clone
	return nil
}

func (r *memoryQuizRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quizzes[id]; !ok {
		return repositories.ErrQuizNotFound
	}
	delete(r.quizzes, id)
	return nil
}

func (r *memoryQuizRepo) List(ctx context.Context, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Quiz
	for _, quiz := range r.quizzes {
		if filters.CreatedBy != nil && quiz.CreatedBy != *filters.CreatedBy {
			continue
		}
		clone := *quiz
		out = append(out, &clone)
	}
	return out, int64(len(out)), nil
}

func (r *memoryQuizRepo) GetByCreator(ctx context.Context, creatorID string, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	filters.CreatedBy = &creatorID
	return r.List(ctx, filters)
}

func (r *memoryQuizRepo) IsOwner(ctx context.Context, quizID string, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz, ok := r.quizzes[quizID]
	return ok && quiz.CreatedBy == userID, nil
}

func (r *memoryQuizRepo) ExistsByTitle(ctx context.Context, title string, creatorID string, excludeID *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, quiz := range r.quizzes {
		if excludeID != nil && quiz.ID == *excludeID {
			continue
		}
		if quiz.CreatedBy == creatorID && quiz.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func newTestQuizService(t *testing.T) (QuizService, cache.CacheService) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cacheSvc := cache.NewRedisCache(client, zap.NewNop())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewQuizService(newMemoryQuizRepo(), cacheSvc, logger, validator.New()), cacheSvc
}

func TestQuizService_CreatePersistsDocument(t *testing.T) {
	svc, cacheSvc := newTestQuizService(t)
	ctx := context.Background()

	quiz, err := svc.Create(ctx, &CreateQuizRequest{Title: "Go basics"}, "user-1")
	require.NoError(t, err)
	assert.Len(t, quiz.ID, 26)

	var doc models.QuizDocument
	require.NoError(t, cacheSvc.Get(ctx, QuizDocumentKey(quiz.ID), &doc))
	assert.Equal(t, "Go basics", doc.Data.Title)
}

func TestQuizService_MutationsRequireOwnership(t *testing.T) {
	svc, _ := newTestQuizService(t)
	ctx := context.Background()

	quiz, err := svc.Create(ctx, &CreateQuizRequest{Title: "Owned"}, "user-1")
	require.NoError(t, err)

	_, err = svc.AddQuestion(ctx, quiz.ID, models.TrueFalse, "someone-else")
	assert.ErrorIs(t, err, ErrQuizAccessDenied)

	question, err := svc.AddQuestion(ctx, quiz.ID, models.TrueFalse, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TrueFalse, question.Type)
}

func TestQuizService_AddQuestionUpdatesDocument(t *testing.T) {
	svc, cacheSvc := newTestQuizService(t)
	ctx := context.Background()

	quiz, err := svc.Create(ctx, &CreateQuizRequest{Title: "Doc sync"}, "user-1")
	require.NoError(t, err)

	_, err = svc.AddQuestion(ctx, quiz.ID, models.SingleChoice, "user-1")
	require.NoError(t, err)

	var doc models.QuizDocument
	require.NoError(t, cacheSvc.Get(ctx, QuizDocumentKey(quiz.ID), &doc))
	require.Len(t, doc.Data.Questions, 1)
	assert.Equal(t, models.SingleChoice, doc.Data.Questions[0].Type)
}

func TestQuizService_ImportQuestionsAppends(t *testing.T) {
	svc, _ := newTestQuizService(t)
	ctx := context.Background()

	quiz, err := svc.Create(ctx, &CreateQuizRequest{Title: "Import target"}, "user-1")
	require.NoError(t, err)

	_, err = svc.AddQuestion(ctx, quiz.ID, models.TrueFalse, "user-1")
	require.NoError(t, err)

	imported := models.Question{Type: models.SingleChoice, Prompt: "Pick B", Points: 2}
	require.NoError(t, imported.SetContent(models.ChoiceContent{
		Options:        []string{"A", "B"},
		CorrectAnswers: []int{1},
	}))

	updated, err := svc.ImportQuestions(ctx, quiz.ID, []*models.Question{&imported}, "user-1")
	require.NoError(t, err)
	require.Len(t, updated.Questions, 2)

	// Imported questions land after the existing ones.
	last := updated.Questions[len(updated.Questions)-1]
	assert.Equal(t, "Pick B", last.Prompt)
	assert.Equal(t, quiz.ID, last.QuizID)
	assert.NotEmpty(t, last.ID)
}

func TestQuizService_ImportRejectsEmptyBatch(t *testing.T) {
	svc, _ := newTestQuizService(t)
	ctx := context.Background()

	quiz, err := svc.Create(ctx, &CreateQuizRequest{Title: "Empty import"}, "user-1")
	require.NoError(t, err)

	_, err = svc.ImportQuestions(ctx, quiz.ID, nil, "user-1")
	assert.True(t, errors.Is(err, ErrBadRequest))
}

func TestQuizService_DeleteDropsDocument(t *testing.T) {
	svc, cacheSvc := newTestQuizService(t)
	ctx := context.Background()

	quiz, err := svc.Create(ctx, &CreateQuizRequest{Title: "Short lived"}, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, quiz.ID, "user-1"))

	_, err = svc.GetByID(ctx, quiz.ID)
	assert.ErrorIs(t, err, ErrQuizNotFound)

	var doc models.QuizDocument
	err = cacheSvc.Get(ctx, QuizDocumentKey(quiz.ID), &doc)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

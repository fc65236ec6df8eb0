package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/courselab/quiz-service/internal/events"
	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionService(t *testing.T) (SessionService, *memoryQuizRepo) {
	t.Helper()

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newMemoryQuizRepo()
	svc := NewSessionService(repo, session.NewManager(), events.NewMockEventPublisher(discard), discard)
	return svc, repo
}

func seedSessionQuiz(t *testing.T, repo *memoryQuizRepo) *models.Quiz {
	t.Helper()

	choice := models.Question{ID: "q1", Type: models.SingleChoice, Prompt: "Pick one", Points: 2}
	require.NoError(t, choice.SetContent(models.ChoiceContent{
		Options:        []string{"A", "B"},
		CorrectAnswers: []int{1},
	}))

	quiz := &models.Quiz{
		ID:        "quiz-1",
		Title:     "Wire format quiz",
		CreatedBy: "user-1",
		Questions: []models.Question{choice},
	}
	require.NoError(t, repo.Create(context.Background(), quiz))
	return quiz
}

func TestSessionService_StartHidesAnswerKeys(t *testing.T) {
	svc, repo := newTestSessionService(t)
	quiz := seedSessionQuiz(t, repo)
	ctx := context.Background()

	view, err := svc.Start(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusInProgress, view.Status)

	payload, err := json.Marshal(view)
	require.NoError(t, err)
	body := string(payload)

	assert.NotContains(t, body, "correctAnswers")
	assert.NotContains(t, body, `"content"`)
	assert.Contains(t, body, `"options":["A","B"]`)
}

func TestSessionService_GetRevealsAnswersOnlyAfterSubmit(t *testing.T) {
	svc, repo := newTestSessionService(t)
	quiz := seedSessionQuiz(t, repo)
	ctx := context.Background()

	started, err := svc.Start(ctx, quiz.ID)
	require.NoError(t, err)

	mid, err := svc.Get(ctx, started.ID)
	require.NoError(t, err)
	payload, err := json.Marshal(mid)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "correctAnswers")

	require.NoError(t, svc.RecordAnswer(ctx, started.ID, "q1", json.RawMessage(`1`)))
	score, err := svc.Submit(ctx, started.ID)
	require.NoError(t, err)
	assert.True(t, score.Passed)

	done, err := svc.Get(ctx, started.ID)
	require.NoError(t, err)
	require.Len(t, done.Questions, 1)
	require.NotNil(t, done.Questions[0].Review)
	assert.Equal(t, []int{1}, done.Questions[0].Review.CorrectAnswer.Indices)
}

package authoring

import (
	"testing"

	"github.com/courselab/quiz-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	return NewBuilder(&models.Quiz{ID: "quiz-1", Title: "Draft"})
}

func TestBuilder_AddQuestion(t *testing.T) {
	b := newTestBuilder(t)

	for _, qtype := range models.AllQuestionTypes {
		t.Run(string(qtype), func(t *testing.T) {
			q, err := b.AddQuestion(qtype)
			require.NoError(t, err)
			assert.NotEmpty(t, q.ID)
			assert.Equal(t, qtype, q.Type)
			assert.Equal(t, 1, q.Points)

			// defaults must decode with the type's content shape
			_, err = q.DecodeContent()
			assert.NoError(t, err)
		})
	}

	t.Run("new questions are prepended", func(t *testing.T) {
		q, err := b.AddQuestion(models.TrueFalse)
		require.NoError(t, err)
		assert.Equal(t, q.ID, b.Quiz().Questions[0].ID)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := b.AddQuestion(models.QuestionType("essay"))
		assert.Error(t, err)
	})

	t.Run("ids are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for _, q := range b.Quiz().Questions {
			assert.False(t, seen[q.ID], "duplicate question id %s", q.ID)
			seen[q.ID] = true
		}
	})
}

func TestBuilder_UpdateQuestion(t *testing.T) {
	b := newTestBuilder(t)
	q, err := b.AddQuestion(models.SingleChoice)
	require.NoError(t, err)

	prompt := "Pick one"
	points := 5
	require.NoError(t, b.UpdateQuestion(q.ID, QuestionPatch{
		Prompt: &prompt,
		Points: &points,
		Content: models.ChoiceContent{
			Options:        []string{"A", "B", "C"},
			CorrectAnswers: []int{2},
		},
	}))

	updated := b.Quiz().QuestionByID(q.ID)
	assert.Equal(t, "Pick one", updated.Prompt)
	assert.Equal(t, 5, updated.Points)
	content, err := updated.ChoiceContent()
	require.NoError(t, err)
	assert.Equal(t, []int{2}, content.CorrectAnswers)

	t.Run("non-positive points rejected", func(t *testing.T) {
		zero := 0
		assert.Error(t, b.UpdateQuestion(q.ID, QuestionPatch{Points: &zero}))
	})

	t.Run("missing id", func(t *testing.T) {
		assert.ErrorIs(t, b.UpdateQuestion("nope", QuestionPatch{}), ErrQuestionNotFound)
	})
}

func TestBuilder_DeleteQuestion(t *testing.T) {
	b := newTestBuilder(t)
	q1, _ := b.AddQuestion(models.TrueFalse)
	q2, _ := b.AddQuestion(models.TrueFalse)

	require.NoError(t, b.DeleteQuestion(q1.ID))
	assert.Len(t, b.Quiz().Questions, 1)
	assert.Equal(t, q2.ID, b.Quiz().Questions[0].ID)
	assert.ErrorIs(t, b.DeleteQuestion(q1.ID), ErrQuestionNotFound)
}

func TestBuilder_RemoveChoiceOption_Reindexes(t *testing.T) {
	b := newTestBuilder(t)
	q, err := b.AddQuestion(models.MultipleChoice)
	require.NoError(t, err)

	// correctAnswers {k-1, k, k+1} with k=2
	require.NoError(t, b.UpdateQuestion(q.ID, QuestionPatch{
		Content: models.ChoiceContent{
			Options:        []string{"A", "B", "C", "D", "E"},
			CorrectAnswers: []int{1, 2, 3},
		},
	}))

	require.NoError(t, b.RemoveChoiceOption(q.ID, 2))

	content, err := b.Quiz().QuestionByID(q.ID).ChoiceContent()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D", "E"}, content.Options)
	// k dropped, k+1 shifted down to k
	assert.Equal(t, []int{1, 2}, content.CorrectAnswers)

	t.Run("out of range", func(t *testing.T) {
		assert.ErrorIs(t, b.RemoveChoiceOption(q.ID, 99), ErrOptionOutOfRange)
	})

	t.Run("floor of two options", func(t *testing.T) {
		require.NoError(t, b.RemoveChoiceOption(q.ID, 3))
		require.NoError(t, b.RemoveChoiceOption(q.ID, 2))
		assert.ErrorIs(t, b.RemoveChoiceOption(q.ID, 0), ErrTooFewOptions)
	})
}

func TestBuilder_RemoveSortItem_Reindexes(t *testing.T) {
	b := newTestBuilder(t)
	q, err := b.AddQuestion(models.SortAnswer)
	require.NoError(t, err)

	require.NoError(t, b.UpdateQuestion(q.ID, QuestionPatch{
		Content: models.SortContent{
			Items:        []string{"w", "x", "y", "z"},
			CorrectOrder: []int{3, 1, 0, 2},
		},
	}))

	require.NoError(t, b.RemoveSortItem(q.ID, 1))

	content, err := b.Quiz().QuestionByID(q.ID).SortContent()
	require.NoError(t, err)
	assert.Equal(t, []string{"w", "y", "z"}, content.Items)
	// reference to 1 dropped; 3->2, 2->1, 0 unchanged
	assert.Equal(t, []int{2, 0, 1}, content.CorrectOrder)

	// every surviving reference stays a valid index
	for _, idx := range content.CorrectOrder {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, len(content.Items))
	}
}

func TestBuilder_AddSortItem(t *testing.T) {
	b := newTestBuilder(t)
	q, err := b.AddQuestion(models.SortAnswer)
	require.NoError(t, err)

	require.NoError(t, b.AddSortItem(q.ID, "Item 3"))

	content, err := b.Quiz().QuestionByID(q.ID).SortContent()
	require.NoError(t, err)
	assert.Equal(t, []string{"Item 1", "Item 2", "Item 3"}, content.Items)
	assert.Equal(t, []int{0, 1, 2}, content.CorrectOrder)
}

func TestBuilder_UpdateMeta(t *testing.T) {
	b := newTestBuilder(t)

	title := "Final Exam"
	limit := 30
	grade := 70
	b.UpdateMeta(MetaPatch{Title: &title, TimeLimit: &limit, PassingGrade: &grade})

	quiz := b.Quiz()
	assert.Equal(t, "Final Exam", quiz.Title)
	require.NotNil(t, quiz.TimeLimit)
	assert.Equal(t, 30, *quiz.TimeLimit)
	require.NotNil(t, quiz.PassingGrade)
	assert.Equal(t, 70, *quiz.PassingGrade)
	assert.Nil(t, quiz.MaxQuestions, "unset fields stay unchanged")
}

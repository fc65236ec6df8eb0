package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/utils"
	"github.com/courselab/quiz-service/internal/validator"
)

func newImportExportService(t *testing.T) ImportExportService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewImportExportService(logger, validator.New())
}

func TestImportQuestionsFromCSV_SingleChoiceRow(t *testing.T) {
	svc := newImportExportService(t)

	input := strings.Join([]string{
		"Type,Question,Points,CorrectAnswer,Options/Items,Additional Data",
		`Single Choice,Pick A,2,0,"A,B,C",`,
	}, "\n")

	result, err := svc.ImportQuestionsFromCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessCount)
	require.Empty(t, result.Errors)
	require.Len(t, result.Questions, 1)

	q := result.Questions[0]
	assert.Equal(t, models.SingleChoice, q.Type)
	assert.Equal(t, "Pick A", q.Prompt)
	assert.Equal(t, 2, q.Points)

	content, err := q.ChoiceContent()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, content.Options)
	assert.Equal(t, []int{0}, content.CorrectAnswers)
}

func TestImportQuestionsFromCSV_MalformedRowsSkipped(t *testing.T) {
	svc := newImportExportService(t)

	input := strings.Join([]string{
		"Type,Question,Points,CorrectAnswer,Options/Items,Additional Data",
		"true_false,The sky is blue,1,true,,",
		"alien_type,Who knows,1,42,,",
		"single_choice,Pick one,zero,0,\"A,B\",",
		`multiple_choice,Pick several,3,"0,2","A,B,C",`,
	}, "\n")

	result, err := svc.ImportQuestionsFromCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalRows)
	assert.Equal(t, 4, result.ProcessedRows)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 2, result.ErrorCount)
	require.Len(t, result.Errors, 2)

	// Row numbers are 1-based and account for the header.
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, "Type", result.Errors[0].Column)
	assert.Equal(t, 4, result.Errors[1].Row)
	assert.Equal(t, "Points", result.Errors[1].Column)
}

func TestImportQuestionsFromCSV_DisplayNamesAndDefaults(t *testing.T) {
	svc := newImportExportService(t)

	input := strings.Join([]string{
		"Type,Question,Points,CorrectAnswer,Options/Items,Additional Data",
		"True/False,Water is wet,,true,,",
		`ordering,Order the steps,2,"1,0","boil water,grind beans",`,
		`matching,Match the sounds,1,,"cat,dog","meow,woof"`,
	}, "\n")

	result, err := svc.ImportQuestionsFromCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 3, result.SuccessCount, "errors: %v", result.Errors)

	assert.Equal(t, models.TrueFalse, result.Questions[0].Type)
	assert.Equal(t, 1, result.Questions[0].Points, "points default to 1 when blank")

	sort, err := result.Questions[1].SortContent()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, sort.CorrectOrder)

	content, err := result.Questions[2].DecodeContent()
	require.NoError(t, err)
	matching := content.(*models.MatchingContent)
	require.Len(t, matching.Items, 2)
	assert.Equal(t, "cat", matching.Items[0].Left)
	assert.Equal(t, "meow", matching.Items[0].Right)
	assert.NotEmpty(t, matching.Items[0].ID)
}

func TestImportQuestionsFromCSV_ValidatorRejectsBadContent(t *testing.T) {
	svc := newImportExportService(t)

	// Correct answer index 5 is outside the two options.
	input := strings.Join([]string{
		"Type,Question,Points,CorrectAnswer,Options/Items,Additional Data",
		`single_choice,Pick one,1,5,"A,B",`,
	}, "\n")

	result, err := svc.ImportQuestionsFromCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
}

func TestImportQuestionsFromFile_UnsupportedExtension(t *testing.T) {
	svc := newImportExportService(t)

	_, err := svc.ImportQuestionsFromFile(context.Background(), strings.NewReader("x"), "questions.pdf")
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "file", vErr.Field)
}

func TestExportQuestionsToCSV(t *testing.T) {
	svc := newImportExportService(t)
	quiz := exportQuiz(t)

	data, err := svc.ExportQuestionsToCSV(context.Background(), quiz)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, csvHeader, records[0])

	assert.Equal(t, "true_false", records[1][0])
	assert.Equal(t, "Is Go compiled", records[1][1])
	assert.Equal(t, "true", records[1][3])

	assert.Equal(t, "single_choice", records[2][0])
	assert.Equal(t, "1", records[2][3])
	assert.Equal(t, "red,green,blue", records[2][4])
}

func TestExportImportRoundTripExcel(t *testing.T) {
	svc := newImportExportService(t)
	quiz := exportQuiz(t)

	data, err := svc.ExportQuestionsToExcel(context.Background(), quiz)
	require.NoError(t, err)

	result, err := svc.ImportQuestionsFromExcel(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount, "errors: %v", result.Errors)

	assert.Equal(t, models.TrueFalse, result.Questions[0].Type)
	assert.Equal(t, models.SingleChoice, result.Questions[1].Type)

	content, err := result.Questions[1].ChoiceContent()
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "green", "blue"}, content.Options)
	assert.Equal(t, []int{1}, content.CorrectAnswers)
}

func TestExportImportRoundTripImageMatching(t *testing.T) {
	svc := newImportExportService(t)

	q := models.Question{ID: utils.NewULID(), Type: models.Matching, Prompt: "Match the flags", Points: 1}
	require.NoError(t, q.SetContent(models.MatchingContent{
		Items: []models.MatchItem{
			{ID: utils.NewULID(), Left: "flag-fr.png", Right: "France"},
			{ID: utils.NewULID(), Left: "flag-jp.png", Right: "Japan"},
		},
		IsImage: true,
	}))
	quiz := &models.Quiz{ID: utils.NewULID(), Title: "Flags", Questions: []models.Question{q}}

	data, err := svc.ExportQuestionsToCSV(context.Background(), quiz)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "image_matching", records[1][0], "image variant survives in the type cell")

	result, err := svc.ImportQuestionsFromCSV(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessCount, "errors: %v", result.Errors)

	assert.Equal(t, models.Matching, result.Questions[0].Type)
	content, err := result.Questions[0].DecodeContent()
	require.NoError(t, err)
	matching := content.(*models.MatchingContent)
	assert.True(t, matching.IsImage)
	require.Len(t, matching.Items, 2)
	assert.Equal(t, "flag-fr.png", matching.Items[0].Left)
	assert.Equal(t, "France", matching.Items[0].Right)
}

func exportQuiz(t *testing.T) *models.Quiz {
	t.Helper()

	tf := models.Question{ID: utils.NewULID(), Type: models.TrueFalse, Prompt: "Is Go compiled", Points: 1}
	require.NoError(t, tf.SetContent(models.TrueFalseContent{CorrectAnswer: true}))

	sc := models.Question{ID: utils.NewULID(), Type: models.SingleChoice, Prompt: "Pick green", Points: 2}
	require.NoError(t, sc.SetContent(models.ChoiceContent{
		Options:        []string{"red", "green", "blue"},
		CorrectAnswers: []int{1},
	}))

	return &models.Quiz{
		ID:        utils.NewULID(),
		Title:     "Export fixture",
		Questions: []models.Question{tf, sc},
	}
}

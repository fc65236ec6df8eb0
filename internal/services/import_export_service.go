package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/utils"
	"github.com/courselab/quiz-service/internal/validator"
	"github.com/xuri/excelize/v2"
)

// csvHeader is the interchange format: one row per question.
var csvHeader = []string{"Type", "Question", "Points", "CorrectAnswer", "Options/Items", "Additional Data"}

// ImportExportService converts quizzes to and from the tabular interchange
// format (CSV and Excel). Malformed rows are reported and skipped, never
// fatal to the batch.
type ImportExportService interface {
	ImportQuestionsFromFile(ctx context.Context, reader io.Reader, filename string) (*models.ImportResult, error)
	ImportQuestionsFromCSV(ctx context.Context, reader io.Reader) (*models.ImportResult, error)
	ImportQuestionsFromExcel(ctx context.Context, reader io.Reader) (*models.ImportResult, error)

	ExportQuestionsToCSV(ctx context.Context, quiz *models.Quiz) ([]byte, error)
	ExportQuestionsToExcel(ctx context.Context, quiz *models.Quiz) ([]byte, error)
}

type importExportService struct {
	logger    *slog.Logger
	validator *validator.Validator
}

func NewImportExportService(logger *slog.Logger, v *validator.Validator) ImportExportService {
	return &importExportService{
		logger:    logger,
		validator: v,
	}
}

// ===== IMPORT OPERATIONS =====

func (s *importExportService) ImportQuestionsFromFile(ctx context.Context, reader io.Reader, filename string) (*models.ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".csv":
		return s.ImportQuestionsFromCSV(ctx, reader)
	case ".xlsx", ".xls":
		return s.ImportQuestionsFromExcel(ctx, reader)
	default:
		return nil, NewValidationError("file", "unsupported file format", ext)
	}
}

func (s *importExportService) ImportQuestionsFromCSV(ctx context.Context, reader io.Reader) (*models.ImportResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1 // short rows are a row-level error, not a batch failure

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(records) < 2 {
		return nil, NewValidationError("file", "CSV must have header row and at least one data row", len(records))
	}

	return s.parseRows(records[1:]), nil
}

func (s *importExportService) ImportQuestionsFromExcel(ctx context.Context, reader io.Reader) (*models.ImportResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "Excel file has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}

	if len(rows) < 2 {
		return nil, NewValidationError("file", "Excel must have header row and at least one data row", len(rows))
	}

	return s.parseRows(rows[1:]), nil
}

func (s *importExportService) parseRows(rows [][]string) *models.ImportResult {
	result := &models.ImportResult{TotalRows: len(rows)}

	for i, row := range rows {
		rowNum := i + 2 // 1-based, after the header
		question, rowErr := parseQuestionRow(row, rowNum)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			result.ErrorCount++
		} else if err := s.validator.Question().ValidateQuestion(question); err != nil {
			result.Errors = append(result.Errors, models.ImportValidationError{
				Row:     rowNum,
				Column:  "Question",
				Message: err.Error(),
			})
			result.ErrorCount++
		} else {
			result.Questions = append(result.Questions, question)
			result.SuccessCount++
		}
		result.ProcessedRows++
	}

	s.logger.Info("Question import parsed",
		"total_rows", result.TotalRows,
		"success_count", result.SuccessCount,
		"error_count", result.ErrorCount)

	return result
}

// parseQuestionRow decodes one data row:
// Type, Question, Points, CorrectAnswer, Options/Items, Additional Data.
func parseQuestionRow(row []string, rowNum int) (*models.Question, *models.ImportValidationError) {
	rowErr := func(column, message, value string) *models.ImportValidationError {
		return &models.ImportValidationError{Row: rowNum, Column: column, Message: message, Value: value}
	}

	if len(row) < 4 {
		return nil, rowErr("", "row has too few columns", strings.Join(row, ","))
	}

	qtype, ok := parseQuestionType(row[0])
	if !ok {
		return nil, rowErr("Type", "unknown question type", row[0])
	}

	prompt := strings.TrimSpace(row[1])
	if prompt == "" {
		return nil, rowErr("Question", "question text is required", "")
	}

	points := 1
	if v := strings.TrimSpace(row[2]); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, rowErr("Points", "points must be a positive integer", row[2])
		}
		points = parsed
	}

	correctRaw := strings.TrimSpace(row[3])
	options := splitList(cell(row, 4))
	additional := cell(row, 5)

	question := &models.Question{
		ID:     utils.NewULID(),
		Type:   qtype,
		Prompt: prompt,
		Points: points,
	}

	var content interface{}
	switch qtype {
	case models.TrueFalse:
		correct, err := strconv.ParseBool(strings.ToLower(correctRaw))
		if err != nil {
			return nil, rowErr("CorrectAnswer", "expected true or false", correctRaw)
		}
		content = models.TrueFalseContent{CorrectAnswer: correct}

	case models.SingleChoice, models.MultipleChoice:
		indices, err := parseIndexList(correctRaw)
		if err != nil {
			return nil, rowErr("CorrectAnswer", "expected comma-joined option indices", correctRaw)
		}
		content = models.ChoiceContent{Options: options, CorrectAnswers: indices}

	case models.OpenEnded:
		content = models.OpenEndedContent{ModelAnswer: strings.TrimSpace(additional)}

	case models.FillBlanks:
		answers := splitList(correctRaw)
		content = models.FillBlanksContent{TextWithBlanks: prompt, Answers: answers}

	case models.SortAnswer:
		order, err := parseIndexList(correctRaw)
		if err != nil {
			return nil, rowErr("CorrectAnswer", "expected comma-joined item indices", correctRaw)
		}
		content = models.SortContent{Items: options, CorrectOrder: order}

	case models.Matching:
		rights := splitList(additional)
		if len(rights) != len(options) {
			return nil, rowErr("Additional Data", "matching needs one right value per item", additional)
		}
		items := make([]models.MatchItem, len(options))
		for i := range options {
			items[i] = models.MatchItem{ID: utils.NewULID(), Left: options[i], Right: rights[i]}
		}
		content = models.MatchingContent{Items: items, IsImage: isImageMatching(row[0])}
	}

	if err := question.SetContent(content); err != nil {
		return nil, rowErr("Type", "failed to encode question content", row[0])
	}
	return question, nil
}

// parseQuestionType tolerates display names ("Single Choice", "True/False")
// alongside the canonical enum values.
func parseQuestionType(raw string) (models.QuestionType, bool) {
	switch normalizeTypeName(raw) {
	case "true_false", "truefalse":
		return models.TrueFalse, true
	case "single_choice", "singlechoice":
		return models.SingleChoice, true
	case "multiple_choice", "multiplechoice":
		return models.MultipleChoice, true
	case "open_ended", "openended", "open":
		return models.OpenEnded, true
	case "fill_blanks", "fill_in_blanks", "fillblanks":
		return models.FillBlanks, true
	case "sort_answer", "sort", "ordering":
		return models.SortAnswer, true
	case "matching", "image_matching":
		return models.Matching, true
	default:
		return "", false
	}
}

func normalizeTypeName(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(normalized)
}

// isImageMatching reports whether the type cell named the image variant,
// which is carried as a content flag rather than a distinct question type.
func isImageMatching(raw string) bool {
	return normalizeTypeName(raw) == "image_matching"
}

func parseIndexList(raw string) ([]int, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty index list")
	}
	indices := make([]int, 0, len(parts))
	for _, part := range parts {
		idx, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// ===== EXPORT OPERATIONS =====

func (s *importExportService) ExportQuestionsToCSV(ctx context.Context, quiz *models.Quiz) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range quiz.Questions {
		row, err := questionToRow(&quiz.Questions[i])
		if err != nil {
			return nil, err
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func (s *importExportService) ExportQuestionsToExcel(ctx context.Context, quiz *models.Quiz) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for col, header := range csvHeader {
		cellName, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cellName, header); err != nil {
			return nil, fmt.Errorf("failed to write Excel header: %w", err)
		}
	}

	for i := range quiz.Questions {
		row, err := questionToRow(&quiz.Questions[i])
		if err != nil {
			return nil, err
		}
		for col, value := range row {
			cellName, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cellName, value); err != nil {
				return nil, fmt.Errorf("failed to write Excel row: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func questionToRow(q *models.Question) ([]string, error) {
	row := []string{string(q.Type), q.Prompt, strconv.Itoa(q.Points), "", "", ""}

	content, err := q.DecodeContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode question %s: %w", q.ID, err)
	}

	switch c := content.(type) {
	case *models.TrueFalseContent:
		row[3] = strconv.FormatBool(c.CorrectAnswer)
	case *models.ChoiceContent:
		row[3] = joinInts(c.CorrectAnswers)
		row[4] = strings.Join(c.Options, ",")
	case *models.OpenEndedContent:
		row[5] = c.ModelAnswer
	case *models.FillBlanksContent:
		row[1] = c.TextWithBlanks
		row[3] = strings.Join(c.Answers, ",")
	case *models.SortContent:
		row[3] = joinInts(c.CorrectOrder)
		row[4] = strings.Join(c.Items, ",")
	case *models.MatchingContent:
		if c.IsImage {
			row[0] = "image_matching"
		}
		lefts := make([]string, len(c.Items))
		rights := make([]string, len(c.Items))
		for i, item := range c.Items {
			lefts[i] = item.Left
			rights[i] = item.Right
		}
		row[4] = strings.Join(lefts, ",")
		row[5] = strings.Join(rights, ",")
	}

	return row, nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

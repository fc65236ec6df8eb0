// Package grading scores answers against questions. Every function here is
// pure and total: malformed answers grade as incorrect, never as errors.
package grading

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/courselab/quiz-service/internal/models"
)

// ScoreResult is the outcome of scoring a full answer set.
type ScoreResult struct {
	Earned     int  `json:"earned"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	Passed     bool `json:"passed"`
}

// IsAnswerCorrect decides correctness for one question. It returns nil when
// the question was not answered or cannot be auto-graded (open ended), and
// false for any answer whose shape does not fit the question.
func IsAnswerCorrect(q *models.Question, answer *models.Answer) *bool {
	if answer == nil || answer.IsEmpty() {
		return nil
	}

	switch q.Type {
	case models.OpenEnded:
		return nil
	case models.TrueFalse:
		return gradeTrueFalse(q, *answer)
	case models.SingleChoice:
		return boolPtr(gradeSingleChoice(q, *answer))
	case models.MultipleChoice:
		return boolPtr(gradeMultipleChoice(q, *answer))
	case models.FillBlanks:
		return boolPtr(gradeFillBlanks(q, *answer))
	case models.SortAnswer:
		return boolPtr(gradeSortAnswer(q, *answer))
	case models.Matching:
		return boolPtr(gradeMatching(q, *answer))
	default:
		return boolPtr(false)
	}
}

// CalculateScore sums points for questions graded strictly correct. The
// percentage is rounded; an empty quiz scores 0. With no passing grade
// configured every submission passes.
func CalculateScore(questions []models.Question, answers models.AnswerSet, passingGrade *int) ScoreResult {
	result := ScoreResult{}
	for i := range questions {
		q := &questions[i]
		result.Total += q.Points

		var answer *models.Answer
		if a, ok := answers[q.ID]; ok {
			answer = &a
		}
		if correct := IsAnswerCorrect(q, answer); correct != nil && *correct {
			result.Earned += q.Points
		}
	}

	if result.Total > 0 {
		result.Percentage = int(math.Round(float64(result.Earned) / float64(result.Total) * 100))
	}
	result.Passed = passingGrade == nil || result.Percentage >= *passingGrade
	return result
}

// ===== PER-TYPE RULES =====

func gradeTrueFalse(q *models.Question, answer models.Answer) *bool {
	submitted, ok := answer.AsBool()
	if !ok {
		return boolPtr(false)
	}
	var content models.TrueFalseContent
	if !decodeContent(q, &content) {
		return boolPtr(false)
	}
	return boolPtr(submitted == content.CorrectAnswer)
}

func gradeSingleChoice(q *models.Question, answer models.Answer) bool {
	submitted, ok := answer.AsIndex()
	if !ok {
		return false
	}
	var content models.ChoiceContent
	if !decodeContent(q, &content) {
		return false
	}
	for _, idx := range content.CorrectAnswers {
		if idx == submitted {
			return true
		}
	}
	return false
}

// gradeMultipleChoice requires exact set equality with the correct indices.
// Submission order is irrelevant and there is no partial credit.
func gradeMultipleChoice(q *models.Question, answer models.Answer) bool {
	submitted, ok := answer.AsIndexSet()
	if !ok {
		return false
	}
	var content models.ChoiceContent
	if !decodeContent(q, &content) {
		return false
	}

	correct := make(map[int]struct{}, len(content.CorrectAnswers))
	for _, idx := range content.CorrectAnswers {
		correct[idx] = struct{}{}
	}
	seen := make(map[int]struct{}, len(submitted))
	for _, idx := range submitted {
		if _, ok := correct[idx]; !ok {
			return false
		}
		seen[idx] = struct{}{}
	}
	return len(seen) == len(correct)
}

// gradeFillBlanks compares per position, trimmed and case-insensitive; every
// blank must match.
func gradeFillBlanks(q *models.Question, answer models.Answer) bool {
	submitted, ok := answer.AsStrings()
	if !ok {
		return false
	}
	var content models.FillBlanksContent
	if !decodeContent(q, &content) {
		return false
	}
	if len(submitted) != len(content.Answers) {
		return false
	}
	for i, expected := range content.Answers {
		if !strings.EqualFold(strings.TrimSpace(submitted[i]), strings.TrimSpace(expected)) {
			return false
		}
	}
	return true
}

// gradeSortAnswer applies CorrectOrder to Items and compares the submitted
// sequence position by position, case-sensitive after trimming.
func gradeSortAnswer(q *models.Question, answer models.Answer) bool {
	submitted, ok := answer.AsStrings()
	if !ok {
		return false
	}
	var content models.SortContent
	if !decodeContent(q, &content) {
		return false
	}
	if len(submitted) != len(content.CorrectOrder) {
		return false
	}
	for pos, itemIdx := range content.CorrectOrder {
		if itemIdx < 0 || itemIdx >= len(content.Items) {
			return false
		}
		if strings.TrimSpace(submitted[pos]) != strings.TrimSpace(content.Items[itemIdx]) {
			return false
		}
	}
	return true
}

// gradeMatching requires exactly one pair per left item, each mapped to that
// item's canonical right value.
func gradeMatching(q *models.Question, answer models.Answer) bool {
	submitted, ok := answer.AsPairs()
	if !ok {
		return false
	}
	var content models.MatchingContent
	if !decodeContent(q, &content) {
		return false
	}
	if len(submitted) != len(content.Items) {
		return false
	}
	for _, item := range content.Items {
		right, ok := submitted[item.ID]
		if !ok || right != item.Right {
			return false
		}
	}
	return true
}

func decodeContent(q *models.Question, dest interface{}) bool {
	raw := []byte(q.Content)
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func boolPtr(v bool) *bool {
	return &v
}

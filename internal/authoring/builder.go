// Package authoring implements quiz document editing: question CRUD with
// type-appropriate defaults, and option/item removal that re-indexes every
// positional reference atomically so correctAnswers/correctOrder can never
// point past the arrays they index.
package authoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/utils"
)

var (
	ErrQuestionNotFound = errors.New("question not found in quiz")
	ErrOptionOutOfRange = errors.New("option index out of range")
	ErrTooFewOptions    = errors.New("choice questions need at least two options")
)

// Builder edits one quiz document in place. It is not safe for concurrent
// use; the owning service serializes access.
type Builder struct {
	quiz *models.Quiz
}

func NewBuilder(quiz *models.Quiz) *Builder {
	return &Builder{quiz: quiz}
}

func (b *Builder) Quiz() *models.Quiz {
	return b.quiz
}

// QuestionPatch carries the editable question fields; nil means unchanged.
// Content, when set, replaces the typed payload wholesale.
type QuestionPatch struct {
	Prompt  *string
	Points  *int
	Content interface{}
}

// MetaPatch carries the editable quiz settings; nil means unchanged.
type MetaPatch struct {
	Title        *string
	Description  *string
	TimeLimit    *int
	MaxQuestions *int
	PassingGrade *int
}

// AddQuestion prepends a default-valued question of the given type and
// returns it.
func (b *Builder) AddQuestion(qtype models.QuestionType) (*models.Question, error) {
	content, err := defaultContent(qtype)
	if err != nil {
		return nil, err
	}

	q := models.Question{
		ID:     utils.NewULID(),
		QuizID: b.quiz.ID,
		Type:   qtype,
		Prompt: "New Question",
		Points: 1,
	}
	if err := q.SetContent(content); err != nil {
		return nil, err
	}

	b.quiz.Questions = append([]models.Question{q}, b.quiz.Questions...)
	b.renumber()
	b.touch()
	return &b.quiz.Questions[0], nil
}

// AppendQuestions adds already-built questions, e.g. an import batch, to the
// end of the list in their given order.
func (b *Builder) AppendQuestions(questions []models.Question) {
	for i := range questions {
		questions[i].QuizID = b.quiz.ID
	}
	b.quiz.Questions = append(b.quiz.Questions, questions...)
	b.renumber()
	b.touch()
}

// UpdateQuestion applies a patch to the question with the matching id.
func (b *Builder) UpdateQuestion(id string, patch QuestionPatch) error {
	q := b.quiz.QuestionByID(id)
	if q == nil {
		return ErrQuestionNotFound
	}
	if patch.Prompt != nil {
		q.Prompt = *patch.Prompt
	}
	if patch.Points != nil {
		if *patch.Points < 1 {
			return fmt.Errorf("points must be positive, got %d", *patch.Points)
		}
		q.Points = *patch.Points
	}
	if patch.Content != nil {
		if err := q.SetContent(patch.Content); err != nil {
			return err
		}
	}
	b.touch()
	return nil
}

// DeleteQuestion removes the question with the matching id.
func (b *Builder) DeleteQuestion(id string) error {
	for i := range b.quiz.Questions {
		if b.quiz.Questions[i].ID == id {
			b.quiz.Questions = append(b.quiz.Questions[:i], b.quiz.Questions[i+1:]...)
			b.renumber()
			b.touch()
			return nil
		}
	}
	return ErrQuestionNotFound
}

// UpdateMeta applies quiz-level settings.
func (b *Builder) UpdateMeta(patch MetaPatch) {
	if patch.Title != nil {
		b.quiz.Title = *patch.Title
	}
	if patch.Description != nil {
		b.quiz.Description = patch.Description
	}
	if patch.TimeLimit != nil {
		b.quiz.TimeLimit = patch.TimeLimit
	}
	if patch.MaxQuestions != nil {
		b.quiz.MaxQuestions = patch.MaxQuestions
	}
	if patch.PassingGrade != nil {
		b.quiz.PassingGrade = patch.PassingGrade
	}
	b.touch()
}

// AddChoiceOption appends an option to a choice question.
func (b *Builder) AddChoiceOption(questionID, option string) error {
	q := b.quiz.QuestionByID(questionID)
	if q == nil {
		return ErrQuestionNotFound
	}
	content, err := q.ChoiceContent()
	if err != nil {
		return err
	}
	content.Options = append(content.Options, option)
	if err := q.SetContent(content); err != nil {
		return err
	}
	b.touch()
	return nil
}

// RemoveChoiceOption deletes option k and re-indexes correctAnswers in the
// same edit: references to k are dropped, references above k shift down.
func (b *Builder) RemoveChoiceOption(questionID string, index int) error {
	q := b.quiz.QuestionByID(questionID)
	if q == nil {
		return ErrQuestionNotFound
	}
	content, err := q.ChoiceContent()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(content.Options) {
		return ErrOptionOutOfRange
	}
	if len(content.Options) <= 2 {
		return ErrTooFewOptions
	}

	content.Options = append(content.Options[:index], content.Options[index+1:]...)
	content.CorrectAnswers = reindexAfterDelete(content.CorrectAnswers, index)

	if err := q.SetContent(content); err != nil {
		return err
	}
	b.touch()
	return nil
}

// AddSortItem appends an item to a sort question and extends correctOrder
// with its index.
func (b *Builder) AddSortItem(questionID, item string) error {
	q := b.quiz.QuestionByID(questionID)
	if q == nil {
		return ErrQuestionNotFound
	}
	content, err := q.SortContent()
	if err != nil {
		return err
	}
	content.Items = append(content.Items, item)
	content.CorrectOrder = append(content.CorrectOrder, len(content.Items)-1)
	if err := q.SetContent(content); err != nil {
		return err
	}
	b.touch()
	return nil
}

// RemoveSortItem deletes item k and re-indexes correctOrder the same way
// RemoveChoiceOption re-indexes correctAnswers.
func (b *Builder) RemoveSortItem(questionID string, index int) error {
	q := b.quiz.QuestionByID(questionID)
	if q == nil {
		return ErrQuestionNotFound
	}
	content, err := q.SortContent()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(content.Items) {
		return ErrOptionOutOfRange
	}
	if len(content.Items) <= 2 {
		return ErrTooFewOptions
	}

	content.Items = append(content.Items[:index], content.Items[index+1:]...)
	content.CorrectOrder = reindexAfterDelete(content.CorrectOrder, index)

	if err := q.SetContent(content); err != nil {
		return err
	}
	b.touch()
	return nil
}

// reindexAfterDelete drops references to the deleted index and shifts the
// ones above it down by one, preserving order.
func reindexAfterDelete(refs []int, deleted int) []int {
	result := make([]int, 0, len(refs))
	for _, ref := range refs {
		switch {
		case ref == deleted:
			continue
		case ref > deleted:
			result = append(result, ref-1)
		default:
			result = append(result, ref)
		}
	}
	return result
}

func defaultContent(qtype models.QuestionType) (interface{}, error) {
	switch qtype {
	case models.TrueFalse:
		return models.TrueFalseContent{CorrectAnswer: true}, nil
	case models.SingleChoice, models.MultipleChoice:
		return models.ChoiceContent{
			Options:        []string{"Option 1", "Option 2"},
			CorrectAnswers: []int{0},
		}, nil
	case models.OpenEnded:
		return models.OpenEndedContent{}, nil
	case models.FillBlanks:
		return models.FillBlanksContent{
			TextWithBlanks: "Fill in the ___",
			Answers:        []string{"answer"},
		}, nil
	case models.SortAnswer:
		return models.SortContent{
			Items:        []string{"Item 1", "Item 2"},
			CorrectOrder: []int{0, 1},
		}, nil
	case models.Matching:
		return models.MatchingContent{
			Items: []models.MatchItem{{ID: utils.NewULID()}},
		}, nil
	default:
		return nil, fmt.Errorf("unknown question type %q", qtype)
	}
}

func (b *Builder) renumber() {
	for i := range b.quiz.Questions {
		b.quiz.Questions[i].Order = i
	}
}

func (b *Builder) touch() {
	b.quiz.UpdatedAt = time.Now()
}

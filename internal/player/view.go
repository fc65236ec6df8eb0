package player

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/courselab/quiz-service/internal/grading"
	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/session"
)

var (
	ErrUnknownItem  = errors.New("payload references an unknown item")
	ErrPayloadShape = errors.New("payload does not match the question type")
)

// QuestionView is the renderer-facing projection of one question inside a
// session: prompt and display material always, eliminations before submit,
// correctness and canonical answers only after.
type QuestionView struct {
	ID     string              `json:"id"`
	Type   models.QuestionType `json:"type"`
	Prompt string              `json:"prompt"`
	Points int                 `json:"points"`
	Index  int                 `json:"index"`
	Total  int                 `json:"total"`

	// display material, populated per type
	Options        []string   `json:"options,omitempty"`
	Items          []string   `json:"items,omitempty"`
	Pairs          []PairView `json:"pairs,omitempty"`
	RightChoices   []string   `json:"right_choices,omitempty"`
	TextWithBlanks string     `json:"text_with_blanks,omitempty"`
	BlankCount     int        `json:"blank_count,omitempty"`
	IsImage        bool       `json:"is_image,omitempty"`

	Answer     *models.Answer `json:"answer,omitempty"`
	Eliminated []int          `json:"eliminated,omitempty"`

	// Review is nil until the session is submitted.
	Review *ReviewView `json:"review,omitempty"`
}

// PairView is the left half of a matching item; the right half stays hidden
// until review.
type PairView struct {
	ID   string `json:"id"`
	Left string `json:"left"`
}

// ReviewView carries the post-submission verdict for one question.
type ReviewView struct {
	Correct       *bool             `json:"correct"`
	CorrectAnswer CorrectAnswerView `json:"correct_answer"`
}

// CorrectAnswerView is the canonical answer in a type-dependent shape.
type CorrectAnswerView struct {
	Bool        *bool             `json:"bool,omitempty"`
	Indices     []int             `json:"indices,omitempty"`
	Texts       []string          `json:"texts,omitempty"`
	Pairs       map[string]string `json:"pairs,omitempty"`
	ModelAnswer *string           `json:"model_answer,omitempty"`
}

// BuildQuestionView projects the question at the given index of the snapshot.
func BuildQuestionView(snap session.Snapshot, index int) (QuestionView, error) {
	if index < 0 || index >= len(snap.Questions) {
		return QuestionView{}, fmt.Errorf("question index %d out of range", index)
	}
	q := snap.Questions[index]

	view := QuestionView{
		ID:     q.ID,
		Type:   q.Type,
		Prompt: q.Prompt,
		Points: q.Points,
		Index:  index,
		Total:  len(snap.Questions),
	}

	if answer, ok := snap.Answers[q.ID]; ok {
		a := answer
		view.Answer = &a
	}

	content, err := q.DecodeContent()
	if err != nil {
		return QuestionView{}, fmt.Errorf("decode question %s: %w", q.ID, err)
	}

	submitted := snap.Status == session.StatusSubmitted

	switch c := content.(type) {
	case *models.TrueFalseContent:
		// nothing to display beyond the prompt
	case *models.ChoiceContent:
		view.Options = c.Options
		if !submitted {
			view.Eliminated = snap.Eliminations[q.ID]
		}
	case *models.OpenEndedContent:
		// free text entry
	case *models.FillBlanksContent:
		view.TextWithBlanks = c.TextWithBlanks
		view.BlankCount = len(c.Answers)
	case *models.SortContent:
		view.Items = c.Items
	case *models.MatchingContent:
		view.IsImage = c.IsImage
		rights := make([]string, 0, len(c.Items))
		for _, item := range c.Items {
			view.Pairs = append(view.Pairs, PairView{ID: item.ID, Left: item.Left})
			rights = append(rights, item.Right)
		}
		view.RightChoices = rights
	default:
		return QuestionView{}, fmt.Errorf("unhandled question type %s", q.Type)
	}

	if submitted {
		review, err := buildReview(&q, snap.Answers)
		if err != nil {
			return QuestionView{}, err
		}
		view.Review = review
	}

	return view, nil
}

// SessionView is the client-facing projection of a whole session. Questions
// go through BuildQuestionView, so the raw content blobs and their answer
// keys never reach the wire before submission.
type SessionView struct {
	ID            string               `json:"id"`
	QuizID        string               `json:"quiz_id"`
	Status        session.Status       `json:"status"`
	CurrentIndex  int                  `json:"current_index"`
	RemainingTime *int                 `json:"remaining_time,omitempty"`
	StartedAt     time.Time            `json:"started_at"`
	SubmittedAt   *time.Time           `json:"submitted_at,omitempty"`
	EndReason     *session.EndReason   `json:"end_reason,omitempty"`
	Score         *grading.ScoreResult `json:"score,omitempty"`
	Questions     []QuestionView       `json:"questions"`
}

// BuildSessionView projects a full snapshot for transport.
func BuildSessionView(snap session.Snapshot) (SessionView, error) {
	questions, err := BuildViews(snap)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{
		ID:            snap.ID,
		QuizID:        snap.QuizID,
		Status:        snap.Status,
		CurrentIndex:  snap.CurrentIndex,
		RemainingTime: snap.RemainingTime,
		StartedAt:     snap.StartedAt,
		SubmittedAt:   snap.SubmittedAt,
		EndReason:     snap.EndReason,
		Score:         snap.Score,
		Questions:     questions,
	}, nil
}

// BuildViews projects every question of a snapshot, in session order.
func BuildViews(snap session.Snapshot) ([]QuestionView, error) {
	views := make([]QuestionView, 0, len(snap.Questions))
	for i := range snap.Questions {
		view, err := BuildQuestionView(snap, i)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func buildReview(q *models.Question, answers models.AnswerSet) (*ReviewView, error) {
	review := &ReviewView{}
	if answer, ok := answers[q.ID]; ok {
		review.Correct = grading.IsAnswerCorrect(q, &answer)
	} else {
		review.Correct = grading.IsAnswerCorrect(q, nil)
	}

	content, err := q.DecodeContent()
	if err != nil {
		return nil, fmt.Errorf("decode question %s: %w", q.ID, err)
	}

	switch c := content.(type) {
	case *models.TrueFalseContent:
		v := c.CorrectAnswer
		review.CorrectAnswer.Bool = &v
	case *models.ChoiceContent:
		review.CorrectAnswer.Indices = c.CorrectAnswers
	case *models.OpenEndedContent:
		model := c.ModelAnswer
		review.CorrectAnswer.ModelAnswer = &model
	case *models.FillBlanksContent:
		review.CorrectAnswer.Texts = c.Answers
	case *models.SortContent:
		ordered := make([]string, 0, len(c.CorrectOrder))
		for _, idx := range c.CorrectOrder {
			if idx >= 0 && idx < len(c.Items) {
				ordered = append(ordered, c.Items[idx])
			}
		}
		review.CorrectAnswer.Texts = ordered
	case *models.MatchingContent:
		pairs := make(map[string]string, len(c.Items))
		for _, item := range c.Items {
			pairs[item.ID] = item.Right
		}
		review.CorrectAnswer.Pairs = pairs
	}

	return review, nil
}

// ===== DRAG AND DROP PAYLOADS =====

// ReorderAnswer validates a full new ordering for a sort question and wraps
// it as an answer. The payload must be a permutation of the question's items.
func ReorderAnswer(q *models.Question, payload []string) (models.Answer, error) {
	content, err := q.SortContent()
	if err != nil {
		return models.Answer{}, fmt.Errorf("%w: %v", ErrPayloadShape, err)
	}
	if len(payload) != len(content.Items) {
		return models.Answer{}, ErrPayloadShape
	}

	remaining := make(map[string]int, len(content.Items))
	for _, item := range content.Items {
		remaining[strings.TrimSpace(item)]++
	}
	for _, item := range payload {
		key := strings.TrimSpace(item)
		if remaining[key] == 0 {
			return models.Answer{}, fmt.Errorf("%w: %q", ErrUnknownItem, item)
		}
		remaining[key]--
	}

	return models.OrderAnswer(payload), nil
}

// PairAnswer validates a full id-to-right mapping for a matching question and
// wraps it as an answer. Keys must be item ids; values are taken as given.
func PairAnswer(q *models.Question, payload map[string]string) (models.Answer, error) {
	decoded, err := q.DecodeContent()
	if err != nil {
		return models.Answer{}, fmt.Errorf("%w: %v", ErrPayloadShape, err)
	}
	content, ok := decoded.(*models.MatchingContent)
	if !ok {
		return models.Answer{}, ErrPayloadShape
	}

	known := make(map[string]bool, len(content.Items))
	for _, item := range content.Items {
		known[item.ID] = true
	}
	for id := range payload {
		if !known[id] {
			return models.Answer{}, fmt.Errorf("%w: %q", ErrUnknownItem, id)
		}
	}

	return models.PairsAnswer(payload), nil
}

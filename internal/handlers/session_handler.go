package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/courselab/quiz-service/internal/services"
	"github.com/courselab/quiz-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
}

func NewSessionHandler(sessionService services.SessionService, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
	}
}

// ===== REQUEST STRUCTURES =====

type StartSessionRequest struct {
	QuizID string `json:"quiz_id" binding:"required"`
}

// AnswerRequest carries a type-shaped answer payload: a bool for true/false,
// an index or index list for choice questions, strings for open/fill-blanks,
// an item list for sort and an item-to-right map for matching.
type AnswerRequest struct {
	QuestionID string          `json:"question_id" binding:"required"`
	Answer     json.RawMessage `json:"answer" binding:"required"`
}

type EliminationRequest struct {
	QuestionID  string `json:"question_id" binding:"required"`
	OptionIndex *int   `json:"option_index" binding:"required"`
}

type GotoRequest struct {
	Index *int `json:"index" binding:"required"`
}

// ===== LIFECYCLE =====

// StartSession creates an in-memory session for the quiz and starts its
// countdown when the quiz has a time limit.
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.LogRequest(c, "Starting session")

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	view, err := h.sessionService.Start(c.Request.Context(), req.QuizID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// GetSession returns the session state with per-question display material.
// Correct answers only appear once the session is submitted.
func (h *SessionHandler) GetSession(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	view, err := h.sessionService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ExitSession disposes of the session without grading it.
func (h *SessionHandler) ExitSession(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Exiting session", "session_id", id)

	if err := h.sessionService.Exit(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Session exited"})
}

// ===== ANSWERING =====

// SubmitAnswer records the answer for one question. Re-answering replaces
// the previous answer.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.sessionService.RecordAnswer(c.Request.Context(), id, req.QuestionID, req.Answer); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer recorded"})
}

// ToggleElimination flips the crossed-out state of one choice option.
func (h *SessionHandler) ToggleElimination(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	var req EliminationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.sessionService.ToggleElimination(c.Request.Context(), id, req.QuestionID, *req.OptionIndex); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Elimination toggled"})
}

// ===== NAVIGATION =====

// Next advances to the next question. Advancing past the last question
// submits the session; the response says which happened.
func (h *SessionHandler) Next(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	submitted, err := h.sessionService.Next(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"submitted": submitted})
}

// Previous steps back one question; at the first question it is a no-op.
func (h *SessionHandler) Previous(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	if err := h.sessionService.Previous(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Moved to previous question"})
}

// Goto jumps to the question at the given index.
func (h *SessionHandler) Goto(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	var req GotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.sessionService.Goto(c.Request.Context(), id, *req.Index); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Moved to question"})
}

// ===== SUBMISSION AND REVIEW =====

// SubmitSession grades the session and returns the score.
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Submitting session", "session_id", id)

	score, err := h.sessionService.Submit(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, score)
}

// TimeRemaining reports the seconds left, or null for untimed sessions.
func (h *SessionHandler) TimeRemaining(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	remaining, err := h.sessionService.TimeRemaining(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"remaining_seconds": remaining})
}

// CurrentQuestion returns the play-time view of the current question, with
// answer keys withheld.
func (h *SessionHandler) CurrentQuestion(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	view, err := h.sessionService.CurrentView(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Review returns per-question views with correct answers revealed. Only
// available once the session is submitted.
func (h *SessionHandler) Review(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	views, err := h.sessionService.ReviewViews(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"questions": views})
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/courselab/quiz-service/internal/authoring"
	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/services"
	"github.com/courselab/quiz-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type QuizHandler struct {
	BaseHandler
	quizService services.QuizService
}

func NewQuizHandler(quizService services.QuizService, logger utils.Logger) *QuizHandler {
	return &QuizHandler{
		BaseHandler: NewBaseHandler(logger),
		quizService: quizService,
	}
}

// ===== REQUEST STRUCTURES =====

// UpdateQuizRequest patches quiz settings; absent fields stay unchanged.
type UpdateQuizRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	TimeLimit    *int    `json:"timeLimit"`
	MaxQuestions *int    `json:"maxQuestions"`
	PassingGrade *int    `json:"passingGrade"`
}

// AddQuestionRequest names the question type to add; the question starts
// with default content for that type.
type AddQuestionRequest struct {
	Type models.QuestionType `json:"type" binding:"required"`
}

// UpdateQuestionRequest patches one question; absent fields stay unchanged.
type UpdateQuestionRequest struct {
	Prompt  *string     `json:"prompt"`
	Points  *int        `json:"points"`
	Content interface{} `json:"content"`
}

// AddChoiceOptionRequest appends one option to a choice question.
type AddChoiceOptionRequest struct {
	Option string `json:"option" binding:"required"`
}

// AddSortItemRequest appends one item to a sort question.
type AddSortItemRequest struct {
	Item string `json:"item" binding:"required"`
}

// ===== QUIZ CRUD =====

// CreateQuiz creates a new quiz owned by the authenticated user.
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	h.LogRequest(c, "Creating quiz")

	var req services.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, quiz)
}

// GetQuiz retrieves a quiz with its full question list.
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Getting quiz", "quiz_id", id)

	quiz, err := h.quizService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// ListQuizzes lists the authenticated user's quizzes with paging.
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	h.LogRequest(c, "Listing quizzes", "limit", limit, "offset", offset)

	quizzes, total, err := h.quizService.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quizzes": quizzes,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// UpdateQuiz patches quiz settings (title, description, limits).
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Updating quiz", "quiz_id", id)

	var req UpdateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.UpdateMeta(c.Request.Context(), id, authoring.MetaPatch{
		Title:        req.Title,
		Description:  req.Description,
		TimeLimit:    req.TimeLimit,
		MaxQuestions: req.MaxQuestions,
		PassingGrade: req.PassingGrade,
	}, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// DeleteQuiz removes a quiz, its questions and its cached document.
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Deleting quiz", "quiz_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Quiz deleted"})
}

// ===== QUESTION EDITING =====

// AddQuestion prepends a default-valued question of the requested type.
func (h *QuizHandler) AddQuestion(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Adding question", "quiz_id", id)

	var req AddQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	question, err := h.quizService.AddQuestion(c.Request.Context(), id, req.Type, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// UpdateQuestion patches one question's prompt, points or content.
func (h *QuizHandler) UpdateQuestion(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}
	questionID := h.parseStringID(c, "question_id")
	if questionID == "" {
		return
	}

	h.LogRequest(c, "Updating question", "quiz_id", id, "question_id", questionID)

	var req UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.UpdateQuestion(c.Request.Context(), id, questionID, authoring.QuestionPatch{
		Prompt:  req.Prompt,
		Points:  req.Points,
		Content: req.Content,
	}, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// DeleteQuestion removes one question and renumbers the rest.
func (h *QuizHandler) DeleteQuestion(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}
	questionID := h.parseStringID(c, "question_id")
	if questionID == "" {
		return
	}

	h.LogRequest(c, "Deleting question", "quiz_id", id, "question_id", questionID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.quizService.DeleteQuestion(c.Request.Context(), id, questionID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Question deleted"})
}

// AddChoiceOption appends an option to a choice question.
func (h *QuizHandler) AddChoiceOption(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}
	questionID := h.parseStringID(c, "question_id")
	if questionID == "" {
		return
	}

	var req AddChoiceOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.AddChoiceOption(c.Request.Context(), id, questionID, req.Option, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// RemoveChoiceOption removes the option at the given index; stored correct
// answer indices are re-referenced to the surviving options.
func (h *QuizHandler) RemoveChoiceOption(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}
	questionID := h.parseStringID(c, "question_id")
	if questionID == "" {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid index",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.RemoveChoiceOption(c.Request.Context(), id, questionID, index, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// AddSortItem appends an item to a sort question.
func (h *QuizHandler) AddSortItem(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}
	questionID := h.parseStringID(c, "question_id")
	if questionID == "" {
		return
	}

	var req AddSortItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.AddSortItem(c.Request.Context(), id, questionID, req.Item, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// RemoveSortItem removes the item at the given index and re-references the
// stored correct order.
func (h *QuizHandler) RemoveSortItem(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}
	questionID := h.parseStringID(c, "question_id")
	if questionID == "" {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid index",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.RemoveSortItem(c.Request.Context(), id, questionID, index, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

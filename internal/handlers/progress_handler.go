package handlers

import (
	"net/http"

	"github.com/courselab/quiz-service/internal/services"
	"github.com/courselab/quiz-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type ProgressHandler struct {
	BaseHandler
	progressService services.ProgressService
}

func NewProgressHandler(progressService services.ProgressService, logger utils.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler:     NewBaseHandler(logger),
		progressService: progressService,
	}
}

// SaveProgressRequest carries one onboarding step snapshot.
type SaveProgressRequest struct {
	StepNumber int            `json:"step_number" binding:"required"`
	Data       map[string]any `json:"data"`
}

// scope builds the client scope from the optional `scope` query parameter
// and the authenticated user, when there is one.
func (h *ProgressHandler) scope(c *gin.Context) services.ClientScope {
	s := services.ClientScope{KeyPrefix: c.Query("scope")}
	if userID, exists := c.Get("user_id"); exists {
		id := userID.(string)
		s.UserID = &id
	}
	return s
}

// ResolveSession resolves (or mints) the onboarding session id for this
// client. Degraded resolution still returns an id.
func (h *ProgressHandler) ResolveSession(c *gin.Context) {
	h.LogRequest(c, "Resolving progress session")

	sessionID, err := h.progressService.ResolveSession(c.Request.Context(), h.scope(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

// GetProgress returns the current onboarding progress record.
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	record, err := h.progressService.Get(c.Request.Context(), h.scope(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// SaveProgress stores a step snapshot in both tiers and returns the
// authoritative record.
func (h *ProgressHandler) SaveProgress(c *gin.Context) {
	var req SaveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Saving progress", "step_number", req.StepNumber)

	record, err := h.progressService.Save(c.Request.Context(), h.scope(c), req.StepNumber, req.Data)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// ClearProgress removes the session from both tiers; the next resolution
// starts fresh.
func (h *ProgressHandler) ClearProgress(c *gin.Context) {
	h.LogRequest(c, "Clearing progress")

	if err := h.progressService.Clear(c.Request.Context(), h.scope(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Progress cleared"})
}

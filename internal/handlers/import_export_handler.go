package handlers

import (
	"net/http"
	"strings"

	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/services"
	"github.com/courselab/quiz-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type ImportExportHandler struct {
	BaseHandler
	importExportService services.ImportExportService
	quizService         services.QuizService
}

func NewImportExportHandler(
	importExportService services.ImportExportService,
	quizService services.QuizService,
	logger utils.Logger,
) *ImportExportHandler {
	return &ImportExportHandler{
		BaseHandler:         NewBaseHandler(logger),
		importExportService: importExportService,
		quizService:         quizService,
	}
}

// PreviewImport parses an uploaded CSV/Excel file and reports row-level
// outcomes without touching any quiz.
func (h *ImportExportHandler) PreviewImport(c *gin.Context) {
	h.LogRequest(c, "Previewing question import")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file upload",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	result, err := h.importExportService.ImportQuestionsFromFile(c.Request.Context(), file, header.Filename)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ImportQuestions parses an uploaded file and appends the valid questions
// to the quiz. Malformed rows are reported and skipped.
func (h *ImportExportHandler) ImportQuestions(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Importing questions", "quiz_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file upload",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	result, err := h.importExportService.ImportQuestionsFromFile(c.Request.Context(), file, header.Filename)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	var quiz *models.Quiz
	if result.SuccessCount > 0 {
		quiz, err = h.quizService.ImportQuestions(c.Request.Context(), id, result.Questions, userID)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"quiz":   quiz,
	})
}

// ExportQuiz downloads the quiz's questions in the tabular interchange
// format. format=excel produces an .xlsx workbook; the default is CSV.
func (h *ImportExportHandler) ExportQuiz(c *gin.Context) {
	id := h.parseStringID(c, "id")
	if id == "" {
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	h.LogRequest(c, "Exporting quiz", "quiz_id", id, "format", format)

	quiz, err := h.quizService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	switch format {
	case "csv":
		data, err := h.importExportService.ExportQuestionsToCSV(c.Request.Context(), quiz)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+models.ExportFileName+`"`)
		c.Data(http.StatusOK, "text/csv", data)

	case "excel", "xlsx":
		data, err := h.importExportService.ExportQuestionsToExcel(c.Request.Context(), quiz)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="quiz_template.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)

	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Unsupported export format",
			Details: format,
		})
	}
}

package handlers

import (
	"github.com/courselab/quiz-service/internal/services"
	"github.com/courselab/quiz-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	quizHandler         *QuizHandler
	sessionHandler      *SessionHandler
	progressHandler     *ProgressHandler
	importExportHandler *ImportExportHandler
}

func NewHandlerManager(
	quizService services.QuizService,
	sessionService services.SessionService,
	progressService services.ProgressService,
	importExportService services.ImportExportService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		quizHandler:         NewQuizHandler(quizService, logger),
		sessionHandler:      NewSessionHandler(sessionService, logger),
		progressHandler:     NewProgressHandler(progressService, logger),
		importExportHandler: NewImportExportHandler(importExportService, quizService, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "quiz-service",
		})
	})

	v1 := router.Group("/api/v1")
	{
		// Authoring routes, owner-only
		quizzes := v1.Group("/quizzes", AuthRequired())
		{
			quizzes.POST("", hm.quizHandler.CreateQuiz)
			quizzes.GET("", hm.quizHandler.ListQuizzes)
			quizzes.GET("/:id", hm.quizHandler.GetQuiz)
			quizzes.PUT("/:id", hm.quizHandler.UpdateQuiz)
			quizzes.DELETE("/:id", hm.quizHandler.DeleteQuiz)

			// Question editing
			quizzes.POST("/:id/questions", hm.quizHandler.AddQuestion)
			quizzes.PUT("/:id/questions/:question_id", hm.quizHandler.UpdateQuestion)
			quizzes.DELETE("/:id/questions/:question_id", hm.quizHandler.DeleteQuestion)
			quizzes.POST("/:id/questions/:question_id/options", hm.quizHandler.AddChoiceOption)
			quizzes.DELETE("/:id/questions/:question_id/options/:index", hm.quizHandler.RemoveChoiceOption)
			quizzes.POST("/:id/questions/:question_id/items", hm.quizHandler.AddSortItem)
			quizzes.DELETE("/:id/questions/:question_id/items/:index", hm.quizHandler.RemoveSortItem)

			// Bulk interchange
			quizzes.POST("/:id/questions/import", hm.importExportHandler.ImportQuestions)
			quizzes.GET("/:id/export", hm.importExportHandler.ExportQuiz)
		}

		questions := v1.Group("/questions", AuthRequired())
		{
			questions.POST("/import/preview", hm.importExportHandler.PreviewImport)
		}

		// Player routes, anonymous allowed
		sessions := v1.Group("/sessions", AuthOptional())
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.ExitSession)

			sessions.POST("/:id/answers", hm.sessionHandler.SubmitAnswer)
			sessions.POST("/:id/eliminations", hm.sessionHandler.ToggleElimination)

			sessions.POST("/:id/next", hm.sessionHandler.Next)
			sessions.POST("/:id/previous", hm.sessionHandler.Previous)
			sessions.POST("/:id/goto", hm.sessionHandler.Goto)

			sessions.POST("/:id/submit", hm.sessionHandler.SubmitSession)
			sessions.GET("/:id/time-remaining", hm.sessionHandler.TimeRemaining)
			sessions.GET("/:id/current", hm.sessionHandler.CurrentQuestion)
			sessions.GET("/:id/review", hm.sessionHandler.Review)
		}

		// Onboarding progress routes, anonymous allowed
		progress := v1.Group("/progress", AuthOptional())
		{
			progress.POST("/session", hm.progressHandler.ResolveSession)
			progress.GET("", hm.progressHandler.GetProgress)
			progress.PUT("", hm.progressHandler.SaveProgress)
			progress.DELETE("", hm.progressHandler.ClearProgress)
		}
	}
}

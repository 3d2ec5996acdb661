package handlers

import (
	"net/http"

	"github.com/bandup/session-service/internal/utils"
	"github.com/bandup/session-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	resultHandler  *ResultHandler
}

func NewHandlerManager(
	sessions SessionManager,
	results ResultService,
	validator *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(sessions, validator, logger),
		resultHandler:  NewResultHandler(results, validator, logger),
	}
}

// SetupRoutes sets up all API routes. authMiddleware guards everything under /api/v1.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware)
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.CreateSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.CloseSession)
			sessions.POST("/:id/start", hm.sessionHandler.StartSession)
			sessions.POST("/:id/end", hm.sessionHandler.EndSession)
			sessions.PUT("/:id/answers/:question_id", hm.sessionHandler.SetAnswer)
			sessions.GET("/:id/progress", hm.sessionHandler.GetProgress)
			sessions.POST("/:id/submit", hm.sessionHandler.SubmitSession)
		}

		v1.PUT("/attempts/current", hm.resultHandler.SetCurrentAttempt)

		results := v1.Group("/results")
		{
			results.GET("/latest", hm.resultHandler.GetLatestResult)
			results.GET("/latest/export", hm.resultHandler.ExportLatestResult)
		}

		submissions := v1.Group("/submissions")
		{
			submissions.GET("", hm.resultHandler.ListSubmissions)
			submissions.GET("/:id", hm.resultHandler.GetSubmission)
		}
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "session-service",
	})
}

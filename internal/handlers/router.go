package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/config"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/services"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/utils"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

type HandlerManager struct {
	testHandler       *TestHandler
	attemptHandler    *AttemptHandler
	proctoringHandler *ProctoringHandler
	gradingHandler    *GradingHandler
	resultsHandler    *ResultsHandler
	authMiddleware    *JWTAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	jwtConfig config.JWTConfig,
	memberRepo repositories.MemberRepository,
) *HandlerManager {
	authMiddleware := NewJWTAuthMiddleware(jwtConfig, memberRepo)

	return &HandlerManager{
		testHandler:       NewTestHandler(serviceManager.Test(), validator, logger),
		attemptHandler:    NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		proctoringHandler: NewProctoringHandler(serviceManager.Proctoring(), validator, logger),
		gradingHandler:    NewGradingHandler(serviceManager.Grading(), validator, logger),
		resultsHandler:    NewResultsHandler(serviceManager.Results(), serviceManager.Export(), logger),
		authMiddleware:    authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Test routes
		tests := v1.Group("/tests")
		{
			// Create/modify tests - Admins only
			tests.POST("", hm.authMiddleware.RequireAdminMiddleware(), hm.testHandler.CreateTest)
			tests.PUT("/:id", hm.authMiddleware.RequireAdminMiddleware(), hm.testHandler.UpdateTest)
			tests.DELETE("/:id", hm.authMiddleware.RequireAdminMiddleware(), hm.testHandler.DeleteTest)
			tests.PUT("/:id/status", hm.authMiddleware.RequireAdminMiddleware(), hm.testHandler.ChangeTestStatus)
			tests.POST("/:id/publish", hm.authMiddleware.RequireAdminMiddleware(), hm.testHandler.PublishTest)
			tests.POST("/:id/archive", hm.authMiddleware.RequireAdminMiddleware(), hm.testHandler.ArchiveTest)

			// View tests - All authenticated members
			tests.GET("", hm.testHandler.ListTests)
			tests.GET("/:id", hm.testHandler.GetTest)
			tests.GET("/:id/details", hm.testHandler.GetTestWithQuestions)

			// Stats and results - Admins only
			tests.GET("/:id/stats", hm.authMiddleware.RequireAdminMiddleware(), hm.testHandler.GetTestStats)
			tests.GET("/:id/results", hm.authMiddleware.RequireAdminMiddleware(), hm.resultsHandler.ListTestResults)
			tests.GET("/:id/results/export", hm.authMiddleware.RequireAdminMiddleware(), hm.resultsHandler.ExportTestResults)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("", hm.authMiddleware.RequireAdminMiddleware(), hm.attemptHandler.ListAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.PUT("/:id/answers", hm.attemptHandler.SaveAnswer)
			attempts.GET("/:id/result", hm.resultsHandler.ViewAttemptResult)

			// Proctoring
			attempts.POST("/:id/proctor-events", hm.proctoringHandler.RecordEvent)
			attempts.GET("/:id/proctor-events", hm.authMiddleware.RequireAdminMiddleware(), hm.proctoringHandler.ListEvents)
			attempts.POST("/:id/telemetry", hm.proctoringHandler.FlushTelemetry)

			// Test-specific routes
			attempts.GET("/current/:test_id", hm.attemptHandler.GetCurrentAttempt)
			attempts.GET("/count/:test_id", hm.attemptHandler.GetAttemptCount)
		}

		// Grading routes - Admins only
		grading := v1.Group("/grading")
		grading.Use(hm.authMiddleware.RequireAdminMiddleware())
		{
			grading.POST("/answers/:answer_id", hm.gradingHandler.GradeAnswer)
			grading.POST("/attempts/:attempt_id/auto", hm.gradingHandler.AutoGradeAttempt)
			grading.GET("/attempts/:attempt_id/stats", hm.gradingHandler.GetGradingStats)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "test-engine",
		})
	})
}

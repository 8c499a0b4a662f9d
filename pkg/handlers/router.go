package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmarsh/guardops-api-go/pkg/database"
	"github.com/dmarsh/guardops-api-go/pkg/notify"
	"github.com/dmarsh/guardops-api-go/pkg/scheduling"
)

// NewHandler wires the scheduling services on top of the database and returns
// a ready handler set
func NewHandler(db *gorm.DB, log *zap.Logger) *Handler {
	cfg := scheduling.DefaultScoringConfig()
	store := database.NewGormStore(db)
	detector := scheduling.NewConflictDetector(store, cfg, log)
	scorer := scheduling.NewEligibilityScorer(store, detector, cfg, log)
	matcher := scheduling.NewMatchRanker(store, scorer, cfg, log)
	coordinator := scheduling.NewAssignmentCoordinator(store, scorer, detector, notify.NewLogNotifier(log), cfg, log)

	return &Handler{
		DB:          db,
		Log:         log,
		Store:       store,
		Scorer:      scorer,
		Detector:    detector,
		Matcher:     matcher,
		Assignments: coordinator,
	}
}

// RegisterRoutes attaches every route to the engine. Shared by the server
// binary and the serverless entry point.
func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "GuardOps Scheduling API",
			"version": "1.3.0",
		})
	})

	r.POST("/admin/login", h.Login)

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
	}

	// Scheduling Endpoints
	api := r.Group("/api")
	api.Use(h.APIKeyMiddleware())
	{
		api.GET("/shifts/:id/eligible-guards", h.EligibleGuards)
		api.POST("/shifts/:id/conflicts", h.ShiftConflicts)
		api.GET("/guards/:id/eligibility", h.GuardEligibility)

		api.POST("/assignments", h.CreateAssignment)
		api.POST("/assignments/batch", h.BatchAssignments)
		api.GET("/assignments/:id", h.GetAssignment)
		api.POST("/assignments/:id/response", h.GuardResponse)
		api.POST("/assignments/:id/cancel", h.CancelAssignment)

		api.POST("/validate", h.ValidateInput)
		api.GET("/usage", h.GetMyUsage)
	}
}

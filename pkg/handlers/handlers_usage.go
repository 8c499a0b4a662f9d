package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmarsh/guardops-api-go/pkg/database"
)

// UsageDelta is one handler invocation's contribution to the daily counters
type UsageDelta struct {
	Requests           int
	GuardsEvaluated    int
	AssignmentsCreated int
}

// RecordUsage upserts the per-key daily usage row. Counter bumps are
// best-effort; a failed write never fails the request.
func (h *Handler) RecordUsage(c *gin.Context, delta UsageDelta) {
	apiKeyRaw, exists := c.Get("apiKey")
	if !exists {
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	today := time.Now().UTC().Format("2006-01-02")
	usage := database.APIUsage{
		KeyID:              apiKey.ID,
		Date:               today,
		RequestCount:       delta.Requests,
		GuardsEvaluated:    delta.GuardsEvaluated,
		AssignmentsCreated: delta.AssignmentsCreated,
	}

	err := h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":       gorm.Expr("request_count + ?", delta.Requests),
			"guards_evaluated":    gorm.Expr("guards_evaluated + ?", delta.GuardsEvaluated),
			"assignments_created": gorm.Expr("assignments_created + ?", delta.AssignmentsCreated),
		}),
	}).Create(&usage).Error
	if err != nil {
		h.Log.Warn("usage tracking failed", zap.Uint("key_id", apiKey.ID), zap.Error(err))
	}

	now := time.Now()
	h.DB.Model(apiKey).Update("last_used", &now)
}

// GetMyUsage returns usage stats for the authenticated API key
func (h *Handler) GetMyUsage(c *gin.Context) {
	apiKeyRaw, exists := c.Get("apiKey")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "API Key context missing"})
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	var usage []database.APIUsage
	if err := h.DB.Where("key_id = ?", apiKey.ID).Order("date desc").Limit(30).Find(&usage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch usage details"})
		return
	}

	// Calculate totals
	var totalRequests, totalGuards, totalAssignments int64
	for _, u := range usage {
		totalRequests += int64(u.RequestCount)
		totalGuards += int64(u.GuardsEvaluated)
		totalAssignments += int64(u.AssignmentsCreated)
	}

	c.JSON(http.StatusOK, gin.H{
		"key_name":      apiKey.Name,
		"rate_limit":    apiKey.RateLimit,
		"usage_history": usage,
		"totals": gin.H{
			"requests":            totalRequests,
			"guards_evaluated":    totalGuards,
			"assignments_created": totalAssignments,
		},
	})
}

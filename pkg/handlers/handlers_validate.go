package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmarsh/guardops-api-go/pkg/scheduling"
)

// validateBatch checks the structural rules shared by the batch endpoints:
// a non-empty list, ids present on every item, and no shift offered twice in
// the same batch.
func validateBatch(assignments []scheduling.CreateAssignmentInput) string {
	if len(assignments) == 0 {
		return "at least one assignment is required"
	}

	seenShifts := make(map[string]bool)
	for _, a := range assignments {
		if a.ShiftID == "" || a.GuardID == "" {
			return "shift_id and guard_id are required on every assignment"
		}
		if seenShifts[a.ShiftID] {
			return "duplicate shift in batch: " + a.ShiftID
		}
		seenShifts[a.ShiftID] = true
	}
	return ""
}

// ValidateInput handles the JSON-based validation request. It runs the same
// structural checks as the batch endpoint without touching the database, so
// integrators can pre-flight payloads.
func (h *Handler) ValidateInput(c *gin.Context) {
	var req struct {
		Assignments []scheduling.CreateAssignmentInput `json:"assignments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	if msg := validateBatch(req.Assignments); msg != "" {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": msg})
		return
	}

	// Count distinct guards for the stats block
	guardIDs := make(map[string]bool)
	for _, a := range req.Assignments {
		guardIDs[a.GuardID] = true
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"stats": gin.H{
			"assignment_count": len(req.Assignments),
			"guard_count":      len(guardIDs),
		},
	})
}

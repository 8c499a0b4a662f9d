package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmarsh/guardops-api-go/pkg/scheduling"
)

// EligibleGuards returns the ranked guard matches for a shift.
// Query params: limit (default 10), include_matching (default true). With
// include_matching=false only the eligibility portion of each match is
// returned, which is cheaper for callers that run their own ranking.
func (h *Handler) EligibleGuards(c *gin.Context) {
	shiftID := c.Param("id")

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondValidation(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	includeMatching := c.DefaultQuery("include_matching", "true") != "false"

	matches, err := h.Matcher.FindBestMatches(c.Request.Context(), shiftID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	h.RecordUsage(c, UsageDelta{Requests: 1, GuardsEvaluated: len(matches)})

	if !includeMatching {
		eligible := make([]any, 0, len(matches))
		for _, m := range matches {
			eligible = append(eligible, m.Eligibility)
		}
		respondOK(c, http.StatusOK, gin.H{"shift_id": shiftID, "guards": eligible})
		return
	}

	respondOK(c, http.StatusOK, gin.H{"shift_id": shiftID, "matches": matches})
}

// ShiftConflicts runs conflict detection for a proposed guard/shift pairing
// without creating anything
func (h *Handler) ShiftConflicts(c *gin.Context) {
	shiftID := c.Param("id")

	var req struct {
		GuardID          string `json:"guard_id"`
		ProposedOverride bool   `json:"proposed_override"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body: "+err.Error())
		return
	}
	if req.GuardID == "" {
		respondValidation(c, "guard_id is required")
		return
	}

	shift, err := h.Store.GetShift(c.Request.Context(), shiftID)
	if err != nil {
		if errors.Is(err, scheduling.ErrNotFound) {
			respondError(c, scheduling.NewServiceError(scheduling.CodeShiftNotFound, "shift %q not found", shiftID))
			return
		}
		respondError(c, err)
		return
	}

	check, err := h.Detector.DetectConflicts(c.Request.Context(), req.GuardID, *shift, req.ProposedOverride)
	if err != nil {
		respondError(c, err)
		return
	}

	h.RecordUsage(c, UsageDelta{Requests: 1})
	respondOK(c, http.StatusOK, check)
}

// GuardEligibility scores one guard against one shift
func (h *Handler) GuardEligibility(c *gin.Context) {
	guardID := c.Param("id")
	shiftID := c.Query("shift_id")
	if shiftID == "" {
		respondValidation(c, "shift_id query parameter is required")
		return
	}

	shift, err := h.Store.GetShift(c.Request.Context(), shiftID)
	if err != nil {
		if errors.Is(err, scheduling.ErrNotFound) {
			respondError(c, scheduling.NewServiceError(scheduling.CodeShiftNotFound, "shift %q not found", shiftID))
			return
		}
		respondError(c, err)
		return
	}

	result, err := h.Scorer.CheckEligibility(c.Request.Context(), guardID, *shift)
	if err != nil {
		respondError(c, err)
		return
	}

	h.RecordUsage(c, UsageDelta{Requests: 1, GuardsEvaluated: 1})
	respondOK(c, http.StatusOK, result)
}

// CreateAssignment offers a shift to a guard
func (h *Handler) CreateAssignment(c *gin.Context) {
	var input scheduling.CreateAssignmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondValidation(c, "invalid request body: "+err.Error())
		return
	}
	if input.ShiftID == "" || input.GuardID == "" {
		respondValidation(c, "shift_id and guard_id are required")
		return
	}
	if input.AssignedBy == "" {
		input.AssignedBy = c.GetString("userID")
	}

	assignment, err := h.Assignments.CreateAssignment(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	h.RecordUsage(c, UsageDelta{Requests: 1, AssignmentsCreated: 1})
	respondOK(c, http.StatusCreated, assignment)
}

// BatchAssignments processes a list of assignment requests in order
func (h *Handler) BatchAssignments(c *gin.Context) {
	var req struct {
		Assignments         []scheduling.CreateAssignmentInput `json:"assignments"`
		AllowPartialSuccess bool                               `json:"allow_partial_success"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body: "+err.Error())
		return
	}
	if msg := validateBatch(req.Assignments); msg != "" {
		respondValidation(c, msg)
		return
	}

	assignedBy := c.GetString("userID")
	for i := range req.Assignments {
		if req.Assignments[i].AssignedBy == "" {
			req.Assignments[i].AssignedBy = assignedBy
		}
	}

	result, err := h.Assignments.CreateAssignmentBatch(c.Request.Context(), req.Assignments, req.AllowPartialSuccess)
	if result != nil {
		h.RecordUsage(c, UsageDelta{Requests: 1, AssignmentsCreated: result.SuccessfulAssignments})
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// GetAssignment fetches one assignment
func (h *Handler) GetAssignment(c *gin.Context) {
	assignment, err := h.Assignments.GetAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, assignment)
}

// GuardResponse records a guard's accept/decline/conditional answer
func (h *Handler) GuardResponse(c *gin.Context) {
	var input scheduling.GuardResponseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondValidation(c, "invalid request body: "+err.Error())
		return
	}
	if input.Response == "" {
		respondValidation(c, "response is required")
		return
	}

	assignment, err := h.Assignments.HandleGuardResponse(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}

	h.RecordUsage(c, UsageDelta{Requests: 1})
	respondOK(c, http.StatusOK, assignment)
}

// CancelAssignment cancels an assignment with a recorded reason
func (h *Handler) CancelAssignment(c *gin.Context) {
	var req struct {
		Reason      string `json:"reason"`
		CancelledBy string `json:"cancelled_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body: "+err.Error())
		return
	}
	if req.Reason == "" {
		respondValidation(c, "reason is required")
		return
	}
	if req.CancelledBy == "" {
		req.CancelledBy = c.GetString("userID")
	}

	assignment, err := h.Assignments.CancelAssignment(c.Request.Context(), c.Param("id"), req.Reason, req.CancelledBy)
	if err != nil {
		respondError(c, err)
		return
	}

	h.Log.Info("assignment cancelled via api",
		zap.String("assignment_id", assignment.ID),
		zap.String("cancelled_by", req.CancelledBy))
	h.RecordUsage(c, UsageDelta{Requests: 1})
	respondOK(c, http.StatusOK, assignment)
}

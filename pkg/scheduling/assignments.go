package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmarsh/guardops-api-go/pkg/models"
	"github.com/dmarsh/guardops-api-go/pkg/notify"
)

// AssignmentCoordinator orchestrates assignment creation, guard responses and
// cancellation. Status machine: pending -> accepted | declined | expired |
// cancelled. Accepted/declined only move to cancelled (explicit manager
// action); expired is terminal.
type AssignmentCoordinator struct {
	store    Store
	scorer   *EligibilityScorer
	detector *ConflictDetector
	notifier notify.Notifier
	cfg      ScoringConfig
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewAssignmentCoordinator wires the coordinator with its collaborators
func NewAssignmentCoordinator(store Store, scorer *EligibilityScorer, detector *ConflictDetector, notifier notify.Notifier, cfg ScoringConfig, log *zap.Logger) *AssignmentCoordinator {
	return &AssignmentCoordinator{
		store:    store,
		scorer:   scorer,
		detector: detector,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// CreateAssignmentInput is a request to offer a shift to a guard
type CreateAssignmentInput struct {
	ShiftID           string `json:"shift_id"`
	GuardID           string `json:"guard_id"`
	AssignedBy        string `json:"assigned_by"`
	OverrideConflicts bool   `json:"override_conflicts"`
	OverrideReason    string `json:"override_reason"`
	Notes             string `json:"notes"`
}

// GuardResponseInput is a guard's answer to a pending assignment
type GuardResponseInput struct {
	Response models.GuardResponseType `json:"response"`
	Notes    string                   `json:"notes"`
}

// BatchItemResult reports one entry of a batch run
type BatchItemResult struct {
	Index        int           `json:"index"`
	ShiftID      string        `json:"shift_id"`
	GuardID      string        `json:"guard_id"`
	AssignmentID string        `json:"assignment_id,omitempty"`
	Error        *ServiceError `json:"error,omitempty"`
}

// BatchResult summarizes a batch assignment run
type BatchResult struct {
	Status                models.BatchStatus `json:"status"`
	SuccessfulAssignments int                `json:"successful_assignments"`
	FailedAssignments     int                `json:"failed_assignments"`
	Results               []BatchItemResult  `json:"results"`
}

// CreateAssignment validates shift state and guard eligibility, persists the
// assignment (status pending) and points the shift at the guard. Critical
// conflicts can never be overridden; error-level conflicts require an
// override with a written justification. If the shift update fails the
// assignment insert is rolled back with a compensating delete.
func (c *AssignmentCoordinator) CreateAssignment(ctx context.Context, input CreateAssignmentInput) (*models.ShiftAssignment, error) {
	shift, err := c.store.GetShift(ctx, input.ShiftID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewServiceError(CodeShiftNotFound, "shift %q not found", input.ShiftID)
		}
		return nil, storeError("load shift", err)
	}

	if existing, err := c.store.ActiveAssignmentForShift(ctx, input.ShiftID); err == nil {
		return nil, NewServiceError(CodeAssignmentExists, "shift %q already has an active assignment", input.ShiftID).
			WithDetail("assignment_id", existing.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, storeError("check existing assignment", err)
	}

	eligibility, err := c.scorer.CheckEligibility(ctx, input.GuardID, *shift)
	if err != nil {
		return nil, err
	}
	// Overrides only soften conflict-driven ineligibility. A disqualified
	// guard (unassignable status, missing critical certification, critical
	// conflict, missing profile) is blocked unconditionally.
	if !eligibility.Eligible && (eligibility.Disqualified || !input.OverrideConflicts) {
		return nil, NewServiceError(CodeGuardNotEligible, "guard %q is not eligible for shift %q", input.GuardID, input.ShiftID).
			WithDetail("reasons", eligibility.Reasons).
			WithDetail("conflicts", eligibility.Conflicts).
			WithDetail("eligibility_score", eligibility.EligibilityScore)
	}

	check, err := c.detector.DetectConflicts(ctx, input.GuardID, *shift, input.OverrideConflicts)
	if err != nil {
		return nil, err
	}
	if !check.CanProceed {
		return nil, NewServiceError(CodeConflictOverrideRequired, "scheduling conflicts block this assignment").
			WithDetail("conflicts", check.Conflicts).
			WithDetail("requires_override", check.RequiresOverride).
			WithDetail("resolution_suggestions", check.ResolutionSuggestions)
	}
	if input.OverrideConflicts && check.RequiresOverride && strings.TrimSpace(input.OverrideReason) == "" {
		return nil, NewServiceError(CodeConflictOverrideRequired, "an override justification is required").
			WithDetail("conflicts", check.Conflicts)
	}

	now := c.now()
	assignment := &models.ShiftAssignment{
		ID:               c.newID(),
		ShiftID:          input.ShiftID,
		GuardID:          input.GuardID,
		Status:           models.AssignmentPending,
		AssignedBy:       input.AssignedBy,
		AssignedAt:       now,
		EligibilityScore: eligibility.EligibilityScore,
		ManagerNotes:     input.Notes,
	}
	if input.OverrideConflicts && len(check.Conflicts) > 0 {
		assignment.ConflictOverridden = true
		assignment.OverrideReason = input.OverrideReason
		assignment.OverrideBy = input.AssignedBy
		assignment.OverrideAt = &now
	}

	if err := c.store.CreateAssignment(ctx, assignment); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, NewServiceError(CodeAssignmentExists, "shift %q already has an active assignment", input.ShiftID)
		}
		return nil, storeError("create assignment", err)
	}

	if err := c.store.SetShiftAssignedGuard(ctx, input.ShiftID, &input.GuardID); err != nil {
		// Compensating delete; this layer cannot assume cross-table
		// transactions.
		if delErr := c.store.DeleteAssignment(ctx, assignment.ID); delErr != nil {
			c.log.Error("compensating delete failed; assignment may be orphaned",
				zap.String("assignment_id", assignment.ID), zap.Error(delErr))
		}
		return nil, storeError("update shift assigned guard", err)
	}

	c.log.Info("assignment created",
		zap.String("assignment_id", assignment.ID),
		zap.String("shift_id", input.ShiftID),
		zap.String("guard_id", input.GuardID),
		zap.Bool("conflict_overridden", assignment.ConflictOverridden))
	go c.notifier.AssignmentCreated(*assignment, *shift)

	return assignment, nil
}

// GetAssignment fetches a single assignment by id
func (c *AssignmentCoordinator) GetAssignment(ctx context.Context, id string) (*models.ShiftAssignment, error) {
	assignment, err := c.store.GetAssignment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewServiceError(CodeAssignmentNotFound, "assignment %q not found", id)
		}
		return nil, storeError("load assignment", err)
	}
	return assignment, nil
}

// HandleGuardResponse applies a guard's accept/decline/conditional answer to
// a pending assignment. Expiry is detected lazily: a response arriving after
// the 24-hour deadline marks the assignment expired and is rejected.
func (c *AssignmentCoordinator) HandleGuardResponse(ctx context.Context, assignmentID string, input GuardResponseInput) (*models.ShiftAssignment, error) {
	assignment, err := c.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.Status != models.AssignmentPending {
		return nil, NewServiceError(CodeInvalidAssignmentStatus, "assignment is %q, expected pending", assignment.Status)
	}

	now := c.now()
	if now.After(assignment.AssignedAt.Add(c.cfg.ResponseDeadline)) {
		assignment.Status = models.AssignmentExpired
		if err := c.store.UpdateAssignment(ctx, assignment); err != nil {
			return nil, storeError("expire assignment", err)
		}
		return nil, NewServiceError(CodeResponseDeadlinePassed, "response deadline passed; assignment expired").
			WithDetail("assigned_at", assignment.AssignedAt).
			WithDetail("deadline_hours", c.cfg.ResponseDeadline.Hours())
	}

	assignment.Response = input.Response
	assignment.RespondedAt = &now
	assignment.ResponseNotes = input.Notes

	switch input.Response {
	case models.ResponseAccept:
		assignment.Status = models.AssignmentAccepted
	case models.ResponseConditional:
		// Conditional acceptance is an acceptance with the condition on record
		assignment.Status = models.AssignmentAccepted
		assignment.ResponseNotes = "Conditional acceptance: " + input.Notes
	case models.ResponseDecline:
		assignment.Status = models.AssignmentDeclined
	default:
		return nil, NewServiceError(CodeValidation, "unknown response %q", input.Response)
	}

	if err := c.store.UpdateAssignment(ctx, assignment); err != nil {
		return nil, storeError("update assignment", err)
	}

	if assignment.Status == models.AssignmentDeclined {
		if err := c.store.SetShiftAssignedGuard(ctx, assignment.ShiftID, nil); err != nil {
			return nil, storeError("clear shift assigned guard", err)
		}
		go c.notifier.GuardDeclined(*assignment)
	}

	c.log.Info("guard responded",
		zap.String("assignment_id", assignment.ID),
		zap.String("response", string(input.Response)),
		zap.String("status", string(assignment.Status)))
	return assignment, nil
}

// CancelAssignment moves any assignment to cancelled, clears the shift's
// assigned-guard reference and appends the reason to the manager notes
// without overwriting prior notes.
func (c *AssignmentCoordinator) CancelAssignment(ctx context.Context, assignmentID, reason, cancelledBy string) (*models.ShiftAssignment, error) {
	assignment, err := c.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	assignment.Status = models.AssignmentCancelled
	note := fmt.Sprintf("Cancelled by %s: %s", cancelledBy, reason)
	if assignment.ManagerNotes != "" {
		assignment.ManagerNotes += "\n" + note
	} else {
		assignment.ManagerNotes = note
	}

	if err := c.store.UpdateAssignment(ctx, assignment); err != nil {
		return nil, storeError("cancel assignment", err)
	}
	if err := c.store.SetShiftAssignedGuard(ctx, assignment.ShiftID, nil); err != nil {
		return nil, storeError("clear shift assigned guard", err)
	}

	c.log.Info("assignment cancelled",
		zap.String("assignment_id", assignment.ID),
		zap.String("cancelled_by", cancelledBy))
	go c.notifier.AssignmentCancelled(*assignment, reason)

	return assignment, nil
}

// CreateAssignmentBatch processes requests sequentially. When partial success
// is disallowed the first failure stops the run and the whole batch fails;
// otherwise failures are isolated per item.
func (c *AssignmentCoordinator) CreateAssignmentBatch(ctx context.Context, inputs []CreateAssignmentInput, allowPartialSuccess bool) (*BatchResult, error) {
	result := &BatchResult{Results: make([]BatchItemResult, 0, len(inputs))}

	for i, input := range inputs {
		item := BatchItemResult{Index: i, ShiftID: input.ShiftID, GuardID: input.GuardID}

		assignment, err := c.CreateAssignment(ctx, input)
		if err != nil {
			item.Error = AsServiceError(err)
			result.FailedAssignments++
			result.Results = append(result.Results, item)
			if !allowPartialSuccess {
				result.Status = models.BatchFailed
				return result, NewServiceError(CodeBatchOperationFailed, "batch aborted at item %d: %s", i, item.Error.Message).
					WithDetail("results", result.Results)
			}
			continue
		}
		item.AssignmentID = assignment.ID
		result.SuccessfulAssignments++
		result.Results = append(result.Results, item)
	}

	switch {
	case result.FailedAssignments == 0:
		result.Status = models.BatchCompleted
	case result.SuccessfulAssignments == 0:
		result.Status = models.BatchFailed
	default:
		result.Status = models.BatchPartiallyCompleted
	}
	return result, nil
}

package scheduling

import (
	"context"
	"time"

	"github.com/dmarsh/guardops-api-go/pkg/models"
)

// OverlappingAssignment pairs an assignment with the shift it covers, as
// returned by overlap queries against the persistence layer.
type OverlappingAssignment struct {
	Assignment models.ShiftAssignment
	Shift      models.Shift
}

// Store is the persistence collaborator for the scheduling engine. Shifts and
// guard profiles are read-only here except for the shift's assigned-guard
// reference, which the assignment coordinator exclusively writes.
//
// Implementations return ErrNotFound for missing rows and ErrDuplicate when
// the one-active-assignment-per-shift constraint is violated.
type Store interface {
	GetShift(ctx context.Context, id string) (*models.Shift, error)
	GetGuard(ctx context.Context, id string) (*models.GuardProfile, error)

	// ListSchedulableGuards returns every guard whose profile is approved and
	// schedulable. The matching engine scores the full set in memory.
	ListSchedulableGuards(ctx context.Context) ([]models.GuardProfile, error)

	// OverlappingAssignments returns the guard's assignments in the given
	// statuses whose shift range intersects [start, end), with shift metadata.
	OverlappingAssignments(ctx context.Context, guardID string, start, end time.Time, statuses []models.AssignmentStatus) ([]OverlappingAssignment, error)

	GetAssignment(ctx context.Context, id string) (*models.ShiftAssignment, error)

	// ActiveAssignmentForShift returns the pending/accepted/confirmed
	// assignment for the shift, or ErrNotFound.
	ActiveAssignmentForShift(ctx context.Context, shiftID string) (*models.ShiftAssignment, error)

	CreateAssignment(ctx context.Context, assignment *models.ShiftAssignment) error
	UpdateAssignment(ctx context.Context, assignment *models.ShiftAssignment) error

	// DeleteAssignment removes an assignment row outright. Only used as a
	// compensating action when the shift update after insert fails.
	DeleteAssignment(ctx context.Context, id string) error

	// SetShiftAssignedGuard writes the shift's assigned-guard reference;
	// nil clears it.
	SetShiftAssignedGuard(ctx context.Context, shiftID string, guardID *string) error
}

// activeStatuses are the assignment states that occupy a guard's schedule
var activeStatuses = []models.AssignmentStatus{
	models.AssignmentAccepted,
	models.AssignmentConfirmed,
}

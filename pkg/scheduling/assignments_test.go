package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarsh/guardops-api-go/pkg/models"
)

func readyEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	guard := baseGuard("g1")
	guard.Metrics = strongMetrics()
	env.store.addGuard(guard)
	env.store.addShift(baseShift("s1", 0, 8*time.Hour))
	return env
}

func TestCreateAssignmentHappyPath(t *testing.T) {
	env := readyEnv(t)

	assignment, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID:    "s1",
		GuardID:    "g1",
		AssignedBy: "mgr-1",
		Notes:      "first rotation",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, assignment.ID)
	assert.Equal(t, models.AssignmentPending, assignment.Status)
	assert.Equal(t, monday, assignment.AssignedAt)
	assert.Greater(t, assignment.EligibilityScore, 0.3)
	assert.False(t, assignment.ConflictOverridden)
	assert.Equal(t, "first rotation", assignment.ManagerNotes)

	shift, err := env.store.GetShift(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, shift.AssignedGuardID)
	assert.Equal(t, "g1", *shift.AssignedGuardID)
}

func TestCreateAssignmentShiftNotFound(t *testing.T) {
	env := readyEnv(t)

	_, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "nope", GuardID: "g1", AssignedBy: "mgr-1",
	})
	require.Error(t, err)
	assert.Equal(t, CodeShiftNotFound, AsServiceError(err).Code)
}

func TestCreateAssignmentRejectsSecondOffer(t *testing.T) {
	env := readyEnv(t)
	guard2 := baseGuard("g2")
	guard2.Metrics = strongMetrics()
	env.store.addGuard(guard2)

	_, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1",
	})
	require.NoError(t, err)

	_, err = env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "g2", AssignedBy: "mgr-1",
	})
	require.Error(t, err)
	assert.Equal(t, CodeAssignmentExists, AsServiceError(err).Code)
}

func TestCreateAssignmentIneligibleGuard(t *testing.T) {
	env := newTestEnv(t)
	guard := baseGuard("g1")
	guard.EmploymentStatus = "on_leave"
	env.store.addGuard(guard)
	env.store.addShift(baseShift("s1", 0, 8*time.Hour))

	_, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1", OverrideConflicts: true, OverrideReason: "short staffed",
	})
	require.Error(t, err)
	assert.Equal(t, CodeGuardNotEligible, AsServiceError(err).Code)
}

func TestCreateAssignmentUnknownGuardNotOverridable(t *testing.T) {
	env := newTestEnv(t)
	env.store.addShift(baseShift("s1", 0, 8*time.Hour))

	_, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "ghost", AssignedBy: "mgr-1", OverrideConflicts: true, OverrideReason: "urgent",
	})
	require.Error(t, err)
	assert.Equal(t, CodeGuardNotEligible, AsServiceError(err).Code)
}

func TestCreateAssignmentCriticalCertNeverOverridable(t *testing.T) {
	env := newTestEnv(t)
	guard := baseGuard("g1")
	guard.Metrics = strongMetrics()
	env.store.addGuard(guard)
	shift := baseShift("s1", 0, 8*time.Hour)
	shift.RequiredCerts = []string{"Basic_Security"}
	env.store.addShift(shift)

	_, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1", OverrideConflicts: true, OverrideReason: "emergency",
	})
	require.Error(t, err)
	assert.Equal(t, CodeGuardNotEligible, AsServiceError(err).Code)
}

func TestCreateAssignmentOverrideWorkflow(t *testing.T) {
	env := newTestEnv(t)
	guard := baseGuard("g1")
	guard.Metrics = strongMetrics()
	guard.Availability = []models.AvailabilityWindow{{
		Start: monday.Add(-time.Hour),
		End:   monday.Add(12 * time.Hour),
		Type:  models.AvailabilityUnavailable,
	}}
	env.store.addGuard(guard)
	env.store.addShift(baseShift("s1", 0, 8*time.Hour))

	input := CreateAssignmentInput{ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1"}

	// Without an override the unavailability conflict blocks the assignment
	_, err := env.coord.CreateAssignment(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, CodeConflictOverrideRequired, AsServiceError(err).Code)

	// Overriding without a written reason is rejected
	input.OverrideConflicts = true
	_, err = env.coord.CreateAssignment(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, CodeConflictOverrideRequired, AsServiceError(err).Code)

	input.OverrideReason = "guard volunteered by phone"
	assignment, err := env.coord.CreateAssignment(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, assignment.ConflictOverridden)
	assert.Equal(t, "guard volunteered by phone", assignment.OverrideReason)
	assert.Equal(t, "mgr-1", assignment.OverrideBy)
	require.NotNil(t, assignment.OverrideAt)
}

func TestCreateAssignmentCompensatesFailedShiftUpdate(t *testing.T) {
	env := readyEnv(t)
	env.store.failSetShiftGuard = errStoreDown

	_, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1",
	})
	require.Error(t, err)
	assert.Equal(t, CodeDatabaseError, AsServiceError(err).Code)

	// The inserted assignment row was rolled back
	assert.Empty(t, env.store.assignments)
}

func TestHandleGuardResponseAccept(t *testing.T) {
	env := readyEnv(t)
	assignment, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1",
	})
	require.NoError(t, err)

	updated, err := env.coord.HandleGuardResponse(context.Background(), assignment.ID, GuardResponseInput{
		Response: models.ResponseAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentAccepted, updated.Status)
	require.NotNil(t, updated.RespondedAt)
}

func TestHandleGuardResponseConditional(t *testing.T) {
	env := readyEnv(t)
	assignment, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1",
	})
	require.NoError(t, err)

	updated, err := env.coord.HandleGuardResponse(context.Background(), assignment.ID, GuardResponseInput{
		Response: models.ResponseConditional,
		Notes:    "can start 30 minutes late",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentAccepted, updated.Status)
	assert.Equal(t, "Conditional acceptance: can start 30 minutes late", updated.ResponseNotes)
}

func TestHandleGuardResponseDeclineClearsShift(t *testing.T) {
	env := readyEnv(t)
	assignment, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1",
	})
	require.NoError(t, err)

	updated, err := env.coord.HandleGuardResponse(context.Background(), assignment.ID, GuardResponseInput{
		Response: models.ResponseDecline,
		Notes:    "family emergency",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentDeclined, updated.Status)

	shift, err := env.store.GetShift(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, shift.AssignedGuardID)
}

func TestHandleGuardResponseAfterDeadline(t *testing.T) {
	env := readyEnv(t)
	assignment, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1",
	})
	require.NoError(t, err)

	env.coord.now = func() time.Time { return monday.Add(25 * time.Hour) }

	_, err = env.coord.HandleGuardResponse(context.Background(), assignment.ID, GuardResponseInput{
		Response: models.ResponseAccept,
	})
	require.Error(t, err)
	assert.Equal(t, CodeResponseDeadlinePassed, AsServiceError(err).Code)

	stored, err := env.store.GetAssignment(context.Background(), assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentExpired, stored.Status)
}

func TestHandleGuardResponseRequiresPending(t *testing.T) {
	env := readyEnv(t)
	assignment, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1",
	})
	require.NoError(t, err)

	_, err = env.coord.HandleGuardResponse(context.Background(), assignment.ID, GuardResponseInput{
		Response: models.ResponseAccept,
	})
	require.NoError(t, err)

	_, err = env.coord.HandleGuardResponse(context.Background(), assignment.ID, GuardResponseInput{
		Response: models.ResponseDecline,
	})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidAssignmentStatus, AsServiceError(err).Code)
}

func TestCancelAssignmentAppendsNotes(t *testing.T) {
	env := readyEnv(t)
	assignment, err := env.coord.CreateAssignment(context.Background(), CreateAssignmentInput{
		ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1", Notes: "initial briefing done",
	})
	require.NoError(t, err)

	cancelled, err := env.coord.CancelAssignment(context.Background(), assignment.ID, "client cancelled the detail", "mgr-2")
	require.NoError(t, err)

	assert.Equal(t, models.AssignmentCancelled, cancelled.Status)
	assert.Contains(t, cancelled.ManagerNotes, "initial briefing done")
	assert.Contains(t, cancelled.ManagerNotes, "Cancelled by mgr-2: client cancelled the detail")

	shift, err := env.store.GetShift(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, shift.AssignedGuardID)
}

func TestCancelAssignmentNotFound(t *testing.T) {
	env := readyEnv(t)

	_, err := env.coord.CancelAssignment(context.Background(), "nope", "reason", "mgr-1")
	require.Error(t, err)
	assert.Equal(t, CodeAssignmentNotFound, AsServiceError(err).Code)
}

func batchEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	for _, id := range []string{"g1", "g2", "g3"} {
		guard := baseGuard(id)
		guard.Metrics = strongMetrics()
		env.store.addGuard(guard)
	}
	env.store.addShift(baseShift("s1", 0, 8*time.Hour))
	env.store.addShift(baseShift("s3", 24*time.Hour, 8*time.Hour))
	return env
}

func TestCreateAssignmentBatchPartialSuccess(t *testing.T) {
	env := batchEnv(t)

	inputs := []CreateAssignmentInput{
		{ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1"},
		{ShiftID: "missing", GuardID: "g2", AssignedBy: "mgr-1"},
		{ShiftID: "s3", GuardID: "g3", AssignedBy: "mgr-1"},
	}

	result, err := env.coord.CreateAssignmentBatch(context.Background(), inputs, true)
	require.NoError(t, err)

	assert.Equal(t, models.BatchPartiallyCompleted, result.Status)
	assert.Equal(t, 2, result.SuccessfulAssignments)
	assert.Equal(t, 1, result.FailedAssignments)
	require.Len(t, result.Results, 3)
	assert.NotEmpty(t, result.Results[0].AssignmentID)
	require.NotNil(t, result.Results[1].Error)
	assert.Equal(t, CodeShiftNotFound, result.Results[1].Error.Code)
	assert.NotEmpty(t, result.Results[2].AssignmentID)
}

func TestCreateAssignmentBatchStopsOnFirstFailure(t *testing.T) {
	env := batchEnv(t)

	inputs := []CreateAssignmentInput{
		{ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1"},
		{ShiftID: "missing", GuardID: "g2", AssignedBy: "mgr-1"},
		{ShiftID: "s3", GuardID: "g3", AssignedBy: "mgr-1"},
	}

	result, err := env.coord.CreateAssignmentBatch(context.Background(), inputs, false)
	require.Error(t, err)
	assert.Equal(t, CodeBatchOperationFailed, AsServiceError(err).Code)

	require.NotNil(t, result)
	assert.Equal(t, models.BatchFailed, result.Status)
	assert.Equal(t, 1, result.SuccessfulAssignments)
	// The third item was never attempted
	assert.Len(t, result.Results, 2)
}

func TestCreateAssignmentBatchAllSucceed(t *testing.T) {
	env := batchEnv(t)

	inputs := []CreateAssignmentInput{
		{ShiftID: "s1", GuardID: "g1", AssignedBy: "mgr-1"},
		{ShiftID: "s3", GuardID: "g2", AssignedBy: "mgr-1"},
	}

	result, err := env.coord.CreateAssignmentBatch(context.Background(), inputs, false)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, result.Status)
	assert.Equal(t, 2, result.SuccessfulAssignments)
	assert.Zero(t, result.FailedAssignments)
}

package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dmarsh/guardops-api-go/pkg/models"
	"github.com/dmarsh/guardops-api-go/pkg/notify"
)

// monday is the anchor for test schedules: Monday 2025-03-03 09:00 UTC
var monday = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

// fakeStore is an in-memory Store with error injection hooks
type fakeStore struct {
	mu          sync.Mutex
	shifts      map[string]models.Shift
	guards      map[string]models.GuardProfile
	guardOrder  []string
	assignments map[string]models.ShiftAssignment

	failSetShiftGuard error
	failOverlap       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		shifts:      make(map[string]models.Shift),
		guards:      make(map[string]models.GuardProfile),
		assignments: make(map[string]models.ShiftAssignment),
	}
}

func (f *fakeStore) addShift(s models.Shift) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shifts[s.ID] = s
}

func (f *fakeStore) addGuard(g models.GuardProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.guards[g.ID]; !exists {
		f.guardOrder = append(f.guardOrder, g.ID)
	}
	f.guards[g.ID] = g
}

func (f *fakeStore) addAssignment(a models.ShiftAssignment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignments[a.ID] = a
}

func (f *fakeStore) GetShift(_ context.Context, id string) (*models.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shifts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (f *fakeStore) GetGuard(_ context.Context, id string) (*models.GuardProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (f *fakeStore) ListSchedulableGuards(_ context.Context) ([]models.GuardProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.GuardProfile, 0, len(f.guardOrder))
	for _, id := range f.guardOrder {
		g := f.guards[id]
		if g.Assignable() {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) OverlappingAssignments(_ context.Context, guardID string, start, end time.Time, statuses []models.AssignmentStatus) ([]OverlappingAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOverlap != nil {
		return nil, f.failOverlap
	}

	allowed := make(map[models.AssignmentStatus]bool)
	for _, s := range statuses {
		allowed[s] = true
	}

	var out []OverlappingAssignment
	for _, a := range f.assignments {
		if a.GuardID != guardID || !allowed[a.Status] {
			continue
		}
		shift, ok := f.shifts[a.ShiftID]
		if !ok {
			continue
		}
		if shift.Start.Before(end) && shift.End.After(start) {
			out = append(out, OverlappingAssignment{Assignment: a, Shift: shift})
		}
	}
	return out, nil
}

func (f *fakeStore) GetAssignment(_ context.Context, id string) (*models.ShiftAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (f *fakeStore) ActiveAssignmentForShift(_ context.Context, shiftID string) (*models.ShiftAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.ShiftID != shiftID {
			continue
		}
		switch a.Status {
		case models.AssignmentPending, models.AssignmentAccepted, models.AssignmentConfirmed:
			out := a
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) CreateAssignment(_ context.Context, assignment *models.ShiftAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.ShiftID != assignment.ShiftID {
			continue
		}
		switch a.Status {
		case models.AssignmentPending, models.AssignmentAccepted, models.AssignmentConfirmed:
			return ErrDuplicate
		}
	}
	f.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeStore) UpdateAssignment(_ context.Context, assignment *models.ShiftAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.assignments[assignment.ID]; !ok {
		return ErrNotFound
	}
	f.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeStore) DeleteAssignment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.assignments[id]; !ok {
		return ErrNotFound
	}
	delete(f.assignments, id)
	return nil
}

func (f *fakeStore) SetShiftAssignedGuard(_ context.Context, shiftID string, guardID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetShiftGuard != nil {
		return f.failSetShiftGuard
	}
	s, ok := f.shifts[shiftID]
	if !ok {
		return ErrNotFound
	}
	s.AssignedGuardID = guardID
	f.shifts[shiftID] = s
	return nil
}

var _ Store = (*fakeStore)(nil)

// testEnv bundles the engine with a fake store for tests
type testEnv struct {
	store    *fakeStore
	detector *ConflictDetector
	scorer   *EligibilityScorer
	ranker   *MatchRanker
	coord    *AssignmentCoordinator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()
	cfg := DefaultScoringConfig()
	log := zap.NewNop()

	detector := NewConflictDetector(store, cfg, log)
	detector.now = func() time.Time { return monday }
	scorer := NewEligibilityScorer(store, detector, cfg, log)
	scorer.now = func() time.Time { return monday }
	ranker := NewMatchRanker(store, scorer, cfg, log)
	ranker.now = func() time.Time { return monday }
	coord := NewAssignmentCoordinator(store, scorer, detector, notify.NopNotifier{}, cfg, log)
	coord.now = func() time.Time { return monday }

	return &testEnv{store: store, detector: detector, scorer: scorer, ranker: ranker, coord: coord}
}

// baseShift builds a shift anchored to the test Monday
func baseShift(id string, startOffset, length time.Duration) models.Shift {
	start := monday.Add(startOffset)
	return models.Shift{
		ID:       id,
		Title:    "Shift " + id,
		Start:    start,
		End:      start.Add(length),
		Priority: 2,
		Location: models.Location{
			Coordinates: models.Coordinates{Lat: 40.0, Lng: -75.0},
			City:        "Philadelphia",
		},
	}
}

// baseGuard builds an approved, schedulable guard based near the test site
func baseGuard(id string) models.GuardProfile {
	return models.GuardProfile{
		ID:               id,
		Name:             "Guard " + id,
		ProfileStatus:    "approved",
		EmploymentStatus: "schedulable",
		Location:         models.Coordinates{Lat: 40.0, Lng: -75.0},
	}
}

func activeCert(certType string) models.Certification {
	expires := monday.AddDate(1, 0, 0)
	return models.Certification{Type: certType, Status: models.CertActive, ExpiresAt: &expires}
}

func acceptedAssignment(id, shiftID, guardID string) models.ShiftAssignment {
	return models.ShiftAssignment{
		ID:         id,
		ShiftID:    shiftID,
		GuardID:    guardID,
		Status:     models.AssignmentAccepted,
		AssignedBy: "mgr-1",
		AssignedAt: monday.Add(-48 * time.Hour),
	}
}

func conflictsOfType(check models.ConflictCheck, t models.ConflictType) []models.AssignmentConflict {
	var out []models.AssignmentConflict
	for _, c := range check.Conflicts {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

var errStoreDown = errors.New("store down")

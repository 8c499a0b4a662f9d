package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dmarsh/guardops-api-go/pkg/models"
	"github.com/dmarsh/guardops-api-go/pkg/scheduling"
)

// ShiftRecord represents the shifts table
type ShiftRecord struct {
	ID              string `gorm:"primaryKey"`
	Title           string
	StartTime       time.Time `gorm:"index"`
	EndTime         time.Time `gorm:"index"`
	RequiredCerts   []string  `gorm:"serializer:json"`
	Priority        int
	Lat             float64
	Lng             float64
	Address         string
	City            string
	State           string
	SiteType        string
	ClientName      string
	SiteName        string
	AssignedGuardID *string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GuardRecord represents the guard_profiles table
type GuardRecord struct {
	ID                  string `gorm:"primaryKey"`
	Name                string
	ProfileStatus       string `gorm:"index"`
	EmploymentStatus    string `gorm:"index"`
	Lat                 float64
	Lng                 float64
	OnTimeRate          *float64
	CompletionRate      *float64
	ClientRating        *float64
	IncidentRate        *float64
	PreferredShiftTypes []string `gorm:"serializer:json"`
	PreferredLocations  []string `gorm:"serializer:json"`
	PreferredStartHour  *int
	PreferredEndHour    *int
	PreferredShiftHours *float64
	WorksWeekends       *bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (GuardRecord) TableName() string { return "guard_profiles" }

// CertificationRecord represents the guard_certifications table
type CertificationRecord struct {
	ID        uint   `gorm:"primaryKey"`
	GuardID   string `gorm:"index;not null"`
	CertType  string `gorm:"not null"`
	Status    string `gorm:"not null"`
	ExpiresAt *time.Time
}

func (CertificationRecord) TableName() string { return "guard_certifications" }

// AvailabilityRecord represents the guard_availability table
type AvailabilityRecord struct {
	ID         uint   `gorm:"primaryKey"`
	GuardID    string `gorm:"index;not null"`
	StartTime  time.Time
	EndTime    time.Time
	WindowType string `gorm:"not null"`
}

func (AvailabilityRecord) TableName() string { return "guard_availability" }

// AssignmentRecord represents the shift_assignments table. The partial unique
// index closes the one-active-assignment-per-shift race at the database.
type AssignmentRecord struct {
	ID                 string `gorm:"primaryKey"`
	ShiftID            string `gorm:"index;uniqueIndex:idx_active_shift_assignment,where:status <> 'cancelled' AND status <> 'declined' AND status <> 'expired';not null"`
	GuardID            string `gorm:"index;not null"`
	Status             string `gorm:"index;not null"`
	AssignedBy         string
	AssignedAt         time.Time
	Response           string
	RespondedAt        *time.Time
	ResponseNotes      string
	EligibilityScore   float64
	ConflictOverridden bool
	OverrideReason     string
	OverrideBy         string
	OverrideAt         *time.Time
	ManagerNotes       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (AssignmentRecord) TableName() string { return "shift_assignments" }

// GormStore implements scheduling.Store on top of gorm. It is the single
// deserialization boundary between the persistence schema and the domain
// model: one mapping function per entity, domain types never carry gorm tags.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm handle
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetShift(ctx context.Context, id string) (*models.Shift, error) {
	var record ShiftRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	shift := shiftFromRecord(record)
	return &shift, nil
}

func (s *GormStore) GetGuard(ctx context.Context, id string) (*models.GuardProfile, error) {
	var record GuardRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}

	var certs []CertificationRecord
	if err := s.db.WithContext(ctx).Where("guard_id = ?", id).Find(&certs).Error; err != nil {
		return nil, translate(err)
	}
	var windows []AvailabilityRecord
	if err := s.db.WithContext(ctx).Where("guard_id = ?", id).Order("start_time").Find(&windows).Error; err != nil {
		return nil, translate(err)
	}

	guard := guardFromRecord(record, certs, windows)
	return &guard, nil
}

func (s *GormStore) ListSchedulableGuards(ctx context.Context) ([]models.GuardProfile, error) {
	var records []GuardRecord
	err := s.db.WithContext(ctx).
		Where("profile_status = ? AND employment_status = ?", "approved", "schedulable").
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, translate(err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	var certs []CertificationRecord
	if err := s.db.WithContext(ctx).Where("guard_id IN ?", ids).Find(&certs).Error; err != nil {
		return nil, translate(err)
	}
	var windows []AvailabilityRecord
	if err := s.db.WithContext(ctx).Where("guard_id IN ?", ids).Order("start_time").Find(&windows).Error; err != nil {
		return nil, translate(err)
	}

	certsByGuard := make(map[string][]CertificationRecord)
	for _, c := range certs {
		certsByGuard[c.GuardID] = append(certsByGuard[c.GuardID], c)
	}
	windowsByGuard := make(map[string][]AvailabilityRecord)
	for _, w := range windows {
		windowsByGuard[w.GuardID] = append(windowsByGuard[w.GuardID], w)
	}

	guards := make([]models.GuardProfile, len(records))
	for i, r := range records {
		guards[i] = guardFromRecord(r, certsByGuard[r.ID], windowsByGuard[r.ID])
	}
	return guards, nil
}

func (s *GormStore) OverlappingAssignments(ctx context.Context, guardID string, start, end time.Time, statuses []models.AssignmentStatus) ([]scheduling.OverlappingAssignment, error) {
	var assignments []AssignmentRecord
	err := s.db.WithContext(ctx).
		Where("guard_id = ? AND status IN ?", guardID, statusStrings(statuses)).
		Find(&assignments).Error
	if err != nil {
		return nil, translate(err)
	}
	if len(assignments) == 0 {
		return nil, nil
	}

	shiftIDs := make([]string, len(assignments))
	for i, a := range assignments {
		shiftIDs[i] = a.ShiftID
	}

	// Half-open interval intersection on the shift time range
	var shifts []ShiftRecord
	err = s.db.WithContext(ctx).
		Where("id IN ? AND start_time < ? AND end_time > ?", shiftIDs, end, start).
		Find(&shifts).Error
	if err != nil {
		return nil, translate(err)
	}

	shiftByID := make(map[string]ShiftRecord, len(shifts))
	for _, sh := range shifts {
		shiftByID[sh.ID] = sh
	}

	var result []scheduling.OverlappingAssignment
	for _, a := range assignments {
		sh, ok := shiftByID[a.ShiftID]
		if !ok {
			continue
		}
		result = append(result, scheduling.OverlappingAssignment{
			Assignment: assignmentFromRecord(a),
			Shift:      shiftFromRecord(sh),
		})
	}
	return result, nil
}

func (s *GormStore) GetAssignment(ctx context.Context, id string) (*models.ShiftAssignment, error) {
	var record AssignmentRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	assignment := assignmentFromRecord(record)
	return &assignment, nil
}

func (s *GormStore) ActiveAssignmentForShift(ctx context.Context, shiftID string) (*models.ShiftAssignment, error) {
	var record AssignmentRecord
	err := s.db.WithContext(ctx).
		Where("shift_id = ? AND status IN ?", shiftID, []string{"pending", "accepted", "confirmed"}).
		First(&record).Error
	if err != nil {
		return nil, translate(err)
	}
	assignment := assignmentFromRecord(record)
	return &assignment, nil
}

func (s *GormStore) CreateAssignment(ctx context.Context, assignment *models.ShiftAssignment) error {
	record := assignmentToRecord(*assignment)
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *GormStore) UpdateAssignment(ctx context.Context, assignment *models.ShiftAssignment) error {
	record := assignmentToRecord(*assignment)
	result := s.db.WithContext(ctx).Model(&AssignmentRecord{}).Where("id = ?", record.ID).
		Select("Status", "Response", "RespondedAt", "ResponseNotes", "ManagerNotes",
			"OverrideReason", "OverrideBy", "OverrideAt", "ConflictOverridden").
		Updates(&record)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return scheduling.ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteAssignment(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&AssignmentRecord{}, "id = ?", id).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *GormStore) SetShiftAssignedGuard(ctx context.Context, shiftID string, guardID *string) error {
	result := s.db.WithContext(ctx).Model(&ShiftRecord{}).Where("id = ?", shiftID).
		Update("assigned_guard_id", guardID)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return scheduling.ErrNotFound
	}
	return nil
}

// translate maps gorm errors onto the scheduling sentinels
func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return scheduling.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return scheduling.ErrDuplicate
	default:
		return err
	}
}

func statusStrings(statuses []models.AssignmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func shiftFromRecord(r ShiftRecord) models.Shift {
	return models.Shift{
		ID:            r.ID,
		Title:         r.Title,
		Start:         r.StartTime,
		End:           r.EndTime,
		RequiredCerts: r.RequiredCerts,
		Priority:      r.Priority,
		Location: models.Location{
			Coordinates: models.Coordinates{Lat: r.Lat, Lng: r.Lng},
			Address:     r.Address,
			City:        r.City,
			State:       r.State,
		},
		SiteType:        r.SiteType,
		ClientName:      r.ClientName,
		SiteName:        r.SiteName,
		AssignedGuardID: r.AssignedGuardID,
		Status:          r.Status,
	}
}

func guardFromRecord(r GuardRecord, certs []CertificationRecord, windows []AvailabilityRecord) models.GuardProfile {
	guard := models.GuardProfile{
		ID:               r.ID,
		Name:             r.Name,
		ProfileStatus:    r.ProfileStatus,
		EmploymentStatus: r.EmploymentStatus,
		Location:         models.Coordinates{Lat: r.Lat, Lng: r.Lng},
		Metrics: models.PerformanceMetrics{
			OnTimeRate:     r.OnTimeRate,
			CompletionRate: r.CompletionRate,
			ClientRating:   r.ClientRating,
			IncidentRate:   r.IncidentRate,
		},
		Preferences: models.SchedulingPreferences{
			PreferredShiftTypes: r.PreferredShiftTypes,
			PreferredLocations:  r.PreferredLocations,
			PreferredStartHour:  r.PreferredStartHour,
			PreferredEndHour:    r.PreferredEndHour,
			PreferredShiftHours: r.PreferredShiftHours,
			WorksWeekends:       r.WorksWeekends,
		},
	}
	for _, c := range certs {
		guard.Certifications = append(guard.Certifications, models.Certification{
			Type:      c.CertType,
			Status:    models.CertificationStatus(c.Status),
			ExpiresAt: c.ExpiresAt,
		})
	}
	for _, w := range windows {
		guard.Availability = append(guard.Availability, models.AvailabilityWindow{
			Start: w.StartTime,
			End:   w.EndTime,
			Type:  models.AvailabilityType(w.WindowType),
		})
	}
	return guard
}

func assignmentFromRecord(r AssignmentRecord) models.ShiftAssignment {
	return models.ShiftAssignment{
		ID:                 r.ID,
		ShiftID:            r.ShiftID,
		GuardID:            r.GuardID,
		Status:             models.AssignmentStatus(r.Status),
		AssignedBy:         r.AssignedBy,
		AssignedAt:         r.AssignedAt,
		Response:           models.GuardResponseType(r.Response),
		RespondedAt:        r.RespondedAt,
		ResponseNotes:      r.ResponseNotes,
		EligibilityScore:   r.EligibilityScore,
		ConflictOverridden: r.ConflictOverridden,
		OverrideReason:     r.OverrideReason,
		OverrideBy:         r.OverrideBy,
		OverrideAt:         r.OverrideAt,
		ManagerNotes:       r.ManagerNotes,
	}
}

func assignmentToRecord(a models.ShiftAssignment) AssignmentRecord {
	return AssignmentRecord{
		ID:                 a.ID,
		ShiftID:            a.ShiftID,
		GuardID:            a.GuardID,
		Status:             string(a.Status),
		AssignedBy:         a.AssignedBy,
		AssignedAt:         a.AssignedAt,
		Response:           string(a.Response),
		RespondedAt:        a.RespondedAt,
		ResponseNotes:      a.ResponseNotes,
		EligibilityScore:   a.EligibilityScore,
		ConflictOverridden: a.ConflictOverridden,
		OverrideReason:     a.OverrideReason,
		OverrideBy:         a.OverrideBy,
		OverrideAt:         a.OverrideAt,
		ManagerNotes:       a.ManagerNotes,
	}
}

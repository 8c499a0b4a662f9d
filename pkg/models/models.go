package models

import "time"

// Coordinates is a lat/lng pair. Distances between coordinates are computed
// as plain Euclidean distance in degree units, not geodesic distance.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location describes where a shift takes place
type Location struct {
	Coordinates
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
}

// Shift represents a client shift that needs a guard.
// The time range is half-open: [Start, End).
type Shift struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	RequiredCerts   []string  `json:"required_certifications"`
	Priority        int       `json:"priority"` // 1 (low) to 5 (urgent)
	Location        Location  `json:"location"`
	SiteType        string    `json:"site_type,omitempty"`
	ClientName      string    `json:"client_name,omitempty"`
	SiteName        string    `json:"site_name,omitempty"`
	AssignedGuardID *string   `json:"assigned_guard_id,omitempty"`
	Status          string    `json:"status,omitempty"`
}

// DurationHours returns the shift length in hours
func (s Shift) DurationHours() float64 {
	return s.End.Sub(s.Start).Hours()
}

// IsWeekend reports whether the shift starts on a Saturday or Sunday
func (s Shift) IsWeekend() bool {
	wd := s.Start.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// CertificationStatus is the lifecycle state of a guard certification
type CertificationStatus string

const (
	CertActive  CertificationStatus = "active"
	CertExpired CertificationStatus = "expired"
	CertPending CertificationStatus = "pending"
)

// Certification is a single credential held by a guard
type Certification struct {
	Type      string              `json:"type"`
	Status    CertificationStatus `json:"status"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
}

// ActiveAt reports whether the certification is usable at the given instant
func (c Certification) ActiveAt(t time.Time) bool {
	if c.Status != CertActive {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(t)
}

// PerformanceMetrics holds a guard's track record. Nil fields mean no history
// has been recorded yet; scoring falls back to moderate defaults.
type PerformanceMetrics struct {
	OnTimeRate     *float64 `json:"on_time_rate,omitempty"`    // 0-1
	CompletionRate *float64 `json:"completion_rate,omitempty"` // 0-1
	ClientRating   *float64 `json:"client_rating,omitempty"`   // 0-5
	IncidentRate   *float64 `json:"incident_rate,omitempty"`   // 0-1
}

// SchedulingPreferences captures what a guard would rather work
type SchedulingPreferences struct {
	PreferredShiftTypes []string `json:"preferred_shift_types,omitempty"`
	PreferredLocations  []string `json:"preferred_locations,omitempty"`
	PreferredStartHour  *int     `json:"preferred_start_hour,omitempty"` // 0-23
	PreferredEndHour    *int     `json:"preferred_end_hour,omitempty"`   // 0-23
	PreferredShiftHours *float64 `json:"preferred_shift_hours,omitempty"`
	WorksWeekends       *bool    `json:"works_weekends,omitempty"`
}

// AvailabilityType tags a declared availability window
type AvailabilityType string

const (
	AvailabilityAvailable     AvailabilityType = "available"
	AvailabilityPreferred     AvailabilityType = "preferred"
	AvailabilityUnavailable   AvailabilityType = "unavailable"
	AvailabilityEmergencyOnly AvailabilityType = "emergency_only"
)

// AvailabilityWindow is a declared time window with a tag. Positive windows
// (available/preferred/emergency_only) refine when a guard can work;
// "unavailable" windows always subtract.
type AvailabilityWindow struct {
	Start time.Time        `json:"start"`
	End   time.Time        `json:"end"`
	Type  AvailabilityType `json:"type"`
}

// GuardProfile is the scheduling view of a guard. It is owned by profile
// management and read-only from this service's perspective.
type GuardProfile struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	ProfileStatus    string                `json:"profile_status"`    // must be "approved"
	EmploymentStatus string                `json:"employment_status"` // must be "schedulable"
	Certifications   []Certification       `json:"certifications,omitempty"`
	Location         Coordinates           `json:"location"`
	Metrics          PerformanceMetrics    `json:"performance_metrics"`
	Preferences      SchedulingPreferences `json:"preferences"`
	Availability     []AvailabilityWindow  `json:"availability,omitempty"`
}

// Assignable reports whether the guard may be assigned work at all
func (g GuardProfile) Assignable() bool {
	return g.ProfileStatus == "approved" && g.EmploymentStatus == "schedulable"
}

// ConflictType classifies a scheduling conflict
type ConflictType string

const (
	ConflictTimeOverlap  ConflictType = "time_overlap"
	ConflictAvailability ConflictType = "availability_conflict"
	ConflictCertMissing  ConflictType = "certification_missing"
	ConflictLocation     ConflictType = "location_conflict"
)

// ConflictSeverity orders conflicts: critical > error > warning
type ConflictSeverity string

const (
	SeverityCritical ConflictSeverity = "critical"
	SeverityError    ConflictSeverity = "error"
	SeverityWarning  ConflictSeverity = "warning"
)

// AssignmentConflict is a single detected scheduling conflict
type AssignmentConflict struct {
	Type             ConflictType     `json:"type"`
	Severity         ConflictSeverity `json:"severity"`
	Message          string           `json:"message"`
	CanOverride      bool             `json:"can_override"`
	RequiresOverride bool             `json:"requires_override"`
	Details          map[string]any   `json:"details,omitempty"`
}

// ConflictCheck is the aggregate outcome of conflict detection for one
// guard/shift pair
type ConflictCheck struct {
	Conflicts             []AssignmentConflict `json:"conflicts"`
	CanProceed            bool                 `json:"can_proceed"`
	RequiresOverride      bool                 `json:"requires_override"`
	ResolutionSuggestions []string             `json:"resolution_suggestions,omitempty"`
}

// HasSeverity reports whether any conflict carries the given severity
func (c ConflictCheck) HasSeverity(sev ConflictSeverity) bool {
	for _, conflict := range c.Conflicts {
		if conflict.Severity == sev {
			return true
		}
	}
	return false
}

// CertificationMatch details how a guard's credentials line up with a shift
type CertificationMatch struct {
	Matched      []string `json:"matched"`
	Missing      []string `json:"missing,omitempty"`
	ExpiringSoon []string `json:"expiring_soon,omitempty"`
	Score        float64  `json:"score"`
}

// AvailabilityMatch details how a guard's windows cover a shift
type AvailabilityMatch struct {
	CoverageRatio    float64 `json:"coverage_ratio"`
	EmergencyOnly    bool    `json:"emergency_only"`
	PreferredOverlap bool    `json:"preferred_overlap"`
}

// GuardEligibilityResult is the verdict on whether a guard may take a shift.
// Eligible is false whenever a critical conflict exists or the score is at or
// below 0.3, regardless of other factors.
type GuardEligibilityResult struct {
	GuardID  string `json:"guard_id"`
	Eligible bool   `json:"eligible"`
	// Disqualified marks a hard failure (missing profile, unassignable
	// status, missing critical certification, critical conflict). Conflict
	// overrides never apply to disqualified guards.
	Disqualified       bool                 `json:"disqualified"`
	EligibilityScore   float64              `json:"eligibility_score"` // 0-1, rounded to 2 decimals
	Reasons            []string             `json:"reasons"`
	Conflicts          []AssignmentConflict `json:"conflicts"`
	CertificationMatch *CertificationMatch  `json:"certification_match,omitempty"`
	AvailabilityMatch  *AvailabilityMatch   `json:"availability_match,omitempty"`
	ProximityScore     *float64             `json:"proximity_score,omitempty"`
	PerformanceScore   *float64             `json:"performance_score,omitempty"`
}

// MatchScores are the five weighted sub-scores behind a match score
type MatchScores struct {
	Certification float64 `json:"certification"`
	Availability  float64 `json:"availability"`
	Proximity     float64 `json:"proximity"`
	Performance   float64 `json:"performance"`
	Preference    float64 `json:"preference"`
}

// MatchConfidence tiers how much to trust a match recommendation
type MatchConfidence string

const (
	ConfidenceHigh   MatchConfidence = "high"
	ConfidenceMedium MatchConfidence = "medium"
	ConfidenceLow    MatchConfidence = "low"
)

// RecommendedAction tells the dispatcher what to do with a match
type RecommendedAction string

const (
	ActionAutoAssign     RecommendedAction = "auto_assign"
	ActionManagerReview  RecommendedAction = "manager_review"
	ActionNotRecommended RecommendedAction = "not_recommended"
)

// GuardMatchResult is one ranked entry from the matching engine
type GuardMatchResult struct {
	GuardID           string                 `json:"guard_id"`
	MatchScore        float64                `json:"match_score"` // 0-1.2
	Ranking           int                    `json:"ranking"`     // 1-based, contiguous
	Eligibility       GuardEligibilityResult `json:"eligibility"`
	Scores            MatchScores            `json:"scores"`
	Strengths         []string               `json:"strengths"`
	Concerns          []string               `json:"concerns"`
	Recommendations   []string               `json:"recommendations"`
	Confidence        MatchConfidence        `json:"confidence"`
	RecommendedAction RecommendedAction      `json:"recommended_action"`
}

// AssignmentStatus is the lifecycle state of a shift assignment
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentDeclined  AssignmentStatus = "declined"
	AssignmentExpired   AssignmentStatus = "expired"
	AssignmentCancelled AssignmentStatus = "cancelled"
	// AssignmentConfirmed is set downstream after client sign-off; this core
	// reads it (confirmed assignments are never overridable) but never writes it.
	AssignmentConfirmed AssignmentStatus = "confirmed"
)

// GuardResponseType is how a guard answered an assignment offer
type GuardResponseType string

const (
	ResponseAccept      GuardResponseType = "accept"
	ResponseDecline     GuardResponseType = "decline"
	ResponseConditional GuardResponseType = "conditional"
)

// ShiftAssignment pairs a guard with a shift. Rows are never hard-deleted;
// cancellation flips the status and keeps the record.
type ShiftAssignment struct {
	ID                 string            `json:"id"`
	ShiftID            string            `json:"shift_id"`
	GuardID            string            `json:"guard_id"`
	Status             AssignmentStatus  `json:"status"`
	AssignedBy         string            `json:"assigned_by"`
	AssignedAt         time.Time         `json:"assigned_at"`
	Response           GuardResponseType `json:"response,omitempty"`
	RespondedAt        *time.Time        `json:"responded_at,omitempty"`
	ResponseNotes      string            `json:"response_notes,omitempty"`
	EligibilityScore   float64           `json:"eligibility_score"`
	ConflictOverridden bool              `json:"conflict_overridden"`
	OverrideReason     string            `json:"override_reason,omitempty"`
	OverrideBy         string            `json:"override_by,omitempty"`
	OverrideAt         *time.Time        `json:"override_at,omitempty"`
	ManagerNotes       string            `json:"manager_notes,omitempty"`
}

// BatchStatus summarizes a batch assignment run
type BatchStatus string

const (
	BatchCompleted          BatchStatus = "completed"
	BatchPartiallyCompleted BatchStatus = "partially_completed"
	BatchFailed             BatchStatus = "failed"
)

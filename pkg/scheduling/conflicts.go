package scheduling

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/dmarsh/guardops-api-go/pkg/models"
)

// ConflictDetector finds every scheduling conflict between a guard and a
// candidate shift and classifies severity. Sub-checks are independent: a
// failed sub-check contributes zero conflicts from its category and is logged,
// it never aborts the whole detection.
type ConflictDetector struct {
	store Store
	cfg   ScoringConfig
	log   *zap.Logger
	now   func() time.Time
}

// NewConflictDetector creates a detector backed by the given store
func NewConflictDetector(store Store, cfg ScoringConfig, log *zap.Logger) *ConflictDetector {
	return &ConflictDetector{
		store: store,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// DetectConflicts runs every sub-check for the guard against the shift.
// Conflicts are additive across categories; the aggregate decision is
//
//	canProceed       = no critical AND (no error OR overrideRequested)
//	requiresOverride = any error AND at least one overridable conflict
func (d *ConflictDetector) DetectConflicts(ctx context.Context, guardID string, shift models.Shift, overrideRequested bool) (models.ConflictCheck, error) {
	var conflicts []models.AssignmentConflict

	guard, err := d.store.GetGuard(ctx, guardID)
	if err != nil {
		// Guard-dependent checks are skipped; overlap and workload checks
		// only need the guard id.
		d.log.Warn("conflict detection: guard profile unavailable",
			zap.String("guard_id", guardID), zap.Error(err))
		guard = nil
	}

	checks := []struct {
		name string
		run  func(context.Context) ([]models.AssignmentConflict, error)
	}{
		{"time_overlap", func(ctx context.Context) ([]models.AssignmentConflict, error) {
			return d.checkTimeOverlap(ctx, guardID, shift)
		}},
		{"availability", func(ctx context.Context) ([]models.AssignmentConflict, error) {
			return d.checkAvailability(guard, shift), nil
		}},
		{"certification", func(ctx context.Context) ([]models.AssignmentConflict, error) {
			return d.checkCertifications(guard, shift), nil
		}},
		{"location", func(ctx context.Context) ([]models.AssignmentConflict, error) {
			return d.checkLocation(ctx, guard, guardID, shift)
		}},
		{"workload", func(ctx context.Context) ([]models.AssignmentConflict, error) {
			return d.checkWorkload(ctx, guardID, shift)
		}},
	}

	for _, check := range checks {
		found, err := check.run(ctx)
		if err != nil {
			d.log.Warn("conflict sub-check failed",
				zap.String("check", check.name),
				zap.String("guard_id", guardID),
				zap.String("shift_id", shift.ID),
				zap.Error(err))
			continue
		}
		conflicts = append(conflicts, found...)
	}

	result := models.ConflictCheck{Conflicts: conflicts}

	hasCritical := false
	hasError := false
	hasOverridable := false
	for _, c := range conflicts {
		switch c.Severity {
		case models.SeverityCritical:
			hasCritical = true
		case models.SeverityError:
			hasError = true
		}
		if c.CanOverride {
			hasOverridable = true
		}
	}

	result.CanProceed = !hasCritical && (!hasError || overrideRequested)
	result.RequiresOverride = hasError && hasOverridable
	result.ResolutionSuggestions = buildResolutionSuggestions(conflicts)

	return result, nil
}

// checkTimeOverlap finds the guard's accepted/confirmed assignments whose
// shift intersects the candidate range. Severity scales with how much of the
// shorter shift is covered by the overlap.
func (d *ConflictDetector) checkTimeOverlap(ctx context.Context, guardID string, shift models.Shift) ([]models.AssignmentConflict, error) {
	existing, err := d.store.OverlappingAssignments(ctx, guardID, shift.Start, shift.End, activeStatuses)
	if err != nil {
		return nil, err
	}

	var conflicts []models.AssignmentConflict
	for _, ex := range existing {
		overlap := overlapDuration(shift.Start, shift.End, ex.Shift.Start, ex.Shift.End)
		if overlap <= 0 {
			continue
		}
		shorter := math.Min(shift.End.Sub(shift.Start).Hours(), ex.Shift.End.Sub(ex.Shift.Start).Hours())
		fraction := overlap.Hours() / shorter

		severity := models.SeverityWarning
		switch {
		case fraction > d.cfg.OverlapCriticalFraction:
			severity = models.SeverityCritical
		case fraction > d.cfg.OverlapErrorFraction:
			severity = models.SeverityError
		}

		canOverride := ex.Assignment.Status != models.AssignmentConfirmed &&
			fraction < d.cfg.OverlapCriticalFraction

		conflicts = append(conflicts, models.AssignmentConflict{
			Type:             models.ConflictTimeOverlap,
			Severity:         severity,
			Message:          fmt.Sprintf("Overlaps existing shift %q by %.0f minutes", ex.Shift.Title, overlap.Minutes()),
			CanOverride:      canOverride,
			RequiresOverride: severity == models.SeverityError,
			Details: map[string]any{
				"existing_shift_id": ex.Shift.ID,
				"existing_status":   ex.Assignment.Status,
				"overlap_minutes":   math.Round(overlap.Minutes()),
				"overlap_fraction":  round2(fraction),
			},
		})
	}
	return conflicts, nil
}

// checkAvailability enforces declared unavailable windows (hard conflict) and
// emergency-only windows (soft, only when the shift is not urgent).
func (d *ConflictDetector) checkAvailability(guard *models.GuardProfile, shift models.Shift) []models.AssignmentConflict {
	if guard == nil {
		return nil
	}

	var conflicts []models.AssignmentConflict
	for _, window := range guard.Availability {
		if overlapDuration(shift.Start, shift.End, window.Start, window.End) <= 0 {
			continue
		}

		switch window.Type {
		case models.AvailabilityUnavailable:
			conflicts = append(conflicts, models.AssignmentConflict{
				Type:             models.ConflictAvailability,
				Severity:         models.SeverityError,
				Message:          "Guard is marked unavailable during this shift",
				CanOverride:      true,
				RequiresOverride: true,
				Details: map[string]any{
					"window_start": window.Start,
					"window_end":   window.End,
				},
			})
		case models.AvailabilityEmergencyOnly:
			if shift.Priority < d.cfg.EmergencyPriority {
				conflicts = append(conflicts, models.AssignmentConflict{
					Type:        models.ConflictAvailability,
					Severity:    models.SeverityWarning,
					Message:     "Guard is available for emergencies only during this shift",
					CanOverride: true,
					Details: map[string]any{
						"shift_priority": shift.Priority,
					},
				})
			}
		}
	}
	return conflicts
}

// checkCertifications compares the shift's required certifications against the
// guard's currently active, non-expired credentials. Missing critical
// certifications can never be overridden.
func (d *ConflictDetector) checkCertifications(guard *models.GuardProfile, shift models.Shift) []models.AssignmentConflict {
	if guard == nil {
		return nil
	}
	now := d.now()

	active := make(map[string]models.Certification)
	for _, cert := range guard.Certifications {
		if cert.ActiveAt(now) {
			active[cert.Type] = cert
		}
	}

	var conflicts []models.AssignmentConflict
	for _, required := range shift.RequiredCerts {
		cert, ok := active[required]
		if !ok {
			if d.cfg.IsCriticalCertification(required) {
				conflicts = append(conflicts, models.AssignmentConflict{
					Type:        models.ConflictCertMissing,
					Severity:    models.SeverityCritical,
					Message:     fmt.Sprintf("Missing required certification %q (cannot be overridden)", required),
					CanOverride: false,
					Details:     map[string]any{"certification": required},
				})
			} else {
				conflicts = append(conflicts, models.AssignmentConflict{
					Type:             models.ConflictCertMissing,
					Severity:         models.SeverityError,
					Message:          fmt.Sprintf("Missing required certification %q", required),
					CanOverride:      true,
					RequiresOverride: true,
					Details:          map[string]any{"certification": required},
				})
			}
			continue
		}

		if cert.ExpiresAt != nil && cert.ExpiresAt.Before(now.Add(d.cfg.CertExpiryWarning)) {
			conflicts = append(conflicts, models.AssignmentConflict{
				Type:        models.ConflictCertMissing,
				Severity:    models.SeverityWarning,
				Message:     fmt.Sprintf("Certification %q expires on %s", required, cert.ExpiresAt.Format("2006-01-02")),
				CanOverride: true,
				Details: map[string]any{
					"certification": required,
					"expires_at":    cert.ExpiresAt,
				},
			})
		}
	}
	return conflicts
}

// checkLocation flags far-away shifts and tight travel gaps between the
// candidate and the guard's adjacent assignments. Distances are Euclidean in
// degree units by design.
func (d *ConflictDetector) checkLocation(ctx context.Context, guard *models.GuardProfile, guardID string, shift models.Shift) ([]models.AssignmentConflict, error) {
	var conflicts []models.AssignmentConflict

	if guard != nil {
		dist := euclideanDistance(guard.Location, shift.Location.Coordinates)
		switch {
		case dist > d.cfg.VeryFarDistance:
			conflicts = append(conflicts, models.AssignmentConflict{
				Type:        models.ConflictLocation,
				Severity:    models.SeverityWarning,
				Message:     "Shift location is very far from the guard's base location",
				CanOverride: true,
				Details:     map[string]any{"distance": round2(dist)},
			})
		case dist > d.cfg.FarDistance:
			conflicts = append(conflicts, models.AssignmentConflict{
				Type:        models.ConflictLocation,
				Severity:    models.SeverityWarning,
				Message:     "Shift location is far from the guard's base location",
				CanOverride: true,
				Details:     map[string]any{"distance": round2(dist)},
			})
		}
	}

	// Adjacent accepted/confirmed shifts within the travel buffer
	adjacent, err := d.store.OverlappingAssignments(ctx, guardID,
		shift.Start.Add(-d.cfg.TravelBuffer), shift.End.Add(d.cfg.TravelBuffer), activeStatuses)
	if err != nil {
		return conflicts, err
	}

	for _, ex := range adjacent {
		var gap time.Duration
		switch {
		case !ex.Shift.End.After(shift.Start):
			gap = shift.Start.Sub(ex.Shift.End)
		case !shift.End.After(ex.Shift.Start):
			gap = ex.Shift.Start.Sub(shift.End)
		default:
			continue // overlapping, already reported by the overlap check
		}

		travelDist := euclideanDistance(ex.Shift.Location.Coordinates, shift.Location.Coordinates)
		travel := time.Duration(travelDist*d.cfg.TravelMinutesPerUnit) * time.Minute
		if travel < d.cfg.MinTravelTime {
			travel = d.cfg.MinTravelTime
		}

		if travel > gap {
			conflicts = append(conflicts, models.AssignmentConflict{
				Type:        models.ConflictLocation,
				Severity:    models.SeverityWarning,
				Message:     fmt.Sprintf("Only %.0f minutes between shifts; estimated travel is %.0f minutes", gap.Minutes(), travel.Minutes()),
				CanOverride: true,
				Details: map[string]any{
					"adjacent_shift_id": ex.Shift.ID,
					"gap_minutes":       math.Round(gap.Minutes()),
					"travel_minutes":    math.Round(travel.Minutes()),
				},
			})
		}
	}
	return conflicts, nil
}

// checkWorkload enforces daily and weekly hour limits over the guard's
// accepted/confirmed assignments plus the candidate shift. Workload breaches
// are reported as time_overlap conflicts.
func (d *ConflictDetector) checkWorkload(ctx context.Context, guardID string, shift models.Shift) ([]models.AssignmentConflict, error) {
	var conflicts []models.AssignmentConflict
	shiftHours := shift.DurationHours()

	dayStart := time.Date(shift.Start.Year(), shift.Start.Month(), shift.Start.Day(), 0, 0, 0, 0, shift.Start.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	dayHours, err := d.scheduledHours(ctx, guardID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	totalDay := dayHours + shiftHours
	switch {
	case totalDay > d.cfg.DailyHoursError:
		conflicts = append(conflicts, workloadConflict(models.SeverityError,
			fmt.Sprintf("Daily workload would reach %.1f hours (limit %.0f)", totalDay, d.cfg.DailyHoursError),
			"daily_hours", totalDay))
	case totalDay > d.cfg.DailyHoursWarning:
		conflicts = append(conflicts, workloadConflict(models.SeverityWarning,
			fmt.Sprintf("Daily workload would reach %.1f hours", totalDay),
			"daily_hours", totalDay))
	}

	// Sunday-aligned week containing the shift
	weekStart := dayStart.AddDate(0, 0, -int(dayStart.Weekday()))
	weekEnd := weekStart.AddDate(0, 0, 7)
	weekHours, err := d.scheduledHours(ctx, guardID, weekStart, weekEnd)
	if err != nil {
		return conflicts, err
	}

	totalWeek := weekHours + shiftHours
	switch {
	case totalWeek > d.cfg.WeeklyHoursError:
		conflicts = append(conflicts, workloadConflict(models.SeverityError,
			fmt.Sprintf("Weekly workload would reach %.1f hours (limit %.0f)", totalWeek, d.cfg.WeeklyHoursError),
			"weekly_hours", totalWeek))
	case totalWeek > d.cfg.WeeklyHoursWarning:
		conflicts = append(conflicts, workloadConflict(models.SeverityWarning,
			fmt.Sprintf("Weekly workload would reach %.1f hours", totalWeek),
			"weekly_hours", totalWeek))
	}

	return conflicts, nil
}

// scheduledHours sums the full durations of the guard's accepted/confirmed
// shifts that touch [start, end)
func (d *ConflictDetector) scheduledHours(ctx context.Context, guardID string, start, end time.Time) (float64, error) {
	existing, err := d.store.OverlappingAssignments(ctx, guardID, start, end, activeStatuses)
	if err != nil {
		return 0, err
	}
	var hours float64
	for _, ex := range existing {
		hours += ex.Shift.DurationHours()
	}
	return hours, nil
}

func workloadConflict(severity models.ConflictSeverity, message, detailKey string, hours float64) models.AssignmentConflict {
	return models.AssignmentConflict{
		Type:             models.ConflictTimeOverlap,
		Severity:         severity,
		Message:          message,
		CanOverride:      true,
		RequiresOverride: severity == models.SeverityError,
		Details:          map[string]any{detailKey: round2(hours), "category": "workload"},
	}
}

func buildResolutionSuggestions(conflicts []models.AssignmentConflict) []string {
	seen := make(map[models.ConflictType]bool)
	var suggestions []string
	for _, c := range conflicts {
		if seen[c.Type] {
			continue
		}
		seen[c.Type] = true
		switch c.Type {
		case models.ConflictTimeOverlap:
			suggestions = append(suggestions, "Reschedule the shift or pick a guard with an open calendar")
		case models.ConflictAvailability:
			suggestions = append(suggestions, "Ask the guard to update their availability or choose another guard")
		case models.ConflictCertMissing:
			suggestions = append(suggestions, "Choose a guard holding the required certifications")
		case models.ConflictLocation:
			suggestions = append(suggestions, "Prefer guards based closer to the site or widen the travel window")
		}
	}
	return suggestions
}

// overlapDuration returns the intersection of two half-open ranges; zero or
// negative means no overlap.
func overlapDuration(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	return end.Sub(start)
}

// euclideanDistance is a deliberate flat-plane approximation in degree units
func euclideanDistance(a, b models.Coordinates) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

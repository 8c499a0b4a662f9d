package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dmarsh/guardops-api-go/pkg/models"
)

// EligibilityScorer produces a bounded 0-1 eligibility score and an
// eligible/ineligible verdict for a guard against a shift. The score is a
// deterministic weighted sum: status 25%, certifications 35%, conflicts 25%,
// availability 15%, plus proximity and performance bonuses capped at 1.0.
//
// A disqualifying failure (status, critical certification, critical conflict)
// makes the guard ineligible outright but the remaining factors are still
// scored for diagnostics.
type EligibilityScorer struct {
	store    Store
	detector *ConflictDetector
	cfg      ScoringConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewEligibilityScorer creates a scorer sharing the detector's thresholds
func NewEligibilityScorer(store Store, detector *ConflictDetector, cfg ScoringConfig, log *zap.Logger) *EligibilityScorer {
	return &EligibilityScorer{
		store:    store,
		detector: detector,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// CheckEligibility scores the guard against the shift. It has no side effects;
// calling it twice with unchanged inputs yields identical results.
func (s *EligibilityScorer) CheckEligibility(ctx context.Context, guardID string, shift models.Shift) (models.GuardEligibilityResult, error) {
	result := models.GuardEligibilityResult{
		GuardID:   guardID,
		Reasons:   []string{},
		Conflicts: []models.AssignmentConflict{},
	}

	guard, err := s.store.GetGuard(ctx, guardID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			result.Disqualified = true
			result.Reasons = append(result.Reasons, "Guard profile not found")
			return result, nil
		}
		return result, storeError("load guard profile", err)
	}

	score := 0.0
	disqualified := false

	// Status check
	if guard.Assignable() {
		score += s.cfg.WeightStatus
	} else {
		disqualified = true
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("Guard is not assignable (profile %q, employment %q)", guard.ProfileStatus, guard.EmploymentStatus))
	}

	// Certification match
	certMatch := s.scoreCertifications(guard, shift)
	result.CertificationMatch = &certMatch
	if s.missingCritical(certMatch.Missing) {
		disqualified = true
		result.Reasons = append(result.Reasons, "Missing critical certification")
	} else {
		score += s.cfg.WeightCertification * certMatch.Score
		for _, missing := range certMatch.Missing {
			result.Reasons = append(result.Reasons, fmt.Sprintf("Missing certification %q", missing))
		}
	}

	// Conflict check
	check, err := s.detector.DetectConflicts(ctx, guardID, shift, false)
	if err != nil {
		return result, err
	}
	result.Conflicts = check.Conflicts
	switch {
	case check.HasSeverity(models.SeverityCritical):
		disqualified = true
		result.Reasons = append(result.Reasons, "Critical scheduling conflict")
	case len(check.Conflicts) == 0:
		score += s.cfg.WeightConflicts
	default:
		score += s.cfg.WeightConflicts * s.cfg.MinorConflictCredit
		result.Reasons = append(result.Reasons, fmt.Sprintf("%d scheduling conflict(s) found", len(check.Conflicts)))
	}

	// Availability overlap
	availMatch := s.scoreAvailability(guard, shift)
	result.AvailabilityMatch = &availMatch
	switch {
	case availMatch.EmergencyOnly:
		score += s.cfg.WeightAvailability * s.cfg.EmergencyOnlyCredit
		result.Reasons = append(result.Reasons, "Only emergency-only availability covers this shift")
	case availMatch.CoverageRatio >= s.cfg.FullCoverageRatio:
		score += s.cfg.WeightAvailability
	case availMatch.CoverageRatio >= s.cfg.PartialCoverageRatio:
		score += s.cfg.WeightAvailability * s.cfg.PartialCredit
		result.Reasons = append(result.Reasons, "Availability only partially covers this shift")
	default:
		result.Reasons = append(result.Reasons, "Availability does not cover this shift")
	}

	// Proximity bonus
	dist := euclideanDistance(guard.Location, shift.Location.Coordinates)
	proximity := 0.0
	switch {
	case dist < s.cfg.ProximityNearDistance:
		proximity = s.cfg.ProximityBonusNear
	case dist < s.cfg.ProximityCloseDistance:
		proximity = s.cfg.ProximityBonusClose
	}
	result.ProximityScore = ptr(round2(proximity))
	score += proximity

	// Performance bonus
	perf := s.PerformanceComposite(guard.Metrics)
	result.PerformanceScore = ptr(round2(perf))
	if perf > s.cfg.PerformanceBonusBar {
		score += s.cfg.PerformanceBonus
	}

	score = clamp(score, 0, 1)
	if disqualified {
		// Disqualified guards keep their diagnostic sub-scores but report
		// a zero composite so callers never rank them.
		result.Disqualified = true
		result.EligibilityScore = 0
		result.Eligible = false
		return result, nil
	}

	result.EligibilityScore = round2(score)
	result.Eligible = result.EligibilityScore > s.cfg.EligibilityThreshold &&
		!check.HasSeverity(models.SeverityCritical)
	return result, nil
}

// scoreCertifications computes the matched/missing/expiring breakdown and the
// matched-ratio credit. Full credit when every required certification is
// present and active.
func (s *EligibilityScorer) scoreCertifications(guard *models.GuardProfile, shift models.Shift) models.CertificationMatch {
	now := s.now()
	match := models.CertificationMatch{Matched: []string{}}

	if len(shift.RequiredCerts) == 0 {
		match.Score = 1
		return match
	}

	active := make(map[string]models.Certification)
	for _, cert := range guard.Certifications {
		if cert.ActiveAt(now) {
			active[cert.Type] = cert
		}
	}

	for _, required := range shift.RequiredCerts {
		cert, ok := active[required]
		if !ok {
			match.Missing = append(match.Missing, required)
			continue
		}
		match.Matched = append(match.Matched, required)
		if cert.ExpiresAt != nil && cert.ExpiresAt.Before(now.Add(s.cfg.CertExpiryWarning)) {
			match.ExpiringSoon = append(match.ExpiringSoon, required)
		}
	}

	match.Score = float64(len(match.Matched)) / float64(len(shift.RequiredCerts))
	return match
}

func (s *EligibilityScorer) missingCritical(missing []string) bool {
	for _, m := range missing {
		if s.cfg.IsCriticalCertification(m) {
			return true
		}
	}
	return false
}

// scoreAvailability measures how much of the shift is covered by the guard's
// positive windows. A guard with no positive windows at all is treated as
// fully available; declared windows refine that default.
func (s *EligibilityScorer) scoreAvailability(guard *models.GuardProfile, shift models.Shift) models.AvailabilityMatch {
	shiftLen := shift.End.Sub(shift.Start)
	if shiftLen <= 0 {
		return models.AvailabilityMatch{}
	}

	var regular, emergency time.Duration
	preferred := false
	hasPositive := false
	for _, window := range guard.Availability {
		if window.Type == models.AvailabilityUnavailable {
			continue
		}
		hasPositive = true
		overlap := overlapDuration(shift.Start, shift.End, window.Start, window.End)
		if overlap <= 0 {
			continue
		}
		if window.Type == models.AvailabilityEmergencyOnly {
			emergency += overlap
			continue
		}
		regular += overlap
		if window.Type == models.AvailabilityPreferred {
			preferred = true
		}
	}

	if !hasPositive {
		return models.AvailabilityMatch{CoverageRatio: 1}
	}

	coverage := clamp(regular.Hours()/shiftLen.Hours(), 0, 1)
	emergencyOnly := regular == 0 && emergency > 0
	if emergencyOnly {
		coverage = clamp(emergency.Hours()/shiftLen.Hours(), 0, 1)
	}

	return models.AvailabilityMatch{
		CoverageRatio:    round2(coverage),
		EmergencyOnly:    emergencyOnly,
		PreferredOverlap: preferred,
	}
}

// PerformanceComposite blends the guard's track record into a single 0-1
// score. Guards with no history score on moderate defaults rather than being
// penalized.
func (s *EligibilityScorer) PerformanceComposite(m models.PerformanceMetrics) float64 {
	onTime := valueOr(m.OnTimeRate, s.cfg.DefaultOnTimeRate)
	completion := valueOr(m.CompletionRate, s.cfg.DefaultCompletion)
	rating := valueOr(m.ClientRating, s.cfg.DefaultRating)
	incidents := valueOr(m.IncidentRate, s.cfg.DefaultIncidentRate)

	composite := s.cfg.PerfWeightOnTime*onTime +
		s.cfg.PerfWeightCompletion*completion +
		s.cfg.PerfWeightRating*(rating/5) +
		s.cfg.PerfWeightIncidents*(1-incidents)
	return clamp(composite, 0, 1)
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func ptr[T any](v T) *T {
	return &v
}

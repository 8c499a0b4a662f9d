package scheduling

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dmarsh/guardops-api-go/pkg/models"
)

// matchConcurrency bounds the parallel eligibility fan-out per request
const matchConcurrency = 8

// MatchRanker scores every eligible guard against a shift and produces a
// ranked list with qualitative strengths, concerns and a recommended action.
// The match score is distinct from the eligibility score: it re-weights the
// sub-factors and may exceed 1.0 (up to 1.2) for guards with surplus
// credentials.
type MatchRanker struct {
	store  Store
	scorer *EligibilityScorer
	cfg    ScoringConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewMatchRanker creates a ranker on top of the eligibility scorer
func NewMatchRanker(store Store, scorer *EligibilityScorer, cfg ScoringConfig, log *zap.Logger) *MatchRanker {
	return &MatchRanker{store: store, scorer: scorer, cfg: cfg, log: log, now: time.Now}
}

// FindBestMatches ranks every guard that clears the eligibility bar for the
// shift. Ranking is 1-based and contiguous over the full eligible pool;
// a positive limit truncates after ranking, never before. Ties keep the
// guards' original iteration order.
func (r *MatchRanker) FindBestMatches(ctx context.Context, shiftID string, limit int) ([]models.GuardMatchResult, error) {
	shift, err := r.store.GetShift(ctx, shiftID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewServiceError(CodeShiftNotFound, "shift %q not found", shiftID)
		}
		return nil, storeError("load shift", err)
	}

	guards, err := r.store.ListSchedulableGuards(ctx)
	if err != nil {
		return nil, storeError("list guards", err)
	}

	// Score the full pool concurrently; slots keep input order so ties in
	// the final sort stay stable.
	candidates := make([]*models.GuardMatchResult, len(guards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(matchConcurrency)
	for i := range guards {
		i := i
		guard := guards[i]
		g.Go(func() error {
			eligibility, err := r.scorer.CheckEligibility(gctx, guard.ID, *shift)
			if err != nil {
				return err
			}
			if !eligibility.Eligible && eligibility.EligibilityScore <= r.cfg.EligibilityThreshold {
				return nil
			}
			match := r.buildMatch(guard, *shift, eligibility)
			candidates[i] = &match
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]models.GuardMatchResult, 0, len(candidates))
	for _, c := range candidates {
		if c != nil {
			results = append(results, *c)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})
	for i := range results {
		results[i].Ranking = i + 1
	}

	r.log.Debug("matching complete",
		zap.String("shift_id", shiftID),
		zap.Int("pool", len(guards)),
		zap.Int("eligible", len(results)))

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// buildMatch computes the five weighted sub-scores and the qualitative output
// for one guard
func (r *MatchRanker) buildMatch(guard models.GuardProfile, shift models.Shift, eligibility models.GuardEligibilityResult) models.GuardMatchResult {
	scores := models.MatchScores{
		Certification: r.certificationScore(guard, shift, eligibility.CertificationMatch),
		Availability:  r.availabilityScore(shift, eligibility.AvailabilityMatch),
		Proximity:     r.proximityScore(guard, shift),
		Performance:   r.scorer.PerformanceComposite(guard.Metrics),
		Preference:    r.preferenceScore(guard, shift),
	}

	matchScore := r.cfg.MatchWeightCertification*scores.Certification +
		r.cfg.MatchWeightAvailability*scores.Availability +
		r.cfg.MatchWeightProximity*scores.Proximity +
		r.cfg.MatchWeightPerformance*scores.Performance +
		r.cfg.MatchWeightPreference*scores.Preference
	matchScore = round2(clamp(matchScore, 0, 1.2))

	result := models.GuardMatchResult{
		GuardID:     guard.ID,
		MatchScore:  matchScore,
		Eligibility: eligibility,
		Scores:      scores,
	}
	result.Strengths, result.Concerns, result.Recommendations = r.narrate(scores, eligibility)
	result.Confidence = r.confidence(matchScore, eligibility)
	result.RecommendedAction = r.recommendedAction(matchScore, result.Confidence, eligibility)
	return result
}

// certificationScore starts from the eligibility match ratio and adds up to
// +0.2 for active certifications beyond what the shift requires
func (r *MatchRanker) certificationScore(guard models.GuardProfile, shift models.Shift, match *models.CertificationMatch) float64 {
	base := 1.0
	matched := 0
	if match != nil {
		base = match.Score
		matched = len(match.Matched)
	}

	now := r.now()
	activeCount := 0
	for _, cert := range guard.Certifications {
		if cert.ActiveAt(now) {
			activeCount++
		}
	}
	surplus := activeCount - matched
	if surplus < 0 {
		surplus = 0
	}

	bonus := math.Min(float64(surplus)*r.cfg.SurplusCertBonusPer, r.cfg.SurplusCertBonusCap)
	return base + bonus
}

// availabilityScore rewards preferred-window coverage and penalizes
// emergency-only coverage of non-urgent shifts
func (r *MatchRanker) availabilityScore(shift models.Shift, match *models.AvailabilityMatch) float64 {
	if match == nil {
		return 0
	}
	score := match.CoverageRatio
	if match.PreferredOverlap {
		score += r.cfg.PreferredWindowBonus
	}
	if match.EmergencyOnly && shift.Priority < r.cfg.EmergencyPriority {
		score *= r.cfg.EmergencyOnlyPenalty
	}
	return score
}

// proximityScore tiers Euclidean distance into a 0-1 score using the same
// thresholds as conflict detection
func (r *MatchRanker) proximityScore(guard models.GuardProfile, shift models.Shift) float64 {
	dist := euclideanDistance(guard.Location, shift.Location.Coordinates)
	switch {
	case dist < r.cfg.ProximityNearDistance:
		return 1.0
	case dist < r.cfg.ProximityCloseDistance:
		return 0.75
	case dist < r.cfg.FarDistance:
		return 0.5
	case dist < r.cfg.VeryFarDistance:
		return 0.25
	default:
		return 0.1
	}
}

// preferenceScore measures how well the shift fits what the guard wants to
// work. Starts at a neutral baseline, clamped to [0, 1].
func (r *MatchRanker) preferenceScore(guard models.GuardProfile, shift models.Shift) float64 {
	prefs := guard.Preferences
	score := r.cfg.PreferenceBaseline

	if shift.SiteType != "" && containsFold(prefs.PreferredShiftTypes, shift.SiteType) {
		score += r.cfg.ShiftTypeBonus
	}
	if shift.Location.City != "" && containsFold(prefs.PreferredLocations, shift.Location.City) {
		score += r.cfg.LocationBonus
	}
	if prefs.PreferredStartHour != nil && prefs.PreferredEndHour != nil {
		hour := shift.Start.Hour()
		if hourInWindow(hour, *prefs.PreferredStartHour, *prefs.PreferredEndHour) {
			score += r.cfg.HourWindowBonus
		}
	}
	if prefs.WorksWeekends != nil && shift.IsWeekend() {
		if *prefs.WorksWeekends {
			score += r.cfg.WeekendAlignmentBonus
		} else {
			score -= r.cfg.WeekendAlignmentBonus
		}
	}
	if prefs.PreferredShiftHours != nil && *prefs.PreferredShiftHours > 0 {
		closeness := 1 - math.Abs(shift.DurationHours()-*prefs.PreferredShiftHours)/(*prefs.PreferredShiftHours)
		if closeness > 0 {
			score += closeness * r.cfg.DurationBonusMax
		}
	}

	return clamp(score, 0, 1)
}

// narrate turns the sub-scores into human-readable strengths, concerns and
// recommendations for the dispatcher
func (r *MatchRanker) narrate(scores models.MatchScores, eligibility models.GuardEligibilityResult) (strengths, concerns, recommendations []string) {
	strengths = []string{}
	concerns = []string{}
	recommendations = []string{}

	switch {
	case scores.Certification >= 1.0:
		strengths = append(strengths, "Exceeds certification requirements")
	case scores.Certification < 0.75:
		concerns = append(concerns, "Missing one or more required certifications")
		recommendations = append(recommendations, "Verify certification status before assigning")
	}

	switch {
	case scores.Availability >= 1.0:
		strengths = append(strengths, "Fully available, including preferred hours")
	case scores.Availability >= 0.8:
		strengths = append(strengths, "Strong availability coverage")
	case scores.Availability < 0.5:
		concerns = append(concerns, "Limited availability for this shift")
	}

	if scores.Proximity >= 0.75 {
		strengths = append(strengths, "Based close to the site")
	} else if scores.Proximity <= 0.25 {
		concerns = append(concerns, "Long travel distance to the site")
		recommendations = append(recommendations, "Confirm the guard accepts the commute")
	}

	if scores.Performance >= 0.85 {
		strengths = append(strengths, "Excellent performance history")
	} else if scores.Performance < 0.6 {
		concerns = append(concerns, "Below-average performance history")
		recommendations = append(recommendations, "Consider pairing with a senior guard")
	}

	if scores.Preference >= 0.8 {
		strengths = append(strengths, "Shift matches the guard's stated preferences")
	} else if scores.Preference < 0.3 {
		concerns = append(concerns, "Shift conflicts with the guard's preferences")
	}

	for _, conflict := range eligibility.Conflicts {
		if conflict.Severity != models.SeverityWarning {
			concerns = append(concerns, conflict.Message)
		}
	}
	if len(concerns) == 0 && len(recommendations) == 0 {
		recommendations = append(recommendations, "Good candidate for direct assignment")
	}
	return strengths, concerns, recommendations
}

func (r *MatchRanker) confidence(matchScore float64, eligibility models.GuardEligibilityResult) models.MatchConfidence {
	hasCritical := false
	hasError := false
	for _, c := range eligibility.Conflicts {
		switch c.Severity {
		case models.SeverityCritical:
			hasCritical = true
		case models.SeverityError:
			hasError = true
		}
	}
	switch {
	case hasCritical:
		return models.ConfidenceLow
	case !hasError && matchScore >= r.cfg.HighConfidenceScore:
		return models.ConfidenceHigh
	default:
		return models.ConfidenceMedium
	}
}

func (r *MatchRanker) recommendedAction(matchScore float64, confidence models.MatchConfidence, eligibility models.GuardEligibilityResult) models.RecommendedAction {
	hasCritical := false
	hasError := false
	for _, c := range eligibility.Conflicts {
		switch c.Severity {
		case models.SeverityCritical:
			hasCritical = true
		case models.SeverityError:
			hasError = true
		}
	}
	switch {
	case hasCritical || matchScore < r.cfg.NotRecommendedScore:
		return models.ActionNotRecommended
	case confidence == models.ConfidenceHigh && matchScore >= r.cfg.AutoAssignScore && !hasError:
		return models.ActionAutoAssign
	default:
		return models.ActionManagerReview
	}
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

// hourInWindow handles windows that wrap past midnight (e.g. 22 to 6)
func hourInWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

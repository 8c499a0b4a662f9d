package scheduling

import "time"

// ScoringConfig gathers every weight and threshold used by the scheduling
// engine so the scoring model can be tuned without touching control flow.
// DefaultScoringConfig holds the production values.
type ScoringConfig struct {
	// Eligibility weights (sum to 1.0 before bonuses)
	WeightStatus        float64
	WeightCertification float64
	WeightConflicts     float64
	WeightAvailability  float64

	// Eligibility bonuses (additive, total capped at 1.0)
	ProximityBonusNear   float64 // distance < ProximityNearDistance
	ProximityBonusClose  float64 // distance < ProximityCloseDistance
	PerformanceBonus     float64
	PerformanceBonusBar  float64 // composite score needed for the bonus
	MinorConflictCredit  float64 // fraction of WeightConflicts kept when only minor conflicts exist
	EligibilityThreshold float64 // score must exceed this to be eligible

	// Availability coverage credit tiers
	FullCoverageRatio    float64
	PartialCoverageRatio float64
	PartialCredit        float64 // fraction of WeightAvailability for partial coverage
	EmergencyOnlyCredit  float64 // fraction of WeightAvailability for emergency-only coverage

	// Conflict thresholds
	OverlapCriticalFraction float64
	OverlapErrorFraction    float64
	DailyHoursError         float64
	DailyHoursWarning       float64
	WeeklyHoursError        float64
	WeeklyHoursWarning      float64
	FarDistance             float64 // degree units
	VeryFarDistance         float64
	ProximityNearDistance   float64
	ProximityCloseDistance  float64
	TravelBuffer            time.Duration // adjacency window around a shift
	MinTravelTime           time.Duration
	TravelMinutesPerUnit    float64 // estimated minutes of travel per degree unit
	CertExpiryWarning       time.Duration
	EmergencyPriority       int // shifts at or above this priority may use emergency-only windows

	// Certifications whose absence blocks assignment unconditionally
	CriticalCertifications []string

	// Match weights (sum to 1.0)
	MatchWeightCertification float64
	MatchWeightAvailability  float64
	MatchWeightProximity     float64
	MatchWeightPerformance   float64
	MatchWeightPreference    float64

	// Match-specific bonuses and penalties
	SurplusCertBonusPer   float64 // per extra active certification
	SurplusCertBonusCap   float64
	PreferredWindowBonus  float64
	EmergencyOnlyPenalty  float64 // multiplier on availability for emergency-only coverage of non-urgent shifts
	PreferenceBaseline    float64
	ShiftTypeBonus        float64
	LocationBonus         float64
	HourWindowBonus       float64
	WeekendAlignmentBonus float64 // added when aligned, subtracted when misaligned
	DurationBonusMax      float64

	// Recommendation thresholds
	HighConfidenceScore float64
	AutoAssignScore     float64
	NotRecommendedScore float64

	// Performance composite weights and defaults
	PerfWeightOnTime     float64
	PerfWeightCompletion float64
	PerfWeightRating     float64
	PerfWeightIncidents  float64
	DefaultOnTimeRate    float64
	DefaultCompletion    float64
	DefaultRating        float64
	DefaultIncidentRate  float64

	// Assignment lifecycle
	ResponseDeadline time.Duration
}

// DefaultScoringConfig returns the tuned production configuration
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		WeightStatus:        0.25,
		WeightCertification: 0.35,
		WeightConflicts:     0.25,
		WeightAvailability:  0.15,

		ProximityBonusNear:   0.10,
		ProximityBonusClose:  0.05,
		PerformanceBonus:     0.05,
		PerformanceBonusBar:  0.8,
		MinorConflictCredit:  0.1,
		EligibilityThreshold: 0.3,

		FullCoverageRatio:    0.8,
		PartialCoverageRatio: 0.5,
		PartialCredit:        0.5,
		EmergencyOnlyCredit:  0.2,

		OverlapCriticalFraction: 0.8,
		OverlapErrorFraction:    0.5,
		DailyHoursError:         12,
		DailyHoursWarning:       10,
		WeeklyHoursError:        60,
		WeeklyHoursWarning:      50,
		FarDistance:             0.5,
		VeryFarDistance:         1.0,
		ProximityNearDistance:   0.1,
		ProximityCloseDistance:  0.3,
		TravelBuffer:            2 * time.Hour,
		MinTravelTime:           15 * time.Minute,
		TravelMinutesPerUnit:    120,
		CertExpiryWarning:       30 * 24 * time.Hour,
		EmergencyPriority:       5,

		CriticalCertifications: []string{"TOPS", "Basic_Security"},

		MatchWeightCertification: 0.30,
		MatchWeightAvailability:  0.25,
		MatchWeightProximity:     0.15,
		MatchWeightPerformance:   0.20,
		MatchWeightPreference:    0.10,

		SurplusCertBonusPer:   0.05,
		SurplusCertBonusCap:   0.2,
		PreferredWindowBonus:  0.3,
		EmergencyOnlyPenalty:  0.7,
		PreferenceBaseline:    0.5,
		ShiftTypeBonus:        0.2,
		LocationBonus:         0.3,
		HourWindowBonus:       0.2,
		WeekendAlignmentBonus: 0.2,
		DurationBonusMax:      0.1,

		HighConfidenceScore: 0.8,
		AutoAssignScore:     0.85,
		NotRecommendedScore: 0.5,

		PerfWeightOnTime:     0.30,
		PerfWeightCompletion: 0.25,
		PerfWeightRating:     0.25,
		PerfWeightIncidents:  0.20,
		DefaultOnTimeRate:    0.8,
		DefaultCompletion:    0.9,
		DefaultRating:        4.0,
		DefaultIncidentRate:  0.05,

		ResponseDeadline: 24 * time.Hour,
	}
}

// IsCriticalCertification reports whether the given certification type is one
// whose absence can never be overridden
func (c ScoringConfig) IsCriticalCertification(certType string) bool {
	for _, critical := range c.CriticalCertifications {
		if critical == certType {
			return true
		}
	}
	return false
}

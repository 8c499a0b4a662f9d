package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarsh/guardops-api-go/pkg/models"
)

func matchingShift() models.Shift {
	shift := baseShift("s1", 0, 8*time.Hour)
	shift.RequiredCerts = []string{"First_Aid"}
	return shift
}

// strongGuard holds the required cert plus a surplus one, lives next to the
// site and has an excellent record
func strongGuard(id string) models.GuardProfile {
	g := baseGuard(id)
	g.Certifications = []models.Certification{activeCert("First_Aid"), activeCert("TOPS")}
	g.Metrics = strongMetrics()
	return g
}

func middlingGuard(id string) models.GuardProfile {
	g := baseGuard(id)
	g.Certifications = []models.Certification{activeCert("First_Aid")}
	g.Location = models.Coordinates{Lat: 40.4, Lng: -75.0}
	g.Metrics = models.PerformanceMetrics{
		OnTimeRate:     ptr(0.6),
		CompletionRate: ptr(0.7),
		ClientRating:   ptr(3.0),
		IncidentRate:   ptr(0.15),
	}
	return g
}

// weakGuard is missing the (non-critical) required cert, is far away, has a
// poor record and only partial availability
func weakGuard(id string) models.GuardProfile {
	g := baseGuard(id)
	g.Location = models.Coordinates{Lat: 42.0, Lng: -75.0}
	g.Metrics = models.PerformanceMetrics{
		OnTimeRate:     ptr(0.3),
		CompletionRate: ptr(0.4),
		ClientRating:   ptr(1.0),
		IncidentRate:   ptr(0.9),
	}
	g.Availability = []models.AvailabilityWindow{{
		Start: monday,
		End:   monday.Add(4 * time.Hour),
		Type:  models.AvailabilityAvailable,
	}}
	return g
}

func TestFindBestMatchesRanksByScore(t *testing.T) {
	env := newTestEnv(t)
	shift := matchingShift()
	env.store.addShift(shift)
	env.store.addGuard(weakGuard("g-weak"))
	env.store.addGuard(strongGuard("g-strong"))
	env.store.addGuard(middlingGuard("g-mid"))

	matches, err := env.ranker.FindBestMatches(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "g-strong", matches[0].GuardID)
	for i, m := range matches {
		assert.Equal(t, i+1, m.Ranking)
		if i > 0 {
			assert.GreaterOrEqual(t, matches[i-1].MatchScore, m.MatchScore)
		}
	}
}

func TestFindBestMatchesShiftNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ranker.FindBestMatches(context.Background(), "nope", 0)
	require.Error(t, err)
	assert.Equal(t, CodeShiftNotFound, AsServiceError(err).Code)
}

func TestFindBestMatchesExcludesDisqualifiedGuards(t *testing.T) {
	env := newTestEnv(t)
	shift := matchingShift()
	shift.RequiredCerts = []string{"TOPS"}
	env.store.addShift(shift)

	// Assignable but missing a critical certification
	env.store.addGuard(baseGuard("g1"))

	matches, err := env.ranker.FindBestMatches(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindBestMatchesLimitTruncatesAfterRanking(t *testing.T) {
	env := newTestEnv(t)
	env.store.addShift(matchingShift())
	env.store.addGuard(strongGuard("g1"))
	env.store.addGuard(middlingGuard("g2"))
	env.store.addGuard(middlingGuard("g3"))

	matches, err := env.ranker.FindBestMatches(context.Background(), "s1", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Ranking)
	assert.Equal(t, 2, matches[1].Ranking)
}

func TestFindBestMatchesTiesKeepInputOrder(t *testing.T) {
	env := newTestEnv(t)
	env.store.addShift(matchingShift())
	env.store.addGuard(middlingGuard("g-first"))
	env.store.addGuard(middlingGuard("g-second"))

	matches, err := env.ranker.FindBestMatches(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, matches[0].MatchScore, matches[1].MatchScore)
	assert.Equal(t, "g-first", matches[0].GuardID)
	assert.Equal(t, "g-second", matches[1].GuardID)
}

func TestFindBestMatchesAutoAssignRecommendation(t *testing.T) {
	env := newTestEnv(t)
	env.store.addShift(matchingShift())
	env.store.addGuard(strongGuard("g1"))

	matches, err := env.ranker.FindBestMatches(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	match := matches[0]
	assert.GreaterOrEqual(t, match.MatchScore, 0.85)
	assert.Equal(t, models.ConfidenceHigh, match.Confidence)
	assert.Equal(t, models.ActionAutoAssign, match.RecommendedAction)
	assert.Contains(t, match.Strengths, "Exceeds certification requirements")
}

func TestFindBestMatchesNotRecommended(t *testing.T) {
	env := newTestEnv(t)
	env.store.addShift(matchingShift())
	env.store.addGuard(weakGuard("g1"))

	matches, err := env.ranker.FindBestMatches(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	match := matches[0]
	assert.Less(t, match.MatchScore, 0.5)
	assert.Equal(t, models.ActionNotRecommended, match.RecommendedAction)
	assert.NotEmpty(t, match.Concerns)
}

func TestFindBestMatchesManagerReviewForMiddleGround(t *testing.T) {
	env := newTestEnv(t)
	env.store.addShift(matchingShift())
	env.store.addGuard(middlingGuard("g1"))

	matches, err := env.ranker.FindBestMatches(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, models.ActionManagerReview, matches[0].RecommendedAction)
}

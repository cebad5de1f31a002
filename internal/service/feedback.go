package service

import (
	"fmt"
	"math"

	"geo-challenge/internal/geofence"
)

// coordinateFeedback describes a geofence result without revealing where
// the target is beyond a rough heading.
func coordinateFeedback(r geofence.Result) string {
	if r.Inside {
		return "Correct! Your guess is inside the target region."
	}
	return fmt.Sprintf("Not quite. You are approximately %s outside the target region; try heading %s.",
		formatDistance(r.DistanceMeters), geofence.CompassPoint(r.BearingDegrees))
}

// similarityFeedback describes a photo score relative to the threshold.
func similarityFeedback(score, threshold float64, correct bool) string {
	pct := int(math.Round(score * 100))
	switch {
	case correct:
		return fmt.Sprintf("Correct! Your photo matches the challenge location (%d%% similar).", pct)
	case score >= threshold-0.1:
		return fmt.Sprintf("Very close! Your photo almost matches the challenge location (%d%% similar).", pct)
	case score >= threshold-0.3:
		return fmt.Sprintf("Getting warmer. Your photo shares some features with the challenge location (%d%% similar).", pct)
	default:
		return fmt.Sprintf("Not quite. Your photo does not look like the challenge location (%d%% similar).", pct)
	}
}

func formatDistance(meters float64) string {
	if meters < 1000 {
		m := int(math.Round(meters))
		if m == 1 {
			return "1 meter"
		}
		return fmt.Sprintf("%d meters", m)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

package analysis

import "math"

// Per-label weights of the approachability aggregate. Happy and neutral add to the
// score; angry, fear and sad are subtracted from 100 before weighting in.
var (
	emotionWeights = map[Emotion]float64{
		Happy:   1.0,
		Neutral: 0.8,
		Angry:   1.0,
		Fear:    0.8,
		Sad:     0.8,
	}
	scoreTerms float64 = 5
	minScore   float64 = 0
	maxScore   float64 = 100
)

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func positive(e Emotion) bool {
	return e == Happy || e == Neutral
}

func rawScore(s EmotionSnapshot) float64 {
	var total float64
	for _, e := range Emotions {
		weighted := s.Get(e) * emotionWeights[e]
		if positive(e) {
			total += weighted
		} else {
			total += 100 - weighted
		}
	}
	return total
}

// ComputeApproachabilityScore maps a snapshot to an integer in [0, 100].
// A nil snapshot scores 0. Inputs are not validated; out-of-range intensities are
// absorbed by the final clamp and a NaN aggregate scores 0.
func ComputeApproachabilityScore(s *EmotionSnapshot) int {
	if s == nil {
		return 0
	}
	avg := math.Round(rawScore(*s) / scoreTerms)
	if math.IsNaN(avg) {
		return 0
	}
	return int(clip(avg, minScore, maxScore))
}

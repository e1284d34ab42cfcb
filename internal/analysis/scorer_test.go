package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClip(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		lo       float64
		hi       float64
		expected float64
	}{
		{name: "clips value below lower bound", value: -5.0, lo: 0, hi: 100, expected: 0},
		{name: "clips value above upper bound", value: 250.0, lo: 0, hi: 100, expected: 100},
		{name: "preserves value within bounds", value: 42.0, lo: 0, hi: 100, expected: 42.0},
		{name: "handles equal bounds", value: 7.0, lo: 3.0, hi: 3.0, expected: 3.0},
		{name: "clips positive infinity", value: math.Inf(1), lo: 0, hi: 100, expected: 100},
		{name: "clips negative infinity", value: math.Inf(-1), lo: 0, hi: 100, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clip(tt.value, tt.lo, tt.hi))
		})
	}
}

func TestRawScore(t *testing.T) {
	tests := []struct {
		name     string
		snapshot EmotionSnapshot
		expected float64
	}{
		{name: "all zero", snapshot: EmotionSnapshot{}, expected: 300},
		{name: "happy only", snapshot: EmotionSnapshot{Happy: 100}, expected: 400},
		{name: "neutral weighted at 0.8", snapshot: EmotionSnapshot{Neutral: 50}, expected: 340},
		{name: "anger penalised at full weight", snapshot: EmotionSnapshot{Angry: 50}, expected: 250},
		{name: "fear penalised at 0.8", snapshot: EmotionSnapshot{Fear: 50}, expected: 260},
		{name: "sadness penalised at 0.8", snapshot: EmotionSnapshot{Sad: 50}, expected: 260},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, rawScore(tt.snapshot), 1e-9)
		})
	}
}

func TestComputeApproachabilityScore(t *testing.T) {
	tests := []struct {
		name     string
		snapshot *EmotionSnapshot
		expected int
	}{
		{
			name:     "nil snapshot scores zero",
			snapshot: nil,
			expected: 0,
		},
		{
			name:     "all zero snapshot",
			snapshot: &EmotionSnapshot{},
			expected: 60, // (0 + 0 + 100 + 100 + 100) / 5
		},
		{
			name:     "saturated smile",
			snapshot: &EmotionSnapshot{Happy: 95, Neutral: 10},
			expected: 81, // 403 / 5 = 80.6
		},
		{
			name:     "balanced expression",
			snapshot: &EmotionSnapshot{Happy: 60, Neutral: 30},
			expected: 77, // 384 / 5 = 76.8
		},
		{
			name:     "mixed negatives",
			snapshot: &EmotionSnapshot{Happy: 50, Neutral: 50, Angry: 10, Fear: 10, Sad: 10},
			expected: 73, // 364 / 5 = 72.8
		},
		{
			name:     "every label at 100",
			snapshot: &EmotionSnapshot{Happy: 100, Neutral: 100, Angry: 100, Fear: 100, Sad: 100},
			expected: 44, // 220 / 5
		},
		{
			name:     "best natural range",
			snapshot: &EmotionSnapshot{Happy: 100, Neutral: 100},
			expected: 96, // 480 / 5
		},
		{
			name:     "large happiness clamps to 100",
			snapshot: &EmotionSnapshot{Happy: 1000},
			expected: 100,
		},
		{
			name:     "large anger clamps to 0",
			snapshot: &EmotionSnapshot{Angry: 1000},
			expected: 0, // -700 / 5 = -140
		},
		{
			name:     "negative intensities clamp to 100",
			snapshot: &EmotionSnapshot{Happy: -1000, Neutral: -1000, Angry: -1000, Fear: -1000, Sad: -1000},
			expected: 100, // 1100 / 5 = 220
		},
		{
			name:     "NaN intensity scores zero",
			snapshot: &EmotionSnapshot{Happy: math.NaN()},
			expected: 0,
		},
		{
			name:     "infinite happiness clamps to 100",
			snapshot: &EmotionSnapshot{Happy: math.Inf(1)},
			expected: 100,
		},
		{
			name:     "infinite anger clamps to 0",
			snapshot: &EmotionSnapshot{Angry: math.Inf(1)},
			expected: 0,
		},
		{
			name:     "opposing infinities score zero",
			snapshot: &EmotionSnapshot{Happy: math.Inf(1), Angry: math.Inf(1)},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeApproachabilityScore(tt.snapshot))
		})
	}
}

func TestScoreAlwaysWithinBounds(t *testing.T) {
	values := []float64{-1e9, -100, -0.5, 0, 0.5, 5, 20, 40, 90, 100, 150, 1e9}

	for _, h := range values {
		for _, n := range values {
			for _, neg := range values {
				s := &EmotionSnapshot{Happy: h, Neutral: n, Angry: neg, Fear: neg, Sad: neg}
				score := ComputeApproachabilityScore(s)
				assert.GreaterOrEqual(t, score, 0, "score below range for %+v", *s)
				assert.LessOrEqual(t, score, 100, "score above range for %+v", *s)
			}
		}
	}
}

func TestEmotionWeights(t *testing.T) {
	assert.Len(t, emotionWeights, len(Emotions), "every label should carry a weight")
	assert.Greater(t, emotionWeights[Happy], emotionWeights[Neutral], "happiness should outweigh neutrality")
	assert.Greater(t, emotionWeights[Angry], emotionWeights[Fear], "anger should be penalised most")
	assert.Equal(t, emotionWeights[Fear], emotionWeights[Sad])
}

package types

import "github.com/ZanzyTHEbar/approachability-meter/internal/analysis"

// DetectRequest is the body accepted by the classification service and the gateway.
type DetectRequest struct {
	Image string `json:"image"`
}

// DetectResponse is what the classification service returns for one frame.
// Error is set instead of Emotions when the service could not classify the frame.
type DetectResponse struct {
	Emotions        map[string]float64 `json:"emotions,omitempty"`
	DominantEmotion string             `json:"dominant_emotion,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// Snapshot extracts the engine input; nil when the response carries no emotions.
func (r *DetectResponse) Snapshot() *analysis.EmotionSnapshot {
	if r == nil {
		return nil
	}
	return analysis.SnapshotFromMap(r.Emotions)
}

// EvaluateRequest scores an emotion mapping obtained elsewhere.
type EvaluateRequest struct {
	Emotions map[string]float64 `json:"emotions"`
}

// FeedbackResponse is returned by the gateway's detect and evaluate endpoints.
type FeedbackResponse struct {
	Emotions        map[string]float64       `json:"emotions,omitempty"`
	DominantEmotion string                   `json:"dominant_emotion,omitempty"`
	Approachability *analysis.FeedbackResult `json:"approachability"`
}

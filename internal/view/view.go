package view

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/approachability-meter/internal/analysis"
)

type State string

const (
	StateWaiting State = "waiting"
	StateActive  State = "active"
	StateStopped State = "stopped"
	StateError   State = "error"
)

// View is what a display surface renders for the current detection session.
// Feedback is nil until the first classified frame arrives.
type View struct {
	State           State                    `json:"state"`
	Emotions        map[string]float64       `json:"emotions,omitempty"`
	DominantEmotion string                   `json:"dominant_emotion,omitempty"`
	Feedback        *analysis.FeedbackResult `json:"approachability"`
	Error           string                   `json:"error,omitempty"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// ScoreHue is the HSL hue of the score bar: 0 (red) at score 0 up to 120 (green) at 100.
func ScoreHue(score int) float64 {
	return float64(score) * 1.2
}

const barWidth = 20

// emotionLabels orders the engine's labels first in display order, then any
// other labels the classifier reported, alphabetically.
func emotionLabels(emotions map[string]float64) []string {
	labels := make([]string, 0, len(emotions))
	known := make(map[string]bool, len(analysis.Emotions))
	for _, e := range analysis.Emotions {
		known[string(e)] = true
		if _, ok := emotions[string(e)]; ok {
			labels = append(labels, string(e))
		}
	}

	var extra []string
	for label := range emotions {
		if !known[label] {
			extra = append(extra, label)
		}
	}
	sort.Strings(extra)

	return append(labels, extra...)
}

// RenderText writes a plain-text rendering of v
func RenderText(w io.Writer, v View) error {
	var b strings.Builder

	switch v.State {
	case StateWaiting:
		b.WriteString("Press 'Start Detection' to begin emotion analysis\n")
	case StateStopped:
		b.WriteString("Detection stopped\n")
	case StateError:
		fmt.Fprintf(&b, "Error: %s\n", v.Error)
	}

	if v.Emotions != nil {
		b.WriteString("Detected Emotions:\n")
		for _, label := range emotionLabels(v.Emotions) {
			fmt.Fprintf(&b, "  %-10s %5.1f%%\n", label, v.Emotions[label])
		}
		if v.DominantEmotion != "" {
			fmt.Fprintf(&b, "Dominant Emotion: %s\n", v.DominantEmotion)
		}
	}

	if v.Feedback != nil {
		score := v.Feedback.ApproachabilityScore
		filled := score * barWidth / 100
		fmt.Fprintf(&b, "Approachability Score: [%s%s] %d%% (hue %.0f)\n",
			strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled), score, ScoreHue(score))

		if len(v.Feedback.Feedback) > 0 {
			b.WriteString("Current Analysis:\n")
			for _, item := range v.Feedback.Feedback {
				fmt.Fprintf(&b, "  - %s\n", item)
			}
		}
		if len(v.Feedback.Tips) > 0 {
			b.WriteString("Tips for Improvement:\n")
			for _, tip := range v.Feedback.Tips {
				fmt.Fprintf(&b, "  - %s\n", tip)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

package analysis

// Emotion is one of the labels the feedback engine reads from a classification result.
type Emotion string

const (
	Happy   Emotion = "happy"
	Neutral Emotion = "neutral"
	Angry   Emotion = "angry"
	Fear    Emotion = "fear"
	Sad     Emotion = "sad"
)

// Emotions lists the recognised labels in display order.
var Emotions = []Emotion{Happy, Neutral, Angry, Fear, Sad}

// EmotionSnapshot holds one classification cycle's intensities, each a percentage.
// Labels missing from the source mapping are zero.
type EmotionSnapshot struct {
	Happy   float64 `json:"happy"`
	Neutral float64 `json:"neutral"`
	Angry   float64 `json:"angry"`
	Fear    float64 `json:"fear"`
	Sad     float64 `json:"sad"`
}

// SnapshotFromMap builds a snapshot from a classifier's label mapping.
// A nil map means no classification is available and yields nil; labels outside
// the recognised set are ignored.
func SnapshotFromMap(m map[string]float64) *EmotionSnapshot {
	if m == nil {
		return nil
	}
	return &EmotionSnapshot{
		Happy:   m[string(Happy)],
		Neutral: m[string(Neutral)],
		Angry:   m[string(Angry)],
		Fear:    m[string(Fear)],
		Sad:     m[string(Sad)],
	}
}

// Get returns the intensity for a label, zero for unknown labels.
func (s EmotionSnapshot) Get(e Emotion) float64 {
	switch e {
	case Happy:
		return s.Happy
	case Neutral:
		return s.Neutral
	case Angry:
		return s.Angry
	case Fear:
		return s.Fear
	case Sad:
		return s.Sad
	default:
		return 0
	}
}

// Rule identifies the classification rule behind a feedback/tip pair.
type Rule string

const (
	RuleForcedSmile       Rule = "forced_smile"
	RuleNaturalExpression Rule = "natural_expression"
	RuleStern             Rule = "stern"
	RuleAnxious           Rule = "anxious"
	RuleDowncast          Rule = "downcast"
	RuleTooReserved       Rule = "too_reserved"
	RuleEngagement        Rule = "engagement"
	RuleBalanced          Rule = "balanced"
)

// FeedbackResult is the engine output for one snapshot. Feedback, Tips and Rules
// are index-aligned: entry i of each was produced by the same rule.
type FeedbackResult struct {
	Feedback             []string `json:"feedback"`
	Tips                 []string `json:"tips"`
	Rules                []Rule   `json:"rules"`
	ApproachabilityScore int      `json:"approachabilityScore"`
}

// Fired reports whether the given rule contributed to the result.
func (r *FeedbackResult) Fired(rule Rule) bool {
	if r == nil {
		return false
	}
	for _, fired := range r.Rules {
		if fired == rule {
			return true
		}
	}
	return false
}

// RuleNames returns the fired rules as plain strings, nil for a nil result.
func (r *FeedbackResult) RuleNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.Rules))
	for i, rule := range r.Rules {
		names[i] = string(rule)
	}
	return names
}

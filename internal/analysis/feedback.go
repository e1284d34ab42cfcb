package analysis

// Thresholds shared by the expression rules. Comparisons against them are written
// out per rule because strict and non-strict bounds differ between rules.
const (
	saturationLevel = 90.0
	smileLevel      = 40.0
	presenceLevel   = 20.0
	negativeLevel   = 5.0
)

type message struct {
	feedback string
	tip      string
}

var messages = map[Rule]message{
	RuleForcedSmile: {
		"Your smile might appear forced",
		"Try to relax your smile slightly for a more natural look",
	},
	RuleNaturalExpression: {
		"Good natural expression!",
		"This balanced smile-neutral mix appears approachable",
	},
	RuleStern: {
		"You might appear stern",
		"Try to relax your eyebrows and forehead",
	},
	RuleAnxious: {
		"You might appear anxious",
		"Take a deep breath and try to relax your facial muscles",
	},
	RuleDowncast: {
		"Your expression might appear downcast",
		"Try lifting your cheeks slightly and maintaining soft eye contact",
	},
	RuleTooReserved: {
		"Your expression might appear too reserved",
		"Try adding a slight smile to appear more approachable",
	},
	RuleEngagement: {
		"Good engagement level!",
		"This mix of expressions appears attentive and friendly",
	},
	RuleBalanced: {
		"Excellent approachable expression!",
		"You're maintaining a great balance of friendly and professional",
	},
}

// Message returns the feedback and tip text emitted for a rule.
func Message(rule Rule) (feedback, tip string) {
	m := messages[rule]
	return m.feedback, m.tip
}

func (r *FeedbackResult) add(rule Rule) {
	feedback, tip := Message(rule)
	r.Feedback = append(r.Feedback, feedback)
	r.Tips = append(r.Tips, tip)
	r.Rules = append(r.Rules, rule)
}

func within(x, lo, hi float64) bool {
	return x >= lo && x <= hi
}

// Evaluate runs the expression rules over a snapshot and scores it.
// A nil snapshot means no classification has happened yet and returns nil.
func Evaluate(s *EmotionSnapshot) *FeedbackResult {
	if s == nil {
		return nil
	}
	snap := *s

	result := &FeedbackResult{
		Feedback: []string{},
		Tips:     []string{},
		Rules:    []Rule{},
	}

	if snap.Happy > saturationLevel {
		result.add(RuleForcedSmile)
	} else if within(snap.Happy, smileLevel, saturationLevel) && snap.Neutral >= presenceLevel {
		result.add(RuleNaturalExpression)
	}

	if snap.Angry > negativeLevel {
		result.add(RuleStern)
	}
	if snap.Fear > negativeLevel {
		result.add(RuleAnxious)
	}
	if snap.Sad > negativeLevel {
		result.add(RuleDowncast)
	}

	if snap.Neutral > saturationLevel {
		result.add(RuleTooReserved)
	} else if within(snap.Neutral, presenceLevel, saturationLevel) && snap.Happy >= smileLevel {
		result.add(RuleEngagement)
	}

	if within(snap.Happy, presenceLevel, saturationLevel) &&
		within(snap.Neutral, presenceLevel, saturationLevel) &&
		snap.Angry < negativeLevel && snap.Fear < negativeLevel && snap.Sad < negativeLevel {
		result.add(RuleBalanced)
	}

	result.ApproachabilityScore = ComputeApproachabilityScore(&snap)
	return result
}

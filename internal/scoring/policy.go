package scoring

// Weights are the multipliers applied to each sub-score. They are expected to
// sum to 1.
type Weights struct {
	Engagement float64
	Sentiment  float64
	Ratio      float64
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Engagement + w.Sentiment + w.Ratio
}

// Policy holds every tunable number used by the engine. It is a plain value:
// pass it around by copy and never mutate a shared instance.
type Policy struct {
	Weights Weights

	// EngagementSaturation is the message count at which the engagement
	// sub-score reaches 1.
	EngagementSaturation int

	// Category thresholds. Message counts and sentiments are compared with
	// a strict greater-than.
	HighValueMessages  int
	HighValueSentiment float64
	ActiveMessages     int
	ActiveSentiment    float64
	RegularMessages    int
	PositiveSentiment  float64
}

var defaultPolicy = Policy{
	Weights: Weights{
		Engagement: 0.4,
		Sentiment:  0.3,
		Ratio:      0.3,
	},
	EngagementSaturation: 100,
	HighValueMessages:    50,
	HighValueSentiment:   0,
	ActiveMessages:       20,
	ActiveSentiment:      0,
	RegularMessages:      10,
	PositiveSentiment:    0.5,
}

// DefaultPolicy returns the production weights and thresholds.
func DefaultPolicy() Policy {
	return defaultPolicy
}

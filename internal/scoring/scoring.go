// Package scoring turns per-contact message aggregates into lead scores,
// categories and follow-up recommendations.
//
// Everything in this package is a pure function of its inputs. Aggregates
// are not validated here; callers enforce the aggregate invariants when the
// aggregate is built.
package scoring

import "math"

// Version identifies the scoring model. Bump it when weights or rules change
// in a way that makes old scores incomparable.
const Version = "2026-v1"

// ContactAggregate is the accumulated message statistics for one contact.
type ContactAggregate struct {
	UserID           int64   `json:"user_id" validate:"required"`
	MessageCount     int     `json:"message_count" validate:"gte=0"`
	PositiveCount    int     `json:"positive_count" validate:"gte=0"`
	NegativeCount    int     `json:"negative_count" validate:"gte=0"`
	AverageSentiment float64 `json:"average_sentiment" validate:"gte=-1,lte=1"`
}

// Breakdown holds the unweighted sub-scores, each in [0, 1].
type Breakdown struct {
	Engagement float64 `json:"engagement"`
	Sentiment  float64 `json:"sentiment"`
	Ratio      float64 `json:"ratio"`
}

// LeadScore is the derived view of a ContactAggregate.
type LeadScore struct {
	Score     float64   `json:"score"`
	Category  Category  `json:"category"`
	Action    Action    `json:"action"`
	Breakdown Breakdown `json:"breakdown"`
	Version   string    `json:"version"`
}

// ComputeScore scores an aggregate with DefaultPolicy.
func ComputeScore(a ContactAggregate) LeadScore {
	return defaultPolicy.Score(a)
}

// Score computes the weighted lead score, category and recommended action.
func (p Policy) Score(a ContactAggregate) LeadScore {
	b := p.Breakdown(a)
	total := p.Weights.Engagement*b.Engagement +
		p.Weights.Sentiment*b.Sentiment +
		p.Weights.Ratio*b.Ratio

	category := p.Categorize(a)
	return LeadScore{
		Score:     clamp(total, 0, 1),
		Category:  category,
		Action:    RecommendAction(category),
		Breakdown: b,
		Version:   Version,
	}
}

// Breakdown returns the three unweighted sub-scores for an aggregate.
func (p Policy) Breakdown(a ContactAggregate) Breakdown {
	return Breakdown{
		Engagement: p.engagement(a.MessageCount),
		Sentiment:  math.Max(0, a.AverageSentiment),
		Ratio:      positiveRatio(a.PositiveCount, a.NegativeCount),
	}
}

// engagement saturates at EngagementSaturation messages.
func (p Policy) engagement(messageCount int) float64 {
	if p.EngagementSaturation <= 0 {
		return 0
	}
	return math.Min(float64(messageCount)/float64(p.EngagementSaturation), 1.0)
}

// positiveRatio is zero when no message was classified either way.
func positiveRatio(positive, negative int) float64 {
	classified := positive + negative
	if classified == 0 {
		return 0
	}
	return float64(positive) / float64(classified)
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

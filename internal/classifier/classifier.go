package classifier

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/xaenox/leadbot/internal/models"
)

// Sentiment is the classification of one message.
type Sentiment struct {
	Score      float64               `json:"score"`
	Confidence float64               `json:"confidence"`
	Label      models.SentimentLabel `json:"label"`
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Sentiment, error)
}

// Thresholds decide which bucket a score falls into. A score above Positive
// is positive, below Negative is negative, anything else is neutral.
type Thresholds struct {
	Positive float64
	Negative float64
}

// DefaultThresholds counts only clearly positive or negative messages.
var DefaultThresholds = Thresholds{Positive: 0.5, Negative: -0.5}

func (t Thresholds) Label(score float64) models.SentimentLabel {
	switch {
	case score > t.Positive:
		return models.SentimentPositive
	case score < t.Negative:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func (t Thresholds) sentiment(score, confidence float64) Sentiment {
	score = clamp(score, -1, 1)
	return Sentiment{
		Score:      score,
		Confidence: clamp(confidence, 0, 1),
		Label:      t.Label(score),
	}
}

var (
	wordRe = regexp.MustCompile(`\b\w+\b`)

	positiveWords = map[string]struct{}{
		"good": {}, "great": {}, "excellent": {}, "amazing": {}, "wonderful": {}, "fantastic": {},
		"awesome": {}, "love": {}, "like": {}, "happy": {}, "joy": {}, "excited": {}, "thrilled": {},
		"perfect": {}, "best": {}, "success": {}, "win": {}, "profit": {}, "gain": {}, "improve": {},
		"better": {}, "positive": {}, "interested": {}, "thanks": {}, "yes": {}, "deal": {},
	}
	negativeWords = map[string]struct{}{
		"bad": {}, "terrible": {}, "awful": {}, "horrible": {}, "worst": {}, "hate": {}, "dislike": {},
		"sad": {}, "angry": {}, "frustrated": {}, "disappointed": {}, "fail": {}, "loss": {},
		"problem": {}, "issue": {}, "error": {}, "broken": {}, "negative": {}, "poor": {}, "weak": {},
		"boring": {}, "no": {},
	}
)

// LexiconClassifier scores text by counting positive and negative words. It
// needs no network and is the fallback for every other classifier.
type LexiconClassifier struct {
	thresholds Thresholds
}

func NewLexiconClassifier(thresholds Thresholds) *LexiconClassifier {
	return &LexiconClassifier{thresholds: thresholds}
}

func (c *LexiconClassifier) Classify(_ context.Context, text string) (Sentiment, error) {
	return c.classify(text), nil
}

func (c *LexiconClassifier) classify(text string) Sentiment {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return c.thresholds.sentiment(0, 0)
	}

	var positive, negative int
	for _, word := range words {
		if _, ok := positiveWords[word]; ok {
			positive++
		} else if _, ok := negativeWords[word]; ok {
			negative++
		}
	}

	total := float64(len(words))
	score := float64(positive-negative) / total * 5
	confidence := math.Min(0.9, total/50)
	return c.thresholds.sentiment(score, confidence)
}

func clamp(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

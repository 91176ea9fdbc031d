package classifier

import (
	"context"
	"math"
	"testing"

	"github.com/xaenox/leadbot/internal/models"
)

func TestThresholdsLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  models.SentimentLabel
	}{
		{0.9, models.SentimentPositive},
		{0.51, models.SentimentPositive},
		{0.5, models.SentimentNeutral},
		{0, models.SentimentNeutral},
		{-0.5, models.SentimentNeutral},
		{-0.51, models.SentimentNegative},
		{-1, models.SentimentNegative},
	}
	for _, tt := range tests {
		if got := DefaultThresholds.Label(tt.score); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestLexiconClassifier(t *testing.T) {
	c := NewLexiconClassifier(DefaultThresholds)
	tests := []struct {
		name       string
		text       string
		score      float64
		confidence float64
		label      models.SentimentLabel
	}{
		{"empty", "", 0, 0, models.SentimentNeutral},
		{"punctuation only", "?!", 0, 0, models.SentimentNeutral},
		{"positive", "This is great, thanks!", 1, 0.08, models.SentimentPositive},
		{"negative", "terrible problem", -1, 0.04, models.SentimentNegative},
		{"neutral", "see you tomorrow", 0, 0.06, models.SentimentNeutral},
		{"mixed", "good idea but one issue with the plan here", 0, 0.18, models.SentimentNeutral},
		{"mild", "the demo was good and we will review it next week", 5.0 / 11.0, 0.22, models.SentimentNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if math.Abs(got.Score-tt.score) > 1e-9 {
				t.Fatalf("score: got %v, want %v", got.Score, tt.score)
			}
			if math.Abs(got.Confidence-tt.confidence) > 1e-9 {
				t.Fatalf("confidence: got %v, want %v", got.Confidence, tt.confidence)
			}
			if got.Label != tt.label {
				t.Fatalf("label: got %q, want %q", got.Label, tt.label)
			}
		})
	}
}

func TestLexiconConfidenceCaps(t *testing.T) {
	text := ""
	for i := 0; i < 100; i++ {
		text += "word "
	}
	got := NewLexiconClassifier(DefaultThresholds).classify(text)
	if got.Confidence != 0.9 {
		t.Fatalf("got confidence %v, want 0.9", got.Confidence)
	}
}

func TestClampHandlesNaN(t *testing.T) {
	if got := clamp(math.NaN(), -1, 1); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

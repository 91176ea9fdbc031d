package leads

import (
	"context"
	"fmt"

	"github.com/xaenox/leadbot/internal/scoring"
)

// Summary is the pipeline overview shown on the dashboard and in digests.
type Summary struct {
	Contacts       int                      `json:"contacts"`
	Messages       int                      `json:"messages"`
	Leads          int                      `json:"leads"`
	HighValueLeads int                      `json:"high_value_leads"`
	AverageScore   float64                  `json:"average_score"`
	ByCategory     map[scoring.Category]int `json:"by_category"`
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	ranked, err := s.Rank(ctx, Filter{})
	if err != nil {
		return Summary{}, err
	}
	messages, err := s.store.CountMessages(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("count messages: %w", err)
	}
	return summarize(ranked, messages), nil
}

func summarize(ranked []Lead, messages int) Summary {
	sum := Summary{
		Contacts:   len(ranked),
		Messages:   messages,
		ByCategory: make(map[scoring.Category]int, len(scoring.Categories)),
	}
	for _, c := range scoring.Categories {
		sum.ByCategory[c] = 0
	}

	var total float64
	for _, l := range ranked {
		sum.ByCategory[l.Category]++
		total += l.Score
		if l.Score > LeadThreshold {
			sum.Leads++
		}
		if l.Score > HighValueThreshold {
			sum.HighValueLeads++
		}
	}
	if len(ranked) > 0 {
		sum.AverageScore = total / float64(len(ranked))
	}
	return sum
}

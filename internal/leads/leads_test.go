package leads

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xaenox/leadbot/internal/models"
	"github.com/xaenox/leadbot/internal/scoring"
	"github.com/xaenox/leadbot/internal/storage"
	"go.uber.org/zap"
)

// stubStore serves fixed aggregates and profiles.
type stubStore struct {
	storage.Storage
	aggregates []scoring.ContactAggregate
	contacts   []*models.Contact
	messages   int
}

func (s *stubStore) ListContactAggregates(ctx context.Context) ([]scoring.ContactAggregate, error) {
	return s.aggregates, nil
}

func (s *stubStore) ListContacts(ctx context.Context) ([]*models.Contact, error) {
	return s.contacts, nil
}

func (s *stubStore) GetContactAggregate(ctx context.Context, userID int64) (scoring.ContactAggregate, error) {
	for _, a := range s.aggregates {
		if a.UserID == userID {
			return a, nil
		}
	}
	return scoring.ContactAggregate{}, storage.ErrNotFound
}

func (s *stubStore) GetContact(ctx context.Context, userID int64) (*models.Contact, error) {
	for _, c := range s.contacts {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *stubStore) CountMessages(ctx context.Context) (int, error) {
	return s.messages, nil
}

func fixture() *stubStore {
	return &stubStore{
		aggregates: []scoring.ContactAggregate{
			{UserID: 1},
			{UserID: 2, MessageCount: 60, PositiveCount: 40, NegativeCount: 5, AverageSentiment: 0.6},
			{UserID: 3, MessageCount: 25, PositiveCount: 10, NegativeCount: 10, AverageSentiment: 0.1},
			{UserID: 4, MessageCount: 5, AverageSentiment: 0.9},
			// more classified messages than messages
			{UserID: 5, MessageCount: 3, PositiveCount: 3, NegativeCount: 1, AverageSentiment: 0.2},
			// sentiment out of range
			{UserID: 6, MessageCount: 3, AverageSentiment: 1.5},
		},
		contacts: []*models.Contact{
			{UserID: 2, FirstName: "Grace", LastName: "Hopper"},
			{UserID: 3, Username: "linus"},
		},
		messages: 95,
	}
}

func newTestService(store storage.Storage) *Service {
	return NewService(store, scoring.DefaultPolicy(), zap.NewNop())
}

func TestValidate(t *testing.T) {
	s := newTestService(fixture())
	tests := []struct {
		name  string
		agg   scoring.ContactAggregate
		valid bool
	}{
		{"valid", scoring.ContactAggregate{UserID: 1, MessageCount: 10, PositiveCount: 4, NegativeCount: 6, AverageSentiment: -0.2}, true},
		{"missing user", scoring.ContactAggregate{MessageCount: 1}, false},
		{"negative count", scoring.ContactAggregate{UserID: 1, MessageCount: -1}, false},
		{"classified exceeds total", scoring.ContactAggregate{UserID: 1, MessageCount: 2, PositiveCount: 2, NegativeCount: 1}, false},
		{"sentiment too high", scoring.ContactAggregate{UserID: 1, MessageCount: 1, AverageSentiment: 1.01}, false},
		{"sentiment too low", scoring.ContactAggregate{UserID: 1, MessageCount: 1, AverageSentiment: -2}, false},
		{"sentiment NaN", scoring.ContactAggregate{UserID: 1, MessageCount: 1, AverageSentiment: math.NaN()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.agg)
			if tt.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidAggregate) {
				t.Fatalf("expected ErrInvalidAggregate, got %v", err)
			}
		})
	}
}

func TestRankOrdersAndSkipsInvalid(t *testing.T) {
	s := newTestService(fixture())
	leads, err := s.Rank(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	var ids []int64
	for _, l := range leads {
		ids = append(ids, l.Aggregate.UserID)
	}
	if diff := cmp.Diff([]int64{2, 4, 3, 1}, ids); diff != "" {
		t.Fatalf("rank order mismatch (-want +got):\n%s", diff)
	}

	top := leads[0]
	if top.Name != "Grace Hopper" {
		t.Fatalf("got name %q, want Grace Hopper", top.Name)
	}
	if top.Category != scoring.CategoryHighValueLead || top.Action != scoring.ActionScheduleMeeting {
		t.Fatalf("unexpected top lead: %+v", top.LeadScore)
	}
	if leads[2].Name != "@linus" {
		t.Fatalf("got name %q, want @linus", leads[2].Name)
	}
	if leads[3].Name != "User 1" {
		t.Fatalf("got name %q, want User 1", leads[3].Name)
	}
}

func TestRankTieBreaks(t *testing.T) {
	store := &stubStore{aggregates: []scoring.ContactAggregate{
		{UserID: 9, MessageCount: 10},
		{UserID: 3, MessageCount: 10},
		{UserID: 5, MessageCount: 5, AverageSentiment: 2.0 / 30.0 * 10},
	}}
	leads, err := newTestService(store).Rank(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if leads[0].Aggregate.UserID != 5 {
		t.Fatalf("expected highest score first, got %d", leads[0].Aggregate.UserID)
	}
	if leads[1].Aggregate.UserID != 3 || leads[2].Aggregate.UserID != 9 {
		t.Fatalf("expected equal scores ordered by user id, got %d, %d", leads[1].Aggregate.UserID, leads[2].Aggregate.UserID)
	}
}

func TestRankFilter(t *testing.T) {
	s := newTestService(fixture())
	ctx := context.Background()

	active, err := s.Rank(ctx, Filter{Category: scoring.CategoryActive})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(active) != 1 || active[0].Aggregate.UserID != 3 {
		t.Fatalf("unexpected active leads: %+v", active)
	}

	top, _ := s.Rank(ctx, Filter{Limit: 2})
	if len(top) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(top))
	}

	warm, _ := s.Rank(ctx, Filter{MinScore: 0.5})
	if len(warm) != 1 || warm[0].Aggregate.UserID != 2 {
		t.Fatalf("unexpected warm leads: %+v", warm)
	}
}

func TestRankHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestService(fixture()).Rank(ctx, Filter{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGet(t *testing.T) {
	s := newTestService(fixture())
	ctx := context.Background()

	lead, err := s.Get(ctx, 4)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if lead.Category != scoring.CategoryPositive || math.Abs(lead.Score-0.29) > 1e-9 {
		t.Fatalf("unexpected lead: %+v", lead.LeadScore)
	}

	if _, err := s.Get(ctx, 404); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Get(ctx, 5); !errors.Is(err, ErrInvalidAggregate) {
		t.Fatalf("expected ErrInvalidAggregate, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	sum, err := newTestService(fixture()).Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if sum.Contacts != 4 || sum.Messages != 95 {
		t.Fatalf("unexpected totals: %+v", sum)
	}
	// 60 messages only reach 0.6 engagement, so the top lead stays under 0.7.
	if sum.Leads != 1 || sum.HighValueLeads != 0 {
		t.Fatalf("unexpected lead counts: %+v", sum)
	}
	want := map[scoring.Category]int{
		scoring.CategoryHighValueLead: 1,
		scoring.CategoryActive:        1,
		scoring.CategoryRegular:       0,
		scoring.CategoryPositive:      1,
		scoring.CategoryContact:       1,
	}
	if diff := cmp.Diff(want, sum.ByCategory); diff != "" {
		t.Fatalf("category counts mismatch (-want +got):\n%s", diff)
	}
	wantAvg := (0.24 + 0.18 + 0.3*40.0/45.0 + 0.28 + 0.29) / 4
	if math.Abs(sum.AverageScore-wantAvg) > 1e-9 {
		t.Fatalf("got average %v, want %v", sum.AverageScore, wantAvg)
	}
}

func TestRankWithMemoryStorage(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		store.SaveMessage(ctx, &models.Message{ChatID: 1, MessageID: i, UserID: 77, Sentiment: 0.9, Label: models.SentimentPositive})
	}
	store.UpsertContact(ctx, &models.Contact{UserID: 77, FirstName: "Katherine"})

	leads, err := newTestService(store).Rank(ctx, Filter{})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(leads))
	}
	// 0.4*0.12 + 0.3*0.9 + 0.3*1
	if math.Abs(leads[0].Score-0.618) > 1e-9 {
		t.Fatalf("got score %v, want 0.618", leads[0].Score)
	}
	if leads[0].Category != scoring.CategoryRegular {
		t.Fatalf("got category %q, want %q", leads[0].Category, scoring.CategoryRegular)
	}
}

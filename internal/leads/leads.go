// Package leads ranks contacts as business-development leads. It validates
// the aggregates read from storage, runs them through the scoring engine and
// joins the result with contact profiles.
package leads

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/xaenox/leadbot/internal/models"
	"github.com/xaenox/leadbot/internal/scoring"
	"github.com/xaenox/leadbot/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidAggregate wraps aggregates that break the counting invariants.
var ErrInvalidAggregate = errors.New("invalid contact aggregate")

const (
	// LeadThreshold is the score above which a contact counts as a lead.
	LeadThreshold = 0.5
	// HighValueThreshold is the score above which a lead counts as high value.
	HighValueThreshold = 0.7

	defaultConcurrency = 8
)

// Lead is a scored contact.
type Lead struct {
	Contact   models.Contact           `json:"contact"`
	Name      string                   `json:"name"`
	Aggregate scoring.ContactAggregate `json:"aggregate"`
	scoring.LeadScore
}

// Filter narrows a ranking. Zero values mean no filtering.
type Filter struct {
	Category scoring.Category
	MinScore float64
	Limit    int
}

func (f Filter) match(l Lead) bool {
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	return l.Score >= f.MinScore
}

type Service struct {
	store       storage.Storage
	policy      scoring.Policy
	validate    *validator.Validate
	concurrency int
	logger      *zap.Logger
}

func NewService(store storage.Storage, policy scoring.Policy, logger *zap.Logger) *Service {
	v := validator.New()
	v.RegisterStructValidation(validateCounts, scoring.ContactAggregate{})
	return &Service{
		store:       store,
		policy:      policy,
		validate:    v,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
}

// validateCounts enforces positive + negative <= total.
func validateCounts(sl validator.StructLevel) {
	a := sl.Current().Interface().(scoring.ContactAggregate)
	if a.PositiveCount+a.NegativeCount > a.MessageCount {
		sl.ReportError(a.PositiveCount, "PositiveCount", "PositiveCount", "classified_lte_total", "")
	}
}

// Validate checks an aggregate before it is handed to the scoring engine.
func (s *Service) Validate(a scoring.ContactAggregate) error {
	if err := s.validate.Struct(a); err != nil {
		return fmt.Errorf("%w: user %d: %v", ErrInvalidAggregate, a.UserID, err)
	}
	return nil
}

// Score validates and scores a single aggregate.
func (s *Service) Score(a scoring.ContactAggregate) (scoring.LeadScore, error) {
	if err := s.Validate(a); err != nil {
		return scoring.LeadScore{}, err
	}
	return s.policy.Score(a), nil
}

// Rank returns every valid contact ordered by score, then message count, then
// user id. Invalid aggregates are logged and left out.
func (s *Service) Rank(ctx context.Context, f Filter) ([]Lead, error) {
	aggregates, err := s.store.ListContactAggregates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}

	contacts, err := s.store.ListContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	profiles := make(map[int64]*models.Contact, len(contacts))
	for _, c := range contacts {
		profiles[c.UserID] = c
	}

	scored := make([]*Lead, len(aggregates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, a := range aggregates {
		i, a := i, a
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score, err := s.Score(a)
			if err != nil {
				s.logger.Warn("Skipping contact with invalid aggregate",
					zap.Int64("user_id", a.UserID),
					zap.Error(err))
				return nil
			}
			scored[i] = newLead(a, score, profiles[a.UserID])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	leads := make([]Lead, 0, len(scored))
	for _, l := range scored {
		if l != nil && f.match(*l) {
			leads = append(leads, *l)
		}
	}
	sortLeads(leads)

	if f.Limit > 0 && len(leads) > f.Limit {
		leads = leads[:f.Limit]
	}
	return leads, nil
}

// Get scores one contact. It returns storage.ErrNotFound when the contact has
// no messages.
func (s *Service) Get(ctx context.Context, userID int64) (Lead, error) {
	a, err := s.store.GetContactAggregate(ctx, userID)
	if err != nil {
		return Lead{}, err
	}
	score, err := s.Score(a)
	if err != nil {
		return Lead{}, err
	}

	profile, err := s.store.GetContact(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Lead{}, err
	}
	return *newLead(a, score, profile), nil
}

func newLead(a scoring.ContactAggregate, score scoring.LeadScore, profile *models.Contact) *Lead {
	contact := models.Contact{UserID: a.UserID}
	if profile != nil {
		contact = *profile
	}
	return &Lead{
		Contact:   contact,
		Name:      contact.DisplayName(),
		Aggregate: a,
		LeadScore: score,
	}
}

func sortLeads(leads []Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		a, b := leads[i], leads[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Aggregate.MessageCount != b.Aggregate.MessageCount {
			return a.Aggregate.MessageCount > b.Aggregate.MessageCount
		}
		return a.Aggregate.UserID < b.Aggregate.UserID
	})
}

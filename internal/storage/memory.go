package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/leadbot/internal/models"
	"github.com/xaenox/leadbot/internal/scoring"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	contacts map[int64]*models.Contact
	messages map[string]*models.Message
	byUser   map[int64][]*models.Message
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		contacts: make(map[int64]*models.Contact),
		messages: make(map[string]*models.Message),
		byUser:   make(map[int64][]*models.Message),
	}
}

func messageKey(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

func (s *MemoryStorage) SaveMessage(ctx context.Context, msg *models.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := messageKey(msg.ChatID, msg.MessageID)
	if _, exists := s.messages[key]; exists {
		return false, nil
	}

	stored := *msg
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.messages[key] = &stored
	s.byUser[msg.UserID] = append(s.byUser[msg.UserID], &stored)
	return true, nil
}

func (s *MemoryStorage) CountMessages(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages), nil
}

func (s *MemoryStorage) UpsertContact(ctx context.Context, contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.contacts[contact.UserID]
	if !exists {
		stored := *contact
		s.contacts[contact.UserID] = &stored
		return nil
	}
	existing.Merge(contact)
	return nil
}

func (s *MemoryStorage) GetContact(ctx context.Context, userID int64) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contact, exists := s.contacts[userID]
	if !exists {
		return nil, ErrNotFound
	}
	c := *contact
	return &c, nil
}

func (s *MemoryStorage) ListContacts(ctx context.Context) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contacts := make([]*models.Contact, 0, len(s.contacts))
	for _, contact := range s.contacts {
		c := *contact
		contacts = append(contacts, &c)
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].UserID < contacts[j].UserID })
	return contacts, nil
}

func (s *MemoryStorage) GetContactAggregate(ctx context.Context, userID int64) (scoring.ContactAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, exists := s.byUser[userID]
	if !exists {
		return scoring.ContactAggregate{}, ErrNotFound
	}
	return aggregate(userID, msgs), nil
}

func (s *MemoryStorage) ListContactAggregates(ctx context.Context) ([]scoring.ContactAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	aggregates := make([]scoring.ContactAggregate, 0, len(s.byUser))
	for userID, msgs := range s.byUser {
		aggregates = append(aggregates, aggregate(userID, msgs))
	}
	sort.Slice(aggregates, func(i, j int) bool { return aggregates[i].UserID < aggregates[j].UserID })
	return aggregates, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// aggregate recomputes the statistics from scratch over every stored message.
func aggregate(userID int64, msgs []*models.Message) scoring.ContactAggregate {
	agg := scoring.ContactAggregate{UserID: userID, MessageCount: len(msgs)}
	var sum float64
	for _, m := range msgs {
		sum += m.Sentiment
		switch m.Label {
		case models.SentimentPositive:
			agg.PositiveCount++
		case models.SentimentNegative:
			agg.NegativeCount++
		}
	}
	if len(msgs) > 0 {
		agg.AverageSentiment = sum / float64(len(msgs))
	}
	return agg
}

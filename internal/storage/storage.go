package storage

import (
	"context"
	"errors"

	"github.com/xaenox/leadbot/internal/models"
	"github.com/xaenox/leadbot/internal/scoring"
)

// ErrNotFound is returned when a contact has no stored record.
var ErrNotFound = errors.New("not found")

type Storage interface {
	MessageStorage
	ContactStorage
	Close() error
}

// MessageStorage persists classified messages. Messages are never deleted,
// so per-contact counts only grow.
type MessageStorage interface {
	// SaveMessage stores msg and reports whether it was new. A message that
	// was already stored for the same chat is ignored.
	SaveMessage(ctx context.Context, msg *models.Message) (bool, error)
	CountMessages(ctx context.Context) (int, error)
}

// ContactStorage persists contact profiles and derives aggregates from the
// stored messages on every read.
type ContactStorage interface {
	UpsertContact(ctx context.Context, contact *models.Contact) error
	GetContact(ctx context.Context, userID int64) (*models.Contact, error)
	ListContacts(ctx context.Context) ([]*models.Contact, error)
	GetContactAggregate(ctx context.Context, userID int64) (scoring.ContactAggregate, error)
	ListContactAggregates(ctx context.Context) ([]scoring.ContactAggregate, error)
}

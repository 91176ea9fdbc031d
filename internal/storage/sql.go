package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/xaenox/leadbot/internal/models"
	"github.com/xaenox/leadbot/internal/scoring"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

var placeholderRe = regexp.MustCompile(`\$\d+`)

// dialect captures what differs between the SQL backends. Queries are written
// with $N placeholders, each used once and in order, so they can be rewritten
// to ? for drivers that need it.
type dialect struct {
	name      string
	migration string
	rebind    func(string) string
}

var postgresDialect = dialect{
	name:      "postgres",
	migration: "migrations/postgres.sql",
	rebind:    func(q string) string { return q },
}

var sqliteDialect = dialect{
	name:      "sqlite3",
	migration: "migrations/sqlite.sql",
	rebind:    func(q string) string { return placeholderRe.ReplaceAllString(q, "?") },
}

// sqlStorage implements Storage on top of database/sql.
type sqlStorage struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

func (s *sqlStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile(s.dialect.migration)
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *sqlStorage) q(query string) string {
	return s.dialect.rebind(query)
}

func (s *sqlStorage) SaveMessage(ctx context.Context, msg *models.Message) (bool, error) {
	query := `
		INSERT INTO messages (id, chat_id, message_id, user_id, content, sentiment, confidence, label, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (chat_id, message_id) DO NOTHING`

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, s.q(query),
		msg.ID,
		msg.ChatID,
		msg.MessageID,
		msg.UserID,
		msg.Content,
		msg.Sentiment,
		msg.Confidence,
		string(msg.Label),
		msg.SentAt.UTC(),
		createdAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("error saving message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Debug("Duplicate message ignored",
			zap.Int64("chat_id", msg.ChatID),
			zap.Int("message_id", msg.MessageID))
		return false, nil
	}
	return true, nil
}

func (s *sqlStorage) CountMessages(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting messages: %w", err)
	}
	return count, nil
}

func (s *sqlStorage) UpsertContact(ctx context.Context, contact *models.Contact) error {
	query := `
		INSERT INTO contacts (user_id, username, first_name, last_name, phone, first_seen_at, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			username = CASE WHEN excluded.username <> '' THEN excluded.username ELSE contacts.username END,
			first_name = CASE WHEN excluded.first_name <> '' THEN excluded.first_name ELSE contacts.first_name END,
			last_name = CASE WHEN excluded.last_name <> '' THEN excluded.last_name ELSE contacts.last_name END,
			phone = CASE WHEN excluded.phone <> '' THEN excluded.phone ELSE contacts.phone END,
			first_seen_at = CASE WHEN excluded.first_seen_at < contacts.first_seen_at THEN excluded.first_seen_at ELSE contacts.first_seen_at END,
			last_message_at = CASE WHEN excluded.last_message_at > contacts.last_message_at THEN excluded.last_message_at ELSE contacts.last_message_at END`

	now := time.Now().UTC()
	firstSeen, lastMessage := contact.FirstSeenAt, contact.LastMessageAt
	if firstSeen.IsZero() {
		firstSeen = now
	}
	if lastMessage.IsZero() {
		lastMessage = firstSeen
	}

	_, err := s.db.ExecContext(ctx, s.q(query),
		contact.UserID,
		contact.Username,
		contact.FirstName,
		contact.LastName,
		contact.Phone,
		firstSeen.UTC(),
		lastMessage.UTC(),
	)
	if err != nil {
		return fmt.Errorf("error upserting contact: %w", err)
	}
	return nil
}

const contactColumns = `user_id, username, first_name, last_name, phone, first_seen_at, last_message_at`

func scanContact(row interface{ Scan(...any) error }) (*models.Contact, error) {
	c := &models.Contact{}
	err := row.Scan(
		&c.UserID,
		&c.Username,
		&c.FirstName,
		&c.LastName,
		&c.Phone,
		&c.FirstSeenAt,
		&c.LastMessageAt,
	)
	return c, err
}

func (s *sqlStorage) GetContact(ctx context.Context, userID int64) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1`

	c, err := scanContact(s.db.QueryRowContext(ctx, s.q(query), userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting contact: %w", err)
	}
	return c, nil
}

func (s *sqlStorage) ListContacts(ctx context.Context) ([]*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts ORDER BY user_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// The average is recomputed by the database on every read.
const aggregateSelect = `
	SELECT
		user_id,
		COUNT(*),
		COUNT(CASE WHEN label = 'positive' THEN 1 END),
		COUNT(CASE WHEN label = 'negative' THEN 1 END),
		COALESCE(AVG(sentiment), 0)
	FROM messages`

func scanAggregate(row interface{ Scan(...any) error }) (scoring.ContactAggregate, error) {
	var a scoring.ContactAggregate
	err := row.Scan(&a.UserID, &a.MessageCount, &a.PositiveCount, &a.NegativeCount, &a.AverageSentiment)
	return a, err
}

func (s *sqlStorage) GetContactAggregate(ctx context.Context, userID int64) (scoring.ContactAggregate, error) {
	query := aggregateSelect + ` WHERE user_id = $1 GROUP BY user_id`

	a, err := scanAggregate(s.db.QueryRowContext(ctx, s.q(query), userID))
	if errors.Is(err, sql.ErrNoRows) {
		return scoring.ContactAggregate{}, ErrNotFound
	}
	if err != nil {
		return scoring.ContactAggregate{}, fmt.Errorf("error aggregating contact: %w", err)
	}
	return a, nil
}

func (s *sqlStorage) ListContactAggregates(ctx context.Context) ([]scoring.ContactAggregate, error) {
	query := aggregateSelect + ` GROUP BY user_id ORDER BY user_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying aggregates: %w", err)
	}
	defer rows.Close()

	var aggregates []scoring.ContactAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning aggregate: %w", err)
		}
		aggregates = append(aggregates, a)
	}
	return aggregates, rows.Err()
}

func (s *sqlStorage) Close() error {
	return s.db.Close()
}

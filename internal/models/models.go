package models

import "time"

// SentimentLabel buckets a sentiment score.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// Message is one ingested chat message with its sentiment classification.
type Message struct {
	ID         string         `json:"id"`
	ChatID     int64          `json:"chat_id"`
	MessageID  int            `json:"message_id"`
	UserID     int64          `json:"user_id"`
	Content    string         `json:"content"`
	Sentiment  float64        `json:"sentiment"`
	Confidence float64        `json:"confidence"`
	Label      SentimentLabel `json:"label"`
	SentAt     time.Time      `json:"sent_at"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Contact is the profile of a conversation partner. Message statistics live
// in the messages table and are aggregated on read.
type Contact struct {
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username,omitempty"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

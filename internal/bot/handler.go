package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/xaenox/leadbot/internal/models"
	"go.uber.org/zap"
)

// handleMessage classifies and stores one incoming message. Commands, bot
// messages and messages without a sender are ignored.
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.From == nil || message.Chat == nil || message.From.IsBot || message.IsCommand() {
		return nil
	}

	if message.Contact != nil {
		return b.handleSharedContact(ctx, message)
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	sentAt := message.Time().UTC()
	if err := b.storage.UpsertContact(ctx, &models.Contact{
		UserID:        message.From.ID,
		Username:      message.From.UserName,
		FirstName:     message.From.FirstName,
		LastName:      message.From.LastName,
		FirstSeenAt:   sentAt,
		LastMessageAt: sentAt,
	}); err != nil {
		return fmt.Errorf("failed to upsert contact %d: %w", message.From.ID, err)
	}

	sentiment, err := b.classifier.Classify(ctx, content)
	if err != nil {
		return fmt.Errorf("failed to classify message: %w", err)
	}

	msg := &models.Message{
		ID:         uuid.New().String(),
		ChatID:     message.Chat.ID,
		MessageID:  message.MessageID,
		UserID:     message.From.ID,
		Content:    content,
		Sentiment:  sentiment.Score,
		Confidence: sentiment.Confidence,
		Label:      sentiment.Label,
		SentAt:     sentAt,
		CreatedAt:  b.now().UTC(),
	}
	saved, err := b.storage.SaveMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to save message %s: %w", msg.ID, err)
	}
	if !saved {
		b.logger.Debug("Skipping duplicate message",
			zap.Int64("chat_id", msg.ChatID),
			zap.Int("message_id", msg.MessageID))
		return nil
	}

	b.logger.Debug("Message ingested",
		zap.Int64("user_id", msg.UserID),
		zap.Float64("sentiment", msg.Sentiment),
		zap.String("label", string(msg.Label)))
	return nil
}

// handleSharedContact stores the phone number of a shared contact card on the
// profile of the Telegram user it belongs to.
func (b *Bot) handleSharedContact(ctx context.Context, message *tgbotapi.Message) error {
	card := message.Contact
	if card.UserID == 0 {
		b.logger.Debug("Ignoring contact card without a Telegram user")
		return nil
	}

	contact := &models.Contact{
		UserID:      card.UserID,
		FirstName:   card.FirstName,
		LastName:    card.LastName,
		Phone:       normalizePhone(card.PhoneNumber, b.phoneRegion),
		FirstSeenAt: message.Time().UTC(),
	}
	if err := b.storage.UpsertContact(ctx, contact); err != nil {
		return fmt.Errorf("failed to upsert shared contact %d: %w", card.UserID, err)
	}
	return nil
}

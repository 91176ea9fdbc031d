package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/leadbot/internal/classifier"
	"github.com/xaenox/leadbot/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ingestTimeout bounds one message's classification and storage.
const ingestTimeout = 30 * time.Second

type Config struct {
	Token string
	// APIEndpoint overrides tgbotapi.APIEndpoint, mostly for tests.
	APIEndpoint   string
	SendPerSecond float64
	// PhoneRegion is used for shared phone numbers without a country code.
	PhoneRegion string
}

type Bot struct {
	api         *tgbotapi.BotAPI
	storage     storage.Storage
	classifier  classifier.Classifier
	limiter     *rate.Limiter
	phoneRegion string
	logger      *zap.Logger
	now         func() time.Time
}

func New(cfg Config, storage storage.Storage, classifier classifier.Classifier, logger *zap.Logger) (*Bot, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	perSecond := cfg.SendPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}

	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))
	return &Bot{
		api:         api,
		storage:     storage,
		classifier:  classifier,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), 1),
		phoneRegion: cfg.PhoneRegion,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Start long-polls for updates and ingests every message until ctx is
// cancelled. Messages already being ingested are finished before it returns.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	return b.consume(ctx, updates)
}

func (b *Bot) consume(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			wg.Add(1)
			go func(message *tgbotapi.Message) {
				defer wg.Done()
				// Telegram will not redeliver this update; finish it even
				// during shutdown.
				ingestCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ingestTimeout)
				defer cancel()
				if err := b.handleMessage(ingestCtx, message); err != nil {
					b.logger.Error("Failed to ingest message",
						zap.Error(err),
						zap.Int64("chat_id", message.Chat.ID),
						zap.Int("message_id", message.MessageID))
				}
			}(update.Message)
		}
	}
}

// SendMarkdown delivers a MarkdownV2 message, waiting for the send limiter.
func (b *Bot) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

// Package digest periodically reports leads whose standing changed to the
// owner's Telegram chat.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xaenox/leadbot/internal/bot"
	"github.com/xaenox/leadbot/internal/leads"
	"github.com/xaenox/leadbot/internal/scoring"
	"go.uber.org/zap"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 4000

type Ranker interface {
	Rank(ctx context.Context, f leads.Filter) ([]leads.Lead, error)
}

type Ledger interface {
	Changed(userID int64, score scoring.LeadScore) (bool, error)
	Record(scores map[int64]scoring.LeadScore, at time.Time) error
}

type Sender interface {
	SendMarkdown(ctx context.Context, chatID int64, text string) error
}

type Config struct {
	ChatID   int64
	Schedule string
	MinScore float64
	Limit    int
}

type Digest struct {
	cfg    Config
	ranker Ranker
	ledger Ledger
	sender Sender
	logger *zap.Logger
	now    func() time.Time
}

func New(cfg Config, ranker Ranker, ledger Ledger, sender Sender, logger *zap.Logger) *Digest {
	return &Digest{
		cfg:    cfg,
		ranker: ranker,
		ledger: ledger,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// Start runs the digest on its cron schedule until ctx is cancelled.
func (d *Digest) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(d.cfg.Schedule, func() {
		n, err := d.RunOnce(ctx)
		if err != nil {
			d.logger.Error("Digest run failed", zap.Error(err))
			return
		}
		d.logger.Info("Digest sent", zap.Int("leads", n))
	})
	if err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", d.cfg.Schedule, err)
	}

	d.logger.Info("Digest scheduled",
		zap.String("schedule", d.cfg.Schedule),
		zap.Int64("chat_id", d.cfg.ChatID))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// RunOnce sends one digest and returns how many leads it reported. Nothing is
// sent when no lead changed since the last digest.
func (d *Digest) RunOnce(ctx context.Context) (int, error) {
	ranked, err := d.ranker.Rank(ctx, leads.Filter{MinScore: d.cfg.MinScore})
	if err != nil {
		return 0, fmt.Errorf("rank leads: %w", err)
	}

	var changed []leads.Lead
	for _, l := range ranked {
		ok, err := d.ledger.Changed(l.Aggregate.UserID, l.LeadScore)
		if err != nil {
			return 0, fmt.Errorf("check ledger: %w", err)
		}
		if ok {
			changed = append(changed, l)
		}
		if d.cfg.Limit > 0 && len(changed) == d.cfg.Limit {
			break
		}
	}
	if len(changed) == 0 {
		d.logger.Debug("No lead changes to report")
		return 0, nil
	}

	now := d.now()
	for _, msg := range Render(changed, now) {
		if err := d.sender.SendMarkdown(ctx, d.cfg.ChatID, msg); err != nil {
			return 0, fmt.Errorf("send digest: %w", err)
		}
	}

	scores := make(map[int64]scoring.LeadScore, len(changed))
	for _, l := range changed {
		scores[l.Aggregate.UserID] = l.LeadScore
	}
	if err := d.ledger.Record(scores, now); err != nil {
		return 0, fmt.Errorf("record digest: %w", err)
	}
	return len(changed), nil
}

// Render formats leads as MarkdownV2 messages, splitting between entries so
// that each message fits in one Telegram message.
func Render(ranked []leads.Lead, now time.Time) []string {
	header := fmt.Sprintf("*Lead updates %s*\n\n", bot.EscapeMarkdown(now.Format("2006-01-02")))

	var (
		messages []string
		b        strings.Builder
	)
	b.WriteString(header)
	for i, l := range ranked {
		entry := renderLead(i+1, l)
		if b.Len()+len(entry) > maxMessageLen && b.Len() > len(header) {
			messages = append(messages, strings.TrimRight(b.String(), "\n"))
			b.Reset()
		}
		b.WriteString(entry)
	}
	messages = append(messages, strings.TrimRight(b.String(), "\n"))
	return messages
}

func renderLead(rank int, l leads.Lead) string {
	return fmt.Sprintf("%d\\. *%s* \\(%s\\)\nScore %s, %d messages\n_%s_\n\n",
		rank,
		bot.EscapeMarkdown(l.Name),
		bot.EscapeMarkdown(string(l.Category)),
		bot.EscapeMarkdown(fmt.Sprintf("%.2f", l.Score)),
		l.Aggregate.MessageCount,
		bot.EscapeMarkdown(string(l.Action)),
	)
}

package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedClassifier remembers results by text hash so repeated messages do not
// hit the model again. Redis failures are logged and bypassed.
type CachedClassifier struct {
	next       Classifier
	rdb        redis.Cmdable
	ttl        time.Duration
	prefix     string
	thresholds Thresholds
	logger     *zap.Logger
}

// cachedSentiment holds only the model output. Labels are derived on read
// with the current thresholds.
type cachedSentiment struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

func NewCachedClassifier(next Classifier, rdb redis.Cmdable, ttl time.Duration, prefix string, thresholds Thresholds, logger *zap.Logger) *CachedClassifier {
	return &CachedClassifier{
		next:       next,
		rdb:        rdb,
		ttl:        ttl,
		prefix:     prefix,
		thresholds: thresholds,
		logger:     logger,
	}
}

func (c *CachedClassifier) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *CachedClassifier) Classify(ctx context.Context, text string) (Sentiment, error) {
	key := c.key(text)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entry cachedSentiment
		if err := json.Unmarshal(cached, &entry); err == nil {
			return c.thresholds.sentiment(entry.Score, entry.Confidence), nil
		}
		c.logger.Warn("Dropping corrupt sentiment cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Sentiment cache read failed", zap.Error(err))
	}

	s, err := c.next.Classify(ctx, text)
	if err != nil {
		return Sentiment{}, err
	}

	payload, err := json.Marshal(cachedSentiment{Score: s.Score, Confidence: s.Confidence})
	if err != nil {
		return s, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Sentiment cache write failed", zap.Error(err))
	}
	return s, nil
}

package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/xaenox/leadbot/internal/models"
	"go.uber.org/zap"
)

type countingClassifier struct {
	calls int
	inner Classifier
}

func (c *countingClassifier) Classify(ctx context.Context, text string) (Sentiment, error) {
	c.calls++
	return c.inner.Classify(ctx, text)
}

func TestCachedClassifierHitsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &countingClassifier{inner: NewLexiconClassifier(DefaultThresholds)}
	c := NewCachedClassifier(inner, rdb, time.Hour, "sentiment:", DefaultThresholds, zap.NewNop())

	ctx := context.Background()
	first, err := c.Classify(ctx, "great deal")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	second, err := c.Classify(ctx, "great deal")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if first != second {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls)
	}
	if !mr.Exists(c.key("great deal")) {
		t.Fatal("expected cache key to exist")
	}
	if ttl := mr.TTL(c.key("great deal")); ttl != time.Hour {
		t.Fatalf("got ttl %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := c.Classify(ctx, "great deal"); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected expired entry to be recomputed, got %d calls", inner.calls)
	}
}

func TestCachedClassifierBypassesBrokenRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()

	inner := &countingClassifier{inner: NewLexiconClassifier(DefaultThresholds)}
	c := NewCachedClassifier(inner, rdb, time.Hour, "sentiment:", DefaultThresholds, zap.NewNop())

	got, err := c.Classify(context.Background(), "terrible")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Score != -1 {
		t.Fatalf("got score %v, want -1", got.Score)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls)
	}
}

func TestCachedClassifierDropsCorruptEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &countingClassifier{inner: NewLexiconClassifier(DefaultThresholds)}
	c := NewCachedClassifier(inner, rdb, time.Hour, "sentiment:", DefaultThresholds, zap.NewNop())
	mr.Set(c.key("hello"), "not json")

	if _, err := c.Classify(context.Background(), "hello"); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls)
	}
}

func TestCachedClassifierRelabelsWithCurrentThresholds(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &countingClassifier{inner: NewLexiconClassifier(DefaultThresholds)}
	strict := NewCachedClassifier(inner, rdb, time.Hour, "sentiment:", Thresholds{Positive: 0.95, Negative: -0.95}, zap.NewNop())
	mr.Set(strict.key("we should talk"), `{"score":0.7,"confidence":0.8}`)

	got, err := strict.Classify(context.Background(), "we should talk")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Label != models.SentimentNeutral || got.Score != 0.7 || got.Confidence != 0.8 {
		t.Fatalf("unexpected sentiment %+v", got)
	}

	lenient := NewCachedClassifier(inner, rdb, time.Hour, "sentiment:", DefaultThresholds, zap.NewNop())
	got, err = lenient.Classify(context.Background(), "we should talk")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Label != models.SentimentPositive {
		t.Fatalf("got label %q, want positive", got.Label)
	}
	if inner.calls != 0 {
		t.Fatalf("expected cache hits only, got %d inner calls", inner.calls)
	}
}

package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const sentimentPrompt = `You rate the sentiment of a single chat message from a business contact.
Return a sentiment between -1 (very negative) and 1 (very positive) and your confidence between 0 and 1.
Neutral small talk is 0.`

// gptSentiment is the structured response requested from the model.
type gptSentiment struct {
	Sentiment  float64 `json:"sentiment" jsonschema:"description=Sentiment score from -1 (very negative) to 1 (very positive)"`
	Confidence float64 `json:"confidence" jsonschema:"description=Confidence from 0 to 1"`
}

type GPTConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64

	// RequestsPerMinute caps outgoing calls. Zero means unlimited.
	RequestsPerMinute int
	MaxRetries        int
	RetryDelay        time.Duration

	Thresholds Thresholds
}

type GPTClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
	limiter     *rate.Limiter
	schema      *jsonschema.Schema
	thresholds  Thresholds
	fallback    *LexiconClassifier
	logger      *zap.Logger
}

func NewGPTClassifier(cfg GPTConfig, logger *zap.Logger) *GPTClassifier {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &GPTClassifier{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxRetries:  maxRetries,
		retryDelay:  cfg.RetryDelay,
		limiter:     limiter,
		schema:      sentimentSchema(),
		thresholds:  cfg.Thresholds,
		fallback:    NewLexiconClassifier(cfg.Thresholds),
		logger:      logger,
	}
}

func sentimentSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(&gptSentiment{})
	// Structured outputs reject the meta keywords.
	schema.Version = ""
	schema.ID = ""
	return schema
}

// Classify asks the model for a sentiment. Any failure falls back to the
// lexicon classifier, so the error is always nil unless ctx is done.
func (c *GPTClassifier) Classify(ctx context.Context, text string) (Sentiment, error) {
	if strings.TrimSpace(text) == "" {
		return c.thresholds.sentiment(0, 0), nil
	}

	s, err := c.classifyRemote(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Sentiment{}, ctxErr
		}
		c.logger.Warn("GPT sentiment failed, using lexicon fallback", zap.Error(err))
		return c.fallback.classify(text), nil
	}
	return s, nil
}

func (c *GPTClassifier) classifyRemote(ctx context.Context, text string) (Sentiment, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: sentimentPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "message_sentiment",
				Schema: c.schema,
				Strict: true,
			},
		},
	}

	resp, err := c.createWithRetry(ctx, req)
	if err != nil {
		return Sentiment{}, err
	}
	if len(resp.Choices) == 0 {
		return Sentiment{}, errors.New("empty GPT response")
	}

	var parsed gptSentiment
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		c.logger.Error("Failed to parse GPT response",
			zap.Error(err),
			zap.String("response", content))
		return Sentiment{}, fmt.Errorf("parse GPT response: %w", err)
	}

	return c.thresholds.sentiment(parsed.Sentiment, parsed.Confidence), nil
}

func (c *GPTClassifier) createWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return openai.ChatCompletionResponse{}, err
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == c.maxRetries-1 {
			break
		}

		delay := c.retryDelay * time.Duration(attempt+1)
		c.logger.Debug("Retrying GPT request",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return openai.ChatCompletionResponse{}, fmt.Errorf("GPT request failed: %w", lastErr)
}

// isRetryable reports rate limits and server errors.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	return false
}

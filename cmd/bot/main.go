package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/xaenox/leadbot/internal/api"
	"github.com/xaenox/leadbot/internal/bot"
	"github.com/xaenox/leadbot/internal/classifier"
	"github.com/xaenox/leadbot/internal/digest"
	"github.com/xaenox/leadbot/internal/leads"
	"github.com/xaenox/leadbot/internal/ledger"
	"github.com/xaenox/leadbot/internal/storage"
	"github.com/xaenox/leadbot/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Bot stopped with error", zap.Error(err))
	}
	logger.Info("Bot stopped")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := newStorage(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	clf, closeClassifier, err := newClassifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClassifier()

	service := leads.NewService(store, cfg.ScoringPolicy(), logger)

	b, err := bot.New(bot.Config{
		Token:         cfg.Telegram.Token,
		SendPerSecond: cfg.Telegram.SendPerSecond,
		PhoneRegion:   cfg.Telegram.PhoneRegion,
	}, store, clf, logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Start(ctx)
	})

	if cfg.Digest.Enabled {
		l, err := ledger.Open(cfg.Ledger.Path, cfg.Ledger.ScoreDelta)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		defer l.Close()

		d := digest.New(digest.Config{
			ChatID:   cfg.Telegram.OwnerChatID,
			Schedule: cfg.Digest.Schedule,
			MinScore: cfg.Digest.MinScore,
			Limit:    cfg.Digest.Limit,
		}, service, l, b, logger)
		g.Go(func() error {
			return d.Start(ctx)
		})
	}

	if cfg.HTTP.Enabled {
		srv := api.NewServer(api.Config{
			Addr:           cfg.HTTP.Addr,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Rate:           cfg.HTTP.Rate,
			Burst:          cfg.HTTP.Burst,
		}, service, logger)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	logger.Info("Bot started",
		zap.String("database", cfg.Database.Driver),
		zap.Bool("digest", cfg.Digest.Enabled),
		zap.Bool("http", cfg.HTTP.Enabled))
	return g.Wait()
}

func newStorage(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "postgres":
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Host), zap.String("dbname", cfg.DBName))
		store, err := storage.NewPostgresStorage(ctx, storage.DatabaseConfig{
			Driver:   cfg.Driver,
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.DBName,
			SSLMode:  cfg.SSLMode,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, nil
	case "sqlite":
		logger.Info("Using SQLite storage", zap.String("path", cfg.Path))
		store, err := storage.NewSQLiteStorage(ctx, cfg.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, nil
	default:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	}
}

// newClassifier builds the lexicon classifier, upgraded to GPT when an API
// key is configured and wrapped in a Redis cache when enabled.
func newClassifier(cfg *config.Config, logger *zap.Logger) (classifier.Classifier, func(), error) {
	thresholds := classifier.Thresholds{
		Positive: cfg.Classifier.PositiveThreshold,
		Negative: cfg.Classifier.NegativeThreshold,
	}

	var clf classifier.Classifier = classifier.NewLexiconClassifier(thresholds)
	if cfg.OpenAI.APIKey != "" {
		logger.Info("Using GPT sentiment classifier", zap.String("model", cfg.OpenAI.Model))
		clf = classifier.NewGPTClassifier(classifier.GPTConfig{
			APIKey:            cfg.OpenAI.APIKey,
			BaseURL:           cfg.OpenAI.BaseURL,
			Model:             cfg.OpenAI.Model,
			MaxTokens:         cfg.OpenAI.MaxTokens,
			Temperature:       cfg.OpenAI.Temperature,
			RequestsPerMinute: cfg.OpenAI.RequestsPerMinute,
			MaxRetries:        cfg.OpenAI.MaxRetries,
			RetryDelay:        cfg.OpenAI.RetryDelay,
			Thresholds:        thresholds,
		}, logger)
	} else {
		logger.Info("OpenAI API key not set, using lexicon sentiment classifier")
	}

	if !cfg.Redis.Enabled {
		return clf, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	logger.Info("Caching sentiment in Redis", zap.String("addr", opts.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	return classifier.NewCachedClassifier(clf, rdb, cfg.Redis.TTL, cfg.Redis.Prefix, thresholds, logger), closeFn, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/xaenox/leadbot/internal/scoring"
)

type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Digest     DigestConfig     `mapstructure:"digest"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
}

type TelegramConfig struct {
	Token         string  `mapstructure:"token"`
	OwnerChatID   int64   `mapstructure:"owner_chat_id"`
	SendPerSecond float64 `mapstructure:"send_per_second"`
	PhoneRegion   string  `mapstructure:"phone_region"`
}

type DatabaseConfig struct {
	// Driver is one of memory, postgres or sqlite.
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// Path is the sqlite database file.
	Path string `mapstructure:"path"`
}

type OpenAIConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
}

type ClassifierConfig struct {
	PositiveThreshold float64 `mapstructure:"positive_threshold"`
	NegativeThreshold float64 `mapstructure:"negative_threshold"`
}

type WeightsConfig struct {
	Engagement float64 `mapstructure:"engagement"`
	Sentiment  float64 `mapstructure:"sentiment"`
	Ratio      float64 `mapstructure:"ratio"`
}

type ScoringConfig struct {
	Weights              WeightsConfig `mapstructure:"weights"`
	EngagementSaturation int           `mapstructure:"engagement_saturation"`
	HighValueMessages    int           `mapstructure:"high_value_messages"`
	HighValueSentiment   float64       `mapstructure:"high_value_sentiment"`
	ActiveMessages       int           `mapstructure:"active_messages"`
	ActiveSentiment      float64       `mapstructure:"active_sentiment"`
	RegularMessages      int           `mapstructure:"regular_messages"`
	PositiveSentiment    float64       `mapstructure:"positive_sentiment"`
}

type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
}

type DigestConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	Schedule string  `mapstructure:"schedule"`
	MinScore float64 `mapstructure:"min_score"`
	Limit    int     `mapstructure:"limit"`
}

type LedgerConfig struct {
	Path       string  `mapstructure:"path"`
	ScoreDelta float64 `mapstructure:"score_delta"`
}

type HTTPConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Rate           float64  `mapstructure:"rate"`
	Burst          int      `mapstructure:"burst"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.owner_chat_id", 0)
	v.SetDefault("telegram.send_per_second", 1.0)
	v.SetDefault("telegram.phone_region", "")

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "leadbot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/leadbot.db")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 60)
	v.SetDefault("openai.temperature", 0.0)
	v.SetDefault("openai.requests_per_minute", 60)
	v.SetDefault("openai.max_retries", 3)
	v.SetDefault("openai.retry_delay", time.Second)

	v.SetDefault("classifier.positive_threshold", 0.5)
	v.SetDefault("classifier.negative_threshold", -0.5)

	def := scoring.DefaultPolicy()
	v.SetDefault("scoring.weights.engagement", def.Weights.Engagement)
	v.SetDefault("scoring.weights.sentiment", def.Weights.Sentiment)
	v.SetDefault("scoring.weights.ratio", def.Weights.Ratio)
	v.SetDefault("scoring.engagement_saturation", def.EngagementSaturation)
	v.SetDefault("scoring.high_value_messages", def.HighValueMessages)
	v.SetDefault("scoring.high_value_sentiment", def.HighValueSentiment)
	v.SetDefault("scoring.active_messages", def.ActiveMessages)
	v.SetDefault("scoring.active_sentiment", def.ActiveSentiment)
	v.SetDefault("scoring.regular_messages", def.RegularMessages)
	v.SetDefault("scoring.positive_sentiment", def.PositiveSentiment)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.ttl", 7*24*time.Hour)
	v.SetDefault("redis.prefix", "leadbot:sentiment:")

	v.SetDefault("digest.enabled", false)
	v.SetDefault("digest.schedule", "0 9 * * *")
	v.SetDefault("digest.min_score", 0.5)
	v.SetDefault("digest.limit", 20)

	v.SetDefault("ledger.path", "data/ledger.db")
	v.SetDefault("ledger.score_delta", 0.05)

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{})
	v.SetDefault("http.rate", 5.0)
	v.SetDefault("http.burst", 10)

	v.SetDefault("log.development", false)
}

// parseDatabaseURL understands postgres:// and sqlite:// URLs.
func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	switch u.Scheme {
	case "sqlite", "sqlite3":
		path := u.Opaque
		if path == "" {
			path = u.Host + u.Path
		}
		if path == "" {
			return DatabaseConfig{}, fmt.Errorf("sqlite URL %q has no path", dbURL)
		}
		return DatabaseConfig{Driver: "sqlite", Path: path}, nil
	case "postgres", "postgresql":
	default:
		return DatabaseConfig{}, fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads the YAML file at path when it exists, then applies
// environment overrides. Nested keys map to upper-case variables with dots
// replaced by underscores, so telegram.token is TELEGRAM_TOKEN and
// openai.api_key is OPENAI_API_KEY. DATABASE_URL replaces the whole
// database section.
func LoadConfig(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ScoringPolicy maps the scoring section onto the engine's policy.
func (c *Config) ScoringPolicy() scoring.Policy {
	s := c.Scoring
	return scoring.Policy{
		Weights: scoring.Weights{
			Engagement: s.Weights.Engagement,
			Sentiment:  s.Weights.Sentiment,
			Ratio:      s.Weights.Ratio,
		},
		EngagementSaturation: s.EngagementSaturation,
		HighValueMessages:    s.HighValueMessages,
		HighValueSentiment:   s.HighValueSentiment,
		ActiveMessages:       s.ActiveMessages,
		ActiveSentiment:      s.ActiveSentiment,
		RegularMessages:      s.RegularMessages,
		PositiveSentiment:    s.PositiveSentiment,
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if c.Digest.Enabled && c.Telegram.OwnerChatID == 0 {
		errs = append(errs, errors.New("telegram.owner_chat_id is required when the digest is enabled"))
	}

	switch c.Database.Driver {
	case "memory", "postgres":
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	if c.Classifier.NegativeThreshold >= c.Classifier.PositiveThreshold {
		errs = append(errs, errors.New("classifier.negative_threshold must be below classifier.positive_threshold"))
	}

	w := c.Scoring.Weights
	if w.Engagement < 0 || w.Sentiment < 0 || w.Ratio < 0 {
		errs = append(errs, errors.New("scoring weights must not be negative"))
	}
	if sum := w.Engagement + w.Sentiment + w.Ratio; math.Abs(sum-1) > 1e-9 {
		errs = append(errs, fmt.Errorf("scoring weights must sum to 1, got %g", sum))
	}
	if c.Scoring.EngagementSaturation <= 0 {
		errs = append(errs, errors.New("scoring.engagement_saturation must be positive"))
	}
	if !(c.Scoring.RegularMessages < c.Scoring.ActiveMessages && c.Scoring.ActiveMessages < c.Scoring.HighValueMessages) {
		errs = append(errs, errors.New("scoring message thresholds must increase from regular to active to high value"))
	}

	if c.Ledger.ScoreDelta <= 0 {
		errs = append(errs, errors.New("ledger.score_delta must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

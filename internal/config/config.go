package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"trendpulse/internal/core"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App           App           `mapstructure:"app"`
	Logging       Logging       `mapstructure:"logging"`
	Pipeline      Pipeline      `mapstructure:"pipeline"`
	Sources       Sources       `mapstructure:"sources"`
	Dedup         Dedup         `mapstructure:"dedup"`
	Enrichment    Enrichment    `mapstructure:"enrichment"`
	Taxonomy      Taxonomy      `mapstructure:"taxonomy"`
	Scoring       Scoring       `mapstructure:"scoring"`
	Pitch         Pitch         `mapstructure:"pitch"`
	Validation    Validation    `mapstructure:"validation"`
	Retention     Retention     `mapstructure:"retention"`
	Database      Database      `mapstructure:"database"`
	Redis         Redis         `mapstructure:"redis"`
	Kafka         Kafka         `mapstructure:"kafka"`
	Server        Server        `mapstructure:"server"`
	Messaging     Messaging     `mapstructure:"messaging"`
	Email         Email         `mapstructure:"email"`
	Output        Output        `mapstructure:"output"`
	Observability Observability `mapstructure:"observability"`
}

// App holds general application configuration
type App struct {
	Debug       bool   `mapstructure:"debug"`
	DataDir     string `mapstructure:"data_dir"`
	ConfigFile  string `mapstructure:"config_file"`
	Environment string `mapstructure:"environment"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Pipeline holds run-level configuration
type Pipeline struct {
	Markets    []string `mapstructure:"markets"`
	Keywords   []string `mapstructure:"keywords"`
	Interval   string   `mapstructure:"interval"`
	RunTimeout string   `mapstructure:"run_timeout"`
}

// Sources holds source adapter configuration
type Sources struct {
	Enabled     []string       `mapstructure:"enabled"`
	Timeout     string         `mapstructure:"timeout"`
	Priority    map[string]int `mapstructure:"priority"`
	RSS         RSSConfig      `mapstructure:"rss"`
	File        FileSource     `mapstructure:"file"`
	StyleFeeds  []FeedConfig   `mapstructure:"style_feeds"`
	SignalsFile string         `mapstructure:"signals_file"`
}

// RSSConfig holds RSS adapter configuration
type RSSConfig struct {
	Feeds     []FeedConfig `mapstructure:"feeds"`
	RateLimit float64      `mapstructure:"rate_limit"` // requests per second across feeds
	Burst     int          `mapstructure:"burst"`
	UserAgent string       `mapstructure:"user_agent"`
	MaxItems  int          `mapstructure:"max_items"`
}

// FeedConfig describes a single feed
type FeedConfig struct {
	Name   string `mapstructure:"name"`
	URL    string `mapstructure:"url"`
	Market string `mapstructure:"market"`
}

// FileSource holds the JSON drop-file adapter configuration
type FileSource struct {
	Path string `mapstructure:"path"`
}

// Dedup holds near-duplicate merge calibration
type Dedup struct {
	Threshold   float64 `mapstructure:"threshold"`
	TitleWeight float64 `mapstructure:"title_weight"`
}

// Enrichment holds entity and language configuration
type Enrichment struct {
	FallbackLanguage string              `mapstructure:"fallback_language"`
	Seeds            map[string][]string `mapstructure:"seeds"` // entity kind -> names
	Gemini           GeminiConfig        `mapstructure:"gemini"`
}

// GeminiConfig holds the optional NLP entity extractor configuration
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout string `mapstructure:"timeout"`
}

// Taxonomy holds the topic taxonomy
type Taxonomy struct {
	Uncategorized string        `mapstructure:"uncategorized"`
	Priority      []string      `mapstructure:"priority"` // optional explicit order, defaults to topic order
	Topics        []TopicConfig `mapstructure:"topics"`
}

// TopicConfig is one taxonomy topic
type TopicConfig struct {
	Key            string             `mapstructure:"key"`
	Name           string             `mapstructure:"name"`
	Keywords       []string           `mapstructure:"keywords"`
	KeywordWeights map[string]float64 `mapstructure:"keyword_weights"`
	Subtopics      []SubtopicConfig   `mapstructure:"subtopics"`
	RiskBase       float64            `mapstructure:"risk_base"` // 0-100
	RiskPhrase     string             `mapstructure:"risk_phrase"`
}

// SubtopicConfig is one subtopic of a topic
type SubtopicConfig struct {
	Key      string   `mapstructure:"key"`
	Keywords []string `mapstructure:"keywords"`
}

// Scoring holds scoring weights, vocabularies and thresholds
type Scoring struct {
	Weights             core.Weights       `mapstructure:"weights"`
	ReachCeiling        float64            `mapstructure:"reach_ceiling"`
	MarketWeights       map[string]float64 `mapstructure:"market_weights"`
	DefaultMarketWeight float64            `mapstructure:"default_market_weight"`
	AdjacencyVocabulary map[string]float64 `mapstructure:"adjacency_vocabulary"`
	ArtistBonus         float64            `mapstructure:"artist_bonus"`
	RiskVocabulary      map[string]float64 `mapstructure:"risk_vocabulary"`
	TopicRiskBlend      float64            `mapstructure:"topic_risk_blend"`
	Thresholds          Thresholds         `mapstructure:"thresholds"`
}

// Thresholds holds decision thresholds
type Thresholds struct {
	Engage         float64 `mapstructure:"engage"`
	HighAdjacency  float64 `mapstructure:"high_adjacency"`
	HighPriority   float64 `mapstructure:"high_priority"`
	MediumPriority float64 `mapstructure:"medium_priority"`
	RiskMedium     float64 `mapstructure:"risk_medium"` // lowest score of the medium band
	RiskHigh       float64 `mapstructure:"risk_high"`   // scores above this are high
}

// Pitch holds trend-jack pitch card configuration
type Pitch struct {
	Markets           []string `mapstructure:"markets"`
	Window            string   `mapstructure:"window"`
	MinSpikeScore     float64  `mapstructure:"min_spike_score"`
	SpikeSignificance float64  `mapstructure:"spike_significance"`
	StyleSignificance float64  `mapstructure:"style_significance"`
	CardsPerMarket    int      `mapstructure:"cards_per_market"`
	Interval          string   `mapstructure:"interval"`
}

// Validation holds Risk Validator configuration
type Validation struct {
	Staleness string `mapstructure:"staleness"`
	Interval  string `mapstructure:"interval"`
}

// Retention holds data cleanup configuration
type Retention struct {
	Days     int    `mapstructure:"days"`
	Interval string `mapstructure:"interval"`
}

// Database holds persistence configuration
type Database struct {
	Driver           string `mapstructure:"driver"` // sqlite or postgres
	ConnectionString string `mapstructure:"connection_string"`
	MaxOpenConns     int    `mapstructure:"max_open_conns"`
	MaxIdleConns     int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  string `mapstructure:"conn_max_lifetime"`
}

// Redis holds baseline cache and distributed lock configuration
type Redis struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
	LockTTL   string `mapstructure:"lock_ttl"`
}

// Kafka holds event publishing configuration
type Kafka struct {
	Brokers      []string `mapstructure:"brokers"`
	RecordsTopic string   `mapstructure:"records_topic"`
	CardsTopic   string   `mapstructure:"cards_topic"`
	RunsTopic    string   `mapstructure:"runs_topic"`
}

// Server holds HTTP server configuration
type Server struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORS          `mapstructure:"cors"`
	RateLimit       RateLimit     `mapstructure:"rate_limit"`
}

// CORS holds CORS configuration
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimit holds request throttling configuration
type RateLimit struct {
	Enabled  bool `mapstructure:"enabled"`
	Requests int  `mapstructure:"requests"`
}

// Messaging holds webhook notification configuration
type Messaging struct {
	Timeout       string   `mapstructure:"timeout"`
	NotifyActions []string `mapstructure:"notify_actions"`
	Slack         Webhook  `mapstructure:"slack"`
	Discord       Webhook  `mapstructure:"discord"`
}

// Webhook holds a single webhook target
type Webhook struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
}

// Email holds digest email configuration
type Email struct {
	SMTP        SMTPConfig `mapstructure:"smtp"`
	FromAddress string     `mapstructure:"from_address"`
	FromName    string     `mapstructure:"from_name"`
	Recipients  []string   `mapstructure:"recipients"`
}

// SMTPConfig holds SMTP configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Output holds digest output configuration
type Output struct {
	Directory string `mapstructure:"directory"`
	TopN      int    `mapstructure:"top_n"`
}

// Observability holds error reporting and metrics configuration
type Observability struct {
	SentryDSN      string `mapstructure:"sentry_dsn"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// Load loads the configuration from .env, the config file, environment
// variables and defaults. Each call returns a fresh, validated Config.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".trendpulse")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = v.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Default returns the built-in configuration without reading files or the
// environment. Tests start from it and override calibration values.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		panic(fmt.Sprintf("default configuration does not decode: %v", err))
	}
	if err := postProcessConfig(config); err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.debug", false)
	v.SetDefault("app.data_dir", ".trendpulse")
	v.SetDefault("app.environment", "development")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Pipeline defaults
	v.SetDefault("pipeline.markets", []string{"NG", "KE", "GH", "ZA"})
	v.SetDefault("pipeline.keywords", []string{})
	v.SetDefault("pipeline.interval", "4h")
	v.SetDefault("pipeline.run_timeout", "15m")

	// Sources defaults
	v.SetDefault("sources.enabled", []string{"rss"})
	v.SetDefault("sources.timeout", "30s")
	v.SetDefault("sources.rss.rate_limit", 2.0)
	v.SetDefault("sources.rss.burst", 1)
	v.SetDefault("sources.rss.user_agent", "TrendPulse/1.0")
	v.SetDefault("sources.rss.max_items", 50)

	// Dedup defaults
	v.SetDefault("dedup.threshold", 0.5)
	v.SetDefault("dedup.title_weight", 0.5)

	// Enrichment defaults
	v.SetDefault("enrichment.fallback_language", "en")
	v.SetDefault("enrichment.gemini.model", "gemini-flash-lite-latest")
	v.SetDefault("enrichment.gemini.timeout", "20s")

	// Taxonomy defaults
	v.SetDefault("taxonomy.uncategorized", "uncategorized")

	// Scoring defaults
	v.SetDefault("scoring.weights.velocity", 0.25)
	v.SetDefault("scoring.weights.reach", 0.20)
	v.SetDefault("scoring.weights.market_impact", 0.20)
	v.SetDefault("scoring.weights.spotify_adjacency", 0.20)
	v.SetDefault("scoring.weights.risk", 0.15)
	v.SetDefault("scoring.reach_ceiling", 1000000.0)
	v.SetDefault("scoring.default_market_weight", 1.0)
	v.SetDefault("scoring.artist_bonus", 25.0)
	v.SetDefault("scoring.topic_risk_blend", 0.2)
	v.SetDefault("scoring.thresholds.engage", 60.0)
	v.SetDefault("scoring.thresholds.high_adjacency", 70.0)
	v.SetDefault("scoring.thresholds.high_priority", 75.0)
	v.SetDefault("scoring.thresholds.medium_priority", 50.0)
	v.SetDefault("scoring.thresholds.risk_medium", 34.0)
	v.SetDefault("scoring.thresholds.risk_high", 66.0)

	// Pitch defaults
	v.SetDefault("pitch.markets", []string{"NG", "KE", "GH", "ZA"})
	v.SetDefault("pitch.window", "48h")
	v.SetDefault("pitch.min_spike_score", 30.0)
	v.SetDefault("pitch.spike_significance", 60.0)
	v.SetDefault("pitch.style_significance", 50.0)
	v.SetDefault("pitch.cards_per_market", 6)
	v.SetDefault("pitch.interval", "6h")

	// Validation and retention defaults
	v.SetDefault("validation.staleness", "24h")
	v.SetDefault("validation.interval", "12h")
	v.SetDefault("retention.days", 30)
	v.SetDefault("retention.interval", "24h")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Redis and Kafka defaults
	v.SetDefault("redis.key_prefix", "trendpulse")
	v.SetDefault("redis.lock_ttl", "30m")
	v.SetDefault("kafka.records_topic", "trendpulse.records")
	v.SetDefault("kafka.cards_topic", "trendpulse.pitch-cards")
	v.SetDefault("kafka.runs_topic", "trendpulse.runs")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors.enabled", false)
	v.SetDefault("server.rate_limit.enabled", false)
	v.SetDefault("server.rate_limit.requests", 100)

	// Messaging and email defaults
	v.SetDefault("messaging.timeout", "10s")
	v.SetDefault("messaging.notify_actions", []string{string(core.ActionEscalate)})
	v.SetDefault("messaging.slack.username", "TrendPulse")
	v.SetDefault("messaging.discord.username", "TrendPulse")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.from_name", "TrendPulse")

	// Output defaults
	v.SetDefault("output.directory", "digests")
	v.SetDefault("output.top_n", 10)

	v.SetDefault("observability.metrics_enabled", true)
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvKeys(v, "database.connection_string", []string{
		"DATABASE_URL",
		"TRENDPULSE_DATABASE_URL",
	})

	bindEnvKeys(v, "redis.url", []string{
		"REDIS_URL",
	})

	bindEnvKeys(v, "enrichment.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys(v, "messaging.slack.webhook_url", []string{
		"SLACK_WEBHOOK_URL",
		"SLACK_WEBHOOK",
	})

	bindEnvKeys(v, "messaging.discord.webhook_url", []string{
		"DISCORD_WEBHOOK_URL",
		"DISCORD_WEBHOOK",
	})

	bindEnvKeys(v, "email.smtp.host", []string{"SMTP_HOST"})
	bindEnvKeys(v, "email.smtp.username", []string{"SMTP_USERNAME"})
	bindEnvKeys(v, "email.smtp.password", []string{"SMTP_PASSWORD"})

	bindEnvKeys(v, "observability.sentry_dsn", []string{
		"SENTRY_DSN",
	})

	bindEnvKeys(v, "app.debug", []string{
		"DEBUG",
		"TRENDPULSE_DEBUG",
	})

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		v.Set("kafka.brokers", strings.Split(brokers, ","))
	}
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(v *viper.Viper, key string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(key, value)
			return
		}
	}
}

// postProcessConfig fills built-in vocabularies, normalizes keys viper
// lowercased, expands paths and validates durations.
func postProcessConfig(config *Config) error {
	if len(config.Taxonomy.Topics) == 0 {
		config.Taxonomy.Topics = DefaultTopics()
	}
	if len(config.Enrichment.Seeds) == 0 {
		config.Enrichment.Seeds = DefaultSeeds()
	}
	if len(config.Scoring.AdjacencyVocabulary) == 0 {
		config.Scoring.AdjacencyVocabulary = DefaultAdjacencyVocabulary()
	}
	if len(config.Scoring.RiskVocabulary) == 0 {
		config.Scoring.RiskVocabulary = DefaultRiskVocabulary()
	}
	if len(config.Scoring.MarketWeights) == 0 {
		config.Scoring.MarketWeights = DefaultMarketWeights()
	}
	if len(config.Sources.Priority) == 0 {
		config.Sources.Priority = DefaultSourcePriority()
	}

	// viper lowercases map keys; market codes are upper case everywhere else
	weights := make(map[string]float64, len(config.Scoring.MarketWeights))
	for market, w := range config.Scoring.MarketWeights {
		weights[strings.ToUpper(market)] = w
	}
	config.Scoring.MarketWeights = weights
	config.Pipeline.Markets = upperAll(config.Pipeline.Markets)
	config.Pitch.Markets = upperAll(config.Pitch.Markets)

	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Output.Directory != "" {
		config.Output.Directory = expandPath(config.Output.Directory)
	}
	if config.Sources.File.Path != "" {
		config.Sources.File.Path = expandPath(config.Sources.File.Path)
	}
	if config.Sources.SignalsFile != "" {
		config.Sources.SignalsFile = expandPath(config.Sources.SignalsFile)
	}

	durations := map[string]string{
		"pipeline.interval":          config.Pipeline.Interval,
		"pipeline.run_timeout":       config.Pipeline.RunTimeout,
		"sources.timeout":            config.Sources.Timeout,
		"enrichment.gemini.timeout":  config.Enrichment.Gemini.Timeout,
		"pitch.window":               config.Pitch.Window,
		"pitch.interval":             config.Pitch.Interval,
		"validation.staleness":       config.Validation.Staleness,
		"validation.interval":        config.Validation.Interval,
		"retention.interval":         config.Retention.Interval,
		"database.conn_max_lifetime": config.Database.ConnMaxLifetime,
		"redis.lock_ttl":             config.Redis.LockTTL,
		"messaging.timeout":          config.Messaging.Timeout,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

func upperAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// WeightEpsilon is the tolerance for scoring weights summing to 1.0.
const WeightEpsilon = 1e-6

// Validate checks semantic constraints. Any problem is fatal and wraps
// core.ErrConfigurationInvalid.
func (c *Config) Validate() error {
	var errors []string

	w := c.Scoring.Weights
	for name, value := range map[string]float64{
		"velocity":          w.Velocity,
		"reach":             w.Reach,
		"market_impact":     w.MarketImpact,
		"spotify_adjacency": w.SpotifyAdjacency,
		"risk":              w.Risk,
	} {
		if value < 0 || value > 1 {
			errors = append(errors, fmt.Sprintf("scoring weight %s must be within [0,1], got %g", name, value))
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > WeightEpsilon {
		errors = append(errors, fmt.Sprintf("scoring weights must sum to 1.0, got %.6f", sum))
	}

	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		errors = append(errors, fmt.Sprintf("dedup.threshold must be within (0,1], got %g", c.Dedup.Threshold))
	}
	if c.Dedup.TitleWeight < 0 || c.Dedup.TitleWeight > 1 {
		errors = append(errors, fmt.Sprintf("dedup.title_weight must be within [0,1], got %g", c.Dedup.TitleWeight))
	}

	t := c.Scoring.Thresholds
	if t.RiskMedium <= 0 || t.RiskHigh <= t.RiskMedium || t.RiskHigh >= 100 {
		errors = append(errors, fmt.Sprintf("risk thresholds must satisfy 0 < risk_medium < risk_high < 100, got %g and %g", t.RiskMedium, t.RiskHigh))
	}
	if t.HighAdjacency <= 0 || t.HighAdjacency > 100 {
		errors = append(errors, fmt.Sprintf("scoring.thresholds.high_adjacency must be within (0,100], got %g", t.HighAdjacency))
	}
	if c.Scoring.TopicRiskBlend < 0 || c.Scoring.TopicRiskBlend > 1 {
		errors = append(errors, "scoring.topic_risk_blend must be within [0,1]")
	}
	if c.Scoring.ReachCeiling <= 0 {
		errors = append(errors, "scoring.reach_ceiling must be positive")
	}

	errors = append(errors, c.validateTaxonomy()...)

	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.ConnectionString == "" {
			errors = append(errors, "postgres requires a connection string. Set DATABASE_URL or database.connection_string")
		}
	default:
		errors = append(errors, fmt.Sprintf("unknown database driver: %s. Supported: sqlite, postgres", c.Database.Driver))
	}

	if c.Email.SMTP.Host != "" && len(c.Email.Recipients) == 0 {
		errors = append(errors, "email.recipients is required when SMTP is configured")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%w: configuration errors:\n- %s", core.ErrConfigurationInvalid, strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateTaxonomy() []string {
	var errors []string
	keys := make(map[string]bool)
	for i, topic := range c.Taxonomy.Topics {
		if topic.Key == "" {
			errors = append(errors, fmt.Sprintf("taxonomy topic #%d has no key", i))
			continue
		}
		if keys[topic.Key] {
			errors = append(errors, fmt.Sprintf("duplicate taxonomy topic key: %s", topic.Key))
		}
		keys[topic.Key] = true
		if topic.RiskBase < 0 || topic.RiskBase > 100 {
			errors = append(errors, fmt.Sprintf("topic %s risk_base must be within [0,100]", topic.Key))
		}
	}
	if c.Taxonomy.Uncategorized == "" {
		errors = append(errors, "taxonomy.uncategorized must be set")
	} else if keys[c.Taxonomy.Uncategorized] {
		errors = append(errors, fmt.Sprintf("taxonomy.uncategorized %q collides with a configured topic", c.Taxonomy.Uncategorized))
	}

	var unknown []string
	for _, key := range c.Taxonomy.Priority {
		if !keys[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		errors = append(errors, fmt.Sprintf("taxonomy.priority references unknown topic keys: %s", strings.Join(unknown, ", ")))
	}
	return errors
}

// Duration parses a validated duration string, returning fallback when empty.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// TopicOrder returns topic keys in priority order.
func (t Taxonomy) TopicOrder() []string {
	order := make([]string, 0, len(t.Topics))
	seen := make(map[string]bool)
	for _, key := range t.Priority {
		if !seen[key] {
			order = append(order, key)
			seen[key] = true
		}
	}
	for _, topic := range t.Topics {
		if !seen[topic.Key] {
			order = append(order, topic.Key)
			seen[topic.Key] = true
		}
	}
	return order
}

// Topic looks up a topic by key.
func (t Taxonomy) Topic(key string) (TopicConfig, bool) {
	for _, topic := range t.Topics {
		if topic.Key == key {
			return topic, true
		}
	}
	return TopicConfig{}, false
}

// DatabasePath returns the SQLite database directory.
func (c *Config) DatabasePath() string {
	if c.Database.ConnectionString != "" && c.Database.Driver == "sqlite" {
		return c.Database.ConnectionString
	}
	return c.App.DataDir
}

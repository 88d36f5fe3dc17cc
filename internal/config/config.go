package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath       = "CONFIG_PATH"
	EnvDBConnection     = "DB_CONNECTION"
	EnvAnalysisProvider = "ANALYSIS_PROVIDER"
	EnvAnalysisAPIKey   = "ANALYSIS_API_KEY"
	EnvRedisAddr        = "REDIS_ADDR"
	EnvArchiveSecretKey = "ARCHIVE_SECRET_KEY"
	EnvDebug            = "DEBUG"
)

// Analysis provider identifiers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	defaultPort            = 8318
	defaultAnalysisModel   = "gpt-4o-mini"
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultPromptVersion   = "1.0"
	defaultMaxTokens       = 1500
	defaultAnalysisTimeout = 60 * time.Second
	defaultOpenAIURL       = "https://api.openai.com/v1/chat/completions"
	defaultInputPrice      = 0.2
	defaultOutputPrice     = 0.8
	defaultMaxUploadBytes  = 10 << 20
	defaultRedisPrefix     = "reportanalyzer:inflight"
	defaultReservationTTL  = 2 * time.Minute
	reservationTTLSlack    = 30 * time.Second
	defaultArchiveBucket   = "battle-reports"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// Duration unmarshals YAML strings such as "60s" or plain seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	if seconds, errAtoi := strconv.Atoi(raw); errAtoi == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	parsed, errParse := time.ParseDuration(raw)
	if errParse != nil {
		return fmt.Errorf("parse duration %q: %w", raw, errParse)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full service configuration.
type Config struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Debug         bool   `yaml:"debug"`
	LoggingToFile bool   `yaml:"logging-to-file"`
	LogDir        string `yaml:"log-dir"`

	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Analysis    AnalysisConfig    `yaml:"analysis"`
	Upload      UploadConfig      `yaml:"upload"`
	Reservation ReservationConfig `yaml:"reservation"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Auth        AuthConfig        `yaml:"auth"`
	Pricing     PricingConfig     `yaml:"pricing"`
	Seed        SeedConfig        `yaml:"seed"`
}

// AnalysisConfig configures the extraction backend.
type AnalysisConfig struct {
	Provider      string   `yaml:"provider"`
	APIKey        string   `yaml:"api-key"`
	APIURL        string   `yaml:"api-url"`
	Model         string   `yaml:"model"`
	PromptVersion string   `yaml:"prompt-version"`
	PromptPath    string   `yaml:"prompt-path"`
	MaxTokens     int      `yaml:"max-tokens"`
	Timeout       Duration `yaml:"timeout"`
	InputPrice    float64  `yaml:"input-price-per-million"`
	OutputPrice   float64  `yaml:"output-price-per-million"`
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max-bytes"`
}

// ReservationConfig configures the in-flight upload guard.
type ReservationConfig struct {
	RedisEnabled  bool     `yaml:"redis-enabled"`
	RedisAddr     string   `yaml:"redis-addr"`
	RedisPassword string   `yaml:"redis-password"`
	RedisDB       int      `yaml:"redis-db"`
	RedisPrefix   string   `yaml:"redis-prefix"`
	TTL           Duration `yaml:"ttl"`
}

// ArchiveConfig configures optional object storage for uploaded images.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access-key"`
	SecretKey string `yaml:"secret-key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use-ssl"`
}

// AuthConfig toggles API-key enforcement.
type AuthConfig struct {
	RequireAPIKey bool `yaml:"require-api-key"`
}

// PricingConfig configures the models.dev price sync.
type PricingConfig struct {
	SyncEnabled  bool     `yaml:"sync-enabled"`
	URL          string   `yaml:"url"`
	Provider     string   `yaml:"provider"`
	SyncInterval Duration `yaml:"sync-interval"`
}

// SeedConfig controls initial data population.
type SeedConfig struct {
	SkipDefaultTiers bool   `yaml:"skip-default-tiers"`
	DevAPIKey        string `yaml:"dev-api-key"`
}

// Load reads the config file, applies environment overrides and defaults.
// A missing file yields defaults plus environment values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	data, errRead := os.ReadFile(configPath)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
		// defaults and environment only
	default:
		return nil, fmt.Errorf("read config file: %w", errRead)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// DSN returns the configured database DSN.
func (c *Config) DSN() (string, error) {
	if c == nil {
		return "", ErrMissingDatabaseDSN
	}
	if dsn := strings.TrimSpace(c.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

func (c *Config) applyEnv() {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		c.DatabaseDSN = dsn
	}
	if provider := strings.TrimSpace(os.Getenv(EnvAnalysisProvider)); provider != "" {
		c.Analysis.Provider = provider
	}
	if key := strings.TrimSpace(os.Getenv(EnvAnalysisAPIKey)); key != "" {
		c.Analysis.APIKey = key
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		c.Reservation.RedisAddr = addr
		c.Reservation.RedisEnabled = true
	}
	if secret := strings.TrimSpace(os.Getenv(EnvArchiveSecretKey)); secret != "" {
		c.Archive.SecretKey = secret
	}
	if raw := strings.TrimSpace(os.Getenv(EnvDebug)); raw != "" {
		if debug, errParse := strconv.ParseBool(raw); errParse == nil {
			c.Debug = debug
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	c.Analysis.Provider = strings.ToLower(strings.TrimSpace(c.Analysis.Provider))
	if c.Analysis.Provider == "" {
		c.Analysis.Provider = ProviderOpenAI
	}
	if strings.TrimSpace(c.Analysis.Model) == "" {
		c.Analysis.Model = defaultAnalysisModel
		if c.Analysis.Provider == ProviderGemini {
			c.Analysis.Model = defaultGeminiModel
		}
	}
	if strings.TrimSpace(c.Analysis.PromptVersion) == "" {
		c.Analysis.PromptVersion = defaultPromptVersion
	}
	if c.Analysis.Provider == ProviderOpenAI && strings.TrimSpace(c.Analysis.APIURL) == "" {
		c.Analysis.APIURL = defaultOpenAIURL
	}
	if c.Analysis.MaxTokens <= 0 {
		c.Analysis.MaxTokens = defaultMaxTokens
	}
	if c.Analysis.Timeout <= 0 {
		c.Analysis.Timeout = Duration(defaultAnalysisTimeout)
	}
	if c.Analysis.InputPrice <= 0 {
		c.Analysis.InputPrice = defaultInputPrice
	}
	if c.Analysis.OutputPrice <= 0 {
		c.Analysis.OutputPrice = defaultOutputPrice
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = defaultMaxUploadBytes
	}
	if strings.TrimSpace(c.Reservation.RedisPrefix) == "" {
		c.Reservation.RedisPrefix = defaultRedisPrefix
	}
	if c.Reservation.RedisDB < 0 {
		c.Reservation.RedisDB = 0
	}
	if c.Reservation.TTL <= 0 {
		c.Reservation.TTL = Duration(defaultReservationTTL)
	}
	// A reservation must outlive the analysis call it guards.
	if c.Reservation.TTL <= c.Analysis.Timeout {
		c.Reservation.TTL = c.Analysis.Timeout + Duration(reservationTTLSlack)
	}
	if strings.TrimSpace(c.Archive.Bucket) == "" {
		c.Archive.Bucket = defaultArchiveBucket
	}
	if strings.TrimSpace(c.Pricing.Provider) == "" {
		c.Pricing.Provider = c.Analysis.Provider
	}
}

// LoadDatabaseDSN reads the database DSN from the environment or YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

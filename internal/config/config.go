package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrConfig matches every configuration error.
var ErrConfig = errors.New("invalid configuration")

// ConfigError reports a missing or malformed setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// Seconds is a duration written as a number of seconds, fractions allowed.
type Seconds float64

// Duration converts s to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// Config is the application configuration.
type Config struct {
	Log              LogConfig      `yaml:"log"`
	Sender           SenderConfig   `yaml:"sender"`
	Store            StoreConfig    `yaml:"store"`
	Redis            RedisConfig    `yaml:"redis"`
	Telegram         TelegramConfig `yaml:"telegram"`
	Paths            PathsConfig    `yaml:"paths"`
	HTTP             HTTPConfig     `yaml:"http"`
	MetricsNamespace string         `yaml:"metrics_namespace"`

	Secrets Secrets `yaml:"-"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// SenderConfig configures detection timing and the responder.
type SenderConfig struct {
	// Send enables live replies. When false replies are only logged.
	Send    bool    `yaml:"send"`
	MinWait Seconds `yaml:"min_wait"`
	MaxWait Seconds `yaml:"max_wait"`
	// Timeout is the age after which a message is no longer analysed.
	Timeout      Seconds `yaml:"timeout"`
	QueueSize    int     `yaml:"queue_size"`
	Overflow     string  `yaml:"overflow"`
	MaxPerMinute int     `yaml:"max_per_minute"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// RedisConfig configures the optional cache. An empty Addr disables it.
type RedisConfig struct {
	Addr      string  `yaml:"addr"`
	DB        int     `yaml:"db"`
	TLS       bool    `yaml:"tls"`
	ListsTTL  Seconds `yaml:"lists_ttl"`
	DedupeTTL Seconds `yaml:"dedupe_ttl"`
}

// TelegramConfig configures the MTProto client.
type TelegramConfig struct {
	SessionPath string `yaml:"session_path"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	Workers     int    `yaml:"workers"`
}

// PathsConfig points to the keyword seed file and the canned reply texts.
type PathsConfig struct {
	Keywords       string `yaml:"keywords"`
	Message        string `yaml:"message"`
	ScammerAccount string `yaml:"scammer_account"`
	About          string `yaml:"about"`
}

// HTTPConfig configures the health and metrics server.
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	BasePath   string `yaml:"base_path"`
}

// Secrets are read from the environment only.
type Secrets struct {
	APIID         int    `env:"API_ID"`
	APIHash       string `env:"API_HASH"`
	Phone         string `env:"TG_PHONE"`
	Password      string `env:"TG_PASSWORD"`
	MongoUser     string `env:"MDB_USER"`
	MongoPassword string `env:"MDB_PASSWORD"`
	MongoAddress  string `env:"MDB_ADDRESS"`
	MongoPort     string `env:"MDB_PORT"`
	RedisPassword string `env:"REDIS_PASSWORD"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Sender: SenderConfig{
			MinWait:      5,
			MaxWait:      30,
			Timeout:      60,
			QueueSize:    64,
			Overflow:     "drop-oldest",
			MaxPerMinute: 20,
		},
		Store: StoreConfig{Driver: "mongo", Database: "scamwatch"},
		Redis: RedisConfig{ListsTTL: 300, DedupeTTL: 86400},
		Telegram: TelegramConfig{
			SessionPath: "data/session.json",
			LogLevel:    "warn",
			Workers:     8,
		},
		HTTP:             HTTPConfig{ListenAddr: ":8080"},
		MetricsNamespace: "scamwatch",
	}
}

// Load reads the YAML file at path on top of the defaults, then the secrets
// from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigError{Field: "file", Reason: err.Error()}
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &ConfigError{Field: "file", Reason: fmt.Sprintf("parse %s: %v", path, err)}
		}
	}

	if err := env.Parse(&cfg.Secrets); err != nil {
		return nil, &ConfigError{Field: "env", Reason: err.Error()}
	}

	cfg.Store.URL = expandStoreURL(cfg.Store.URL, cfg.Secrets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	s := c.Sender
	switch {
	case s.MinWait < 0:
		return &ConfigError{Field: "sender.min_wait", Reason: "must not be negative"}
	case s.MaxWait < s.MinWait:
		return &ConfigError{Field: "sender.max_wait", Reason: "must be greater than or equal to min_wait"}
	case s.Timeout <= 0:
		return &ConfigError{Field: "sender.timeout", Reason: "must be positive"}
	case s.QueueSize < 1:
		return &ConfigError{Field: "sender.queue_size", Reason: "must be at least 1"}
	case s.MaxPerMinute < 0:
		return &ConfigError{Field: "sender.max_per_minute", Reason: "must not be negative"}
	}
	switch strings.ToLower(s.Overflow) {
	case "", "block", "drop-newest", "drop-oldest":
	default:
		return &ConfigError{Field: "sender.overflow", Reason: fmt.Sprintf("unknown policy %q", s.Overflow)}
	}

	switch strings.ToLower(c.Store.Driver) {
	case "memory":
	case "mongo", "mongodb":
		if c.Store.Database == "" {
			return &ConfigError{Field: "store.database", Reason: "required for mongo"}
		}
		fallthrough
	case "postgres", "postgresql", "sqlite":
		if c.Store.URL == "" {
			return &ConfigError{Field: "store.url", Reason: "required"}
		}
		if placeholderLeft(c.Store.URL) {
			return &ConfigError{Field: "store.url", Reason: "unresolved placeholder, check MDB_* variables"}
		}
	default:
		return &ConfigError{Field: "store.driver", Reason: fmt.Sprintf("unknown driver %q", c.Store.Driver)}
	}

	if c.Telegram.Workers < 1 {
		return &ConfigError{Field: "telegram.workers", Reason: "must be at least 1"}
	}
	return nil
}

// ValidateTelegram checks the settings needed to connect to the platform.
func (c *Config) ValidateTelegram() error {
	if c.Secrets.APIID == 0 {
		return &ConfigError{Field: "API_ID", Reason: "required"}
	}
	if c.Secrets.APIHash == "" {
		return &ConfigError{Field: "API_HASH", Reason: "required"}
	}
	if c.Telegram.SessionPath == "" {
		return &ConfigError{Field: "telegram.session_path", Reason: "required"}
	}
	return nil
}

var placeholders = []string{"%USERNAME%", "%PASSWORD%", "%ADDRESS%", "%PORT%"}

func expandStoreURL(raw string, s Secrets) string {
	return strings.NewReplacer(
		"%USERNAME%", escape(s.MongoUser),
		"%PASSWORD%", escape(s.MongoPassword),
		"%ADDRESS%", escape(s.MongoAddress),
		"%PORT%", escape(s.MongoPort),
	).Replace(raw)
}

func placeholderLeft(u string) bool {
	for _, p := range placeholders {
		if strings.Contains(u, p) {
			return true
		}
	}
	return false
}

func escape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

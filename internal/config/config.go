package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreBolt   = "bolt"
	StoreSQLite = "sqlite"
)

const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "mistralai/mixtral-8x7b-instruct"
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.7
	DefaultPersona     = "You are a friendly, encouraging study buddy. Explain ideas simply, " +
		"celebrate progress, and keep answers short and clear."
	DefaultAddr      = ":3000"
	DefaultProxyURL  = "http://localhost:3000/api/chat"
	DefaultStorePath = "studybuddy.db"
	DefaultLogDir    = "logs"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Completion CompletionConfig `yaml:"completion"`
	Client     ClientConfig     `yaml:"client"`
	Log        LogConfig        `yaml:"log"`

	// Credential is never read from the YAML file.
	Credential Credential `yaml:"-"`
}

// ServerConfig configures the proxy server.
type ServerConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst int     `yaml:"rate_burst"`
}

// CompletionConfig configures the outbound completion call. None of it is
// settable by callers of the proxy.
type CompletionConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
	Persona     string        `yaml:"persona"`
	Timeout     time.Duration `yaml:"timeout"` // 0 means no timeout
}

// ClientConfig configures the terminal transcript client.
type ClientConfig struct {
	ProxyURL  string `yaml:"proxy_url"`
	Store     string `yaml:"store"` // bolt|sqlite
	StorePath string `yaml:"store_path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      DefaultAddr,
			RateBurst: 5,
		},
		Completion: CompletionConfig{
			BaseURL:     DefaultBaseURL,
			Model:       DefaultModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
			Persona:     DefaultPersona,
		},
		Client: ClientConfig{
			ProxyURL:  DefaultProxyURL,
			Store:     StoreBolt,
			StorePath: DefaultStorePath,
		},
		Log: LogConfig{
			Dir:   DefaultLogDir,
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment (including a .env file in the working directory).
func Load(path string) (Config, error) {
	// a missing .env is the normal case
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	c.Credential = CredentialFromEnv(lookup)

	overrides := []struct {
		name string
		dst  *string
	}{
		{"STUDYBUDDY_ADDR", &c.Server.Addr},
		{"STUDYBUDDY_BASE_URL", &c.Completion.BaseURL},
		{"STUDYBUDDY_PROXY_URL", &c.Client.ProxyURL},
		{"STUDYBUDDY_STORE", &c.Client.Store},
		{"STUDYBUDDY_STORE_PATH", &c.Client.StorePath},
		{"STUDYBUDDY_LOG_DIR", &c.Log.Dir},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.name); ok && v != "" {
			*o.dst = v
		}
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Client.Store {
	case StoreBolt, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (bolt|sqlite)", c.Client.Store))
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f out of range [0,2]", c.Completion.Temperature))
	}
	if c.Completion.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must not be negative"))
	}
	if c.Completion.BaseURL == "" {
		errs = append(errs, fmt.Errorf("completion base_url is required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate_burst must be at least 1 when rate_limit is set"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level. Debug wins.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	if l.Debug {
		return slog.LevelDebug, nil
	}
	switch strings.ToLower(l.Level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", l.Level)
}

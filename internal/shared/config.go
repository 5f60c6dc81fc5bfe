package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Reader      ReaderConfig      `toml:"reader"`
	Session     SessionConfig     `toml:"session"`
	Logging     LoggingConfig     `toml:"logging"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Gateway GatewayConfig `toml:"gateway"`
}

// GatewayConfig contains settings for the AI translation gateway.
type GatewayConfig struct {
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	AccessToken    string  `toml:"access_token"`
	Model          string  `toml:"model"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit"` // requests per second, 0 disables limiting
}

// Timeout returns the per-request gateway timeout, defaulting to one minute.
func (g GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// HasCredentials reports whether either an API key or an access token is configured.
func (g GatewayConfig) HasCredentials() bool {
	return (g.APIKey != "" && g.APIKey != "your_gemini_api_key") || g.AccessToken != ""
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ReaderConfig contains reading session defaults.
type ReaderConfig struct {
	Language       string  `toml:"language"`
	AssetsDir      string  `toml:"assets_dir"`
	SpeechRate     float64 `toml:"speech_rate"`
	WordsPerSecond float64 `toml:"words_per_second"`
	SpeechCommand  string  `toml:"speech_command"` // external TTS program, empty uses captions
	Workers        int     `toml:"workers"`
}

// SessionConfig controls where the signed-in identity is persisted between invocations.
type SessionConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig contains log level and optional log file.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %w", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks value ranges that would otherwise surface as confusing runtime failures.
func (c *Config) Validate() error {
	if c.Reader.Workers < 0 {
		return fmt.Errorf("%w: reader.workers must not be negative", ErrInvalidConfig)
	}
	if c.Reader.SpeechRate < 0 || c.Reader.WordsPerSecond < 0 {
		return fmt.Errorf("%w: reader speech settings must not be negative", ErrInvalidConfig)
	}
	if c.Credentials.Gateway.RateLimit < 0 {
		return fmt.Errorf("%w: gateway rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

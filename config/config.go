// Package config loads relay configuration from an optional TOML file,
// .env files and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Default ports for the two relays
const (
	DefaultAssistantPort = 3000
	DefaultProxyPort     = 3001
)

// Config holds everything both relays need at startup
type Config struct {
	Server  ServerConfig  `toml:"server"`
	CORS    CORSConfig    `toml:"cors"`
	Cohere  CohereConfig  `toml:"cohere"`
	Yahoo   YahooConfig   `toml:"yahoo"`
	Preview PreviewConfig `toml:"preview"`
	Discord DiscordConfig `toml:"discord"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	RequestTimeout  string `toml:"request_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// Addr returns host:port
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetRequestTimeout parses the per-request budget, defaulting to 30s
func (c ServerConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 30*time.Second)
}

// GetShutdownTimeout parses the graceful shutdown budget, defaulting to 30s
func (c ServerConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(c.ShutdownTimeout, 30*time.Second)
}

// CORSConfig is the allow-list applied to browser requests
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
	AllowedMethods []string `toml:"allowed_methods"`
	AllowedHeaders []string `toml:"allowed_headers"`
}

// CohereConfig holds the conversational model API settings
type CohereConfig struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

// GetTimeout parses the analysis budget, defaulting to 30s
func (c CohereConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// YahooConfig holds the financial search API settings
type YahooConfig struct {
	BaseURL     string `toml:"base_url"`
	QuotesCount int    `toml:"quotes_count"`
	UserAgent   string `toml:"user_agent"`
	Timeout     string `toml:"timeout"`
}

// GetTimeout parses the upstream lookup timeout, defaulting to 10s
func (c YahooConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// PreviewConfig holds link preview fetch settings
type PreviewConfig struct {
	UserAgent string `toml:"user_agent"`
	Timeout   string `toml:"timeout"`
	MaxBytes  int64  `toml:"max_bytes"`
}

// GetTimeout parses the page fetch timeout, defaulting to 10s
func (c PreviewConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// DiscordConfig holds the optional Discord front-end settings
type DiscordConfig struct {
	Token         string `toml:"token"`
	CommandPrefix string `toml:"command_prefix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// BrowserUserAgent is sent to upstreams that reject default client user agents
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DevOrigins returns the local development origins the client is served from
func DevOrigins() []string {
	origins := make([]string, 0, 21)
	for port := 5173; port <= 5193; port++ {
		origins = append(origins, fmt.Sprintf("http://localhost:%d", port))
	}
	return origins
}

// NewDefaultConfig returns a Config with defaults for the given port
func NewDefaultConfig(port int) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            port,
			RequestTimeout:  "30s",
			ShutdownTimeout: "30s",
		},
		CORS: CORSConfig{
			AllowedOrigins: DevOrigins(),
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
		Cohere: CohereConfig{
			BaseURL:     "https://api.cohere.ai/v1",
			Model:       "command",
			Temperature: 0.7,
			Timeout:     "30s",
		},
		Yahoo: YahooConfig{
			BaseURL:     "https://query1.finance.yahoo.com/v1/finance/search",
			QuotesCount: 1,
			UserAgent:   BrowserUserAgent,
			Timeout:     "10s",
		},
		Preview: PreviewConfig{
			UserAgent: BrowserUserAgent,
			Timeout:   "10s",
			MaxBytes:  2 << 20,
		},
		Discord: DiscordConfig{
			CommandPrefix: "!analyze ",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration for a relay listening on defaultPort.
// path is an optional TOML file; the environment always wins over it.
func Load(path string, defaultPort int) (*Config, error) {
	cfg := NewDefaultConfig(defaultPort)

	if path == "" {
		path = os.Getenv("CORPANALYST_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		cfg.Server.RequestTimeout = v
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		cfg.Server.ShutdownTimeout = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("COHERE_API_KEY"); v != "" {
		cfg.Cohere.APIKey = v
	}
	if v := os.Getenv("COHERE_BASE_URL"); v != "" {
		cfg.Cohere.BaseURL = v
	}
	if v := os.Getenv("COHERE_MODEL"); v != "" {
		cfg.Cohere.Model = v
	}

	if v := os.Getenv("YAHOO_FINANCE_BASE_URL"); v != "" {
		cfg.Yahoo.BaseURL = v
	}

	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv("DISCORD_COMMAND_PREFIX"); v != "" {
		cfg.Discord.CommandPrefix = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// validate checks settings shared by both relays
func (c *Config) validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port must be between 0 and 65535 (got: %d)", c.Server.Port))
	}
	for name, value := range map[string]string{
		"server.request_timeout":  c.Server.RequestTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"cohere.timeout":          c.Cohere.Timeout,
		"yahoo.timeout":           c.Yahoo.Timeout,
		"preview.timeout":         c.Preview.Timeout,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration (got: %q)", name, value))
		}
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("at least one CORS origin is required"))
	}
	if c.Cohere.Temperature < 0 || c.Cohere.Temperature > 5 {
		errs = append(errs, fmt.Errorf("cohere temperature must be between 0 and 5 (got: %v)", c.Cohere.Temperature))
	}
	if c.Yahoo.QuotesCount < 1 {
		errs = append(errs, errors.New("yahoo quotes_count must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%w", errors.Join(errs...))
	}
	return nil
}

// ValidateAssistant checks the settings only the chat relay needs.
// Starting without a model credential would only produce failing requests.
func (c *Config) ValidateAssistant() error {
	if c.Cohere.APIKey == "" {
		return errors.New("COHERE_API_KEY is required: Cohere API key not found, check your .env file")
	}
	if c.Cohere.BaseURL == "" {
		return errors.New("cohere base_url is required")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

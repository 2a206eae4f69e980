package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nmt-api/internal/models"
)

const (
	logFormatConsole = "console"
	logFormatJSON    = "json"
)

// Config represents the application configuration. It is loaded once at start and never mutated.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	CORS      CORSConfig      `yaml:"cors"`
	Model     ModelConfig     `yaml:"model"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// APIConfig describes the public API surface.
type APIConfig struct {
	Prefix      string `yaml:"prefix"`
	ProjectName string `yaml:"project_name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ModelConfig locates the model and bounds generation requests.
type ModelConfig struct {
	Path            string        `yaml:"path"`
	Name            string        `yaml:"name"`
	Fallback        string        `yaml:"fallback"`
	InferenceURL    string        `yaml:"inference_url"`
	Device          string        `yaml:"device"`
	MaxTextLength   int           `yaml:"max_text_length"`
	MaxOutputLength int           `yaml:"max_output_length"`
	DefaultNumBeams int           `yaml:"default_num_beams"`
	LoadTimeout     time.Duration `yaml:"load_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// RateLimitConfig throttles API calls per client address. Zero disables limiting.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
}

// CacheConfig enables the translation result cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// LoggingConfig selects log verbosity and sinks.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		API: APIConfig{
			Prefix:      "/api/v1",
			ProjectName: "Neural Machine Translation API",
			Version:     "1.0.0",
			Description: "English to Tamil Neural Machine Translation using Transformers",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:3001",
				"http://127.0.0.1:3000",
			},
		},
		Model: ModelConfig{
			Path:            "./saved_model",
			Name:            "custom-t5-en-ta",
			Fallback:        "t5-small",
			InferenceURL:    "http://127.0.0.1:8500",
			Device:          "auto",
			MaxTextLength:   1000,
			MaxOutputLength: 512,
			DefaultNumBeams: 4,
			LoadTimeout:     10 * time.Minute,
			RequestTimeout:  2 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 60,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logFormatConsole,
			File:   "logs/app.log",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the environment,
// then validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	if !strings.HasPrefix(c.API.Prefix, "/") || strings.HasSuffix(c.API.Prefix, "/") {
		return fmt.Errorf("api.prefix %q must start with '/' and must not end with '/'", c.API.Prefix)
	}
	if strings.TrimSpace(c.API.Version) == "" {
		return fmt.Errorf("api.version must not be empty")
	}

	if err := c.Model.validate(); err != nil {
		return err
	}

	for _, origin := range c.CORS.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if _, err := url.ParseRequestURI(origin); err != nil {
			return fmt.Errorf("cors.allowed_origins: %q is not a valid origin", origin)
		}
	}

	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("rate_limit.per_minute must not be negative, got %d", c.RateLimit.PerMinute)
	}

	if c.Cache.RedisURL != "" && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when cache.redis_url is set")
	}

	return validateLogging(c.Logging)
}

func (m ModelConfig) validate() error {
	if strings.TrimSpace(m.Path) == "" && strings.TrimSpace(m.Fallback) == "" {
		return fmt.Errorf("model: at least one of path or fallback must be provided")
	}
	if strings.TrimSpace(m.Path) != "" && strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("model.name must be provided when model.path is set")
	}

	u, err := url.Parse(m.InferenceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("model.inference_url %q must be an absolute http(s) URL", m.InferenceURL)
	}

	if m.MaxTextLength <= 0 {
		return fmt.Errorf("model.max_text_length must be positive, got %d", m.MaxTextLength)
	}
	if m.MaxOutputLength < models.MinMaxLength || m.MaxOutputLength > models.MaxMaxLength {
		return fmt.Errorf("model.max_output_length must be within [%d, %d], got %d",
			models.MinMaxLength, models.MaxMaxLength, m.MaxOutputLength)
	}
	if m.DefaultNumBeams < models.MinNumBeams || m.DefaultNumBeams > models.MaxNumBeams {
		return fmt.Errorf("model.default_num_beams must be within [%d, %d], got %d",
			models.MinNumBeams, models.MaxNumBeams, m.DefaultNumBeams)
	}
	if m.LoadTimeout <= 0 {
		return fmt.Errorf("model.load_timeout must be positive")
	}
	if m.RequestTimeout <= 0 {
		return fmt.Errorf("model.request_timeout must be positive")
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", l.Level)
	}

	switch l.Format {
	case logFormatConsole, logFormatJSON:
		return nil
	default:
		return fmt.Errorf("logging.format %q must be one of %q or %q", l.Format, logFormatConsole, logFormatJSON)
	}
}

// Address returns the listen address for the HTTP server.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

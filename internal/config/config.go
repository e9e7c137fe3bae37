package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the YAML file
const (
	EnvHTTPAddress       = "DIARIZE_HTTP_ADDRESS"
	EnvHTTPPort          = "DIARIZE_HTTP_PORT"
	EnvAssemblyAIBaseURL = "DIARIZE_ASSEMBLYAI_BASE_URL"
	EnvLogLevel          = "DIARIZE_LOG_LEVEL"
)

// Config represents the complete service configuration
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	AssemblyAI AssemblyAIConfig `yaml:"assemblyai"`
	Session    SessionConfig    `yaml:"session"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	Port         int    `yaml:"port"`
	Address      string `yaml:"address"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
	MaxUploadMB  int    `yaml:"max_upload_mb"`
}

// AssemblyAIConfig contains transcription API configuration.
// The API key is supplied per session by the user and is never configured here.
type AssemblyAIConfig struct {
	BaseURL      string  `yaml:"base_url"`
	Timeout      int     `yaml:"timeout"`       // seconds, whole upload+transcribe+poll cycle
	PollInterval float64 `yaml:"poll_interval"` // seconds
}

// SessionConfig contains browser session configuration
type SessionConfig struct {
	IdleTimeout  int    `yaml:"idle_timeout"` // seconds
	CookieName   string `yaml:"cookie_name"`
	SecureCookie bool   `yaml:"secure_cookie"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. Each envFile that exists is
// loaded into the process environment first, then DIARIZE_* variables
// override the file's values.
func Load(path string, envFiles ...string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("environment override: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns the configuration used for keys missing from the file
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:         8501,
			Address:      "0.0.0.0",
			ReadTimeout:  60,
			WriteTimeout: 330,
			MaxUploadMB:  200,
		},
		AssemblyAI: AssemblyAIConfig{
			BaseURL:      "https://api.assemblyai.com",
			Timeout:      300,
			PollInterval: 3,
		},
		Session: SessionConfig{
			IdleTimeout: 3600,
			CookieName:  "diarize_session",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvHTTPAddress); v != "" {
		c.HTTP.Address = v
	}
	if v := os.Getenv(EnvHTTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHTTPPort, err)
		}
		c.HTTP.Port = port
	}
	if v := os.Getenv(EnvAssemblyAIBaseURL); v != "" {
		c.AssemblyAI.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.AssemblyAI.Validate(); err != nil {
		return fmt.Errorf("assemblyai config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if h.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", h.ReadTimeout)
	}

	if h.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", h.WriteTimeout)
	}

	if h.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be at least 1, got %d", h.MaxUploadMB)
	}

	return nil
}

// Validate validates AssemblyAI configuration
func (a *AssemblyAIConfig) Validate() error {
	if a.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}

	u, err := url.Parse(a.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got '%s'", a.BaseURL)
	}

	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}

	if a.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %f", a.PollInterval)
	}

	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.IdleTimeout < 60 {
		return fmt.Errorf("idle_timeout must be at least 60 seconds, got %d", s.IdleTimeout)
	}

	if s.CookieName == "" {
		return fmt.Errorf("cookie_name cannot be empty")
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetReadTimeout returns the HTTP read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// GetMaxUploadBytes returns the upload size cap in bytes
func (h *HTTPConfig) GetMaxUploadBytes() int64 {
	return int64(h.MaxUploadMB) << 20
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (a *AssemblyAIConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// GetPollInterval returns the transcript polling interval as a time.Duration
func (a *AssemblyAIConfig) GetPollInterval() time.Duration {
	return time.Duration(a.PollInterval * float64(time.Second))
}

// GetIdleTimeout returns the session idle timeout as a time.Duration
func (s *SessionConfig) GetIdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeout) * time.Second
}

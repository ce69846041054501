// Package config loads the service configuration from an optional YAML file,
// an optional .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when no API key is configured for the
// selected model provider.
var ErrMissingCredential = errors.New("missing model credential")

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Environment overrides applied after the file is parsed.
const (
	EnvAddr     = "PROVERBS_ADDR"
	EnvLogLevel = "PROVERBS_LOG_LEVEL"
)

var credentialEnv = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Agent   AgentConfig   `yaml:"agent"`
	Runner  RunnerConfig  `yaml:"runner"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the HTTP endpoint.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// ModelConfig selects and configures the language model provider.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// AgentConfig configures the agents produced per run.
type AgentConfig struct {
	Name               string `yaml:"name"`
	Instruction        string `yaml:"instruction"`
	DisableStreaming   bool   `yaml:"disable_streaming"`
	MaxModelCalls      int    `yaml:"max_model_calls"`
	MaxHistoryMessages int    `yaml:"max_history_messages"`
	MaxParallelTools   int    `yaml:"max_parallel_tools"`
}

// RunnerConfig configures run orchestration.
type RunnerConfig struct {
	MaxConcurrentRuns int64 `yaml:"max_concurrent_runs"`
	EventBufferSize   int   `yaml:"event_buffer_size"`
}

// SessionConfig configures the in-memory session store.
type SessionConfig struct {
	MaxEvents   int `yaml:"max_events"`
	MaxSessions int `yaml:"max_sessions"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Backend string `yaml:"backend"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Agent: AgentConfig{
			MaxModelCalls:      25,
			MaxHistoryMessages: 20,
		},
		Runner: RunnerConfig{
			MaxConcurrentRuns: 10,
			EventBufferSize:   100,
		},
		Session: SessionConfig{
			MaxEvents:   500,
			MaxSessions: 1000,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "json",
			Backend: "zerolog",
		},
	}
}

// LoadDotEnv loads environment variables from path. Missing files are ignored.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads the YAML file at path on top of Default, expanding ${VAR}
// references, then applies environment overrides. An empty path yields the
// defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
		if err != nil {
			return Config{}, fmt.Errorf("config: load: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse: %w", err)
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks that the configuration is internally consistent. It does
// not check credentials; see ResolveCredential.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("config: server.addr is required")
	}

	if _, ok := credentialEnv[c.Model.Provider]; !ok {
		return fmt.Errorf("config: model.provider %q is not supported (use %q or %q)", c.Model.Provider, ProviderOpenAI, ProviderAnthropic)
	}

	if c.Agent.MaxModelCalls < 0 {
		return fmt.Errorf("config: agent.max_model_calls must not be negative")
	}

	if c.Agent.MaxParallelTools < 0 {
		return fmt.Errorf("config: agent.max_parallel_tools must not be negative")
	}

	if c.Runner.MaxConcurrentRuns < 1 {
		return fmt.Errorf("config: runner.max_concurrent_runs must be at least 1")
	}

	if c.Runner.EventBufferSize < 0 {
		return fmt.Errorf("config: runner.event_buffer_size must not be negative")
	}

	if c.Session.MaxEvents < 0 || c.Session.MaxSessions < 0 {
		return fmt.Errorf("config: session limits must not be negative")
	}

	switch c.Log.Format {
	case "json", "text", "console", "pretty":
	default:
		return fmt.Errorf("config: log.format %q is not supported", c.Log.Format)
	}

	return nil
}

// CredentialEnv returns the environment variable consulted for the
// provider's API key.
func (c Config) CredentialEnv() string { return credentialEnv[c.Model.Provider] }

// ResolveCredential returns the model API key: model.api_key when set,
// otherwise the provider's environment variable. The error wraps
// ErrMissingCredential and names the variable to set.
func (c Config) ResolveCredential() (string, error) {
	if key := strings.TrimSpace(c.Model.APIKey); key != "" {
		return key, nil
	}

	env := c.CredentialEnv()
	if env == "" {
		return "", fmt.Errorf("%w: unsupported provider %q", ErrMissingCredential, c.Model.Provider)
	}

	if key := strings.TrimSpace(os.Getenv(env)); key != "" {
		return key, nil
	}

	return "", fmt.Errorf("%w: set %s or model.api_key", ErrMissingCredential, env)
}

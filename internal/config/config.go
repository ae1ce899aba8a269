// Package config loads prreview's environment-driven configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting named in the external interfaces contract.
// All fields are optional except Database.URL; missing values fall back to
// the defaults applied in Load.
type Config struct {
	Database Database `mapstructure:"database"`
	Queue    Queue    `mapstructure:"queue"`
	CodeHost CodeHost `mapstructure:"code_host"`
	LLM      LLM      `mapstructure:"llm"`
	Embed    Embed    `mapstructure:"embeddings"`
	Logging  Logging  `mapstructure:"logging"`
	Server   Server   `mapstructure:"server"`
}

// Database configures the C1 Repository Store connection.
type Database struct {
	URL string `mapstructure:"url"`
}

// Queue configures the C8 Task Queue broker and result backend.
type Queue struct {
	BrokerURL        string `mapstructure:"broker_url"`
	ResultBackendURL string `mapstructure:"result_backend_url"`
}

// CodeHost configures the C2 Code-Host Client.
type CodeHost struct {
	Token      string `mapstructure:"token"`
	APIURL     string `mapstructure:"api_url"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// LLM configures the C3 LLM Client.
type LLM struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// Embed configures the C4 Embeddings Engine.
type Embed struct {
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Server configures the HTTP submission API.
type Server struct {
	Addr         string        `mapstructure:"addr"`
	TaskTimeout  time.Duration `mapstructure:"task_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBaseDur time.Duration `mapstructure:"retry_base_delay"`
}

const envPrefix = "PRREVIEW"

// Load reads configuration from the process environment, falling back to
// defaults for everything spec.md §6 lists as optional.
func Load() (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind the flat, spec-named env vars directly so DATABASE_URL works
	// without the PRREVIEW_ prefix, matching §6 Configuration verbatim.
	bindings := map[string]string{
		"database.url":              "DATABASE_URL",
		"queue.broker_url":          "BROKER_URL",
		"queue.result_backend_url":  "RESULT_BACKEND_URL",
		"code_host.token":           "CODE_HOST_TOKEN",
		"code_host.api_url":         "CODE_HOST_API_URL",
		"code_host.max_retries":     "CODE_HOST_MAX_RETRIES",
		"llm.api_key":               "LLM_API_KEY",
		"llm.base_url":              "LLM_BASE_URL",
		"llm.model":                 "LLM_MODEL",
		"llm.temperature":           "LLM_TEMPERATURE",
		"llm.max_tokens":            "LLM_MAX_TOKENS",
		"embeddings.provider":       "EMBEDDINGS_PROVIDER",
		"embeddings.api_key":        "EMBEDDINGS_API_KEY",
		"embeddings.model":          "EMBEDDINGS_MODEL",
		"logging.level":             "LOG_LEVEL",
		"logging.format":            "LOG_FORMAT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("code_host.api_url", "https://api.github.com")
	v.SetDefault("code_host.max_retries", 3)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("embeddings.provider", "local")
	v.SetDefault("embeddings.model", "all-MiniLM-L6-v2")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.task_timeout", 10*time.Minute)
	v.SetDefault("server.max_retries", 3)
	v.SetDefault("server.retry_base_delay", 60*time.Second)
}

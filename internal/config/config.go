package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for leadchat
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Identity IdentityConfig `mapstructure:"identity"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	BaseURL      string   `mapstructure:"base_url"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LLMConfig holds completion provider configuration
type LLMConfig struct {
	Provider      string        `mapstructure:"provider"` // gemini, openai, mock
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	AnalysisModel string        `mapstructure:"analysis_model"`
	Temperature   float64       `mapstructure:"temperature"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ChatConfig holds conversation and end-of-session settings
type ChatConfig struct {
	HistoryWindow     int           `mapstructure:"history_window"`
	MaxKnowledgeChars int           `mapstructure:"max_knowledge_chars"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	AnalysisTimeout   time.Duration `mapstructure:"analysis_timeout"`
}

// IdentityConfig holds the session identity store configuration
type IdentityConfig struct {
	Store         string        `mapstructure:"store"` // memory, redis
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// ScrapeConfig holds website scraping limits
type ScrapeConfig struct {
	MaxChars int           `mapstructure:"max_chars"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables, e.g. LEADCHAT_LLM_API_KEY
	v.SetEnvPrefix("LEADCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")

	v.SetDefault("database.path", "./data/leadchat.db")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-1.5-flash")
	v.SetDefault("llm.analysis_model", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", 30*time.Second)

	v.SetDefault("chat.history_window", 3)
	v.SetDefault("chat.max_knowledge_chars", 0)
	v.SetDefault("chat.idle_timeout", 10*time.Second)
	v.SetDefault("chat.retry_attempts", 3)
	v.SetDefault("chat.retry_delay", time.Second)
	v.SetDefault("chat.analysis_timeout", 30*time.Second)

	v.SetDefault("identity.store", "memory")
	v.SetDefault("identity.redis_addr", "localhost:6379")
	v.SetDefault("identity.redis_password", "")
	v.SetDefault("identity.redis_db", 0)
	v.SetDefault("identity.ttl", 0)

	v.SetDefault("scrape.max_chars", 1000)
	v.SetDefault("scrape.timeout", 15*time.Second)

	v.SetDefault("log.development", false)
	v.SetDefault("metrics.enabled", true)
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Bridge  BridgeConfig
	Redis   RedisConfig
	OpenAI  OpenAIConfig
	Gemini  GeminiConfig
	Session SessionConfig
	Logging LoggingConfig
}

type BridgeConfig struct {
	ListenAddr string
	Path       string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type SessionConfig struct {
	// Backend selects the pending store: "redis" or "memory".
	Backend string
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Bridge: BridgeConfig{
			ListenAddr: getEnv("BRIDGE_LISTEN_ADDR", "127.0.0.1:8920"),
			Path:       getEnv("BRIDGE_PATH", "/ws"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
			Model:  getEnv("OPENAI_MODEL", ""),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", ""),
		},
		Session: SessionConfig{
			Backend: getEnv("SESSION_BACKEND", "redis"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", "logs/enhancerd.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Bridge.ListenAddr == "" {
		return fmt.Errorf("BRIDGE_LISTEN_ADDR is required")
	}
	if c.Session.Backend != "redis" && c.Session.Backend != "memory" {
		return fmt.Errorf("SESSION_BACKEND must be redis or memory, got %q", c.Session.Backend)
	}
	if c.Session.Backend == "redis" && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required for the redis session backend")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

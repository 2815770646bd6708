package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration of the serve command. Every field has a
// flag counterpart; flags win when both are set.
type Config struct {
	Transport  string        `yaml:"transport"`
	Port       int           `yaml:"port"`
	LogLevel   string        `yaml:"log_level"`
	LogFormat  string        `yaml:"log_format"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	// EncryptionKey encrypts session records at rest when set. It must be
	// 32 bytes, base64-encoded.
	EncryptionKey string `yaml:"encryption_key"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig selects the shared session store. An empty address keeps
// sessions in process memory.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func defaultConfig() Config {
	return Config{
		Transport: "stdio",
		Port:      8080,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

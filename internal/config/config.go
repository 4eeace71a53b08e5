package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kgruber/quizbowl-buzzer/internal/domain"
)

type Config struct {
	// Server
	Port        string
	Environment string

	// PublicURL is the externally reachable base URL, used to build join
	// links and QR codes.
	PublicURL string

	// Game clock defaults applied to every new room.
	TossupSeconds int
	BonusSeconds  int
}

// fileConfig is the optional YAML file shape. Environment variables win
// over file values.
type fileConfig struct {
	Port      string `yaml:"port"`
	PublicURL string `yaml:"public_url"`
	Game      struct {
		TossupSeconds int `yaml:"tossup_seconds"`
		BonusSeconds  int `yaml:"bonus_seconds"`
	} `yaml:"game"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:          "8080",
		Environment:   "development",
		PublicURL:     "http://localhost:8080",
		TossupSeconds: domain.DefaultTossupSeconds,
		BonusSeconds:  domain.DefaultBonusSeconds,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.PublicURL = getEnv("PUBLIC_URL", cfg.PublicURL)
	cfg.TossupSeconds = getEnvInt("TOSSUP_SECONDS", cfg.TossupSeconds)
	cfg.BonusSeconds = getEnvInt("BONUS_SECONDS", cfg.BonusSeconds)

	if cfg.TossupSeconds <= 0 || cfg.BonusSeconds <= 0 {
		return nil, fmt.Errorf("clock durations must be positive")
	}

	return cfg, nil
}

// Settings returns the room clock settings from this config.
func (c *Config) Settings() domain.Settings {
	return domain.Settings{
		TossupSeconds: c.TossupSeconds,
		BonusSeconds:  c.BonusSeconds,
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	if fc.PublicURL != "" {
		cfg.PublicURL = fc.PublicURL
	}
	if fc.Game.TossupSeconds > 0 {
		cfg.TossupSeconds = fc.Game.TossupSeconds
	}
	if fc.Game.BonusSeconds > 0 {
		cfg.BonusSeconds = fc.Game.BonusSeconds
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the bot reads from the environment.
type Config struct {
	BotToken             string
	GeminiAPIKey         string
	PostgresDSN          string
	Admins               []int64
	MaxFileSizeMB        int
	DailySeparationLimit int
	BaseDir              string
}

// Load reads the configuration from the environment, loading .env first if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system variables")
	}

	cfg := &Config{
		BotToken:             os.Getenv("BOT_TOKEN"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		MaxFileSizeMB:        envInt("MAX_FILE_SIZE_MB", 30),
		DailySeparationLimit: envInt("DAILY_SEPARATION_LIMIT", 1),
		BaseDir:              envString("BASE_DIR", "user_data"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not set")
	}
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is not set")
	}

	admins, err := parseAdmins(os.Getenv("ADMINS"))
	if err != nil {
		return nil, err
	}
	cfg.Admins = admins

	return cfg, nil
}

// IsAdmin reports whether the given user id is on the admin allow-list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

func parseAdmins(raw string) ([]int64, error) {
	var admins []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		admins = append(admins, id)
	}
	return admins, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

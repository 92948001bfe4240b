package config

import (
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables and .env file.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, reading from environment variables")
	}

	// A helper function to get a required env var. It will fail if the env var is not set.
	getEnv := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		log.Fatalf("Error: Required environment variable %s is not set.", key)
		return "" // This line is never reached
	}

	// Optional env vars fall back to a default.
	getEnvOr := func(key, fallback string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return fallback
	}

	getEnvInt := func(key string, fallback int64) int64 {
		raw, ok := os.LookupEnv(key)
		if !ok {
			return fallback
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Fatalf("Error: Environment variable %s must be an integer, got %q.", key, raw)
		}
		return value
	}

	cfg := Config{
		DBName:        getEnv("DB_NAME"),
		MigrationsDir: "./migrations",
		Port:          getEnv("PORT"),
		Spond: SpondConfig{
			Username: getEnv("SPOND_USERNAME"),
			Password: getEnv("SPOND_PASSWORD"),
			GroupID:  getEnv("SPOND_GROUP_ID"),
		},
		Slack: SlackConfig{
			Token:         getEnv("SLACK_BOT_TOKEN"),
			ChannelID:     getEnv("SLACK_CHANNEL_ID"),
			SigningSecret: getEnv("SLACK_SIGNING_SECRET"),
		},
		Fines: FinesConfig{
			MissingTraining:    getEnvInt("FINE_MISSING_TRAINING", 50),
			MissingMatch:       getEnvInt("FINE_MISSING_MATCH", 100),
			LateResponse:       getEnvInt("FINE_LATE_RESPONSE", 25),
			LateThresholdHours: int(getEnvInt("LATE_RESPONSE_THRESHOLD_HOURS", 24)),
			LateBasis:          getEnvOr("LATE_RESPONSE_BASIS", "invitation"),
		},
		Turso: TursoConfig{
			PrimaryURL: getEnvOr("TURSO_PRIMARY_URL", ""),
			AuthToken:  getEnvOr("TURSO_AUTH_TOKEN", ""),
		},
		ProjectID: getEnv("GCP_PROJECT"),
	}
	return cfg
}

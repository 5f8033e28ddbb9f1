package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI string
	AIAPIKey    string
	AIBaseURL   string
	AIModel     string
	Timezone    string

	// MemberRetentionDays is how long a tombstoned member survives before
	// the hard-delete sweep removes it.
	MemberRetentionDays int

	ReminderMaintenanceCron string
	SuggestionBatchCron     string
	MemberHardDeleteCron    string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	return &Config{
		DatabaseURI:             os.Getenv("DATABASE_URI"),
		AIAPIKey:                os.Getenv("AI_API_KEY"),
		AIBaseURL:               getEnvOrDefault("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		AIModel:                 getEnvOrDefault("AI_MODEL", "openai/gpt-4o-mini"),
		Timezone:                getEnvOrDefault("TIMEZONE", "Asia/Seoul"),
		MemberRetentionDays:     getEnvIntOrDefault("MEMBER_RETENTION_DAYS", 30),
		ReminderMaintenanceCron: getEnvOrDefault("REMINDER_MAINTENANCE_CRON", "0 0 0 * * *"),
		SuggestionBatchCron:     getEnvOrDefault("SUGGESTION_BATCH_CRON", "0 0 2 * * *"),
		MemberHardDeleteCron:    getEnvOrDefault("MEMBER_HARD_DELETE_CRON", "0 0 3 * * *"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

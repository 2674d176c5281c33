package config

import (
	"errors"
	"os"
)

// Config holds the process-level configuration read from environment
// variables. Rule configuration lives in the rules file (see rules.go);
// the token is only ever accepted via the environment.
type Config struct {
	GitLabURL string
	Token     string
	Project   string
	RulesPath string
}

var errTokenMissing = errors.New("environment variable TASKOMAT_TOKEN is not defined")

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TASKOMAT_TOKEN")
	if token == "" {
		return nil, errTokenMissing
	}

	return &Config{
		GitLabURL: getEnvOrDefault("GITLAB_URL", "https://gitlab.com"),
		Token:     token,
		Project:   os.Getenv("TASKOMAT_PROJECT"),
		RulesPath: os.Getenv("TASKOMAT_RULES"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package surveyapi

import (
	"os"
	"time"
)

// ConfigFromEnv loads config from environment variables.
// OVERSIGHT_API_URL, OVERSIGHT_API_TOKEN, OVERSIGHT_SURVEY_URL,
// OVERSIGHT_DOMAIN, OVERSIGHT_API_TIMEOUT
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv("OVERSIGHT_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("OVERSIGHT_API_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("OVERSIGHT_SURVEY_URL"); v != "" {
		cfg.SurveyURL = v
	}
	if v := os.Getenv("OVERSIGHT_DOMAIN"); v != "" {
		cfg.Domain = v
	}
	if v := os.Getenv("OVERSIGHT_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

package invite

import (
	"os"
	"strconv"
)

// Config selects the survey invitations are issued against.
type Config struct {
	SurveyID int
}

// ConfigFromEnv loads config from environment variables.
// OVERSIGHT_SURVEY_ID
func ConfigFromEnv() *Config {
	cfg := &Config{}
	if v := os.Getenv("OVERSIGHT_SURVEY_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SurveyID = n
		}
	}
	return cfg
}

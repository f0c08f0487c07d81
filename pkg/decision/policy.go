// Package decision derives committee outcomes from the survey store's
// attribute rows: quorum decisions, sponsorship candidacy and expiration,
// notification bookkeeping, and the facade that composes them with the
// enterprise directory.
package decision

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Decision values recorded by each reviewing institution, and the purpose
// code distinguishing sponsorship requests from other data-use requests.
// The codes come from the oversight survey's data dictionary.
const (
	DecisionYes = "1"
	DecisionNo  = "2"

	PurposeSponsorship = "1"
)

// ReviewPolicy names the institutions whose review boards must each record
// the same value before a request counts as decided. The quorum size is the
// number of institutions: partial agreement is no decision at all.
type ReviewPolicy struct {
	Institutions []string `yaml:"institutions"`
}

// DefaultReviewPolicy returns the standard three-institution review board.
func DefaultReviewPolicy() ReviewPolicy {
	return ReviewPolicy{Institutions: []string{"kuh", "kupi", "kumc"}}
}

// LoadReviewPolicy loads a review policy from a YAML file. A missing file
// yields the default policy.
func LoadReviewPolicy(path string) (ReviewPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultReviewPolicy(), nil
		}
		return ReviewPolicy{}, fmt.Errorf("read review policy: %w", err)
	}

	var p ReviewPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return ReviewPolicy{}, fmt.Errorf("parse review policy: %w", err)
	}
	if len(p.Institutions) == 0 {
		return ReviewPolicy{}, fmt.Errorf("review policy %s names no institutions", path)
	}
	return p, nil
}

// PartyCount is the quorum size: every institution must record a value.
func (p ReviewPolicy) PartyCount() int { return len(p.Institutions) }

// Config locates the oversight project within the survey store.
type Config struct {
	ProjectID  int    // survey project holding oversight requests
	PolicyPath string // review policy YAML; empty means defaults
}

// ConfigFromEnv loads config from environment variables.
// OVERSIGHT_PROJECT_ID, OVERSIGHT_REVIEW_POLICY
func ConfigFromEnv() *Config {
	cfg := &Config{}
	if v := os.Getenv("OVERSIGHT_PROJECT_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ProjectID = n
		}
	}
	cfg.PolicyPath = os.Getenv("OVERSIGHT_REVIEW_POLICY")
	return cfg
}

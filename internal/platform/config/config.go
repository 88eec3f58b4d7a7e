// Package config builds process configuration from the environment plus an
// optional YAML rules file. Environment variables cover deployment wiring;
// the rules file covers domain knowledge that changes without a redeploy.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pstrings "steward/pkg/platform/strings"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
	AuditInterval time.Duration
	AuditDryRun   bool
	RulesPath     string
}

// Rules captures the jurisdiction and source knowledge the validators need.
type Rules struct {
	SaturdayJurisdictions  []string `yaml:"saturday_jurisdictions"`
	VerifiedPollingSources []string `yaml:"verified_polling_sources"`
	OfficialResultSources  []string `yaml:"official_result_sources"`
	PollingMaxAgeDays      int      `yaml:"polling_max_age_days"`
	MatchThreshold         float64  `yaml:"match_threshold"`
	MatchTieMargin         float64  `yaml:"match_tie_margin"`
	CoverageWindowDays     int      `yaml:"coverage_window_days"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("STEWARD_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("STEWARD_DATABASE_URL"),
		RedisURL:      os.Getenv("STEWARD_REDIS_URL"),
		KafkaTopic:    envOr("STEWARD_KAFKA_TOPIC", "steward.audit-events"),
		JWTSigningKey: envOr("STEWARD_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		RulesPath:     os.Getenv("STEWARD_RULES_PATH"),
		AuditInterval: 6 * time.Hour,
	}
	if brokers := os.Getenv("STEWARD_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if raw := os.Getenv("STEWARD_AUDIT_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.AuditInterval = d
		}
	}
	cfg.AuditDryRun = os.Getenv("STEWARD_AUDIT_DRY_RUN") == "true"
	return cfg
}

// DefaultRules is the baseline domain knowledge shipped with the binary. A
// rules file overrides per field; absent fields keep these values.
func DefaultRules() Rules {
	return Rules{
		SaturdayJurisdictions: []string{"LA"},
		VerifiedPollingSources: []string{
			"Quinnipiac",
			"Marist",
			"Siena College",
			"Emerson College",
			"Gallup",
		},
		OfficialResultSources: []string{
			"Secretary of State",
			"State Election Board",
			"County Clerk",
		},
		PollingMaxAgeDays:  7,
		MatchThreshold:     0.55,
		MatchTieMargin:     0.03,
		CoverageWindowDays: 60,
	}
}

// LoadRules merges the YAML file at path over the defaults. An empty path
// returns the defaults unchanged.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read rules file: %w", err)
	}

	var overlay Rules
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return rules, fmt.Errorf("parse rules file: %w", err)
	}
	if overlay.SaturdayJurisdictions != nil {
		rules.SaturdayJurisdictions = overlay.SaturdayJurisdictions
	}
	if overlay.VerifiedPollingSources != nil {
		rules.VerifiedPollingSources = overlay.VerifiedPollingSources
	}
	if overlay.OfficialResultSources != nil {
		rules.OfficialResultSources = overlay.OfficialResultSources
	}
	if overlay.PollingMaxAgeDays > 0 {
		rules.PollingMaxAgeDays = overlay.PollingMaxAgeDays
	}
	if overlay.MatchThreshold > 0 {
		rules.MatchThreshold = overlay.MatchThreshold
	}
	if overlay.MatchTieMargin > 0 {
		rules.MatchTieMargin = overlay.MatchTieMargin
	}
	if overlay.CoverageWindowDays > 0 {
		rules.CoverageWindowDays = overlay.CoverageWindowDays
	}

	// Operator-maintained lists accumulate duplicates and stray whitespace.
	rules.SaturdayJurisdictions = pstrings.DedupeAndTrim(rules.SaturdayJurisdictions)
	rules.VerifiedPollingSources = pstrings.DedupeAndTrim(rules.VerifiedPollingSources)
	rules.OfficialResultSources = pstrings.DedupeAndTrim(rules.OfficialResultSources)
	return rules, nil
}

// SaturdaySet returns the Saturday jurisdictions as a lookup set of
// normalized state codes.
func (r Rules) SaturdaySet() map[string]bool {
	set := make(map[string]bool, len(r.SaturdayJurisdictions))
	for _, j := range r.SaturdayJurisdictions {
		set[strings.ToUpper(strings.TrimSpace(j))] = true
	}
	return set
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

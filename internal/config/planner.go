package config

import (
	"os"
	"strings"

	"pagi/internal/types"
)

// CanonicalPrompt is the one request the deterministic fallback recognizes.
// It stands in for a learned planner; do not extend its phrase set.
const CanonicalPrompt = "Please research the top anti-aging compounds and schedule a team meeting for next week to present the findings."

// DefaultDisableEnv is the variable that forces the deterministic fallback.
const DefaultDisableEnv = "PAGI_DISABLE_LLM_PLAN"

// DefaultSecurityKeywords are SIEM/EDR vendor tokens that route a prompt to triage.
// Matching is case-insensitive substring containment.
var DefaultSecurityKeywords = []string{
	"crowdstrike",
	"sentinelone",
	"splunk",
	"qradar",
	"carbon black",
	"cortex xdr",
	"microsoft defender",
}

// PlannerConfig configures the planner tiers.
type PlannerConfig struct {
	SecurityKeywords []string `yaml:"security_keywords"`
	TriageAgent      string   `yaml:"triage_agent"`
	CanonicalPrompt  string   `yaml:"canonical_prompt"`
	DisableEnv       string   `yaml:"disable_env"`
}

// DefaultPlannerConfig returns the default planner settings.
func DefaultPlannerConfig() PlannerConfig {
	keywords := make([]string, len(DefaultSecurityKeywords))
	copy(keywords, DefaultSecurityKeywords)
	return PlannerConfig{
		SecurityKeywords: keywords,
		TriageAgent:      types.AgentTypeSecurity,
		CanonicalPrompt:  CanonicalPrompt,
		DisableEnv:       DefaultDisableEnv,
	}
}

// SuppliedPlanDisabled reports whether the disable variable is set to a true-like value.
func (p PlannerConfig) SuppliedPlanDisabled() bool {
	if p.DisableEnv == "" {
		return false
	}
	return IsTruthy(os.Getenv(p.DisableEnv))
}

// IsTruthy interprets boolean-like environment values.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on", "y":
		return true
	default:
		return false
	}
}

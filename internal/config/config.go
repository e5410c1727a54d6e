package config

import (
	"fmt"
	"os"
	"path/filepath"

	"pagi/internal/types"

	"gopkg.in/yaml.v3"
)

// Config holds all PAGI core configuration.
type Config struct {
	Name string `yaml:"name"`

	// Durable fact store
	Store StoreConfig `yaml:"store"`

	// Status channel
	IPC IPCConfig `yaml:"ipc"`

	// Planner tiers
	Planner PlannerConfig `yaml:"planner"`

	// Symbolic rules; empty means types.DefaultRules
	Rules []types.PAGIRule `yaml:"rules"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "pagi",
		Store:   DefaultStoreConfig(),
		IPC:     DefaultIPCConfig(),
		Planner: DefaultPlannerConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("PAGI_DB_PATH"); path != "" {
		c.Store.Path = path
	}
	if name := os.Getenv("PAGI_IPC_NAME"); name != "" {
		c.IPC.Name = name
	}
	if level := os.Getenv("PAGI_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// EffectiveRules returns the configured rules, or the default set when none are configured.
func (c *Config) EffectiveRules() []types.PAGIRule {
	if len(c.Rules) == 0 {
		out := make([]types.PAGIRule, len(types.DefaultRules))
		copy(out, types.DefaultRules)
		return out
	}
	return c.Rules
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store path not configured (set store.path or PAGI_DB_PATH)")
	}
	if c.IPC.Enabled && c.IPC.Name == "" {
		return fmt.Errorf("ipc enabled but ipc.name is empty")
	}
	if c.Planner.TriageAgent == "" {
		return fmt.Errorf("planner.triage_agent must not be empty")
	}
	if c.Planner.CanonicalPrompt == "" {
		return fmt.Errorf("planner.canonical_prompt must not be empty")
	}

	seen := make(map[string]bool, len(c.Rules))
	for i, r := range c.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule %d: id is empty", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("rule %s: duplicate id", r.ID)
		}
		seen[r.ID] = true
		if r.ConditionFactType == "" || r.ConditionKeyword == "" || r.ActionDirective == "" {
			return fmt.Errorf("rule %s: condition_fact_type, condition_keyword and action_directive are required", r.ID)
		}
	}

	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"pagi/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "pagi" {
		t.Errorf("expected Name=pagi, got %s", cfg.Name)
	}
	if cfg.Planner.TriageAgent != types.AgentTypeSecurity {
		t.Errorf("expected TriageAgent=%s, got %s", types.AgentTypeSecurity, cfg.Planner.TriageAgent)
	}
	if cfg.Store.Path != filepath.Join("pagi_knowledge_base", "facts.db") {
		t.Errorf("unexpected store path %s", cfg.Store.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("PAGI_DB_PATH", "")
	t.Setenv("PAGI_IPC_NAME", "")
	t.Setenv("PAGI_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "nested", "pagi.yaml")

	cfg := DefaultConfig()
	cfg.Store.Path = "/var/lib/pagi/facts.db"
	cfg.Rules = []types.PAGIRule{{
		ID:                "timeout_split",
		ConditionFactType: "AnalysisResult",
		ConditionKeyword:  "Timeout",
		ActionDirective:   "Split queries",
	}}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/pagi/facts.db", loaded.Store.Path)
	assert.Equal(t, cfg.Rules, loaded.Rules)
	assert.Equal(t, cfg.Planner.SecurityKeywords, loaded.Planner.SecurityKeywords)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("PAGI_DB_PATH", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Store.Path, cfg.Store.Path)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unclosed"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PAGI_DB_PATH", "/tmp/override.db")
	t.Setenv("PAGI_IPC_NAME", "/tmp/override.sock")
	t.Setenv("PAGI_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/override.db", cfg.Store.Path)
	assert.Equal(t, "/tmp/override.sock", cfg.IPC.Name)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEffectiveRules(t *testing.T) {
	cfg := DefaultConfig()
	rules := cfg.EffectiveRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "rule_failure_rerun_deep", rules[0].ID)

	// The default slice must not be aliased.
	rules[0].ID = "mutated"
	assert.Equal(t, "rule_failure_rerun_deep", types.DefaultRules[0].ID)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"empty ipc name", func(c *Config) { c.IPC.Name = "" }},
		{"empty triage agent", func(c *Config) { c.Planner.TriageAgent = "" }},
		{"rule without id", func(c *Config) {
			c.Rules = []types.PAGIRule{{ConditionFactType: "A", ConditionKeyword: "B", ActionDirective: "C"}}
		}},
		{"rule without keyword", func(c *Config) {
			c.Rules = []types.PAGIRule{{ID: "r", ConditionFactType: "A", ActionDirective: "C"}}
		}},
		{"duplicate rule id", func(c *Config) {
			r := types.PAGIRule{ID: "r", ConditionFactType: "A", ConditionKeyword: "B", ActionDirective: "C"}
			c.Rules = []types.PAGIRule{r, r}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("in-memory store needs no path", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store.Path = ""
		cfg.Store.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}

func TestSuppliedPlanDisabled(t *testing.T) {
	p := DefaultPlannerConfig()
	for _, v := range []string{"1", "true", "TRUE", " yes ", "on"} {
		t.Setenv(DefaultDisableEnv, v)
		assert.True(t, p.SuppliedPlanDisabled(), "value %q", v)
	}
	for _, v := range []string{"", "0", "false", "off", "maybe"} {
		t.Setenv(DefaultDisableEnv, v)
		assert.False(t, p.SuppliedPlanDisabled(), "value %q", v)
	}

	p.DisableEnv = ""
	assert.False(t, p.SuppliedPlanDisabled())
}

func TestLoggingCategories(t *testing.T) {
	lc := LoggingConfig{Categories: map[string]bool{"store": false}}
	assert.False(t, lc.IsCategoryEnabled("store"))
	assert.True(t, lc.IsCategoryEnabled("planner"))
}

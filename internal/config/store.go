package config

import (
	"path/filepath"
	"time"
)

// KnowledgeBaseDir is the default on-disk knowledge base location.
const KnowledgeBaseDir = "pagi_knowledge_base"

// StoreConfig configures the durable fact store.
type StoreConfig struct {
	Path          string `yaml:"path"`
	InMemory      bool   `yaml:"in_memory"`       // tests and throwaway runs
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"` // SQLite lock wait
}

// DefaultStoreConfig returns the default store settings.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Path:          filepath.Join(KnowledgeBaseDir, "facts.db"),
		BusyTimeoutMS: 5000,
	}
}

// BusyTimeout returns the lock wait as a duration.
func (s StoreConfig) BusyTimeout() time.Duration {
	if s.BusyTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.BusyTimeoutMS) * time.Millisecond
}

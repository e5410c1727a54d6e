package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string          `yaml:"level" json:"level,omitempty"`               // debug, info, warn, error
	Format      string          `yaml:"format" json:"format,omitempty"`             // json, console
	Development bool            `yaml:"development" json:"development,omitempty"`   // zap development preset
	OutputPaths []string        `yaml:"output_paths" json:"output_paths,omitempty"` // default stderr
	Categories  map[string]bool `yaml:"categories" json:"categories,omitempty"`     // per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

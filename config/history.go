package config

import "fmt"

// HistoryConfig defines where completed sessions are archived.
type HistoryConfig struct {
	// Backend selects the history store type: "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the SQLite database location.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *HistoryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "chargeshare.db"
	}
}

// Validate checks mandatory fields.
func (c HistoryConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown history backend %s", c.Backend)
	}
	if c.Backend == "sqlite" && c.Path == "" {
		return fmt.Errorf("history path is required for sqlite backend")
	}
	return nil
}

package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level,omitempty"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format,omitempty"` // json, console
	File   string `yaml:"file" json:"file,omitempty"`     // extra output path, optional
}

// IsJSON reports whether structured JSON output was requested.
func (c *LoggingConfig) IsJSON() bool {
	return c.Format == "json"
}

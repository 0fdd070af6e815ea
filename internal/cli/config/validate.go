package config

import (
	"fmt"
	"slices"
)

// OutputFormats lists the accepted values of the output option.
var OutputFormats = []string{"auto", "table", "json", "yaml"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Analyzer == "" {
		return fmt.Errorf("analyzer is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (want one of %v)", c.OutputFormat, OutputFormats)
	}
	for name, s := range c.Scripts {
		if s.Path == "" {
			return fmt.Errorf("scripts.%s: path is required", name)
		}
	}
	return nil
}

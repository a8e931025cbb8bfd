package config

import "fmt"

// ConfigError reports a required configuration field that is absent.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: required field %q is missing", e.Field)
}

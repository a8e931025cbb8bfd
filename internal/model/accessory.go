package model

import "time"

// AccessoryConfig is the immutable configuration of one temperature accessory.
type AccessoryConfig struct {
	Name            string
	SourceID        string
	Scale           Scale
	PollingInterval time.Duration
}

// PollingEnabled reports whether background polling is configured.
func (c AccessoryConfig) PollingEnabled() bool {
	return c.PollingInterval > 0
}

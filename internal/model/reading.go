package model

import "time"

// CachedReading is the last successfully fetched temperature.
// Value is nil exactly when FetchedAt is 0.
type CachedReading struct {
	Value     *float64
	FetchedAt int64
}

// Empty reports whether no fetch has ever succeeded.
func (r CachedReading) Empty() bool {
	return r.FetchedAt == 0
}

// TemperatureReading is the result handed to the host for a read request.
type TemperatureReading struct {
	Value     *float64   `json:"value"`
	Scale     Scale      `json:"scale"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	Stale     bool       `json:"stale"`
	Error     string     `json:"error,omitempty"`
}

package poller

import (
	"context"
	"errors"
	"fmt"
)

// MultiSink pushes each value to every sink in order and joins their errors.
type MultiSink []Sink

func (m MultiSink) SetCurrentTemperature(ctx context.Context, value float64) error {
	var errs []error
	for i, s := range m {
		if err := s.SetCurrentTemperature(ctx, value); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, value float64) error

func (f SinkFunc) SetCurrentTemperature(ctx context.Context, value float64) error {
	return f(ctx, value)
}

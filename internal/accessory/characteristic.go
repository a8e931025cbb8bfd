package accessory

import (
	"context"
	"sync"
	"time"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/config"
	"go.uber.org/zap"
)

// Props bounds the values a host accepts for a characteristic.
type Props struct {
	MinValue float64 `json:"min_value"`
	MaxValue float64 `json:"max_value"`
	MinStep  float64 `json:"min_step"`
}

// CurrentTemperatureProps is the host-side range of the current temperature characteristic.
var CurrentTemperatureProps = Props{MinValue: -60, MaxValue: 120, MinStep: 0.1}

// Characteristic holds the last value pushed for the current temperature.
type Characteristic struct {
	props  Props
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	value     *float64
	updatedAt time.Time
}

// CharacteristicValue is a point-in-time copy of a characteristic.
type CharacteristicValue struct {
	Props     Props      `json:"props"`
	Value     *float64   `json:"value"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func NewCharacteristic(props Props, logger *zap.SugaredLogger) *Characteristic {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Characteristic{props: props, logger: logger}
}

// SetCurrentTemperature stores value. Out-of-range values are kept; the range
// is the host's contract and is only reported here.
func (c *Characteristic) SetCurrentTemperature(_ context.Context, value float64) error {
	if value < c.props.MinValue || value > c.props.MaxValue {
		c.logger.Warnw("Temperature outside characteristic range",
			"temperature", value,
			"min", c.props.MinValue,
			"max", c.props.MaxValue,
		)
	}
	c.mu.Lock()
	c.value = &value
	c.updatedAt = time.Now()
	c.mu.Unlock()
	return nil
}

func (c *Characteristic) Value() CharacteristicValue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := CharacteristicValue{Props: c.props}
	if c.value != nil {
		v := *c.value
		at := c.updatedAt
		out.Value = &v
		out.UpdatedAt = &at
	}
	return out
}

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/config"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// pahoClient is the part of mqtt.Client used here.
type pahoClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// TemperaturePayload is published retained on the accessory topic.
type TemperaturePayload struct {
	Source      string      `json:"source"`
	Name        string      `json:"name"`
	Temperature float64     `json:"temperature"`
	Scale       model.Scale `json:"scale"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Client publishes pushed temperatures to an MQTT broker.
type Client struct {
	client    pahoClient
	topic     string
	accessory model.AccessoryConfig
	logger    *zap.SugaredLogger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// ClientID returns the configured id or a generated "weatherlink-<uuid>".
func ClientID(cfg config.MQTTConfig) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return "weatherlink-" + uuid.NewString()
}

// Topic is the retained topic for one accessory.
func Topic(prefix, sourceID string) string {
	return fmt.Sprintf("%s/%s/current_temperature", prefix, sourceID)
}

func NewClient(cfg config.MQTTConfig, acc model.AccessoryConfig, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = config.GetLogger()
	}
	c := &Client{
		topic:     Topic(cfg.TopicPrefix, acc.SourceID),
		accessory: acc,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(ClientID(cfg))
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Infow("MQTT connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warnw("MQTT connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect waits for the initial broker connection, honouring ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("mqtt client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("mqtt client stopped")
		default:
		}
	}
}

// SetCurrentTemperature publishes value as a retained QoS 1 message.
func (c *Client) SetCurrentTemperature(ctx context.Context, value float64) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(TemperaturePayload{
		Source:      c.accessory.SourceID,
		Name:        c.accessory.Name,
		Temperature: value,
		Scale:       c.accessory.Scale,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal temperature: %w", err)
	}

	token := c.client.Publish(c.topic, 1, true, data)
	select {
	case <-token.Done():
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish timeout for topic %s", c.topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish temperature: %w", err)
	}

	c.logger.Debugw("Published temperature to MQTT", "topic", c.topic, "temperature", value)
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client. Safe to call more than once.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.client != nil {
		c.client.Disconnect(250)
	}
	c.setConnected(false)
	c.logger.Infow("MQTT disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

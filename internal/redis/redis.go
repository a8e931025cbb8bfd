package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/config"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/model"
	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisClient is the subset of *redisv9.Client the publisher needs.
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redisv9.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redisv9.IntCmd
	Close() error
}

// NewClient connects to Redis and verifies the connection with a PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redisv9.Client, error) {
	client := redisv9.NewClient(&redisv9.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// TemperatureMessage is the JSON document stored and published for each push.
type TemperatureMessage struct {
	Source      string      `json:"source"`
	Temperature float64     `json:"temperature"`
	Scale       model.Scale `json:"scale"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Publisher mirrors pushed temperatures into Redis: the latest value under a
// key and every update on a pub/sub channel.
type Publisher struct {
	client  redisClient
	key     string
	channel string
	source  string
	scale   model.Scale
	now     func() time.Time
	logger  *zap.SugaredLogger
}

func NewPublisher(client redisClient, prefix string, acc model.AccessoryConfig, logger *zap.SugaredLogger) *Publisher {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Publisher{
		client:  client,
		key:     CurrentTemperatureKey(prefix, acc.SourceID),
		channel: UpdatesChannel(prefix, acc.SourceID),
		source:  acc.SourceID,
		scale:   acc.Scale,
		now:     time.Now,
		logger:  logger,
	}
}

func CurrentTemperatureKey(prefix, sourceID string) string {
	return fmt.Sprintf("%s:%s:current_temperature", prefix, sourceID)
}

func UpdatesChannel(prefix, sourceID string) string {
	return fmt.Sprintf("%s:%s:updates", prefix, sourceID)
}

// SetCurrentTemperature stores and publishes value.
func (p *Publisher) SetCurrentTemperature(ctx context.Context, value float64) error {
	b, err := json.Marshal(TemperatureMessage{
		Source:      p.source,
		Temperature: value,
		Scale:       p.scale,
		UpdatedAt:   p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal temperature: %w", err)
	}
	if err := p.client.Set(ctx, p.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", p.key, err)
	}
	if err := p.client.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	p.logger.Debugw("Published temperature to redis", "key", p.key, "temperature", value)
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

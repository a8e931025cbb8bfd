package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/config"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/handler"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/middleware"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/model"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/mqtt"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/poller"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/redis"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/repository"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/scraper"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/service"
	"go.uber.org/zap"
)

const (
	connectTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Options is everything needed to assemble the accessory process.
type Options struct {
	Accessory    model.AccessoryConfig
	BaseURL      string
	FetchTimeout time.Duration
	Addr         string
	Redis        config.RedisConfig
	MQTT         config.MQTTConfig

	// RateLimiter defaults to the limits in the rate_limiter config section.
	RateLimiter *middleware.RateLimiter
	// NewTicker overrides the poll schedule; nil uses time.NewTicker.
	NewTicker poller.TickerFactory
	Logger    *zap.SugaredLogger
}

// OptionsFromConfig reads Options from viper. It fails with a
// *config.ConfigError when the accessory username is missing.
func OptionsFromConfig() (Options, error) {
	acc, err := config.GetAccessoryConfig()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Accessory:    acc,
		BaseURL:      config.GetWeatherLinkBaseURL(),
		FetchTimeout: config.GetFetchTimeout(),
		Addr:         ":" + config.GetServerPort(),
		Redis:        config.GetRedisConfig(),
		MQTT:         config.GetMQTTConfig(),
	}, nil
}

// App owns the accessory service, its sinks and the HTTP server.
type App struct {
	Service *service.AccessoryService

	server    *http.Server
	limiter   *middleware.RateLimiter
	redisPub  *redis.Publisher
	mqttCli   *mqtt.Client
	logger    *zap.SugaredLogger
	closeOnce sync.Once
}

// New wires the accessory. Redis and MQTT are optional: when enabled but
// unreachable the app logs a warning and runs without that sink.
func New(ctx context.Context, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	if opts.Accessory.SourceID == "" {
		return nil, &config.ConfigError{Field: "accessory.username"}
	}

	logger.Infow("Config loaded",
		"name", opts.Accessory.Name,
		"source", opts.Accessory.SourceID,
		"scale", opts.Accessory.Scale,
		"pollingInterval", opts.Accessory.PollingInterval,
		"baseURL", opts.BaseURL,
		"fetchTimeout", opts.FetchTimeout,
		"httpAddr", opts.Addr,
		"redisEnabled", opts.Redis.Enabled,
		"mqttEnabled", opts.MQTT.Enabled,
	)

	a := &App{logger: logger}

	httpClient := &http.Client{Timeout: opts.FetchTimeout}
	repo := repository.NewTemperatureRepository(
		opts.Accessory,
		opts.BaseURL,
		scraper.NewScraper(httpClient),
		repository.WithLogger(logger),
	)

	var sinks []poller.Sink
	if opts.Redis.Enabled {
		client, err := redis.NewClient(ctx, opts.Redis)
		if err != nil {
			logger.Warnw("redis connection failed (continuing without redis)", "error", err)
		} else {
			a.redisPub = redis.NewPublisher(client, opts.Redis.KeyPrefix, opts.Accessory, logger)
			sinks = append(sinks, a.redisPub)
		}
	}
	if opts.MQTT.Enabled {
		a.mqttCli = mqtt.NewClient(opts.MQTT, opts.Accessory, logger)
		// Short timeout so a missing broker does not block startup; paho keeps retrying.
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := a.mqttCli.Connect(connectCtx)
		cancel()
		if err != nil {
			logger.Warnw("mqtt connection failed (continuing, will retry)", "error", err)
		}
		sinks = append(sinks, a.mqttCli)
	}

	a.Service = service.NewAccessoryService(opts.Accessory, service.Deps{
		Repo:      repo,
		Sinks:     sinks,
		NewTicker: opts.NewTicker,
		Logger:    logger,
	})

	a.limiter = opts.RateLimiter
	if a.limiter == nil {
		a.limiter = middleware.NewRateLimiterFromConfig()
	}

	mux := http.NewServeMux()
	handler.NewAccessoryHandler(a.Service, logger).Register(mux)

	a.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           a.limiter.Middleware(mux),
		ReadHeaderTimeout: config.GetServerTimeout("read_header_timeout", 15*time.Second),
		ReadTimeout:       config.GetServerTimeout("read_timeout", 15*time.Second),
		WriteTimeout:      config.GetServerTimeout("write_timeout", 10*time.Second),
		IdleTimeout:       config.GetServerTimeout("idle_timeout", 30*time.Second),
	}
	return a, nil
}

// Handler is the rate limited HTTP surface.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run listens on the configured address and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.Close()
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve starts polling and serves HTTP on ln. When ctx is done it shuts the
// server down and releases every sink.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	defer a.Close()

	if !a.Service.StartPolling(ctx) {
		a.logger.Infow("Background polling disabled")
	}
	a.limiter.StartCleanup()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infow("http listening", "addr", ln.Addr().String())
		errCh <- a.server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.logger.Infow("http shutting down")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err := <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops polling and releases the sinks. Safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.Service.StopPolling()
		a.limiter.Stop()
		if a.mqttCli != nil {
			a.logger.Infow("mqtt disconnecting")
			a.mqttCli.Disconnect()
		}
		if a.redisPub != nil {
			if err := a.redisPub.Close(); err != nil {
				a.logger.Errorw("redis close", "error", err)
			}
		}
	})
}

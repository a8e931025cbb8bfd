package service

import (
	"context"
	"errors"
	"time"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/accessory"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/config"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/model"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/poller"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/repository"
	"go.uber.org/zap"
)

// ErrTemperatureUnavailable is returned when a read fails and nothing is cached.
var ErrTemperatureUnavailable = errors.New("temperature unavailable")

// AccessoryServiceInterface is the host-facing read hook of the accessory.
type AccessoryServiceInterface interface {
	GetCurrentTemperature(ctx context.Context) (*model.TemperatureReading, error)
	Information() accessory.Information
	Characteristic() accessory.CharacteristicValue
}

// AccessoryService ties one accessory's fetch cache, characteristic and poll loop together.
type AccessoryService struct {
	Config         model.AccessoryConfig
	Repo           repository.TemperatureRepository
	characteristic *accessory.Characteristic
	poll           *poller.PollLoop
	logger         *zap.SugaredLogger
}

// Deps carries the collaborators of an AccessoryService.
type Deps struct {
	Repo  repository.TemperatureRepository
	Sinks []poller.Sink
	// NewTicker overrides the poll schedule; nil uses time.NewTicker.
	NewTicker poller.TickerFactory
	Logger    *zap.SugaredLogger
}

// NewAccessoryService builds the accessory. The characteristic always receives
// polled values; extra sinks are pushed after it.
func NewAccessoryService(cfg model.AccessoryConfig, deps Deps) *AccessoryService {
	logger := deps.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	logger = logger.With("accessory", cfg.Name)

	characteristic := accessory.NewCharacteristic(accessory.CurrentTemperatureProps, logger)
	sinks := append(poller.MultiSink{characteristic}, deps.Sinks...)

	return &AccessoryService{
		Config:         cfg,
		Repo:           deps.Repo,
		characteristic: characteristic,
		poll: poller.New(poller.Config{
			Interval:  cfg.PollingInterval,
			Source:    deps.Repo,
			Sink:      sinks,
			Logger:    logger,
			NewTicker: deps.NewTicker,
		}),
		logger: logger,
	}
}

// GetCurrentTemperature answers a host read. When the refresh fails but an
// older reading exists, that reading is returned marked stale.
func (s *AccessoryService) GetCurrentTemperature(ctx context.Context) (*model.TemperatureReading, error) {
	value, err := s.Repo.GetTemperature(ctx)
	snap := s.Repo.Snapshot()
	if err == nil {
		return &model.TemperatureReading{
			Value:     &value,
			Scale:     s.Config.Scale,
			FetchedAt: fetchedAt(snap),
		}, nil
	}

	if snap.Empty() {
		s.logger.Warnw("Temperature unavailable", "error", err)
		return nil, errors.Join(ErrTemperatureUnavailable, err)
	}

	s.logger.Warnw("Refresh failed, returning cached temperature", "error", err, "temperature", *snap.Value)
	return &model.TemperatureReading{
		Value:     snap.Value,
		Scale:     s.Config.Scale,
		FetchedAt: fetchedAt(snap),
		Stale:     true,
		Error:     err.Error(),
	}, nil
}

func (s *AccessoryService) Information() accessory.Information {
	return accessory.NewInformation(s.Config)
}

func (s *AccessoryService) Characteristic() accessory.CharacteristicValue {
	return s.characteristic.Value()
}

// StartPolling starts background polling if an interval is configured.
func (s *AccessoryService) StartPolling(ctx context.Context) bool {
	return s.poll.Start(ctx)
}

func (s *AccessoryService) StopPolling() {
	s.poll.Stop()
}

func (s *AccessoryService) Polling() bool {
	return s.poll.Running()
}

func fetchedAt(snap model.CachedReading) *time.Time {
	if snap.Empty() {
		return nil
	}
	t := time.Unix(snap.FetchedAt, 0).UTC()
	return &t
}

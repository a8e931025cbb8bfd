package repository

import (
	"context"
	"sync"
	"time"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/config"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/model"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/scraper"
	"go.uber.org/zap"
)

// StalenessWindow is how long a reading is served from cache when polling is off.
const StalenessWindow = 60 * time.Second

// TemperatureRepository defines the interface for current temperature access
type TemperatureRepository interface {
	GetTemperature(ctx context.Context) (float64, error)
	Snapshot() model.CachedReading
}

// Option customises a temperature repository.
type Option func(*temperatureRepository)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *temperatureRepository) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(r *temperatureRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// temperatureRepository implements TemperatureRepository
type temperatureRepository struct {
	scraper scraper.Scraper
	pageURL string
	cfg     model.AccessoryConfig
	now     func() time.Time
	logger  *zap.SugaredLogger

	// mu guards reading only; it is never held across a remote fetch.
	mu      sync.RWMutex
	reading model.CachedReading
}

// NewTemperatureRepository creates the fetch cache for one accessory.
func NewTemperatureRepository(cfg model.AccessoryConfig, baseURL string, s scraper.Scraper, opts ...Option) TemperatureRepository {
	r := &temperatureRepository{
		scraper: s,
		pageURL: scraper.BuildURL(baseURL, cfg.SourceID, cfg.Scale),
		cfg:     cfg,
		now:     time.Now,
		logger:  config.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetTemperature returns the cached reading, refreshing it from the station page first when required.
func (r *temperatureRepository) GetTemperature(ctx context.Context) (float64, error) {
	cached := r.Snapshot()
	if !r.refreshRequired(cached) {
		r.logger.Debugw("Returning cached temperature", "name", r.cfg.Name, "temperature", *cached.Value)
		return *cached.Value, nil
	}

	field, err := r.scraper.Scrape(ctx, r.pageURL)
	if err != nil {
		return 0, err
	}
	temperature, err := ParseTemperature(field)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.reading = model.CachedReading{Value: &temperature, FetchedAt: r.now().Unix()}
	r.mu.Unlock()

	r.logger.Infow("Fetched temperature",
		"name", r.cfg.Name,
		"temperature", temperature,
		"scale", r.cfg.Scale,
	)
	return temperature, nil
}

// Snapshot returns a copy of the cached reading.
func (r *temperatureRepository) Snapshot() model.CachedReading {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := r.reading
	if snap.Value != nil {
		v := *snap.Value
		snap.Value = &v
	}
	return snap
}

func (r *temperatureRepository) refreshRequired(cached model.CachedReading) bool {
	if cached.Empty() {
		return true
	}
	// Polling mode bypasses the staleness window for on-demand reads as well.
	if r.cfg.PollingEnabled() {
		return true
	}
	return r.now().Unix()-cached.FetchedAt > int64(StalenessWindow/time.Second)
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/model"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/poller"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/scraper"
	"go.uber.org/zap"
)

// Mock repository for testing
type mockTemperatureRepository struct {
	mu      sync.Mutex
	results []mockResult
	reading model.CachedReading
}

type mockResult struct {
	value float64
	err   error
}

func (m *mockTemperatureRepository) GetTemperature(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	if res.err != nil {
		return 0, res.err
	}
	v := res.value
	m.reading = model.CachedReading{Value: &v, FetchedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC).Unix()}
	return v, nil
}

func (m *mockTemperatureRepository) Snapshot() model.CachedReading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reading
}

var testConfig = model.AccessoryConfig{Name: "Roof", SourceID: "abc123", Scale: model.Celsius}

func TestAccessoryService_GetCurrentTemperature(t *testing.T) {
	repo := &mockTemperatureRepository{results: []mockResult{{value: 21.5}}}
	svc := NewAccessoryService(testConfig, Deps{Repo: repo, Logger: zap.NewNop().Sugar()})

	reading, err := svc.GetCurrentTemperature(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if reading.Value == nil || *reading.Value != 21.5 {
		t.Errorf("Expected 21.5, got %v", reading.Value)
	}
	if reading.Stale {
		t.Error("Expected fresh reading")
	}
	if reading.Scale != model.Celsius {
		t.Errorf("Expected celsius, got %s", reading.Scale)
	}
	if reading.FetchedAt == nil || !reading.FetchedAt.Equal(time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected fetched_at from cache, got %v", reading.FetchedAt)
	}
}

func TestAccessoryService_FallsBackToCachedValue(t *testing.T) {
	fetchErr := &scraper.FetchError{URL: "http://station", StatusCode: 503}
	repo := &mockTemperatureRepository{results: []mockResult{{value: 19}, {err: fetchErr}}}
	svc := NewAccessoryService(testConfig, Deps{Repo: repo, Logger: zap.NewNop().Sugar()})
	ctx := context.Background()

	if _, err := svc.GetCurrentTemperature(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	reading, err := svc.GetCurrentTemperature(ctx)
	if err != nil {
		t.Fatalf("Expected stale reading without error, got %v", err)
	}
	if !reading.Stale {
		t.Error("Expected reading to be marked stale")
	}
	if reading.Value == nil || *reading.Value != 19 {
		t.Errorf("Expected cached 19, got %v", reading.Value)
	}
	if reading.Error != fetchErr.Error() {
		t.Errorf("Expected error text %q, got %q", fetchErr.Error(), reading.Error)
	}
}

func TestAccessoryService_NoValueYet(t *testing.T) {
	parseErr := &scraper.ParseError{Field: "", Reason: "empty"}
	repo := &mockTemperatureRepository{results: []mockResult{{err: parseErr}}}
	svc := NewAccessoryService(testConfig, Deps{Repo: repo, Logger: zap.NewNop().Sugar()})

	reading, err := svc.GetCurrentTemperature(context.Background())
	if reading != nil {
		t.Errorf("Expected no reading, got %+v", reading)
	}
	if !errors.Is(err, ErrTemperatureUnavailable) {
		t.Errorf("Expected ErrTemperatureUnavailable, got %v", err)
	}
	if !errors.Is(err, scraper.ErrParse) {
		t.Errorf("Expected wrapped parse error, got %v", err)
	}
}

func TestAccessoryService_Information(t *testing.T) {
	svc := NewAccessoryService(testConfig, Deps{Repo: &mockTemperatureRepository{}, Logger: zap.NewNop().Sugar()})

	info := svc.Information()
	if info.Manufacturer != "WeatherLink" || info.Model != "celsius" || info.SerialNumber != "abc123" || info.FirmwareRevision != "0.0.1" {
		t.Errorf("Unexpected information %+v", info)
	}
	if svc.Characteristic().Value != nil {
		t.Error("Expected empty characteristic before any push")
	}
}

type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

func TestAccessoryService_PollingPushesToCharacteristicAndSinks(t *testing.T) {
	cfg := testConfig
	cfg.PollingInterval = 5 * time.Minute
	repo := &mockTemperatureRepository{results: []mockResult{{value: 20.1}, {value: 20.4}}}
	pushed := make(chan float64, 4)
	ticker := &manualTicker{ch: make(chan time.Time)}
	var gotInterval time.Duration

	svc := NewAccessoryService(cfg, Deps{
		Repo: repo,
		Sinks: []poller.Sink{poller.SinkFunc(func(_ context.Context, v float64) error {
			pushed <- v
			return nil
		})},
		NewTicker: func(d time.Duration) poller.Ticker {
			gotInterval = d
			return ticker
		},
		Logger: zap.NewNop().Sugar(),
	})

	if !svc.StartPolling(context.Background()) {
		t.Fatal("Expected polling to start")
	}
	defer svc.StopPolling()
	if gotInterval != 5*time.Minute {
		t.Errorf("Expected 5m interval, got %v", gotInterval)
	}

	for _, want := range []float64{20.1, 20.4} {
		ticker.ch <- time.Now()
		select {
		case got := <-pushed:
			if got != want {
				t.Errorf("Expected push %v, got %v", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("Expected push %v", want)
		}
		if v := svc.Characteristic().Value; v == nil || *v != want {
			t.Errorf("Expected characteristic %v, got %v", want, v)
		}
	}
}

func TestAccessoryService_PollingDisabled(t *testing.T) {
	svc := NewAccessoryService(testConfig, Deps{Repo: &mockTemperatureRepository{}, Logger: zap.NewNop().Sugar()})

	if svc.StartPolling(context.Background()) {
		t.Error("Expected polling to stay stopped with zero interval")
	}
	if svc.Polling() {
		t.Error("Expected Polling() false")
	}
	svc.StopPolling()
}

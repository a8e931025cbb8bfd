package poller

import (
	"context"
	"sync"
	"time"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/config"
	"go.uber.org/zap"
)

// TemperatureSource is read once per tick.
type TemperatureSource interface {
	GetTemperature(ctx context.Context) (float64, error)
}

// Sink receives every successfully polled temperature.
type Sink interface {
	SetCurrentTemperature(ctx context.Context, value float64) error
}

// Ticker delivers the poll schedule.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the TickerFactory backed by time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Config wires a PollLoop.
type Config struct {
	Interval  time.Duration
	Source    TemperatureSource
	Sink      Sink
	Logger    *zap.SugaredLogger
	NewTicker TickerFactory
}

// PollLoop refreshes the temperature on a fixed interval and pushes
// successful readings to its sink. Failed cycles are logged and skipped.
type PollLoop struct {
	interval  time.Duration
	source    TemperatureSource
	sink      Sink
	logger    *zap.SugaredLogger
	newTicker TickerFactory

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *PollLoop {
	logger := cfg.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	newTicker := cfg.NewTicker
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	return &PollLoop{
		interval:  cfg.Interval,
		source:    cfg.Source,
		sink:      cfg.Sink,
		logger:    logger,
		newTicker: newTicker,
	}
}

// Start launches the loop and reports whether it is running. With a zero
// interval the loop stays stopped.
func (p *PollLoop) Start(ctx context.Context) bool {
	if p.interval <= 0 {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil && !isClosed(p.done) {
		return true
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := p.newTicker(p.interval)
	p.cancel = cancel
	p.done = done

	go p.run(ctx, ticker, done)
	p.logger.Infow("Background polling started", "interval", p.interval)
	return true
}

// Stop cancels an in-flight poll and waits for the loop to exit.
func (p *PollLoop) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Infow("Background polling stopped")
}

func (p *PollLoop) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil && !isClosed(p.done)
}

func (p *PollLoop) run(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.poll(ctx)
		}
	}
}

func (p *PollLoop) poll(ctx context.Context) {
	p.logger.Debugw("Polling data in background")
	temperature, err := p.source.GetTemperature(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warnw("Background poll failed", "error", err)
		}
		return
	}
	if err := p.sink.SetCurrentTemperature(ctx, temperature); err != nil {
		p.logger.Warnw("Pushing polled temperature failed", "temperature", temperature, "error", err)
	}
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

package repository

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/scraper"
)

// RoundTripperFunc allows us to easily mock http.Client responses in tests.
type RoundTripperFunc func(*http.Request) *http.Response

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// mockScraper returns queued responses and records every requested URL.
type mockScraper struct {
	mu        sync.Mutex
	responses []scrapeResult
	urls      []string
}

type scrapeResult struct {
	field string
	err   error
}

func (m *mockScraper) Scrape(ctx context.Context, pageURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, pageURL)
	if len(m.responses) == 0 {
		return "", &scraper.FetchError{URL: pageURL, StatusCode: http.StatusServiceUnavailable}
	}
	res := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return res.field, res.err
}

func (m *mockScraper) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.urls)
}

package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stationPage = `<html><body>
<table class="glamor_main">
  <tr><td class="glamor_label">Outside Temp</td><td class="glamor_temp">21.5&nbsp;°C</td></tr>
  <tr><td class="glamor_label">Humidity</td><td class="glamor_hum">54%</td></tr>
</table>
</body></html>`

func newMockHTTPClient(fn func(req *http.Request) *http.Response) *http.Client {
	return &http.Client{Transport: RoundTripperFunc(fn)}
}

func htmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		scale model.Scale
		want  string
	}{
		{
			name:  "celsius",
			base:  "http://www.weatherlink.com/user",
			scale: model.Celsius,
			want:  "http://www.weatherlink.com/user/abc123/index.php?view=main&headers=0&type=1",
		},
		{
			name:  "fahrenheit",
			base:  "http://www.weatherlink.com/user",
			scale: model.Fahrenheit,
			want:  "http://www.weatherlink.com/user/abc123/index.php?view=main&headers=0&type=2",
		},
		{
			name:  "trailing slash on base",
			base:  "http://www.weatherlink.com/user/",
			scale: model.Celsius,
			want:  "http://www.weatherlink.com/user/abc123/index.php?view=main&headers=0&type=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildURL(tt.base, "abc123", tt.scale))
		})
	}
}

func TestScrape_ExtractsTemperatureCell(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/abc123/index.php", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("type"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(stationPage))
	}))
	defer srv.Close()

	s := NewScraper(srv.Client())
	field, err := s.Scrape(context.Background(), BuildURL(srv.URL+"/user", "abc123", model.Celsius))
	require.NoError(t, err)
	assert.Equal(t, "21.5\u00a0°C", field)
}

func TestScrape_ClassAmongSeveral(t *testing.T) {
	client := newMockHTTPClient(func(req *http.Request) *http.Response {
		return htmlResponse(http.StatusOK, `<table><tr><td class="big glamor_temp bold"> -3.2 </td></tr></table>`)
	})
	field, err := NewScraper(client).Scrape(context.Background(), "http://station.test/x/index.php")
	require.NoError(t, err)
	assert.Equal(t, "-3.2", field)
}

func TestScrape_IgnoresNestedElements(t *testing.T) {
	client := newMockHTTPClient(func(req *http.Request) *http.Response {
		return htmlResponse(http.StatusOK, `<table><tr><td class="glamor_temp"><span>9</span></td></tr></table>`)
	})
	field, err := NewScraper(client).Scrape(context.Background(), "http://station.test/x/index.php")
	require.NoError(t, err)
	assert.Equal(t, "", field)
}

func TestScrape_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantFetch bool
		wantParse bool
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "oops", wantFetch: true},
		{name: "not found", status: http.StatusNotFound, body: "no such user", wantFetch: true},
		{name: "missing cell", status: http.StatusOK, body: `<html><body><p>maintenance</p></body></html>`, wantParse: true},
		{name: "wrong element", status: http.StatusOK, body: `<div class="glamor_temp">20</div>`, wantParse: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockHTTPClient(func(req *http.Request) *http.Response {
				return htmlResponse(tt.status, tt.body)
			})
			_, err := NewScraper(client).Scrape(context.Background(), "http://station.test/x/index.php")
			require.Error(t, err)
			assert.Equal(t, tt.wantFetch, errors.Is(err, ErrFetch), "fetch error: %v", err)
			assert.Equal(t, tt.wantParse, errors.Is(err, ErrParse), "parse error: %v", err)

			if tt.wantFetch {
				var fetchErr *FetchError
				require.ErrorAs(t, err, &fetchErr)
				assert.Equal(t, tt.status, fetchErr.StatusCode)
			}
		})
	}
}

func TestScrape_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewScraper().Scrape(context.Background(), url+"/x/index.php")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestScrape_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(stationPage))
	}))
	defer srv.Close()

	_, err := NewScraper(srv.Client()).Scrape(ctx, srv.URL+"/x/index.php")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractTemperatureField(t *testing.T) {
	field, err := ExtractTemperatureField(strings.NewReader(stationPage))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(field, "21.5"))
}

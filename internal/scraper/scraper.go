package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/model"
	"golang.org/x/net/html"
)

// TemperatureClass marks the current-temperature cell on the station page.
const TemperatureClass = "glamor_temp"

const maxPageSize = 2 << 20

// Scraper extracts the raw current-temperature text from a station page.
type Scraper interface {
	Scrape(ctx context.Context, pageURL string) (string, error)
}

// htmlScraper implements Scraper over plain HTTP GETs
type htmlScraper struct {
	httpClient *http.Client
}

// NewScraper creates a scraper; an optional client overrides http.DefaultClient.
func NewScraper(httpClient ...*http.Client) Scraper {
	client := http.DefaultClient
	if len(httpClient) > 0 && httpClient[0] != nil {
		client = httpClient[0]
	}
	return &htmlScraper{httpClient: client}
}

// BuildURL returns the station page URL for sourceID in the given display type.
func BuildURL(base, sourceID string, scale model.Scale) string {
	return fmt.Sprintf("%s/%s/index.php?view=main&headers=0&type=%s",
		strings.TrimRight(base, "/"), url.PathEscape(sourceID), scale.QueryType())
}

func (s *htmlScraper) Scrape(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageSize))
		return "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	field, err := ExtractTemperatureField(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			return "", err
		}
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("read page: %w", err)}
	}
	return field, nil
}

// ExtractTemperatureField returns the current-temperature text from an HTML document.
func ExtractTemperatureField(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	cell := findByClass(doc, "td", TemperatureClass)
	if cell == nil {
		return "", &ParseError{Reason: fmt.Sprintf("no <td class=%q> on page", TemperatureClass)}
	}
	return directText(cell), nil
}

// findByClass does a depth-first search for the first tag element carrying class.
func findByClass(n *html.Node, tag, class string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, tag, class); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// directText joins the text children of n, ignoring nested elements.
func directText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

// Package trends looks up trending searches through a search API.
package trends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// DefaultURL is the search API base.
	DefaultURL = "https://serpapi.com"

	// DefaultEngine is the search engine queried.
	DefaultEngine = "google_trends"
)

// ErrEmptyQuery is returned when no search term is given.
var ErrEmptyQuery = errors.New("query is required")

// Config configures the trends client.
type Config struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
	Engine string `toml:"engine"`
}

// Enabled reports whether an API key is configured.
func (c Config) Enabled() bool {
	return c.APIKey != ""
}

// Trend is one related search for the looked-up term.
type Trend struct {
	Query string `json:"query"`

	// Value is the provider's display value (e.g., "100" or "+250%").
	Value string `json:"value"`

	// Score is the numeric form of Value.
	Score int64 `json:"score"`

	// Rising is true for breakout queries, false for top queries.
	Rising bool   `json:"rising"`
	Link   string `json:"link,omitempty"`
}

// ProviderError is a failure reported by the search API.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("search api returned %d: %s", e.StatusCode, e.Message)
}

// Client queries the search API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a Client. APIKey is required.
func NewClient(config Config, httpClient *http.Client) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.New("search api key is required")
	}
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.Engine == "" {
		config.Engine = DefaultEngine
	}
	config.URL = strings.TrimRight(config.URL, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{config: config, httpClient: httpClient}, nil
}

// Lookup returns the top then rising queries related to query. geo is an
// optional region code (e.g., "US").
func (c *Client) Lookup(ctx context.Context, query, geo string) ([]Trend, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("engine", c.config.Engine)
	params.Set("q", query)
	params.Set("data_type", "RELATED_QUERIES")
	params.Set("api_key", c.config.APIKey)
	if geo != "" {
		params.Set("geo", strings.ToUpper(geo))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if msg := gjson.GetBytes(body, "error"); httpResp.StatusCode != http.StatusOK || msg.Exists() {
		message := msg.String()
		if message == "" {
			message = http.StatusText(httpResp.StatusCode)
		}
		return nil, ProviderError{StatusCode: httpResp.StatusCode, Message: message}
	}

	related := gjson.GetBytes(body, "related_queries")
	trends := []Trend{}
	trends = appendTrends(trends, related.Get("top"), false)
	trends = appendTrends(trends, related.Get("rising"), true)
	return trends, nil
}

func appendTrends(trends []Trend, list gjson.Result, rising bool) []Trend {
	list.ForEach(func(_, item gjson.Result) bool {
		q := item.Get("query").String()
		if q == "" {
			return true
		}
		trends = append(trends, Trend{
			Query:  q,
			Value:  item.Get("value").String(),
			Score:  item.Get("extracted_value").Int(),
			Rising: rising,
			Link:   item.Get("link").String(),
		})
		return true
	})
	return trends
}

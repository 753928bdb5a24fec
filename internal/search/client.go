package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/grabarr/grabarr/internal/config"
)

// Retry policy for transient aggregator failures.
const (
	retryAttempts = 3
	retryDelay    = 500 * time.Millisecond
)

// Client queries the indexer aggregator's combined-results endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	category   int
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new aggregator client.
func NewClient(cfg config.SearchConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(cfg.URL, "/"),
		apiKey:   cfg.APIKey,
		category: cfg.Category,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: zerolog.Nop(),
	}

	if c.category == 0 {
		c.category = config.DefaultCategory
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// aggregatorResponse is the envelope of the combined-results endpoint.
type aggregatorResponse struct {
	Results []RawResult `json:"Results"`
}

// Search performs one aggregated query and returns the raw result set.
// Network-level failures are retried a bounded number of times; rejections
// from the aggregator itself (bad API key, malformed response) are not.
func (c *Client) Search(ctx context.Context, query string) ([]RawResult, error) {
	params := url.Values{
		"apikey":     {c.apiKey},
		"Query":      {query},
		"Category[]": {strconv.Itoa(c.category)},
	}
	reqURL := c.baseURL + "/api/v2.0/indexers/all/results?" + params.Encode()

	var results []RawResult
	err := retry.Do(
		func() error {
			var attemptErr error
			results, attemptErr = c.fetch(ctx, reqURL)
			return attemptErr
		},
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var searchErr *SearchError
		if errors.As(err, &searchErr) {
			return nil, searchErr
		}
		return nil, &SearchError{Reason: "aggregator unreachable", Err: err}
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("search complete")

	return results, nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]RawResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(&SearchError{Reason: "building request", Err: err})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transient: let the retry policy have another go.
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.Unrecoverable(&SearchError{Reason: "invalid API key"})
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Unrecoverable(&SearchError{
			Reason: fmt.Sprintf("aggregator returned status %d", resp.StatusCode),
		})
	}

	var body aggregatorResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, retry.Unrecoverable(&SearchError{Reason: "malformed response", Err: err})
	}

	return body.Results, nil
}

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/grabarr/grabarr/internal/config"
)

// Client talks to a Jellyfin-compatible media server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new media server client.
func NewClient(cfg config.MediaConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// itemsEnvelope is the paging envelope around item listings.
type itemsEnvelope struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &MediaError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &MediaError{
			Op:  op,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	return resp, nil
}

// RescanLibraries asks the media server to re-scan all libraries so freshly
// organized content shows up.
func (c *Client) RescanLibraries(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/Library/Refresh", nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, "refresh libraries")
	if err != nil {
		return err
	}
	resp.Body.Close()

	c.logger.Info().Msg("triggered media library rescan")
	return nil
}

// ListItems returns library items, optionally narrowed by a search term and
// paged by limit/start index.
func (c *Client) ListItems(ctx context.Context, opts ListOptions) ([]Item, int, error) {
	query := url.Values{"Recursive": {"true"}}
	if opts.SearchTerm != "" {
		query.Set("SearchTerm", opts.SearchTerm)
	}
	if opts.Limit > 0 {
		query.Set("Limit", strconv.Itoa(opts.Limit))
	}
	if opts.StartIndex > 0 {
		query.Set("StartIndex", strconv.Itoa(opts.StartIndex))
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/Items", query)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.do(req, "list items")
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var envelope itemsEnvelope
	if err = json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, 0, &MediaError{Op: "list items", Err: err}
	}

	return envelope.Items, envelope.TotalRecordCount, nil
}

// GetItem fetches a single library item by id.
func (c *Client) GetItem(ctx context.Context, id string) (*Item, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/Items/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, "get item")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var item Item
	if err = json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, &MediaError{Op: "get item", Err: err}
	}

	return &item, nil
}

// StreamURL returns the direct-stream URL for an item. The token rides in the
// query string because media players cannot set headers on plain URLs.
func (c *Client) StreamURL(id string) string {
	return c.baseURL + "/Videos/" + url.PathEscape(id) + "/stream?api_key=" + url.QueryEscape(c.token)
}

// TestConnection probes the media server's system info endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/System/Info", nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, "system info")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var info SystemInfo
	if err = json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return &MediaError{Op: "system info", Err: err}
	}

	c.logger.Debug().
		Str("server", info.ServerName).
		Str("version", info.Version).
		Msg("media server connection test successful")

	return nil
}

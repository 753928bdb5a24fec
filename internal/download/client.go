package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/grabarr/grabarr/internal/config"
)

// sessionCookie is the cookie qBittorrent issues on login.
const sessionCookie = "SID"

// Client talks to the qBittorrent Web API. It owns the session token and
// re-authenticates lazily when the daemon reports the session stale.
type Client struct {
	baseURL     string
	username    string
	password    string
	authTimeout time.Duration
	httpClient  *http.Client
	logger      zerolog.Logger

	mu  sync.Mutex
	sid string
}

// NewClient creates a new qBittorrent client.
func NewClient(cfg config.DownloaderConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimSuffix(cfg.URL, "/"),
		username:    cfg.Username,
		password:    cfg.Password,
		authTimeout: cfg.AuthTimeout,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: zerolog.Nop(),
	}

	if c.authTimeout == 0 {
		c.authTimeout = config.DefaultAuthTimeout
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect verifies the daemon is reachable and credentials are accepted.
// It is intended as a construction-time availability probe.
func (c *Client) Connect(ctx context.Context) error {
	if _, err := c.ensureSession(ctx); err != nil {
		return err
	}

	c.logger.Info().Str("url", c.baseURL).Msg("connected to download daemon")
	return nil
}

// authenticate submits credentials to the daemon's login endpoint and stores
// the session token extracted from the response cookie.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	// Login gets a shorter deadline than general requests.
	authCtx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()

	data := url.Values{
		"username": {c.username},
		"password": {c.password},
	}

	req, err := http.NewRequestWithContext(
		authCtx, http.MethodPost,
		c.baseURL+"/api/v2/auth/login",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return "", &AuthError{Reason: "building login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Reason: "daemon unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Reason: fmt.Sprintf("login returned status %d", resp.StatusCode)}
	}
	if strings.TrimSpace(string(body)) != "Ok." {
		return "", &AuthError{Reason: "credentials rejected"}
	}

	var sid string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie {
			sid = cookie.Value
			break
		}
	}
	if sid == "" {
		return "", &AuthError{Reason: "no session cookie in login response"}
	}

	c.mu.Lock()
	c.sid = sid
	c.mu.Unlock()

	c.logger.Debug().Msg("obtained new session")
	return sid, nil
}

// ensureSession returns the current session token, authenticating first if
// none is held. Token validity is discovered lazily on use.
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	sid := c.sid
	c.mu.Unlock()

	if sid != "" {
		return sid, nil
	}
	return c.authenticate(ctx)
}

// clearSession drops the stored token so the next call re-authenticates.
func (c *Client) clearSession() {
	c.mu.Lock()
	c.sid = ""
	c.mu.Unlock()
}

// AddTorrent submits a magnet link or torrent-file URL to the daemon.
// On an authentication-class rejection (401/403) the stored session is
// cleared and the whole operation retried exactly once with a fresh session;
// any other failure propagates immediately.
func (c *Client) AddTorrent(ctx context.Context, source string, opts AddOptions) (*AddResult, error) {
	sid, err := c.ensureSession(ctx)
	if err != nil {
		return nil, &DownloadError{Op: "add torrent", Err: err}
	}

	err = c.submitAdd(ctx, sid, source, opts)
	if err == nil {
		c.logger.Info().Str("source", source).Msg("torrent added")
		return &AddResult{Source: source}, nil
	}
	if !isAuthStatus(err) {
		return nil, &DownloadError{Op: "add torrent", Err: err}
	}

	// Session went stale server-side. One retry with a fresh session,
	// bounded so genuinely bad credentials cannot loop.
	c.logger.Debug().Msg("session rejected, re-authenticating")
	c.clearSession()

	sid, err = c.authenticate(ctx)
	if err != nil {
		return nil, &DownloadError{Op: "add torrent", Err: err}
	}
	if err = c.submitAdd(ctx, sid, source, opts); err != nil {
		return nil, &DownloadError{Op: "add torrent (after re-auth)", Err: err}
	}

	c.logger.Info().Str("source", source).Msg("torrent added")
	return &AddResult{Source: source}, nil
}

func (c *Client) submitAdd(ctx context.Context, sid, source string, opts AddOptions) error {
	data := url.Values{
		"urls": {source},
	}
	if opts.SavePath != "" {
		data.Set("savepath", opts.SavePath)
	}
	if opts.Category != "" {
		data.Set("category", opts.Category)
	}
	if len(opts.Tags) > 0 {
		data.Set("tags", strings.Join(opts.Tags, ","))
	}
	if opts.Paused {
		data.Set("paused", "true")
	}
	if opts.Rename != "" {
		data.Set("rename", opts.Rename)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.baseURL+"/api/v2/torrents/add",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sid})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	return nil
}

// ListTorrents queries the daemon's listing endpoint with pass-through
// filters. Reads do not get the auth retry: a persistent outage should
// surface rather than hide behind silent re-login attempts.
func (c *Client) ListTorrents(ctx context.Context, filters ListFilters) ([]TorrentRecord, error) {
	sid, err := c.ensureSession(ctx)
	if err != nil {
		return nil, &DownloadError{Op: "list torrents", Err: err}
	}

	params := url.Values{}
	if filters.Filter != "" {
		params.Set("filter", filters.Filter)
	}
	if filters.Category != "" {
		params.Set("category", filters.Category)
	}
	if filters.Tag != "" {
		params.Set("tag", filters.Tag)
	}
	if filters.Sort != "" {
		params.Set("sort", filters.Sort)
	}
	if filters.Reverse {
		params.Set("reverse", "true")
	}
	if filters.Limit > 0 {
		params.Set("limit", strconv.Itoa(filters.Limit))
	}
	if filters.Offset > 0 {
		params.Set("offset", strconv.Itoa(filters.Offset))
	}
	if len(filters.Hashes) > 0 {
		params.Set("hashes", strings.Join(filters.Hashes, "|"))
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		c.baseURL+"/api/v2/torrents/info?"+params.Encode(),
		nil,
	)
	if err != nil {
		return nil, &DownloadError{Op: "list torrents", Err: err}
	}
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sid})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DownloadError{Op: "list torrents", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &DownloadError{
			Op:  "list torrents",
			Err: &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))},
		}
	}

	var torrents []TorrentRecord
	if err = json.NewDecoder(resp.Body).Decode(&torrents); err != nil {
		return nil, &DownloadError{Op: "decode torrent list", Err: err}
	}

	return torrents, nil
}

// Logout invalidates the session server-side on a best-effort basis and
// unconditionally clears the local token. Safe to call without a session.
func (c *Client) Logout(ctx context.Context) {
	c.mu.Lock()
	sid := c.sid
	c.mu.Unlock()

	if sid == "" {
		return
	}

	defer c.clearSession()

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.baseURL+"/api/v2/auth/logout",
		nil,
	)
	if err != nil {
		c.logger.Warn().Err(err).Msg("building logout request failed")
		return
	}
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sid})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("server-side logout failed")
		return
	}
	_ = resp.Body.Close()

	c.logger.Debug().Msg("session invalidated")
}

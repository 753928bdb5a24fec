// Package api provides the HTTP API server.
package api //nolint:revive // api is a common, well-understood package name

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/grabarr/grabarr/apitypes"
	"github.com/grabarr/grabarr/internal/download"
	"github.com/grabarr/grabarr/internal/events"
	"github.com/grabarr/grabarr/internal/media"
	"github.com/grabarr/grabarr/internal/organize"
	"github.com/grabarr/grabarr/internal/search"
)

// validIDPattern matches valid ID formats: alphanumeric, hyphens, underscores.
// This is intentionally permissive to support the media server's item ID
// formats while blocking path traversal and injection.
var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// maxIDLength is the maximum allowed length for ID parameters.
const maxIDLength = 256

// validateID checks that an ID parameter is non-empty, reasonable length,
// and contains only safe characters.
func validateID(id string) error {
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	if len(id) > maxIDLength {
		return echo.NewHTTPError(http.StatusBadRequest, "id too long")
	}
	if !validIDPattern.MatchString(id) {
		return echo.NewHTTPError(http.StatusBadRequest, "id contains invalid characters")
	}
	return nil
}

// Searcher queries the indexer aggregator.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.RawResult, error)
}

// Downloader is the download-client surface the API adapts.
type Downloader interface {
	AddTorrent(ctx context.Context, source string, opts download.AddOptions) (*download.AddResult, error)
	ListTorrents(ctx context.Context, filters download.ListFilters) ([]download.TorrentRecord, error)
}

// Organizer runs one reorganization pass.
type Organizer interface {
	Organize(ctx context.Context, sourceDir, destDir string) (*organize.Report, error)
}

// Library is the media-server surface the API adapts.
type Library interface {
	ListItems(ctx context.Context, opts media.ListOptions) ([]media.Item, int, error)
	GetItem(ctx context.Context, id string) (*media.Item, error)
	StreamURL(id string) string
}

// StatsSource reports reconciliation progress.
type StatsSource interface {
	ProcessedCount() int
}

// Deps are the collaborators the API server adapts. Library, Recorder, and
// Stats may be nil; the corresponding endpoints degrade gracefully.
type Deps struct {
	Searcher   Searcher
	Downloader Downloader
	Organizer  Organizer
	Library    Library
	Recorder   events.Recorder
	Stats      StatsSource

	// APIKey is the shared secret required on every route except health.
	APIKey string

	// Paths and defaults handed to the organize and add operations.
	DownloadsPath string
	LibraryPath   string
	SavePath      string
	Category      string

	RankOptions search.RankOptions
}

// Server is the HTTP API server. Every route is a thin adapter onto a core
// component; no pipeline logic lives here.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger zerolog.Logger
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new API server.
func New(deps Deps, opts ...Option) *Server {
	s := &Server{
		echo:   echo.New(),
		deps:   deps,
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.echo.HideBanner = true
	s.echo.HidePort = true

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Msg("request")
			}
			return nil
		},
	}))

	// Recovery
	s.echo.Use(middleware.Recover())

	// CORS
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	// Health check is the only ungated route.
	api.GET("/health", s.healthHandler)

	gated := api.Group("", middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:X-Api-Key",
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(s.deps.APIKey)) == 1, nil
		},
	}))

	gated.GET("/search", s.searchHandler)
	gated.POST("/grab", s.grabHandler)

	gated.POST("/torrents", s.addTorrentHandler)
	gated.GET("/torrents", s.listTorrentsHandler)

	gated.POST("/organize", s.organizeHandler)

	gated.GET("/library", s.listLibraryHandler)
	gated.GET("/library/:id", s.getLibraryItemHandler)
	gated.GET("/library/:id/stream", s.streamHandler)

	gated.GET("/events", s.eventsHandler)
	gated.GET("/stats", s.statsHandler)
}

// Start starts the server.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting http server")
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// upstreamError maps a typed component error to a response. Detail strings
// stay human-readable; credentials and stacks never appear in them.
func upstreamError(err error) *echo.HTTPError {
	var (
		authErr   *download.AuthError
		dlErr     *download.DownloadError
		searchErr *search.SearchError
		orgErr    *organize.OrganizeError
		mediaErr  *media.MediaError
	)

	switch {
	case errors.As(err, &authErr):
		return echo.NewHTTPError(http.StatusBadGateway, "download daemon rejected authentication")
	case errors.As(err, &dlErr):
		return echo.NewHTTPError(http.StatusBadGateway, dlErr.Error())
	case errors.As(err, &searchErr):
		return echo.NewHTTPError(http.StatusBadGateway, searchErr.Error())
	case errors.As(err, &orgErr):
		return echo.NewHTTPError(http.StatusInternalServerError, orgErr.Error())
	case errors.As(err, &mediaErr):
		return echo.NewHTTPError(http.StatusBadGateway, mediaErr.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// Handlers

func (s *Server) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, apitypes.HealthResponse{Status: "ok"})
}

func (s *Server) rankedSearch(c echo.Context, query string) ([]search.Result, error) {
	raw, err := s.deps.Searcher.Search(c.Request().Context(), query)
	if err != nil {
		return nil, upstreamError(err)
	}

	results := search.Rank(raw, s.deps.RankOptions)

	s.record(events.Event{
		Type:    events.SearchPerformed,
		Message: query,
		Details: map[string]any{"raw": len(raw), "ranked": len(results)},
	})

	return results, nil
}

func (s *Server) searchHandler(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	results, err := s.rankedSearch(c, query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, results)
}

func (s *Server) grabHandler(c echo.Context) error {
	var req apitypes.GrabRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	results, err := s.rankedSearch(c, req.Query)
	if err != nil {
		return err
	}

	top, ok := firstDownloadable(results)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no suitable candidate found")
	}

	if _, err := s.deps.Downloader.AddTorrent(c.Request().Context(), top.Source, download.AddOptions{
		SavePath: s.deps.SavePath,
		Category: s.deps.Category,
	}); err != nil {
		return upstreamError(err)
	}

	s.record(events.Event{
		Type:    events.TorrentAdded,
		Message: top.Title,
		Details: map[string]any{"seeders": top.Seeders, "size": top.Size},
	})

	return c.JSON(http.StatusOK, apitypes.GrabResponse{
		Title:      top.Title,
		Source:     top.Source,
		Size:       top.Size,
		Seeders:    top.Seeders,
		Candidates: len(results),
	})
}

// firstDownloadable returns the best-ranked result that actually carries a
// magnet link or download URL.
func firstDownloadable(results []search.Result) (search.Result, bool) {
	for _, r := range results {
		if r.Source != "" {
			return r, true
		}
	}
	return search.Result{}, false
}

func (s *Server) addTorrentHandler(c echo.Context) error {
	var req apitypes.AddTorrentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Source) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source is required")
	}

	savePath := req.SavePath
	if savePath == "" {
		savePath = s.deps.SavePath
	}
	category := req.Category
	if category == "" {
		category = s.deps.Category
	}

	res, err := s.deps.Downloader.AddTorrent(c.Request().Context(), req.Source, download.AddOptions{
		SavePath: savePath,
		Category: category,
		Tags:     req.Tags,
		Paused:   req.Paused,
		Rename:   req.Rename,
	})
	if err != nil {
		return upstreamError(err)
	}

	s.record(events.Event{Type: events.TorrentAdded, Message: req.Source})

	return c.JSON(http.StatusOK, apitypes.AddTorrentResponse{Source: res.Source})
}

func (s *Server) listTorrentsHandler(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	reverse, _ := strconv.ParseBool(c.QueryParam("reverse"))

	torrents, err := s.deps.Downloader.ListTorrents(c.Request().Context(), download.ListFilters{
		Filter:   c.QueryParam("filter"),
		Category: c.QueryParam("category"),
		Tag:      c.QueryParam("tag"),
		Sort:     c.QueryParam("sort"),
		Reverse:  reverse,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return upstreamError(err)
	}

	return c.JSON(http.StatusOK, torrents)
}

func (s *Server) organizeHandler(c echo.Context) error {
	report, err := s.deps.Organizer.Organize(c.Request().Context(), s.deps.DownloadsPath, s.deps.LibraryPath)
	if err != nil {
		return upstreamError(err)
	}

	return c.JSON(http.StatusOK, report)
}

func (s *Server) listLibraryHandler(c echo.Context) error {
	if s.deps.Library == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "media server not configured")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	items, total, err := s.deps.Library.ListItems(c.Request().Context(), media.ListOptions{
		SearchTerm: c.QueryParam("q"),
		Limit:      limit,
		StartIndex: offset,
	})
	if err != nil {
		return upstreamError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"items": items,
		"total": total,
	})
}

func (s *Server) getLibraryItemHandler(c echo.Context) error {
	if s.deps.Library == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "media server not configured")
	}

	id := c.Param("id")
	if err := validateID(id); err != nil {
		return err
	}

	item, err := s.deps.Library.GetItem(c.Request().Context(), id)
	if err != nil {
		return upstreamError(err)
	}

	return c.JSON(http.StatusOK, item)
}

func (s *Server) streamHandler(c echo.Context) error {
	if s.deps.Library == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "media server not configured")
	}

	id := c.Param("id")
	if err := validateID(id); err != nil {
		return err
	}

	return c.Redirect(http.StatusFound, s.deps.Library.StreamURL(id))
}

func (s *Server) eventsHandler(c echo.Context) error {
	if s.deps.Recorder == nil {
		return c.JSON(http.StatusOK, []any{})
	}

	if eventType := c.QueryParam("type"); eventType != "" {
		return c.JSON(http.StatusOK, s.deps.Recorder.GetByType(events.Type(eventType)))
	}

	return c.JSON(http.StatusOK, s.deps.Recorder.GetAll())
}

func (s *Server) statsHandler(c echo.Context) error {
	stats := apitypes.Stats{}
	if s.deps.Stats != nil {
		stats.ProcessedTorrents = s.deps.Stats.ProcessedCount()
	}
	if s.deps.Recorder != nil {
		stats.EventsRetained = len(s.deps.Recorder.GetAll())
	}

	return c.JSON(http.StatusOK, stats)
}

func (s *Server) record(event events.Event) {
	if s.deps.Recorder != nil {
		s.deps.Recorder.Record(event)
	}
}

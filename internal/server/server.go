// Package server wires the pipeline components together and runs them.
package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/grabarr/grabarr/internal/api"
	"github.com/grabarr/grabarr/internal/config"
	"github.com/grabarr/grabarr/internal/download"
	"github.com/grabarr/grabarr/internal/events"
	"github.com/grabarr/grabarr/internal/media"
	"github.com/grabarr/grabarr/internal/organize"
	"github.com/grabarr/grabarr/internal/reconcile"
	"github.com/grabarr/grabarr/internal/search"
	"github.com/grabarr/grabarr/internal/transfer"
)

// Options holds additional server options not in config.
type Options struct {
	Logger zerolog.Logger
}

// Server is the main application server.
type Server struct {
	cfg        config.Config
	apiServer  *api.Server
	reconciler *reconcile.Reconciler
	downloader *download.Client
	copier     transfer.Copier
	logger     zerolog.Logger
}

// New builds every component from configuration. The download daemon is
// probed once here; if it is unreachable the reconciler idles and only the
// HTTP surface stays up.
func New(ctx context.Context, cfg config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	downloader := download.NewClient(
		cfg.Downloader,
		download.WithLogger(logger.With().Str("component", "download").Logger()),
	)

	available := true
	if err := downloader.Connect(ctx); err != nil {
		logger.Warn().Err(err).Msg("download daemon unreachable, reconciliation disabled")
		available = false
	}

	searcher := search.NewClient(
		cfg.Search,
		search.WithLogger(logger.With().Str("component", "search").Logger()),
	)

	// Media server is optional; without it the pipeline still organizes but
	// never triggers rescans and the library endpoints report unavailable.
	var mediaClient *media.Client
	if cfg.Media.URL != "" {
		mediaClient = media.NewClient(
			cfg.Media,
			media.WithLogger(logger.With().Str("component", "media").Logger()),
		)
		if err := mediaClient.TestConnection(ctx); err != nil {
			logger.Warn().Err(err).Msg("media server connection test failed")
		}
	}

	copier := transfer.NewRclone(
		transfer.WithLogger(logger.With().Str("component", "transfer").Logger()),
	)

	engine := organize.NewEngine(
		copier,
		organize.WithLogger(logger.With().Str("component", "organize").Logger()),
	)

	recorder := events.NewRecorder(
		events.WithLogger(logger.With().Str("component", "events").Logger()),
	)

	var notifier reconcile.Notifier
	if mediaClient != nil {
		notifier = mediaClient
	}

	reconciler := reconcile.New(
		downloader,
		engine,
		notifier,
		cfg.Organize.DownloadsPath,
		cfg.Organize.LibraryPath,
		reconcile.WithLogger(logger.With().Str("component", "reconcile").Logger()),
		reconcile.WithPollInterval(cfg.Organize.PollInterval),
		reconcile.WithRecorder(recorder),
		reconcile.WithCategory(cfg.Downloader.Category),
		reconcile.WithDaemonAvailable(available),
	)

	deps := api.Deps{
		Searcher:      searcher,
		Downloader:    downloader,
		Organizer:     engine,
		Recorder:      recorder,
		Stats:         reconciler,
		APIKey:        cfg.Server.APIKey,
		DownloadsPath: cfg.Organize.DownloadsPath,
		LibraryPath:   cfg.Organize.LibraryPath,
		SavePath:      cfg.Downloader.SavePath,
		Category:      cfg.Downloader.Category,
		RankOptions: search.RankOptions{
			MinSizeGB:  cfg.Search.MinSizeGB,
			MaxSizeGB:  cfg.Search.MaxSizeGB,
			MaxResults: cfg.Search.MaxResults,
		},
	}
	if mediaClient != nil {
		deps.Library = mediaClient
	}

	apiServer := api.New(
		deps,
		api.WithLogger(logger.With().Str("component", "api").Logger()),
	)

	return &Server{
		cfg:        cfg,
		apiServer:  apiServer,
		reconciler: reconciler,
		downloader: downloader,
		copier:     copier,
		logger:     logger,
	}, nil
}

// Run starts the reconciler and HTTP server and blocks until the context is
// cancelled or the HTTP server fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().
		Str("listen", s.cfg.Server.Listen).
		Str("downloads_path", s.cfg.Organize.DownloadsPath).
		Str("library_path", s.cfg.Organize.LibraryPath).
		Msg("starting grabarr")

	s.reconciler.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.apiServer.Start(s.cfg.Server.Listen); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down...")

	if err := s.apiServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("server shutdown error")
	}

	s.reconciler.Stop()

	// Best-effort session teardown on the daemon.
	s.downloader.Logout(ctx)

	if err := s.copier.Close(); err != nil {
		s.logger.Error().Err(err).Msg("copier close error")
	}

	s.logger.Info().Msg("shutdown complete")
	return nil
}

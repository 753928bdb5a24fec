package server_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grabarr/grabarr/internal/config"
	"github.com/grabarr/grabarr/internal/server"
	grabtest "github.com/grabarr/grabarr/internal/testing"
)

func testConfig(t *testing.T, daemonURL, mediaURL string) config.Config {
	t.Helper()

	downloads := t.TempDir()
	library := t.TempDir()

	return config.Config{
		Server: config.ServerConfig{
			Listen: "127.0.0.1:0",
			APIKey: "secret",
		},
		Search: config.SearchConfig{
			URL:         "http://127.0.0.1:1",
			APIKey:      "jackett-key",
			HTTPTimeout: time.Second,
		},
		Downloader: config.DownloaderConfig{
			URL:         daemonURL,
			Username:    "admin",
			Password:    "secret",
			Category:    "movies",
			HTTPTimeout: time.Second,
			AuthTimeout: time.Second,
		},
		Media: config.MediaConfig{
			URL:         mediaURL,
			Token:       "media-token",
			HTTPTimeout: time.Second,
		},
		Organize: config.OrganizeConfig{
			DownloadsPath: downloads,
			LibraryPath:   library,
			PollInterval:  20 * time.Millisecond,
		},
	}
}

func TestPipeline(t *testing.T) {
	t.Run("CompletionOrganizedAndRescanned", func(t *testing.T) {
		daemon := grabtest.NewQBittorrentServer("admin", "secret")
		defer daemon.Close()
		mediaSrv := grabtest.NewMediaServer("media-token")
		defer mediaSrv.Close()

		cfg := testConfig(t, daemon.URL, mediaSrv.URL)

		// A finished download sitting in the downloads area.
		releaseDir := filepath.Join(cfg.Organize.DownloadsPath, "Movie.2010.1080p.BluRay-GROUP")
		require.NoError(t, os.MkdirAll(releaseDir, 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(releaseDir, "movie.mkv"), []byte("video"), 0o600))

		hash := grabtest.FakeHash()
		daemon.AddTorrent(&grabtest.FakeTorrent{
			Hash:     hash,
			Name:     "Movie.2010.1080p.BluRay-GROUP",
			State:    "downloading",
			Progress: 0.42,
			Size:     5 << 30,
			Category: "movies",
		})

		srv, err := server.New(context.Background(), cfg, server.Options{Logger: zerolog.Nop()})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = srv.Run(ctx)
			close(done)
		}()

		// The download finishes while the server is running.
		daemon.SetTorrentState(hash, "uploading", 1.0)

		dest := filepath.Join(cfg.Organize.LibraryPath, "Movie 2010 1080p BluRay GROUP", "movie.mkv")
		require.Eventually(t, func() bool {
			_, statErr := os.Stat(dest)
			return statErr == nil && mediaSrv.RefreshCount() >= 1
		}, 5*time.Second, 20*time.Millisecond)

		// Source was removed after the copy.
		_, err = os.Stat(releaseDir)
		assert.True(t, os.IsNotExist(err))

		cancel()
		<-done
		require.NoError(t, srv.Shutdown(context.Background()))
	})

	t.Run("DaemonUnreachableStillServes", func(t *testing.T) {
		mediaSrv := grabtest.NewMediaServer("media-token")
		defer mediaSrv.Close()

		cfg := testConfig(t, "http://127.0.0.1:1", mediaSrv.URL)

		srv, err := server.New(context.Background(), cfg, server.Options{Logger: zerolog.Nop()})
		require.NoError(t, err)
		require.NoError(t, srv.Shutdown(context.Background()))
	})
}

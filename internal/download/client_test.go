package download_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grabarr/grabarr/internal/config"
	"github.com/grabarr/grabarr/internal/download"
	grabtest "github.com/grabarr/grabarr/internal/testing"
)

func newClient(t *testing.T, url string) *download.Client {
	t.Helper()

	return download.NewClient(config.DownloaderConfig{
		URL:         url,
		Username:    "admin",
		Password:    "secret",
		HTTPTimeout: 5 * time.Second,
		AuthTimeout: 2 * time.Second,
	})
}

func TestConnect(t *testing.T) {
	t.Run("ValidCredentials", func(t *testing.T) {
		server := grabtest.NewQBittorrentServer("admin", "secret")
		defer server.Close()

		c := newClient(t, server.URL)
		require.NoError(t, c.Connect(context.Background()))
		assert.Equal(t, 1, server.LoginCount())
	})

	t.Run("RejectedCredentials", func(t *testing.T) {
		server := grabtest.NewQBittorrentServer("admin", "other")
		defer server.Close()

		c := newClient(t, server.URL)
		err := c.Connect(context.Background())
		require.Error(t, err)

		var authErr *download.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Contains(t, authErr.Reason, "rejected")
	})

	t.Run("DaemonUnreachable", func(t *testing.T) {
		c := newClient(t, "http://127.0.0.1:1")

		err := c.Connect(context.Background())
		var authErr *download.AuthError
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("NoSessionCookie", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Ok."))
		}))
		defer server.Close()

		c := newClient(t, server.URL)
		err := c.Connect(context.Background())

		var authErr *download.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Contains(t, authErr.Reason, "no session cookie")
	})
}

func TestAddTorrent(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := grabtest.NewQBittorrentServer("admin", "secret")
		defer server.Close()

		c := newClient(t, server.URL)
		magnet := grabtest.FakeMagnet(grabtest.FakeHash())

		res, err := c.AddTorrent(context.Background(), magnet, download.AddOptions{
			Category: "movies",
			SavePath: "/downloads",
		})
		require.NoError(t, err)
		assert.Equal(t, magnet, res.Source)
		assert.Equal(t, []string{magnet}, server.AddedSources())
	})

	t.Run("RetriesOnceOnStaleSession", func(t *testing.T) {
		server := grabtest.NewQBittorrentServer("admin", "secret")
		defer server.Close()

		c := newClient(t, server.URL)
		require.NoError(t, c.Connect(context.Background()))

		// Daemon invalidates the session server-side between calls.
		server.InvalidateSessions()

		magnet := grabtest.FakeMagnet(grabtest.FakeHash())
		res, err := c.AddTorrent(context.Background(), magnet, download.AddOptions{})
		require.NoError(t, err)
		assert.Equal(t, magnet, res.Source)

		// One rejected attempt, one re-login, one successful attempt.
		assert.Equal(t, 2, server.AddCount())
		assert.Equal(t, 2, server.LoginCount())
		assert.Equal(t, []string{magnet}, server.AddedSources())
	})

	t.Run("SecondAuthFailurePropagates", func(t *testing.T) {
		// Daemon that accepts login but always rejects the add endpoint
		// with 403, so the single retry is exhausted.
		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/v2/auth/login", func(w http.ResponseWriter, _ *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "SID", Value: "sid-1"})
			_, _ = w.Write([]byte("Ok."))
		})
		addCalls := 0
		mux.HandleFunc("POST /api/v2/torrents/add", func(w http.ResponseWriter, _ *http.Request) {
			addCalls++
			w.WriteHeader(http.StatusForbidden)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		c := newClient(t, server.URL)
		_, err := c.AddTorrent(context.Background(), "magnet:?xt=urn:btih:deadbeef", download.AddOptions{})

		var dlErr *download.DownloadError
		require.ErrorAs(t, err, &dlErr)
		assert.Equal(t, 2, addCalls)
	})

	t.Run("NonAuthFailureNotRetried", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/v2/auth/login", func(w http.ResponseWriter, _ *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "SID", Value: "sid-1"})
			_, _ = w.Write([]byte("Ok."))
		})
		addCalls := 0
		mux.HandleFunc("POST /api/v2/torrents/add", func(w http.ResponseWriter, _ *http.Request) {
			addCalls++
			w.WriteHeader(http.StatusInternalServerError)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		c := newClient(t, server.URL)
		_, err := c.AddTorrent(context.Background(), "magnet:?xt=urn:btih:deadbeef", download.AddOptions{})

		var dlErr *download.DownloadError
		require.ErrorAs(t, err, &dlErr)
		assert.Equal(t, 1, addCalls)
	})
}

func TestListTorrents(t *testing.T) {
	t.Run("FiltersPassedThrough", func(t *testing.T) {
		server := grabtest.NewQBittorrentServer("admin", "secret")
		defer server.Close()

		hash := grabtest.FakeHash()
		server.AddTorrent(&grabtest.FakeTorrent{
			Hash:     hash,
			Name:     "Movie.2010.1080p.BluRay-GROUP",
			State:    "uploading",
			Progress: 1.0,
			Size:     4 << 30,
			Category: "movies",
		})
		server.AddTorrent(&grabtest.FakeTorrent{
			Hash:     grabtest.FakeHash(),
			Name:     "Other.2011.1080p.WEB-GROUP",
			State:    "downloading",
			Progress: 0.4,
			Size:     5 << 30,
			Category: "movies",
		})

		c := newClient(t, server.URL)
		torrents, err := c.ListTorrents(context.Background(), download.ListFilters{
			Filter:   download.FilterCompleted,
			Category: "movies",
		})
		require.NoError(t, err)
		require.Len(t, torrents, 1)
		assert.Equal(t, hash, torrents[0].Hash)
		assert.InDelta(t, 1.0, torrents[0].Progress, 0.0001)
	})

	t.Run("NoAuthRetryOnReads", func(t *testing.T) {
		server := grabtest.NewQBittorrentServer("admin", "secret")
		defer server.Close()

		c := newClient(t, server.URL)
		require.NoError(t, c.Connect(context.Background()))
		server.InvalidateSessions()

		_, err := c.ListTorrents(context.Background(), download.ListFilters{})

		var dlErr *download.DownloadError
		require.ErrorAs(t, err, &dlErr)
		// The failed read must not have triggered a re-login.
		assert.Equal(t, 1, server.LoginCount())
	})
}

func TestLogout(t *testing.T) {
	t.Run("ClearsSession", func(t *testing.T) {
		server := grabtest.NewQBittorrentServer("admin", "secret")
		defer server.Close()

		c := newClient(t, server.URL)
		require.NoError(t, c.Connect(context.Background()))

		c.Logout(context.Background())

		// Next use establishes a fresh session lazily.
		_, err := c.ListTorrents(context.Background(), download.ListFilters{})
		require.NoError(t, err)
		assert.Equal(t, 2, server.LoginCount())
	})

	t.Run("NoopWithoutSession", func(t *testing.T) {
		server := grabtest.NewQBittorrentServer("admin", "secret")
		defer server.Close()

		c := newClient(t, server.URL)
		c.Logout(context.Background())
		assert.Equal(t, 0, server.LoginCount())
	})
}

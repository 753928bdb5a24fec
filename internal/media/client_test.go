package media_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grabarr/grabarr/internal/config"
	"github.com/grabarr/grabarr/internal/media"
	grabtest "github.com/grabarr/grabarr/internal/testing"
)

func newClient(t *testing.T, url, token string) *media.Client {
	t.Helper()

	return media.NewClient(config.MediaConfig{
		URL:         url,
		Token:       token,
		HTTPTimeout: 5 * time.Second,
	})
}

func TestRescanLibraries(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := grabtest.NewMediaServer("media-token")
		defer server.Close()

		c := newClient(t, server.URL, "media-token")
		require.NoError(t, c.RescanLibraries(context.Background()))
		assert.Equal(t, 1, server.RefreshCount())
	})

	t.Run("BadToken", func(t *testing.T) {
		server := grabtest.NewMediaServer("media-token")
		defer server.Close()

		c := newClient(t, server.URL, "wrong")
		err := c.RescanLibraries(context.Background())

		var mediaErr *media.MediaError
		require.ErrorAs(t, err, &mediaErr)
		assert.Equal(t, 0, server.RefreshCount())
	})

	t.Run("ServerError", func(t *testing.T) {
		server := grabtest.NewMediaServer("media-token")
		defer server.Close()
		server.FailRefresh(true)

		c := newClient(t, server.URL, "media-token")

		var mediaErr *media.MediaError
		require.ErrorAs(t, c.RescanLibraries(context.Background()), &mediaErr)
	})
}

func TestListItems(t *testing.T) {
	server := grabtest.NewMediaServer("media-token")
	defer server.Close()

	server.AddItem(grabtest.FakeItem{ID: "m1", Name: "Inception", Type: "Movie"})
	server.AddItem(grabtest.FakeItem{ID: "m2", Name: "Interstellar", Type: "Movie"})

	c := newClient(t, server.URL, "media-token")
	items, total, err := c.ListItems(context.Background(), media.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)
}

func TestGetItem(t *testing.T) {
	server := grabtest.NewMediaServer("media-token")
	defer server.Close()

	server.AddItem(grabtest.FakeItem{ID: "m1", Name: "Inception", Type: "Movie", Path: "/library/Inception 2010"})

	c := newClient(t, server.URL, "media-token")

	t.Run("Found", func(t *testing.T) {
		item, err := c.GetItem(context.Background(), "m1")
		require.NoError(t, err)
		assert.Equal(t, "Inception", item.Name)
		assert.Equal(t, "/library/Inception 2010", item.Path)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := c.GetItem(context.Background(), "missing")

		var mediaErr *media.MediaError
		require.ErrorAs(t, err, &mediaErr)
	})
}

func TestStreamURL(t *testing.T) {
	c := newClient(t, "http://media.local:8096", "tok en")

	url := c.StreamURL("abc123")
	assert.Equal(t, "http://media.local:8096/Videos/abc123/stream?api_key=tok+en", url)
}

func TestConnection(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := grabtest.NewMediaServer("media-token")
		defer server.Close()

		c := newClient(t, server.URL, "media-token")
		require.NoError(t, c.TestConnection(context.Background()))
	})

	t.Run("Unreachable", func(t *testing.T) {
		c := newClient(t, "http://127.0.0.1:1", "media-token")

		var mediaErr *media.MediaError
		require.ErrorAs(t, c.TestConnection(context.Background()), &mediaErr)
	})
}

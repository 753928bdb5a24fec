// Package download provides a session-authenticated client for the
// qBittorrent Web API.
package download

import (
	"github.com/rs/zerolog"
)

// TorrentState is the download state reported by qBittorrent.
type TorrentState string

// States reported by the qBittorrent torrents/info endpoint.
const (
	StateDownloading TorrentState = "downloading"
	StateUploading   TorrentState = "uploading"
	StateStalledUP   TorrentState = "stalledUP"
	StateQueuedUP    TorrentState = "queuedUP"
	StateForcedUP    TorrentState = "forcedUP"
	StateCheckingUP  TorrentState = "checkingUP"
	StatePausedDL    TorrentState = "pausedDL"
	StatePausedUP    TorrentState = "pausedUP"
	StateError       TorrentState = "error"
)

// List filter values accepted by the torrents/info endpoint.
const (
	FilterAll         = "all"
	FilterCompleted   = "completed"
	FilterDownloading = "downloading"
	FilterPaused      = "paused"
)

// TorrentRecord is a torrent as reported by the download daemon.
// Read-only from this system's perspective.
type TorrentRecord struct {
	Hash         string       `json:"hash"`
	Name         string       `json:"name"`
	Size         int64        `json:"size"`
	Progress     float64      `json:"progress"`
	State        TorrentState `json:"state"`
	Category     string       `json:"category"`
	SavePath     string       `json:"save_path"`
	ContentPath  string       `json:"content_path"`
	DLSpeed      int64        `json:"dlspeed"`
	UPSpeed      int64        `json:"upspeed"`
	ETA          int64        `json:"eta"`
	AddedOn      int64        `json:"added_on"`
	CompletionOn int64        `json:"completion_on"`
}

// AddOptions are the optional fields submitted alongside a magnet link or
// torrent URL.
type AddOptions struct {
	SavePath string
	Category string
	Tags     []string
	Paused   bool
	Rename   string
}

// AddResult describes a successfully submitted download.
type AddResult struct {
	// Source is the magnet link or torrent URL that was submitted.
	Source string
}

// ListFilters are pass-through query parameters for the listing endpoint.
type ListFilters struct {
	Filter   string // state filter: "all", "completed", "downloading", ...
	Category string
	Tag      string
	Sort     string
	Reverse  bool
	Limit    int
	Offset   int
	Hashes   []string
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

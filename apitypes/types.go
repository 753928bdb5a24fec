// Package apitypes provides API request and response types for the Grabarr
// HTTP API.
package apitypes

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Stats represents pipeline statistics.
type Stats struct {
	ProcessedTorrents int `json:"processed_torrents"`
	EventsRetained    int `json:"events_retained"`
}

// AddTorrentRequest enqueues a magnet link or torrent-file URL.
type AddTorrentRequest struct {
	Source   string   `json:"source"`
	SavePath string   `json:"save_path,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Paused   bool     `json:"paused,omitempty"`
	Rename   string   `json:"rename,omitempty"`
}

// AddTorrentResponse confirms an enqueued torrent.
type AddTorrentResponse struct {
	Source string `json:"source"`
}

// GrabRequest searches and enqueues the best candidate in one call.
type GrabRequest struct {
	Query string `json:"query"`
}

// GrabResponse describes the candidate that was enqueued.
type GrabResponse struct {
	Title      string `json:"title"`
	Source     string `json:"source"`
	Size       int64  `json:"size"`
	Seeders    int    `json:"seeders"`
	Candidates int    `json:"candidates"`
}

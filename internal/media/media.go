// Package media provides the media-server client used to refresh libraries
// after new content lands and to browse what the server has indexed.
package media

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Item is a single library entry as reported by the media server.
type Item struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Type string `json:"Type"`
	Path string `json:"Path,omitempty"`
}

// SystemInfo is the media server's identity, used for connection probes.
type SystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
}

// ListOptions narrow an item listing.
type ListOptions struct {
	SearchTerm string
	Limit      int
	StartIndex int
}

// MediaError indicates the media server rejected or failed a request.
type MediaError struct {
	Op  string
	Err error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media server: %s: %v", e.Op, e.Err)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

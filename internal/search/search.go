// Package search provides the indexer-aggregator client and the result
// ranker that selects download candidates from heterogeneous indexer output.
package search

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SizeUnknown marks a result whose size was not reported by the indexer.
const SizeUnknown int64 = -1

// RawResult is a single release as returned by the aggregator. Optional
// fields are pointers so "absent" and "zero" stay distinguishable.
type RawResult struct {
	Title       string `json:"Title"`
	Size        *int64 `json:"Size"`
	Seeders     *int   `json:"Seeders"`
	Peers       *int   `json:"Peers"`
	MagnetURI   string `json:"MagnetUri"`
	Link        string `json:"Link"`
	Tracker     string `json:"Tracker"`
	PublishDate string `json:"PublishDate"`
}

// Result is a ranked download candidate. Immutable once constructed.
type Result struct {
	Title       string    `json:"title"`
	Size        int64     `json:"size"` // SizeUnknown if not reported
	Seeders     int       `json:"seeders"`
	Peers       int       `json:"peers"`
	Source      string    `json:"source,omitempty"` // magnet link or torrent URL
	Indexer     string    `json:"indexer"`
	PublishedAt time.Time `json:"published_at,omitzero"`

	// Release metadata parsed from the title; empty when parsing fails.
	Resolution string `json:"resolution,omitempty"`
	Quality    string `json:"quality,omitempty"` // rip source: BluRay, WEB-DL, ...
	Codec      string `json:"codec,omitempty"`
	Year       int    `json:"year,omitempty"`
}

// SearchError indicates the aggregator was unreachable, rejected the API
// key, or returned a malformed response.
type SearchError struct {
	Reason string
	Err    error
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search failed: %s: %v", e.Reason, e.Err)
	}
	return "search failed: " + e.Reason
}

func (e *SearchError) Unwrap() error {
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

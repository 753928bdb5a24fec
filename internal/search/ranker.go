package search

import (
	"sort"
	"time"

	"github.com/cehbz/torrentname"
)

const bytesPerGB = 1 << 30

// RankOptions bound the size band and result count. Zero values fall back to
// the defaults (2 GB, 15 GB, 10 results).
type RankOptions struct {
	MinSizeGB  float64
	MaxSizeGB  float64
	MaxResults int
}

// Rank default bounds. The lower bound excludes low-quality encodes, the
// upper excludes ultra-high-resolution masters this system deliberately
// avoids.
const (
	defaultMinSizeGB  = 2.0
	defaultMaxSizeGB  = 15.0
	defaultMaxResults = 10
)

// Rank filters raw indexer results by size band and returns a
// deterministically ordered candidate list: seeders descending, ties keep
// indexer-reported order, truncated to the top results. Pure and
// deterministic; empty input yields empty output, never an error.
func Rank(raw []RawResult, opts RankOptions) []Result {
	minSize := opts.MinSizeGB
	if minSize == 0 {
		minSize = defaultMinSizeGB
	}
	maxSize := opts.MaxSizeGB
	if maxSize == 0 {
		maxSize = defaultMaxSizeGB
	}
	maxResults := opts.MaxResults
	if maxResults == 0 {
		maxResults = defaultMaxResults
	}

	survivors := make([]RawResult, 0, len(raw))
	for _, r := range raw {
		if r.Size == nil {
			continue
		}
		sizeGB := float64(*r.Size) / bytesPerGB
		if sizeGB < minSize || sizeGB > maxSize {
			continue
		}
		survivors = append(survivors, r)
	}

	// Stability is a correctness property here: equal-seeder results must
	// keep the order the indexers reported them in.
	sort.SliceStable(survivors, func(i, j int) bool {
		return seeders(survivors[i]) > seeders(survivors[j])
	})

	if len(survivors) > maxResults {
		survivors = survivors[:maxResults]
	}

	results := make([]Result, len(survivors))
	for i, r := range survivors {
		results[i] = toResult(r)
	}

	return results
}

func seeders(r RawResult) int {
	if r.Seeders == nil {
		return 0
	}
	return *r.Seeders
}

// toResult maps a raw result to a candidate, defaulting missing optional
// fields instead of failing on them.
func toResult(r RawResult) Result {
	res := Result{
		Title:   r.Title,
		Size:    SizeUnknown,
		Seeders: seeders(r),
		Indexer: r.Tracker,
	}

	if r.Size != nil {
		res.Size = *r.Size
	}
	if r.Peers != nil {
		res.Peers = *r.Peers
	}

	// Prefer the magnet link over the indirect download URL.
	res.Source = r.MagnetURI
	if res.Source == "" {
		res.Source = r.Link
	}

	if r.PublishDate != "" {
		if ts, err := time.Parse(time.RFC3339, r.PublishDate); err == nil {
			res.PublishedAt = ts
		}
	}

	if parsed := torrentname.Parse(r.Title); parsed != nil {
		res.Resolution = parsed.Resolution
		res.Quality = parsed.Source
		res.Codec = parsed.Codec
		res.Year = parsed.Year
	}

	return res
}

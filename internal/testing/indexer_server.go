package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeRelease is a raw indexer result served by the fake aggregator.
type FakeRelease struct {
	Title       string `json:"Title"`
	Size        *int64 `json:"Size"`
	Seeders     *int   `json:"Seeders"`
	Peers       *int   `json:"Peers"`
	MagnetURI   string `json:"MagnetUri,omitempty"`
	Link        string `json:"Link,omitempty"`
	Tracker     string `json:"Tracker"`
	PublishDate string `json:"PublishDate,omitempty"`
}

// IndexerServer is a fake Jackett aggregate-results endpoint.
type IndexerServer struct {
	*httptest.Server

	APIKey string

	mu       sync.RWMutex
	releases []FakeRelease
	queries  []string
}

// NewIndexerServer creates a fake indexer aggregator requiring the given API key.
func NewIndexerServer(apiKey string) *IndexerServer {
	s := &IndexerServer{APIKey: apiKey}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2.0/indexers/all/results", s.handleResults)

	s.Server = httptest.NewServer(mux)
	return s
}

// SetReleases replaces the result set returned for every query.
func (s *IndexerServer) SetReleases(releases []FakeRelease) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases = releases
}

// Queries returns the free-text queries the server has seen, in order.
func (s *IndexerServer) Queries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.queries...)
}

func (s *IndexerServer) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("apikey") != s.APIKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	s.queries = append(s.queries, r.URL.Query().Get("Query"))
	releases := append([]FakeRelease(nil), s.releases...)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"Results": releases,
	})
}

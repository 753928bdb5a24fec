package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeItem is a library item served by the fake media server.
type FakeItem struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Type string `json:"Type"`
	Path string `json:"Path,omitempty"`
}

// MediaServer is a fake Jellyfin server covering the endpoints the pipeline
// consumes: library refresh, item listing, and the system info probe.
type MediaServer struct {
	*httptest.Server

	Token string

	mu           sync.RWMutex
	items        map[string]FakeItem
	refreshCount int
	failRefresh  bool
}

// NewMediaServer creates a fake media server requiring the given bearer token.
func NewMediaServer(token string) *MediaServer {
	s := &MediaServer{
		Token: token,
		items: make(map[string]FakeItem),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /Library/Refresh", s.handleRefresh)
	mux.HandleFunc("GET /Items", s.handleItems)
	mux.HandleFunc("GET /Items/{id}", s.handleItem)
	mux.HandleFunc("GET /System/Info", s.handleSystemInfo)

	s.Server = httptest.NewServer(mux)
	return s
}

// AddItem seeds a library item.
func (s *MediaServer) AddItem(item FakeItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

// RefreshCount returns how many rescan requests the server accepted.
func (s *MediaServer) RefreshCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshCount
}

// FailRefresh makes subsequent refresh requests return a server error.
func (s *MediaServer) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

func (s *MediaServer) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+s.Token
}

func (s *MediaServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRefresh {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.refreshCount++
	w.WriteHeader(http.StatusNoContent)
}

func (s *MediaServer) handleItems(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]FakeItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"Items":            items,
		"TotalRecordCount": len(items),
	})
}

func (s *MediaServer) handleItem(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.RLock()
	item, ok := s.items[r.PathValue("id")]
	s.mu.RUnlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
}

func (s *MediaServer) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"ServerName": "fake-jellyfin",
		"Version":    "10.9.0",
	})
}

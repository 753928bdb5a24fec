// Package testing provides fake collaborator servers and mocks for tests.
package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// FakeTorrent represents a torrent in the fake qBittorrent server.
type FakeTorrent struct {
	Hash         string
	Name         string
	Category     string
	State        string  // "downloading", "uploading", "pausedDL", "stalledUP", etc.
	Progress     float64 // 0.0 to 1.0
	Size         int64
	SavePath     string
	ContentPath  string
	AddedOn      int64
	CompletionOn int64
}

// QBittorrentServer is a fake qBittorrent API server with real session
// semantics: login issues a SID cookie and authenticated endpoints reject
// requests whose SID is missing or has been invalidated.
type QBittorrentServer struct {
	*httptest.Server

	Username string
	Password string

	mu       sync.RWMutex
	torrents map[string]*FakeTorrent
	sessions map[string]bool
	nextSID  int

	loginCount int
	addCount   int
	added      []string
}

// NewQBittorrentServer creates a new fake qBittorrent server accepting the
// given credentials.
func NewQBittorrentServer(username, password string) *QBittorrentServer {
	s := &QBittorrentServer{
		Username: username,
		Password: password,
		torrents: make(map[string]*FakeTorrent),
		sessions: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/v2/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/v2/torrents/info", s.handleTorrentsInfo)
	mux.HandleFunc("POST /api/v2/torrents/add", s.handleTorrentsAdd)

	s.Server = httptest.NewServer(mux)
	return s
}

// AddTorrent seeds a torrent into the fake server.
func (s *QBittorrentServer) AddTorrent(t *FakeTorrent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.torrents[t.Hash] = t
}

// SetTorrentState updates a torrent's state and progress.
func (s *QBittorrentServer) SetTorrentState(hash, state string, progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.torrents[hash]; ok {
		t.State = state
		t.Progress = progress
	}
}

// InvalidateSessions drops all issued sessions, simulating server-side expiry.
func (s *QBittorrentServer) InvalidateSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]bool)
}

// LoginCount returns how many login requests the server has seen.
func (s *QBittorrentServer) LoginCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loginCount
}

// AddCount returns how many add-torrent requests the server has seen,
// including rejected ones.
func (s *QBittorrentServer) AddCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addCount
}

// AddedSources returns the sources of accepted add-torrent requests in order.
func (s *QBittorrentServer) AddedSources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.added...)
}

// authorized checks the SID cookie against issued sessions.
func (s *QBittorrentServer) authorized(r *http.Request) bool {
	cookie, err := r.Cookie("SID")
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[cookie.Value]
}

func (s *QBittorrentServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	s.mu.Lock()
	s.loginCount++
	ok := r.PostFormValue("username") == s.Username && r.PostFormValue("password") == s.Password
	if !ok {
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Fails."))
		return
	}

	s.nextSID++
	sid := fmt.Sprintf("sid-%d", s.nextSID)
	s.sessions[sid] = true
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "SID", Value: sid})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ok."))
}

func (s *QBittorrentServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("SID"); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

// qbAPITorrent matches the qBittorrent API response format.
type qbAPITorrent struct {
	Hash         string  `json:"hash"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	State        string  `json:"state"`
	SavePath     string  `json:"save_path"`
	ContentPath  string  `json:"content_path"`
	Size         int64   `json:"size"`
	Progress     float64 `json:"progress"`
	AddedOn      int64   `json:"added_on"`
	CompletionOn int64   `json:"completion_on"`
}

// completedStates mirrors the daemon's "completed" filter.
//
//nolint:gochecknoglobals // lookup table
var completedStates = map[string]bool{
	"uploading":  true,
	"stalledUP":  true,
	"queuedUP":   true,
	"forcedUP":   true,
	"checkingUP": true,
	"pausedUP":   true,
}

func (s *QBittorrentServer) handleTorrentsInfo(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := r.URL.Query().Get("filter")
	category := r.URL.Query().Get("category")
	hashes := r.URL.Query().Get("hashes")

	var hashFilter map[string]bool
	if hashes != "" {
		hashFilter = make(map[string]bool)
		for h := range strings.SplitSeq(hashes, "|") {
			hashFilter[h] = true
		}
	}

	result := []qbAPITorrent{}
	for _, t := range s.torrents {
		if filter == "completed" && !completedStates[t.State] {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		if hashFilter != nil && !hashFilter[t.Hash] {
			continue
		}

		result = append(result, qbAPITorrent{
			Hash:         t.Hash,
			Name:         t.Name,
			Category:     t.Category,
			State:        t.State,
			SavePath:     t.SavePath,
			ContentPath:  t.ContentPath,
			Size:         t.Size,
			Progress:     t.Progress,
			AddedOn:      t.AddedOn,
			CompletionOn: t.CompletionOn,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (s *QBittorrentServer) handleTorrentsAdd(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.addCount++
	s.mu.Unlock()

	if !s.authorized(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	_ = r.ParseForm()
	source := r.PostFormValue("urls")
	if source == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.added = append(s.added, source)
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ok."))
}

// Package events provides the in-memory activity log surfaced by the API.
package events

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Type represents the type of event.
type Type string

// Event types for the pipeline.
const (
	// SearchPerformed indicates a search query was served.
	SearchPerformed Type = "search.performed"
	// TorrentAdded indicates a torrent was handed to the download daemon.
	TorrentAdded Type = "torrent.added"
	// ReconcileCycle indicates one reconciliation cycle ran.
	ReconcileCycle Type = "reconcile.cycle"
	// TorrentCompleted indicates a newly completed torrent was detected.
	TorrentCompleted Type = "torrent.completed"
	// OrganizeComplete indicates an organize run finished.
	OrganizeComplete Type = "organize.complete"
	// OrganizeFailed indicates an organize run could not start or an item failed.
	OrganizeFailed Type = "organize.failed"
	// RescanTriggered indicates the media server was asked to rescan.
	RescanTriggered Type = "rescan.triggered"
	// RescanFailed indicates the media server rescan request failed.
	RescanFailed Type = "rescan.failed"
)

// Event represents a single activity-log entry.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// Recorder records and retrieves activity events.
type Recorder interface {
	// Record adds a new event to the log.
	Record(event Event)

	// GetAll returns all retained events, newest first.
	GetAll() []Event

	// GetByType returns retained events of one type, newest first.
	GetByType(eventType Type) []Event
}

// recorder is the default in-memory implementation of Recorder.
type recorder struct {
	events    []Event
	mu        sync.RWMutex
	logger    zerolog.Logger
	maxEvents int
}

// Option is a functional option for configuring the recorder.
type Option func(*recorder)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *recorder) {
		r.logger = logger
	}
}

// WithMaxEvents sets the maximum number of events to retain.
func WithMaxEvents(maxEvents int) Option {
	return func(r *recorder) {
		r.maxEvents = maxEvents
	}
}

// Default configuration values.
const defaultMaxEvents = 1000

// NewRecorder creates a new in-memory event recorder.
func NewRecorder(opts ...Option) Recorder {
	r := &recorder{
		events:    make([]Event, 0),
		logger:    zerolog.Nop(),
		maxEvents: defaultMaxEvents,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Record adds a new event to the log, assigning an ID and timestamp when the
// caller did not. The oldest events fall off once the retention cap is hit.
func (r *recorder) Record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	r.events = append(r.events, event)
	if len(r.events) > r.maxEvents {
		r.events = r.events[len(r.events)-r.maxEvents:]
	}

	r.logger.Debug().
		Str("type", string(event.Type)).
		Str("message", event.Message).
		Msg("event recorded")
}

// GetAll returns all retained events, newest first.
func (r *recorder) GetAll() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, 0, len(r.events))
	for i := len(r.events) - 1; i >= 0; i-- {
		out = append(out, r.events[i])
	}
	return out
}

// GetByType returns retained events of one type, newest first.
func (r *recorder) GetByType(eventType Type) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Event
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == eventType {
			out = append(out, r.events[i])
		}
	}
	return out
}

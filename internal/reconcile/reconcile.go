// Package reconcile runs the periodic loop that detects newly completed
// torrents and drives the reorganization engine exactly once per torrent.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/grabarr/grabarr/internal/download"
	"github.com/grabarr/grabarr/internal/events"
	"github.com/grabarr/grabarr/internal/organize"
)

// Default configuration values.
const (
	defaultPollInterval    = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// TorrentLister is the download-client surface the reconciler reads from.
type TorrentLister interface {
	ListTorrents(ctx context.Context, filters download.ListFilters) ([]download.TorrentRecord, error)
}

// Organizer relocates completed downloads into the library.
type Organizer interface {
	Organize(ctx context.Context, sourceDir, destDir string) (*organize.Report, error)
}

// Notifier is told to rescan after new content lands.
type Notifier interface {
	RescanLibraries(ctx context.Context) error
}

// Reconciler polls for completed torrents on a fixed period. At most one
// cycle runs at a time; a tick that finds one in flight is skipped, not
// queued.
type Reconciler struct {
	lister    TorrentLister
	organizer Organizer
	notifier  Notifier
	recorder  events.Recorder

	downloadsPath string
	libraryPath   string
	category      string
	pollInterval  time.Duration
	available     bool
	logger        zerolog.Logger

	running atomic.Bool

	processed   map[string]struct{}
	processedMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option is a functional option for configuring the reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithPollInterval sets the poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		r.pollInterval = d
	}
}

// WithRecorder sets the activity-log recorder.
func WithRecorder(recorder events.Recorder) Option {
	return func(r *Reconciler) {
		r.recorder = recorder
	}
}

// WithCategory restricts the completed-torrent listing to one category.
func WithCategory(category string) Option {
	return func(r *Reconciler) {
		r.category = category
	}
}

// WithDaemonAvailable records whether the download daemon was reachable at
// startup. When false every tick is a no-op; the check is made once at
// construction, not per tick.
func WithDaemonAvailable(available bool) Option {
	return func(r *Reconciler) {
		r.available = available
	}
}

// New creates a new Reconciler.
func New(
	lister TorrentLister,
	organizer Organizer,
	notifier Notifier,
	downloadsPath, libraryPath string,
	opts ...Option,
) *Reconciler {
	r := &Reconciler{
		lister:        lister,
		organizer:     organizer,
		notifier:      notifier,
		recorder:      events.NewRecorder(),
		downloadsPath: downloadsPath,
		libraryPath:   libraryPath,
		pollInterval:  defaultPollInterval,
		available:     true,
		logger:        zerolog.Nop(),
		processed:     make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start begins the polling loop.
func (r *Reconciler) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Go(r.pollLoop)

	r.logger.Info().
		Dur("interval", r.pollInterval).
		Bool("daemon_available", r.available).
		Msg("reconciler started")
}

// Stop stops the polling loop, waiting briefly for an in-flight cycle.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Debug().Msg("reconciler loop exited cleanly")
	case <-time.After(defaultShutdownTimeout):
		r.logger.Warn().Msg("timeout waiting for reconcile cycle to finish")
	}

	r.logger.Info().Msg("reconciler stopped")
}

// ProcessedCount returns how many torrent hashes have been reconciled so far
// in this process's lifetime.
func (r *Reconciler) ProcessedCount() int {
	r.processedMu.Lock()
	defer r.processedMu.Unlock()
	return len(r.processed)
}

func (r *Reconciler) pollLoop() {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	// Initial tick
	r.Tick(r.ctx)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.Tick(r.ctx)
		}
	}
}

// Tick runs one reconciliation cycle unless one is already in flight, in
// which case it returns immediately.
func (r *Reconciler) Tick(ctx context.Context) {
	if !r.available {
		return
	}
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Debug().Msg("reconcile cycle already running, skipping tick")
		return
	}
	defer r.running.Store(false)

	r.reconcile(ctx)
}

func (r *Reconciler) reconcile(ctx context.Context) {
	torrents, err := r.lister.ListTorrents(ctx, download.ListFilters{
		Filter:   download.FilterCompleted,
		Category: r.category,
	})
	if err != nil {
		// Log and end the cycle; the next tick will try again.
		r.logger.Error().Err(err).Msg("failed to list completed torrents")
		return
	}

	fresh := r.selectFresh(torrents)
	if len(fresh) == 0 {
		r.logger.Debug().Int("completed", len(torrents)).Msg("no new completions")
		return
	}

	// Idle cycles stay out of the log; only cycles with work get an entry.
	r.recorder.Record(events.Event{
		Type:    events.ReconcileCycle,
		Message: fmt.Sprintf("%d new completion(s)", len(fresh)),
	})

	for _, tr := range fresh {
		r.recorder.Record(events.Event{
			Type:    events.TorrentCompleted,
			Message: fmt.Sprintf("Completed: %s", tr.Name),
			Details: map[string]any{"hash": tr.Hash, "size": tr.Size},
		})
		r.logger.Info().
			Str("hash", tr.Hash).
			Str("name", tr.Name).
			Msg("detected completed torrent")
	}

	// One organize pass covers every completion found this cycle; the engine
	// scans the whole downloads root itself.
	report, err := r.organizer.Organize(ctx, r.downloadsPath, r.libraryPath)
	if err != nil {
		r.recorder.Record(events.Event{
			Type:    events.OrganizeFailed,
			Message: err.Error(),
		})
		r.logger.Error().Err(err).Msg("organize run failed")
		return
	}

	r.recorder.Record(events.Event{
		Type:    events.OrganizeComplete,
		Message: fmt.Sprintf("Organized %d, skipped %d, failed %d", len(report.Organized), len(report.Skipped), len(report.Failed)),
	})

	if len(report.Organized) == 0 {
		return
	}

	r.rescan(ctx)
}

// selectFresh picks the torrents not yet processed whose progress is exactly
// complete, and marks them processed before anything acts on them. The state
// filter alone is not trusted since intermediate daemon states can report
// completion prematurely. Marking up front means a failed organize never
// re-triggers for the same torrent.
func (r *Reconciler) selectFresh(torrents []download.TorrentRecord) []download.TorrentRecord {
	r.processedMu.Lock()
	defer r.processedMu.Unlock()

	var fresh []download.TorrentRecord
	for _, tr := range torrents {
		if tr.Progress != 1 {
			continue
		}
		if _, seen := r.processed[tr.Hash]; seen {
			continue
		}
		r.processed[tr.Hash] = struct{}{}
		fresh = append(fresh, tr)
	}
	return fresh
}

func (r *Reconciler) rescan(ctx context.Context) {
	if r.notifier == nil {
		return
	}

	if err := r.notifier.RescanLibraries(ctx); err != nil {
		// Rescan failure never fails the cycle.
		r.recorder.Record(events.Event{
			Type:    events.RescanFailed,
			Message: err.Error(),
		})
		r.logger.Warn().Err(err).Msg("media rescan failed")
		return
	}

	r.recorder.Record(events.Event{
		Type:    events.RescanTriggered,
		Message: "Media library rescan triggered",
	})
}

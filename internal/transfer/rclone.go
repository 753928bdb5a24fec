package transfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/rclone/rclone/fs"
	rclonesync "github.com/rclone/rclone/fs/sync"
	"github.com/rs/zerolog"

	// Import backends we need.
	_ "github.com/rclone/rclone/backend/local"
)

// rcloneGlobalsOnce ensures global rclone configuration is only set once.
// This prevents race conditions when multiple copiers are created concurrently.
//
//nolint:gochecknoglobals // sync primitives for thread-safe rclone initialization
var rcloneGlobalsOnce sync.Once

// rcloneNewFsMu serializes fs.NewFs calls to work around race conditions in rclone's
// config loading (github.com/rclone/rclone/issues/8666). This is only needed during filesystem creation.
//
//nolint:gochecknoglobals // sync primitives for thread-safe rclone initialization
var rcloneNewFsMu sync.Mutex

// rcloneCopier implements Copier on rclone's local backend.
// It is private and only exposed via the Copier interface.
type rcloneCopier struct {
	logger zerolog.Logger
}

// setLogger implements configurable for shared options.
func (c *rcloneCopier) setLogger(logger zerolog.Logger) {
	c.logger = logger
}

// NewRclone creates a new rclone-backed copier and returns it as Copier.
func NewRclone(options ...Option) Copier {
	c := &rcloneCopier{
		logger: zerolog.Nop(),
	}

	for _, opt := range options {
		opt(c)
	}

	c.configureGlobals()

	return c
}

// configureGlobals sets up global rclone configuration.
// Uses sync.Once so configuration happens only once even when multiple
// copiers are created concurrently.
func (c *rcloneCopier) configureGlobals() {
	rcloneGlobalsOnce.Do(func() {
		ci := fs.GetConfig(context.Background())

		// Copies run one directory at a time from the reconciler, so keep
		// rclone's own concurrency modest.
		ci.Transfers = 4
		ci.Checkers = 4

		// Reduce verbosity
		ci.LogLevel = fs.LogLevelError
	})
}

// Name returns the name of the copy backend.
func (c *rcloneCopier) Name() string {
	return string(BackendRclone)
}

// Close releases any resources held by the copier.
func (c *rcloneCopier) Close() error {
	return nil
}

// newFs wraps fs.NewFs with the config-loading mutex.
func newFs(ctx context.Context, path string) (fs.Fs, error) {
	rcloneNewFsMu.Lock()
	defer rcloneNewFsMu.Unlock()
	return fs.NewFs(ctx, path)
}

// CopyDir copies the tree rooted at src into dst using rclone's sync engine.
// Existing identical files in dst are skipped, so interrupted copies resume
// where they left off.
func (c *rcloneCopier) CopyDir(ctx context.Context, src, dst string) error {
	srcFs, err := newFs(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to open source %q: %w", src, err)
	}

	dstFs, err := newFs(ctx, dst)
	if err != nil {
		return fmt.Errorf("failed to open destination %q: %w", dst, err)
	}

	if err := rclonesync.CopyDir(ctx, dstFs, srcFs, true); err != nil {
		return fmt.Errorf("copy failed: %w", err)
	}

	c.logger.Debug().
		Str("src", src).
		Str("dst", dst).
		Msg("rclone copy complete")

	return nil
}

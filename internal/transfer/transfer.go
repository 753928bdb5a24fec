// Package transfer provides the copy backends used to move organized content
// between the downloads area and the library.
package transfer

import (
	"context"

	"github.com/rs/zerolog"
)

// configurable is implemented by all copiers to support shared options.
type configurable interface {
	setLogger(zerolog.Logger)
}

// Option is a functional option for configuring copiers.
type Option func(configurable)

// WithLogger sets the logger for any copier.
func WithLogger(logger zerolog.Logger) Option {
	return func(c configurable) {
		c.setLogger(logger)
	}
}

// Backend represents a copy backend type.
type Backend string

const (
	// BackendRclone copies directory trees through rclone's local backend.
	BackendRclone Backend = "rclone"
)

// Copier is the interface for directory copy backends.
type Copier interface {
	// CopyDir copies the tree rooted at src into dst, creating dst as
	// needed. It must not remove src; deletion stays with the caller.
	CopyDir(ctx context.Context, src, dst string) error

	// Name returns the name of the copy backend.
	Name() string

	// Close releases any resources held by the copier.
	Close() error
}

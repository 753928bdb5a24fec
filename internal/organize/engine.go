package organize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/grabarr/grabarr/internal/fileutil"
)

// Engine relocates folder-per-release downloads into the library using
// copy-then-delete, so it works across filesystem boundaries where rename
// cannot.
type Engine struct {
	copier DirCopier
	logger zerolog.Logger
}

// NewEngine creates a new reorganization engine on the given copy backend.
func NewEngine(copier DirCopier, opts ...Option) *Engine {
	e := &Engine{
		copier: copier,
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Organize scans the top-level directories of sourceDir and relocates each to
// destDir under its normalized name. Loose files in sourceDir are ignored.
// An inaccessible root fails the whole run; a failure on one item is recorded
// and does not stop the others.
func (e *Engine) Organize(ctx context.Context, sourceDir, destDir string) (*Report, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, &OrganizeError{Path: sourceDir, Err: err}
	}
	if _, err := os.Stat(destDir); err != nil {
		return nil, &OrganizeError{Path: destDir, Err: err}
	}

	report := &Report{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		e.organizeItem(ctx, sourceDir, destDir, entry.Name(), report)
	}

	e.logger.Info().
		Int("organized", len(report.Organized)).
		Int("skipped", len(report.Skipped)).
		Int("failed", len(report.Failed)).
		Msg("organize run complete")

	return report, nil
}

func (e *Engine) organizeItem(ctx context.Context, sourceDir, destDir, name string, report *Report) {
	normalized := NormalizeName(name)
	src := filepath.Join(sourceDir, name)

	// The normalized name comes from daemon-reported data; never let it
	// escape the library root.
	dst, err := fileutil.SafeJoin(destDir, normalized)
	if err != nil {
		report.Failed = append(report.Failed, FailedItem{
			Name:  name,
			Error: err.Error(),
		})
		return
	}

	if _, err := os.Stat(dst); err == nil {
		// Never overwrite; the source stays put for the operator to inspect.
		report.Skipped = append(report.Skipped, SkippedItem{
			Name:   name,
			Reason: "destination-exists",
		})
		e.logger.Debug().
			Str("name", name).
			Str("dst", dst).
			Msg("destination exists, skipping")
		return
	}

	if err := e.copier.CopyDir(ctx, src, dst); err != nil {
		// Roll back the partial copy so a retry starts clean.
		if rmErr := os.RemoveAll(dst); rmErr != nil {
			e.logger.Warn().Err(rmErr).Str("dst", dst).Msg("failed to roll back partial copy")
		}
		report.Failed = append(report.Failed, FailedItem{
			Name:  name,
			Error: fmt.Sprintf("copy: %v", err),
		})
		e.logger.Error().Err(err).Str("name", name).Msg("copy failed")
		return
	}

	// Delete the original only after the copy fully succeeded.
	if err := os.RemoveAll(src); err != nil {
		report.Failed = append(report.Failed, FailedItem{
			Name:  name,
			Error: fmt.Sprintf("remove source: %v", err),
		})
		e.logger.Error().Err(err).Str("name", name).Msg("failed to remove source after copy")
		return
	}

	report.Organized = append(report.Organized, OrganizedItem{
		Original:    name,
		Normalized:  normalized,
		Destination: dst,
	})
	e.logger.Info().
		Str("original", name).
		Str("normalized", normalized).
		Msg("organized release")
}

// Package organize renames and relocates completed downloads from the
// downloads area into the media library, one normalized folder per release.
package organize

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// OrganizeError indicates the source or destination root was inaccessible.
// It is fatal to the whole run; per-item failures are reported in the Report
// instead.
type OrganizeError struct {
	Path string
	Err  error
}

func (e *OrganizeError) Error() string {
	return fmt.Sprintf("organize: %s: %v", e.Path, e.Err)
}

func (e *OrganizeError) Unwrap() error {
	return e.Err
}

// OrganizedItem records one release successfully moved into the library.
type OrganizedItem struct {
	Original    string `json:"original"`
	Normalized  string `json:"normalized"`
	Destination string `json:"destination"`
}

// SkippedItem records one release left in place.
type SkippedItem struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// FailedItem records one release that could not be organized.
type FailedItem struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Report aggregates per-item outcomes for one run.
type Report struct {
	Organized []OrganizedItem `json:"organized"`
	Skipped   []SkippedItem   `json:"skipped"`
	Failed    []FailedItem    `json:"failed"`
}

// DirCopier copies a directory tree. Deletion of the source after a
// successful copy stays with the engine.
type DirCopier interface {
	CopyDir(ctx context.Context, src, dst string) error
}

// Option is a functional option for configuring the engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// videoExtensions are the trailing extensions stripped during normalization.
//
//nolint:gochecknoglobals // normalization lookup table
var videoExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".m4v":  true,
	".mov":  true,
	".wmv":  true,
	".ts":   true,
	".webm": true,
}

//nolint:gochecknoglobals // compiled once
var (
	separatorRuns  = regexp.MustCompile(`[._-]+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	bracketChars   = strings.NewReplacer("[", "", "]", "", "(", "", ")", "", "{", "", "}", "")
)

// NormalizeName derives the library folder name for a release: trailing video
// extension stripped, bracket characters removed, dot/underscore/hyphen runs
// and whitespace runs collapsed to single spaces, trimmed. Pure and
// idempotent.
func NormalizeName(name string) string {
	if ext := strings.ToLower(filepath.Ext(name)); videoExtensions[ext] {
		name = name[:len(name)-len(ext)]
	}

	name = bracketChars.Replace(name)
	name = separatorRuns.ReplaceAllString(name, " ")
	name = whitespaceRuns.ReplaceAllString(name, " ")

	return strings.TrimSpace(name)
}

// Package fileutil provides common file path utilities.
package fileutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SafeJoin joins path onto base and rejects results that escape base.
// path must be relative; ".." segments that climb out of base are an error.
func SafeJoin(base, path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("path %q must be relative", path)
	}

	joined := filepath.Join(base, path)

	cleanBase := filepath.Clean(base)
	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes base directory", path)
	}

	return joined, nil
}

package testing

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// WriteConfigFile marshals the given document to YAML in a temp directory and
// returns the file path. The file is removed when the test finishes.
func WriteConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()

	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal config fixture: %v", err)
	}

	path := filepath.Join(t.TempDir(), "grabarr.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	return path
}

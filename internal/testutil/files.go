package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes body to name inside a fresh temporary directory and
// returns the file's path.
func WriteFile(t testing.TB, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// Package testutil provides golden-file helpers for presence tests.
package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run "go test ./... -update" to rewrite golden files from current output.
var update = flag.Bool("update", false, "update golden files")

// AssertGolden compares got against testdata/<name>, or rewrites the file
// when -update is set.
func AssertGolden(t *testing.T, got, name string) {
	t.Helper()

	want, ok := golden(t, got, name)
	if !ok {
		return
	}

	assert.Equal(t, want, got, "output mismatch for %s; run with -update to refresh golden files", name)
}

// AssertGoldenJSON compares got against testdata/<name> as JSON, ignoring
// whitespace and key order.
func AssertGoldenJSON(t *testing.T, got, name string) {
	t.Helper()

	want, ok := golden(t, got, name)
	if !ok {
		return
	}

	assert.JSONEq(t, want, got, "json mismatch for %s; run with -update to refresh golden files", name)
}

// golden returns the stored contents of name. It reports false when the
// file was rewritten instead.
func golden(t *testing.T, got, name string) (string, bool) {
	t.Helper()

	path := filepath.Join("testdata", name)

	if *update {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "create testdata directory")
		require.NoError(t, os.WriteFile(path, []byte(got), 0o644), "update golden file %s", path)
		t.Logf("updated golden file: %s", path)

		return "", false
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Fatalf("golden file %s does not exist; run with -update to create it", path)
	}

	require.NoError(t, err, "read golden file %s", path)

	return string(want), true
}

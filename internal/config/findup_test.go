package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindUpwardLocatesMarkerInAncestor(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "marker.txt"), []byte("x"), 0o644))

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	path, ok := findUpward(nested, "marker.txt")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "marker.txt"), path)
}

func TestFindUpwardReportsNotFound(t *testing.T) {
	nested := t.TempDir()
	_, ok := findUpward(nested, "does-not-exist.json")
	assert.False(t, ok)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLayeredAppliesDefaultsWithNoFiles(t *testing.T) {
	opts, _, err := LoadLayered("REPLIKV_TEST_EMPTY")
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)
}

func TestLoadLayeredReadsSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaultIndexing: aggressive\n"), 0o600))

	opts, _, err := LoadLayered("REPLIKV_TEST_SINGLE", path)
	require.NoError(t, err)
	assert.Equal(t, IndexingAggressive, opts.DefaultIndexing)
}

func TestLoadLayeredLaterFileOverridesEarlier(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	override := filepath.Join(dir, "override.yaml")
	require.NoError(t, os.WriteFile(base, []byte("defaultIndexing: minimal\nlazyIndexBuilding: false\n"), 0o600))
	require.NoError(t, os.WriteFile(override, []byte("defaultIndexing: aggressive\n"), 0o600))

	opts, _, err := LoadLayered("REPLIKV_TEST_OVERRIDE", base, override)
	require.NoError(t, err)
	assert.Equal(t, IndexingAggressive, opts.DefaultIndexing)
	assert.False(t, opts.LazyIndexBuilding)
}

func TestLoadLayeredEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaultIndexing: minimal\n"), 0o600))

	t.Setenv("REPLIKV_TEST_ENV_DEFAULTINDEXING", "aggressive")

	opts, _, err := LoadLayered("REPLIKV_TEST_ENV", path)
	require.NoError(t, err)
	assert.Equal(t, IndexingAggressive, opts.DefaultIndexing)
}

func TestLoadLayeredMissingFileIsNotAnError(t *testing.T) {
	opts, _, err := LoadLayered("REPLIKV_TEST_MISSING", filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)
}

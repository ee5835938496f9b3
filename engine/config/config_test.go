package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
backend = "null"
clustered_lighting = true
shadow_atlas_resolution = 4096
cluster_cells = [8, 4, 8]
`))
	require.NoError(t, err)

	assert.Equal(t, "null", cfg.Backend)
	assert.True(t, cfg.ClusteredLighting)
	assert.Equal(t, 4096, cfg.ShadowAtlasResolution)
	assert.Equal(t, [3]int{8, 4, 8}, cfg.ClusterCells)
	assert.Equal(t, Default().DefaultShadowResolution, cfg.DefaultShadowResolution)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	_, err := Parse([]byte(`shadow_atlas_resolution = 1000`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse([]byte(`backend = "vulkan"`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse([]byte(`no_such_key = 1`))
	assert.Error(t, err)
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.SkinWorkers = 3
	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "renderer.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no config file on the
// search path.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	return dir
}

func TestLoadWithNoConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scanwarp.yaml"), []byte(`
log_level: debug
vision:
  backend: none
detector:
  min_area: 250
server:
  port: 9000
`), 0o600))

	loader := NewLoaderWithViper(viper.New())
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "none", cfg.Vision.Backend)
	assert.InDelta(t, 250, cfg.Detector.MinArea, 0)
	assert.Equal(t, 9000, cfg.Server.Port)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().Detector.BlurKernel, cfg.Detector.BlurKernel)
	assert.Equal(t, "scanwarp.yaml", filepath.Base(loader.GetConfigFileUsed()))
}

func TestLoadWithFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers:\n  count: 3\ncleanup:\n  enabled: false\n"), 0o600))

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers.Count)
	assert.False(t, cfg.Cleanup.Enabled)

	_, err = NewLoaderWithViper(viper.New()).LoadWithFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "does not exist")
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 0\n"), 0o600))

	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	assert.ErrorContains(t, err, "invalid server port")

	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed\n"), 0o600))
	_, err = NewLoaderWithViper(viper.New()).LoadWithFile(path)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SCANWARP_SERVER_PORT", "7070")
	t.Setenv("SCANWARP_VISION_BACKEND", "none")
	t.Setenv("SCANWARP_LOG_LEVEL", "warn")

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "none", cfg.Vision.Backend)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestGetConfigSearchPaths(t *testing.T) {
	dir := isolate(t)
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, dir)
	assert.Contains(t, paths, filepath.Join(dir, "xdg", "scanwarp"))
	assert.Equal(t, "/etc/scanwarp", paths[len(paths)-1])
}

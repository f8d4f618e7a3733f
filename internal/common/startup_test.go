package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Listener struct {
		DropFolderPath   string
		IdleDelaySeconds int
		FinalizeTimeout  time.Duration
	}
	MetricsPort uint16
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig_MergesOverridesAndEnv(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "config.yaml"), `
listener:
  dropFolderPath: /drop
  idleDelaySeconds: 5
  finalizeTimeout: 30s
metricsPort: 9000
`)
	override := filepath.Join(t.TempDir(), "override.yaml")
	writeFile(t, override, `
listener:
  idleDelaySeconds: 1
`)
	t.Setenv("DROPINGESTER_METRICSPORT", "9100")

	var config testConfig
	_, err := LoadConfig(&config, baseDir, []string{override})
	require.NoError(t, err)

	assert.Equal(t, "/drop", config.Listener.DropFolderPath)
	assert.Equal(t, 1, config.Listener.IdleDelaySeconds)
	assert.Equal(t, 30*time.Second, config.Listener.FinalizeTimeout)
	assert.Equal(t, uint16(9100), config.MetricsPort)
}

func TestLoadConfig_MissingOverrideFails(t *testing.T) {
	var config testConfig
	_, err := LoadConfig(&config, t.TempDir(), []string{filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

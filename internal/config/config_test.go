package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configEnvKeys lists every variable Load reads, so tests can start clean.
var configEnvKeys = []string{
	"ONEPAGER_DATA_DIR", "ONEPAGER_OUT_DIR", "PORT", "DEV_MODE", "LOG_LEVEL",
	"SEC_USER_AGENT", "SEC_MAX_PER_SECOND",
	"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "TEXTGEN_MODEL",
	"TEXTGEN_MAX_PER_MINUTE", "TEXTGEN_MAX_RETRIES",
	"SCREEN_UNIVERSE", "SCREEN_MIN_FCF_YIELD", "SCREEN_MIN_ROIC",
	"SCREEN_SCHEDULE", "CLEANUP_SCHEDULE", "SNAPSHOT_TTL_HOURS",
	"ARCHIVE_S3_BUCKET", "ARCHIVE_S3_REGION", "ARCHIVE_S3_PREFIX",
	"ARCHIVE_S3_ACCESS_KEY", "ARCHIVE_S3_SECRET_KEY",
}

// withCleanEnv clears all config variables and restores the originals when
// the test finishes.
func withCleanEnv(t *testing.T) {
	t.Helper()
	saved := make(map[string]string, len(configEnvKeys))
	for _, key := range configEnvKeys {
		saved[key] = os.Getenv(key)
		os.Unsetenv(key)
	}
	t.Cleanup(func() {
		for key, val := range saved {
			if val != "" {
				os.Setenv(key, val)
			} else {
				os.Unsetenv(key)
			}
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	withCleanEnv(t)
	os.Setenv("ONEPAGER_DATA_DIR", t.TempDir())
	os.Setenv("ONEPAGER_OUT_DIR", filepath.Join(t.TempDir(), "out"))

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.SECMaxPerSecond)
	assert.Equal(t, 10, cfg.TextGenMaxPerMin)
	assert.Equal(t, 2, cfg.TextGenMaxRetries)
	assert.Equal(t, DefaultUniverse, cfg.ScreenUniverse)
	assert.InDelta(t, 0.04, cfg.ScreenMinFCFYield, 1e-12)
	assert.InDelta(t, 0.10, cfg.ScreenMinROIC, 1e-12)
	assert.Equal(t, "0 0 6 * * *", cfg.ScreenSchedule)
	assert.Equal(t, 24, cfg.SnapshotTTLHours)
	assert.False(t, cfg.TextGenEnabled())
}

func TestLoad_DataDirResolvedAndCreated(t *testing.T) {
	withCleanEnv(t)
	dataDir := filepath.Join(t.TempDir(), "nested", "data")
	os.Setenv("ONEPAGER_DATA_DIR", dataDir)
	os.Setenv("ONEPAGER_OUT_DIR", filepath.Join(t.TempDir(), "out"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir), "DataDir should be absolute")
	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err, "data directory should be created")
	assert.True(t, info.IsDir())
}

func TestLoad_UniverseFromEnv(t *testing.T) {
	withCleanEnv(t)
	os.Setenv("ONEPAGER_DATA_DIR", t.TempDir())
	os.Setenv("ONEPAGER_OUT_DIR", filepath.Join(t.TempDir(), "out"))
	os.Setenv("SCREEN_UNIVERSE", "NVDA, TSM ,ASML")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "TSM", "ASML"}, cfg.ScreenUniverse)
}

func TestLoad_InvalidPortRejected(t *testing.T) {
	withCleanEnv(t)
	os.Setenv("ONEPAGER_DATA_DIR", t.TempDir())
	os.Setenv("ONEPAGER_OUT_DIR", filepath.Join(t.TempDir(), "out"))
	os.Setenv("PORT", "99999")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestLoad_MalformedIntFallsBackToDefault(t *testing.T) {
	withCleanEnv(t)
	os.Setenv("ONEPAGER_DATA_DIR", t.TempDir())
	os.Setenv("ONEPAGER_OUT_DIR", filepath.Join(t.TempDir(), "out"))
	os.Setenv("SEC_MAX_PER_SECOND", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.SECMaxPerSecond)
}

func TestTextGenEnabled(t *testing.T) {
	withCleanEnv(t)
	os.Setenv("ONEPAGER_DATA_DIR", t.TempDir())
	os.Setenv("ONEPAGER_OUT_DIR", filepath.Join(t.TempDir(), "out"))
	os.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.TextGenEnabled())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Listen, again.Listen)
	assert.Equal(t, cfg.RefreshCron, again.RefreshCron)
}

func TestLoad_NormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timezone: Europe/Rome
schedule: ./schedule.yaml
ics:
  - id: holidays
    url: https://example.com/holidays.ics
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Rome", cfg.Timezone)
	assert.Equal(t, "./schedule.yaml", cfg.Schedule)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultEvaluate, cfg.Evaluate)
	assert.Equal(t, DefaultRefreshCron, cfg.RefreshCron)
	assert.Equal(t, DefaultHorizonDays, cfg.HorizonDays)
	require.Len(t, cfg.ICS, 1)
	assert.Equal(t, "holidays", cfg.ICS[0].ID)
	assert.Nil(t, cfg.BasicAuth)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.BasicAuth = &BasicAuthConfig{Username: "ops", Password: "secret"}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "UTC", loaded.Timezone)
	assert.Equal(t, cfg.Evaluate, loaded.Evaluate)
	assert.Equal(t, cfg.CacheDir, loaded.CacheDir)
	require.NotNil(t, loaded.BasicAuth)
	assert.Equal(t, *cfg.BasicAuth, *loaded.BasicAuth)
	assert.Empty(t, loaded.ICS)

	assert.Error(t, Save(path, nil))
	assert.Error(t, Save("", cfg))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.Timezone = "Mars/Olympus_Mons"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Evaluate = "every minute"
	assert.ErrorContains(t, bad.Validate(), "evaluate")

	bad = DefaultConfig()
	bad.RefreshCron = "61 * * * *"
	assert.ErrorContains(t, bad.Validate(), "refresh")

	off := DefaultConfig()
	off.RefreshCron = RefreshDisabled
	assert.NoError(t, off.Validate())

	bad = DefaultConfig()
	bad.ICS = []ICSConfig{{ID: "x"}}
	assert.ErrorContains(t, bad.Validate(), "ics[0]")
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Timezone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

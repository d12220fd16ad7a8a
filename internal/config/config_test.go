package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_FileAndEnvironmentOverrideDefaults(t *testing.T) {
	// given
	path := filepath.Join(t.TempDir(), "application.yaml")
	yaml := []byte(`
db:
  host: db.internal
  schema: ledger
scheduler:
  runat: "02:30"
  workers: 8
  plantimeout: 5s
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))
	t.Setenv("SMARTSPEND_REDIS_ENABLED", "true")
	t.Setenv("SMARTSPEND_REDIS_ADDR", "redis:6379")
	t.Setenv("SMARTSPEND_SCHEDULER_WORKERS", "2")

	// when
	cfg, err := Load(path)

	// then
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "ledger", cfg.Database.Schema)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "02:30", cfg.Scheduler.RunAt)
	assert.Equal(t, 2, cfg.Scheduler.Workers)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.PlanTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoad_RejectsInvalidRunAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  runat: \"25:00\"\n"), 0o600))

	_, err := Load(path)

	assert.ErrorContains(t, err, "scheduler.runat")
}

func TestScheduler_RunAtClock(t *testing.T) {
	hour, minute, err := Scheduler{RunAt: "07:45"}.RunAtClock()

	require.NoError(t, err)
	assert.Equal(t, 7, hour)
	assert.Equal(t, 45, minute)
}

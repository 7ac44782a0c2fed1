package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("APP_ENV: test\n"), 0o600))

	File = path
	t.Cleanup(func() { File = "" })

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	require.Equal(t, "test", cfg.AppEnv)
	require.Equal(t, 2, cfg.Points.MaxApplyCount)
	require.Equal(t, 20, cfg.Points.MaxRecordListCount)
	require.Equal(t, 5*time.Minute, cfg.Points.RuleCacheTTL)
	require.Equal(t, "@every 5s", cfg.Points.OutboxSpec)
}

func TestLoadReadsSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
DATABASE:
  TYPE: sqlite
  DBNAME: points.db
POINTS:
  ADMIN: admin-address
  MAX_APPLY_COUNT: 5
  MAX_RECORD_LIST_COUNT: 50
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	File = path
	t.Cleanup(func() { File = "" })

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Type)
	require.Equal(t, "points.db", cfg.Database.DBNAME)
	require.Equal(t, "admin-address", cfg.Points.Admin)
	require.Equal(t, 5, cfg.Points.MaxApplyCount)
	require.Equal(t, 50, cfg.Points.MaxRecordListCount)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	File = filepath.Join(t.TempDir(), "missing.yaml")
	t.Cleanup(func() { File = "" })

	_, err := Load(viper.New())
	require.Error(t, err)
}

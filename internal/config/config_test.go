package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, "linkcore.db", cfg.Storage.SQLitePath)
	assert.Equal(t, ChangesMemory, cfg.Changes.Driver)
	assert.Equal(t, "changes/", cfg.Changes.Prefix)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("LINKCORE_STORAGE_DRIVER", "postgres")
	t.Setenv("LINKCORE_STORAGE_POSTGRES_DSN", "postgres://db/linkcore")
	t.Setenv("LINKCORE_CHANGES_DRIVER", "s3")
	t.Setenv("LINKCORE_CHANGES_S3_BUCKET", "events")
	t.Setenv("LINKCORE_CHANGES_S3_PATH_STYLE", "true")
	t.Setenv("LINKCORE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://db/linkcore", cfg.Storage.PostgresDSN)
	assert.Equal(t, "events", cfg.Changes.S3.Bucket)
	assert.True(t, cfg.Changes.S3.PathStyle)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: memory
changes:
  driver: fs
  fs_root: /var/lib/linkcore/changes
schema:
  path: schema.yaml
log:
  format: console
`), 0o600))
	t.Setenv("LINKCORE_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, ChangesFS, cfg.Changes.Driver)
	assert.Equal(t, "/var/lib/linkcore/changes", cfg.Changes.FSRoot)
	assert.Equal(t, "schema.yaml", cfg.Schema.Path)
	assert.Equal(t, "json", cfg.Log.Format, "environment wins over file")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidate(t *testing.T) {
	valid := Config{
		Storage: StorageConfig{Driver: StorageMemory},
		Changes: ChangesConfig{Driver: ChangesNone},
		Log:     LogConfig{Format: "json"},
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown storage", func(c *Config) { c.Storage.Driver = "mysql" }, `unknown storage driver "mysql"`},
		{"sqlite path", func(c *Config) { c.Storage.Driver = StorageSQLite }, "storage.sqlite_path"},
		{"postgres dsn", func(c *Config) { c.Storage.Driver = StoragePostgres }, "storage.postgres_dsn"},
		{"unknown changes", func(c *Config) { c.Changes.Driver = "kafka" }, `unknown changes driver "kafka"`},
		{"fs root", func(c *Config) { c.Changes.Driver = ChangesFS }, "changes.fs_root"},
		{"s3 bucket", func(c *Config) { c.Changes.Driver = ChangesS3 }, "changes.s3.bucket"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, `unknown log format "xml"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

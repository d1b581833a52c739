// Package config loads linkcore settings from an optional YAML file and
// LINKCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix shared by every environment override, e.g.
// LINKCORE_STORAGE_DRIVER for storage.driver.
const EnvPrefix = "LINKCORE"

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Change archive drivers.
const (
	ChangesNone   = "none"
	ChangesMemory = "memory"
	ChangesFS     = "fs"
	ChangesS3     = "s3"
)

// Config is the resolved configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Changes ChangesConfig `mapstructure:"changes"`
	Schema  SchemaConfig  `mapstructure:"schema"`
	Log     LogConfig     `mapstructure:"log"`
}

// StorageConfig selects and parameterizes the record adapter.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ChangesConfig selects where committed change events are archived.
type ChangesConfig struct {
	Driver string   `mapstructure:"driver"`
	Prefix string   `mapstructure:"prefix"`
	FSRoot string   `mapstructure:"fs_root"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config parameterizes the S3 change archive.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// SchemaConfig points at the YAML schema registry.
type SchemaConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"storage.driver":               StorageSQLite,
	"storage.sqlite_path":          "linkcore.db",
	"storage.postgres_dsn":         "",
	"changes.driver":               ChangesMemory,
	"changes.prefix":               "changes/",
	"changes.fs_root":              "",
	"changes.s3.bucket":            "",
	"changes.s3.region":            "",
	"changes.s3.endpoint":          "",
	"changes.s3.access_key_id":     "",
	"changes.s3.secret_access_key": "",
	"changes.s3.path_style":        false,
	"schema.path":                  "",
	"log.level":                    "info",
	"log.format":                   "json",
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (when non-empty) over the defaults and environment, then
// validates the result.
func Load(path string) (Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and missing driver settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Changes.Driver {
	case ChangesNone, ChangesMemory:
	case ChangesFS:
		if c.Changes.FSRoot == "" {
			errs = append(errs, errors.New("changes.fs_root is required for the fs driver"))
		}
	case ChangesS3:
		if c.Changes.S3.Bucket == "" {
			errs = append(errs, errors.New("changes.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown changes driver %q", c.Changes.Driver))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

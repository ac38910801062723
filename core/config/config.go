package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"datakit/core/database"
	"datakit/core/logger"
	"datakit/core/reconcile"
	"datakit/core/server"
	"datakit/core/storage"
	"datakit/feature/stories"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the snapshot object storage (e.g., S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the local mirror database.
	Database database.Config `mapstructure:"database"`
	// Source holds configuration for the authoritative story source.
	Source stories.SourceConfig `mapstructure:"source"`
	// Sync holds configuration for reconciliation passes.
	Sync stories.SyncConfig `mapstructure:"sync"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects values the application cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if _, err := reconcile.ParseMode(c.Sync.Mode); err != nil {
		errs = append(errs, fmt.Errorf("sync.mode: %w", err))
	}
	if c.Sync.IntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("sync.interval_seconds must not be negative"))
	}

	switch c.Source.Kind {
	case stories.SourceHackerNews:
	case stories.SourceSnapshot:
		if !c.Storage.Enabled {
			errs = append(errs, fmt.Errorf("source.kind %q requires storage.enabled", c.Source.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind: unknown source %q", c.Source.Kind))
	}

	switch c.Database.Driver {
	case database.DriverSQLite, database.DriverMySQL:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}

	return errors.Join(errs...)
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}

package database

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds configuration for the database connection.
type Config struct {
	// Host is the database host.
	Host string `mapstructure:"host" default:"localhost"`
	// Port is the database port.
	Port int `mapstructure:"port" default:"3306"`
	// User is the database user.
	User string `mapstructure:"user" default:"root"`
	// Password is the database password.
	Password string `mapstructure:"password" default:""`
	// Name is the database name, or the file path for sqlite (":memory:" for an in-memory store).
	Name string `mapstructure:"name" default:"datakit.db"`
	// Driver is the database driver (mysql, sqlite).
	Driver string `mapstructure:"driver" default:"sqlite"`
	// TimeoutSeconds bounds connection setup, I/O and lock waits.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// AutoMigrate creates and alters tables for registered models on load.
	AutoMigrate bool `mapstructure:"auto_migrate" default:"true"`
	// ReadOnly opens the store without write access; commits are rejected.
	ReadOnly bool `mapstructure:"read_only" default:"false"`
	// ResetOnFailure removes an sqlite store file that cannot be loaded and retries once.
	ResetOnFailure bool `mapstructure:"reset_on_failure" default:"false"`
}

// IsMemory reports whether the configuration points at an in-memory sqlite store.
func (c Config) IsMemory() bool {
	return c.Driver == DriverSQLite && (c.Name == ":memory:" || c.Name == "")
}

package database

import (
	"fmt"
	"net/url"
	"strings"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds database connection settings. An empty Driver disables storage.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// MigrationsDir overrides the embedded migrations with a directory on disk.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Enabled reports whether a database is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Driver) != ""
}

// Validate checks driver specific fields.
func (c Config) Validate() error {
	switch c.Driver {
	case "":
		return nil
	case DriverPostgres:
		if c.Host == "" || c.Name == "" {
			return fmt.Errorf("database: host and name are required for %s", c.Driver)
		}
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("database: path is required for %s", c.Driver)
		}
	default:
		return fmt.Errorf("database: unsupported driver %q; allowed: postgres, sqlite3", c.Driver)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("database: max_connections must be >= 0")
	}
	return nil
}

// DSN renders the driver specific connection string.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host,
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	if c.Port != "" {
		u.Host = c.Host + ":" + c.Port
	}
	return u.String()
}

// Target is a log-safe description of the database.
func (c Config) Target() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return c.Host + "/" + c.Name
}

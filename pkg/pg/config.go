package pg

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config describes a PostgreSQL connection. The zero-value-ish defaults come
// from env tags; ConnectionString acts as the base template from which
// per-tenant configs are derived via WithDatabase.
type Config struct {
	ConnectionString  string        `env:"PG_CONN_URL,required"`                   // ConnectionString is the connection string to the database.
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`      // MaxOpenConns is the maximum number of open connections to the database.
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`       // MaxIdleConns is the maximum number of idle connections to the database.
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`  // HealthCheckPeriod is the period between health checks.
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"` // MaxConnIdleTime is the maximum amount of time a connection may be idle to be reused.
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`  // MaxConnLifetime is the maximum amount of time a connection may be reused.

	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`  // RetryAttempts is the number of retry attempts to connect to the database.
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"` // RetryInterval is the interval between retry attempts.

	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"schema_migrations"` // MigrationsTable is the name of the table used to store the migration version.
}

// WithDatabase returns a copy of the config whose connection string points at
// a different database. Every other connection parameter (host, credentials,
// pool sizing) is inherited from the base template. This is how a tenant's
// isolated database reuses the platform's physical connection settings.
func (c Config) WithDatabase(name string) (Config, error) {
	dsn, err := replaceDatabase(c.ConnectionString, name)
	if err != nil {
		return Config{}, err
	}
	out := c
	out.ConnectionString = dsn
	return out, nil
}

// Database extracts the database name from the connection string.
func (c Config) Database() (string, error) {
	u, err := url.Parse(c.ConnectionString)
	if err != nil {
		return "", errors.Join(ErrFailedToParseDBConfig, err)
	}
	return strings.TrimPrefix(u.Path, "/"), nil
}

func replaceDatabase(dsn, name string) (string, error) {
	if name == "" {
		return "", ErrEmptyDatabaseName
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", errors.Join(ErrFailedToParseDBConfig, err)
	}
	u.Path = "/" + name
	return u.String(), nil
}

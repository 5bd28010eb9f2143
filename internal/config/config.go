package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Log    LogConfig
	Admin  AdminConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port             string        `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout  int           `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	CORSAllowOrigins string        `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000"`
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        int    `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name        string `envconfig:"DB_NAME" default:"referral_db"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// DSN returns the PostgreSQL connection string used by the pgx pool.
func (c DBConfig) DSN() string {
	query := "sslmode=" + url.QueryEscape(c.sslMode())
	if c.MaxConns > 0 {
		query += fmt.Sprintf("&pool_max_conns=%d", c.MaxConns)
	}
	if c.MinConns > 0 {
		query += fmt.Sprintf("&pool_min_conns=%d", c.MinConns)
	}
	return c.connURL("postgres", query)
}

// MigrationURL returns the connection string for golang-migrate's pgx/v5 driver.
// Pool parameters are left out because the driver forwards unknown parameters
// to the server as runtime settings.
func (c DBConfig) MigrationURL() string {
	return c.connURL("pgx5", "sslmode="+url.QueryEscape(c.sslMode()))
}

// connURL escapes credentials and the database name into a connection URL.
func (c DBConfig) connURL(scheme, rawQuery string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: rawQuery,
	}
	return u.String()
}

func (c DBConfig) sslMode() string {
	if c.SSLMode == "" {
		return "disable"
	}
	return c.SSLMode
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// AdminConfig holds the credential used by administrative routes.
// KeyHash is a bcrypt hash; generate one with `couponctl admin hash-key`.
type AdminConfig struct {
	KeyHash string `envconfig:"ADMIN_KEY_HASH"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

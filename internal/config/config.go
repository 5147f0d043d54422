// Package config loads dbkit settings from a YAML file, an optional .env
// file and DBKIT_* environment variables, in that order of precedence
// (later sources win).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/dbkit/internal/database"
	"github.com/koustreak/dbkit/internal/database/mysql"
	"github.com/koustreak/dbkit/internal/database/postgres"
	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/filestore"
	"github.com/koustreak/dbkit/internal/logger"
	"github.com/koustreak/dbkit/internal/schema"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "DBKIT_"

type Config struct {
	// Models is the path of the YAML table definitions to validate.
	Models string `yaml:"models" env:"MODELS"`

	Database   DatabaseConfig   `yaml:"database" envPrefix:"DB_"`
	Logging    LoggingConfig    `yaml:"logging" envPrefix:"LOG_"`
	Validation ValidationConfig `yaml:"validation" envPrefix:"VALIDATION_"`
	Reports    ReportsConfig    `yaml:"reports" envPrefix:"REPORTS_"`
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Watch      WatchConfig      `yaml:"watch" envPrefix:"WATCH_"`
}

// DatabaseConfig describes the live connection. DSN wins over the discrete
// host/port/user fields when both are set.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"`
	DSN      string `yaml:"dsn" env:"DSN"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"`
	Schema   string `yaml:"schema" env:"SCHEMA"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
	Charset  string `yaml:"charset" env:"CHARSET"`

	PoolSize       int32         `yaml:"pool_size" env:"POOL_SIZE"`
	MaxOverflow    int32         `yaml:"max_overflow" env:"MAX_OVERFLOW"`
	PoolRecycle    time.Duration `yaml:"pool_recycle" env:"POOL_RECYCLE"`
	PoolIdle       time.Duration `yaml:"pool_idle" env:"POOL_IDLE"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	QueryTimeout   time.Duration `yaml:"query_timeout" env:"QUERY_TIMEOUT"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	Format     string `yaml:"format" env:"FORMAT"`
	TimeFormat string `yaml:"time_format" env:"TIME_FORMAT"`
	Path       string `yaml:"path" env:"PATH"`
}

type ValidationConfig struct {
	Strict      bool   `yaml:"strict" env:"STRICT"`
	HaltOnError bool   `yaml:"halt_on_error" env:"HALT_ON_ERROR"`
	Compare     string `yaml:"compare" env:"COMPARE"`
}

// ReportsConfig points at the MinIO bucket validation reports are archived
// to. Archiving is off while Endpoint is empty.
type ReportsConfig struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	Prefix    string `yaml:"prefix" env:"PREFIX"`
	Region    string `yaml:"region" env:"REGION"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type WatchConfig struct {
	Schedule string `yaml:"schedule" env:"SCHEDULE"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Models: "models.yaml",
		Database: DatabaseConfig{
			Driver:         string(database.DriverMySQL),
			Host:           "localhost",
			Name:           "test_db",
			Charset:        "utf8mb4",
			PoolSize:       5,
			MaxOverflow:    10,
			PoolRecycle:    time.Hour,
			PoolIdle:       5 * time.Minute,
			ConnectTimeout: 30 * time.Second,
			QueryTimeout:   30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			TimeFormat: "rfc3339",
		},
		Validation: ValidationConfig{
			Strict:  true,
			Compare: schema.CompareFull.String(),
		},
		Reports: ReportsConfig{
			Bucket: "dbkit-reports",
			Prefix: "validations/",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Watch: WatchConfig{
			Schedule: "*/15 * * * *",
		},
	}
}

// Load builds the configuration. A missing file at path leaves the defaults
// in place; envFile is loaded into the process environment when it exists
// and never overrides variables that are already set.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, errs.Wrap(errs.ErrKindConfiguration, "read config "+path, err)
		default:
			if err := decodeYAML(bytes.NewReader(data), cfg); err != nil {
				return nil, errs.Wrap(errs.ErrKindConfiguration, "parse config "+path, err)
			}
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, errs.Wrap(errs.ErrKindConfiguration, "load "+envFile, err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "parse environment", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	if _, err := database.Driver(c.Database.Driver).Dialect(); err != nil {
		return errs.Wrap(errs.ErrKindConfiguration, "database.driver", err)
	}
	if _, err := schema.ParseCompareMode(c.Validation.Compare); err != nil {
		return errs.Wrap(errs.ErrKindConfiguration, "validation.compare", err)
	}
	if c.Database.PoolSize < 1 {
		return errs.New(errs.ErrKindConfiguration, "database.pool_size must be at least 1")
	}
	if c.Database.MaxOverflow < 0 {
		return errs.New(errs.ErrKindConfiguration, "database.max_overflow must not be negative")
	}
	if c.Reports.Endpoint != "" && c.Reports.Bucket == "" {
		return errs.New(errs.ErrKindConfiguration, "reports.bucket is required when reports.endpoint is set")
	}
	return nil
}

// CompareMode returns the parsed validation.compare setting.
func (c *Config) CompareMode() schema.CompareMode {
	m, err := schema.ParseCompareMode(c.Validation.Compare)
	if err != nil {
		return schema.CompareFull
	}
	return m
}

// BuildDSN returns the configured DSN or builds one for the driver.
func (d DatabaseConfig) BuildDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch database.Driver(d.Driver) {
	case database.DriverPostgres:
		return postgres.BuildDSN(postgres.Params{
			Host:     d.Host,
			Port:     d.Port,
			User:     d.User,
			Password: d.Password,
			Database: d.Name,
			SSLMode:  d.SSLMode,
		})
	case database.DriverMySQL:
		return mysql.BuildDSN(mysql.Params{
			Host:     d.Host,
			Port:     d.Port,
			User:     d.User,
			Password: d.Password,
			Database: d.Name,
			Charset:  d.Charset,
			Timeout:  d.ConnectTimeout,
		})
	case database.DriverSQLite:
		return d.Name
	default:
		return ""
	}
}

// Connection converts the section into a driver config. Pool size and
// overflow map onto the minimum and maximum connection counts.
func (d DatabaseConfig) Connection() *database.Config {
	return &database.Config{
		Driver:          database.Driver(d.Driver),
		DSN:             d.BuildDSN(),
		Schema:          d.Schema,
		MaxConns:        d.PoolSize + d.MaxOverflow,
		MinConns:        d.PoolSize,
		MaxConnLifetime: d.PoolRecycle,
		MaxConnIdleTime: d.PoolIdle,
		ConnectTimeout:  d.ConnectTimeout,
		QueryTimeout:    d.QueryTimeout,
	}
}

// Logger converts the section into a logger config writing to out.
func (l LoggingConfig) Logger(out io.Writer) *logger.Config {
	return &logger.Config{
		Level:      l.Level,
		Format:     l.Format,
		TimeFormat: l.TimeFormat,
		Output:     out,
	}
}

// Enabled reports whether a report archive is configured.
func (r ReportsConfig) Enabled() bool {
	return r.Endpoint != ""
}

func (r ReportsConfig) Store() *filestore.Config {
	cfg := filestore.DefaultConfig(r.Endpoint, r.AccessKey, r.SecretKey)
	cfg.UseSSL = r.UseSSL
	cfg.Region = r.Region
	cfg.DefaultBucket = r.Bucket
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf("driver=%s database=%s compare=%s strict=%t",
		c.Database.Driver, c.Database.Name, c.Validation.Compare, c.Validation.Strict)
}

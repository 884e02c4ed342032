package config

import (
	"time"

	validatorV10 "github.com/go-playground/validator/v10"

	"github.com/leeforge/pluginhub/lifecycle"
	"github.com/leeforge/pluginhub/loader"
	"github.com/leeforge/pluginhub/logging"
	"github.com/leeforge/pluginhub/redis_client"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// AppConfig is the full pluginhub configuration.
type AppConfig struct {
	Mode      Mode                `mapstructure:"-" json:"mode" yaml:"-"`
	Server    ServerConfig        `mapstructure:"server" json:"server" yaml:"server"`
	Logging   logging.Config      `mapstructure:"logging" json:"logging" yaml:"logging"`
	Storage   StorageConfig       `mapstructure:"storage" json:"storage" yaml:"storage"`
	Redis     redis_client.Config `mapstructure:"redis" json:"redis" yaml:"redis"`
	Lifecycle lifecycle.Config    `mapstructure:"lifecycle" json:"lifecycle" yaml:"lifecycle"`
	Loader    loader.Config       `mapstructure:"loader" json:"loader" yaml:"loader"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" json:"addr" yaml:"addr" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout" default:"15s" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout" default:"30s" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout" default:"10s" validate:"gte=0"`
	// Watch reloads the log level when a config file changes.
	Watch bool `mapstructure:"watch" json:"watch" yaml:"watch"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver" default:"sqlite3" validate:"oneof=memory sqlite3 postgres"`
	DSN    string `mapstructure:"dsn" json:"dsn" yaml:"dsn" default:"file:pluginhub.db?_busy_timeout=5000" validate:"required_unless=Driver memory"`
}

var validate = validatorV10.New()

// Validate checks the struct tags and the values defaults cannot express.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// Load reads the AppConfig described by opts.
func Load(opts ...Options) (*AppConfig, *Config, error) {
	c, err := NewConfig(opts...)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := c.App()
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}

// App binds a fresh AppConfig from the current settings.
func (c *Config) App() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := c.BindWithDefaults(cfg); err != nil {
		return nil, err
	}
	cfg.Mode = c.Mode()
	return cfg, nil
}

package redis_client

import (
	"net"
	"time"
)

// Config configures the Redis connection used to fan lifecycle events out
// to peer instances.
type Config struct {
	Enabled     bool          `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Host        string        `mapstructure:"host" json:"host" yaml:"host" default:"127.0.0.1"`
	Port        string        `mapstructure:"port" json:"port" yaml:"port" default:"6379"`
	Password    string        `mapstructure:"password" json:"password" yaml:"password"`
	DB          int           `mapstructure:"db" json:"db" yaml:"db"`
	Channel     string        `mapstructure:"channel" json:"channel" yaml:"channel" default:"pluginhub:lifecycle"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout" yaml:"dial_timeout" default:"5s"`
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

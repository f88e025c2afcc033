// Package config loads the settings of the arbor command from defaults,
// an optional arbor.yaml file and ARBOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ARBOR_REDIS_ADDR.
const EnvPrefix = "ARBOR"

// Config holds the command configuration.
type Config struct {
	Dir      string      `mapstructure:"dir"`
	Source   string      `mapstructure:"source"`
	Strict   bool        `mapstructure:"strict"`
	Notify   bool        `mapstructure:"notify"`
	Format   string      `mapstructure:"format"`
	LogLevel string      `mapstructure:"log_level"`
	HTTP     HTTPConfig  `mapstructure:"http"`
	Redis    RedisConfig `mapstructure:"redis"`
}

// HTTPConfig holds the inspection server settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig holds the settings of the shared lock and snapshot store.
// An empty Addr disables both.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Prefix      string        `mapstructure:"prefix"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// New returns a viper instance with the defaults, the config file lookup and
// the environment bindings in place. Callers bind their flags to it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("dir", ".")
	v.SetDefault("source", "file")
	v.SetDefault("strict", false)
	v.SetDefault("notify", true)
	v.SetDefault("format", "text")
	v.SetDefault("log_level", "warn")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.prefix", "arbor:")
	v.SetDefault("redis.lock_ttl", 30*time.Second)
	v.SetDefault("redis.snapshot_ttl", time.Duration(0))

	v.SetConfigType("yaml")
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("arbor")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file, if any, and decodes the merged settings.
// A missing arbor.yaml is not an error; a broken or explicitly named missing one is.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.Source {
	case "file", "loam":
	default:
		return fmt.Errorf("invalid source %q (want file or loam)", c.Source)
	}
	switch c.Format {
	case "text", "json", "mermaid", "markdown":
	default:
		return fmt.Errorf("invalid format %q (want text, json, mermaid or markdown)", c.Format)
	}
	return nil
}

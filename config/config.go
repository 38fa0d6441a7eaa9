// Package config loads run settings from an optional file and MAPQUEUE_*
// environment variables. Environment values take precedence over the file.
package config

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/vinayprograms/mapqueue/errors"
)

// EnvPrefix prefixes every environment override, e.g. MAPQUEUE_STORE_BACKEND.
const EnvPrefix = "MAPQUEUE"

// Config holds all run configuration.
type Config struct {
	Store           StoreConfig     `mapstructure:"store"`
	Producer        ProducerConfig  `mapstructure:"producer"`
	Consumer        ConsumerConfig  `mapstructure:"consumer"`
	Log             LogConfig       `mapstructure:"log"`
	Telemetry       TelemetryConfig `mapstructure:"telemetry"`
	Report          string          `mapstructure:"report"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// StoreConfig selects the shared table backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory nats"`
	Bucket  string `mapstructure:"bucket" validate:"required"`
	URL     string `mapstructure:"url" validate:"required_if=Backend nats"`
}

// ProducerConfig tunes the producer.
type ProducerConfig struct {
	Delay   time.Duration `mapstructure:"delay" validate:"gte=0"`
	Fixture string        `mapstructure:"fixture"` // optional TOML file of assignments
}

// ConsumerConfig tunes the consumer.
type ConsumerConfig struct {
	WorkDelay     time.Duration `mapstructure:"work_delay" validate:"gte=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
}

// LogConfig sets the console log level.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn warning error"`
}

// TelemetryConfig configures OTLP trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Protocol string `mapstructure:"protocol" validate:"required,oneof=grpc http"`
	Insecure bool   `mapstructure:"insecure"`
	Debug    bool   `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.bucket", "assignments")
	v.SetDefault("store.url", "")
	v.SetDefault("producer.delay", "500ms")
	v.SetDefault("producer.fixture", "")
	v.SetDefault("consumer.work_delay", "1500ms")
	v.SetDefault("consumer.sweep_interval", "50ms")
	v.SetDefault("log.level", "info")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.protocol", "grpc")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.debug", false)
	v.SetDefault("report", "")
	v.SetDefault("shutdown_timeout", "10s")
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are constant.
		panic(err)
	}
	return &cfg
}

// Load reads configuration. An empty path looks for mapqueue.{toml,yaml,json}
// in the working directory and carries on without one; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return load(v, path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrCodeInvalidConfig, "read config file",
				errors.WithMetadata("path", path))
		}
	} else {
		v.SetConfigName("mapqueue")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, errors.WrapWithCode(err, errors.ErrCodeInvalidConfig, "read config file")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeInvalidConfig, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeInvalidConfig, "configuration validation failed")
	}
	return nil
}
